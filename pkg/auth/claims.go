package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Status enums.UserStatus
}

// AccessTokenClaims represents the typed JWT issued to clients. The core
// trusts this resolved principal and never re-validates credentials.
type AccessTokenClaims struct {
	UserID uuid.UUID        `json:"user_id"`
	Role   enums.UserRole   `json:"role"`
	Status enums.UserStatus `json:"status"`
	jwt.RegisteredClaims
}
