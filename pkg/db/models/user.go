package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// User represents a registered account, admin or client.
type User struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string           `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	Role         enums.UserRole   `gorm:"type:user_role;not null;default:client"`
	FullName     string           `gorm:"column:full_name;not null"`
	Phone        *string          `gorm:"column:phone"`
	Course       *string          `gorm:"column:course"`
	Status       enums.UserStatus `gorm:"type:user_status;not null;default:pending"`
	ApprovedBy   *uuid.UUID       `gorm:"type:uuid;column:approved_by"`
	ApprovedAt   *time.Time       `gorm:"column:approved_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CanAuthenticate reports whether the user may access protected resources.
func (u User) CanAuthenticate() bool {
	return u.Status == enums.UserStatusApproved
}
