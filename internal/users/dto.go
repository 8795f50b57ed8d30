package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID         uuid.UUID        `json:"id"`
	Email      string           `json:"email"`
	Role       enums.UserRole   `json:"role"`
	FullName   string           `json:"full_name"`
	Phone      *string          `json:"phone,omitempty"`
	Course     *string          `json:"course,omitempty"`
	Status     enums.UserStatus `json:"status"`
	ApprovedBy *uuid.UUID       `json:"approved_by,omitempty"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Role         enums.UserRole
	FullName     string
	Phone        *string
	Course       *string
	Status       enums.UserStatus
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FullName:   u.FullName,
		Phone:      u.Phone,
		Course:     u.Course,
		Status:     u.Status,
		ApprovedBy: u.ApprovedBy,
		ApprovedAt: u.ApprovedAt,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if !role.IsValid() {
		role = enums.RoleClient
	}
	status := c.Status
	if !status.IsValid() {
		status = enums.UserStatusPending
	}

	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Role:         role,
		FullName:     c.FullName,
		Phone:        c.Phone,
		Course:       c.Course,
		Status:       status,
	}
}
