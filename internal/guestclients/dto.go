package guestclients

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

// GuestClientDTO is the transport shape for guest client records.
type GuestClientDTO struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            *string    `json:"email,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Course           *string    `json:"course,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	UpgradedToUserID *uuid.UUID `json:"upgraded_to_user_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateGuestClientDTO holds the fields accepted when creating a guest.
type CreateGuestClientDTO struct {
	Name   string
	Email  *string
	Phone  *string
	Course *string
	Notes  *string
}

// UpdateGuestClientDTO holds the mutable guest fields. Nil means unchanged.
type UpdateGuestClientDTO struct {
	Name   *string
	Email  *string
	Phone  *string
	Course *string
	Notes  *string
}

// CreateOutcome is the result of a guest creation attempt. When Warning is
// set the call did not create a row; Duplicates lists the same-name guests
// and the caller may retry with force.
type CreateOutcome struct {
	Guest      *GuestClientDTO  `json:"guest,omitempty"`
	Warning    bool             `json:"warning"`
	Message    string           `json:"message,omitempty"`
	Duplicates []GuestClientDTO `json:"duplicates,omitempty"`
}

// UpgradeResult reports the effects of a guest upgrade or merge.
type UpgradeResult struct {
	UserID           uuid.UUID `json:"user_id"`
	GuestID          uuid.UUID `json:"guest_id"`
	TasksTransferred int64     `json:"tasks_transferred"`
}

func FromModel(g *models.GuestClient) *GuestClientDTO {
	if g == nil {
		return nil
	}
	return &GuestClientDTO{
		ID:               g.ID,
		Name:             g.Name,
		Email:            g.Email,
		Phone:            g.Phone,
		Course:           g.Course,
		Notes:            g.Notes,
		UpgradedToUserID: g.UpgradedToUserID,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

func fromModels(rows []models.GuestClient) []GuestClientDTO {
	out := make([]GuestClientDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
