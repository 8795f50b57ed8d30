package tasks

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// TaskDTO is the transport shape for task records.
type TaskDTO struct {
	ID              uuid.UUID          `json:"id"`
	TaskName        string             `json:"task_name"`
	TaskDescription *string            `json:"task_description,omitempty"`
	Status          enums.TaskStatus   `json:"status"`
	QuoteStatus     enums.QuoteStatus  `json:"quote_status"`
	ExpectedAmount  *decimal.Decimal   `json:"expected_amount,omitempty"`
	QuotedAmount    *decimal.Decimal   `json:"quoted_amount,omitempty"`
	IsPaid          bool               `json:"is_paid"`
	Priority        enums.TaskPriority `json:"priority"`
	Quantity        int                `json:"quantity"`
	CommissionedAt  *time.Time         `json:"commissioned_at,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	ClientID        *uuid.UUID         `json:"client_id,omitempty"`
	GuestClientID   *uuid.UUID         `json:"guest_client_id,omitempty"`
	ClientName      *string            `json:"client_name,omitempty"`
	ClientType      enums.ClientType   `json:"client_type"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// CreateTaskDTO holds the fields accepted when creating a task. At most one
// of ClientID and GuestClientID may be set.
type CreateTaskDTO struct {
	TaskName        string
	TaskDescription *string
	ExpectedAmount  *decimal.Decimal
	Priority        enums.TaskPriority
	Quantity        int
	CommissionedAt  *time.Time
	Notes           *string
	ClientID        *uuid.UUID
	GuestClientID   *uuid.UUID
	ClientName      *string
}

// UpdateTaskDTO holds the mutable task fields. Nil means unchanged.
type UpdateTaskDTO struct {
	TaskName        *string
	TaskDescription *string
	Status          *enums.TaskStatus
	ExpectedAmount  *decimal.Decimal
	Priority        *enums.TaskPriority
	Quantity        *int
	CommissionedAt  *time.Time
	DeliveredAt     *time.Time
	Notes           *string
}

// FromModel maps a task row onto its DTO.
func FromModel(t *models.Task) *TaskDTO {
	if t == nil {
		return nil
	}
	return &TaskDTO{
		ID:              t.ID,
		TaskName:        t.TaskName,
		TaskDescription: t.TaskDescription,
		Status:          t.Status,
		QuoteStatus:     t.QuoteStatus,
		ExpectedAmount:  t.ExpectedAmount,
		QuotedAmount:    t.QuotedAmount,
		IsPaid:          t.IsPaid,
		Priority:        t.Priority,
		Quantity:        t.Quantity,
		CommissionedAt:  t.CommissionedAt,
		DeliveredAt:     t.DeliveredAt,
		Notes:           t.Notes,
		ClientID:        t.ClientID,
		GuestClientID:   t.GuestClientID,
		ClientName:      t.ClientName,
		ClientType:      t.ClientType(),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromModels(rows []models.Task) []TaskDTO {
	out := make([]TaskDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
