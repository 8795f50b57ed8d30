package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// Task is the unit of commissioned work. A task is owned by at most one of a
// registered user (ClientID) or a guest client (GuestClientID); tasks created
// before the client directory existed carry only a free-text ClientName.
type Task struct {
	ID              uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskName        string             `gorm:"column:task_name;not null"`
	TaskDescription *string            `gorm:"column:task_description;type:text"`
	Status          enums.TaskStatus   `gorm:"type:task_status;not null;default:not_started"`
	QuoteStatus     enums.QuoteStatus  `gorm:"type:quote_status;column:quote_status;not null;default:pending_quote"`
	ExpectedAmount  *decimal.Decimal   `gorm:"column:expected_amount;type:numeric(12,2)"`
	QuotedAmount    *decimal.Decimal   `gorm:"column:quoted_amount;type:numeric(12,2)"`
	IsPaid          bool               `gorm:"column:is_paid;not null;default:false"`
	Priority        enums.TaskPriority `gorm:"type:task_priority;not null;default:medium"`
	Quantity        int                `gorm:"not null;default:1"`
	CommissionedAt  *time.Time         `gorm:"column:commissioned_at"`
	DeliveredAt     *time.Time         `gorm:"column:delivered_at"`
	Notes           *string            `gorm:"type:text"`
	ClientID        *uuid.UUID         `gorm:"type:uuid;column:client_id;index"`
	GuestClientID   *uuid.UUID         `gorm:"type:uuid;column:guest_client_id;index"`
	ClientName      *string            `gorm:"column:client_name"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ClientType derives the ownership kind from which reference is set.
func (t Task) ClientType() enums.ClientType {
	switch {
	case t.ClientID != nil:
		return enums.ClientTypeRegistered
	case t.GuestClientID != nil:
		return enums.ClientTypeGuest
	default:
		return enums.ClientTypeLegacy
	}
}

// OwnedBy reports whether the given registered user owns this task.
func (t Task) OwnedBy(userID uuid.UUID) bool {
	return t.ClientID != nil && *t.ClientID == userID
}
