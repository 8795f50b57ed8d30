// Package payloads defines the event data shapes carried inside outbox
// envelopes. The email worker deserializes these; fields are additive-only.
package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskEvent describes task lifecycle changes (created, status update).
type TaskEvent struct {
	TaskID     uuid.UUID  `json:"taskId"`
	TaskName   string     `json:"taskName"`
	ClientID   *uuid.UUID `json:"clientId,omitempty"`
	GuestID    *uuid.UUID `json:"guestId,omitempty"`
	ClientType string     `json:"clientType"`
	Status     string     `json:"status"`
}

// QuoteEvent describes quote sends and responses.
type QuoteEvent struct {
	TaskID      uuid.UUID        `json:"taskId"`
	TaskName    string           `json:"taskName"`
	ClientID    *uuid.UUID       `json:"clientId,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	QuoteStatus string           `json:"quoteStatus"`
	Action      string           `json:"action,omitempty"`
}

// MessageEvent describes a new in-task message.
type MessageEvent struct {
	MessageID   uuid.UUID  `json:"messageId"`
	TaskID      uuid.UUID  `json:"taskId"`
	SenderID    uuid.UUID  `json:"senderId"`
	RecipientID *uuid.UUID `json:"recipientId,omitempty"`
	Preview     string     `json:"preview"`
}

// FileEvent describes a new task attachment.
type FileEvent struct {
	FileID       uuid.UUID `json:"fileId"`
	TaskID       uuid.UUID `json:"taskId"`
	UploadedBy   uuid.UUID `json:"uploadedBy"`
	OriginalName string    `json:"originalName"`
	Deliverable  bool      `json:"deliverable"`
}

// AccountEvent describes user status changes driven by admin review.
type AccountEvent struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Status string    `json:"status"`
}

// GuestUpgradeEvent describes a guest merged into a registered account.
type GuestUpgradeEvent struct {
	GuestID          uuid.UUID `json:"guestId"`
	UserID           uuid.UUID `json:"userId"`
	TasksTransferred int64     `json:"tasksTransferred"`
}
