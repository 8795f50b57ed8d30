package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

// MessageDTO is the transport shape for in-task messages.
type MessageDTO struct {
	ID        uuid.UUID  `json:"id"`
	TaskID    uuid.UUID  `json:"task_id"`
	SenderID  uuid.UUID  `json:"sender_id"`
	Body      string     `json:"body"`
	FileID    *uuid.UUID `json:"file_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateMessageDTO holds the fields accepted when posting a message.
type CreateMessageDTO struct {
	Body   string
	FileID *uuid.UUID
}

// ThreadResult is a task's message thread. MarkedRead reports how many
// messages the fetch stamped as read for the caller.
type ThreadResult struct {
	Items      []MessageDTO `json:"items"`
	MarkedRead int64        `json:"marked_read"`
}

func FromModel(m *models.TaskMessage) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:        m.ID,
		TaskID:    m.TaskID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		FileID:    m.FileID,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}

func fromModels(rows []models.TaskMessage) []MessageDTO {
	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
