package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskMessage is an in-task message between the client and the admin.
// ReadAt is stamped when the party other than the sender reads the thread.
type TaskMessage struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID    uuid.UUID  `gorm:"type:uuid;column:task_id;not null;index"`
	SenderID  uuid.UUID  `gorm:"type:uuid;column:sender_id;not null"`
	Body      string     `gorm:"type:text;not null"`
	FileID    *uuid.UUID `gorm:"type:uuid;column:file_id"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
