package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskFile records an attachment uploaded against a task. StorageKey points
// into the object store (or the local fallback directory when the upload fell
// back to disk).
type TaskFile struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID       uuid.UUID `gorm:"type:uuid;column:task_id;not null;index"`
	UploadedBy   uuid.UUID `gorm:"type:uuid;column:uploaded_by;not null"`
	StorageKey   string    `gorm:"column:storage_key;not null"`
	URL          string    `gorm:"type:text;not null"`
	OriginalName string    `gorm:"column:original_name;not null"`
	SizeBytes    int64     `gorm:"column:size_bytes;not null"`
	MimeType     string    `gorm:"column:mime_type;not null"`
	Deliverable  bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
