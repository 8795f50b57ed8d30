package files

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

// FileDTO is the transport shape for task attachments.
type FileDTO struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"task_id"`
	UploadedBy   uuid.UUID `json:"uploaded_by"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type"`
	Deliverable  bool      `json:"deliverable"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadFileDTO describes an incoming attachment. Body is consumed once.
type UploadFileDTO struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Deliverable  bool
}

func FromModel(f *models.TaskFile) *FileDTO {
	if f == nil {
		return nil
	}
	return &FileDTO{
		ID:           f.ID,
		TaskID:       f.TaskID,
		UploadedBy:   f.UploadedBy,
		URL:          f.URL,
		OriginalName: f.OriginalName,
		SizeBytes:    f.SizeBytes,
		MimeType:     f.MimeType,
		Deliverable:  f.Deliverable,
		CreatedAt:    f.CreatedAt,
	}
}

func fromModels(rows []models.TaskFile) []FileDTO {
	out := make([]FileDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
