package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
)

// Repository exposes task message persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, message *models.TaskMessage) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.TaskMessage, error)
	MarkReadForReader(ctx context.Context, taskID, readerID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, taskID, readerID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a message repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, message *models.TaskMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repositoryImpl) ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.TaskMessage, error) {
	var rows []models.TaskMessage
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// MarkReadForReader stamps read_at on messages the reader did not send.
// Last write wins; re-reading a thread is a no-op.
func (r *repositoryImpl) MarkReadForReader(ctx context.Context, taskID, readerID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TaskMessage{}).
		Where("task_id = ? AND sender_id <> ? AND read_at IS NULL", taskID, readerID).
		Update("read_at", time.Now().UTC())
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CountUnread(ctx context.Context, taskID, readerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TaskMessage{}).
		Where("task_id = ? AND sender_id <> ? AND read_at IS NULL", taskID, readerID).
		Count(&count).Error
	return count, err
}
