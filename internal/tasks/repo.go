package tasks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	"github.com/atelierhq/atelier-backend/pkg/pagination"
)

// Repository exposes task persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, params ListTasksParams) ([]models.Task, *pagination.Cursor, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a task repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListTasksParams filters the task listing. OwnerID scopes results to tasks
// owned by that registered user; controllers set it for client callers so
// the query itself enforces the ownership boundary.
type ListTasksParams struct {
	Status      *enums.TaskStatus
	QuoteStatus *enums.QuoteStatus
	Priority    *enums.TaskPriority
	IsPaid      *bool
	ClientType  *enums.ClientType
	OwnerID     *uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListTasksParams) ([]models.Task, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Task{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.QuoteStatus != nil {
		query = query.Where("quote_status = ?", *params.QuoteStatus)
	}
	if params.Priority != nil {
		query = query.Where("priority = ?", *params.Priority)
	}
	if params.IsPaid != nil {
		query = query.Where("is_paid = ?", *params.IsPaid)
	}
	if params.ClientType != nil {
		switch *params.ClientType {
		case enums.ClientTypeRegistered:
			query = query.Where("client_id IS NOT NULL")
		case enums.ClientTypeGuest:
			query = query.Where("guest_client_id IS NOT NULL")
		case enums.ClientTypeLegacy:
			query = query.Where("client_id IS NULL AND guest_client_id IS NULL")
		}
	}
	if params.OwnerID != nil {
		query = query.Where("client_id = ?", *params.OwnerID)
	}
	if params.Cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}

	var rows []models.Task
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	return result.RowsAffected, result.Error
}
