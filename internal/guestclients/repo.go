package guestclients

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/pagination"
)

// Repository exposes guest client persistence plus the task re-parenting
// primitive shared by the upgrade and merge flows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, guest *models.GuestClient) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GuestClient, error)
	FindExactDuplicate(ctx context.Context, name, phone string) (*models.GuestClient, error)
	FindByName(ctx context.Context, name string) ([]models.GuestClient, error)
	ListActiveForMatching(ctx context.Context) ([]models.GuestClient, error)
	List(ctx context.Context, params ListGuestsParams) ([]models.GuestClient, *pagination.Cursor, error)
	Search(ctx context.Context, query string, limit int) ([]models.GuestClient, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	MarkUpgraded(ctx context.Context, guestID, userID uuid.UUID) (int64, error)
	TransferGuestTasks(ctx context.Context, guestID, userID uuid.UUID) (int64, error)
	CountTasks(ctx context.Context, guestID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a guest client repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListGuestsParams filters the guest directory listing.
type ListGuestsParams struct {
	IncludeUpgraded bool
	Limit           int
	Cursor          *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, guest *models.GuestClient) error {
	return r.db.WithContext(ctx).Create(guest).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.GuestClient, error) {
	var guest models.GuestClient
	if err := r.db.WithContext(ctx).First(&guest, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

// FindExactDuplicate looks for a non-upgraded guest with the same name and
// the same phone. Callers only invoke it with a phone in hand; a record
// without a phone can never be an exact duplicate, only a name warning.
func (r *repositoryImpl) FindExactDuplicate(ctx context.Context, name, phone string) (*models.GuestClient, error) {
	var guest models.GuestClient
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Where("phone = ?", phone).
		Where("upgraded_to_user_id IS NULL").
		First(&guest).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// FindByName returns non-upgraded guests whose name matches exactly,
// case-sensitive.
func (r *repositoryImpl) FindByName(ctx context.Context, name string) ([]models.GuestClient, error) {
	var rows []models.GuestClient
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Where("upgraded_to_user_id IS NULL").
		Find(&rows).Error
	return rows, err
}

// ListActiveForMatching loads every non-upgraded guest. The fuzzy ranking
// happens in memory; the directory is small enough that a full scan is fine.
func (r *repositoryImpl) ListActiveForMatching(ctx context.Context) ([]models.GuestClient, error) {
	var rows []models.GuestClient
	err := r.db.WithContext(ctx).
		Where("upgraded_to_user_id IS NULL").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) List(ctx context.Context, params ListGuestsParams) ([]models.GuestClient, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.GuestClient{})
	if !params.IncludeUpgraded {
		query = query.Where("upgraded_to_user_id IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}

	var rows []models.GuestClient
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repositoryImpl) Search(ctx context.Context, query string, limit int) ([]models.GuestClient, error) {
	pattern := "%" + query + "%"
	var rows []models.GuestClient
	err := r.db.WithContext(ctx).
		Where("upgraded_to_user_id IS NULL").
		Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", pattern, pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.GuestClient{}).
		Where("id = ? AND upgraded_to_user_id IS NULL", id).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.GuestClient{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// MarkUpgraded sets the back-reference exactly once. The IS NULL guard makes
// a double upgrade report zero rows instead of silently rewriting the link.
func (r *repositoryImpl) MarkUpgraded(ctx context.Context, guestID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GuestClient{}).
		Where("id = ? AND upgraded_to_user_id IS NULL", guestID).
		Updates(map[string]any{
			"upgraded_to_user_id": userID,
			"updated_at":          time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// TransferGuestTasks re-parents all of a guest's tasks to the given user in
// one bulk update and returns the affected row count.
func (r *repositoryImpl) TransferGuestTasks(ctx context.Context, guestID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("guest_client_id = ?", guestID).
		Updates(map[string]any{
			"client_id":       userID,
			"guest_client_id": nil,
			"updated_at":      time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CountTasks(ctx context.Context, guestID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("guest_client_id = ?", guestID).
		Count(&count).Error
	return count, err
}
