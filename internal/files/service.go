package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/logger"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/outbox/payloads"
	"github.com/atelierhq/atelier-backend/pkg/storage"
)

// MaxUploadBytes caps attachment size at 25 MiB.
const MaxUploadBytes = 25 << 20

// Service is the task attachment workflow.
type Service interface {
	Upload(ctx context.Context, caller tasks.Caller, taskID uuid.UUID, dto UploadFileDTO, body io.Reader) (*FileDTO, error)
	ListByTask(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) ([]FileDTO, error)
	Delete(ctx context.Context, caller tasks.Caller, fileID uuid.UUID) error
}

type service struct {
	repo     Repository
	taskRepo tasks.Repository
	store    storage.Store
	client   *db.Client
	events   *outbox.Service
	logg     *logger.Logger
}

// ServiceParams bundles the file service dependencies.
type ServiceParams struct {
	Repo     Repository
	TaskRepo tasks.Repository
	Store    storage.Store
	DB       *db.Client
	Events   *outbox.Service
	Logger   *logger.Logger
}

// NewService wires the file service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("file repository is required")
	}
	if params.TaskRepo == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("storage store is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &service{
		repo:     params.Repo,
		taskRepo: params.TaskRepo,
		store:    params.Store,
		client:   params.DB,
		events:   params.Events,
		logg:     params.Logger,
	}, nil
}

func (s *service) Upload(ctx context.Context, caller tasks.Caller, taskID uuid.UUID, dto UploadFileDTO, body io.Reader) (*FileDTO, error) {
	name := strings.TrimSpace(dto.OriginalName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if dto.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if dto.SizeBytes > MaxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the upload size limit")
	}
	if body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file body is required")
	}

	if _, err := s.loadAccessibleTask(ctx, caller, taskID); err != nil {
		return nil, err
	}
	// Deliverables are finished work marked by the admin side.
	if !caller.IsAdmin() {
		dto.Deliverable = false
	}

	fileID := uuid.New()
	key := fmt.Sprintf("tasks/%s/%s%s", taskID, fileID, filepath.Ext(name))
	contentType := dto.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploaded, err := s.store.Upload(ctx, key, contentType, io.LimitReader(body, MaxUploadBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store file")
	}

	file := models.TaskFile{
		ID:           fileID,
		TaskID:       taskID,
		UploadedBy:   caller.ID,
		StorageKey:   uploaded.Key,
		URL:          uploaded.URL,
		OriginalName: name,
		SizeBytes:    dto.SizeBytes,
		MimeType:     contentType,
		Deliverable:  dto.Deliverable,
	}
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &file); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record file")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNewFile,
			AggregateType: enums.AggregateFile,
			AggregateID:   file.ID,
			Actor:         &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)},
			Data: payloads.FileEvent{
				FileID:       file.ID,
				TaskID:       taskID,
				UploadedBy:   caller.ID,
				OriginalName: name,
				Deliverable:  file.Deliverable,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit new file event")
		}
		return nil
	})
	if err != nil {
		// The object is already stored; clean it up so the store does not
		// accumulate orphans for rows that never committed.
		s.deleteStored(ctx, uploaded.Key)
		return nil, err
	}
	return FromModel(&file), nil
}

func (s *service) ListByTask(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) ([]FileDTO, error) {
	if _, err := s.loadAccessibleTask(ctx, caller, taskID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list files")
	}
	return fromModels(rows), nil
}

// Delete removes the database row, then best-effort deletes the stored
// object. A storage failure is logged, not surfaced; the row is gone either
// way.
func (s *service) Delete(ctx context.Context, caller tasks.Caller, fileID uuid.UUID) error {
	if !caller.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can delete files")
	}

	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup file")
	}
	affected, err := s.repo.Delete(ctx, fileID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete file")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
	}

	s.deleteStored(ctx, file.StorageKey)
	return nil
}

func (s *service) deleteStored(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
		s.logg.Warn(logCtx, "stored object cleanup failed")
	}
}

func (s *service) loadAccessibleTask(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup task")
	}
	if !caller.IsAdmin() && !task.OwnedBy(caller.ID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not have access to this task")
	}
	return task, nil
}
