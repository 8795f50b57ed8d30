package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/outbox/payloads"
)

const previewRunes = 120

// Service is the in-task messaging thread.
type Service interface {
	Post(ctx context.Context, caller tasks.Caller, taskID uuid.UUID, dto CreateMessageDTO) (*MessageDTO, error)
	ListThread(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) (*ThreadResult, error)
	UnreadCount(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) (int64, error)
}

type service struct {
	repo     Repository
	taskRepo tasks.Repository
	client   *db.Client
	events   *outbox.Service
}

// ServiceParams bundles the messaging dependencies.
type ServiceParams struct {
	Repo     Repository
	TaskRepo tasks.Repository
	DB       *db.Client
	Events   *outbox.Service
}

// NewService wires the messaging service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if params.TaskRepo == nil {
		return nil, fmt.Errorf("task repository is required")
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
		client:   params.DB,
		events:   params.Events,
	}, nil
}

func (s *service) Post(ctx context.Context, caller tasks.Caller, taskID uuid.UUID, dto CreateMessageDTO) (*MessageDTO, error) {
	body := strings.TrimSpace(dto.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	message := models.TaskMessage{
		ID:       uuid.New(),
		TaskID:   taskID,
		SenderID: caller.ID,
		Body:     body,
		FileID:   dto.FileID,
	}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		task, err := s.loadAccessibleTask(ctx, s.taskRepo.WithTx(tx), caller, taskID)
		if err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, &message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}

		// Admin messages notify the task owner; client messages notify the
		// admin side, which has no single recipient.
		var recipient *uuid.UUID
		if caller.IsAdmin() {
			recipient = task.ClientID
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNewMessage,
			AggregateType: enums.AggregateMessage,
			AggregateID:   message.ID,
			Actor:         &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)},
			Data: payloads.MessageEvent{
				MessageID:   message.ID,
				TaskID:      taskID,
				SenderID:    caller.ID,
				RecipientID: recipient,
				Preview:     preview(body),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit new message event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(&message), nil
}

// ListThread returns the thread oldest-first and stamps read_at on every
// message the caller had not seen.
func (s *service) ListThread(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) (*ThreadResult, error) {
	if _, err := s.loadAccessibleTask(ctx, s.taskRepo, caller, taskID); err != nil {
		return nil, err
	}

	marked, err := s.repo.MarkReadForReader(ctx, taskID, caller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark messages read")
	}
	rows, err := s.repo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	return &ThreadResult{Items: fromModels(rows), MarkedRead: marked}, nil
}

func (s *service) UnreadCount(ctx context.Context, caller tasks.Caller, taskID uuid.UUID) (int64, error) {
	if _, err := s.loadAccessibleTask(ctx, s.taskRepo, caller, taskID); err != nil {
		return 0, err
	}
	count, err := s.repo.CountUnread(ctx, taskID, caller.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread messages")
	}
	return count, nil
}

func (s *service) loadAccessibleTask(ctx context.Context, repo tasks.Repository, caller tasks.Caller, taskID uuid.UUID) (*models.Task, error) {
	task, err := repo.FindByID(ctx, taskID)
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

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRunes])
}
