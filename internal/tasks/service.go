package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/outbox/payloads"
	"github.com/atelierhq/atelier-backend/pkg/pagination"
)

// QuoteActionApprove and QuoteActionReject are the only recognized quote
// responses. Anything else fails with an invalid action error.
const (
	QuoteActionApprove = "approve"
	QuoteActionReject  = "reject"
)

// Caller identifies the authenticated principal invoking a task operation.
type Caller struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == enums.RoleAdmin
}

// Service is the task lifecycle and quote workflow.
type Service interface {
	Create(ctx context.Context, caller Caller, dto CreateTaskDTO) (*TaskDTO, error)
	Get(ctx context.Context, caller Caller, id uuid.UUID) (*TaskDTO, error)
	List(ctx context.Context, caller Caller, params ListParams) (*ListResult, error)
	Update(ctx context.Context, caller Caller, id uuid.UUID, dto UpdateTaskDTO) (*TaskDTO, error)
	Delete(ctx context.Context, caller Caller, id uuid.UUID) error
	SendQuote(ctx context.Context, caller Caller, id uuid.UUID, amount decimal.Decimal) (*TaskDTO, error)
	RespondToQuote(ctx context.Context, caller Caller, id uuid.UUID, action string) (*TaskDTO, error)
	TogglePayment(ctx context.Context, caller Caller, id uuid.UUID) (*TaskDTO, error)
}

type service struct {
	repo   Repository
	client *db.Client
	events *outbox.Service
}

// ServiceParams bundles the task service dependencies.
type ServiceParams struct {
	Repo   Repository
	DB     *db.Client
	Events *outbox.Service
}

// NewService wires the task service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &service{repo: params.Repo, client: params.DB, events: params.Events}, nil
}

// ListParams configures filtering and pagination for the task listing.
type ListParams struct {
	Status      *enums.TaskStatus
	QuoteStatus *enums.QuoteStatus
	Priority    *enums.TaskPriority
	IsPaid      *bool
	ClientType  *enums.ClientType
	Limit       int
	Cursor      string
}

// ListResult wraps returned tasks and the cursor for the next page.
type ListResult struct {
	Items  []TaskDTO `json:"items"`
	Cursor string    `json:"cursor"`
}

// canAccess is the ownership predicate: admins see everything, clients only
// tasks whose client_id is their own. Guest and legacy tasks have no
// authenticated owner, so only admins reach them.
func canAccess(caller Caller, task *models.Task) bool {
	if caller.IsAdmin() {
		return true
	}
	return task.OwnedBy(caller.ID)
}

func (s *service) Create(ctx context.Context, caller Caller, dto CreateTaskDTO) (*TaskDTO, error) {
	if strings.TrimSpace(dto.TaskName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task name is required")
	}
	if dto.ClientID != nil && dto.GuestClientID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a task cannot reference both a registered client and a guest client")
	}
	if !caller.IsAdmin() {
		// Clients can only file tasks for themselves.
		if dto.GuestClientID != nil || (dto.ClientID != nil && *dto.ClientID != caller.ID) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "clients can only create tasks they own")
		}
		id := caller.ID
		dto.ClientID = &id
	}

	task := models.Task{
		ID:              uuid.New(),
		TaskName:        strings.TrimSpace(dto.TaskName),
		TaskDescription: dto.TaskDescription,
		Status:          enums.TaskStatusNotStarted,
		QuoteStatus:     enums.QuoteStatusPending,
		ExpectedAmount:  dto.ExpectedAmount,
		Priority:        enums.PriorityMedium,
		Quantity:        1,
		CommissionedAt:  dto.CommissionedAt,
		Notes:           dto.Notes,
		ClientID:        dto.ClientID,
		GuestClientID:   dto.GuestClientID,
		ClientName:      dto.ClientName,
	}
	if dto.Priority != "" {
		if !dto.Priority.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid priority %q", dto.Priority))
		}
		task.Priority = dto.Priority
	}
	if dto.Quantity > 0 {
		task.Quantity = dto.Quantity
	}
	task.QuoteStatus = ApplyGuestAutoAccept(task.QuoteStatus, task.Status, task.GuestClientID != nil, task.ExpectedAmount)

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &task); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create task")
		}
		actor := &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNewTask,
			AggregateType: enums.AggregateTask,
			AggregateID:   task.ID,
			Actor:         actor,
			Data:          taskEventFrom(&task),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit new task event")
		}
		if task.ClientID != nil {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTaskReceived,
				AggregateType: enums.AggregateTask,
				AggregateID:   task.ID,
				Actor:         actor,
				Data:          taskEventFrom(&task),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit task received event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(&task), nil
}

func (s *service) Get(ctx context.Context, caller Caller, id uuid.UUID) (*TaskDTO, error) {
	task, err := s.loadTask(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, task) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not have access to this task")
	}
	return FromModel(task), nil
}

func (s *service) List(ctx context.Context, caller Caller, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	repoParams := ListTasksParams{
		Status:      params.Status,
		QuoteStatus: params.QuoteStatus,
		Priority:    params.Priority,
		IsPaid:      params.IsPaid,
		ClientType:  params.ClientType,
		Limit:       params.Limit,
		Cursor:      cursor,
	}
	if !caller.IsAdmin() {
		id := caller.ID
		repoParams.OwnerID = &id
	}

	rows, next, err := s.repo.List(ctx, repoParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tasks")
	}

	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: fromModels(rows), Cursor: encoded}, nil
}

func (s *service) Update(ctx context.Context, caller Caller, id uuid.UUID, dto UpdateTaskDTO) (*TaskDTO, error) {
	var updated *models.Task
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}
		if !canAccess(caller, task) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "you do not have access to this task")
		}

		updates := map[string]any{}
		if dto.TaskName != nil {
			if strings.TrimSpace(*dto.TaskName) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "task name cannot be empty")
			}
			updates["task_name"] = strings.TrimSpace(*dto.TaskName)
		}
		if dto.TaskDescription != nil {
			updates["task_description"] = *dto.TaskDescription
		}
		statusChanged := false
		nextStatus := task.Status
		if dto.Status != nil {
			if !dto.Status.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *dto.Status))
			}
			nextStatus = *dto.Status
			statusChanged = nextStatus != task.Status
			updates["status"] = nextStatus
		}
		if dto.ExpectedAmount != nil {
			updates["expected_amount"] = *dto.ExpectedAmount
		}
		if dto.Priority != nil {
			if !dto.Priority.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid priority %q", *dto.Priority))
			}
			updates["priority"] = *dto.Priority
		}
		if dto.Quantity != nil {
			if *dto.Quantity < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
			}
			updates["quantity"] = *dto.Quantity
		}
		if dto.CommissionedAt != nil {
			updates["commissioned_at"] = *dto.CommissionedAt
		}
		if dto.DeliveredAt != nil {
			updates["delivered_at"] = *dto.DeliveredAt
		}
		if dto.Notes != nil {
			updates["notes"] = *dto.Notes
		}

		// The auto-accept rule re-applies on every update so a positive
		// amount can never leave a guest task stuck in pending_quote.
		amount := task.ExpectedAmount
		if dto.ExpectedAmount != nil {
			amount = dto.ExpectedAmount
		}
		nextQuote := ApplyGuestAutoAccept(task.QuoteStatus, nextStatus, task.GuestClientID != nil, amount)
		if nextQuote != task.QuoteStatus {
			updates["quote_status"] = nextQuote
		}

		if len(updates) == 0 {
			updated = task
			return nil
		}
		if _, err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update task")
		}
		updated, err = s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}

		if statusChanged {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStatusUpdate,
				AggregateType: enums.AggregateTask,
				AggregateID:   id,
				Actor:         &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)},
				Data:          taskEventFrom(updated),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status update event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// SendQuote records the proposed amount. Guest tasks auto-accept and start
// work immediately; registered and legacy clients get a quote to respond to.
func (s *service) SendQuote(ctx context.Context, caller Caller, id uuid.UUID, amount decimal.Decimal) (*TaskDTO, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can send quotes")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote amount must be positive")
	}

	var updated *models.Task
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}

		updates := map[string]any{"quoted_amount": amount}
		if task.GuestClientID != nil {
			updates["quote_status"] = enums.QuoteStatusApproved
			updates["status"] = enums.TaskStatusInProgress
		} else {
			updates["quote_status"] = enums.QuoteStatusSent
			updates["status"] = enums.TaskStatusReview
		}
		if _, err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send quote")
		}
		updated, err = s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteSent,
			AggregateType: enums.AggregateTask,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)},
			Data: payloads.QuoteEvent{
				TaskID:      id,
				TaskName:    updated.TaskName,
				ClientID:    updated.ClientID,
				Amount:      &amount,
				QuoteStatus: string(updated.QuoteStatus),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit quote sent event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) RespondToQuote(ctx context.Context, caller Caller, id uuid.UUID, action string) (*TaskDTO, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != QuoteActionApprove && action != QuoteActionReject {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAction, fmt.Sprintf("unrecognized action %q", action))
	}

	var updated *models.Task
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}
		if !canAccess(caller, task) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "you do not have access to this task")
		}
		if task.QuoteStatus != enums.QuoteStatusSent {
			return pkgerrors.New(pkgerrors.CodeConflict, "task is not awaiting a quote response")
		}

		updates := map[string]any{}
		if action == QuoteActionApprove {
			updates["quote_status"] = enums.QuoteStatusApproved
			updates["status"] = enums.TaskStatusInProgress
			// Approval locks the agreed price in as the expected amount.
			if task.QuotedAmount != nil {
				updates["expected_amount"] = *task.QuotedAmount
			}
		} else {
			updates["quote_status"] = enums.QuoteStatusRejected
			updates["status"] = enums.TaskStatusCancelled
		}
		if _, err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "respond to quote")
		}
		updated, err = s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteResponded,
			AggregateType: enums.AggregateTask,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: caller.ID, Role: string(caller.Role)},
			Data: payloads.QuoteEvent{
				TaskID:      id,
				TaskName:    updated.TaskName,
				ClientID:    updated.ClientID,
				Amount:      updated.QuotedAmount,
				QuoteStatus: string(updated.QuoteStatus),
				Action:      action,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit quote responded event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) TogglePayment(ctx context.Context, caller Caller, id uuid.UUID) (*TaskDTO, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can toggle payment")
	}

	var updated *models.Task
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, id)
		if err != nil {
			return err
		}
		updates := map[string]any{
			"is_paid":    !task.IsPaid,
			"updated_at": time.Now().UTC(),
		}
		if _, err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle payment")
		}
		updated, err = s.loadTask(ctx, repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can delete tasks")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete task")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
	}
	return nil
}

func (s *service) loadTask(ctx context.Context, repo Repository, id uuid.UUID) (*models.Task, error) {
	task, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup task")
	}
	return task, nil
}

func taskEventFrom(task *models.Task) payloads.TaskEvent {
	return payloads.TaskEvent{
		TaskID:     task.ID,
		TaskName:   task.TaskName,
		ClientID:   task.ClientID,
		GuestID:    task.GuestClientID,
		ClientType: string(task.ClientType()),
		Status:     string(task.Status),
	}
}
