package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/outbox/payloads"
	"github.com/atelierhq/atelier-backend/pkg/pagination"
)

// Service defines the admin-facing account lifecycle operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	Approve(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error)
	Reject(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error)
	Suspend(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error)
	Unsuspend(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo   Repository
	client *db.Client
	events *outbox.Service
}

// NewService wires user lifecycle dependencies.
func NewService(repo Repository, client *db.Client, events *outbox.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &service{repo: repo, client: client, events: events}, nil
}

// ListParams configures pagination and filters for the user listing.
type ListParams struct {
	Status *enums.UserStatus
	Role   *enums.UserRole
	Limit  int
	Cursor string
}

// ListResult wraps returned users and the cursor for the next page.
type ListResult struct {
	Items  []UserDTO `json:"items"`
	Cursor string    `json:"cursor"`
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListUsersParams{
		Status: params.Status,
		Role:   params.Role,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	items := make([]UserDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	return FromModel(user), nil
}

func (s *service) Approve(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, adminID, userID, enums.UserStatusApproved, enums.EventAccountApproved,
		func(current enums.UserStatus) error {
			if current != enums.UserStatusPending {
				return pkgerrors.New(pkgerrors.CodeConflict, "only pending accounts can be approved")
			}
			return nil
		})
}

func (s *service) Reject(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, adminID, userID, enums.UserStatusRejected, enums.EventAccountRejected,
		func(current enums.UserStatus) error {
			if current != enums.UserStatusPending {
				return pkgerrors.New(pkgerrors.CodeConflict, "only pending accounts can be rejected")
			}
			return nil
		})
}

func (s *service) Suspend(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, adminID, userID, enums.UserStatusSuspended, enums.EventAccountSuspended,
		func(current enums.UserStatus) error {
			if current != enums.UserStatusApproved {
				return pkgerrors.New(pkgerrors.CodeConflict, "only approved accounts can be suspended")
			}
			return nil
		})
}

func (s *service) Unsuspend(ctx context.Context, adminID, userID uuid.UUID) (*UserDTO, error) {
	return s.transition(ctx, adminID, userID, enums.UserStatusApproved, enums.EventAccountReactivated,
		func(current enums.UserStatus) error {
			if current != enums.UserStatusSuspended {
				return pkgerrors.New(pkgerrors.CodeConflict, "only suspended accounts can be reactivated")
			}
			return nil
		})
}

func (s *service) transition(ctx context.Context, adminID, userID uuid.UUID, target enums.UserStatus, event enums.OutboxEventType, check func(enums.UserStatus) error) (*UserDTO, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var updated *models.User
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		user, err := repo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
		}
		if err := check(user.Status); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := repo.UpdateStatus(ctx, userID, target, &adminID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user status")
		}

		user.Status = target
		if target == enums.UserStatusApproved {
			user.ApprovedBy = &adminID
			user.ApprovedAt = &now
		}
		updated = user

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     event,
			AggregateType: enums.AggregateUser,
			AggregateID:   userID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.RoleAdmin)},
			Data: payloads.AccountEvent{
				UserID: userID,
				Email:  user.Email,
				Status: string(target),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	refs, err := s.repo.CountTaskReferences(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count task references")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "user still owns tasks").
			WithDetails(map[string]any{"tasks": refs})
	}

	affected, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}
