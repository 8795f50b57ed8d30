package guestclients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/users"
	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/outbox/payloads"
	"github.com/atelierhq/atelier-backend/pkg/pagination"
	"github.com/atelierhq/atelier-backend/pkg/security"
)

const searchResultCap = 10

// Service is the guest client directory plus the merge/upgrade workflow.
type Service interface {
	Create(ctx context.Context, dto CreateGuestClientDTO, force bool) (*CreateOutcome, error)
	Get(ctx context.Context, id uuid.UUID) (*GuestClientDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, dto UpdateGuestClientDTO) (*GuestClientDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]GuestClientDTO, error)
	FindPotentialMatches(ctx context.Context, name, email, phone string) ([]Match, error)
	UpgradeToRegistered(ctx context.Context, guestID uuid.UUID, req UpgradeRequest) (*UpgradeResult, error)
	MergeIntoUser(ctx context.Context, adminID, userID, guestID uuid.UUID) (*UpgradeResult, error)
}

type service struct {
	repo        Repository
	users       users.Repository
	client      *db.Client
	events      *outbox.Service
	passwordCfg config.PasswordConfig
}

// ServiceParams bundles the guest directory dependencies.
type ServiceParams struct {
	Repo           Repository
	UserRepo       users.Repository
	DB             *db.Client
	Events         *outbox.Service
	PasswordConfig config.PasswordConfig
}

// NewService wires the guest client service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("guest client repository is required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	return &service{
		repo:        params.Repo,
		users:       params.UserRepo,
		client:      params.DB,
		events:      params.Events,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// ListParams configures pagination for the guest directory.
type ListParams struct {
	IncludeUpgraded bool
	Limit           int
	Cursor          string
}

// ListResult wraps returned guests and the cursor for the next page.
type ListResult struct {
	Items  []GuestClientDTO `json:"items"`
	Cursor string           `json:"cursor"`
}

// UpgradeRequest carries the credentials for a guest self-upgrade.
type UpgradeRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Create runs the two-phase duplicate check. An exact duplicate (same name
// and same phone, both present) is a hard conflict. Without a phone there is
// no exact match to make; a bare name collision without force returns a
// warning outcome listing the duplicates and creates nothing, and the caller
// confirms by retrying with force set.
func (s *service) Create(ctx context.Context, dto CreateGuestClientDTO, force bool) (*CreateOutcome, error) {
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest name is required")
	}
	dto.Name = name

	if dto.Phone != nil && strings.TrimSpace(*dto.Phone) != "" {
		existing, err := s.repo.FindExactDuplicate(ctx, name, *dto.Phone)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check exact duplicate")
		}
		if existing != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "guest with the same name and phone already exists").
				WithDetails(map[string]any{"existing": FromModel(existing)})
		}
	}

	if !force {
		sameName, err := s.repo.FindByName(ctx, name)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check name duplicates")
		}
		if len(sameName) > 0 {
			return &CreateOutcome{
				Warning:    true,
				Message:    fmt.Sprintf("%d guest(s) already share this name; retry with force to create anyway", len(sameName)),
				Duplicates: fromModels(sameName),
			}, nil
		}
	}

	guest := &models.GuestClient{
		ID:     uuid.New(),
		Name:   name,
		Email:  dto.Email,
		Phone:  dto.Phone,
		Course: dto.Course,
		Notes:  dto.Notes,
	}
	if err := s.repo.Create(ctx, guest); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guest")
	}
	return &CreateOutcome{Guest: FromModel(guest)}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*GuestClientDTO, error) {
	guest, err := s.findGuest(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(guest), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListGuestsParams{
		IncludeUpgraded: params.IncludeUpgraded,
		Limit:           params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guests")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: fromModels(rows), Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, dto UpdateGuestClientDTO) (*GuestClientDTO, error) {
	guest, err := s.findGuest(ctx, id)
	if err != nil {
		return nil, err
	}
	if guest.Upgraded() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "guest has been upgraded and is read-only")
	}

	updates := map[string]any{}
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest name cannot be empty")
		}
		updates["name"] = name
	}
	if dto.Email != nil {
		updates["email"] = dto.Email
	}
	if dto.Phone != nil {
		updates["phone"] = dto.Phone
	}
	if dto.Course != nil {
		updates["course"] = dto.Course
	}
	if dto.Notes != nil {
		updates["notes"] = dto.Notes
	}
	if len(updates) == 0 {
		return FromModel(guest), nil
	}

	if _, err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update guest")
	}

	guest, err = s.findGuest(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(guest), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	guest, err := s.findGuest(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountTasks(ctx, guest.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count guest tasks")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "guest still owns tasks").
			WithDetails(map[string]any{"tasks": count})
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest")
	}
	return nil
}

func (s *service) Search(ctx context.Context, query string) ([]GuestClientDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	rows, err := s.repo.Search(ctx, query, searchResultCap)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search guests")
	}
	return fromModels(rows), nil
}

func (s *service) FindPotentialMatches(ctx context.Context, name, email, phone string) ([]Match, error) {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(email) == "" && strings.TrimSpace(phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one of name, email, phone is required")
	}
	candidates, err := s.repo.ListActiveForMatching(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load match candidates")
	}
	return rankMatches(candidates, name, email, phone), nil
}

// UpgradeToRegistered creates an approved user from the guest's identity and
// re-parents the guest's task history, all in one transaction. The account
// skips the pending gate because the guest's identity was already vetted
// through prior task history.
func (s *service) UpgradeToRegistered(ctx context.Context, guestID uuid.UUID, req UpgradeRequest) (*UpgradeResult, error) {
	if guestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest id required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var result *UpgradeResult
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		userRepo := s.users.WithTx(tx)

		guest, err := repo.FindByID(ctx, guestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "guest not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup guest")
		}
		if guest.Upgraded() {
			return pkgerrors.New(pkgerrors.CodeConflict, "guest has already been upgraded")
		}

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Role:         enums.RoleClient,
			FullName:     guest.Name,
			Phone:        guest.Phone,
			Course:       guest.Course,
			Status:       enums.UserStatusApproved,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}

		transferred, err := s.attachGuestToUser(ctx, tx, repo, guest.ID, user.ID)
		if err != nil {
			return err
		}

		result = &UpgradeResult{
			UserID:           user.ID,
			GuestID:          guest.ID,
			TasksTransferred: transferred,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeIntoUser attaches a guest's history to an existing pending user and
// approves that user. Merging into an already-approved account is disallowed
// to avoid an ambiguous double identity.
func (s *service) MergeIntoUser(ctx context.Context, adminID, userID, guestID uuid.UUID) (*UpgradeResult, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	if userID == uuid.Nil || guestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and guest id required")
	}

	var result *UpgradeResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		userRepo := s.users.WithTx(tx)

		guest, err := repo.FindByID(ctx, guestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "guest not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup guest")
		}
		if guest.Upgraded() {
			return pkgerrors.New(pkgerrors.CodeConflict, "guest has already been upgraded")
		}

		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
		}
		if user.Status != enums.UserStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "merge target must be a pending account")
		}

		transferred, err := s.attachGuestToUser(ctx, tx, repo, guest.ID, user.ID)
		if err != nil {
			return err
		}

		if _, err := userRepo.UpdateStatus(ctx, user.ID, enums.UserStatusApproved, &adminID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve merged user")
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountApproved,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.RoleAdmin)},
			Data: payloads.AccountEvent{
				UserID: user.ID,
				Email:  user.Email,
				Status: string(enums.UserStatusApproved),
			},
		}); err != nil {
			return err
		}

		result = &UpgradeResult{
			UserID:           user.ID,
			GuestID:          guest.ID,
			TasksTransferred: transferred,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attachGuestToUser is the shared transfer-and-mark primitive behind both
// upgrade paths. It must run inside the caller's transaction.
func (s *service) attachGuestToUser(ctx context.Context, tx *gorm.DB, repo Repository, guestID, userID uuid.UUID) (int64, error) {
	transferred, err := repo.TransferGuestTasks(ctx, guestID, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transfer guest tasks")
	}

	marked, err := repo.MarkUpgraded(ctx, guestID, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark guest upgraded")
	}
	if marked == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeConflict, "guest has already been upgraded")
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGuestUpgraded,
		AggregateType: enums.AggregateGuestClient,
		AggregateID:   guestID,
		Data: payloads.GuestUpgradeEvent{
			GuestID:          guestID,
			UserID:           userID,
			TasksTransferred: transferred,
		},
	}); err != nil {
		return 0, err
	}
	return transferred, nil
}

func (s *service) findGuest(ctx context.Context, id uuid.UUID) (*models.GuestClient, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest id required")
	}
	guest, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guest not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup guest")
	}
	return guest, nil
}
