package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier-backend/api/responses"
	"github.com/atelierhq/atelier-backend/api/validators"
	tasksvc "github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/logger"
)

// TaskList returns tasks visible to the caller, filtered and paginated.
func TaskList(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := parseTaskListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), caller, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TaskCreate registers a new commission.
func TaskCreate(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := payload.toCreateDTO()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Create(r.Context(), caller, dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, task)
	}
}

// TaskGet fetches a single task by id.
func TaskGet(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Get(r.Context(), caller, taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// TaskUpdate applies partial edits to a task.
func TaskUpdate(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := payload.toUpdateDTO()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Update(r.Context(), caller, taskID, dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// TaskDelete removes a task. Admin only, enforced by the service.
func TaskDelete(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), caller, taskID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

// TaskSendQuote attaches a quoted amount to a task.
func TaskSendQuote(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.SendQuote(r.Context(), caller, taskID, payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// TaskRespondQuote records the client decision on a pending quote.
func TaskRespondQuote(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload respondQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.RespondToQuote(r.Context(), caller, taskID, payload.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// TaskTogglePayment flips the paid flag on a task.
func TaskTogglePayment(svc tasksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
			return
		}

		caller, err := callerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.TogglePayment(r.Context(), caller, taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

type createTaskRequest struct {
	TaskName        string           `json:"task_name" validate:"required,min=1,max=255"`
	TaskDescription *string          `json:"task_description,omitempty"`
	ExpectedAmount  *decimal.Decimal `json:"expected_amount,omitempty"`
	Priority        *string          `json:"priority,omitempty"`
	Quantity        *int             `json:"quantity,omitempty" validate:"omitempty,min=1"`
	CommissionedAt  *time.Time       `json:"commissioned_at,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	ClientID        *string          `json:"client_id,omitempty" validate:"omitempty,uuid"`
	GuestClientID   *string          `json:"guest_client_id,omitempty" validate:"omitempty,uuid"`
	ClientName      *string          `json:"client_name,omitempty"`
}

func (r createTaskRequest) toCreateDTO() (tasksvc.CreateTaskDTO, error) {
	dto := tasksvc.CreateTaskDTO{
		TaskName:        validators.SanitizeString(r.TaskName, 255),
		TaskDescription: r.TaskDescription,
		ExpectedAmount:  r.ExpectedAmount,
		CommissionedAt:  r.CommissionedAt,
		Notes:           r.Notes,
		ClientName:      r.ClientName,
	}
	if r.Priority != nil {
		priority, err := enums.ParseTaskPriority(strings.TrimSpace(*r.Priority))
		if err != nil {
			return tasksvc.CreateTaskDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority")
		}
		dto.Priority = priority
	}
	if r.Quantity != nil {
		dto.Quantity = *r.Quantity
	}
	if r.ClientID != nil {
		id, err := uuid.Parse(*r.ClientID)
		if err != nil {
			return tasksvc.CreateTaskDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid client id")
		}
		dto.ClientID = &id
	}
	if r.GuestClientID != nil {
		id, err := uuid.Parse(*r.GuestClientID)
		if err != nil {
			return tasksvc.CreateTaskDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest client id")
		}
		dto.GuestClientID = &id
	}
	return dto, nil
}

type updateTaskRequest struct {
	TaskName        *string          `json:"task_name,omitempty" validate:"omitempty,min=1,max=255"`
	TaskDescription *string          `json:"task_description,omitempty"`
	Status          *string          `json:"status,omitempty"`
	ExpectedAmount  *decimal.Decimal `json:"expected_amount,omitempty"`
	Priority        *string          `json:"priority,omitempty"`
	Quantity        *int             `json:"quantity,omitempty" validate:"omitempty,min=1"`
	CommissionedAt  *time.Time       `json:"commissioned_at,omitempty"`
	DeliveredAt     *time.Time       `json:"delivered_at,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

func (r updateTaskRequest) toUpdateDTO() (tasksvc.UpdateTaskDTO, error) {
	dto := tasksvc.UpdateTaskDTO{
		TaskDescription: r.TaskDescription,
		ExpectedAmount:  r.ExpectedAmount,
		Quantity:        r.Quantity,
		CommissionedAt:  r.CommissionedAt,
		DeliveredAt:     r.DeliveredAt,
		Notes:           r.Notes,
	}
	if r.TaskName != nil {
		name := validators.SanitizeString(*r.TaskName, 255)
		dto.TaskName = &name
	}
	if r.Status != nil {
		status, err := enums.ParseTaskStatus(strings.TrimSpace(*r.Status))
		if err != nil {
			return tasksvc.UpdateTaskDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		dto.Status = &status
	}
	if r.Priority != nil {
		priority, err := enums.ParseTaskPriority(strings.TrimSpace(*r.Priority))
		if err != nil {
			return tasksvc.UpdateTaskDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority")
		}
		dto.Priority = &priority
	}
	return dto, nil
}

type sendQuoteRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type respondQuoteRequest struct {
	Action string `json:"action" validate:"required"`
}

func parseTaskListParams(r *http.Request) (tasksvc.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
	if err != nil {
		return tasksvc.ListParams{}, err
	}

	params := tasksvc.ListParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParseTaskStatus(raw)
		if err != nil {
			return tasksvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	if raw := r.URL.Query().Get("quote_status"); raw != "" {
		quoteStatus, err := enums.ParseQuoteStatus(raw)
		if err != nil {
			return tasksvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote status filter")
		}
		params.QuoteStatus = &quoteStatus
	}
	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, err := enums.ParseTaskPriority(raw)
		if err != nil {
			return tasksvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority filter")
		}
		params.Priority = &priority
	}
	if raw := r.URL.Query().Get("client_type"); raw != "" {
		clientType, err := enums.ParseClientType(raw)
		if err != nil {
			return tasksvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid client type filter")
		}
		params.ClientType = &clientType
	}
	isPaid, err := validators.ParseQueryBool(r, "is_paid")
	if err != nil {
		return tasksvc.ListParams{}, err
	}
	params.IsPaid = isPaid

	return params, nil
}

func taskIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "taskId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task id")
	}
	return id, nil
}
