package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/api/responses"
	"github.com/atelierhq/atelier-backend/api/validators"
	guestsvc "github.com/atelierhq/atelier-backend/internal/guestclients"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/logger"
)

// GuestClientCreate registers a guest client. Without force a name collision
// returns a warning outcome instead of creating a row.
func GuestClientCreate(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		var payload createGuestClientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		force := payload.Force
		if raw := r.URL.Query().Get("force"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid force parameter"))
				return
			}
			force = parsed
		}

		outcome, err := svc.Create(r.Context(), payload.toCreateDTO(), force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if outcome.Warning {
			responses.WriteSuccess(w, outcome)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, outcome)
	}
}

// GuestClientList pages through the guest directory.
func GuestClientList(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeUpgraded := false
		if parsed, err := validators.ParseQueryBool(r, "include_upgraded"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if parsed != nil {
			includeUpgraded = *parsed
		}

		result, err := svc.List(r.Context(), guestsvc.ListParams{
			IncludeUpgraded: includeUpgraded,
			Limit:           limit,
			Cursor:          r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GuestClientGet fetches a single guest client.
func GuestClientGet(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		guestID, err := guestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		guest, err := svc.Get(r.Context(), guestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, guest)
	}
}

// GuestClientUpdate applies partial edits to a guest client.
func GuestClientUpdate(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		guestID, err := guestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateGuestClientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		guest, err := svc.Update(r.Context(), guestID, payload.toUpdateDTO())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, guest)
	}
}

// GuestClientDelete removes a guest client without tasks.
func GuestClientDelete(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		guestID, err := guestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), guestID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

// GuestClientSearch runs the fuzzy directory search.
func GuestClientSearch(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		query := validators.SanitizeString(r.URL.Query().Get("q"), 255)
		if query == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "search query is required"))
			return
		}

		matches, err := svc.Search(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": matches})
	}
}

// GuestClientUpgrade converts a guest into a registered account, carrying
// its task history over. Public endpoint, rate limited at the router.
func GuestClientUpgrade(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest client service unavailable"))
			return
		}

		guestID, err := guestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload guestsvc.UpgradeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpgradeToRegistered(r.Context(), guestID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type createGuestClientRequest struct {
	Name   string  `json:"name" validate:"required,min=1,max=255"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  *string `json:"phone,omitempty"`
	Course *string `json:"course,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Force  bool    `json:"force,omitempty"`
}

func (r createGuestClientRequest) toCreateDTO() guestsvc.CreateGuestClientDTO {
	return guestsvc.CreateGuestClientDTO{
		Name:   validators.SanitizeString(r.Name, 255),
		Email:  r.Email,
		Phone:  r.Phone,
		Course: r.Course,
		Notes:  r.Notes,
	}
}

type updateGuestClientRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  *string `json:"phone,omitempty"`
	Course *string `json:"course,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (r updateGuestClientRequest) toUpdateDTO() guestsvc.UpdateGuestClientDTO {
	dto := guestsvc.UpdateGuestClientDTO{
		Email:  r.Email,
		Phone:  r.Phone,
		Course: r.Course,
		Notes:  r.Notes,
	}
	if r.Name != nil {
		name := validators.SanitizeString(*r.Name, 255)
		dto.Name = &name
	}
	return dto
}

func guestIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "guestId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest client id")
	}
	return id, nil
}
