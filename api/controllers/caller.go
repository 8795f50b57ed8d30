package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/api/middleware"
	"github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
)

// callerFromContext rebuilds the authenticated principal from the request
// context seeded by the auth middleware.
func callerFromContext(ctx context.Context) (tasks.Caller, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return tasks.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return tasks.Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return tasks.Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return tasks.Caller{ID: id, Role: role}, nil
}
