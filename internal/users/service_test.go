package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
)

func setupUsersTestDB(t *testing.T) *db.Client {
	t.Helper()

	client, err := db.New(context.Background(), config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: "sqlite",
	}, nil)
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'client',
  full_name TEXT NOT NULL,
  phone TEXT,
  course TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  approved_by TEXT,
  approved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  task_name TEXT NOT NULL,
  task_description TEXT,
  status TEXT NOT NULL DEFAULT 'not_started',
  quote_status TEXT NOT NULL DEFAULT 'pending_quote',
  expected_amount TEXT,
  quoted_amount TEXT,
  is_paid INTEGER NOT NULL DEFAULT 0,
  priority TEXT NOT NULL DEFAULT 'medium',
  quantity INTEGER NOT NULL DEFAULT 1,
  commissioned_at DATETIME,
  delivered_at DATETIME,
  notes TEXT,
  client_id TEXT,
  guest_client_id TEXT,
  client_name TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, client.DB().Exec(stmt).Error)
	}
	for _, table := range []string{"users", "tasks", "outbox_events"} {
		require.NoError(t, client.DB().Exec("DELETE FROM "+table).Error)
	}

	return client
}

func newUsersService(t *testing.T, client *db.Client) (Service, Repository) {
	t.Helper()
	repo := NewRepository(client.DB())
	events := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(repo, client, events)
	require.NoError(t, err)
	return svc, repo
}

func seedUser(t *testing.T, client *db.Client, status enums.UserStatus) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         enums.RoleClient,
		FullName:     "Test User",
		Status:       status,
	}
	require.NoError(t, client.DB().Create(user).Error)
	return user
}

func TestCreateAssignsIDClientSide(t *testing.T) {
	client := setupUsersTestDB(t)
	_, repo := newUsersService(t, client)

	user, err := repo.Create(context.Background(), CreateUserDTO{
		Email:        "ines@example.com",
		PasswordHash: "x",
		FullName:     "Ines Vogel",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	var stored models.User
	require.NoError(t, client.DB().First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, user.ID, stored.ID)
}

func TestApprovePendingUser(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	admin := seedUser(t, client, enums.UserStatusApproved)
	pending := seedUser(t, client, enums.UserStatusPending)

	dto, err := svc.Approve(context.Background(), admin.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.UserStatusApproved, dto.Status)
	require.NotNil(t, dto.ApprovedBy)
	assert.Equal(t, admin.ID, *dto.ApprovedBy)

	var stored models.User
	require.NoError(t, client.DB().First(&stored, "id = ?", pending.ID).Error)
	assert.Equal(t, enums.UserStatusApproved, stored.Status)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventAccountApproved, pending.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestApproveNonPendingUserConflicts(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	admin := seedUser(t, client, enums.UserStatusApproved)
	approved := seedUser(t, client, enums.UserStatusApproved)

	_, err := svc.Approve(context.Background(), admin.ID, approved.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestApproveMissingUserNotFound(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	admin := seedUser(t, client, enums.UserStatusApproved)

	_, err := svc.Approve(context.Background(), admin.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSuspendAndUnsuspend(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	admin := seedUser(t, client, enums.UserStatusApproved)
	target := seedUser(t, client, enums.UserStatusApproved)

	dto, err := svc.Suspend(context.Background(), admin.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.UserStatusSuspended, dto.Status)

	dto, err = svc.Unsuspend(context.Background(), admin.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.UserStatusApproved, dto.Status)

	_, err = svc.Unsuspend(context.Background(), admin.ID, target.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestDeleteUserWithTasksConflicts(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	owner := seedUser(t, client, enums.UserStatusApproved)

	task := &models.Task{
		ID:       uuid.New(),
		TaskName: "banner",
		ClientID: &owner.ID,
	}
	require.NoError(t, client.DB().Create(task).Error)

	err := svc.Delete(context.Background(), owner.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	require.NoError(t, client.DB().Delete(&models.Task{}, "id = ?", task.ID).Error)
	require.NoError(t, svc.Delete(context.Background(), owner.ID))
}

func TestListUsersByStatus(t *testing.T) {
	client := setupUsersTestDB(t)
	svc, _ := newUsersService(t, client)
	seedUser(t, client, enums.UserStatusPending)
	seedUser(t, client, enums.UserStatusPending)
	seedUser(t, client, enums.UserStatusApproved)

	status := enums.UserStatusPending
	result, err := svc.List(context.Background(), ListParams{Status: &status})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	for _, item := range result.Items {
		assert.Equal(t, enums.UserStatusPending, item.Status)
	}
}
