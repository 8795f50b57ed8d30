package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
)

func setupNotificationsTestDB(t *testing.T) *db.Client {
	t.Helper()

	client, err := db.New(context.Background(), config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: "sqlite",
	}, nil)
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
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
	}
	for _, stmt := range schema {
		require.NoError(t, client.DB().Exec(stmt).Error)
	}
	for _, table := range []string{"notifications", "users"} {
		require.NoError(t, client.DB().Exec("DELETE FROM "+table).Error)
	}

	return client
}

func seedNotification(t *testing.T, client *db.Client, userID uuid.UUID, read bool, createdAt time.Time) uuid.UUID {
	t.Helper()
	row := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeStatusUpdate,
		Title:     "Task status updated",
		Message:   "your task moved along",
		CreatedAt: createdAt,
	}
	if read {
		now := time.Now().UTC()
		row.ReadAt = &now
	}
	require.NoError(t, client.DB().Create(&row).Error)
	return row.ID
}

func TestListScopedToUserWithUnreadFilter(t *testing.T) {
	client := setupNotificationsTestDB(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	seedNotification(t, client, userID, false, base)
	seedNotification(t, client, userID, true, base.Add(time.Minute))
	seedNotification(t, client, uuid.New(), false, base.Add(2*time.Minute))

	all, err := svc.List(ctx, ListParams{UserID: userID})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	unread, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)
	assert.Nil(t, unread.Items[0].ReadAt)

	count, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListPaginatesWithCursor(t *testing.T) {
	client := setupNotificationsTestDB(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedNotification(t, client, userID, false, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
}

func TestMarkReadOwnershipAndNotFound(t *testing.T) {
	client := setupNotificationsTestDB(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	notifID := seedNotification(t, client, userID, false, time.Now().UTC())

	// A different user cannot read someone else's notification.
	err = svc.MarkRead(ctx, uuid.New(), notifID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	require.NoError(t, svc.MarkRead(ctx, userID, notifID))

	// Marking an already-read notification is a no-op, not an error.
	require.NoError(t, svc.MarkRead(ctx, userID, notifID))

	err = svc.MarkRead(ctx, userID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestMarkAllRead(t *testing.T) {
	client := setupNotificationsTestDB(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	seedNotification(t, client, userID, false, base)
	seedNotification(t, client, userID, false, base.Add(time.Minute))
	seedNotification(t, client, userID, true, base.Add(2*time.Minute))

	count, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	remaining, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
}

func TestListAdminIDsOnlyApprovedAdmins(t *testing.T) {
	client := setupNotificationsTestDB(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	admin := models.User{
		ID:           uuid.New(),
		Email:        "admin@atelier.dev",
		PasswordHash: "x",
		Role:         enums.RoleAdmin,
		FullName:     "Admin",
		Status:       enums.UserStatusApproved,
	}
	suspended := models.User{
		ID:           uuid.New(),
		Email:        "old-admin@atelier.dev",
		PasswordHash: "x",
		Role:         enums.RoleAdmin,
		FullName:     "Former Admin",
		Status:       enums.UserStatusSuspended,
	}
	clientUser := models.User{
		ID:           uuid.New(),
		Email:        "client@atelier.dev",
		PasswordHash: "x",
		Role:         enums.RoleClient,
		FullName:     "Client",
		Status:       enums.UserStatusApproved,
	}
	for _, u := range []models.User{admin, suspended, clientUser} {
		require.NoError(t, client.DB().Create(&u).Error)
	}

	ids, err := repo.ListAdminIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, admin.ID, ids[0])
}
