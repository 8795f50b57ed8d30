package messages

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
)

func setupMessagesTestDB(t *testing.T) *db.Client {
	t.Helper()

	client, err := db.New(context.Background(), config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: "sqlite",
	}, nil)
	require.NoError(t, err)

	schema := []string{
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
		`CREATE TABLE IF NOT EXISTS task_messages (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  body TEXT NOT NULL,
  file_id TEXT,
  read_at DATETIME,
  created_at DATETIME
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
	for _, table := range []string{"tasks", "task_messages", "outbox_events"} {
		require.NoError(t, client.DB().Exec("DELETE FROM "+table).Error)
	}

	return client
}

func newMessagesService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		TaskRepo: tasks.NewRepository(client.DB()),
		DB:       client,
		Events:   outbox.NewService(outbox.NewRepository(client.DB()), nil),
	})
	require.NoError(t, err)
	return svc
}

func seedTask(t *testing.T, client *db.Client, ownerID *uuid.UUID) uuid.UUID {
	t.Helper()
	task := models.Task{
		ID:          uuid.New(),
		TaskName:    "Commission",
		Status:      enums.TaskStatusInProgress,
		QuoteStatus: enums.QuoteStatusApproved,
		Priority:    enums.PriorityMedium,
		Quantity:    1,
		ClientID:    ownerID,
	}
	require.NoError(t, client.DB().Create(&task).Error)
	return task.ID
}

func TestPostAndListThread(t *testing.T) {
	client := setupMessagesTestDB(t)
	svc := newMessagesService(t, client)
	ctx := context.Background()

	ownerID := uuid.New()
	owner := tasks.Caller{ID: ownerID, Role: enums.RoleClient}
	admin := tasks.Caller{ID: uuid.New(), Role: enums.RoleAdmin}
	taskID := seedTask(t, client, &ownerID)

	first, err := svc.Post(ctx, owner, taskID, CreateMessageDTO{Body: "any update?"})
	require.NoError(t, err)
	assert.Equal(t, ownerID, first.SenderID)
	assert.Nil(t, first.ReadAt)

	_, err = svc.Post(ctx, admin, taskID, CreateMessageDTO{Body: "shipping friday"})
	require.NoError(t, err)

	// The owner reads the thread: only the admin's message gets stamped.
	thread, err := svc.ListThread(ctx, owner, taskID)
	require.NoError(t, err)
	require.Len(t, thread.Items, 2)
	assert.EqualValues(t, 1, thread.MarkedRead)
	assert.Equal(t, "any update?", thread.Items[0].Body)
	assert.NotNil(t, thread.Items[1].ReadAt)

	again, err := svc.ListThread(ctx, owner, taskID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, again.MarkedRead)
}

func TestUnreadCountPerReader(t *testing.T) {
	client := setupMessagesTestDB(t)
	svc := newMessagesService(t, client)
	ctx := context.Background()

	ownerID := uuid.New()
	owner := tasks.Caller{ID: ownerID, Role: enums.RoleClient}
	admin := tasks.Caller{ID: uuid.New(), Role: enums.RoleAdmin}
	taskID := seedTask(t, client, &ownerID)

	_, err := svc.Post(ctx, owner, taskID, CreateMessageDTO{Body: "one"})
	require.NoError(t, err)
	_, err = svc.Post(ctx, owner, taskID, CreateMessageDTO{Body: "two"})
	require.NoError(t, err)

	adminUnread, err := svc.UnreadCount(ctx, admin, taskID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, adminUnread)

	ownerUnread, err := svc.UnreadCount(ctx, owner, taskID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ownerUnread)
}

func TestPostEmitsNewMessageEvent(t *testing.T) {
	client := setupMessagesTestDB(t)
	svc := newMessagesService(t, client)
	ctx := context.Background()

	ownerID := uuid.New()
	owner := tasks.Caller{ID: ownerID, Role: enums.RoleClient}
	taskID := seedTask(t, client, &ownerID)

	posted, err := svc.Post(ctx, owner, taskID, CreateMessageDTO{Body: "hello"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventNewMessage, posted.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPostRejectsEmptyBody(t *testing.T) {
	client := setupMessagesTestDB(t)
	svc := newMessagesService(t, client)

	ownerID := uuid.New()
	owner := tasks.Caller{ID: ownerID, Role: enums.RoleClient}
	taskID := seedTask(t, client, &ownerID)

	_, err := svc.Post(context.Background(), owner, taskID, CreateMessageDTO{Body: "   "})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestThreadAccessControl(t *testing.T) {
	client := setupMessagesTestDB(t)
	svc := newMessagesService(t, client)
	ctx := context.Background()

	ownerID := uuid.New()
	taskID := seedTask(t, client, &ownerID)
	stranger := tasks.Caller{ID: uuid.New(), Role: enums.RoleClient}

	_, err := svc.ListThread(ctx, stranger, taskID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = svc.Post(ctx, stranger, uuid.New(), CreateMessageDTO{Body: "hi"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
