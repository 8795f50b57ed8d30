package guestclients

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-backend/internal/users"
	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
)

func setupGuestsTestDB(t *testing.T) *db.Client {
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
		`CREATE TABLE IF NOT EXISTS guest_clients (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  course TEXT,
  notes TEXT,
  upgraded_to_user_id TEXT,
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
	for _, table := range []string{"users", "guest_clients", "tasks", "outbox_events"} {
		require.NoError(t, client.DB().Exec("DELETE FROM "+table).Error)
	}

	return client
}

func newGuestsService(t *testing.T, client *db.Client) (Service, Repository) {
	t.Helper()
	repo := NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repo:           repo,
		UserRepo:       users.NewRepository(client.DB()),
		DB:             client,
		Events:         outbox.NewService(outbox.NewRepository(client.DB()), nil),
		PasswordConfig: config.PasswordConfig{},
	})
	require.NoError(t, err)
	return svc, repo
}

func seedGuest(t *testing.T, client *db.Client, name string, mutate ...func(*models.GuestClient)) *models.GuestClient {
	t.Helper()
	guest := &models.GuestClient{ID: uuid.New(), Name: name}
	for _, fn := range mutate {
		fn(guest)
	}
	require.NoError(t, client.DB().Create(guest).Error)
	return guest
}

func seedGuestTask(t *testing.T, client *db.Client, guestID uuid.UUID) *models.Task {
	t.Helper()
	task := &models.Task{ID: uuid.New(), TaskName: "commission", GuestClientID: &guestID}
	require.NoError(t, client.DB().Create(task).Error)
	return task
}

func TestCreateGuest(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	outcome, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe"}, false)
	require.NoError(t, err)
	assert.False(t, outcome.Warning)
	require.NotNil(t, outcome.Guest)
	assert.Equal(t, "Jane Doe", outcome.Guest.Name)
}

func TestCreateDuplicateNameWarnsWithoutCreating(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	first, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe"}, false)
	require.NoError(t, err)
	require.NotNil(t, first.Guest)

	second, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe", Phone: strptr("555-1234")}, false)
	require.NoError(t, err)
	assert.True(t, second.Warning)
	assert.Nil(t, second.Guest)
	assert.Len(t, second.Duplicates, 1)

	var count int64
	require.NoError(t, client.DB().Model(&models.GuestClient{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "warning response must not create a row")

	// retrying with force proceeds
	forced, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe", Phone: strptr("555-1234")}, true)
	require.NoError(t, err)
	assert.False(t, forced.Warning)
	require.NotNil(t, forced.Guest)
}

func TestCreateSameNameWithoutPhoneWarnsNotConflicts(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	first, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe"}, false)
	require.NoError(t, err)
	require.NotNil(t, first.Guest)

	// no phone on either side: never an exact duplicate, always a warning
	second, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe"}, false)
	require.NoError(t, err)
	assert.True(t, second.Warning)
	assert.Nil(t, second.Guest)
	assert.Len(t, second.Duplicates, 1)

	forced, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe"}, true)
	require.NoError(t, err)
	assert.False(t, forced.Warning)
	require.NotNil(t, forced.Guest)
}

func TestCreateExactDuplicateConflicts(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	_, err := svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe", Phone: strptr("555-1234")}, false)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateGuestClientDTO{Name: "Jane Doe", Phone: strptr("555-1234")}, true)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestListGuestsPaginatesAcrossPages(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		seedGuest(t, client, fmt.Sprintf("Guest %d", i), func(g *models.GuestClient) {
			g.CreatedAt = created
		})
	}

	first, err := svc.List(context.Background(), ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(context.Background(), ListParams{Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
	assert.Equal(t, "Guest 0", second.Items[0].Name)
}

func TestUpgradeToRegisteredTransfersEverything(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	guest := seedGuest(t, client, "Marta Keller", func(g *models.GuestClient) {
		g.Phone = strptr("555-2222")
	})
	for i := 0; i < 3; i++ {
		seedGuestTask(t, client, guest.ID)
	}

	result, err := svc.UpgradeToRegistered(context.Background(), guest.ID, UpgradeRequest{
		Email:    "marta@example.com",
		Password: "long-enough-pw",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TasksTransferred)
	require.NotEqual(t, uuid.Nil, result.UserID)

	var user models.User
	require.NoError(t, client.DB().First(&user, "id = ?", result.UserID).Error)
	assert.Equal(t, enums.UserStatusApproved, user.Status)
	assert.Equal(t, "Marta Keller", user.FullName)

	var tasks []models.Task
	require.NoError(t, client.DB().Find(&tasks).Error)
	for _, task := range tasks {
		require.NotNil(t, task.ClientID)
		assert.Equal(t, result.UserID, *task.ClientID)
		assert.Nil(t, task.GuestClientID)
	}

	var stored models.GuestClient
	require.NoError(t, client.DB().First(&stored, "id = ?", guest.ID).Error)
	require.NotNil(t, stored.UpgradedToUserID)
	assert.Equal(t, result.UserID, *stored.UpgradedToUserID)
}

func TestUpgradeTwiceConflicts(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	guest := seedGuest(t, client, "Once Only")
	_, err := svc.UpgradeToRegistered(context.Background(), guest.ID, UpgradeRequest{
		Email:    "once@example.com",
		Password: "long-enough-pw",
	})
	require.NoError(t, err)

	_, err = svc.UpgradeToRegistered(context.Background(), guest.ID, UpgradeRequest{
		Email:    "twice@example.com",
		Password: "long-enough-pw",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestTransferGuestTasksIsIdempotent(t *testing.T) {
	client := setupGuestsTestDB(t)
	_, repo := newGuestsService(t, client)

	guest := seedGuest(t, client, "Idem Potent")
	userID := uuid.New()
	seedGuestTask(t, client, guest.ID)
	seedGuestTask(t, client, guest.ID)

	first, err := repo.TransferGuestTasks(context.Background(), guest.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)

	second, err := repo.TransferGuestTasks(context.Background(), guest.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
}

func TestMergeIntoPendingUser(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	admin := &models.User{ID: uuid.New(), Email: "admin@example.com", PasswordHash: "x", Role: enums.RoleAdmin, FullName: "Admin", Status: enums.UserStatusApproved}
	require.NoError(t, client.DB().Create(admin).Error)
	pending := &models.User{ID: uuid.New(), Email: "pending@example.com", PasswordHash: "x", Role: enums.RoleClient, FullName: "Pending", Status: enums.UserStatusPending}
	require.NoError(t, client.DB().Create(pending).Error)

	guest := seedGuest(t, client, "Pending Person")
	seedGuestTask(t, client, guest.ID)

	result, err := svc.MergeIntoUser(context.Background(), admin.ID, pending.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TasksTransferred)

	var user models.User
	require.NoError(t, client.DB().First(&user, "id = ?", pending.ID).Error)
	assert.Equal(t, enums.UserStatusApproved, user.Status)

	var stored models.GuestClient
	require.NoError(t, client.DB().First(&stored, "id = ?", guest.ID).Error)
	require.NotNil(t, stored.UpgradedToUserID)
	assert.Equal(t, pending.ID, *stored.UpgradedToUserID)
}

func TestMergeIntoApprovedUserConflicts(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	admin := &models.User{ID: uuid.New(), Email: "admin2@example.com", PasswordHash: "x", Role: enums.RoleAdmin, FullName: "Admin", Status: enums.UserStatusApproved}
	require.NoError(t, client.DB().Create(admin).Error)
	approved := &models.User{ID: uuid.New(), Email: "approved@example.com", PasswordHash: "x", Role: enums.RoleClient, FullName: "Approved", Status: enums.UserStatusApproved}
	require.NoError(t, client.DB().Create(approved).Error)

	guest := seedGuest(t, client, "Mismatch")

	_, err := svc.MergeIntoUser(context.Background(), admin.ID, approved.ID, guest.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// nothing changed
	var stored models.GuestClient
	require.NoError(t, client.DB().First(&stored, "id = ?", guest.ID).Error)
	assert.Nil(t, stored.UpgradedToUserID)
}

func TestUpgradedGuestExcludedFromSearchAndMatches(t *testing.T) {
	client := setupGuestsTestDB(t)
	svc, _ := newGuestsService(t, client)

	userID := uuid.New()
	seedGuest(t, client, "Retired Guest", func(g *models.GuestClient) {
		g.UpgradedToUserID = &userID
	})
	seedGuest(t, client, "Active Guest")

	results, err := svc.Search(context.Background(), "Guest")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Active Guest", results[0].Name)

	matches, err := svc.FindPotentialMatches(context.Background(), "Guest Retired", "", "")
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "Retired Guest", m.Guest.Name)
	}
}
