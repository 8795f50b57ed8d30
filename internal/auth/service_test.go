package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-backend/internal/users"
	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierhq/atelier-backend/pkg/errors"
	"github.com/atelierhq/atelier-backend/pkg/security"
)

func setupAuthTestDB(t *testing.T) *db.Client {
	t.Helper()

	client, err := db.New(context.Background(), config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: "sqlite",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, client.DB().Exec(`CREATE TABLE IF NOT EXISTS users (
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
);`).Error)
	require.NoError(t, client.DB().Exec("DELETE FROM users").Error)

	return client
}

func newAuthService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(client.DB()),
		DB:             client,
		PasswordConfig: config.PasswordConfig{},
		JWTConfig:      config.JWTConfig{Secret: "test-secret", Issuer: "atelier-test", ExpirationMinutes: 30},
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterCreatesPendingClient(t *testing.T) {
	client := setupAuthTestDB(t)
	svc := newAuthService(t, client)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "Nina Petrova",
		Email:    "Nina@Example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "nina@example.com", dto.Email)
	assert.Equal(t, enums.RoleClient, dto.Role)
	assert.Equal(t, enums.UserStatusPending, dto.Status)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	client := setupAuthTestDB(t)
	svc := newAuthService(t, client)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FullName: "First",
		Email:    "dup@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		FullName: "Second",
		Email:    "DUP@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func seedLoginUser(t *testing.T, client *db.Client, status enums.UserStatus, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: hash,
		Role:         enums.RoleClient,
		FullName:     "Login User",
		Status:       status,
	}
	require.NoError(t, client.DB().Create(user).Error)
	return user
}

func TestLoginApprovedUser(t *testing.T) {
	client := setupAuthTestDB(t)
	svc := newAuthService(t, client)
	user := seedLoginUser(t, client, enums.UserStatusApproved, "hunter2hunter2")

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestLoginPendingUserForbidden(t *testing.T) {
	client := setupAuthTestDB(t)
	svc := newAuthService(t, client)
	user := seedLoginUser(t, client, enums.UserStatusPending, "hunter2hunter2")

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter2hunter2"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	client := setupAuthTestDB(t)
	svc := newAuthService(t, client)
	user := seedLoginUser(t, client, enums.UserStatusApproved, "hunter2hunter2")

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}
