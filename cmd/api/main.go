package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/atelierhq/atelier-backend/api/routes"
	"github.com/atelierhq/atelier-backend/internal/auth"
	"github.com/atelierhq/atelier-backend/internal/files"
	"github.com/atelierhq/atelier-backend/internal/guestclients"
	"github.com/atelierhq/atelier-backend/internal/messages"
	"github.com/atelierhq/atelier-backend/internal/notifications"
	"github.com/atelierhq/atelier-backend/internal/tasks"
	"github.com/atelierhq/atelier-backend/internal/users"
	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db"
	"github.com/atelierhq/atelier-backend/pkg/logger"
	"github.com/atelierhq/atelier-backend/pkg/migrate"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
	"github.com/atelierhq/atelier-backend/pkg/redis"
	"github.com/atelierhq/atelier-backend/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := newStore(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap file storage", err)
		os.Exit(1)
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	userRepo := users.NewRepository(dbClient.DB())
	taskRepo := tasks.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(userRepo, dbClient, events)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	guestService, err := guestclients.NewService(guestclients.ServiceParams{
		Repo:           guestclients.NewRepository(dbClient.DB()),
		UserRepo:       userRepo,
		DB:             dbClient,
		Events:         events,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create guest client service", err)
		os.Exit(1)
	}

	taskService, err := tasks.NewService(tasks.ServiceParams{
		Repo:   taskRepo,
		DB:     dbClient,
		Events: events,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create task service", err)
		os.Exit(1)
	}

	messageService, err := messages.NewService(messages.ServiceParams{
		Repo:     messages.NewRepository(dbClient.DB()),
		TaskRepo: taskRepo,
		DB:       dbClient,
		Events:   events,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message service", err)
		os.Exit(1)
	}

	fileService, err := files.NewService(files.ServiceParams{
		Repo:     files.NewRepository(dbClient.DB()),
		TaskRepo: taskRepo,
		Store:    store,
		DB:       dbClient,
		Events:   events,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create file service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, nil, routes.Services{
			Auth:          authService,
			Users:         userService,
			GuestClients:  guestService,
			Tasks:         taskService,
			Messages:      messageService,
			Files:         fileService,
			Notifications: notificationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// newStore picks the upload backend: bucket with local fallback when a
// bucket is configured, plain local disk otherwise.
func newStore(cfg *config.Config, logg *logger.Logger) (storage.Store, error) {
	local, err := storage.NewLocalStore(cfg.Storage.LocalFallbackDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.BucketName == "" {
		return local, nil
	}
	bucket, err := storage.NewBucketStore(cfg.Storage, logg)
	if err != nil {
		return nil, err
	}
	return storage.NewFallbackStore(bucket, local, logg), nil
}
