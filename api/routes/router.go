package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/atelier-backend/api/controllers"
	"github.com/atelierhq/atelier-backend/api/middleware"
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
	"github.com/atelierhq/atelier-backend/pkg/redis"
)

// Services bundles the domain services the router mounts.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	GuestClients  guestclients.Service
	Tasks         tasks.Service
	Messages      messages.Service
	Files         files.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubP controllers.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    pingerOrNil(redisClient),
			"pubsub":   pubsubP,
		}))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
	})

	// Guest upgrade is public: the guest has no session to authenticate with.
	// It borrows the register limits under its own counter namespace.
	upgradePolicy := registerPolicy.Named("guest-upgrade")
	r.With(middleware.AuthRateLimit(upgradePolicy, redisClient, logg)).
		Post("/api/v1/guest-clients/{guestId}/upgrade", controllers.GuestClientUpgrade(svcs.GuestClients, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", controllers.TaskList(svcs.Tasks, logg))
			r.Post("/", controllers.TaskCreate(svcs.Tasks, logg))
			r.Route("/{taskId}", func(r chi.Router) {
				r.Get("/", controllers.TaskGet(svcs.Tasks, logg))
				r.Put("/", controllers.TaskUpdate(svcs.Tasks, logg))
				r.Patch("/toggle-payment", controllers.TaskTogglePayment(svcs.Tasks, logg))
				r.Post("/quote", controllers.TaskSendQuote(svcs.Tasks, logg))
				r.Post("/quote/respond", controllers.TaskRespondQuote(svcs.Tasks, logg))

				r.Get("/messages", controllers.MessageThread(svcs.Messages, logg))
				r.Post("/messages", controllers.MessagePost(svcs.Messages, logg))
				r.Get("/messages/unread", controllers.MessageUnreadCount(svcs.Messages, logg))

				r.Get("/files", controllers.FileList(svcs.Files, logg))
				r.Post("/files", controllers.FileUpload(svcs.Files, logg))
			})
		})

		r.Delete("/files/{fileId}", controllers.FileDelete(svcs.Files, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(svcs.Notifications, logg))
			r.Get("/unread", controllers.NotificationUnreadCount(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.NotificationMarkRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(svcs.Notifications, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Delete("/tasks/{taskId}", controllers.TaskDelete(svcs.Tasks, logg))

			r.Route("/guest-clients", func(r chi.Router) {
				r.Get("/", controllers.GuestClientList(svcs.GuestClients, logg))
				r.Post("/", controllers.GuestClientCreate(svcs.GuestClients, logg))
				r.Get("/search", controllers.GuestClientSearch(svcs.GuestClients, logg))
				r.Route("/{guestId}", func(r chi.Router) {
					r.Get("/", controllers.GuestClientGet(svcs.GuestClients, logg))
					r.Put("/", controllers.GuestClientUpdate(svcs.GuestClients, logg))
					r.Delete("/", controllers.GuestClientDelete(svcs.GuestClients, logg))
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.UserList(svcs.Users, logg))
				r.Route("/{userId}", func(r chi.Router) {
					r.Get("/", controllers.UserGet(svcs.Users, logg))
					r.Delete("/", controllers.UserDelete(svcs.Users, logg))
					r.Get("/matches", controllers.UserMatches(svcs.Users, svcs.GuestClients, logg))
					r.Post("/approve", controllers.UserApprove(svcs.Users, logg))
					r.Post("/reject", controllers.UserReject(svcs.Users, logg))
					r.Post("/suspend", controllers.UserSuspend(svcs.Users, logg))
					r.Post("/unsuspend", controllers.UserUnsuspend(svcs.Users, logg))
					r.Post("/merge/{guestId}", controllers.UserMergeGuest(svcs.GuestClients, logg))
				})
			})
		})
	})

	return r
}

// pingerOrNil avoids handing HealthReady a typed-nil interface when redis
// is not configured.
func pingerOrNil(c *redis.Client) controllers.Pinger {
	if c == nil {
		return nil
	}
	return c
}
