package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uara/dashboard/internal/middleware"
	"github.com/uara/dashboard/pkg/logger"
)

// RouterConfig holds the HTTP-facing settings.
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxBodyBytes      int64
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health   *HealthHandler
	Requests *RequestHandler
	Sizing   *SizingHandler
	Settings *SettingsHandler
	Accounts middleware.Provisioner
}

// NewRouter wires middleware and routes.
func NewRouter(cfg RouterConfig, h Handlers, log *logger.Logger) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = middleware.DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LimitBody(cfg.MaxBodyBytes))
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.Provision(h.Accounts))

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.Requests.List)
			r.Post("/", h.Requests.Create)
			r.Post("/bulk", h.Requests.CreateBulk)
			r.Put("/order", h.Requests.Reorder)
			r.Post("/analyze", h.Sizing.Analyze)
			r.Post("/submit", h.Sizing.Submit)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.ValidateRequestID("id"))

				r.Get("/", h.Requests.Get)
				r.Patch("/", h.Requests.Update)
				r.Delete("/", h.Requests.Delete)
				r.Put("/status", h.Requests.UpdateStatus)
				r.Post("/comments", h.Requests.AddComment)
				r.Post("/attachments", h.Requests.AddAttachment)
			})
		})

		r.Get("/settings", h.Settings.Get)
		r.Put("/settings/notifications", h.Settings.UpdateNotifications)
		r.Delete("/account", h.Settings.DeleteAccount)
	})

	return r
}
