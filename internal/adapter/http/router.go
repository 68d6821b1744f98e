package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/adapter/http/handler"
	"github.com/iho/tontiflex/internal/adapter/http/middleware"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/auth"
	"github.com/iho/tontiflex/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AdhesionHandler    *handler.AdhesionHandler
	LoanHandler        *handler.LoanHandler
	RetraitHandler     *handler.RetraitHandler
	LedgerHandler      *handler.LedgerHandler
	TransactionHandler *handler.TransactionHandler
	HealthHandler      *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	// JWTManager enables bearer auth. Without it the actor comes from the
	// X-Actor-* headers set by the trusted upstream.
	JWTManager *auth.JWTManager
	// WebhookLimiter throttles provider notifications per source IP.
	WebhookLimiter *middleware.RateLimiter
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)

	// Health checks
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// Provider notifications are authenticated by their HMAC signature only.
	r.Group(func(r chi.Router) {
		if cfg.WebhookLimiter != nil {
			r.Use(cfg.WebhookLimiter.Limit)
		}
		r.Post("/webhooks/payment", cfg.TransactionHandler.Webhook)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		} else {
			r.Use(middleware.HeaderActor)
		}

		// after auth so keys are scoped to the actor
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).Wrap)
		}

		r.Route("/adhesions", func(r chi.Router) {
			r.Post("/", cfg.AdhesionHandler.Submit)
			r.Get("/", cfg.AdhesionHandler.List)
			r.Get("/{id}", cfg.AdhesionHandler.Get)
			r.Post("/{id}/validate", cfg.AdhesionHandler.Validate)
			r.Post("/{id}/reject", cfg.AdhesionHandler.Reject)
			r.Post("/{id}/pay", cfg.AdhesionHandler.Pay)
			r.Post("/{id}/cancel-payment", cfg.AdhesionHandler.CancelPayment)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", cfg.LoanHandler.Apply)
			r.Get("/{id}", cfg.LoanHandler.Get)
			r.Get("/{id}/schedule", cfg.LoanHandler.Schedule)
			r.Put("/{id}/terms", cfg.LoanHandler.DefineTerms)
			r.Post("/{id}/review", cfg.LoanHandler.Review)
			r.Post("/{id}/transfer", cfg.LoanHandler.Transfer)
			r.Post("/{id}/approve", cfg.LoanHandler.Approve)
			r.Post("/{id}/disburse", cfg.LoanHandler.Disburse)
			r.Post("/{id}/reject", cfg.LoanHandler.Reject)
			r.Post("/{id}/repay", cfg.LoanHandler.Repay)
		})

		r.Route("/retraits", func(r chi.Router) {
			r.Post("/", cfg.RetraitHandler.Request)
			r.Get("/{id}", cfg.RetraitHandler.Get)
			r.Post("/{id}/approve", cfg.RetraitHandler.Approve)
			r.Post("/{id}/dispatch", cfg.RetraitHandler.Dispatch)
			r.Post("/{id}/reject", cfg.RetraitHandler.Reject)
		})

		r.Post("/deposits", cfg.LedgerHandler.Deposit)
		r.Get("/balances/{owner}/{kind}/{pool}", cfg.LedgerHandler.Balance)

		r.Get("/transactions/{id}", cfg.TransactionHandler.Get)

		r.With(middleware.RequireRole(domain.RoleAdmin)).
			Post("/admin/reconcile", cfg.TransactionHandler.Reconcile)
	})

	return r
}
