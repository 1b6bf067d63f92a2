package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/carehub-backend/api/controllers"
	emergencycontrollers "github.com/angelmondragon/carehub-backend/api/controllers/emergency"
	loancontrollers "github.com/angelmondragon/carehub-backend/api/controllers/loans"
	notificationcontrollers "github.com/angelmondragon/carehub-backend/api/controllers/notifications"
	sessioncontrollers "github.com/angelmondragon/carehub-backend/api/controllers/sessions"
	stockcontrollers "github.com/angelmondragon/carehub-backend/api/controllers/stock"
	walletcontrollers "github.com/angelmondragon/carehub-backend/api/controllers/wallet"
	webhookcontrollers "github.com/angelmondragon/carehub-backend/api/controllers/webhooks"
	"github.com/angelmondragon/carehub-backend/api/middleware"
	"github.com/angelmondragon/carehub-backend/internal/deposits"
	"github.com/angelmondragon/carehub-backend/internal/emergency"
	"github.com/angelmondragon/carehub-backend/internal/loans"
	"github.com/angelmondragon/carehub-backend/internal/notifications"
	"github.com/angelmondragon/carehub-backend/internal/referrals"
	"github.com/angelmondragon/carehub-backend/internal/sessions"
	"github.com/angelmondragon/carehub-backend/internal/stock"
	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/config"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
	"github.com/angelmondragon/carehub-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface exposes.
type Services struct {
	Wallet    wallet.Service
	Loans     loans.Service
	Sessions  sessions.Service
	Stock     stock.Service
	Deposits  deposits.Service
	Referrals referrals.Service
	Emergency emergency.Service

	Notifications notifications.Service
}

// Infra groups the shared clients used by middleware and health checks.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, infra.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": infra.DB,
			"redis":    infra.Redis,
		}))
	})
	if infra.Metrics != nil {
		r.Handle("/metrics", infra.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(cfg.RateLimit.WebhookRequestsPerMinute, logg))
		r.Post("/payments", webhookcontrollers.Payments(svc.Deposits, cfg.Deposits.WebhookSecret, logg))
	})

	r.Route("/api/internal", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Post("/signups", controllers.Signup(svc.Referrals, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimitByUser(cfg.RateLimit.APIRequestsPerMinute, logg))
		if infra.Idempotency != nil {
			r.Use(middleware.Idempotency(infra.Idempotency, cfg.RateLimit.IdempotencyTTL, logg))
		}

		r.Route("/wallet", func(r chi.Router) {
			r.Post("/", walletcontrollers.Create(svc.Wallet, logg))
			r.Get("/", walletcontrollers.Get(svc.Wallet, logg))
			r.Get("/balance", walletcontrollers.Balance(svc.Wallet, logg))
			r.Post("/transfers", walletcontrollers.Transfer(svc.Wallet, logg))
			r.Get("/transactions", walletcontrollers.Transactions(svc.Wallet, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", loancontrollers.Request(svc.Loans, logg))
			r.Get("/", loancontrollers.List(svc.Loans, logg))
			r.Get("/history", loancontrollers.History(svc.Loans, logg))
			r.Get("/eligibility", loancontrollers.Eligibility(svc.Loans, logg))
			r.Post("/{loanId}/repayments", loancontrollers.Repay(svc.Loans, logg))
		})

		r.Route("/medical-issues", func(r chi.Router) {
			r.Get("/", sessioncontrollers.ListIssues(svc.Sessions, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Post("/", sessioncontrollers.CreateIssue(svc.Sessions, logg))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessioncontrollers.List(svc.Sessions, logg))
			r.Post("/", sessioncontrollers.Book(svc.Sessions, logg))
			r.Post("/any", sessioncontrollers.BookAny(svc.Sessions, logg))
			r.Post("/match", sessioncontrollers.Match(svc.Sessions, logg))
			r.With(middleware.RequireRole(logg, enums.RoleMedicalPractitioner)).Get("/pending", sessioncontrollers.Pending(svc.Sessions, logg))
			r.Get("/{sessionId}", sessioncontrollers.Detail(svc.Sessions, logg))
			r.Patch("/{sessionId}/status", sessioncontrollers.UpdateStatus(svc.Sessions, logg))
			r.With(middleware.RequireRole(logg, enums.RoleMedicalPractitioner)).Post("/{sessionId}/review", sessioncontrollers.Review(svc.Sessions, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			sellers := middleware.RequireRole(logg, enums.RolePharmacy, enums.RoleMedLab)
			r.Get("/", stockcontrollers.List(svc.Stock, logg))
			r.With(sellers).Post("/", stockcontrollers.Create(svc.Stock, logg))
			r.With(sellers).Patch("/{itemId}/quantity", stockcontrollers.AdjustQuantity(svc.Stock, logg))
			r.Post("/{itemId}/purchase", stockcontrollers.Buy(svc.Stock, logg))
		})

		r.Route("/emergency", func(r chi.Router) {
			r.Post("/requests", emergencycontrollers.Request(svc.Emergency, logg))
			r.With(middleware.RequireRole(logg, enums.RoleEmergencyServices)).Get("/records", emergencycontrollers.Records(svc.Emergency, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationcontrollers.List(svc.Notifications, logg))
			r.Post("/read-all", notificationcontrollers.MarkAllRead(svc.Notifications, logg))
			r.Post("/{notificationId}/read", notificationcontrollers.MarkRead(svc.Notifications, logg))
		})
	})

	return r
}
