package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/betsave-core/internal/api/handlers"
	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/middleware"
	"github.com/baharkarakas/betsave-core/internal/services"
)

type RouterDeps struct {
	RateRPS   int
	Verifier  *auth.RequestVerifier
	Tokens    *auth.TokenManager
	Intake    *services.IntakeService
	Reports   *services.ReportService
	AdminAuth *services.AdminAuthService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			"X-Api-Key", "X-Signature", "X-Timestamp", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID},
		MaxAge:         300,
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	events := handlers.NewEventsHandler(d.Intake, d.Reports)
	admin := handlers.NewAdminHandler(d.Reports)
	authH := handlers.NewAuthHandler(d.AdminAuth)
	jwtMW := middleware.NewAuthMiddleware(d.Tokens)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- partners (HMAC) ----------
		r.Route("/partners", func(r chi.Router) {
			r.Use(middleware.PartnerAuth(d.Verifier))
			r.Post("/events", events.Ingest)
			r.Get("/events", events.List)
			r.Get("/events/{eventId}", events.Get)
		})

		// ---------- admin (JWT) ----------
		r.Route("/admin", func(r chi.Router) {
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/refresh", authH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtMW.Auth, middleware.RequireRole(auth.RoleAdmin))
				r.Get("/events", admin.Events)
				r.Get("/events/{id}", admin.Event)
				r.Get("/ledger", admin.Ledger)
				r.Get("/wallets/{userId}", admin.Wallet)
				r.Get("/webhook-failures", admin.WebhookFailures)
				r.Get("/overview", admin.Overview)
			})
		})
	})

	return r
}
