package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/checkout/internal/infrastructure/config"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/checkout/internal/middleware"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	DB               Pinger
	Redis            Pinger
	PaymentService   *service.PaymentService
	IdempotencyStore customMW.IdempotencyStore
	Metrics          *observability.Metrics
	MetricsHandler   http.Handler
	GatewayState     func() string
	Logger           zerolog.Logger
	ServiceName      string

	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	Payment   config.PaymentConfig
	JWTSecret string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(customMW.Tracing(deps.ServiceName))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{customMW.RequestIDHeader},
		AllowCredentials: deps.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.DB, deps.Redis, deps.GatewayState)
	paymentH := NewPaymentController(deps.PaymentService, deps.Payment.ClientURL, deps.Payment.MaxBodyBytes)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Get("/payment/callback", paymentH.Callback)

	r.Route("/api/payments", func(r chi.Router) {
		limited := r.With()
		if deps.RateLimit.Requests > 0 {
			limited = r.With(customMW.RateLimit(deps.RateLimit.Requests, deps.RateLimit.Window))
		}

		initialize := limited
		if deps.IdempotencyStore != nil {
			initialize = limited.With(customMW.Idempotency(deps.IdempotencyStore, deps.Payment.IdempotencyTTL))
		}
		initialize.Post("/initialize", paymentH.Initialize)
		limited.Post("/webhook", paymentH.Webhook)

		r.Get("/verify/{reference}", paymentH.Verify)
		r.Get("/transactions", paymentH.ListTransactions)
		r.Get("/transaction/{reference}", paymentH.GetTransaction)

		// provider passthroughs are operator-only
		if deps.JWTSecret != "" {
			r.Group(func(r chi.Router) {
				r.Use(customMW.RequireAuth(deps.JWTSecret))
				r.Get("/gateway/transactions", paymentH.GatewayTransactions)
				r.Get("/gateway/transactions/{id}", paymentH.GatewayTransaction)
			})
		}
	})

	return r
}
