package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/checkout/internal/gateway"
	"github.com/cassiomorais/checkout/internal/infrastructure/config"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/checkout/internal/infrastructure/redis"
	"github.com/cassiomorais/checkout/internal/repository/postgres"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/cassiomorais/checkout/internal/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the process-wide dependencies shared by cmd/api and cmd/worker.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Gateway  *gateway.BreakerClient
	Payments *service.PaymentService

	TxManager       *postgres.TxManager
	OutboxRepo      *postgres.OutboxRepository
	IdempotencyRepo *postgres.IdempotencyRepository

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, serviceName, os.Stdout)
	logger.Info().Str("instance_id", cfg.InstanceID).Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Str("endpoint", cfg.Observability.JaegerEndpoint).Msg("Tracing enabled")
		}
	}

	if cfg.Observability.EnableMetrics {
		app.Metrics = observability.NewMetrics(metricsNamespace, prometheus.DefaultRegisterer)
		logger.Info().Msg("Metrics initialized")
	}

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.Pool = pool
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	app.Redis = redisClient
	logger.Info().Msg("Connected to Redis")

	app.Gateway = newGateway(cfg, app.Metrics, observability.Component(logger, "gateway"))

	app.TxManager = postgres.NewTxManager(pool, postgres.WithLockTimeout(cfg.Database.LockTimeout))
	app.OutboxRepo = postgres.NewOutboxRepository(pool)
	app.IdempotencyRepo = postgres.NewIdempotencyRepository(pool)
	app.Payments = service.NewPaymentService(
		postgres.NewTransactionRepository(pool),
		app.OutboxRepo,
		app.TxManager,
		app.Gateway,
		webhook.NewValidator(cfg.Paystack.SecretKey),
		service.WithLogger(observability.Component(logger, "payments")),
		service.WithRecorder(recorder(app.Metrics)),
	)

	return app, nil
}

// newGateway builds the Paystack client, or the in-memory one when
// paystack.mock is set, behind the circuit breaker.
func newGateway(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) *gateway.BreakerClient {
	var client gateway.Client
	if cfg.Paystack.Mock {
		logger.Warn().Msg("Using mock payment gateway")
		client = gateway.NewMockClient()
	} else {
		client = gateway.NewPaystackClient(gateway.PaystackConfig{
			BaseURL:     cfg.Paystack.BaseURL,
			SecretKey:   cfg.Paystack.SecretKey,
			CallbackURL: cfg.Paystack.CallbackURL,
			Timeout:     cfg.Paystack.Timeout,
		})
	}

	cb := cfg.Paystack.CircuitBreaker
	settings := gateway.DefaultBreakerSettings()
	if cb.MaxRequests > 0 {
		settings.MaxRequests = cb.MaxRequests
	}
	if cb.Interval > 0 {
		settings.Interval = cb.Interval
	}
	if cb.Timeout > 0 {
		settings.Timeout = cb.Timeout
	}
	if cb.MinRequests > 0 {
		settings.MinRequests = cb.MinRequests
	}
	if cb.FailureRatio > 0 {
		settings.FailureRatio = cb.FailureRatio
	}

	var observer gateway.Observer
	if metrics != nil {
		observer = metrics
	}
	return gateway.NewBreakerClient(client, settings, observer, logger)
}

func recorder(metrics *observability.Metrics) service.Recorder {
	if metrics == nil {
		return nil
	}
	return metrics
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		if err := observability.ShutdownTracer(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
