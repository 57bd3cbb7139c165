package gateway

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Observer receives gateway call outcomes. *observability.Metrics implements it.
type Observer interface {
	ObserveGatewayRequest(op, result string, elapsed time.Duration)
	SetCircuitBreakerState(name string, state int)
}

type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "paystack",
		MaxRequests:  10,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerClient guards a Client with a circuit breaker. Provider rejections (4xx)
// do not count against the breaker; network failures and 5xx responses do.
type BreakerClient struct {
	next     Client
	cb       *gobreaker.CircuitBreaker[any]
	observer Observer
	logger   zerolog.Logger
}

func NewBreakerClient(next Client, st BreakerSettings, observer Observer, logger zerolog.Logger) *BreakerClient {
	if st.Name == "" {
		st.Name = "paystack"
	}
	b := &BreakerClient{next: next, observer: observer, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= st.MinRequests && failureRatio >= st.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsRejection(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("gateway circuit breaker state changed")
			if b.observer != nil {
				b.observer.SetCircuitBreakerState(name, int(to))
			}
		},
	})
	if observer != nil {
		observer.SetCircuitBreakerState(st.Name, int(gobreaker.StateClosed))
	}
	return b
}

// State returns the breaker's current state name.
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

func (b *BreakerClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	return execute(b, OpInitialize, func() (*InitializeResult, error) {
		return b.next.Initialize(ctx, req)
	})
}

func (b *BreakerClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	return execute(b, OpVerify, func() (*Transaction, error) {
		return b.next.Verify(ctx, reference)
	})
}

func (b *BreakerClient) List(ctx context.Context, perPage, page int) (*ListResult, error) {
	return execute(b, OpList, func() (*ListResult, error) {
		return b.next.List(ctx, perPage, page)
	})
}

func (b *BreakerClient) Fetch(ctx context.Context, id string) (*Transaction, error) {
	return execute(b, OpFetch, func() (*Transaction, error) {
		return b.next.Fetch(ctx, id)
	})
}

func execute[T any](b *BreakerClient, op string, fn func() (*T, error)) (*T, error) {
	start := time.Now()
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	elapsed := time.Since(start)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.observe(op, "rejected_open", elapsed)
		return nil, &domainErrors.GatewayError{
			Op:      op,
			Message: "Payment provider is temporarily unavailable",
			Err:     domainErrors.ErrGatewayUnavailable,
		}
	}
	if err != nil {
		b.observe(op, "error", elapsed)
		return nil, err
	}
	b.observe(op, "ok", elapsed)

	res, _ := out.(*T)
	return res, nil
}

func (b *BreakerClient) observe(op, result string, elapsed time.Duration) {
	if b.observer != nil {
		b.observer.ObserveGatewayRequest(op, result, elapsed)
	}
}
