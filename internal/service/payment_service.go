package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/outbox"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/gateway"
	"github.com/cassiomorais/checkout/internal/webhook"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxReferenceAttempts = 3

// PaymentService owns the transaction lifecycle: it creates pending records,
// talks to the gateway, and folds verify, webhook and reconcile outcomes into
// the stored record.
type PaymentService struct {
	txRepo     transaction.Repository
	outboxRepo outbox.Repository
	txManager  TransactionManager
	gateway    gateway.Client
	validator  *webhook.Validator
	recorder   Recorder
	logger     zerolog.Logger
	tracer     trace.Tracer
}

type Option func(*PaymentService)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *PaymentService) { s.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(s *PaymentService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	txRepo transaction.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gw gateway.Client,
	validator *webhook.Validator,
	opts ...Option,
) *PaymentService {
	s := &PaymentService{
		txRepo:     txRepo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		gateway:    gw,
		validator:  validator,
		recorder:   nopRecorder{},
		logger:     zerolog.Nop(),
		tracer:     otel.Tracer("github.com/cassiomorais/checkout/internal/service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// outcome is what the provider told us about a charge.
type outcome struct {
	status   transaction.Status
	channel  string
	cardType string
	last4    string
	// fee computes the provider fee from the locked record
	fee func(t *transaction.Transaction) float64
}

// Initialize persists a pending transaction and registers it with the gateway.
// A gateway failure leaves the pending record in place for later reconciliation.
func (s *PaymentService) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Initialize")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, domainErrors.NewValidationError("email", "is required")
	}
	if req.Amount <= 0 {
		return nil, domainErrors.NewValidationError("amount", "must be greater than 0")
	}

	tx, err := s.createPending(ctx, email, req.Amount, req.Metadata)
	if err != nil {
		s.recorder.ObserveInitialize("store_error")
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.reference", tx.Reference))

	res, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Email:     tx.Email,
		Amount:    tx.Amount,
		Reference: tx.Reference,
		Metadata:  tx.Metadata,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("reference", tx.Reference).
			Msg("gateway initialize failed, transaction left pending")
		s.recorder.ObserveInitialize("gateway_error")
		recordError(span, err)
		return nil, err
	}

	s.logger.Info().
		Str("reference", tx.Reference).
		Str("email", tx.Email).
		Float64("amount", tx.Amount).
		Msg("payment initialized")
	s.recorder.ObserveInitialize("ok")

	return &InitializeResult{
		Reference:        tx.Reference,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		TransactionID:    tx.ID,
	}, nil
}

// createPending stores a new pending transaction, drawing a fresh reference
// when the store reports a collision.
func (s *PaymentService) createPending(ctx context.Context, email string, amount float64, metadata map[string]any) (*transaction.Transaction, error) {
	for attempt := 1; ; attempt++ {
		tx, err := transaction.New(transaction.NewReference(), email, amount, metadata)
		if err != nil {
			return nil, err
		}
		err = s.txRepo.Create(ctx, tx)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, domainErrors.ErrDuplicateReference) || attempt >= maxReferenceAttempts {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
		s.logger.Warn().Str("reference", tx.Reference).Int("attempt", attempt).Msg("reference collision, regenerating")
	}
}

// Verify asks the gateway for the charge's outcome and applies it. The provider fee
// is recomputed from the stored amount.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Verify",
		trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	if strings.TrimSpace(reference) == "" {
		return nil, domainErrors.NewValidationError("reference", "is required")
	}
	if _, err := s.txRepo.GetByReference(ctx, reference); err != nil {
		recordError(span, err)
		return nil, err
	}

	charge, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	o := outcome{status: transaction.StatusFailed}
	if charge.Status == gateway.StatusSuccess {
		o = successOutcome(charge.Channel, charge.Authorization, func(t *transaction.Transaction) float64 {
			return transaction.ProviderFee(t.Amount)
		})
	}

	tx, changed, err := s.settle(ctx, reference, SourceVerify, o)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.status", string(tx.Status)))

	return &VerifyResult{Transaction: tx, Verified: tx.IsSettled(), Changed: changed}, nil
}

// HandleWebhook authenticates and applies a provider webhook. body must be the
// exact bytes received; the signature is checked before anything is parsed.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, body []byte) (*WebhookResult, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if !s.validator.Valid(signature, body) {
		s.recorder.ObserveWebhook("unknown", "invalid_signature")
		span.SetStatus(codes.Error, "invalid signature")
		return nil, domainErrors.ErrInvalidSignature
	}

	ev, err := webhook.Parse(body)
	if err != nil {
		s.recorder.ObserveWebhook("unknown", "malformed")
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("webhook.event", ev.Event),
		attribute.String("payment.reference", ev.Data.Reference),
	)

	result := &WebhookResult{Event: ev.Event, Reference: ev.Data.Reference}
	if ev.Event != webhook.EventChargeSuccess {
		s.logger.Debug().Str("event", ev.Event).Msg("webhook acknowledged without processing")
		s.recorder.ObserveWebhook(ev.Event, "ignored")
		return result, nil
	}
	if ev.Data.Reference == "" {
		s.recorder.ObserveWebhook(ev.Event, "malformed")
		return nil, domainErrors.NewValidationError("reference", "is required")
	}

	fee := gateway.FromMinorUnits(ev.Data.Fees)
	o := successOutcome(ev.Data.Channel, ev.Data.Authorization, func(*transaction.Transaction) float64 {
		return fee
	})

	tx, changed, err := s.settle(ctx, ev.Data.Reference, SourceWebhook, o)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			s.recorder.ObserveWebhook(ev.Event, "not_found")
		} else {
			s.recorder.ObserveWebhook(ev.Event, "error")
		}
		recordError(span, err)
		return nil, err
	}

	if changed {
		s.recorder.ObserveWebhook(ev.Event, "processed")
	} else {
		s.recorder.ObserveWebhook(ev.Event, "duplicate")
	}
	result.Processed = true
	result.Changed = changed
	result.Transaction = tx
	return result, nil
}

// Reconcile re-checks a pending transaction with the gateway. Unlike Verify it
// only applies definitive outcomes: a charge the provider is still working on
// leaves the record untouched.
func (s *PaymentService) Reconcile(ctx context.Context, reference string) (*transaction.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Reconcile",
		trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	current, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if current.IsSettled() {
		return current, nil
	}

	charge, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		if gateway.IsUnknownReference(err) {
			// Initialize never reached the provider. A later webhook can still move
			// the record from failed to success.
			s.logger.Warn().Err(err).Str("reference", reference).Msg("provider has no charge for reference")
			tx, _, settleErr := s.settle(ctx, reference, SourceReconcile, outcome{status: transaction.StatusFailed})
			if settleErr != nil {
				recordError(span, settleErr)
				return nil, settleErr
			}
			return tx, nil
		}
		s.markChecked(ctx, reference)
		recordError(span, err)
		return nil, err
	}
	if gateway.IsInFlight(charge.Status) {
		s.markChecked(ctx, reference)
		s.logger.Debug().Str("reference", reference).Str("gateway_status", charge.Status).Msg("charge still in flight")
		return current, nil
	}

	o := outcome{status: transaction.StatusFailed}
	if charge.Status == gateway.StatusSuccess {
		o = successOutcome(charge.Channel, charge.Authorization, func(t *transaction.Transaction) float64 {
			return transaction.ProviderFee(t.Amount)
		})
	}

	tx, _, err := s.settle(ctx, reference, SourceReconcile, o)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return tx, nil
}

// markChecked moves a still-pending record to the back of the reconcile queue.
func (s *PaymentService) markChecked(ctx context.Context, reference string) {
	if err := s.txRepo.MarkChecked(ctx, reference, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("reference", reference).Msg("failed to record reconcile check")
	}
}

// settle applies o to the record under a row lock. Success is absorbing and a
// repeated outcome is a no-op, so concurrent verify and webhook deliveries
// converge on the same record. A status change and its outbox event commit together.
func (s *PaymentService) settle(ctx context.Context, reference, source string, o outcome) (*transaction.Transaction, bool, error) {
	var (
		result  *transaction.Transaction
		changed bool
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		changed = false
		t, err := s.txRepo.Lock(txCtx, reference)
		if err != nil {
			return err
		}
		result = t

		if !t.CanTransitionTo(o.status) {
			return nil
		}
		switch o.status {
		case transaction.StatusSuccess:
			err = t.MarkSuccess(transaction.SuccessDetails{
				Channel:     o.channel,
				CardType:    o.cardType,
				Last4:       o.last4,
				ProviderFee: o.fee(t),
			})
		case transaction.StatusFailed:
			err = t.MarkFailed()
		default:
			return fmt.Errorf("unsupported outcome %q", o.status)
		}
		if err != nil {
			return err
		}

		if err := s.txRepo.Update(txCtx, t); err != nil {
			return err
		}
		if err := s.outboxRepo.Insert(txCtx, outbox.SettlementEntry(t, source)); err != nil {
			return fmt.Errorf("write settlement event: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.recorder.ObserveSettlement(source, string(result.Status))
		s.logger.Info().
			Str("reference", reference).
			Str("status", string(result.Status)).
			Str("source", source).
			Msg("transaction settled")
	}
	return result, changed, nil
}

func successOutcome(channel string, auth *gateway.Authorization, fee func(*transaction.Transaction) float64) outcome {
	o := outcome{status: transaction.StatusSuccess, channel: channel, fee: fee}
	if auth != nil {
		o.cardType = strings.TrimSpace(auth.CardType)
		o.last4 = auth.Last4
	}
	return o
}

// ListTransactions returns one page of stored transactions, newest first.
func (s *PaymentService) ListTransactions(ctx context.Context, filter transaction.ListFilter) (*TransactionPage, error) {
	filter = filter.Normalize()
	filter.Email = strings.TrimSpace(filter.Email)

	txs, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{
		Transactions: txs,
		Total:        total,
		TotalPages:   transaction.TotalPages(total, filter.Limit),
		Page:         filter.Page,
		Limit:        filter.Limit,
	}, nil
}

// GetTransaction returns the stored transaction for reference.
func (s *PaymentService) GetTransaction(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return s.txRepo.GetByReference(ctx, reference)
}

// PendingTransactions returns pending transactions older than minAge, oldest first.
func (s *PaymentService) PendingTransactions(ctx context.Context, minAge time.Duration, limit int) ([]*transaction.Transaction, error) {
	return s.txRepo.ListPending(ctx, time.Now().UTC().Add(-minAge), limit)
}

// GatewayTransactions proxies the provider's transaction listing.
func (s *PaymentService) GatewayTransactions(ctx context.Context, perPage, page int) (*gateway.ListResult, error) {
	return s.gateway.List(ctx, perPage, page)
}

// GatewayTransaction proxies a provider transaction lookup by provider id.
func (s *PaymentService) GatewayTransaction(ctx context.Context, id string) (*gateway.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domainErrors.NewValidationError("id", "is required")
	}
	return s.gateway.Fetch(ctx, id)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
