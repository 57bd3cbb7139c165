package service

import "context"

// TransactionManager wraps several repository calls in one database transaction.
// If fn returns an error, the transaction is rolled back. Otherwise it is committed.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Recorder receives business events for metrics. *observability.Metrics implements it.
type Recorder interface {
	ObserveInitialize(result string)
	ObserveSettlement(source, status string)
	ObserveWebhook(event, result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveInitialize(string) {}
func (nopRecorder) ObserveSettlement(string, string) {}
func (nopRecorder) ObserveWebhook(string, string) {}
