package service

import (
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/google/uuid"
)

// Settlement sources, used in events, logs and metrics.
const (
	SourceVerify    = "verify"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
)

// Controllers convert their HTTP DTOs to this type.
type InitializeRequest struct {
	Email    string
	Amount   float64 // major units
	Metadata map[string]any
}

type InitializeResult struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
	TransactionID    uuid.UUID
}

// VerifyResult carries the stored transaction after reconciliation.
// Verified is true when the stored record is successful.
type VerifyResult struct {
	Transaction *transaction.Transaction
	Verified    bool
	Changed     bool
}

type WebhookResult struct {
	Event       string
	Reference   string
	Processed   bool
	Changed     bool
	Transaction *transaction.Transaction
}

type TransactionPage struct {
	Transactions []*transaction.Transaction
	Total        int
	TotalPages   int
	Page         int
	Limit        int
}
