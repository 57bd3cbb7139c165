package controller

import (
	"time"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/service"
)

// --- Request DTOs ---

// InitializePaymentRequest is the body of POST /api/payments/initialize.
// Amount is in major currency units.
type InitializePaymentRequest struct {
	Email    string         `json:"email" validate:"required,email,max=254"`
	Amount   float64        `json:"amount" validate:"required,gt=0"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// --- Response DTOs ---

// Response is the envelope every payment endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type InitializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
	TransactionID    string `json:"transaction_id"`
}

// TransactionListResponse keeps data as an array even when the page is empty.
type TransactionListResponse struct {
	Success     bool                   `json:"success"`
	Count       int                    `json:"count"`
	Total       int                    `json:"total"`
	TotalPages  int                    `json:"totalPages"`
	CurrentPage int                    `json:"currentPage"`
	Data        []*TransactionResponse `json:"data"`
}

// TransactionResponse represents a stored transaction in API responses.
// Success-only fields are null until the charge succeeds.
type TransactionResponse struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	Email         string         `json:"email"`
	Amount        float64        `json:"amount"`
	Status        string         `json:"status"`
	Metadata      map[string]any `json:"metadata"`
	PaymentMethod *string        `json:"paymentMethod"`
	CardType      *string        `json:"cardType"`
	Last4         *string        `json:"last4"`
	ProviderFee   *float64       `json:"providerFee"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type GatewayListResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Meta    any  `json:"meta"`
}

// --- Conversion helpers ---

func FromTransaction(t *transaction.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	metadata := t.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &TransactionResponse{
		ID:            t.ID.String(),
		Reference:     t.Reference,
		Email:         t.Email,
		Amount:        t.Amount,
		Status:        string(t.Status),
		Metadata:      metadata,
		PaymentMethod: t.PaymentMethod,
		CardType:      t.CardType,
		Last4:         t.Last4,
		ProviderFee:   t.ProviderFee,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func FromTransactionPage(p *service.TransactionPage) *TransactionListResponse {
	data := make([]*TransactionResponse, 0, len(p.Transactions))
	for _, t := range p.Transactions {
		data = append(data, FromTransaction(t))
	}
	return &TransactionListResponse{
		Success:     true,
		Count:       len(data),
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		CurrentPage: p.Page,
		Data:        data,
	}
}
