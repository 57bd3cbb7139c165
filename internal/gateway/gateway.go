package gateway

import (
	"context"
	"math"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusAbandon = "abandoned"
)

// Client is the contract with the payment provider.
type Client interface {
	// Initialize registers a charge with the provider and returns the hosted checkout URL.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	// Verify reports the provider's current view of a charge. It has no side effects.
	Verify(ctx context.Context, reference string) (*Transaction, error)
	// List returns one page of the provider's transactions.
	List(ctx context.Context, perPage, page int) (*ListResult, error)
	// Fetch returns a single provider transaction by its provider id.
	Fetch(ctx context.Context, id string) (*Transaction, error)
}

type InitializeRequest struct {
	Email     string
	Amount    float64 // major units
	Reference string
	Metadata  map[string]any
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction mirrors the provider's transaction object. Amount and Fees are in minor units.
type Transaction struct {
	ID              int64          `json:"id"`
	Reference       string         `json:"reference"`
	Status          string         `json:"status"`
	Amount          int64          `json:"amount"`
	Fees            int64          `json:"fees"`
	Currency        string         `json:"currency"`
	Channel         string         `json:"channel"`
	GatewayResponse string         `json:"gateway_response"`
	PaidAt          string         `json:"paid_at,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	Customer        *Customer      `json:"customer,omitempty"`
	Authorization   *Authorization `json:"authorization,omitempty"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type Authorization struct {
	AuthorizationCode string `json:"authorization_code,omitempty"`
	CardType          string `json:"card_type"`
	Last4             string `json:"last4"`
	Bank              string `json:"bank,omitempty"`
	Brand             string `json:"brand,omitempty"`
	Reusable          bool   `json:"reusable,omitempty"`
}

type ListResult struct {
	Transactions []Transaction `json:"transactions"`
	Meta         Meta          `json:"meta"`
}

type Meta struct {
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
	PerPage   int `json:"perPage"`
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}

// IsInFlight reports whether the provider has not reached a decision for the charge yet.
func IsInFlight(status string) bool {
	switch status {
	case "ongoing", "pending", "processing", "queued":
		return true
	}
	return false
}

// ToMinorUnits converts a major-unit amount to the provider's smallest unit, rounding down.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 1e-6))
}

// FromMinorUnits converts a minor-unit amount to major units.
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
