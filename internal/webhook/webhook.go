package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/gateway"
)

const (
	SignatureHeader    = "x-paystack-signature"
	EventChargeSuccess = "charge.success"
)

// Validator checks that a webhook body was signed by the provider.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Sign returns the hex HMAC-SHA512 of body.
func (v *Validator) Sign(body []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Valid reports whether signature matches the HMAC of the exact bytes in body.
// An empty secret never validates.
func (v *Validator) Valid(signature string, body []byte) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	claimed, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	return hmac.Equal(claimed, mac.Sum(nil))
}

type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData holds the fields of a charge event the service reads. Fees and Amount are in minor units.
type EventData struct {
	ID            int64                  `json:"id"`
	Reference     string                 `json:"reference"`
	Status        string                 `json:"status"`
	Channel       string                 `json:"channel"`
	Amount        int64                  `json:"amount"`
	Fees          int64                  `json:"fees"`
	Currency      string                 `json:"currency"`
	Authorization *gateway.Authorization `json:"authorization,omitempty"`
}

// Parse decodes a body that has already passed Valid.
func Parse(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domainErrors.NewValidationError("body", "must be a JSON webhook event")
	}
	if ev.Event == "" {
		return nil, domainErrors.NewValidationError("event", "is required")
	}
	return &ev, nil
}
