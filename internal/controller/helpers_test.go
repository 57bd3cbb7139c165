package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: map[string]string{"reference": "ref-1-1"}})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"reference":"ref-1-1"}}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "validation",
			err:     domainErrors.NewValidationError("email", "is required"),
			status:  http.StatusBadRequest,
			message: "email is required",
		},
		{
			name:    "not found",
			err:     fmt.Errorf("lookup: %w", domainErrors.ErrTransactionNotFound),
			status:  http.StatusNotFound,
			message: "Transaction not found",
		},
		{
			name:    "invalid signature",
			err:     domainErrors.ErrInvalidSignature,
			status:  http.StatusUnauthorized,
			message: "Invalid signature",
		},
		{
			name:    "row lock wait expired",
			err:     fmt.Errorf("settle: %w", domainErrors.ErrTransactionBusy),
			status:  http.StatusConflict,
			message: "Transaction is being processed, retry shortly",
		},
		{
			name:    "gateway with provider message",
			err:     domainErrors.NewGatewayError("initialize", "Invalid key", 401),
			status:  http.StatusBadGateway,
			message: "Invalid key",
		},
		{
			name:    "gateway network failure",
			err:     domainErrors.NewNetworkGatewayError("verify", "Failed to verify payment", errors.New("dial tcp: timeout")),
			status:  http.StatusBadGateway,
			message: "Failed to verify payment",
		},
		{
			name: "circuit open",
			err: &domainErrors.GatewayError{
				Op:      "verify",
				Message: "Payment provider is temporarily unavailable",
				Err:     domainErrors.ErrGatewayUnavailable,
			},
			status:  http.StatusServiceUnavailable,
			message: "Payment provider is temporarily unavailable",
		},
		{
			name:    "duplicate reference",
			err:     fmt.Errorf("create transaction: %w", domainErrors.ErrDuplicateReference),
			status:  http.StatusConflict,
			message: "Duplicate transaction reference",
		},
		{
			name:    "unknown error is not leaked",
			err:     errors.New("pq: password authentication failed"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decodeResponse(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"invalid json", `{"email":`, "body", "must be valid JSON"},
		{"missing email", `{"amount":100}`, "email", "is required"},
		{"bad email", `{"email":"nope","amount":100}`, "email", "must be a valid email address"},
		{"missing amount", `{"email":"a@b.com"}`, "amount", "is required"},
		{"negative amount", `{"email":"a@b.com","amount":-1}`, "amount", "must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst InitializePaymentRequest

			err := decodeAndValidate(req, &dst)
			var vErr *domainErrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, tt.msg, vErr.Message)
		})
	}
}

func TestDecodeAndValidate_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"email":"a@b.com","amount":5000,"metadata":{"order":"A1"}}`))
	var dst InitializePaymentRequest

	require.NoError(t, decodeAndValidate(req, &dst))
	assert.Equal(t, "a@b.com", dst.Email)
	assert.Equal(t, 5000.0, dst.Amount)
	assert.Equal(t, "A1", dst.Metadata["order"])
}

func TestDecodeAndValidate_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","amount":5000,"metadata":{"pad":"`+strings.Repeat("x", 512)+`"}}`))
	req.Body = http.MaxBytesReader(w, req.Body, 64)
	var dst InitializePaymentRequest

	err := decodeAndValidate(req, &dst)
	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "is too large", vErr.Message)
}
