package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/checkout/internal/gateway"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/cassiomorais/checkout/internal/testutil"
	"github.com/cassiomorais/checkout/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePaystack answers initialize and verify the way the provider does.
type fakePaystack struct {
	mu      sync.Mutex
	amounts map[string]int64
}

func (f *fakePaystack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
		var body struct {
			Amount    int64  `json:"amount"`
			Reference string `json:"reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.amounts[body.Reference] = body.Amount
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/" + body.Reference,
				"access_code":       "ac_" + body.Reference,
				"reference":         body.Reference,
			},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		amount, ok := f.amounts[ref]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"id":        42,
				"reference": ref,
				"status":    "success",
				"amount":    amount,
				"fees":      9999,
				"channel":   "card",
				"authorization": map[string]any{
					"card_type": "visa ",
					"last4":     "4081",
				},
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRouter_InitializeThenVerify(t *testing.T) {
	provider := httptest.NewServer(&fakePaystack{amounts: map[string]int64{}})
	t.Cleanup(provider.Close)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("checkout", reg)
	client := gateway.NewBreakerClient(gateway.NewPaystackClient(gateway.PaystackConfig{
		BaseURL:   provider.URL,
		SecretKey: "sk_test_secret",
		Timeout:   2 * time.Second,
	}), gateway.DefaultBreakerSettings(), metrics, zerolog.Nop())

	txRepo := testutil.NewMockTransactionRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	svc := service.NewPaymentService(txRepo, outboxRepo, testutil.NewMockTransactionManager(), client,
		webhook.NewValidator("sk_test_secret"), service.WithRecorder(metrics))

	s := &testServer{handler: NewRouter(RouterDeps{
		PaymentService: svc,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		GatewayState:   client.State,
		Logger:         zerolog.Nop(),
	})}

	ref := s.initialize(t, 5000)
	assert.Regexp(t, `^ref-\d+-\d+$`, ref)

	w := s.do(http.MethodGet, "/api/payments/verify/"+ref, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeResponse(t, w)["data"].(map[string]any)
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "card", data["paymentMethod"])
	assert.Equal(t, "visa", data["cardType"])
	// verify computes the fee locally rather than trusting the provider's fees field
	assert.Equal(t, 175.0, data["providerFee"])

	require.Len(t, outboxRepo.Entries(), 1)

	w = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, "closed", decodeResponse(t, w)["gateway"])

	w = s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checkout_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/api/payments/verify/{reference}"`)
}
