package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *PaystackClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPaystackClient(PaystackConfig{
		BaseURL:     srv.URL,
		SecretKey:   "sk_test_secret",
		CallbackURL: "http://localhost:5000/payment/callback",
		Timeout:     2 * time.Second,
	})
}

func TestPaystackClient_Initialize(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref-1-1"}}`))
	})

	res, err := client.Initialize(context.Background(), InitializeRequest{
		Email:     "a@b.com",
		Amount:    19.99,
		Reference: "ref-1-1",
		Metadata:  map[string]any{"order_id": "42"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
	assert.Equal(t, "abc", res.AccessCode)
	assert.Equal(t, "a@b.com", got["email"])
	assert.Equal(t, float64(1999), got["amount"])
	assert.Equal(t, "ref-1-1", got["reference"])
	assert.Equal(t, "http://localhost:5000/payment/callback", got["callback_url"])
	assert.JSONEq(t, `{"order_id":"42"}`, got["metadata"].(string))
}

func TestPaystackClient_Initialize_NilMetadata(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"u"}}`))
	})

	_, err := client.Initialize(context.Background(), InitializeRequest{Email: "a@b.com", Amount: 1, Reference: "r"})
	require.NoError(t, err)
	assert.Equal(t, "{}", got["metadata"])
}

func TestPaystackClient_Initialize_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid email address passed"}`))
	})

	_, err := client.Initialize(context.Background(), InitializeRequest{Email: "x", Amount: 1, Reference: "r"})

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Invalid email address passed", gerr.Message)
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.False(t, gerr.Temporary())
	assert.True(t, IsRejection(err))
}

func TestPaystackClient_ServerErrorWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.Verify(context.Background(), "ref-1-1")

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Failed to verify payment", gerr.Message)
	assert.True(t, gerr.Temporary())
	assert.False(t, IsRejection(err))
}

func TestPaystackClient_StatusFalseOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	})

	_, err := client.Verify(context.Background(), "ref-1-1")

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Transaction reference not found", gerr.Message)
}

func TestPaystackClient_VerifyUnknownReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	})

	_, err := client.Verify(context.Background(), "ref-1-1")

	require.Error(t, err)
	assert.True(t, IsUnknownReference(err))
}

func TestIsUnknownReference(t *testing.T) {
	assert.True(t, IsUnknownReference(domainErrors.NewGatewayError(OpVerify, "Transaction reference not found", 400)))
	assert.True(t, IsUnknownReference(domainErrors.NewGatewayError(OpVerify, "", 404)))
	assert.False(t, IsUnknownReference(domainErrors.NewGatewayError(OpVerify, "Invalid key", 401)))
	assert.False(t, IsUnknownReference(domainErrors.NewGatewayError(OpVerify, "not found", 503)))
	assert.False(t, IsUnknownReference(domainErrors.ErrTransactionNotFound))
}

func TestPaystackClient_Verify(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"id":4099260516,"reference":"ref-1-1","status":"success","amount":500000,"fees":17500,
			"channel":"card","currency":"NGN","gateway_response":"Successful",
			"authorization":{"card_type":"visa","last4":"4081","bank":"TEST BANK"}}}`))
	})

	tx, err := client.Verify(context.Background(), "ref-1-1")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, "card", tx.Channel)
	assert.Equal(t, int64(500000), tx.Amount)
	assert.Equal(t, int64(17500), tx.Fees)
	require.NotNil(t, tx.Authorization)
	assert.Equal(t, "4081", tx.Authorization.Last4)
}

func TestPaystackClient_Verify_EscapesReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"failed"}}`))
	})

	_, err := client.Verify(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestPaystackClient_List(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("perPage"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"status":true,"data":[{"id":1,"reference":"a"},{"id":2,"reference":"b"}],
			"meta":{"total":7,"skipped":5,"perPage":5,"page":2,"pageCount":2}}`))
	})

	res, err := client.List(context.Background(), 5, 2)
	require.NoError(t, err)

	assert.Len(t, res.Transactions, 2)
	assert.Equal(t, 7, res.Meta.Total)
	assert.Equal(t, 2, res.Meta.PageCount)
}

func TestPaystackClient_List_Defaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("perPage"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"status":true,"data":[]}`))
	})

	res, err := client.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}

func TestPaystackClient_Fetch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/4099", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"data":{"id":4099,"reference":"ref-1-1","status":"success"}}`))
	})

	tx, err := client.Fetch(context.Background(), "4099")
	require.NoError(t, err)
	assert.Equal(t, int64(4099), tx.ID)
}

func TestPaystackClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewPaystackClient(PaystackConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

	_, err := client.Verify(context.Background(), "ref-1-1")

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Network)
	assert.True(t, gerr.Temporary())
	assert.Equal(t, "Failed to verify payment", gerr.Message)
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		minor  int64
	}{
		{5000, 500000},
		{19.99, 1999},
		{0.29, 29},
		{1.005, 100},
		{0.001, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.minor, ToMinorUnits(tt.amount), "amount %v", tt.amount)
	}
	assert.Equal(t, 175.0, FromMinorUnits(17500))
}

func TestIsInFlight(t *testing.T) {
	assert.True(t, IsInFlight("ongoing"))
	assert.True(t, IsInFlight("pending"))
	assert.False(t, IsInFlight("success"))
	assert.False(t, IsInFlight("abandoned"))
	assert.False(t, IsInFlight("failed"))
}
