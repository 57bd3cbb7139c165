package gateway

import (
	"context"
	"strconv"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_InitializeThenVerify(t *testing.T) {
	m := NewMockClient(WithLatency(0))
	ctx := context.Background()

	res, err := m.Initialize(ctx, InitializeRequest{Email: "a@b.com", Amount: 5000, Reference: "ref-1-1"})
	require.NoError(t, err)
	assert.Contains(t, res.AuthorizationURL, res.AccessCode)
	assert.Equal(t, "ref-1-1", res.Reference)

	tx, err := m.Verify(ctx, "ref-1-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, int64(500000), tx.Amount)
	assert.Equal(t, int64(17500), tx.Fees)
	require.NotNil(t, tx.Authorization)
	assert.Equal(t, "4081", tx.Authorization.Last4)
}

func TestMockClient_CheckoutURL(t *testing.T) {
	m := NewMockClient(WithLatency(0), WithCheckoutURL("http://localhost:5173/pay/"))

	res, err := m.Initialize(context.Background(), InitializeRequest{Email: "a@b.com", Amount: 10, Reference: "ref-1-2"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/pay/"+res.AccessCode, res.AuthorizationURL)
}

func TestMockClient_DuplicateReference(t *testing.T) {
	m := NewMockClient(WithLatency(0))
	ctx := context.Background()

	_, err := m.Initialize(ctx, InitializeRequest{Email: "a@b.com", Amount: 1, Reference: "ref-1-1"})
	require.NoError(t, err)
	_, err = m.Initialize(ctx, InitializeRequest{Email: "a@b.com", Amount: 1, Reference: "ref-1-1"})
	assert.True(t, IsRejection(err))
}

func TestMockClient_SetStatus(t *testing.T) {
	m := NewMockClient(WithLatency(0))
	ctx := context.Background()
	_, _ = m.Initialize(ctx, InitializeRequest{Email: "a@b.com", Amount: 1, Reference: "ref-1-1"})

	m.SetStatus("ref-1-1", StatusFailed)

	tx, err := m.Verify(ctx, "ref-1-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, tx.Status)
	assert.Nil(t, tx.Authorization)
}

func TestMockClient_VerifyUnknown(t *testing.T) {
	m := NewMockClient(WithLatency(0))

	_, err := m.Verify(context.Background(), "missing")
	assert.True(t, IsRejection(err))
}

func TestMockClient_ListAndFetch(t *testing.T) {
	m := NewMockClient(WithLatency(0))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.Initialize(ctx, InitializeRequest{Email: "a@b.com", Amount: 10, Reference: "ref-" + strconv.Itoa(i)})
		require.NoError(t, err)
	}

	page, err := m.List(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
	assert.Equal(t, 3, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.PageCount)
	assert.Equal(t, "ref-2", page.Transactions[0].Reference)

	fetched, err := m.Fetch(ctx, strconv.FormatInt(page.Transactions[0].ID, 10))
	require.NoError(t, err)
	assert.Equal(t, "ref-2", fetched.Reference)

	_, err = m.Fetch(ctx, "0")
	assert.Error(t, err)
}

func TestMockClient_FailureRate(t *testing.T) {
	m := NewMockClient(WithLatency(0), WithFailureRate(1.0))

	_, err := m.Verify(context.Background(), "ref-1-1")

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Temporary())
}

func TestMockClient_ContextCancelled(t *testing.T) {
	m := NewMockClient(WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Verify(ctx, "ref-1-1")

	var gerr *domainErrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Network)
	assert.ErrorIs(t, err, context.Canceled)
}
