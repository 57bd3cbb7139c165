package gateway

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// MockClient is an in-memory provider for local runs. Charges it initializes
// settle as success on the first Verify unless SetStatus says otherwise.
type MockClient struct {
	mu          sync.Mutex
	latency     time.Duration
	failureRate float64 // 0.0 to 1.0
	checkoutURL string
	nextID      int64
	charges     map[string]*Transaction
}

type MockOption func(*MockClient)

func WithFailureRate(rate float64) MockOption {
	return func(m *MockClient) { m.failureRate = rate }
}

func WithLatency(d time.Duration) MockOption {
	return func(m *MockClient) { m.latency = d }
}

func WithCheckoutURL(u string) MockOption {
	return func(m *MockClient) { m.checkoutURL = u }
}

func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		latency:     50 * time.Millisecond,
		checkoutURL: "https://checkout.paystack.test/",
		nextID:      1000,
		charges:     make(map[string]*Transaction),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MockClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if err := m.simulate(ctx, OpInitialize); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.charges[req.Reference]; exists {
		return nil, domainErrors.NewGatewayError(OpInitialize, "Duplicate Transaction Reference", 400)
	}
	m.nextID++
	amount := ToMinorUnits(req.Amount)
	m.charges[req.Reference] = &Transaction{
		ID:        m.nextID,
		Reference: req.Reference,
		Status:    "ongoing",
		Amount:    amount,
		Fees:      ToMinorUnits(transaction.ProviderFee(req.Amount)),
		Currency:  "NGN",
		Channel:   "card",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Customer:  &Customer{ID: m.nextID, Email: req.Email},
	}
	accessCode := "mock_" + strconv.FormatInt(m.nextID, 36)
	return &InitializeResult{
		AuthorizationURL: m.checkoutURL + accessCode,
		AccessCode:       accessCode,
		Reference:        req.Reference,
	}, nil
}

func (m *MockClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if err := m.simulate(ctx, OpVerify); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	charge, ok := m.charges[reference]
	if !ok {
		return nil, domainErrors.NewGatewayError(OpVerify, "Transaction reference not found", 400)
	}
	if charge.Status == "ongoing" {
		m.settle(charge, StatusSuccess)
	}
	out := *charge
	return &out, nil
}

func (m *MockClient) List(ctx context.Context, perPage, page int) (*ListResult, error) {
	if err := m.simulate(ctx, OpList); err != nil {
		return nil, err
	}
	if perPage < 1 {
		perPage = 10
	}
	if page < 1 {
		page = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Transaction, 0, len(m.charges))
	for _, c := range m.charges {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	return &ListResult{
		Transactions: all[start:end],
		Meta: Meta{
			Total:     len(all),
			Skipped:   start,
			PerPage:   perPage,
			Page:      page,
			PageCount: transaction.TotalPages(len(all), perPage),
		},
	}, nil
}

func (m *MockClient) Fetch(ctx context.Context, id string) (*Transaction, error) {
	if err := m.simulate(ctx, OpFetch); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.charges {
		if strconv.FormatInt(c.ID, 10) == id {
			out := *c
			return &out, nil
		}
	}
	return nil, domainErrors.NewGatewayError(OpFetch, "Transaction not found", 404)
}

// SetStatus forces the outcome the next Verify reports for reference.
func (m *MockClient) SetStatus(reference, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if charge, ok := m.charges[reference]; ok {
		m.settle(charge, status)
	}
}

func (m *MockClient) settle(charge *Transaction, status string) {
	charge.Status = status
	charge.GatewayResponse = "Declined"
	charge.Authorization = nil
	charge.PaidAt = ""
	if status == StatusSuccess {
		charge.GatewayResponse = "Successful"
		charge.PaidAt = time.Now().UTC().Format(time.RFC3339)
		charge.Authorization = &Authorization{CardType: "visa", Last4: "4081", Bank: "TEST BANK", Brand: "visa"}
	}
}

func (m *MockClient) simulate(ctx context.Context, op string) error {
	select {
	case <-time.After(m.latency):
	case <-ctx.Done():
		return domainErrors.NewNetworkGatewayError(op, fallbackMessages[op], ctx.Err())
	}
	if rand.Float64() < m.failureRate {
		return domainErrors.NewGatewayError(op, fallbackMessages[op], 503)
	}
	return nil
}
