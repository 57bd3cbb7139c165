package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

const (
	OpInitialize = "initialize"
	OpVerify     = "verify"
	OpList       = "list"
	OpFetch      = "fetch"
)

var fallbackMessages = map[string]string{
	OpInitialize: "Failed to initialize payment",
	OpVerify:     "Failed to verify payment",
	OpList:       "Failed to fetch transactions",
	OpFetch:      "Failed to fetch transaction",
}

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// PaystackClient talks to the Paystack REST API.
type PaystackClient struct {
	baseURL     string
	secretKey   string
	callbackURL string
	client      *http.Client
}

// envelope is the response wrapper Paystack puts around every payload.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type initializeBody struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
	Metadata    string `json:"metadata"`
}

func NewPaystackClient(cfg PaystackConfig) *PaystackClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PaystackClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, domainErrors.NewValidationError("metadata", "must be JSON serializable")
	}

	body := initializeBody{
		Email:       req.Email,
		Amount:      ToMinorUnits(req.Amount),
		Reference:   req.Reference,
		CallbackURL: c.callbackURL,
		Metadata:    string(encoded),
	}

	var env envelope[InitializeResult]
	if err := c.do(ctx, OpInitialize, http.MethodPost, "/transaction/initialize", nil, body, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var env envelope[Transaction]
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, OpVerify, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *PaystackClient) List(ctx context.Context, perPage, page int) (*ListResult, error) {
	if perPage < 1 {
		perPage = 10
	}
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("perPage", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))

	var env envelope[[]Transaction]
	if err := c.do(ctx, OpList, http.MethodGet, "/transaction", query, nil, &env); err != nil {
		return nil, err
	}
	result := &ListResult{Transactions: env.Data}
	if env.Meta != nil {
		result.Meta = *env.Meta
	}
	return result, nil
}

func (c *PaystackClient) Fetch(ctx context.Context, id string) (*Transaction, error) {
	var env envelope[Transaction]
	if err := c.do(ctx, OpFetch, http.MethodGet, "/transaction/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// do sends one request and decodes the envelope into out. Every failure comes back
// as a *domainErrors.GatewayError.
func (c *PaystackClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	fallback := fallbackMessages[op]

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return domainErrors.NewNetworkGatewayError(op, fallback, fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return domainErrors.NewNetworkGatewayError(op, fallback, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domainErrors.NewNetworkGatewayError(op, fallback, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainErrors.NewNetworkGatewayError(op, fallback, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domainErrors.NewGatewayError(op, providerMessage(respBody, fallback), resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		gerr := domainErrors.NewGatewayError(op, fallback, resp.StatusCode)
		gerr.Err = fmt.Errorf("decode response: %w", err)
		return gerr
	}
	if status, ok := envelopeStatus(out); ok && !status.ok {
		msg := status.message
		if msg == "" {
			msg = fallback
		}
		return domainErrors.NewGatewayError(op, msg, resp.StatusCode)
	}
	return nil
}

type statusInfo struct {
	ok      bool
	message string
}

func envelopeStatus(v any) (statusInfo, bool) {
	switch env := v.(type) {
	case *envelope[InitializeResult]:
		return statusInfo{env.Status, env.Message}, true
	case *envelope[Transaction]:
		return statusInfo{env.Status, env.Message}, true
	case *envelope[[]Transaction]:
		return statusInfo{env.Status, env.Message}, true
	}
	return statusInfo{}, false
}

func providerMessage(body []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return fallback
	}
	return env.Message
}

// IsRejection reports whether err is the provider refusing the request (4xx) rather
// than the provider or the network failing.
func IsRejection(err error) bool {
	var gerr *domainErrors.GatewayError
	if !errors.As(err, &gerr) {
		return false
	}
	return !gerr.Network && gerr.StatusCode >= 400 && gerr.StatusCode < 500
}

// IsUnknownReference reports whether the provider rejected a lookup because it has
// no charge for the reference, as happens when initialize never reached it.
func IsUnknownReference(err error) bool {
	var gerr *domainErrors.GatewayError
	if !errors.As(err, &gerr) || !IsRejection(err) {
		return false
	}
	if gerr.StatusCode == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(gerr.Message), "not found")
}
