package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/cassiomorais/checkout/internal/webhook"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes = 1 << 20

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	paymentService *service.PaymentService
	clientURL      string
	maxBodyBytes   int64
}

// NewPaymentController creates a new PaymentController. clientURL is the
// frontend the provider callback is forwarded to.
func NewPaymentController(paymentService *service.PaymentService, clientURL string, maxBodyBytes int64) *PaymentController {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &PaymentController{
		paymentService: paymentService,
		clientURL:      strings.TrimRight(clientURL, "/"),
		maxBodyBytes:   maxBodyBytes,
	}
}

// Initialize handles POST /api/payments/initialize
func (h *PaymentController) Initialize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req InitializePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.paymentService.Initialize(r.Context(), service.InitializeRequest{
		Email:    req.Email,
		Amount:   req.Amount,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Payment initialized",
		Data: InitializePaymentResponse{
			Reference:        res.Reference,
			AuthorizationURL: res.AuthorizationURL,
			AccessCode:       res.AccessCode,
			TransactionID:    res.TransactionID.String(),
		},
	})
}

// Verify handles GET /api/payments/verify/{reference}
func (h *PaymentController) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.paymentService.Verify(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !res.Verified {
		writeJSON(w, http.StatusBadRequest, Response{
			Message: "Payment verification failed",
			Data:    FromTransaction(res.Transaction),
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Payment verified successfully",
		Data:    FromTransaction(res.Transaction),
	})
}

// Webhook handles POST /api/payments/webhook. The body is read as raw bytes
// because the signature covers the exact payload the provider sent.
func (h *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{Message: "Payload too large"})
			return
		}
		writeError(w, r, domainErrors.NewValidationError("body", "could not be read"))
		return
	}

	res, err := h.paymentService.HandleWebhook(r.Context(), r.Header.Get(webhook.SignatureHeader), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Webhook received"
	if res.Processed {
		msg = "Webhook processed successfully"
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: msg})
}

// ListTransactions handles GET /api/payments/transactions
func (h *PaymentController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := transaction.ListFilter{
		Email: q.Get("email"),
		Page:  queryInt(q.Get("page")),
		Limit: queryInt(q.Get("limit")),
	}

	page, err := h.paymentService.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromTransactionPage(page))
}

// GetTransaction handles GET /api/payments/transaction/{reference}
func (h *PaymentController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.paymentService.GetTransaction(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: FromTransaction(tx)})
}

// GatewayTransactions handles GET /api/payments/gateway/transactions
func (h *PaymentController) GatewayTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.paymentService.GatewayTransactions(r.Context(), queryInt(q.Get("perPage")), queryInt(q.Get("page")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GatewayListResponse{Success: true, Data: res.Transactions, Meta: res.Meta})
}

// GatewayTransaction handles GET /api/payments/gateway/transactions/{id}
func (h *PaymentController) GatewayTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.paymentService.GatewayTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: tx})
}

// Callback handles GET /payment/callback, forwarding the browser and its query
// string (reference, trxref) to the frontend.
func (h *PaymentController) Callback(w http.ResponseWriter, r *http.Request) {
	target := h.clientURL + "/payment/callback"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// queryInt parses a pagination parameter; malformed values become 0 and are
// replaced by defaults downstream.
func queryInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
