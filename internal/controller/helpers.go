package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names in validation messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMappings is checked in order; more specific errors come first.
var errorMappings = []errorMapping{
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "Transaction not found"},
	{domainErrors.ErrInvalidSignature, http.StatusUnauthorized, "Invalid signature"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{domainErrors.ErrDuplicateReference, http.StatusConflict, "Duplicate transaction reference"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "Invalid transaction state"},
	{domainErrors.ErrTransactionBusy, http.StatusConflict, "Transaction is being processed, retry shortly"},
	{domainErrors.ErrGatewayUnavailable, http.StatusServiceUnavailable, "Payment provider is temporarily unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, Response{Message: validationErr.Field + " " + validationErr.Message})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, Response{Message: m.message})
			return
		}
	}

	var gatewayErr *domainErrors.GatewayError
	if errors.As(err, &gatewayErr) {
		hlog.FromRequest(r).Warn().Err(err).Str("op", gatewayErr.Op).Msg("payment gateway call failed")
		writeJSON(w, http.StatusBadGateway, Response{Message: gatewayErr.Message})
		return
	}

	hlog.FromRequest(r).Error().Err(err).Msg("unhandled error in handler")
	writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
}

func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domainErrors.NewValidationError("body", "is too large")
		}
		return domainErrors.NewValidationError("body", "must be valid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), validationMessage(ve[0]))
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
