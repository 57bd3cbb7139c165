package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/checkout/internal/repository/postgres"
	"github.com/rs/zerolog/hlog"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	maxIdempotencyBodySize = 1 << 20
	maxIdempotencyKeyLen   = 255
)

// IdempotencyStore persists responses keyed by client-supplied idempotency keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*postgres.IdempotencyEntry, error)
	Set(ctx context.Context, entry *postgres.IdempotencyEntry) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped by method and path, and a key reused with a different request
// body is rejected with 422. Server errors are not stored, so the client may
// retry them.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(IdempotencyKeyHeader)
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}
			key := r.Method + " " + r.URL.Path + " " + clientKey

			fingerprint, err := fingerprintBody(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}

			entry, err := store.Get(r.Context(), key)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if err == nil && entry != nil {
				if entry.RequestHash != "" && entry.RequestHash != fingerprint {
					writeError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 500 && !rec.bodyTruncated {
				now := time.Now().UTC()
				err := store.Set(r.Context(), &postgres.IdempotencyEntry{
					Key:            key,
					RequestHash:    fingerprint,
					ResponseBody:   rec.body.String(),
					ResponseStatus: rec.statusCode,
					CreatedAt:      now,
					ExpiresAt:      now.Add(ttl),
				})
				if err != nil {
					hlog.FromRequest(r).Warn().Err(err).Msg("idempotency store failed")
				}
			}
		})
	}
}

// fingerprintBody hashes the first maxIdempotencyBodySize bytes of the request
// body and leaves the body readable for the next handler.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return hex.EncodeToString(sha256.New().Sum(nil)), nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBodySize))
	if err != nil {
		return "", err
	}
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

type replayBody struct {
	io.Reader
	io.Closer
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
