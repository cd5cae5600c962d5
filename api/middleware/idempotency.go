package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chopmart/chopmart-backend/api/responses"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	pkgredis "github.com/chopmart/chopmart-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replayed"

	inFlightMarker = "in_flight"
	// A claim left behind by a crashed request frees itself after the slowest
	// downstream call plus this margin, and never sooner than minInFlightTTL.
	inFlightMargin = 45 * time.Second
	minInFlightTTL = time.Minute
)

// InFlightTTL sizes the claim on a key from the longest call a handler may wait
// on, so a duplicate cannot slip in while the first request is still running.
func InFlightTTL(slowestCall time.Duration) time.Duration {
	ttl := slowestCall + inFlightMargin
	if ttl < minInFlightTTL {
		return minInFlightTTL
	}
	return ttl
}

type idempotencyPolicy struct {
	ttl      time.Duration
	required bool
}

// Keyed by method and chi route pattern, so path parameters match any value.
// Orders are placed once per key for a week; other writes remember a day.
var idempotencyPolicies = map[string]idempotencyPolicy{
	"POST /api/v1/checkout":                         {ttl: 7 * 24 * time.Hour, required: true},
	"POST /api/v1/checkout/rider-quote":             {ttl: 24 * time.Hour},
	"POST /api/v1/delivery-jobs/{jobId}/{action}":   {ttl: 24 * time.Hour},
	"POST /api/v1/orders/{orderId}/confirm-payment": {ttl: 24 * time.Hour},
	"PUT /api/v1/admin/delivery-fees":               {ttl: 24 * time.Hour},
}

// storedResponse is what a completed request leaves under its key.
type storedResponse struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"contentType,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

var (
	errInFlight  = pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in flight")
	errKeyReused = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body")
)

// Idempotency makes the writes listed above safe to retry. The first request
// for a key claims it; a repeat with the same body gets the stored response
// and a different body is refused. Server errors release the claim instead of
// being stored, so a retry runs the handler again. inFlight bounds how long a
// claim survives a request that never finishes.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, inFlight time.Duration) func(http.Handler) http.Handler {
	if inFlight < minInFlightTTL {
		inFlight = minInFlightTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := policyFor(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				if policy.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(scopeFor(r), clientKey)
			ctx = logg.WithField(ctx, "idempotency_key", clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightMarker, inFlight)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				stored, err := loadResponse(ctx, store, key, fingerprint)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				stored.writeTo(w)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			payload, _ := json.Marshal(storedResponse{
				Status:      status,
				Body:        captured.Bytes(),
				ContentType: ww.Header().Get("Content-Type"),
				Fingerprint: fingerprint,
			})
			if err := store.Set(ctx, key, string(payload), policy.ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

// loadResponse fetches the record behind a key someone else already claimed.
func loadResponse(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil), err == nil && raw == inFlightMarker:
		return nil, errInFlight
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if stored.Fingerprint != fingerprint {
		return nil, errKeyReused
	}
	return &stored, nil
}

func (s *storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func policyFor(r *http.Request) (idempotencyPolicy, bool) {
	pattern := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		pattern = rctx.RoutePattern()
	}
	policy, ok := idempotencyPolicies[r.Method+" "+pattern]
	return policy, ok
}

// scopeFor keys records by caller and concrete path so two customers cannot
// collide on the same client-generated key.
func scopeFor(r *http.Request) string {
	return ActorIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
