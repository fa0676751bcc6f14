package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/identity"
)

// maxSkew is the allowed clock skew between the signed timestamp and the
// server clock.
const maxSkew = 5 * time.Minute

// maxBodySize bounds signed request bodies.
const maxBodySize = 1 << 20

type contextKey struct{}

// CallerFrom returns the authenticated account stored by SignatureAuth.
func CallerFrom(ctx context.Context) (domain.AccountID, bool) {
	caller, ok := ctx.Value(contextKey{}).(domain.AccountID)
	return caller, ok
}

// WithCaller returns a context carrying an authenticated account. Intended
// for tests.
func WithCaller(ctx context.Context, caller domain.AccountID) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

// SignatureAuth returns middleware that authenticates state-changing
// requests by recovering the caller's address from a personal-sign
// signature.
//
// The client signs timestamp+method+path+body and sends:
//
//	X-Account-Timestamp: Unix seconds used in the signed message
//	X-Account-Signature: 0x-prefixed 65-byte signature
//
// Requests without both headers pass through unauthenticated; handlers that
// need a caller reject those with 401. A present-but-invalid signature is
// rejected here.
func SignatureAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ts := r.Header.Get("X-Account-Timestamp")
			sig := r.Header.Get("X-Account-Signature")
			if ts == "" && sig == "" {
				next.ServeHTTP(w, r)
				return
			}
			if ts == "" || sig == "" {
				writeAuthError(w, "both signature headers are required")
				return
			}

			unix, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				writeAuthError(w, "malformed timestamp")
				return
			}
			if skew := time.Since(time.Unix(unix, 0)); skew > maxSkew || skew < -maxSkew {
				writeAuthError(w, "timestamp outside the accepted window")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				writeAuthError(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			message := ts + r.Method + r.URL.Path + string(body)
			caller, err := identity.RecoverSigner([]byte(message), sig)
			if err != nil {
				writeAuthError(w, "invalid signature")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// writeAuthError sends a 401 response with a JSON error body.
func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
