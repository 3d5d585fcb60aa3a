package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

type contextKey string

const (
	identityKey   contextKey = "identity"
	credentialKey contextKey = "credential"
)

// AuthMiddleware resolves the caller from the bearer header or session
// cookie, rejects revoked credentials and adds the identity to the context.
func AuthMiddleware(resolver *auth.Resolver, tokens store.TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.CredentialFromRequest(r)
			identity, err := resolver.Resolve(credential)
			if err != nil {
				writeError(w, r, err)
				return
			}

			revoked, err := tokens.IsTokenRevoked(r.Context(), auth.CredentialKey(credential))
			if err != nil {
				writeError(w, r, apperr.Unavailable("checking credential", err))
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "credential has been revoked")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, credentialKey, credential)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorMiddleware guards maintenance endpoints with a shared token sent
// in the X-Operator-Token header. With no token configured the endpoints do
// not exist.
func OperatorMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				jsonError(w, http.StatusNotFound, "not found")
				return
			}
			got := r.Header.Get("X-Operator-Token")
			if got == "" {
				jsonError(w, http.StatusUnauthorized, "operator token required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("operator token rejected", "remote", r.RemoteAddr)
				jsonError(w, http.StatusForbidden, "invalid operator token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFrom returns the caller identity stored by AuthMiddleware.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

func credentialFrom(ctx context.Context) string {
	c, _ := ctx.Value(credentialKey).(string)
	return c
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
