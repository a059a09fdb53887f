package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/metrics"
	"github.com/sakif/glicoflow/internal/model"
)

// contextKey is an unexported type so no other package can read or shadow
// the values this package stores in a request context.
type contextKey string

const identityKey contextKey = "identity"

// Authenticator turns a raw bearer token into an Identity. An empty token
// must fail with apperror.ErrUnauthorized; any other rejection with
// apperror.ErrForbidden. service.AuthService implements it.
type Authenticator interface {
	Authenticate(token string) (model.Identity, error)
}

// RequireAuth guards protected routes.
//
// It reads "Authorization: Bearer <token>", asks the Authenticator who the
// caller is, and stores the Identity in the request context. Missing
// credentials get 401 and rejected ones 403, so the client can tell "log in"
// from "your session is no longer valid" even though it reacts the same way.
//
//	req → RequireAuth → handler
//	        │
//	        ├─ no header / empty token  → 401 unauthorized
//	        └─ bad signature / expired  → 403 forbidden
//
// m may be nil when metrics are disabled.
func RequireAuth(authn Authenticator, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(BearerToken(r))
			if err != nil {
				status, code := http.StatusForbidden, "forbidden"
				if errors.Is(err, apperror.ErrUnauthorized) {
					status, code = http.StatusUnauthorized, "unauthorized"
				}

				logger.Warn("request rejected",
					"reason", code,
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
				m.AuthFailure(code)

				message := "valid authentication required"
				var appErr *apperror.AppError
				if errors.As(err, &appErr) {
					message = appErr.Message
				}
				writeAuthError(w, status, code, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from the Authorization header. It returns
// "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller. ok is false on
// routes that are not behind RequireAuth.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id.UserID != ""
}

// writeAuthError writes the same error envelope the handlers use. It lives
// here because handler imports auth, not the other way round.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
