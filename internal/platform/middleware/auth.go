package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"warikan/internal/domain"
	"warikan/pkg/requestcontext"
)

// TokenValidator validates a bearer token and resolves the caller it was
// issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.UserID, error)
}

type contextKeyCaller struct{}

// Caller retrieves the authenticated caller ID from the context. Empty when
// RequireAuth did not run or rejected the request.
func Caller(ctx context.Context) domain.UserID {
	if id, ok := ctx.Value(contextKeyCaller{}).(domain.UserID); ok {
		return id
	}
	return ""
}

// WithCaller injects a caller ID; for service tests that skip the HTTP stack.
func WithCaller(ctx context.Context, id domain.UserID) context.Context {
	return context.WithValue(ctx, contextKeyCaller{}, id)
}

// RequireAuth gates a route on a valid Authorization: Bearer token. The
// resolved caller ID is placed in the context for handlers and services.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			caller, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","error_description":"` + description + `"}`))
}
