package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware. It is thin and
// delegates token parsing to TokenService.
type Middleware struct {
	tokens *TokenService
	logger *zap.Logger
}

// NewMiddleware creates an auth middleware.
func NewMiddleware(tokens *TokenService, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		logger: logger.Named("auth"),
	}
}

// RequireAuth parses the bearer token and stores the claims in the request
// context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.tokens.FromRequest(r)
		if err != nil {
			m.logger.Debug("rejected unauthenticated request",
				zap.String("path", r.URL.Path), zap.Error(err))
			m.unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
