package auth

import (
	"context"
	"fmt"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
)

type contextKey string

// ClaimsKey is the context key under which the middleware stores parsed
// claims.
const ClaimsKey contextKey = "auth_claims"

// GetClaims extracts the claims the middleware placed in the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetUserIDFromContext returns the authenticated user ID, or the empty
// string when the request was not authenticated.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.UserID
}

// RequireUserIDFromContext returns the authenticated user ID, or
// apperrors.ErrUnauthorized when the request carried no identity.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("no user in request context: %w", apperrors.ErrUnauthorized)
	}
	return userID, nil
}
