package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/auth"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/repositories"
)

const (
	defaultPerPage = 30
	maxPerPage     = 100
)

// QueriesResponse is a page of stored query records.
type QueriesResponse struct {
	Items   []*models.QueryRecord `json:"items"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
	Total   int                   `json:"total"`
}

// QueriesHandler exposes the query audit listing to administrators.
type QueriesHandler struct {
	queries repositories.QueryRepository
	users   repositories.UserRepository
	logger  *zap.Logger
}

// NewQueriesHandler creates a QueriesHandler.
func NewQueriesHandler(queries repositories.QueryRepository, users repositories.UserRepository, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{queries: queries, users: users, logger: logger.Named("queries")}
}

// RegisterRoutes registers the listing route behind the auth middleware.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux, authMw *auth.Middleware) {
	mux.HandleFunc("GET /queries", authMw.RequireAuth(h.List))
}

// List handles GET /queries?page=&per_page=. Only the Admin role may see
// the cross-user query history.
func (h *QueriesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "Unknown user")
			return
		}
		h.logger.Error("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Lookup failed")
		return
	}
	if user.Role != models.RoleAdmin {
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden", "Admin role required")
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	items, total, err := h.queries.ListPage(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("query listing failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Listing failed")
		return
	}
	if items == nil {
		items = []*models.QueryRecord{}
	}

	response := QueriesResponse{Items: items, Page: page, PerPage: perPage, Total: total}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode queries response", zap.Error(err))
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
