package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/agent"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/auth"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
	sqlutil "github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/sql"
)

const maxQueryLength = 4000

// Asker answers one natural-language question. Satisfied by *agent.Agent.
type Asker interface {
	Ask(ctx context.Context, query string, conversationID *uuid.UUID, userID string) (*agent.Result, error)
}

// ChatRequest is the body of POST /query.
type ChatRequest struct {
	Query          string     `json:"query"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// ChatHandler serves the main question endpoint.
type ChatHandler struct {
	agent  Asker
	logger *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(asker Asker, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{agent: asker, logger: logger.Named("chat")}
}

// RegisterRoutes registers the chat routes behind the auth middleware.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authMw *auth.Middleware) {
	mux.HandleFunc("POST /query", authMw.RequireAuth(h.Ask))
}

// Ask handles POST /query.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "query is too long")
		return
	}

	if check := sqlutil.CheckUtteranceForInjection(query); check != nil {
		h.logger.Warn("rejected utterance with injection pattern",
			zap.String("user_id", userID),
			zap.String("fingerprint", check.Fingerprint),
			zap.String("query", logging.SanitizeQuery(query)))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_input",
			"La consulta contiene patrones no permitidos")
		return
	}

	result, err := h.agent.Ask(r.Context(), query, req.ConversationID, userID)
	if err != nil {
		h.writeAskError(w, userID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

func (h *ChatHandler) writeAskError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrOwnershipMismatch):
		_ = ErrorResponse(w, http.StatusForbidden, "forbidden",
			"La conversación pertenece a otro usuario")
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Conversación no encontrada")
	case errors.Is(err, apperrors.ErrRetriesExhausted):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "retries_exhausted",
			"No se pudo ejecutar una consulta válida para tu pregunta")
	default:
		if denied, ok := apperrors.IsPermissionDenied(err); ok {
			_ = ErrorResponse(w, http.StatusForbidden, "permission_denied",
				"Tu rol no tiene acceso a las tablas: "+strings.Join(denied.Tables, ", "))
			return
		}
		h.logger.Error("question failed",
			zap.String("user_id", userID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error",
			"Ocurrió un error procesando la consulta")
	}
}
