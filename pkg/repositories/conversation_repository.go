// Package repositories provides pgx-backed data access for conversations,
// turns, users and semantic cache metadata.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/database"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// ConversationRepository provides data access for conversation records.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = time.Now()

	query := `
		INSERT INTO conversations (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, conv.ID, conv.UserID, conv.Title, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *conversationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM conversations
		WHERE id = $1`

	var conv models.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}
