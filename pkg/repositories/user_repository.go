package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/database"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// UserRepository provides read access to user records.
type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, role, created_at
		FROM users
		WHERE id = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
