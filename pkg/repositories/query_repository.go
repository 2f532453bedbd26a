package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/database"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// QueryRepository provides data access for conversation turn records.
type QueryRepository interface {
	Save(ctx context.Context, rec *models.QueryRecord) error
	RecentByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.QueryRecord, error)
	ListPage(ctx context.Context, page, perPage int) ([]*models.QueryRecord, int, error)
}

type queryRepository struct {
	db *database.DB
}

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(db *database.DB) QueryRepository {
	return &queryRepository{db: db}
}

var _ QueryRepository = (*queryRepository)(nil)

func (r *queryRepository) Save(ctx context.Context, rec *models.QueryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()

	tablesJSON, err := json.Marshal(rec.QueriedTables)
	if err != nil {
		return fmt.Errorf("failed to marshal queried_tables: %w", err)
	}

	query := `
		INSERT INTO queries (
			id, natural_query, sql_query, output, cost,
			conversation_id, queried_tables, agent_response, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		rec.ID, rec.NaturalQuery, rec.SQLQuery, rec.Output, rec.Cost,
		rec.ConversationID, tablesJSON, rec.AgentResponse, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save query record: %w", err)
	}

	return nil
}

// RecentByConversation returns the most recent turns of a conversation,
// newest first. Used to rebuild the bounded conversation memory window.
func (r *queryRepository) RecentByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.QueryRecord, error) {
	query := `
		SELECT id, natural_query, sql_query, output, cost,
		       conversation_id, queried_tables, agent_response, created_at
		FROM queries
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	return scanQueryRows(rows)
}

// ListPage returns a page of turn records (newest first) plus the total
// count, for the admin listing endpoint.
func (r *queryRepository) ListPage(ctx context.Context, page, perPage int) ([]*models.QueryRecord, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM queries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query records: %w", err)
	}

	query := `
		SELECT id, natural_query, sql_query, output, cost,
		       conversation_id, queried_tables, agent_response, created_at
		FROM queries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query records: %w", err)
	}
	defer rows.Close()

	records, err := scanQueryRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func scanQueryRows(rows pgx.Rows) ([]*models.QueryRecord, error) {
	var records []*models.QueryRecord

	for rows.Next() {
		var rec models.QueryRecord
		var tablesJSON []byte

		err := rows.Scan(
			&rec.ID, &rec.NaturalQuery, &rec.SQLQuery, &rec.Output, &rec.Cost,
			&rec.ConversationID, &tablesJSON, &rec.AgentResponse, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}

		if len(tablesJSON) > 0 {
			if err := json.Unmarshal(tablesJSON, &rec.QueriedTables); err != nil {
				return nil, fmt.Errorf("failed to unmarshal queried_tables: %w", err)
			}
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
