// Package warehouse is the HTTP client for the external data-service that
// executes SQL against the cloud warehouse and exposes dry-run validation
// and schema listings.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/retry"
)

// Statuses reported by the data-service.
const (
	StatusSuccess    = "success"
	StatusInvalidSQL = "invalid_sql"
	StatusTimeout    = "timeout"
	StatusError      = "error"
)

var (
	// ErrInvalidQuery indicates the warehouse rejected the SQL itself.
	// Regenerating the SQL may help; re-sending the same statement will not.
	ErrInvalidQuery = errors.New("invalid SQL query")

	// ErrTimeout indicates the warehouse gave up on the query.
	ErrTimeout = errors.New("query timed out")
)

// QueryResult is the outcome of one executed query.
type QueryResult struct {
	Rows      []map[string]any `json:"rows"`
	Columns   []Column         `json:"columns"`
	TotalRows int64            `json:"total_rows"`

	BytesBilled int64      `json:"bytes_billed"`
	Cost        float64    `json:"cost"`
	JobID       string     `json:"job_id"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Text renders the result rows as a JSON document for display and for the
// conversation memory window.
func (r *QueryResult) Text() string {
	if len(r.Rows) == 0 {
		return "[]"
	}
	data, err := json.Marshal(r.Rows)
	if err != nil {
		return fmt.Sprintf("%v", r.Rows)
	}
	return string(data)
}

// ValidationResult is the outcome of a dry-run validation.
type ValidationResult struct {
	EstimatedBytes   int64    `json:"estimated_bytes"`
	EstimatedCost    float64  `json:"estimated_cost"`
	TablesReferenced []string `json:"tables_referenced"`
}

// Client calls the data-service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewClient creates a warehouse client. A nil retry config uses defaults.
func NewClient(baseURL string, timeout time.Duration, retryCfg *retry.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		logger:     logger.Named("warehouse"),
	}
}

type queryRequest struct {
	SQLQuery string `json:"sql_query"`
}

type queryResponse struct {
	Status       string           `json:"status"`
	Data         []map[string]any `json:"data"`
	Metadata     map[string]any   `json:"metadata"`
	ErrorMessage string           `json:"error_message"`
}

// Execute runs SQL against the warehouse. Transient transport failures are
// retried with backoff; ErrInvalidQuery and ErrTimeout are returned as-is
// so the caller can decide whether regeneration is worth a retry unit.
func (c *Client) Execute(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	c.logger.Debug("executing query", zap.String("sql", logging.SanitizeQuery(sqlQuery)))

	var resp queryResponse
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.post(ctx, "/query", queryRequest{SQLQuery: sqlQuery}, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse request failed: %w", err)
	}

	switch resp.Status {
	case StatusSuccess:
	case StatusInvalidSQL:
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, resp.ErrorMessage)
	case StatusTimeout:
		return nil, fmt.Errorf("%w: %s", ErrTimeout, resp.ErrorMessage)
	default:
		return nil, fmt.Errorf("warehouse error: %s", resp.ErrorMessage)
	}

	return parseQueryResult(&resp), nil
}

// Validate dry-runs SQL without executing it, returning the cost estimate
// and the tables the warehouse resolved from the statement.
func (c *Client) Validate(ctx context.Context, sqlQuery string) (*ValidationResult, error) {
	var resp struct {
		Status           string   `json:"status"`
		EstimatedBytes   int64    `json:"estimated_bytes"`
		EstimatedCost    float64  `json:"estimated_cost"`
		TablesReferenced []string `json:"tables_referenced"`
		ErrorMessage     string   `json:"error_message"`
	}

	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.post(ctx, "/query/validate", queryRequest{SQLQuery: sqlQuery}, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse validation failed: %w", err)
	}

	if resp.Status == StatusInvalidSQL {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, resp.ErrorMessage)
	}

	return &ValidationResult{
		EstimatedBytes:   resp.EstimatedBytes,
		EstimatedCost:    resp.EstimatedCost,
		TablesReferenced: resp.TablesReferenced,
	}, nil
}

// GetSchemas fetches the raw table/column listing used for live schema
// formatting.
func (c *Client) GetSchemas(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/schemas", nil)
	if err != nil {
		return nil, fmt.Errorf("build schemas request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schemas: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch schemas: unexpected status %d", httpResp.StatusCode)
	}

	var schemas []map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&schemas); err != nil {
		return nil, fmt.Errorf("decode schemas: %w", err)
	}

	return schemas, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		// Surface the status code so retry classification sees it.
		return fmt.Errorf("data-service returned %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return fmt.Errorf("data-service returned %d: %s", httpResp.StatusCode, string(data))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// parseQueryResult flattens the data-service response envelope. The service
// wraps the raw execution stats in a single-element data array.
func parseQueryResult(resp *queryResponse) *QueryResult {
	result := &QueryResult{}

	if len(resp.Data) > 0 {
		raw := resp.Data[0]

		if rows, ok := raw["rows"].([]any); ok {
			for _, r := range rows {
				if m, ok := r.(map[string]any); ok {
					result.Rows = append(result.Rows, m)
				}
			}
		}
		if cols, ok := raw["columns"].([]any); ok {
			for _, cv := range cols {
				if m, ok := cv.(map[string]any); ok {
					col := Column{}
					col.Name, _ = m["name"].(string)
					col.Type, _ = m["type"].(string)
					result.Columns = append(result.Columns, col)
				}
			}
		}
		if v, ok := raw["total_rows"].(float64); ok {
			result.TotalRows = int64(v)
		}
		if v, ok := raw["bytes_billed"].(float64); ok {
			result.BytesBilled = int64(v)
		}
		if v, ok := raw["job_id"].(string); ok {
			result.JobID = v
		}
	}

	if resp.Metadata != nil {
		if v, ok := resp.Metadata["cost_estimate"].(float64); ok {
			result.Cost = v
		}
	}

	return result
}
