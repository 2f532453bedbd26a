package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/repositories"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/schema"
)

// tablePattern matches any known table name as a whole token, case
// insensitively, so CLITPO never matches inside CLITPOX or a quoted string
// of a longer word.
var tablePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(schema.KnownTables, "|") + `)\b`)

// ExtractTables returns the known tables referenced by a SQL statement, in
// order of first appearance, upper-cased and de-duplicated. Extraction is
// idempotent: running it on its own output yields the same set.
func ExtractTables(sqlQuery string) []string {
	seen := make(map[string]struct{})
	var tables []string

	for _, match := range tablePattern.FindAllString(sqlQuery, -1) {
		name := strings.ToUpper(match)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}

	return tables
}

// Evaluator decides whether a user's role may touch every table a generated
// statement references.
type Evaluator struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewEvaluator creates a permission evaluator.
func NewEvaluator(users repositories.UserRepository, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		users:  users,
		logger: logger.Named("permissions"),
	}
}

// CheckForUser looks up the user's role and verifies every table the
// statement references is allowed for that role. A role that grants no
// tables denies everything. The returned error is a
// *apperrors.PermissionDeniedError naming all offending tables when access
// is refused.
func (e *Evaluator) CheckForUser(ctx context.Context, sqlQuery, userID string) ([]string, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user role: %w", err)
	}
	if !models.IsValidRole(user.Role) {
		e.logger.Warn("user has unrecognized role, denying all tables",
			zap.String("user_id", userID),
			zap.String("role", user.Role))
	}

	tables := ExtractTables(sqlQuery)
	allowed := schema.AllowedTables(user.Role)

	var denied []string
	for _, table := range tables {
		if _, ok := allowed[table]; !ok {
			denied = append(denied, table)
		}
	}

	if len(denied) > 0 {
		e.logger.Info("query denied by role policy",
			zap.String("user_id", userID),
			zap.String("role", user.Role),
			zap.Strings("tables", denied))
		return tables, &apperrors.PermissionDeniedError{Role: user.Role, Tables: denied}
	}

	return tables, nil
}
