package agent

import (
	"regexp"
	"strings"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/prompts"
)

var sqlBlockPattern = regexp.MustCompile("(?s)```sql\\s*(.*?)```")

// ParseCurated interprets a curation response. When the model asks for
// clarification it prefixes the reply with the retry marker; the marker is
// stripped and needsClarification is true.
func ParseCurated(raw string) (curated string, needsClarification bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, prompts.RetryMarker) {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, prompts.RetryMarker)), true
	}
	return trimmed, false
}

// ParseSQLResponse splits a SQL-generation response into the statement from
// the fenced sql block and the description that follows the description
// marker. When no sql block is present the whole response is returned as
// the description with an empty statement, so the caller can surface the
// model's text directly.
func ParseSQLResponse(raw string) (sqlQuery, description string) {
	match := sqlBlockPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", strings.TrimSpace(raw)
	}
	sqlQuery = strings.TrimSpace(match[1])

	if idx := strings.Index(raw, prompts.DescriptionMarker); idx >= 0 {
		description = strings.TrimSpace(raw[idx+len(prompts.DescriptionMarker):])
	}

	return sqlQuery, description
}
