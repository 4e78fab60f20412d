package search

import (
	"strings"

	"capturevault/internal/domain"
)

// MatchSubstring keeps the captures whose title, alt, category, url or tags
// contain query, case-insensitively. Matches are unscored and keep input
// order.
func MatchSubstring(query string, captures []domain.Capture, limit int) []domain.ScoredResult {
	needle := strings.ToLower(query)
	limit = ClampLimit(limit)

	results := make([]domain.ScoredResult, 0)
	for _, c := range captures {
		if len(results) == limit {
			break
		}
		if strings.Contains(haystack(c), needle) {
			results = append(results, captureResult(c))
		}
	}
	return results
}

func haystack(c domain.Capture) string {
	fields := make([]string, 0, 4+len(c.Tags))
	for _, f := range []string{c.Title, c.Alt, c.Category, c.URL} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	for _, t := range c.Tags {
		if t != "" {
			fields = append(fields, t)
		}
	}
	return strings.ToLower(strings.Join(fields, " \n"))
}
