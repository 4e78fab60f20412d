package domain

import (
	"strings"
	"time"
)

// Tag is a user label with usage signals for suggestions.
type Tag struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	UseCount   int       `json:"use_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// NormalizeTagName trims and lower-cases a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeTagNames normalizes names, dropping empties and duplicates.
// First-seen order is kept.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = NormalizeTagName(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
