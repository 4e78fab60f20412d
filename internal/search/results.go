package search

import (
	"capturevault/internal/domain"
)

const (
	DefaultLimit    = 30
	MaxLimit        = 100
	DefaultMinScore = 0.25
)

// ClampLimit maps zero to DefaultLimit and clamps the rest to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return max(1, min(MaxLimit, limit))
}

// ClampMinScore maps nil to DefaultMinScore and clamps the rest to [-1, 1].
func ClampMinScore(minScore *float64) float64 {
	if minScore == nil || *minScore != *minScore {
		return DefaultMinScore
	}
	return max(-1, min(1, *minScore))
}

const untitled = "Untitled"

func linkResult(c LinkCandidate) domain.ScoredResult {
	r := domain.ScoredResult{
		ID:        c.Capture.ID,
		Kind:      domain.KindLink,
		Title:     firstNonEmpty(c.Capture.Title, c.Capture.Text, untitled),
		URL:       c.Capture.Href,
		PageURL:   c.Capture.URL,
		Tags:      tagsOf(c.Capture),
		Category:  categoryOf(c.Capture),
		Timestamp: c.Capture.Timestamp,
	}
	if p := c.Preview; p != nil {
		r.Title = firstNonEmpty(p.Title, r.Title)
		r.Description = p.Description
		r.Domain = p.Domain
		r.FaviconURL = p.FaviconURL
		r.ImageURL = p.ImageURL
		r.ContentType = p.ContentType
	}
	return r
}

// captureResult renders any capture. ImageURL holds the capture's src until
// the searcher resolves stored blobs.
func captureResult(c domain.Capture) domain.ScoredResult {
	r := domain.ScoredResult{
		ID:        c.ID,
		Kind:      c.Kind,
		Title:     firstNonEmpty(c.Title, c.Alt, c.Text, untitled),
		URL:       firstNonEmpty(c.Href, c.Src),
		PageURL:   c.URL,
		Alt:       c.Alt,
		StorageID: c.StorageID,
		Width:     c.Width,
		Height:    c.Height,
		Tags:      tagsOf(c),
		Category:  categoryOf(c),
		Timestamp: c.Timestamp,
	}
	if c.Kind.IsVisual() {
		r.ImageURL = c.Src
	}
	return r
}

func tagsOf(c domain.Capture) []string {
	if c.Tags == nil {
		return []string{}
	}
	return c.Tags
}

func categoryOf(c domain.Capture) string {
	if c.Category == "" {
		return domain.DefaultCategory
	}
	return c.Category
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
