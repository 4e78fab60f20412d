package domain

import "time"

// SearchScope restricts a search to a subset of captures.
type SearchScope string

const (
	ScopeAll   SearchScope = ""
	ScopeLinks SearchScope = "links"
)

// SearchRequest is the query surface input.
type SearchRequest struct {
	Query string
	// Limit is clamped to [1,100]; zero selects the default.
	Limit int
	// MinScore applies to semantic results only; nil selects the default.
	MinScore *float64
	Scope    SearchScope
}

// ScoredResult is a query-time view of a capture. It is never persisted.
type ScoredResult struct {
	ID          string      `json:"id"`
	Kind        CaptureKind `json:"kind"`
	Score       float64     `json:"score,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	PageURL     string      `json:"page_url,omitempty"`
	Domain      string      `json:"domain,omitempty"`
	FaviconURL  string      `json:"favicon_url,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
	Alt         string      `json:"alt,omitempty"`
	StorageID   string      `json:"storage_id,omitempty"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Tags        []string    `json:"tags"`
	Category    string      `json:"category,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
