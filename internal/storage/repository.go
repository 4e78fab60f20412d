package storage

import (
	"context"
	"errors"

	"capturevault/internal/domain"
)

// ErrAlreadyAnalyzed is returned when a capture already carries a caption or
// embedding. Image analysis is written once.
var ErrAlreadyAnalyzed = errors.New("capture already analyzed")

// CaptureStore persists captures. Every lookup is scoped by user id; a record
// owned by another user is indistinguishable from a missing one and yields
// domain.ErrNotFoundOrForbidden.
type CaptureStore interface {
	// SaveCapture stores a new capture or overwrites an existing one.
	SaveCapture(ctx context.Context, c domain.Capture) error

	GetCapture(ctx context.Context, userID, id string) (*domain.Capture, error)

	// ListCaptures returns the user's captures, newest first. When kinds is
	// non-empty only those kinds are returned.
	ListCaptures(ctx context.Context, userID string, kinds ...domain.CaptureKind) ([]domain.Capture, error)

	// ListCapturesInCategory is ListCaptures restricted to one category.
	// An empty category matches every capture.
	ListCapturesInCategory(ctx context.Context, userID, category string, kinds ...domain.CaptureKind) ([]domain.Capture, error)

	// DeleteCapture removes a capture. Any attached preview is left in place.
	DeleteCapture(ctx context.Context, userID, id string) error

	// AttachPreview sets the weak preview reference of a capture.
	AttachPreview(ctx context.Context, userID, captureID, previewID string) error

	// SetImageAnalysis records the caption and embedding of an image capture.
	SetImageAnalysis(ctx context.Context, userID, captureID, caption string, embedding []float64) error
}

// PreviewStore persists link previews, unique per (user, canonical URL).
type PreviewStore interface {
	// UpsertPreview inserts or patches the preview of in.CanonicalURL and
	// returns its id.
	UpsertPreview(ctx context.Context, userID string, in domain.PreviewInput) (string, error)

	GetPreview(ctx context.Context, userID, id string) (*domain.LinkPreview, error)
	GetPreviewByCanonicalURL(ctx context.Context, userID, canonicalURL string) (*domain.LinkPreview, error)
	ListPreviews(ctx context.Context, userID string) ([]domain.LinkPreview, error)
}

// TagStore persists tags and their usage signals.
type TagStore interface {
	// UpsertTags normalizes names and bumps the usage of each resulting tag.
	UpsertTags(ctx context.Context, userID string, names []string) ([]domain.Tag, error)

	// ListTags returns the user's tags, most recently used first.
	ListTags(ctx context.Context, userID string) ([]domain.Tag, error)
}

// Repository is the full data store used by the application.
type Repository interface {
	CaptureStore
	PreviewStore
	TagStore

	// Close gracefully shuts down the repository connection.
	Close() error
}
