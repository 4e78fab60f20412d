package domain

import (
	"fmt"
	"strings"
	"time"
)

// CaptureKind is the discriminator of the Capture tagged union.
type CaptureKind string

const (
	KindImage      CaptureKind = "image"
	KindText       CaptureKind = "text"
	KindLink       CaptureKind = "link"
	KindCode       CaptureKind = "code"
	KindScreenshot CaptureKind = "screenshot"
)

// DefaultCategory is assigned to captures saved without a category.
const DefaultCategory = "unsorted"

// Valid reports whether k is one of the known capture kinds.
func (k CaptureKind) Valid() bool {
	switch k {
	case KindImage, KindText, KindLink, KindCode, KindScreenshot:
		return true
	}
	return false
}

// IsVisual reports whether captures of this kind can carry an image embedding.
func (k CaptureKind) IsVisual() bool {
	return k == KindImage || k == KindScreenshot
}

// Capture represents a single saved artifact.
type Capture struct {
	// ID is the unique identifier of the capture (a UUID).
	ID string `json:"id"`

	// UserID owns the capture. Every store lookup is scoped by it.
	UserID string `json:"user_id"`

	Kind CaptureKind `json:"kind"`

	// URL is the page the capture was taken on.
	URL string `json:"url"`

	// Href is the link target for link captures.
	Href string `json:"href,omitempty"`

	// Text is the anchor text of a link capture.
	Text string `json:"text,omitempty"`

	// Content holds the body of text, code and screenshot captures.
	Content string `json:"content,omitempty"`

	// Src, Alt, Width and Height describe image captures.
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// StorageID references the uploaded blob of image and screenshot captures.
	StorageID string `json:"storage_id,omitempty"`

	// TagName is the element tag a screenshot was taken of.
	TagName string `json:"tag_name,omitempty"`

	Title    string   `json:"title,omitempty"`
	Note     string   `json:"note,omitempty"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`

	// Timestamp indicates when the capture was taken.
	Timestamp time.Time `json:"timestamp"`

	// Caption and ImageEmbedding are written once by the captioning collaborator.
	Caption        string    `json:"caption,omitempty"`
	ImageEmbedding []float64 `json:"image_embedding,omitempty"`

	// LinkPreviewID is a weak reference to the LinkPreview of a link capture.
	// The preview's lifetime is not tied to the capture.
	LinkPreviewID string `json:"link_preview_id,omitempty"`
}

// Validate checks the fields required by the capture's kind.
func (c *Capture) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCapture, c.Kind)
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidCapture)
	}
	switch c.Kind {
	case KindLink:
		if strings.TrimSpace(c.Href) == "" {
			return fmt.Errorf("%w: href is required for link captures", ErrInvalidCapture)
		}
	case KindText, KindCode:
		if c.Content == "" {
			return fmt.Errorf("%w: content is required for %s captures", ErrInvalidCapture, c.Kind)
		}
	case KindScreenshot:
		if c.TagName == "" {
			return fmt.Errorf("%w: tag_name is required for screenshot captures", ErrInvalidCapture)
		}
	}
	return nil
}

// LinkTarget returns the URL a link capture should be enriched from.
func (c *Capture) LinkTarget() string {
	if c.Href != "" {
		return c.Href
	}
	return c.URL
}
