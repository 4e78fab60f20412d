// Package embedding wraps the text-embedding and image-captioning models.
package embedding

import (
	"context"
	"time"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	// Embed fails with domain.ErrEmbeddingUnavailable on collaborator errors
	// and on empty or wrongly sized vectors.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Captioner describes an image and embeds the description.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (caption string, embedding []float64, err error)
}

// Config holds settings for an OpenAI-compatible endpoint.
type Config struct {
	Host           string
	APIKey         string
	EmbeddingModel string
	CaptionModel   string
	// Dimensions is the expected vector length; zero accepts any non-empty length.
	Dimensions int
	Timeout    time.Duration
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return c.Host != "" || c.APIKey != ""
}
