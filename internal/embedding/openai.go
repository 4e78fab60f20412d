package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"capturevault/internal/domain"
)

const (
	captionPrompt      = `Return JSON: {"caption": string, "keywords": string[]} describing and indexing this image. Keep it factual and concise.`
	captionMaxTokens   = 250
	captionTemperature = 0.2
	plainCaptionRunes  = 500
	emptyCaptionText   = "image"
)

// Client implements Embedder and Captioner against an OpenAI-compatible API.
type Client struct {
	embedder embeddings.Embedder
	llm      llms.Model
	cfg      Config
	log      logrus.FieldLogger
}

var (
	_ Embedder  = (*Client)(nil)
	_ Captioner = (*Client)(nil)
)

// NewClient builds the langchaingo clients for cfg.
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithModel(cfg.CaptionModel),
	}
	if cfg.Host != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Host))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Client{
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		log:      logger.WithField("component", "embedding"),
	}, nil
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		c.log.WithError(err).Warn("Embedding request failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	out, err := Validate(toFloat64(vec), c.cfg.Dimensions)
	if err != nil {
		c.log.WithError(err).WithField("length", len(vec)).Warn("Malformed embedding returned")
		return nil, err
	}
	return out, nil
}

// Caption implements Captioner: the image is described by the chat model and
// the description plus keywords is embedded.
func (c *Client) Caption(ctx context.Context, imageURL string) (string, []float64, error) {
	log := c.log.WithField("image_url", imageURL)

	callCtx, cancel := c.withTimeout(ctx)
	resp, err := c.llm.GenerateContent(callCtx, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(captionPrompt),
				llms.ImageURLPart(imageURL),
			},
		},
	}, llms.WithMaxTokens(captionMaxTokens), llms.WithTemperature(captionTemperature))
	cancel()
	if err != nil {
		log.WithError(err).Warn("Caption request failed")
		return "", nil, fmt.Errorf("%w: captioning failed: %w", domain.ErrEmbeddingUnavailable, err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Content
	}
	caption, keywords := ParseCaption(content)

	vec, err := c.Embed(ctx, EmbeddingText(caption, keywords))
	if err != nil {
		return "", nil, err
	}

	log.WithField("keywords", len(keywords)).Debug("Image captioned")
	return caption, vec, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// ParseCaption reads the model's {caption, keywords} answer. Answers that are
// not a JSON object are treated as a plain caption cut to 500 characters.
// Fenced code blocks around the JSON are tolerated.
func ParseCaption(content string) (caption string, keywords []string) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var answer struct {
		Caption  json.RawMessage `json:"caption"`
		Keywords json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return truncateRunes(content, plainCaptionRunes), nil
	}

	// Fields of the wrong type are ignored rather than rejected.
	_ = json.Unmarshal(answer.Caption, &caption)
	var raw []any
	if json.Unmarshal(answer.Keywords, &raw) == nil {
		for _, k := range raw {
			if s, ok := k.(string); ok && s != "" {
				keywords = append(keywords, s)
			}
		}
	}
	return caption, keywords
}

// EmbeddingText is the text embedded for an image: caption and space-joined
// keywords on separate lines, or "image" when both are empty.
func EmbeddingText(caption string, keywords []string) string {
	var parts []string
	if caption != "" {
		parts = append(parts, caption)
	}
	if kw := strings.Join(keywords, " "); kw != "" {
		parts = append(parts, kw)
	}
	if len(parts) == 0 {
		return emptyCaptionText
	}
	return strings.Join(parts, " \n")
}

// Validate checks a vector returned by the model. Empty vectors, vectors of
// the wrong size and non-finite components fail with ErrEmbeddingUnavailable.
func Validate(vec []float64, dimensions int) ([]float64, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbeddingUnavailable)
	}
	if dimensions > 0 && len(vec) != dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrEmbeddingUnavailable, len(vec), dimensions)
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite component at %d", domain.ErrEmbeddingUnavailable, i)
		}
	}
	return vec, nil
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
