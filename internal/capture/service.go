// Package capture is the write side of the vault: it validates and stores
// captures for the authenticated user, keeps tag usage current, hands link
// captures to enrichment and indexes analyzed images.
package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"capturevault/internal/blob"
	"capturevault/internal/domain"
	"capturevault/internal/embedding"
	"capturevault/internal/storage"
	"capturevault/internal/vectorstore"
)

// Store is the part of the data store the service writes through.
type Store interface {
	storage.CaptureStore
	storage.TagStore
}

// Enqueuer schedules background enrichment of a link capture.
type Enqueuer interface {
	EnrichAsync(c domain.Capture) bool
}

// Service implements capture operations on behalf of the user in ctx.
type Service struct {
	store     Store
	enricher  Enqueuer
	captioner embedding.Captioner
	index     vectorstore.Index
	blobs     blob.Resolver
	now       func() time.Time
	log       logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithEnricher enables link enrichment on create.
func WithEnricher(e Enqueuer) Option {
	return func(s *Service) { s.enricher = e }
}

// WithCaptioner enables image analysis.
func WithCaptioner(c embedding.Captioner) Option {
	return func(s *Service) { s.captioner = c }
}

// WithIndex mirrors image embeddings into a vector index.
func WithIndex(idx vectorstore.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithBlobResolver resolves stored images for analysis.
func WithBlobResolver(r blob.Resolver) Option {
	return func(s *Service) { s.blobs = r }
}

// NewService creates a capture service.
func NewService(store Store, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   logger.WithField("component", "capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores c for the user in ctx and returns the stored capture.
// Link captures are queued for enrichment; enrichment never fails creation.
func (s *Service) Create(ctx context.Context, c domain.Capture) (*domain.Capture, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c.UserID = userID
	c.ID = uuid.NewString()
	c.URL = strings.TrimSpace(c.URL)
	c.Href = strings.TrimSpace(c.Href)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	if strings.TrimSpace(c.Category) == "" {
		c.Category = domain.DefaultCategory
	}
	c.Tags = domain.NormalizeTagNames(c.Tags)
	// Analysis results and preview references are produced server-side.
	c.Caption = ""
	c.ImageEmbedding = nil
	c.LinkPreviewID = ""

	log := s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"capture_id": c.ID,
		"kind":       c.Kind,
	})

	if err := s.store.SaveCapture(ctx, c); err != nil {
		log.WithError(err).Error("Failed to save capture")
		return nil, fmt.Errorf("failed to save capture: %w", err)
	}

	if len(c.Tags) > 0 {
		if _, err := s.store.UpsertTags(ctx, userID, c.Tags); err != nil {
			log.WithError(err).Warn("Failed to record tag usage")
		}
	}

	if c.Kind == domain.KindLink && s.enricher != nil {
		if !s.enricher.EnrichAsync(c) {
			log.Warn("Link capture saved without enrichment")
		}
	}

	log.Info("Capture saved")
	return &c, nil
}

// Get returns one of the user's captures.
func (s *Service) Get(ctx context.Context, id string) (*domain.Capture, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetCapture(ctx, userID, id)
}

// List returns the user's captures, newest first.
func (s *Service) List(ctx context.Context, kinds ...domain.CaptureKind) ([]domain.Capture, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListCaptures(ctx, userID, kinds...)
}

// ListInCategory returns the user's captures of one category, newest first.
// An empty category lists everything.
func (s *Service) ListInCategory(ctx context.Context, category string, kinds ...domain.CaptureKind) ([]domain.Capture, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListCapturesInCategory(ctx, userID, category, kinds...)
}

// Delete removes one of the user's captures and its index entry. The link
// preview, if any, is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCapture(ctx, userID, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, userID, id); err != nil {
			// Stale points are skipped at query time.
			s.log.WithError(err).WithField("capture_id", id).Warn("Failed to remove capture from vector index")
		}
	}
	return nil
}

// UpsertTags records usage of names for the user in ctx.
func (s *Service) UpsertTags(ctx context.Context, names []string) ([]domain.Tag, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.UpsertTags(ctx, userID, names)
}

// ListTags returns the user's tags, most recently used first.
func (s *Service) ListTags(ctx context.Context) ([]domain.Tag, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListTags(ctx, userID)
}

// AnalyzeImage captions an image or screenshot capture, stores the caption
// and embedding, and mirrors the embedding into the vector index.
func (s *Service) AnalyzeImage(ctx context.Context, id string) (*domain.Capture, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if s.captioner == nil {
		return nil, fmt.Errorf("%w: no captioner configured", domain.ErrEmbeddingUnavailable)
	}

	c, err := s.store.GetCapture(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !c.Kind.IsVisual() {
		return nil, fmt.Errorf("%w: %s captures have no image", domain.ErrInvalidCapture, c.Kind)
	}

	imageURL, err := s.imageURL(c)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"capture_id": id,
	})

	caption, vec, err := s.captioner.Caption(ctx, imageURL)
	if err != nil {
		log.WithError(err).Warn("Image analysis failed")
		return nil, err
	}
	if err := s.store.SetImageAnalysis(ctx, userID, id, caption, vec); err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Upsert(ctx, userID, id, vec); err != nil {
			// Search falls back to scanning stored embeddings.
			log.WithError(err).Warn("Failed to index image embedding")
		}
	}

	c.Caption = caption
	c.ImageEmbedding = vec
	log.Info("Image analyzed")
	return c, nil
}

// imageURL prefers the stored blob over the page source.
func (s *Service) imageURL(c *domain.Capture) (string, error) {
	if c.StorageID != "" && s.blobs != nil {
		u, err := s.blobs.GetURL(c.StorageID)
		if err == nil {
			return u, nil
		}
		s.log.WithError(err).WithField("storage_id", c.StorageID).Debug("Blob URL not resolved, using source")
	}
	if c.Src == "" {
		return "", fmt.Errorf("%w: capture has no image source", domain.ErrInvalidCapture)
	}
	return c.Src, nil
}
