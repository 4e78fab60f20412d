// Package enrich turns link captures into link previews.
//
// A pass fetches the link target, canonicalizes the URL it landed on,
// extracts metadata from HTML bodies, classifies the page, upserts the
// preview and attaches it to the capture. Fetch failures degrade to a minimal
// preview; nothing in a pass is allowed to fail capture creation.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"capturevault/internal/classify"
	"capturevault/internal/domain"
	"capturevault/internal/metadata"
	"capturevault/internal/scraper"
	"capturevault/internal/urlnorm"
)

const defaultFavicon = "/favicon.ico"

// Store is the part of the data store enrichment writes to.
type Store interface {
	UpsertPreview(ctx context.Context, userID string, in domain.PreviewInput) (string, error)
	AttachPreview(ctx context.Context, userID, captureID, previewID string) error
}

// Enricher runs enrichment passes, synchronously or on a worker pool.
type Enricher struct {
	fetcher scraper.Fetcher
	store   Store
	pool    *ants.Pool
	flight  singleflight.Group
	workers int
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithWorkers sets the size of the async worker pool.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithWorkers(n int) Option {
	return func(e *Enricher) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithTimeout bounds each async pass. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEnricher creates an enricher and its worker pool. Call Release when done.
func NewEnricher(fetcher scraper.Fetcher, store Store, logger logrus.FieldLogger, opts ...Option) (*Enricher, error) {
	e := &Enricher{
		fetcher: fetcher,
		store:   store,
		workers: max(1, runtime.NumCPU()),
		timeout: 30 * time.Second,
		log:     logger.WithField("component", "enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(e.workers,
		ants.WithNonblocking(true),
		ants.WithLogger(e.log),
		ants.WithPanicHandler(func(p any) {
			e.log.WithField("panic", p).Error("Enrichment job panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Release stops accepting jobs and waits up to timeout for running ones.
func (e *Enricher) Release(timeout time.Duration) error {
	return e.pool.ReleaseTimeout(timeout)
}

// EnrichAsync queues a pass for c and returns immediately. It reports whether
// the job was accepted; a saturated pool drops the job and the capture simply
// stays without a preview.
func (e *Enricher) EnrichAsync(c domain.Capture) bool {
	if c.Kind != domain.KindLink {
		return false
	}
	log := e.log.WithFields(logrus.Fields{
		"user_id":    c.UserID,
		"capture_id": c.ID,
	})

	err := e.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if _, err := e.Enrich(ctx, c); err != nil {
			log.WithError(err).Warn("Async enrichment failed")
		}
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			log.Warn("Enrichment pool saturated, job dropped")
		} else {
			log.WithError(err).Error("Failed to submit enrichment job")
		}
		return false
	}
	return true
}

// Enrich runs one pass for a link capture and returns the preview id.
// Concurrent passes for the same user and target share one fetch and upsert;
// each still attaches the preview to its own capture.
func (e *Enricher) Enrich(ctx context.Context, c domain.Capture) (string, error) {
	if c.Kind != domain.KindLink {
		return "", fmt.Errorf("%w: only link captures are enriched", domain.ErrInvalidCapture)
	}
	target := c.LinkTarget()
	log := e.log.WithFields(logrus.Fields{
		"user_id":    c.UserID,
		"capture_id": c.ID,
		"url":        target,
	})

	v, err, shared := e.flight.Do(c.UserID+"\x00"+target, func() (any, error) {
		// Callers joining this pass must not inherit the first caller's cancellation.
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		in := e.Build(passCtx, target)
		return e.store.UpsertPreview(passCtx, c.UserID, in)
	})
	if err != nil {
		log.WithError(err).Error("Failed to store link preview")
		return "", err
	}
	previewID := v.(string)

	if err := e.store.AttachPreview(ctx, c.UserID, c.ID, previewID); err != nil {
		log.WithError(err).Warn("Failed to attach preview to capture")
		return previewID, fmt.Errorf("failed to attach preview: %w", err)
	}

	log.WithFields(logrus.Fields{
		"preview_id": previewID,
		"shared":     shared,
	}).Info("Link capture enriched")
	return previewID, nil
}

// Build fetches rawURL and derives the preview fields without storing them.
// It never fails: unreachable, non-2xx and non-HTML pages yield a minimal
// preview, and an unparsable URL is used verbatim as the canonical key.
func (e *Enricher) Build(ctx context.Context, rawURL string) domain.PreviewInput {
	log := e.log.WithField("url", rawURL)

	page, fetchErr := e.fetch(ctx, rawURL)
	if fetchErr != nil {
		log.WithError(fetchErr).Debug("Fetch failed, building minimal preview")
	}

	finalURL := rawURL
	status := 0
	if page != nil {
		status = page.Status
		if page.FinalURL != "" {
			finalURL = page.FinalURL
		}
	}

	canonical, err := urlnorm.Canonicalize(finalURL)
	if err != nil {
		log.WithError(err).Debug("Using raw URL as canonical key")
	}

	in := domain.PreviewInput{
		CanonicalURL: canonical,
		OriginalURL:  rawURL,
		Domain:       urlnorm.Domain(canonical),
		HTTPStatus:   status,
	}

	if fetchErr != nil || page == nil {
		in.Degraded = true
		in.ContentType = classify.Classify(canonical, "", "")
		return in
	}

	var html string
	if page.IsHTML() {
		html = page.HTML
		in.Meta = metadata.Extract(html)
	}
	in.ContentType = classify.Classify(canonical, html, in.Meta.ContentTypeHint)
	in.Meta.ImageURL = urlnorm.Resolve(canonical, in.Meta.ImageURL)
	in.Meta.FaviconURL = urlnorm.Resolve(canonical, in.Meta.FaviconURL)
	if in.Meta.FaviconURL == "" && in.Domain != "" {
		in.Meta.FaviconURL = urlnorm.Resolve(canonical, defaultFavicon)
	}
	return in
}

// fetch shields the pass from fetcher panics.
func (e *Enricher) fetch(ctx context.Context, rawURL string) (page *scraper.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrFetchFailed, r)
		}
	}()
	return e.fetcher.Fetch(ctx, rawURL)
}
