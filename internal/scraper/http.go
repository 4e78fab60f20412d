package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"capturevault/internal/domain"
)

// Options configures an HTTPFetcher. Zero values select the defaults.
type Options struct {
	Timeout       time.Duration // per attempt, default 10s
	RatePerSecond float64       // shared across all fetches, default 5
	Burst         int           // default 5
	MaxBodyBytes  int64         // default 2 MiB
	UserAgent     string
	MaxAttempts   int           // network-error attempts, default 2
	RetryDelay    time.Duration // base backoff, default 250ms
}

const defaultUserAgent = "Mozilla/5.0 (compatible; capturevault/1.0; +link-preview)"

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 2 << 20
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 250 * time.Millisecond
	}
	return o
}

// HTTPFetcher implements Fetcher with net/http, a shared rate limiter and
// retries on network errors.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	log     logrus.FieldLogger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. The default client follows up to ten
// redirects.
func NewHTTPFetcher(opts Options, logger logrus.FieldLogger) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		opts:    opts,
		log:     logger.WithField("component", "scraper"),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	log := f.log.WithField("url", url)
	log.Debug("Fetching page")

	var page *Page
	err := retryWithBackoff(ctx, f.opts.MaxAttempts, f.opts.RetryDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoffStop(err)
		}
		var err error
		page, err = f.do(ctx, url)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Page fetch failed")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, url, err)
	}

	if page.Status < 200 || page.Status > 299 {
		log.WithField("status", page.Status).Warn("Page answered with non-2xx status")
		return page, fmt.Errorf("%w: %s answered %d", domain.ErrFetchFailed, url, page.Status)
	}

	log.WithFields(logrus.Fields{
		"status":       page.Status,
		"final_url":    page.FinalURL,
		"content_type": page.ContentType,
	}).Debug("Page fetched")
	return page, nil
}

// do performs a single attempt. Transport errors are retryable; anything that
// produced a response is final.
func (f *HTTPFetcher) do(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoffStop(err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{
		FinalURL:    resp.Request.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if !isHTML(page.ContentType) {
		return page, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		// Keep whatever arrived; a truncated head still carries the meta tags.
		f.log.WithError(err).WithField("url", url).Debug("Partial body read")
	}
	page.HTML = string(body)
	return page, nil
}

// stopError marks an error that must not be retried.
type stopError struct{ err error }

func (e stopError) Error() string { return e.err.Error() }
func (e stopError) Unwrap() error { return e.err }

func backoffStop(err error) error { return stopError{err} }

// retryWithBackoff runs op up to maxAttempts times, sleeping
// baseDelay*2^(attempt-1) between attempts.
func retryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var stop stopError
		if errors.As(lastErr, &stop) {
			return stop.err
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(baseDelay << (attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
