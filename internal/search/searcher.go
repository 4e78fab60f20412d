// Package search ranks a user's captures against a free-text query.
//
// Link-scoped queries are ranked lexically. Everything else tries semantic
// ranking of image embeddings first and falls back to a substring scan; the
// Response says which strategy answered and whether the answer is degraded.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"capturevault/internal/blob"
	"capturevault/internal/domain"
	"capturevault/internal/embedding"
	"capturevault/internal/vectorstore"
)

// LinkPrefix marks a query as link-scoped.
const LinkPrefix = "link:"

// candidateFactor is how many index candidates are fetched per requested
// result before exact re-scoring.
const candidateFactor = 4

// Strategy names the ranker that produced a response.
type Strategy string

const (
	StrategyLinks     Strategy = "links"
	StrategySemantic  Strategy = "semantic"
	StrategySubstring Strategy = "substring"
)

// Outcome tells "no results" apart from "search degraded".
type Outcome string

const (
	// OutcomeOK means the chosen strategy ran as intended.
	OutcomeOK Outcome = "ok"
	// OutcomeDegraded means a fallback answered because a collaborator failed.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFailed means no strategy could answer.
	OutcomeFailed Outcome = "failed"
)

// Response is the result of one search.
type Response struct {
	Results  []domain.ScoredResult
	Strategy Strategy
	Outcome  Outcome
	// Reason is set for degraded and failed outcomes.
	Reason error
}

// Store is the read side of the data store used by search.
type Store interface {
	GetCapture(ctx context.Context, userID, id string) (*domain.Capture, error)
	ListCaptures(ctx context.Context, userID string, kinds ...domain.CaptureKind) ([]domain.Capture, error)
	ListPreviews(ctx context.Context, userID string) ([]domain.LinkPreview, error)
}

// Searcher orchestrates the rankers.
type Searcher struct {
	store    Store
	embedder embedding.Embedder
	index    vectorstore.Index
	blobs    blob.Resolver
	log      logrus.FieldLogger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithEmbedder enables semantic ranking.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Searcher) { s.embedder = e }
}

// WithIndex uses an ANN index to pick semantic candidates.
func WithIndex(idx vectorstore.Index) Option {
	return func(s *Searcher) { s.index = idx }
}

// WithBlobResolver resolves stored images into fetchable URLs.
func WithBlobResolver(r blob.Resolver) Option {
	return func(s *Searcher) { s.blobs = r }
}

// NewSearcher creates a searcher over store.
func NewSearcher(store Store, logger logrus.FieldLogger, opts ...Option) *Searcher {
	s := &Searcher{
		store: store,
		log:   logger.WithField("component", "search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errNoEmbedder = fmt.Errorf("%w: no embedder configured", domain.ErrEmbeddingUnavailable)

// Search runs req for the user in ctx. Only a missing identity is returned as
// an error; every other failure is reported through the Response.
func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) (Response, error) {
	userID, err := domain.UserFromContext(ctx)
	if err != nil {
		return Response{}, err
	}

	query := strings.TrimSpace(req.Query)
	limit := ClampLimit(req.Limit)
	log := s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"limit":   limit,
	})

	if rest, ok := cutLinkPrefix(query); ok || req.Scope == domain.ScopeLinks {
		if ok {
			query = rest
		}
		return s.searchLinks(ctx, userID, query, limit), nil
	}

	var reason error
	if query != "" {
		results, err := s.searchSemantic(ctx, userID, query, ClampMinScore(req.MinScore), limit)
		switch {
		case err != nil:
			log.WithError(err).Warn("Semantic search unavailable, falling back to substring")
			reason = err
		case len(results) > 0:
			return Response{Results: results, Strategy: StrategySemantic, Outcome: OutcomeOK}, nil
		}
	}

	captures, err := s.store.ListCaptures(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Substring search failed")
		return Response{
			Results:  []domain.ScoredResult{},
			Strategy: StrategySubstring,
			Outcome:  OutcomeFailed,
			Reason:   errors.Join(reason, err),
		}, nil
	}

	resp := Response{
		Results:  s.resolveImages(MatchSubstring(query, captures, limit)),
		Strategy: StrategySubstring,
		Outcome:  OutcomeOK,
	}
	if reason != nil {
		resp.Outcome = OutcomeDegraded
		resp.Reason = reason
	}
	return resp, nil
}

func cutLinkPrefix(query string) (string, bool) {
	if len(query) >= len(LinkPrefix) && strings.EqualFold(query[:len(LinkPrefix)], LinkPrefix) {
		return strings.TrimSpace(query[len(LinkPrefix):]), true
	}
	return query, false
}

func (s *Searcher) searchLinks(ctx context.Context, userID, query string, limit int) Response {
	candidates, err := s.linkCandidates(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("Link search failed")
		return Response{
			Results:  []domain.ScoredResult{},
			Strategy: StrategyLinks,
			Outcome:  OutcomeFailed,
			Reason:   err,
		}
	}
	return Response{
		Results:  RankLinks(query, candidates, limit),
		Strategy: StrategyLinks,
		Outcome:  OutcomeOK,
	}
}

// linkCandidates joins the user's link captures with their previews. Previews
// without a domain are ignored.
func (s *Searcher) linkCandidates(ctx context.Context, userID string) ([]LinkCandidate, error) {
	links, err := s.store.ListCaptures(ctx, userID, domain.KindLink)
	if err != nil {
		return nil, fmt.Errorf("failed to list link captures: %w", err)
	}
	previews, err := s.store.ListPreviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list previews: %w", err)
	}

	byID := make(map[string]*domain.LinkPreview, len(previews))
	for i := range previews {
		if previews[i].Domain != "" {
			byID[previews[i].ID] = &previews[i]
		}
	}

	candidates := make([]LinkCandidate, 0, len(links))
	for _, c := range links {
		candidates = append(candidates, LinkCandidate{Capture: c, Preview: byID[c.LinkPreviewID]})
	}
	return candidates, nil
}

func (s *Searcher) searchSemantic(ctx context.Context, userID, query string, minScore float64, limit int) (results []domain.ScoredResult, err error) {
	if s.embedder == nil {
		return nil, errNoEmbedder
	}

	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrEmbeddingUnavailable, r)
		}
	}()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.semanticCandidates(ctx, userID, vec, limit)
	if err != nil {
		return nil, err
	}
	return s.resolveImages(RankSemantic(vec, candidates, minScore, limit)), nil
}

// semanticCandidates asks the index for the nearest captures when one is
// configured and falls back to scanning every visual capture.
func (s *Searcher) semanticCandidates(ctx context.Context, userID string, vec []float64, limit int) ([]domain.Capture, error) {
	if s.index != nil {
		ids, err := s.index.Nearest(ctx, userID, vec, candidateFactor*limit)
		if err == nil {
			candidates := make([]domain.Capture, 0, len(ids))
			for _, id := range ids {
				c, err := s.store.GetCapture(ctx, userID, id)
				if err != nil {
					// Stale index entries point at deleted captures.
					continue
				}
				candidates = append(candidates, *c)
			}
			return candidates, nil
		}
		s.log.WithError(err).Warn("Vector index unavailable, scanning captures")
	}

	captures, err := s.store.ListCaptures(ctx, userID, domain.KindImage, domain.KindScreenshot)
	if err != nil {
		return nil, fmt.Errorf("failed to list image captures: %w", err)
	}
	return captures, nil
}

// resolveImages replaces image URLs of stored blobs with fetchable ones.
func (s *Searcher) resolveImages(results []domain.ScoredResult) []domain.ScoredResult {
	if s.blobs == nil {
		return results
	}
	for i := range results {
		if results[i].StorageID == "" {
			continue
		}
		u, err := s.blobs.GetURL(results[i].StorageID)
		if err != nil {
			s.log.WithError(err).WithField("storage_id", results[i].StorageID).Debug("Blob URL not resolved")
			continue
		}
		results[i].ImageURL = u
	}
	return results
}
