package search

import (
	"sort"
	"strings"

	"capturevault/internal/domain"
)

// Field weights of the lexical link ranker. A term scores in every field it
// hits.
const (
	weightHref        = 10
	weightDescription = 8
	weightTitle       = 7
	weightKeyword     = 6
	weightDomain      = 5
)

// LinkCandidate is a link capture joined with its preview, if any.
type LinkCandidate struct {
	Capture domain.Capture
	Preview *domain.LinkPreview
}

// RankLinks scores link candidates against the whitespace-separated terms of
// query. Zero scores are dropped; ties keep input order.
func RankLinks(query string, candidates []LinkCandidate, limit int) []domain.ScoredResult {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []domain.ScoredResult{}
	}

	type scored struct {
		cand  LinkCandidate
		score int
	}
	var hits []scored
	for _, c := range candidates {
		if s := scoreLink(terms, c); s > 0 {
			hits = append(hits, scored{c, s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	limit = ClampLimit(limit)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]domain.ScoredResult, 0, len(hits))
	for _, h := range hits {
		r := linkResult(h.cand)
		r.Score = float64(h.score)
		results = append(results, r)
	}
	return results
}

func scoreLink(terms []string, c LinkCandidate) int {
	href := strings.ToLower(c.Capture.Href)
	captureTitle := strings.ToLower(c.Capture.Title)

	var title, description, dom string
	var keywords []string
	if p := c.Preview; p != nil {
		title = strings.ToLower(p.Title)
		description = strings.ToLower(p.Description)
		dom = strings.ToLower(p.Domain)
		keywords = p.Keywords
	}

	score := 0
	for _, term := range terms {
		if strings.Contains(href, term) {
			score += weightHref
		}
		if strings.Contains(description, term) {
			score += weightDescription
		}
		if strings.Contains(title, term) {
			score += weightTitle
		}
		if strings.Contains(captureTitle, term) {
			score += weightTitle
		}
		if anyContains(keywords, term) {
			score += weightKeyword
		}
		if strings.Contains(dom, term) {
			score += weightDomain
		}
	}
	return score
}

func anyContains(values []string, term string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
