package search

import (
	"math"
	"sort"

	"capturevault/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or -1 when either is
// empty or their lengths differ. A zero-norm vector scores 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		denom = 1e-9
	}
	return dot / denom
}

// RankSemantic scores image and screenshot captures by cosine similarity to
// query. Candidates of other kinds, without an embedding or with an
// embedding of another length never participate. Results below minScore are
// dropped; the rest are sorted by score, best first.
func RankSemantic(query []float64, candidates []domain.Capture, minScore float64, limit int) []domain.ScoredResult {
	type scored struct {
		capture domain.Capture
		score   float64
	}
	var hits []scored
	for _, c := range candidates {
		if !c.Kind.IsVisual() || len(c.ImageEmbedding) == 0 || len(c.ImageEmbedding) != len(query) {
			continue
		}
		s := Cosine(c.ImageEmbedding, query)
		if math.IsNaN(s) || math.IsInf(s, 0) || s < minScore {
			continue
		}
		hits = append(hits, scored{c, s})
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
		r := captureResult(h.capture)
		r.Score = h.score
		results = append(results, r)
	}
	return results
}
