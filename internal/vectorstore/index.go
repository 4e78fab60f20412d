// Package vectorstore keeps an optional approximate-nearest-neighbour index
// of image embeddings. Search uses it only to pick candidates; final scores
// are always computed exactly from the stored vectors.
package vectorstore

import "context"

// Index stores one vector per capture, partitioned by user.
type Index interface {
	// Upsert inserts or replaces the vector of a capture.
	Upsert(ctx context.Context, userID, captureID string, vec []float64) error

	// Nearest returns up to k capture ids of userID closest to vec, best first.
	Nearest(ctx context.Context, userID string, vec []float64, k int) ([]string, error)

	// Delete removes the vector of a capture. Missing points are not an error.
	Delete(ctx context.Context, userID, captureID string) error
}
