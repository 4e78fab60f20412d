package domain

import "errors"

var (
	// ErrInvalidURL is returned for URLs that cannot be parsed. Callers degrade
	// to the raw string as a key.
	ErrInvalidURL = errors.New("invalid url")

	// ErrFetchFailed is returned when a page fetch fails or answers non-2xx.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnauthorized is returned when an operation has no authenticated identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmbeddingUnavailable is returned when the embedding collaborator fails
	// or answers with a malformed vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrNotFoundOrForbidden is returned when a record does not exist or is
	// owned by another user.
	ErrNotFoundOrForbidden = errors.New("not found or permission denied")

	// ErrInvalidCapture is returned when a capture fails validation.
	ErrInvalidCapture = errors.New("invalid capture")
)
