// Package blob resolves stored object references to fetchable URLs.
package blob

import (
	"errors"
	"net/url"
	"strings"
)

// ErrNoStorage is returned when no object storage is configured.
var ErrNoStorage = errors.New("object storage not configured")

// Resolver maps a storage id to a URL the captioning model can fetch.
type Resolver interface {
	GetURL(storageID string) (string, error)
}

// PrefixResolver serves blobs from BaseURL/{storageID}.
type PrefixResolver struct {
	BaseURL string
}

var _ Resolver = PrefixResolver{}

// GetURL implements Resolver.
func (r PrefixResolver) GetURL(storageID string) (string, error) {
	if r.BaseURL == "" {
		return "", ErrNoStorage
	}
	if strings.TrimSpace(storageID) == "" {
		return "", errors.New("empty storage id")
	}
	return strings.TrimRight(r.BaseURL, "/") + "/" + url.PathEscape(storageID), nil
}
