package scraper

import (
	"context"
	"mime"
	"strings"
)

// Fetcher retrieves web pages for enrichment.
type Fetcher interface {
	// Fetch performs a GET on url, following redirects. A page is returned
	// whenever a response arrived, even a non-2xx one; in that case the error
	// wraps domain.ErrFetchFailed as well. Network failures return a nil page.
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Page is the outcome of one fetch.
type Page struct {
	// FinalURL is the URL after redirects.
	FinalURL    string
	Status      int
	ContentType string
	// HTML holds the (size-capped) body of text/html responses only.
	HTML string
}

// IsHTML reports whether the response declared a text/html body.
func (p *Page) IsHTML() bool {
	return isHTML(p.ContentType)
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html"
}
