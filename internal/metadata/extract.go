// Package metadata pulls preview fields out of raw HTML.
//
// Extraction is deliberately heuristic: every field is an ordered list of
// regular-expression lookups and the first non-empty match wins. Values are
// returned as found in the page; relative URLs are not resolved here.
package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"capturevault/internal/domain"
)

// extractor returns a field candidate from html, or "" when absent.
type extractor func(html string) string

// chain is an ordered fallback list of extractors for one field.
type chain []extractor

// first returns the first non-empty value produced by c.
func (c chain) first(html string) string {
	for _, ex := range c {
		if v := ex(html); v != "" {
			return v
		}
	}
	return ""
}

// Field chains, in priority order.
var (
	titleChain = chain{
		metaTag("property", "og:title"),
		metaTag("name", "twitter:title"),
		pattern(`(?i)<title[^>]*>([^<]+)</title>`),
	}
	descriptionChain = chain{
		metaTag("property", "og:description"),
		metaTag("name", "description"),
		metaTag("name", "twitter:description"),
	}
	imageChain = chain{
		metaTag("property", "og:image"),
		metaTag("name", "twitter:image"),
	}
	siteNameChain = chain{
		metaTag("property", "og:site_name"),
	}
	ogTypeChain = chain{
		metaTag("property", "og:type"),
	}
	langChain = chain{
		pattern(`(?i)<html[^>]*\slang=["']([^"']+)["'][^>]*>`),
	}
	faviconChain = chain{
		pattern(`(?i)<link[^>]+rel=["'][^"']*icon[^"']*["'][^>]+href=["']([^"']+)["'][^>]*>`),
		pattern(`(?i)<link[^>]+href=["']([^"']+)["'][^>]*rel=["'][^"']*icon[^"']*["'][^>]*>`),
	}
	authorChain = chain{
		metaTag("name", "author"),
		metaTag("property", "article:author"),
		metaTag("name", "twitter:creator"),
	}
	publishedChain = chain{
		metaTag("property", "article:published_time"),
		metaTag("name", "date"),
	}
	keywordsChain = chain{
		metaTag("name", "keywords"),
	}
)

var keywordSeparators = regexp.MustCompile(`[,;]`)

// Extract resolves every metadata field of htmlBody. Text fields are
// entity- and percent-decoded; URLs, lang, dates and the og:type hint are
// returned exactly as found.
func Extract(htmlBody string) domain.Metadata {
	if htmlBody == "" {
		return domain.Metadata{}
	}
	return domain.Metadata{
		Title:           Decode(titleChain.first(htmlBody)),
		Description:     Decode(descriptionChain.first(htmlBody)),
		ImageURL:        imageChain.first(htmlBody),
		SiteName:        Decode(siteNameChain.first(htmlBody)),
		FaviconURL:      faviconChain.first(htmlBody),
		ContentTypeHint: ogTypeChain.first(htmlBody),
		Lang:            langChain.first(htmlBody),
		Author:          Decode(authorChain.first(htmlBody)),
		PublishedDate:   publishedChain.first(htmlBody),
		Keywords:        splitKeywords(keywordsChain.first(htmlBody)),
	}
}

// metaTag matches <meta {attr}="{key}" content="..."> with the two attributes
// in either order.
func metaTag(attr, key string) extractor {
	k := regexp.QuoteMeta(key)
	return firstOf(
		pattern(fmt.Sprintf(`(?i)<meta\s+%s=["']%s["']\s+content=["']([^"']+)["']`, attr, k)),
		pattern(fmt.Sprintf(`(?i)<meta\s+content=["']([^"']+)["']\s+%s=["']%s["']`, attr, k)),
	)
}

// pattern returns an extractor yielding the trimmed first capture group of expr.
func pattern(expr string) extractor {
	re := regexp.MustCompile(expr)
	return func(html string) string {
		m := re.FindStringSubmatch(html)
		if len(m) < 2 {
			return ""
		}
		return strings.TrimSpace(m[1])
	}
}

func firstOf(exs ...extractor) extractor {
	return chain(exs).first
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, k := range keywordSeparators.Split(raw, -1) {
		k = Decode(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
