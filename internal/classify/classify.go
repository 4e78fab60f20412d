// Package classify assigns a content type to a canonical URL.
//
// Classification is a pure function of (url, html, og:type): URL rules are
// evaluated first in a fixed priority order, then HTML markers break ties for
// generic pages, then the declared og:type is used.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"capturevault/internal/domain"
)

// target is the lower-cased view of a URL that rules match against.
type target struct {
	full string // whole URL
	host string // hostname without port or leading "www."
	path string // path with a trailing slash stripped, never empty
	raw  string // path as written, for segment rules that need the closing slash
}

type rule struct {
	contentType domain.ContentType
	match       func(t target) bool
}

var (
	marketplaceProduct = regexp.MustCompile(`(amazon\.[a-z.]+/(?:[^/]+/)?(?:dp|gp/product)/|ebay\.[a-z.]+/itm/|etsy\.com/(?:[a-z]{2}/)?listing/)`)
	repositoryPath     = regexp.MustCompile(`^/[^/]+/[^/]+$`)
	vimeoVideo         = regexp.MustCompile(`^/\d+`)
	tiktokVideo        = regexp.MustCompile(`^/@[^/]+/video/`)
	subredditComments  = regexp.MustCompile(`^/r/[^/]+/comments/`)
)

var codeHosts = []string{"github.com", "gitlab.com", "bitbucket.org", "codeberg.org"}

// rules is evaluated in order; the first match wins.
var rules = []rule{
	{domain.ContentEvent, func(t target) bool {
		return (onHost(t, "facebook.com", "fb.com") && strings.Contains(t.raw, "/events/")) ||
			(onHost(t, "eventbrite.com") && strings.HasPrefix(t.path, "/e/")) ||
			(onHost(t, "meetup.com") && strings.Contains(t.raw, "/events/"))
	}},
	{domain.ContentVideo, func(t target) bool {
		return (onHost(t, "youtube.com") && (strings.HasPrefix(t.path, "/watch") || strings.HasPrefix(t.path, "/shorts/"))) ||
			(onHost(t, "youtu.be") && t.path != "/") ||
			(onHost(t, "vimeo.com") && vimeoVideo.MatchString(t.path)) ||
			(onHost(t, "twitch.tv") && strings.Contains(t.path, "/videos/")) ||
			(onHost(t, "tiktok.com") && tiktokVideo.MatchString(t.path))
	}},
	{domain.ContentProduct, func(t target) bool {
		return containsAny(t.raw, "/product/", "/products/", "/item/", "/dp/") ||
			marketplaceProduct.MatchString(t.full)
	}},
	{domain.ContentRepository, func(t target) bool {
		return onHost(t, codeHosts...) && repositoryPath.MatchString(t.path)
	}},
	{domain.ContentSocial, func(t target) bool {
		return (onHost(t, "twitter.com", "x.com") && strings.Contains(t.path, "/status/")) ||
			(onHost(t, "linkedin.com") && (strings.HasPrefix(t.path, "/posts/") || strings.HasPrefix(t.path, "/pulse/"))) ||
			(onHost(t, "reddit.com") && subredditComments.MatchString(t.path)) ||
			(onHost(t, "bsky.app", "threads.net") && strings.Contains(t.path, "/post/"))
	}},
	{domain.ContentDocumentation, func(t target) bool {
		return containsAny(t.raw, "/docs/", "/documentation/", "/api/", "/reference/")
	}},
	{domain.ContentArticle, func(t target) bool {
		return containsAny(t.raw, "/blog/", "/post/", "/article/")
	}},
}

// htmlRules break ties for pages whose URL says nothing and whose og:type is
// generic.
var htmlRules = []struct {
	contentType domain.ContentType
	markers     []string
}{
	{domain.ContentVideo, []string{"<video", "youtube.com/embed", "vimeo.com/video"}},
	{domain.ContentProduct, []string{`"add to cart"`, `"add to bag"`, `class="price"`, `itemprop="price"`}},
	{domain.ContentEvent, []string{`"@type":"event"`, `"@type": "event"`, "schema.org/event"}},
}

// Classify returns the content type of canonicalURL. It never performs I/O and
// always returns the same type for the same inputs.
func Classify(canonicalURL, htmlBody, ogType string) domain.ContentType {
	t := newTarget(canonicalURL)
	for _, r := range rules {
		if r.match(t) {
			return r.contentType
		}
	}

	declared := strings.ToLower(strings.TrimSpace(ogType))
	if declared == "" {
		declared = string(domain.ContentWebsite)
	}

	if declared == string(domain.ContentWebsite) || declared == string(domain.ContentArticle) {
		body := strings.ToLower(htmlBody)
		for _, hr := range htmlRules {
			if containsAny(body, hr.markers...) {
				return hr.contentType
			}
		}
	}

	return domain.ContentType(declared)
}

func newTarget(rawURL string) target {
	full := strings.ToLower(rawURL)
	t := target{full: full, path: "/"}

	u, err := url.Parse(full)
	if err != nil {
		return t
	}
	t.host = strings.TrimPrefix(u.Hostname(), "www.")
	t.raw = u.Path
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		t.path = p
	}
	return t
}

// onHost reports whether t is on one of domains or a subdomain of it.
func onHost(t target, domains ...string) bool {
	for _, d := range domains {
		if t.host == d || strings.HasSuffix(t.host, "."+d) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
