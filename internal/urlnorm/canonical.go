// Package urlnorm turns raw URLs into deduplication-safe storage keys.
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"capturevault/internal/domain"
)

// trackingParams are dropped from every canonical URL. Keys are compared
// case-insensitively.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"igsh":         {},
	"mc_cid":       {},
	"mc_eid":       {},
}

// Canonicalize normalizes raw into its canonical form: fragment removed, host
// lower-cased, tracking parameters removed and the remaining query sorted by
// key. When raw cannot be parsed it is returned unchanged together with
// domain.ErrInvalidURL, so callers can still use it as a degraded key.
func Canonicalize(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return raw, err
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)

	if query, err := url.ParseQuery(u.RawQuery); err == nil {
		for key := range query {
			if isTracking(key) {
				delete(query, key)
			}
		}
		// Encode sorts by key and keeps the order of values within a key.
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = filterRawQuery(u.RawQuery)
	}
	u.ForceQuery = false

	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String(), nil
}

func isTracking(key string) bool {
	_, tracked := trackingParams[strings.ToLower(key)]
	return tracked
}

// filterRawQuery handles queries url.ParseQuery rejects, such as ones with a
// ';' or a bad escape. Pairs are kept verbatim; tracking keys are dropped and
// the rest are sorted by key.
func filterRawQuery(rawQuery string) string {
	type pair struct{ key, raw string }
	var pairs []pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if isTracking(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	kept := make([]string, len(pairs))
	for i, p := range pairs {
		kept[i] = p.raw
	}
	return strings.Join(kept, "&")
}

// Domain returns the lower-cased hostname of rawURL without its port, or ""
// when rawURL cannot be parsed.
func Domain(rawURL string) string {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Resolve resolves ref against base. Empty refs stay empty; refs that cannot
// be resolved are returned as given.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func parseAbsolute(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", domain.ErrInvalidURL, raw)
	}
	if h := u.Hostname(); h == "" || strings.ContainsAny(h, " \t") {
		return nil, fmt.Errorf("%w: bad host in %q", domain.ErrInvalidURL, raw)
	}
	return u, nil
}
