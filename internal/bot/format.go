package bot

import (
	"fmt"
	"regexp"
	"strings"

	"capturevault/internal/domain"
	"capturevault/internal/search"
)

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"]+`)
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)
)

// extractURLs returns the distinct http(s) URLs in text, in order.
func extractURLs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?)]}'")
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func extractHashtags(text string) []string {
	var out []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return domain.NormalizeTagNames(out)
}

// commandArgs strips the leading /command (and any @botname) from text.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}

func formatResults(resp search.Response) string {
	if resp.Outcome == search.OutcomeFailed {
		return "Search failed, please try again later."
	}

	var b strings.Builder
	if resp.Outcome == search.OutcomeDegraded {
		b.WriteString("Semantic search is unavailable, showing text matches.\n\n")
	}
	if len(resp.Results) == 0 {
		b.WriteString("No results.")
		return b.String()
	}

	for i, r := range resp.Results {
		if i == maxReplyResults {
			break
		}
		fmt.Fprintf(&b, "%d. %s", i+1, r.Title)
		if r.Domain != "" {
			fmt.Fprintf(&b, " (%s)", r.Domain)
		}
		if link := firstNonEmpty(r.URL, r.PageURL); link != "" {
			fmt.Fprintf(&b, "\n%s", link)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTags(tags []domain.Tag) string {
	if len(tags) == 0 {
		return "You have no tags yet. Add #tags when you send a link."
	}
	var b strings.Builder
	b.WriteString("Your tags:\n")
	for _, t := range tags {
		fmt.Fprintf(&b, "#%s (%d)\n", t.Name, t.UseCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
