// ABOUTME: Link extraction from chat message text
// ABOUTME: Recognizes <url|label> chat markup and bare URLs, parses domains

package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Link is a single URL mentioned in a message, with its parsed domain.
type Link struct {
	URL    string
	Domain string
}

// markupRE matches chat-markup links: <http://example.com|label> or
// <http://example.com>. The label part is ignored.
var markupRE = regexp.MustCompile(`<(https?://[^|>]+)(?:\|[^>]*)?>`)

// bareRE matches bare URLs outside markup. Scheme-optional: "example.com/x"
// counts as long as the host has a dot.
var bareRE = regexp.MustCompile(`(?i)\b(?:https?://)?(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s<>|]*)?`)

// Extract returns every link mentioned in text, in order of appearance,
// de-duplicated by URL. Malformed URLs are skipped; Extract never fails.
func Extract(text string) []Link {
	var out []Link
	seen := make(map[string]bool)

	add := func(raw string) {
		raw = strings.TrimRight(raw, ".,;:!?)")
		if raw == "" || seen[raw] {
			return
		}
		domain := parseDomain(raw)
		if domain == "" {
			return
		}
		seen[raw] = true
		out = append(out, Link{URL: raw, Domain: domain})
	}

	// Markup links first, then strip them so bareRE doesn't re-match labels.
	for _, m := range markupRE.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	stripped := markupRE.ReplaceAllString(text, " ")
	for _, m := range bareRE.FindAllString(stripped, -1) {
		add(m)
	}

	return out
}

// parseDomain returns the lower-cased hostname of a URL, or "" if the URL
// cannot be parsed.
func parseDomain(raw string) string {
	withScheme := raw
	if !strings.Contains(raw, "://") {
		withScheme = "http://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
