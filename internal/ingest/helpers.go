package ingest

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// normalizeSpace collapses runs of whitespace into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanInline strips every tag from short single-line fields such as names
// and source labels. bluemonday escapes entities, so they are unescaped again.
func cleanInline(s string) string {
	s = sanitizeUTF8(s)
	if !strings.ContainsAny(s, "<>&") {
		return normalizeSpace(s)
	}
	return normalizeSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(s string) string {
	s = sanitizeUTF8(s)
	if !strings.ContainsAny(s, "<>&") {
		return normalizeSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s) // Fallback to original if parsing fails
	}
	doc.Find("script, style").Remove()
	return normalizeSpace(doc.Text())
}

// TruncateText cuts a string to max runes, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

func extractDomain(rawURL string) string {
	u := rawURL
	if idx := strings.Index(u, "://"); idx >= 0 {
		u = u[idx+3:]
	}
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.TrimPrefix(strings.ToLower(u), "www.")
}
