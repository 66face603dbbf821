package ingest

import (
	"strings"
	"unicode"

	"github.com/david/opportunity-finder/internal/models"
)

// tagAliases folds spellings seen across sources onto one canonical token.
// Keys are already snake-cased.
var tagAliases = map[string]string{
	// level
	"undergrad":        "undergraduate",
	"undergraduates":   "undergraduate",
	"grad":             "graduate",
	"graduate_student": "graduate",
	"phd":              "graduate",
	"ph.d.":            "graduate",
	"doctoral":         "graduate",
	"masters":          "graduate",
	"post_doc":         "postdoc",
	"postdoctoral":     "postdoc",

	// citizenship
	"u.s._citizen":            "us_citizen",
	"u.s._citizens":           "us_citizen",
	"us_citizens":             "us_citizen",
	"u.s._permanent_resident": "permanent_resident",
	"us_permanent_resident":   "permanent_resident",
	"permanent_residents":     "permanent_resident",
	"non_us":                  "international",
	"non_u.s.":                "international",
	"international_students":  "international",

	// field (URF discipline labels)
	"arts_and_architecture":     "arts",
	"foreign_language_learning": "language",
	"social_science":            "social_sciences",
}

// NormalizeTags canonicalizes raw tag strings into the five fixed categories.
// Unknown categories are dropped; missing ones come back empty.
func NormalizeTags(raw map[string][]string) models.Tags {
	buckets := make(map[models.Category][]string, len(models.Categories))
	for key, values := range raw {
		cat, ok := models.ParseCategory(snakeCase(key))
		if !ok {
			continue
		}
		for _, v := range values {
			if tok := NormalizeTagToken(v); tok != "" {
				buckets[cat] = append(buckets[cat], tok)
			}
		}
	}

	var tags models.Tags
	for _, c := range models.Categories {
		tags = tags.With(c, models.NewTagSet(buckets[c]...))
	}
	return tags
}

// NormalizeTagToken lower-cases and snake-cases one token and applies the
// alias table. Tokens without a single letter or digit come back empty.
func NormalizeTagToken(v string) string {
	tok := snakeCase(cleanInline(v))
	if alias, ok := tagAliases[tok]; ok {
		tok = alias
	}
	if !strings.ContainsFunc(tok, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return ""
	}
	return tok
}

// NormalizeDiscipline splits a comma-separated discipline line (as listed on
// URF) into field tokens.
func NormalizeDiscipline(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(text, ",") {
		if tok := NormalizeTagToken(part); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// snakeCase lower-cases s and turns runs of whitespace, hyphens, slashes and
// underscores into a single underscore.
func snakeCase(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsSpace(r) || r == '-' || r == '/' || r == '_' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}
