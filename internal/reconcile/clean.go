// Package reconcile matches spreadsheet entities against stored records and
// compares their metric values with date alignment.
package reconcile

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// "[S019] name" or "【S019】name" style prefixes.
	bracketPrefix = regexp.MustCompile(`^\s*\[[^\]]*\]\s*`)
	// Bare "S019name" / "A12 name" code prefixes.
	codePrefix = regexp.MustCompile(`^[A-Za-z]+\d+\s*`)
	// Trailing "(...)" qualifier, ASCII after width normalization.
	trailingParen = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	// Everything except CJK, letters and digits.
	nonName = regexp.MustCompile(`[^\p{Han}\p{L}\p{N}]+`)

	widthNormalizer = strings.NewReplacer(
		"（", "(",
		"）", ")",
		"【", "[",
		"】", "]",
		"　", " ",
	)
)

// CleanName reduces a store display name to its comparable core: markup
// stripped, code prefixes and trailing qualifiers removed, punctuation
// dropped. Portal names carry HTML spans and "[S019]" codes that
// human-filled spreadsheets never do.
func CleanName(raw string) string {
	s := stripMarkup(raw)
	s = widthNormalizer.Replace(s)
	s = bracketPrefix.ReplaceAllString(s, "")
	s = codePrefix.ReplaceAllString(s, "")
	s = trailingParen.ReplaceAllString(s, "")
	s = nonName.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripMarkup drops HTML tags, keeping their text content. Plain strings
// pass through untouched.
func stripMarkup(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	return doc.Text()
}
