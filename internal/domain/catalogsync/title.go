package catalogsync

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle canonicalizes a product title for destination matching:
// unicode NFKC normalization, case folding, and whitespace collapsing. Two
// titles that normalize equal are treated as the same product.
func NormalizeTitle(s string) string {
	s = norm.NFKC.String(s)
	// cases.Caser carries internal state and is not safe to share across
	// goroutines; construct one per call.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// BaseTitle strips the variant suffix from a combined title ("Widget - Red"
// -> "Widget"). Titles without a separator are returned unchanged.
func BaseTitle(s string) string {
	if idx := strings.LastIndex(s, " - "); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// TitlesMatch reports whether two titles normalize to the same product name.
func TitlesMatch(a, b string) bool {
	return NormalizeTitle(a) == NormalizeTitle(b)
}
