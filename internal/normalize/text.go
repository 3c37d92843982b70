package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// umlautReplacer expands German umlauts to their two-letter ASCII digraphs.
// Applied after case folding, so only lower-case forms are listed.
var umlautReplacer = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

var reNonLetters = regexp.MustCompile(`[^a-z]+`)

// Text converts a cell value into the canonical comparable form used by every
// name-based strategy: case-folded, umlauts expanded, diacritics stripped,
// everything outside a-z collapsed into single spaces.
//
//	Text("  Bad Tölz-Wolfratshausen ") == "bad toelz wolfratshausen"
//	Text("Straße 12")                 == "strasse"
func Text(value string) string {
	if value == "" {
		return ""
	}

	folded := cases.Fold().String(value)
	folded = umlautReplacer.Replace(folded)

	// NFKD, then drop combining marks. Built per call: transformers are stateful.
	stripper := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(stripper, folded)
	if err != nil {
		stripped = folded
	}

	return strings.TrimSpace(reNonLetters.ReplaceAllString(stripped, " "))
}

// NoSpace returns Text(value) with all spaces removed.
func NoSpace(value string) string {
	return strings.ReplaceAll(Text(value), " ", "")
}

// TokenSortKey normalizes value, sorts its tokens and rejoins them with a
// single space, so word order no longer matters.
func TokenSortKey(value string) string {
	tokens := strings.Fields(Text(value))
	if len(tokens) == 0 {
		return ""
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
