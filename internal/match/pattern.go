package match

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// pattern is a case-insensitive regular expression whose leading and
// trailing \b assertions also treat non-ASCII letters as word characters.
// RE2's \b is ASCII-only, so "stadt" would otherwise match inside "Großstadt".
type pattern struct {
	re       *regexp.Regexp
	leading  bool
	trailing bool
}

func mustPattern(expr string) pattern {
	return pattern{
		re:       regexp.MustCompile(`(?i)` + expr),
		leading:  strings.HasPrefix(expr, `\b`),
		trailing: strings.HasSuffix(expr, `\b`),
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// bounded reports whether the match s[start:end] sits on word boundaries.
func (p pattern) bounded(s string, start, end int) bool {
	if p.leading && start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if p.trailing && end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// MatchString reports whether s contains a bounded match.
func (p pattern) MatchString(s string) bool {
	for _, loc := range p.re.FindAllStringIndex(s, -1) {
		if p.bounded(s, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// ReplaceAll replaces every bounded match with repl, expanding $1-style
// references.
func (p pattern) ReplaceAll(s, repl string) string {
	matches := p.re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !p.bounded(s, m[0], m[1]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.Write(p.re.ExpandString(nil, repl, s, m))
		last = m[1]
	}
	if last == 0 && b.Len() == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
