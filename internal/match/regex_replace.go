package match

import (
	"github.com/geo-mapper/internal/normalize"
)

type compiledRule struct {
	pattern     pattern
	replacement string
}

// RegexReplace rewrites administrative decorators in the input name and
// looks every resulting variant up in the normalized name index.
type RegexReplace struct {
	rules []compiledRule
}

// NewRegexReplace compiles rules. It panics on an invalid pattern.
func NewRegexReplace(rules []RewriteRule) *RegexReplace {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		compiled[i] = compiledRule{pattern: mustPattern(r.Pattern), replacement: r.Replacement}
	}
	return &RegexReplace{rules: compiled}
}

func (s *RegexReplace) Name() string          { return StrategyRegexReplace }
func (s *RegexReplace) Requires() Requirement { return RequiresNameColumn }

// Variants returns text plus the closure of all rule applications: each rule
// in turn is applied to every variant collected so far and new results are
// added. Order is discovery order, text first.
func (s *RegexReplace) Variants(text string) []string {
	variants := []string{text}
	seen := map[string]bool{text: true}
	for _, rule := range s.rules {
		n := len(variants)
		for i := 0; i < n; i++ {
			v := rule.pattern.ReplaceAll(variants[i], rule.replacement)
			if !seen[v] {
				seen[v] = true
				variants = append(variants, v)
			}
		}
	}
	return variants
}

// Match binds a row when the variants reach exactly one unused entity. A
// variant counts only if exactly one unused candidate sits under its key;
// all counting variants must agree.
func (s *RegexReplace) Match(req *Request) []Proposal {
	ix := req.Ref.nameIndex(nameIndexText, normalize.Text)

	conflicting := newSampler(req.Logger, "variants reach different entities", s.Name(), req.Ref.Name())
	defer conflicting.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		raw := req.name(row)

		var first *nameHit
		var firstKey string
		agree := true
		checked := make(map[string]bool)
		for _, variant := range s.Variants(raw) {
			key := normalize.Text(variant)
			if key == "" || checked[key] {
				continue
			}
			checked[key] = true
			avail := ix.available(key, req.Used)
			if len(avail) != 1 {
				continue
			}
			if first == nil {
				hit := avail[0]
				first, firstKey = &hit, key
				continue
			}
			if avail[0].EntityID != first.EntityID {
				agree = false
				break
			}
		}
		if first == nil {
			continue
		}
		if !agree {
			conflicting.add("%s", raw)
			continue
		}
		proposals = append(proposals, Proposal{
			Row:      row.Index,
			EntityID: first.EntityID,
			Value:    first.EntityID,
			Label:    first.Label,
			Param:    firstKey,
		})
	}
	return proposals
}
