package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/geo-mapper/internal/normalize"
)

// DefaultMaxTokens caps the token count of full permutation matching.
const DefaultMaxTokens = 6

const nameIndexNoSpace = "nospace"

var reTokenSeparators = regexp.MustCompile(`[^0-9a-zA-ZäöüÄÖÜß]+`)

// TokenPermutation joins every distinct ordering of the input tokens without
// separators and compares the result with space-free normalized reference
// names. Registered as token_permutation_full.
type TokenPermutation struct {
	maxTokens int
}

func NewTokenPermutation(maxTokens int) *TokenPermutation {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &TokenPermutation{maxTokens: maxTokens}
}

func (s *TokenPermutation) Name() string          { return StrategyTokenPermutationFull }
func (s *TokenPermutation) Requires() Requirement { return RequiresNameColumn }

// Tokens splits text on anything that is not a letter, digit or German
// special character and lower-cases the pieces.
func Tokens(text string) []string {
	cleaned := strings.ToLower(strings.TrimSpace(reTokenSeparators.ReplaceAllString(text, " ")))
	return strings.Fields(cleaned)
}

// Permutation is one distinct token ordering.
type Permutation struct {
	Joined string // tokens joined without separator
	Key    string // normalized, space free
}

// Permutations returns the distinct orderings of tokens in lexicographic
// order, or nil when there are no tokens or more than the cap.
func (s *TokenPermutation) Permutations(tokens []string) []Permutation {
	if len(tokens) == 0 || len(tokens) > s.maxTokens {
		return nil
	}
	toks := append([]string(nil), tokens...)
	sort.Strings(toks)

	// Normalizing the concatenation equals concatenating the normalized
	// tokens since tokens contain no separators.
	keys := make(map[string]string, len(toks))
	for _, t := range toks {
		keys[t] = normalize.NoSpace(t)
	}

	var out []Permutation
	seen := make(map[string]bool)
	for {
		var joined, key strings.Builder
		for _, t := range toks {
			joined.WriteString(t)
			key.WriteString(keys[t])
		}
		if k := key.String(); !seen[k] {
			seen[k] = true
			out = append(out, Permutation{Joined: joined.String(), Key: k})
		}
		if !nextPermutation(toks) {
			return out
		}
	}
}

// nextPermutation rearranges p into the next lexicographic permutation,
// skipping duplicates. It returns false after the last one.
func nextPermutation(p []string) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
	return true
}

// Match binds a row when the permutation keys that hit exactly one reference
// entity all hit the same one. Used entities are not filtered here; the
// resolver rejects collisions.
func (s *TokenPermutation) Match(req *Request) []Proposal {
	ix := req.Ref.nameIndex(nameIndexNoSpace, normalize.NoSpace)

	skipped := newSampler(req.Logger, "token count outside permutation bounds", s.Name(), req.Ref.Name())
	conflicting := newSampler(req.Logger, "orderings reach different entities", s.Name(), req.Ref.Name())
	defer skipped.flush()
	defer conflicting.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		raw := req.name(row)
		tokens := Tokens(raw)
		perms := s.Permutations(tokens)
		if perms == nil {
			if len(tokens) > s.maxTokens {
				skipped.add("%s (%d tokens)", raw, len(tokens))
			}
			continue
		}

		var first *nameHit
		var firstPerm string
		agree := true
		for _, p := range perms {
			if p.Key == "" {
				continue
			}
			cands := ix[p.Key]
			if len(cands) != 1 {
				continue
			}
			if first == nil {
				hit := cands[0]
				first, firstPerm = &hit, p.Joined
				continue
			}
			if cands[0].EntityID != first.EntityID {
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
			Param:    firstPerm,
		})
	}
	return proposals
}
