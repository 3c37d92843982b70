package match

import (
	"github.com/geo-mapper/internal/normalize"
)

const nameIndexTokens = "tokens"

// TokenSort compares order-independent token keys of the input name, alone
// and with each administrative suffix appended, against the token keys of
// the reference names. Registered as token_permutation.
type TokenSort struct {
	suffixes []string
}

func NewTokenSort(suffixes []string) *TokenSort {
	return &TokenSort{suffixes: append([]string(nil), suffixes...)}
}

func (s *TokenSort) Name() string          { return StrategyTokenPermutation }
func (s *TokenSort) Requires() Requirement { return RequiresNameColumn }

// Variants returns text and text + " " + suffix for every suffix.
func (s *TokenSort) Variants(text string) []string {
	variants := make([]string, 0, len(s.suffixes)+1)
	variants = append(variants, text)
	for _, suffix := range s.suffixes {
		variants = append(variants, text+" "+suffix)
	}
	return variants
}

// Match filters already used entities before judging uniqueness, so once
// "Kreisfreie Stadt X" is taken "Landkreis X" can still resolve uniquely.
func (s *TokenSort) Match(req *Request) []Proposal {
	ix := req.Ref.nameIndex(nameIndexTokens, normalize.TokenSortKey)

	conflicting := newSampler(req.Logger, "suffix variants reach different entities", s.Name(), req.Ref.Name())
	defer conflicting.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		raw := req.name(row)

		var first *nameHit
		var firstKey string
		agree := true
		for _, variant := range s.Variants(raw) {
			key := normalize.TokenSortKey(variant)
			if key == "" {
				continue
			}
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
