package match

import (
	"github.com/geo-mapper/internal/normalize"
)

// nameIndexText is the Reference index keyed by normalize.Text.
const nameIndexText = "text"

// UniqueName binds rows whose normalized name is a safe key in the
// dataset's name index.
type UniqueName struct{}

func NewUniqueName() *UniqueName { return &UniqueName{} }

func (s *UniqueName) Name() string          { return StrategyUniqueName }
func (s *UniqueName) Requires() Requirement { return RequiresNameColumn }

func (s *UniqueName) Match(req *Request) []Proposal {
	ix := req.Ref.nameIndex(nameIndexText, normalize.Text)

	noMatch := newSampler(req.Logger, "no normalized name match", s.Name(), req.Ref.Name())
	ambiguous := newSampler(req.Logger, "ambiguous normalized names", s.Name(), req.Ref.Name())
	defer noMatch.flush()
	defer ambiguous.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		raw := req.name(row)
		key := normalize.Text(raw)
		if key == "" {
			continue
		}
		hit, ok := ix.safe(key)
		if !ok {
			if n := len(ix[key]); n == 0 {
				noMatch.add("%s", raw)
			} else {
				ambiguous.add("%s (matches=%d, ids=%d)", raw, n, ix.idCount(key))
			}
			continue
		}
		proposals = append(proposals, Proposal{
			Row:      row.Index,
			EntityID: hit.EntityID,
			Value:    hit.EntityID,
			Label:    hit.Label,
			Param:    key,
		})
	}
	return proposals
}
