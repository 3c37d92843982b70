package match

import (
	"github.com/geo-mapper/internal/normalize"
)

// ExactID matches input id columns against every "id*" column of the
// dataset. With strip set, leading zeros are removed on both sides.
type ExactID struct {
	strip bool
}

func NewExactID(stripLeadingZeros bool) *ExactID {
	return &ExactID{strip: stripLeadingZeros}
}

func (s *ExactID) Name() string {
	if s.strip {
		return StrategyIDWithoutLeadingZero
	}
	return StrategyExactID
}

func (s *ExactID) Requires() Requirement { return RequiresIDColumns }

// Match binds a row when every non-empty input id that resolves at all
// resolves to the same single entity. Ambiguous keys are ignored.
func (s *ExactID) Match(req *Request) []Proposal {
	cols := req.Columns.availableIDColumns(req.Input)
	if len(cols) == 0 {
		return nil
	}
	ix := req.Ref.idIndex(s.strip)
	if len(ix) == 0 {
		return nil
	}

	ambiguous := newSampler(req.Logger, "ambiguous id keys", s.Name(), req.Ref.Name())
	conflicting := newSampler(req.Logger, "input id columns disagree", s.Name(), req.Ref.Name())
	defer ambiguous.flush()
	defer conflicting.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		var hits []idHit
		for _, col := range cols {
			raw, _ := req.Input.Value(row, col)
			key, ok := normalize.ID(raw, s.strip)
			if !ok {
				continue
			}
			hit, ok := ix.resolve(key)
			if !ok {
				if len(ix[key]) > 0 {
					ambiguous.add("row %d: %s=%q", row.Index, col, raw)
				}
				continue
			}
			hits = append(hits, hit)
		}
		if len(hits) == 0 {
			continue
		}
		agree := true
		for _, h := range hits[1:] {
			if h.Value != hits[0].Value {
				agree = false
				break
			}
		}
		if !agree {
			conflicting.add("row %d", row.Index)
			continue
		}
		h := hits[0]
		proposals = append(proposals, Proposal{
			Row:      row.Index,
			EntityID: h.EntityID,
			Value:    h.Value,
			Label:    h.Label,
			Param:    h.Column,
		})
	}
	return proposals
}
