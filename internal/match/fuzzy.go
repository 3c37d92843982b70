package match

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/geo-mapper/internal/debug"
	"github.com/geo-mapper/internal/normalize"
)

// FuzzyTiers holds the acceptance thresholds of the fuzzy strategy. Scores
// are on a 0-100 scale.
type FuzzyTiers struct {
	MinBase           float64 // base similarity floor
	MinTotal          float64 // floor after bonuses
	MarginMin         float64 // gap to the runner-up
	MarginMixedNoHint float64 // gap when top candidates mix kfs and lk and the input gives no hint
	TypeBonus         float64 // input type preference equals candidate type
	StructBonus       float64 // decorator-stripped bases are identical
}

// DefaultFuzzyTiers returns the tuned defaults.
func DefaultFuzzyTiers() *FuzzyTiers {
	return &FuzzyTiers{
		MinBase:           55,
		MinTotal:          64,
		MarginMin:         8,
		MarginMixedNoHint: 12,
		TypeBonus:         10,
		StructBonus:       6,
	}
}

// adminType is the inferred administrative type of a name.
type adminType string

const (
	typeNone      adminType = ""
	typeKreisfrei adminType = "kfs"
	typeLandkreis adminType = "lk"
)

// typePreference infers what the input asks for. Landkreis-like words win
// over city titles.
func typePreference(raw string) adminType {
	if landkreisPattern.MatchString(raw) {
		return typeLandkreis
	}
	if kfsPattern.MatchString(raw) || excelDecor.MatchString(raw) {
		return typeKreisfrei
	}
	return typeNone
}

// candidateType infers the type of a reference name.
func candidateType(raw string) adminType {
	if kfsPattern.MatchString(raw) {
		return typeKreisfrei
	}
	if landkreisPattern.MatchString(raw) {
		return typeLandkreis
	}
	return typeNone
}

func cleanInput(raw string) string {
	return strings.TrimSpace(excelDecor.ReplaceAll(raw, ""))
}

func cleanReference(raw string) string {
	return strings.TrimSpace(csvDecor.ReplaceAll(raw, ""))
}

// Similarity is the sequence-matcher ratio of a and b scaled to 0-100.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio() * 100.0
}

type fuzzyCandidate struct {
	entityID  string
	label     string
	norm      string
	base      string // normalized name without reference decorators
	cleanNorm string // raw name without reference decorators, normalized
	kind      adminType
}

type scoredCandidate struct {
	*fuzzyCandidate
	base  float64
	total float64
}

// FuzzyConfident is the lowest-precision strategy: sequence similarity with
// type and structure bonuses, accepted only with a clear margin.
type FuzzyConfident struct {
	tiers *FuzzyTiers
}

func NewFuzzyConfident(tiers *FuzzyTiers) *FuzzyConfident {
	if tiers == nil {
		tiers = DefaultFuzzyTiers()
	}
	return &FuzzyConfident{tiers: tiers}
}

func (s *FuzzyConfident) Name() string          { return StrategyFuzzyConfident }
func (s *FuzzyConfident) Requires() Requirement { return RequiresNameColumn }

func (s *FuzzyConfident) candidates(ref *Reference) []*fuzzyCandidate {
	var out []*fuzzyCandidate
	for _, e := range ref.Entities {
		if e.ID == "" {
			continue
		}
		norm := normalize.Text(e.Name)
		out = append(out, &fuzzyCandidate{
			entityID:  e.ID,
			label:     e.Name,
			norm:      norm,
			base:      normalize.Text(cleanReference(norm)),
			cleanNorm: normalize.Text(cleanReference(e.Name)),
			kind:      candidateType(e.Name),
		})
	}
	return out
}

func (s *FuzzyConfident) Match(req *Request) []Proposal {
	cands := s.candidates(req.Ref)
	if len(cands) == 0 {
		return nil
	}

	typeConflict := newSampler(req.Logger, "input type conflicts with best candidate", s.Name(), req.Ref.Name())
	lowScore := newSampler(req.Logger, "best candidate below thresholds", s.Name(), req.Ref.Name())
	defer typeConflict.flush()
	defer lowScore.flush()

	var proposals []Proposal
	for _, row := range req.Rows {
		raw := req.name(row)
		p, ok := s.decide(req, raw, cands, typeConflict, lowScore)
		if !ok {
			continue
		}
		p.Row = row.Index
		proposals = append(proposals, p)
	}
	return proposals
}

func (s *FuzzyConfident) decide(req *Request, raw string, cands []*fuzzyCandidate, typeConflict, lowScore *sampler) (Proposal, bool) {
	xNorm := normalize.Text(raw)
	if xNorm == "" {
		return Proposal{}, false
	}
	xBase := normalize.Text(cleanInput(raw))
	xPref := typePreference(raw)

	var scored []scoredCandidate
	for _, c := range cands {
		if c.base != xBase && !strings.HasPrefix(c.norm, xNorm) && !strings.HasSuffix(c.norm, xNorm) {
			continue
		}
		base := Similarity(xNorm, c.norm)
		if cleaned := Similarity(xBase, c.cleanNorm); cleaned > base {
			base = cleaned
		}
		total := base
		if xPref != typeNone && c.kind == xPref {
			total += s.tiers.TypeBonus
		}
		if c.base == xBase {
			total += s.tiers.StructBonus
		}
		scored = append(scored, scoredCandidate{fuzzyCandidate: c, base: base, total: total})
	}
	if len(scored) == 0 {
		return Proposal{}, false
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].total > scored[j].total })

	top := scored[0]
	debug.DebugOutput(req.Debug, "fuzzy %q: %d candidates, top %q base=%.1f total=%.1f",
		raw, len(scored), top.label, top.base, top.total)

	if len(scored) > 1 {
		if xPref != typeNone && top.kind != typeNone && xPref != top.kind {
			typeConflict.add("%s -> %s", raw, top.label)
			return Proposal{}, false
		}
		margin := top.total - scored[1].total
		needed := s.tiers.MarginMin
		if xPref == typeNone && mixedTypes(scored) && s.tiers.MarginMixedNoHint > needed {
			needed = s.tiers.MarginMixedNoHint
		}
		if margin < needed {
			lowScore.add("%s (margin %.1f < %.1f)", raw, margin, needed)
			return Proposal{}, false
		}
	}
	if top.base < s.tiers.MinBase || top.total < s.tiers.MinTotal {
		lowScore.add("%s (base %.1f, total %.1f)", raw, top.base, top.total)
		return Proposal{}, false
	}

	return Proposal{
		EntityID: top.entityID,
		Value:    top.entityID,
		Label:    top.label,
		Param:    strconv.FormatFloat(top.total, 'f', -1, 64),
	}, true
}

// mixedTypes reports whether the top four candidates contain both a
// kreisfreie Stadt and a Landkreis.
func mixedTypes(scored []scoredCandidate) bool {
	var kfs, lk bool
	for i := 0; i < len(scored) && i < 4; i++ {
		switch scored[i].kind {
		case typeKreisfrei:
			kfs = true
		case typeLandkreis:
			lk = true
		}
	}
	return kfs && lk
}
