package match

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Strategy names, used as mapped_by.
const (
	StrategyExactID              = "exact_id"
	StrategyIDWithoutLeadingZero = "id_without_leading_zero"
	StrategyUniqueName           = "unique_name"
	StrategyRegexReplace         = "regex_replace"
	StrategyTokenPermutation     = "token_permutation"
	StrategyTokenPermutationFull = "token_permutation_full"
	StrategyFuzzyConfident       = "fuzzy_confident"
	StrategyManual               = "manual"
)

// DefaultOrder is the execution order used when no strategy list is given.
var DefaultOrder = []string{
	StrategyExactID,
	StrategyIDWithoutLeadingZero,
	StrategyUniqueName,
	StrategyRegexReplace,
	StrategyTokenPermutation,
	StrategyTokenPermutationFull,
	StrategyFuzzyConfident,
}

var (
	// ErrNothingToDo is returned when no strategy can run against the input.
	ErrNothingToDo = errors.New("nothing to do: no usable id or name column for any strategy")
	// ErrUnknownStrategy is returned for strategy names not in the registry.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Requirement is the input column kind a strategy works on.
type Requirement int

const (
	RequiresIDColumns Requirement = iota + 1
	RequiresNameColumn
)

func (r Requirement) String() string {
	switch r {
	case RequiresIDColumns:
		return "id columns"
	case RequiresNameColumn:
		return "name column"
	default:
		return "unknown"
	}
}

// Request is a single strategy invocation against one dataset.
type Request struct {
	Input   *Table
	Rows    []Row // rows still unmapped in this dataset, index order
	Columns ColumnSpec
	Ref     *Reference
	Used    UsedIDs // read-only for strategies
	Logger  *zap.Logger
	Debug   bool
}

// name returns the raw name cell of row.
func (r *Request) name(row Row) string {
	v, _ := r.Input.Value(row, r.Columns.NameColumn)
	return v
}

// Strategy is one matching algorithm. Match returns proposals for the rows
// it can resolve; the resolver enforces uniqueness and first-writer-wins.
type Strategy interface {
	Name() string
	Requires() Requirement
	Match(req *Request) []Proposal
}

// Registry holds the available strategies by name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns all seven built-in strategies.
func DefaultRegistry(maxTokens int, tiers *FuzzyTiers) *Registry {
	return NewRegistry(
		NewExactID(false),
		NewExactID(true),
		NewUniqueName(),
		NewRegexReplace(DefaultRegexRules),
		NewTokenSort(SuffixTitleWords),
		NewTokenPermutation(maxTokens),
		NewFuzzyConfident(tiers),
	)
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get returns the strategy called name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names lists registered strategies, default order first.
func (r *Registry) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, n := range DefaultOrder {
		if _, ok := r.strategies[n]; ok {
			names = append(names, n)
			seen[n] = true
		}
	}
	var extra []string
	for n := range r.strategies {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Resolve maps names to strategies, preserving order.
func (r *Registry) Resolve(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, ok := r.strategies[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, n)
		}
		out = append(out, s)
	}
	return out, nil
}

// sampleLimit bounds the number of example rows logged per diagnostic.
const sampleLimit = 5

// sampler collects the first few examples of a diagnostic condition and
// logs them once at debug level.
type sampler struct {
	logger   *zap.Logger
	what     string
	strategy string
	source   string
	count    int
	samples  []string
}

func newSampler(logger *zap.Logger, what, strategy, source string) *sampler {
	return &sampler{logger: logger, what: what, strategy: strategy, source: source}
}

func (s *sampler) add(format string, args ...interface{}) {
	s.count++
	if len(s.samples) < sampleLimit {
		s.samples = append(s.samples, fmt.Sprintf(format, args...))
	}
}

func (s *sampler) flush() {
	if s.count == 0 || s.logger == nil {
		return
	}
	s.logger.Debug(s.what,
		zap.String("strategy", s.strategy),
		zap.String("dataset", s.source),
		zap.Int("count", s.count),
		zap.Strings("samples", s.samples),
	)
}
