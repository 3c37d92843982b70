package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geo-mapper/internal/debug"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Registry *Registry
	Logger   *zap.Logger
}

// Resolver runs an ordered list of strategies over every reference dataset,
// keeping one match record and one used-id set per dataset.
type Resolver struct {
	registry *Registry
	logger   *zap.Logger
}

// NewResolver creates a resolver. A nil registry means DefaultRegistry.
func NewResolver(config ResolverConfig) *Resolver {
	registry := config.Registry
	if registry == nil {
		registry = DefaultRegistry(DefaultMaxTokens, nil)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Registry returns the strategies known to the resolver.
func (r *Resolver) Registry() *Registry { return r.registry }

// Options controls a single resolution pass.
type Options struct {
	// Strategies in execution order. Empty selects DefaultOrder filtered by
	// the available input columns.
	Strategies []string
	// InitialUsed seeds the used-id set of the dataset with that source.
	InitialUsed map[string][]string
	// Parallelism is the number of datasets resolved concurrently.
	Parallelism int
	Debug       bool
}

// DatasetResult is the outcome for one reference dataset.
type DatasetResult struct {
	Dataset  *Dataset
	Records  *Records
	Used     UsedIDs
	Steps    []StepStat
	Coverage Coverage
}

// Result is the outcome of one resolution pass.
type Result struct {
	Strategies []string
	Skipped    []string
	TotalRows  int
	Datasets   []*DatasetResult
	Duration   time.Duration
}

// Dataset returns the result for source.
func (r *Result) Dataset(source string) (*DatasetResult, bool) {
	for _, d := range r.Datasets {
		if d.Dataset.Source == source {
			return d, true
		}
	}
	return nil, false
}

// plan picks the strategies that can run against the input columns.
func (r *Resolver) plan(input *Table, columns ColumnSpec, names []string) ([]Strategy, []string, error) {
	hasIDs := len(columns.availableIDColumns(input)) > 0
	hasName := input.Has(columns.NameColumn)

	auto := len(names) == 0
	if auto {
		names = DefaultOrder
	}
	strategies, err := r.registry.Resolve(names)
	if err != nil {
		return nil, nil, err
	}

	var runnable []Strategy
	var skipped []string
	for _, s := range strategies {
		ok := (s.Requires() == RequiresIDColumns && hasIDs) ||
			(s.Requires() == RequiresNameColumn && hasName)
		if !ok {
			if !auto {
				r.logger.Info("Skipping strategy: required column not available",
					zap.String("strategy", s.Name()),
					zap.Stringer("requires", s.Requires()))
			}
			skipped = append(skipped, s.Name())
			continue
		}
		runnable = append(runnable, s)
	}
	if len(runnable) == 0 {
		return nil, skipped, ErrNothingToDo
	}
	return runnable, skipped, nil
}

// Resolve matches the input rows against every dataset. It returns
// ErrNothingToDo when no strategy can run or no dataset is given.
func (r *Resolver) Resolve(ctx context.Context, input *Table, columns ColumnSpec, datasets []*Dataset, opts Options) (*Result, error) {
	debug.DebugHeader(opts.Debug)
	defer debug.DebugFooter(opts.Debug)
	start := time.Now()

	if len(datasets) == 0 {
		return nil, fmt.Errorf("%w: no reference datasets", ErrNothingToDo)
	}
	strategies, skipped, err := r.plan(input, columns, opts.Strategies)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	r.logger.Info("Resolution started",
		zap.Int("rows", len(input.Rows)),
		zap.Int("datasets", len(datasets)),
		zap.Strings("strategies", names),
		zap.Strings("id_columns", columns.IDColumns),
		zap.String("name_column", columns.NameColumn))

	result := &Result{
		Strategies: names,
		Skipped:    skipped,
		TotalRows:  len(input.Rows),
		Datasets:   make([]*DatasetResult, len(datasets)),
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, ds := range datasets {
		g.Go(func() error {
			dr, err := r.resolveDataset(gctx, input, columns, ds, strategies, opts)
			if err != nil {
				return err
			}
			result.Datasets[i] = dr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	debug.DebugOutput(opts.Debug, "Resolution finished in %v", result.Duration)
	return result, nil
}

// resolveDataset runs all strategies against one dataset. Strategies run
// strictly in order since each depends on the used ids left by the last.
func (r *Resolver) resolveDataset(ctx context.Context, input *Table, columns ColumnSpec, ds *Dataset, strategies []Strategy, opts Options) (*DatasetResult, error) {
	ref := NewReference(ds)
	dr := &DatasetResult{
		Dataset: ds,
		Records: NewRecords(),
		Used:    NewUsedIDs(opts.InitialUsed[ds.Source]...),
	}
	logger := r.logger.With(zap.String("dataset", ds.Name()))

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat := StepStat{Strategy: s.Name()}
		if !ref.usable(s.Requires()) {
			logger.Debug("Dataset lacks columns for strategy", zap.String("strategy", s.Name()))
			stat.Cumulative = dr.Records.Len()
			dr.Steps = append(dr.Steps, stat)
			continue
		}

		req := &Request{
			Input:   input,
			Rows:    unmappedRows(input, dr.Records),
			Columns: columns,
			Ref:     ref,
			Used:    dr.Used,
			Logger:  logger,
			Debug:   opts.Debug,
		}
		done := debug.DebugTiming(opts.Debug, s.Name()+" on "+ds.Name())
		proposals := s.Match(req)
		done()

		stat.New, stat.Rejected = commit(ds.Source, s.Name(), proposals, dr, logger)
		stat.Cumulative = dr.Records.Len()
		dr.Steps = append(dr.Steps, stat)

		total := len(input.Rows)
		logger.Info(fmt.Sprintf("%s -> +%d (%.1f%%) this step; %d total (%.1f%%)",
			ds.Name(), stat.New, percent(stat.New, total), stat.Cumulative, percent(stat.Cumulative, total)),
			zap.String("strategy", s.Name()))
	}

	dr.Coverage = coverageOf(input, dr)
	return dr, nil
}

// commit writes proposals in row order. Proposals for rows already mapped or
// for entities already used are rejected; the first writer wins.
func commit(source, strategy string, proposals []Proposal, dr *DatasetResult, logger *zap.Logger) (int, int) {
	sort.SliceStable(proposals, func(i, j int) bool { return proposals[i].Row < proposals[j].Row })

	rejected := newSampler(logger, "proposals rejected: entity already used", strategy, source)
	defer rejected.flush()

	added, dropped := 0, 0
	for _, p := range proposals {
		if p.EntityID == "" || dr.Records.Mapped(p.Row) {
			continue
		}
		if dr.Used.Has(p.EntityID) {
			rejected.add("row %d -> %s", p.Row, p.EntityID)
			dropped++
			continue
		}
		value := p.Value
		if value == "" {
			value = p.EntityID
		}
		dr.Records.set(p.Row, Mapping{
			By:       strategy,
			Value:    value,
			Source:   source,
			Label:    p.Label,
			Param:    p.Param,
			EntityID: p.EntityID,
		})
		dr.Used.Add(p.EntityID)
		added++
	}
	return added, dropped
}

func coverageOf(input *Table, dr *DatasetResult) Coverage {
	return Coverage{
		InputRows:     len(input.Rows),
		MatchedRows:   dr.Records.Len(),
		UsedIDs:       dr.Used.Len(),
		ReferenceRows: dr.Dataset.ReferenceRows(),
	}
}

// unmappedRows returns the input rows without a mapping, in index order.
func unmappedRows(input *Table, records *Records) []Row {
	rows := make([]Row, 0, len(input.Rows))
	for _, row := range input.Rows {
		if !records.Mapped(row.Index) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}
