package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/debug"
	import_pkg "github.com/geo-mapper/internal/import"
	"github.com/geo-mapper/internal/match"
)

// Recorder persists completed runs.
type Recorder interface {
	SaveRun(ctx context.Context, report *Report) error
}

// RunOptions are the per-invocation settings. Empty fields fall back to
// the meta file, then to the application config.
type RunOptions struct {
	DataPath string
	MetaPath string
	Sheet    string

	IDColumns    []string
	NameColumn   string
	ValueColumns []string
	Mappers      []string

	Level string
	Year  string

	// AutoExportSource overrides the configured default when set.
	AutoExportSource *bool
	ExportSource     string
	Format           string
	OutputDir        string
	ExportGeodata    bool
}

// Report summarizes a completed run.
type Report struct {
	RunID       uuid.UUID
	DataPath    string
	StartedAt   time.Time
	Duration    time.Duration
	Columns     match.ColumnSpec
	Result      *match.Result
	Exported    []*match.DatasetResult
	ManualBound int
	OutputDir   string
	Files       []string
	Meta        *config.Meta
}

// Runner drives one mapping run from input file to exported results.
type Runner struct {
	cfg      *config.Config
	loader   *import_pkg.Loader
	resolver *match.Resolver
	manual   *match.Manual
	recorder Recorder
	logger   *zap.Logger
}

// NewRunner creates a runner from the application config.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		loader: import_pkg.NewLoader(logger),
		resolver: match.NewResolver(match.ResolverConfig{
			Registry: match.DefaultRegistry(cfg.Mapping.MaxTokens, nil),
			Logger:   logger,
		}),
		manual: match.NewManual(logger),
		logger: logger,
	}
}

// SetRecorder enables persistence of completed runs.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Resolver returns the resolver used by the runner.
func (r *Runner) Resolver() *match.Resolver { return r.resolver }

// Run executes the whole pipeline.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	localDebug := r.cfg.Log.Debug
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	report := &Report{RunID: uuid.New(), DataPath: opts.DataPath, StartedAt: time.Now()}
	log := r.logger.With(zap.String("run_id", report.RunID.String()))

	meta := &config.Meta{}
	if opts.MetaPath != "" {
		loaded, err := config.LoadMeta(opts.MetaPath)
		if err != nil {
			return nil, err
		}
		meta = loaded
	}

	sheet := firstNonEmpty(opts.Sheet, meta.Worksheet)
	input, err := r.loader.LoadTable(opts.DataPath, sheet)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded input", zap.String("path", opts.DataPath), zap.Int("rows", len(input.Rows)))

	columns := columnsFor(input, meta, opts)
	columns, err = UsableColumns(input, columns, log)
	if err != nil {
		return nil, err
	}
	report.Columns = columns

	family, nutsLevel, err := config.ParseLevel(firstNonEmpty(opts.Level, meta.GeodataLevel, r.cfg.Geodata.Level))
	if err != nil {
		return nil, err
	}
	sel := import_pkg.GeodataSelection{
		Root:      r.cfg.Geodata.Root,
		Family:    family,
		NUTSLevel: nutsLevel,
		Year:      firstNonEmpty(opts.Year, meta.GeodataYear.String(), r.cfg.Geodata.Year),
	}
	datasets, err := r.loader.LoadGeodata(ctx, sel)
	if err != nil {
		return nil, err
	}

	mappers := opts.Mappers
	if len(mappers) == 0 {
		mappers = meta.Mappers
	}
	if len(mappers) == 0 {
		mappers = r.cfg.Mapping.Mappers
	}
	result, err := r.resolver.Resolve(ctx, input, columns, datasets, match.Options{
		Strategies:  mappers,
		Parallelism: r.cfg.Mapping.Parallelism,
		Debug:       localDebug,
	})
	if err != nil {
		return nil, err
	}
	report.Result = result

	auto := r.cfg.Export.AutoSource
	if opts.AutoExportSource != nil {
		auto = *opts.AutoExportSource
	}
	selected, err := SelectExportSource(result, opts.ExportSource, auto)
	if err != nil {
		return nil, err
	}
	manual := meta.Manual()
	if selected != nil {
		log.Info("Selected export source",
			zap.String("dataset", selected.Dataset.Name()),
			zap.Float64("input_share", selected.Coverage.InputShare()),
			zap.Float64("reference_share", selected.Coverage.ReferenceShare()))
		report.ManualBound = r.manual.Apply(input, columns, selected, manual)
		report.Exported = []*match.DatasetResult{selected}
	} else {
		if len(manual) > 0 {
			log.Warn("Manual mappings ignored: no single export source selected", zap.Int("entries", len(manual)))
		}
		for _, dr := range result.Datasets {
			if dr.Records.Len() > 0 {
				report.Exported = append(report.Exported, dr)
			}
		}
	}
	debug.DebugOutput(localDebug, "exporting %d of %d datasets", len(report.Exported), len(result.Datasets))

	report.Meta = effectiveMeta(meta, input, columns, sheet, result.Strategies, report.Exported)
	report.OutputDir = opts.OutputDir
	if report.OutputDir == "" {
		stem := strings.TrimSuffix(filepath.Base(opts.DataPath), filepath.Ext(opts.DataPath))
		report.OutputDir = filepath.Join(r.cfg.Export.ResultsRoot, stem)
	}

	exporter := NewExporter(firstNonEmpty(opts.Format, r.cfg.Export.Format), log)
	report.Files, err = exporter.Export(report.OutputDir, ExportRequest{
		Input:       input,
		Columns:     columns,
		Datasets:    report.Exported,
		Meta:        report.Meta,
		CopyGeodata: opts.ExportGeodata,
	})
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	report.Duration = time.Since(report.StartedAt)

	if r.recorder != nil {
		if err := r.recorder.SaveRun(ctx, report); err != nil {
			return report, fmt.Errorf("failed to record run: %w", err)
		}
	}

	log.Info("Run complete",
		zap.Int("datasets", len(result.Datasets)),
		zap.Int("exported", len(report.Exported)),
		zap.Int("manual", report.ManualBound),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// columnsFor merges the flag and meta column selections. Without any id or
// name column the first input column is used as name column.
func columnsFor(input *match.Table, meta *config.Meta, opts RunOptions) match.ColumnSpec {
	spec := meta.ColumnSpec()
	if len(opts.IDColumns) > 0 {
		spec.IDColumns = opts.IDColumns
	}
	if opts.NameColumn != "" {
		spec.NameColumn = opts.NameColumn
	}
	if len(opts.ValueColumns) > 0 {
		spec.ValueColumns = opts.ValueColumns
	}
	if len(spec.IDColumns) == 0 && spec.NameColumn == "" && len(input.Columns) > 0 {
		spec.NameColumn = input.Columns[0]
	}
	return spec
}

// UsableColumns drops selected columns that are not in the input, logging
// a warning for each. Strategies needing a dropped column are skipped later
// on; only a selection left without any id or name column is an error.
func UsableColumns(input *match.Table, columns match.ColumnSpec, logger *zap.Logger) (match.ColumnSpec, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	present := func(kind, col string) bool {
		if input.Has(col) {
			return true
		}
		logger.Warn("Column not found in input, ignoring it", zap.String("kind", kind), zap.String("column", col))
		return false
	}

	out := match.ColumnSpec{}
	for _, col := range columns.IDColumns {
		if present("id", col) {
			out.IDColumns = append(out.IDColumns, col)
		}
	}
	if columns.NameColumn != "" && present("name", columns.NameColumn) {
		out.NameColumn = columns.NameColumn
	}
	for _, col := range columns.ValueColumns {
		if present("value", col) {
			out.ValueColumns = append(out.ValueColumns, col)
		}
	}
	if len(out.IDColumns) == 0 && out.NameColumn == "" {
		return out, fmt.Errorf("%w: no usable id or name column", match.ErrNothingToDo)
	}
	return out, nil
}

// effectiveMeta is the meta written next to the results. Manual mappings
// made in this run are recorded unless the meta already carried some.
func effectiveMeta(meta *config.Meta, input *match.Table, columns match.ColumnSpec, sheet string, strategies []string, exported []*match.DatasetResult) *config.Meta {
	out := *meta
	out.SetColumnSpec(columns)
	out.Worksheet = sheet
	if len(out.Mappers) == 0 {
		out.Mappers = append([]string(nil), strategies...)
	}
	if len(exported) > 0 {
		source := exported[0].Dataset.Source
		if level := LevelFromPath(source); level != "" {
			out.GeodataLevel = level
		}
		if year := YearFromPath(source); year != "" {
			out.GeodataYear = config.Scalar(year)
		}
	}
	if len(out.ManualMappings) == 0 {
		out.ManualMappings = collectManual(input, columns, exported)
	}
	return &out
}

func collectManual(input *match.Table, columns match.ColumnSpec, exported []*match.DatasetResult) []config.ManualEntry {
	var entries []config.ManualEntry
	for _, dr := range exported {
		for _, index := range dr.Records.Rows() {
			m, _ := dr.Records.Get(index)
			if m.By != match.StrategyManual {
				continue
			}
			row, ok := input.Row(index)
			if !ok {
				continue
			}
			mm := match.ManualMapping{GeodataID: m.Value, GeodataName: m.Label}
			for i, col := range columns.IDColumns {
				if v, ok := input.Value(row, col); ok && v != "" {
					if mm.InputIDs == nil {
						mm.InputIDs = make(map[int]string)
					}
					mm.InputIDs[i] = v
				}
			}
			if name, ok := input.Value(row, columns.NameColumn); ok {
				mm.InputName = &name
			}
			entries = append(entries, config.NewManualEntry(mm))
		}
	}
	return entries
}

var nutsDirPattern = regexp.MustCompile(`(?i)^nuts_(\d+)$`)

// LevelFromPath derives the meta level of a geodata file: "LAU" or "NUTS n".
func LevelFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.EqualFold(part, "lau") {
			return "LAU"
		}
		if m := nutsDirPattern.FindStringSubmatch(part); m != nil {
			return "NUTS " + m[1]
		}
	}
	return ""
}

// YearFromPath returns the name of the directory holding a geodata file.
func YearFromPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return dir
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
