package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/match"
)

type recorderFunc func(ctx context.Context, report *Report) error

func (f recorderFunc) SaveRun(ctx context.Context, report *Report) error { return f(ctx, report) }

func testConfig(root string) *config.Config {
	cfg := &config.Config{}
	cfg.Mapping.Parallelism = 1
	cfg.Mapping.MaxTokens = match.DefaultMaxTokens
	cfg.Geodata.Root = filepath.Join(root, "geodata")
	cfg.Export.ResultsRoot = filepath.Join(root, "results")
	cfg.Export.Format = config.FormatCSV
	cfg.Export.AutoSource = true
	return cfg
}

func pipelineFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"geodata/LAU/2021/lau_2021.csv":            "id,name\n001,Hamburg\n002,Bremen\n003,Köln\n",
		"geodata/NUTS_3/2021/nuts_level_3_2021.csv": "id_nuts,id_ars,name\nDE600,02000,Hamburg\n",
		"input/staedte.csv":                        "code;city;pop\n001;Hamburg;1800\n002;Bremen;560\n999;Unbekannt;1\n",
		"input/meta.json": `{
  "id_columns": ["code"],
  "name_column": "city",
  "value_columns": ["pop"],
  "geodata_level": "LAU",
  "manual_mappings": [{"input_ids": {"0": null}, "input_name": "Unbekannt", "geodata_id": "003", "geodata_name": null}]
}`,
	})
	return root
}

func TestRunnerRun(t *testing.T) {
	root := pipelineFixture(t)
	runner := NewRunner(testConfig(root), zap.NewNop())

	var recorded *Report
	runner.SetRecorder(recorderFunc(func(_ context.Context, report *Report) error {
		recorded = report
		return nil
	}))

	report, err := runner.Run(context.Background(), RunOptions{
		DataPath: filepath.Join(root, "input", "staedte.csv"),
		MetaPath: filepath.Join(root, "input", "meta.json"),
	})
	require.NoError(t, err)
	assert.Same(t, report, recorded)
	assert.NotEmpty(t, report.RunID.String())

	assert.Equal(t, filepath.Join(root, "results", "staedte"), report.OutputDir)
	assert.Equal(t, 1, report.ManualBound)
	require.Len(t, report.Exported, 1)
	assert.Equal(t, 3, report.Exported[0].Records.Len())
	assert.Len(t, report.Files, 4)

	pairs := readCSV(t, filepath.Join(report.OutputDir, MappedPairsFile))
	require.Len(t, pairs, 4)
	assert.Equal(t, []string{"original_id_1", "original_name", "geodata_name", "geodaten_id", "mapper", "parameter", "pop"}, pairs[0])
	assert.Equal(t, []string{"001", "Hamburg", "Hamburg", "001", "exact_id", "id", "1800"}, pairs[1])
	assert.Equal(t, []string{"999", "Unbekannt", "Köln", "003", "manual", "", "1"}, pairs[3])

	meta, err := config.LoadMeta(filepath.Join(report.OutputDir, MetaFile))
	require.NoError(t, err)
	assert.Equal(t, "LAU", meta.GeodataLevel)
	assert.Equal(t, config.Scalar("2021"), meta.GeodataYear)
	assert.Equal(t, config.Columns{"code"}, meta.IDColumns)
	assert.Contains(t, meta.Mappers, match.StrategyExactID)
	require.Len(t, meta.ManualMappings, 1)
}

func TestRunnerFlagOverrides(t *testing.T) {
	root := pipelineFixture(t)
	runner := NewRunner(testConfig(root), zap.NewNop())
	auto := false

	report, err := runner.Run(context.Background(), RunOptions{
		DataPath:         filepath.Join(root, "input", "staedte.csv"),
		NameColumn:       "city",
		Mappers:          []string{match.StrategyUniqueName},
		AutoExportSource: &auto,
		OutputDir:        filepath.Join(root, "out"),
	})
	require.NoError(t, err)

	assert.Equal(t, match.ColumnSpec{NameColumn: "city"}, report.Columns)
	assert.Equal(t, []string{match.StrategyUniqueName}, report.Result.Strategies)
	require.Len(t, report.Result.Datasets, 2)
	// Without a selected source every dataset with matches is exported.
	assert.Len(t, report.Exported, 2)
	assert.Equal(t, 0, report.ManualBound)

	pairs := readCSV(t, filepath.Join(root, "out", MappedPairsFile))
	assert.Equal(t, []string{"original_name", "geodata_name", "geodaten_id", "geodaten_id_nuts", "geodaten_id_ars", "mapper", "parameter"}, pairs[0])
	assert.Len(t, pairs, 4)
}

func TestRunnerErrors(t *testing.T) {
	root := pipelineFixture(t)
	data := filepath.Join(root, "input", "staedte.csv")

	tests := []struct {
		name string
		opts RunOptions
		want error
	}{
		{name: "only missing column", opts: RunOptions{DataPath: data, NameColumn: "stadt"}, want: match.ErrNothingToDo},
		{name: "unknown strategy", opts: RunOptions{DataPath: data, Mappers: []string{"soundex"}}, want: match.ErrUnknownStrategy},
		{name: "no geodata", opts: RunOptions{DataPath: data, Year: "1990"}, want: match.ErrNothingToDo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(testConfig(root), zap.NewNop())
			_, err := runner.Run(context.Background(), tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRunnerRecorderError(t *testing.T) {
	root := pipelineFixture(t)
	runner := NewRunner(testConfig(root), zap.NewNop())
	runner.SetRecorder(recorderFunc(func(context.Context, *Report) error { return errors.New("db down") }))

	report, err := runner.Run(context.Background(), RunOptions{
		DataPath: filepath.Join(root, "input", "staedte.csv"),
		MetaPath: filepath.Join(root, "input", "meta.json"),
	})
	assert.Error(t, err)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Files)
}

func TestRunnerSkipsMissingNameColumn(t *testing.T) {
	root := pipelineFixture(t)
	runner := NewRunner(testConfig(root), zap.NewNop())

	report, err := runner.Run(context.Background(), RunOptions{
		DataPath:   filepath.Join(root, "input", "staedte.csv"),
		IDColumns:  []string{"code"},
		NameColumn: "gemeinde",
		Level:      "LAU",
		OutputDir:  filepath.Join(root, "out"),
	})
	require.NoError(t, err)

	assert.Equal(t, match.ColumnSpec{IDColumns: []string{"code"}}, report.Columns)
	assert.Equal(t, []string{match.StrategyExactID, match.StrategyIDWithoutLeadingZero}, report.Result.Strategies)
	require.Len(t, report.Exported, 1)
	hamburg, ok := report.Exported[0].Records.Get(0)
	require.True(t, ok)
	assert.Equal(t, "001", hamburg.Value)
	assert.Equal(t, match.StrategyExactID, hamburg.By)
}

func TestUsableColumns(t *testing.T) {
	input := match.NewTable([]string{"id", "name", "pop"}, nil)

	tests := []struct {
		name    string
		columns match.ColumnSpec
		want    match.ColumnSpec
		err     error
	}{
		{
			name:    "valid",
			columns: match.ColumnSpec{IDColumns: []string{"id"}, NameColumn: "name", ValueColumns: []string{"pop"}},
			want:    match.ColumnSpec{IDColumns: []string{"id"}, NameColumn: "name", ValueColumns: []string{"pop"}},
		},
		{name: "nothing selected", columns: match.ColumnSpec{ValueColumns: []string{"pop"}}, err: match.ErrNothingToDo},
		{name: "only missing id", columns: match.ColumnSpec{IDColumns: []string{"ags"}}, err: match.ErrNothingToDo},
		{
			name:    "missing name kept id",
			columns: match.ColumnSpec{IDColumns: []string{"ags", "id"}, NameColumn: "gemeinde"},
			want:    match.ColumnSpec{IDColumns: []string{"id"}},
		},
		{
			name:    "missing value dropped",
			columns: match.ColumnSpec{NameColumn: "name", ValueColumns: []string{"area", "pop"}},
			want:    match.ColumnSpec{NameColumn: "name", ValueColumns: []string{"pop"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsableColumns(input, tt.columns, zap.NewNop())
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnsForDefaultsToFirstColumn(t *testing.T) {
	input := match.NewTable([]string{"Gemeinde", "Wert"}, nil)
	spec := columnsFor(input, &config.Meta{}, RunOptions{})
	assert.Equal(t, "Gemeinde", spec.NameColumn)
	assert.Empty(t, spec.IDColumns)
}

func TestEffectiveMetaCollectsManualMappings(t *testing.T) {
	input := match.NewTable([]string{"code", "name"}, [][]string{{"7", "Kiel"}})
	columns := match.ColumnSpec{IDColumns: []string{"code"}, NameColumn: "name"}
	result := resolveNames(t, namesInput("Atlantis"), dataset("geo/NUTS_3/2016/nuts_level_3.csv", "DEF02", "Kiel"))
	dr := result.Datasets[0]

	name := "Kiel"
	require.Equal(t, 1, match.NewManual(zap.NewNop()).Apply(input, columns, dr,
		[]match.ManualMapping{{InputName: &name, GeodataID: "DEF02"}}))

	meta := effectiveMeta(&config.Meta{}, input, columns, "", []string{match.StrategyUniqueName}, result.Datasets)
	assert.Equal(t, "NUTS 3", meta.GeodataLevel)
	assert.Equal(t, config.Scalar("2016"), meta.GeodataYear)
	assert.Equal(t, []string{match.StrategyUniqueName}, meta.Mappers)

	require.Len(t, meta.ManualMappings, 1)
	manual := meta.Manual()
	require.Len(t, manual, 1)
	assert.Equal(t, "DEF02", manual[0].GeodataID)
	assert.Equal(t, "Kiel", manual[0].GeodataName)
	assert.Equal(t, map[int]string{0: "7"}, manual[0].InputIDs)
	require.NotNil(t, manual[0].InputName)
	assert.Equal(t, "Kiel", *manual[0].InputName)
}

func TestLevelAndYearFromPath(t *testing.T) {
	tests := []struct {
		path  string
		level string
		year  string
	}{
		{path: "geodata/LAU/2021/lau.csv", level: "LAU", year: "2021"},
		{path: "geodata/NUTS_2/2016/nuts_level_2.csv", level: "NUTS 2", year: "2016"},
		{path: "lau.csv", level: "", year: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.level, LevelFromPath(filepath.FromSlash(tt.path)))
			assert.Equal(t, tt.year, YearFromPath(filepath.FromSlash(tt.path)))
		})
	}
}
