package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLeadingZeroValues(t *testing.T) {
	input := newTable([]string{"id"}, []string{"1"}, []string{"10"}, []string{"5"})
	ds := refDataset("csv/LAU/2021/lau.csv", "001", "A", "010", "B", "5", "C")
	columns := ColumnSpec{IDColumns: []string{"id"}}

	tests := []struct {
		name       string
		strategies []string
		want       []string
	}{
		{"exact only", []string{StrategyExactID}, []string{"", "", "5"}},
		{"stripped only", []string{StrategyIDWithoutLeadingZero}, []string{"1", "10", "5"}},
		{"exact then stripped", []string{StrategyExactID, StrategyIDWithoutLeadingZero}, []string{"1", "10", "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestResolver().Resolve(context.Background(), input, columns, []*Dataset{ds}, Options{Strategies: tt.strategies})
			require.NoError(t, err)
			require.Len(t, res.Datasets, 1)
			assert.Equal(t, tt.want, mappedValues(t, res.Datasets[0], 3))
		})
	}
}

func TestResolveUsedSetTracksDatasetIDs(t *testing.T) {
	input := newTable([]string{"id"}, []string{"1"})
	ds := refDataset("csv/LAU/2021/lau.csv", "001", "A")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{IDColumns: []string{"id"}},
		[]*Dataset{ds}, Options{Strategies: []string{StrategyIDWithoutLeadingZero}})
	require.NoError(t, err)

	dr := res.Datasets[0]
	m, ok := dr.Records.Get(0)
	require.True(t, ok)
	assert.Equal(t, "1", m.Value)
	assert.Equal(t, "001", m.EntityID)
	assert.Equal(t, []string{"001"}, dr.Used.Sorted())
}

func TestResolveEnforcesOneRowPerEntity(t *testing.T) {
	input := namesTable("München", "  muenchen  ", "Berlin")
	ds := refDataset("csv/LAU/2021/lau.csv", "A", "Muenchen", "B", "Berlin")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{Strategies: []string{StrategyUniqueName}})
	require.NoError(t, err)

	dr := res.Datasets[0]
	assert.Equal(t, []string{"A", "", "B"}, mappedValues(t, dr, 3))
	require.Len(t, dr.Steps, 1)
	assert.Equal(t, StepStat{Strategy: StrategyUniqueName, New: 2, Cumulative: 2, Rejected: 1}, dr.Steps[0])
}

func TestResolveFirstWriterWins(t *testing.T) {
	input := newTable([]string{"id", "name"}, []string{"2", "Hamburg"})
	ds := refDataset("csv/LAU/2021/lau.csv", "1", "Hamburg", "2", "Bremen")

	res, err := newTestResolver().Resolve(context.Background(), input,
		ColumnSpec{IDColumns: []string{"id"}, NameColumn: "name"},
		[]*Dataset{ds}, Options{Strategies: []string{StrategyExactID, StrategyUniqueName}})
	require.NoError(t, err)

	dr := res.Datasets[0]
	m, ok := dr.Records.Get(0)
	require.True(t, ok)
	assert.Equal(t, StrategyExactID, m.By)
	assert.Equal(t, "2", m.Value)
	assert.Equal(t, "Bremen", m.Label)
	assert.False(t, dr.Used.Has("1"))
	assert.Equal(t, 0, dr.Steps[1].New)
}

func TestResolveRegexWithInitialUsed(t *testing.T) {
	input := namesTable("Hansestadt Hamburg", "Hansestadt Lübeck")
	source := "csv/NUTS_3/2021/nuts.csv"
	ds := refDataset(source, "1", "Hamburg", "2", "Lübeck")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{
			Strategies:  []string{StrategyRegexReplace},
			InitialUsed: map[string][]string{source: {"1"}},
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "2"}, mappedValues(t, res.Datasets[0], 2))
}

func TestResolveFuzzyWithUsedCity(t *testing.T) {
	input := namesTable("Landeshauptstadt München")
	source := "csv/NUTS_3/2021/nuts.csv"
	ds := refDataset(source, "1", "München, Kreisfreie Stadt", "2", "München, Landkreis")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{
			Strategies:  []string{StrategyFuzzyConfident},
			InitialUsed: map[string][]string{source: {"1"}},
		})
	require.NoError(t, err)

	dr := res.Datasets[0]
	assert.Equal(t, []string{""}, mappedValues(t, dr, 1))
	assert.False(t, dr.Used.Has("2"))
	assert.Equal(t, 1, dr.Steps[0].Rejected)
}

func TestResolveTokenSortDuplicateRows(t *testing.T) {
	input := namesTable("Rostock", "Rostock")
	ds := refDataset("csv/NUTS_3/2021/nuts.csv", "1", "Rostock Kreisfreie Stadt")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{Strategies: []string{StrategyTokenPermutation}})
	require.NoError(t, err)

	dr := res.Datasets[0]
	assert.Equal(t, []string{"1", ""}, mappedValues(t, dr, 2))
	assert.Equal(t, 1, dr.Steps[0].Rejected)
	assert.Equal(t, Coverage{InputRows: 2, MatchedRows: 1, UsedIDs: 1, ReferenceRows: 1}, dr.Coverage)
	assert.InDelta(t, 50.0, dr.Coverage.InputShare(), 1e-9)
	assert.InDelta(t, 100.0, dr.Coverage.ReferenceShare(), 1e-9)
}

func TestResolveDefaultOrderNeverReusesEntities(t *testing.T) {
	input := namesTable(
		"München", "Landeshauptstadt München", "Landkreis München",
		"Hansestadt Hamburg", "Hamburg", "Rostock", "Rostock", "Bad Neustadt", "Neustadt Bad",
	)
	ds := refDataset("csv/NUTS_3/2021/nuts.csv",
		"1", "München, Kreisfreie Stadt",
		"2", "München, Landkreis",
		"3", "Hamburg",
		"4", "Rostock Kreisfreie Stadt",
		"5", "Rostock Landkreis",
		"6", "Bad Neustadt")

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		StrategyUniqueName, StrategyRegexReplace, StrategyTokenPermutation,
		StrategyTokenPermutationFull, StrategyFuzzyConfident,
	}, res.Strategies)
	assert.Equal(t, []string{StrategyExactID, StrategyIDWithoutLeadingZero}, res.Skipped)

	dr := res.Datasets[0]
	seen := make(map[string]int)
	for _, row := range dr.Records.Rows() {
		m, _ := dr.Records.Get(row)
		seen[m.EntityID]++
		assert.Equal(t, 1, seen[m.EntityID], "entity %s bound twice", m.EntityID)
	}
	assert.Equal(t, dr.Records.Len(), dr.Used.Len())
}

func TestResolveParallelMatchesSequential(t *testing.T) {
	input := namesTable("Muenchen", "Berlin", "Hansestadt Hamburg", "Rostock")
	datasets := []*Dataset{
		refDataset("csv/NUTS_3/2016/nuts.csv", "A", "Muenchen", "B", "Berlin"),
		refDataset("csv/NUTS_3/2021/nuts.csv", "1", "Hamburg", "2", "Rostock Kreisfreie Stadt"),
		refDataset("csv/LAU/2021/lau.csv", "X", "Berlin", "Y", "Rostock"),
	}
	columns := ColumnSpec{NameColumn: "name"}

	seq, err := newTestResolver().Resolve(context.Background(), input, columns, datasets, Options{Parallelism: 1})
	require.NoError(t, err)
	par, err := newTestResolver().Resolve(context.Background(), input, columns, datasets, Options{Parallelism: 3})
	require.NoError(t, err)

	require.Len(t, par.Datasets, len(datasets))
	for i := range datasets {
		assert.Equal(t, datasets[i].Source, par.Datasets[i].Dataset.Source)
		assert.Equal(t, mappedValues(t, seq.Datasets[i], 4), mappedValues(t, par.Datasets[i], 4))
	}
	dr, ok := par.Dataset("csv/LAU/2021/lau.csv")
	require.True(t, ok)
	assert.Equal(t, []string{"", "X", "", "Y"}, mappedValues(t, dr, 4))
}

func TestResolveErrors(t *testing.T) {
	input := namesTable("Berlin")
	ds := refDataset("csv/LAU/2021/lau.csv", "1", "Berlin")
	r := newTestResolver()
	ctx := context.Background()

	t.Run("no usable column", func(t *testing.T) {
		_, err := r.Resolve(ctx, input, ColumnSpec{NameColumn: "gemeinde"}, []*Dataset{ds}, Options{})
		assert.ErrorIs(t, err, ErrNothingToDo)
	})

	t.Run("no datasets", func(t *testing.T) {
		_, err := r.Resolve(ctx, input, ColumnSpec{NameColumn: "name"}, nil, Options{})
		assert.ErrorIs(t, err, ErrNothingToDo)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := r.Resolve(ctx, input, ColumnSpec{NameColumn: "name"}, []*Dataset{ds}, Options{Strategies: []string{"soundex"}})
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("explicit list skips id strategies", func(t *testing.T) {
		res, err := r.Resolve(ctx, input, ColumnSpec{NameColumn: "name"}, []*Dataset{ds},
			Options{Strategies: []string{StrategyExactID, StrategyUniqueName}})
		require.NoError(t, err)
		assert.Equal(t, []string{StrategyUniqueName}, res.Strategies)
		assert.Equal(t, []string{StrategyExactID}, res.Skipped)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Resolve(cctx, input, ColumnSpec{NameColumn: "name"}, []*Dataset{ds}, Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestResolveDatasetWithoutIDColumn(t *testing.T) {
	input := namesTable("Berlin")
	ds := NewDataset("csv/LAU/2021/lau.csv", []string{"code", "name"}, [][]string{{"1", "Berlin"}})

	res, err := newTestResolver().Resolve(context.Background(), input, ColumnSpec{NameColumn: "name"},
		[]*Dataset{ds}, Options{Strategies: []string{StrategyUniqueName}})
	require.NoError(t, err)

	dr := res.Datasets[0]
	assert.Equal(t, 0, dr.Records.Len())
	require.Len(t, dr.Steps, 1)
	assert.Equal(t, 0, dr.Steps[0].New)
}
