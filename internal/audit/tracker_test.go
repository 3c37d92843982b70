package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/db"
	"github.com/geo-mapper/internal/engine"
	"github.com/geo-mapper/internal/match"
)

func testReport(t *testing.T) *engine.Report {
	t.Helper()
	input := match.NewTable([]string{"name"}, [][]string{{"Kiel"}, {"Atlantis"}, {"Husum"}})
	lau := match.NewDataset("geo/LAU/2021/lau.csv", []string{"id", "name"}, [][]string{{"1", "Kiel"}, {"2", "Husum"}})
	nuts := match.NewDataset("geo/NUTS_3/2021/nuts_level_3.csv", []string{"id", "name"}, [][]string{{"DEF02", "Kiel"}})

	resolver := match.NewResolver(match.ResolverConfig{Logger: zap.NewNop()})
	result, err := resolver.Resolve(context.Background(), input, match.ColumnSpec{NameColumn: "name"},
		[]*match.Dataset{lau, nuts}, match.Options{Strategies: []string{match.StrategyUniqueName}})
	require.NoError(t, err)

	return &engine.Report{
		RunID:     uuid.New(),
		DataPath:  "input.csv",
		StartedAt: time.Now(),
		Columns:   match.ColumnSpec{NameColumn: "name"},
		Result:    result,
		Exported:  result.Datasets[:1],
	}
}

func TestRecordRows(t *testing.T) {
	rows := recordRows(testReport(t))
	require.Len(t, rows, 3)

	assert.Equal(t, "geo/LAU/2021/lau.csv", rows[0].Source)
	assert.Equal(t, 0, rows[0].Row)
	assert.Equal(t, "1", rows[0].Value)
	assert.Equal(t, 2, rows[1].Row)
	assert.Equal(t, "2", rows[1].Value)
	assert.Equal(t, "geo/NUTS_3/2021/nuts_level_3.csv", rows[2].Source)
	assert.Equal(t, match.StrategyUniqueName, rows[2].By)
}

func TestCoverageRows(t *testing.T) {
	rows := coverageRows(testReport(t))
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Exported)
	assert.Equal(t, 2, rows[0].MatchedRows)
	assert.Equal(t, 3, rows[0].InputRows)
	assert.False(t, rows[1].Exported)
	assert.Equal(t, 1, rows[1].UsedIDs)
}

func TestEmptyReport(t *testing.T) {
	assert.Empty(t, recordRows(&engine.Report{}))
	assert.Empty(t, coverageRows(&engine.Report{}))
}

// TestTrackerRoundTrip needs a scratch database; set GEO_MAPPER_TEST_DB=1
// with the usual PG* variables to run it.
func TestTrackerRoundTrip(t *testing.T) {
	if os.Getenv("GEO_MAPPER_TEST_DB") == "" {
		t.Skip("GEO_MAPPER_TEST_DB not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := db.NewConnection(ctx, cfg.Database)
	require.NoError(t, err)
	defer conn.Close()

	tracker := NewTracker(conn.DB, false)
	require.NoError(t, tracker.EnsureSchema(ctx))

	report := testReport(t)
	require.NoError(t, tracker.SaveRun(ctx, report))
	defer conn.DB.Exec("DELETE FROM mapping_run WHERE run_id = $1", report.RunID)

	runs, err := tracker.RecentRuns(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, run := range runs {
		if run.RunID == report.RunID {
			found = true
			assert.Equal(t, []string{match.StrategyUniqueName}, run.Strategies)
			assert.Equal(t, 3, run.TotalRows)
		}
	}
	assert.True(t, found)

	coverage, err := tracker.RunCoverage(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, coverage, 2)
	assert.True(t, coverage[0].Exported)
	assert.Equal(t, 2, coverage[0].Coverage.MatchedRows)
}
