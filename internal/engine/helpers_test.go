package engine

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/match"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func namesInput(names ...string) *match.Table {
	records := make([][]string, len(names))
	for i, n := range names {
		records[i] = []string{n}
	}
	return match.NewTable([]string{"name"}, records)
}

func dataset(source string, pairs ...string) *match.Dataset {
	var records [][]string
	for i := 0; i+1 < len(pairs); i += 2 {
		records = append(records, []string{pairs[i], pairs[i+1]})
	}
	return match.NewDataset(source, []string{"id", "name"}, records)
}

func resolveNames(t *testing.T, input *match.Table, datasets ...*match.Dataset) *match.Result {
	t.Helper()
	resolver := match.NewResolver(match.ResolverConfig{Logger: zap.NewNop()})
	result, err := resolver.Resolve(context.Background(), input, match.ColumnSpec{NameColumn: "name"}, datasets,
		match.Options{Strategies: []string{match.StrategyUniqueName}})
	require.NoError(t, err)
	return result
}
