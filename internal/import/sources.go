package import_pkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geo-mapper/internal/match"
)

// GeodataSelection narrows the geodata catalogue. Empty fields select all.
type GeodataSelection struct {
	Root      string
	Family    match.Family
	NUTSLevel string
	Year      string
}

// loadWorkers bounds concurrent geodata file reads.
const loadWorkers = 4

// GeodataPaths lists the CSV files matching sel under the layouts
// <root>/LAU/<year>/*.csv and <root>/NUTS_<level>/<year>/*.csv. With a NUTS
// level set, file names must contain "level_<n>".
func GeodataPaths(sel GeodataSelection) ([]string, error) {
	families := []match.Family{match.FamilyLAU, match.FamilyNUTS}
	if sel.Family != match.FamilyUnknown {
		families = []match.Family{sel.Family}
	}

	var paths []string
	for _, family := range families {
		bases, err := familyDirs(sel, family)
		if err != nil {
			return nil, err
		}
		for _, base := range bases {
			years, err := yearDirs(base, sel.Year)
			if err != nil {
				return nil, err
			}
			for _, dir := range years {
				files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
				if err != nil {
					return nil, err
				}
				sort.Strings(files)
				for _, f := range files {
					if family == match.FamilyNUTS && sel.NUTSLevel != "" &&
						!strings.Contains(filepath.Base(f), "level_"+sel.NUTSLevel) {
						continue
					}
					paths = append(paths, f)
				}
			}
		}
	}
	return paths, nil
}

func familyDirs(sel GeodataSelection, family match.Family) ([]string, error) {
	if family == match.FamilyLAU {
		dir := filepath.Join(sel.Root, "LAU")
		if isDir(dir) {
			return []string{dir}, nil
		}
		return nil, nil
	}
	if sel.NUTSLevel != "" {
		dir := filepath.Join(sel.Root, "NUTS_"+sel.NUTSLevel)
		if isDir(dir) {
			return []string{dir}, nil
		}
		return nil, nil
	}

	entries, err := os.ReadDir(sel.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read geodata root %s: %w", sel.Root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(strings.ToUpper(e.Name()), "NUTS_") {
			dirs = append(dirs, filepath.Join(sel.Root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func yearDirs(base, year string) ([]string, error) {
	if year != "" {
		dir := filepath.Join(base, year)
		if isDir(dir) {
			return []string{dir}, nil
		}
		return nil, nil
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", base, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(base, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LoadGeodata reads every dataset matching sel. Empty files are skipped.
// The result keeps the path order of GeodataPaths.
func (l *Loader) LoadGeodata(ctx context.Context, sel GeodataSelection) ([]*match.Dataset, error) {
	paths, err := GeodataPaths(sel)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		l.logger.Warn("No geodata CSV files matched the selection",
			zap.String("root", sel.Root),
			zap.String("family", string(sel.Family)),
			zap.String("level", sel.NUTSLevel),
			zap.String("year", sel.Year))
		return nil, nil
	}

	loaded := make([]*match.Dataset, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadWorkers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ds, err := LoadDataset(path)
			if errors.Is(err, ErrEmptyTable) {
				l.logger.Debug("Skipping empty geodata file", zap.String("path", path))
				return nil
			}
			if err != nil {
				return err
			}
			loaded[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	datasets := make([]*match.Dataset, 0, len(loaded))
	for _, ds := range loaded {
		if ds != nil {
			datasets = append(datasets, ds)
			l.logger.Info("Loaded geodata",
				zap.String("file", ds.Name()),
				zap.String("family", string(ds.Family)),
				zap.Int("vintage", ds.Vintage),
				zap.Int("entities", len(ds.Entities)))
		}
	}
	return datasets, nil
}

// LoadDataset reads one geodata CSV file.
func LoadDataset(path string) (*match.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geodata %s: %w", path, err)
	}
	table, _, _, err := ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	records := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = row.Cells
	}
	return match.NewDataset(path, table.Columns, records), nil
}
