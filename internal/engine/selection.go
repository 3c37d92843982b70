package engine

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/geo-mapper/internal/match"
)

// RankDatasets returns the datasets with at least one mapped row, best
// first: by share of input rows mapped, then share of reference rows used,
// then used count. Ties keep resolution order.
func RankDatasets(result *match.Result) []*match.DatasetResult {
	var ranked []*match.DatasetResult
	for _, dr := range result.Datasets {
		if dr.Records.Len() > 0 {
			ranked = append(ranked, dr)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Coverage, ranked[j].Coverage
		if a.InputShare() != b.InputShare() {
			return a.InputShare() > b.InputShare()
		}
		if a.ReferenceShare() != b.ReferenceShare() {
			return a.ReferenceShare() > b.ReferenceShare()
		}
		return a.UsedIDs > b.UsedIDs
	})
	return ranked
}

// SelectExportSource picks the dataset used for manual overrides and
// export. A named source (full path or file name) wins; otherwise auto
// picks the top ranked dataset. It returns nil when nothing is selected.
func SelectExportSource(result *match.Result, source string, auto bool) (*match.DatasetResult, error) {
	if source != "" {
		if dr, ok := result.Dataset(source); ok {
			return dr, nil
		}
		var found *match.DatasetResult
		for _, dr := range result.Datasets {
			if filepath.Base(dr.Dataset.Source) == filepath.Base(source) {
				if found != nil {
					return nil, fmt.Errorf("export source %q is ambiguous", source)
				}
				found = dr
			}
		}
		if found == nil {
			return nil, fmt.Errorf("export source %q was not loaded", source)
		}
		return found, nil
	}
	if !auto {
		return nil, nil
	}
	ranked := RankDatasets(result)
	if len(ranked) == 0 {
		return nil, nil
	}
	return ranked[0], nil
}
