package match

import (
	"go.uber.org/zap"
)

// ManualMapping is an externally supplied forced binding. InputIDs maps the
// position of an id column in ColumnSpec.IDColumns to its expected raw
// value; a nil InputName matches any name.
type ManualMapping struct {
	InputIDs    map[int]string `json:"input_ids"`
	InputName   *string        `json:"input_name,omitempty"`
	GeodataID   string         `json:"geodata_id"`
	GeodataName string         `json:"geodata_name"`
}

// Manual applies manual mappings on top of a dataset result.
type Manual struct {
	logger *zap.Logger
}

func NewManual(logger *zap.Logger) *Manual {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manual{logger: logger}
}

// Apply binds, for each entry in order, the first unmapped row (by index)
// that satisfies the entry's expectations. Entries whose target is unknown
// to the dataset or already used are skipped, so applying the same list
// twice is a no-op. It returns the number of rows bound.
func (m *Manual) Apply(input *Table, columns ColumnSpec, dr *DatasetResult, entries []ManualMapping) int {
	if len(entries) == 0 {
		return 0
	}
	if len(columns.IDColumns) == 0 && columns.NameColumn == "" {
		return 0
	}
	ds := dr.Dataset
	checkExists := ds.HasColumn("id")

	bound := 0
	for _, entry := range entries {
		gid := entry.GeodataID
		if gid == "" {
			continue
		}
		entity, exists := ds.Lookup(gid)
		if checkExists && !exists {
			m.logger.Debug("Manual mapping target not in dataset",
				zap.String("geodata_id", gid), zap.String("dataset", ds.Name()))
			continue
		}
		if dr.Used.Has(gid) {
			continue
		}

		for _, row := range unmappedRows(input, dr.Records) {
			if !m.matches(input, columns, row, entry) {
				continue
			}
			label := entry.GeodataName
			if label == "" {
				label = entity.Name
			}
			dr.Records.set(row.Index, Mapping{
				By:       StrategyManual,
				Value:    gid,
				Source:   ds.Source,
				Label:    label,
				EntityID: gid,
			})
			dr.Used.Add(gid)
			bound++
			break
		}
	}

	if bound > 0 {
		dr.Steps = append(dr.Steps, StepStat{Strategy: StrategyManual, New: bound, Cumulative: dr.Records.Len()})
		m.logger.Info("Manual mappings applied",
			zap.String("dataset", ds.Name()), zap.Int("rows", bound))
	}
	dr.Coverage = coverageOf(input, dr)
	return bound
}

func (m *Manual) matches(input *Table, columns ColumnSpec, row Row, entry ManualMapping) bool {
	for i, col := range columns.IDColumns {
		expected, ok := entry.InputIDs[i]
		if !ok || !input.Has(col) {
			continue
		}
		got, _ := input.Value(row, col)
		if got != expected {
			return false
		}
	}
	if entry.InputName != nil && input.Has(columns.NameColumn) {
		got, _ := input.Value(row, columns.NameColumn)
		if got != *entry.InputName {
			return false
		}
	}
	return true
}
