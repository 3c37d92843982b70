package match

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Family is the geodata dataset family inferred from a dataset path.
type Family string

const (
	FamilyUnknown Family = ""
	FamilyNUTS    Family = "nuts"
	FamilyLAU     Family = "lau"
)

// SecondaryIDColumn pairs a dataset column with the column name used for it
// in exports.
type SecondaryIDColumn struct {
	Source string
	Export string
}

// SecondaryIDColumns lists the family-specific identifier columns exported
// next to each mapping.
var SecondaryIDColumns = map[Family][]SecondaryIDColumn{
	FamilyLAU: {
		{Source: "id", Export: "geodaten_id"},
	},
	FamilyNUTS: {
		{Source: "id_nuts", Export: "geodaten_id_nuts"},
		{Source: "id_ars", Export: "geodaten_id_ars"},
	},
}

// InferFamily classifies a dataset path: "lau" if any path element equals
// lau, "nuts" if any element starts with nuts (case-insensitive).
func InferFamily(path string) Family {
	parts := splitPath(path)
	for _, part := range parts {
		if strings.EqualFold(part, "lau") {
			return FamilyLAU
		}
	}
	for _, part := range parts {
		if strings.HasPrefix(strings.ToLower(part), "nuts") {
			return FamilyNUTS
		}
	}
	return FamilyUnknown
}

// VintageOf parses the parent directory name of path as a year. Unparsable
// vintages return -1 so they sort as oldest.
func VintageOf(path string) int {
	parent := filepath.Base(filepath.Dir(filepath.Clean(path)))
	year, err := strconv.Atoi(parent)
	if err != nil {
		return -1
	}
	return year
}

func splitPath(path string) []string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	var parts []string
	for _, p := range strings.Split(cleaned, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

// Row is one input record. Index is assigned once at load time and never
// renumbered.
type Row struct {
	Index int
	Cells []string
}

// Table is the user's input table.
type Table struct {
	Columns []string
	Rows    []Row

	positions map[string]int
}

// NewTable builds a table whose row indexes are the record positions.
func NewTable(columns []string, records [][]string) *Table {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{Index: i, Cells: rec}
	}
	t := &Table{Columns: columns, Rows: rows, positions: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.positions[c]; !dup {
			t.positions[c] = i
		}
	}
	return t
}

// ColumnIndex returns the position of column or -1.
func (t *Table) ColumnIndex(column string) int {
	if t.positions != nil {
		if pos, ok := t.positions[column]; ok {
			return pos
		}
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries column.
func (t *Table) Has(column string) bool {
	return column != "" && t.ColumnIndex(column) >= 0
}

// Value returns the cell of row in column. Missing columns and short rows
// yield ("", false).
func (t *Table) Value(row Row, column string) (string, bool) {
	pos := t.ColumnIndex(column)
	if pos < 0 || pos >= len(row.Cells) {
		return "", false
	}
	return row.Cells[pos], true
}

// Row returns the row with the given index.
func (t *Table) Row(index int) (Row, bool) {
	if index >= 0 && index < len(t.Rows) && t.Rows[index].Index == index {
		return t.Rows[index], true
	}
	for _, r := range t.Rows {
		if r.Index == index {
			return r, true
		}
	}
	return Row{}, false
}

// ColumnSpec names the input columns the strategies work on.
type ColumnSpec struct {
	IDColumns    []string
	NameColumn   string
	ValueColumns []string
}

// availableIDColumns returns the configured ID columns present in t.
func (c ColumnSpec) availableIDColumns(t *Table) []string {
	var cols []string
	for _, col := range c.IDColumns {
		if t.Has(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// Entity is one row of a reference dataset.
type Entity struct {
	ID     string
	Name   string
	Fields map[string]string
}

// Dataset is one reference table (one level and vintage). It is immutable
// once built.
type Dataset struct {
	Source   string
	Family   Family
	Vintage  int
	Columns  []string
	Entities []Entity

	byID map[string]int
}

// NewDataset builds a dataset from raw CSV-like records. NUTS datasets
// without an "id" column get one from id_nuts, falling back to id_ars per row.
func NewDataset(source string, columns []string, records [][]string) *Dataset {
	ds := &Dataset{
		Source:  source,
		Family:  InferFamily(source),
		Vintage: VintageOf(source),
		Columns: append([]string(nil), columns...),
	}

	synthesizeID := !contains(columns, "id") && ds.Family == FamilyNUTS &&
		(contains(columns, "id_nuts") || contains(columns, "id_ars"))
	if synthesizeID {
		ds.Columns = append(ds.Columns, "id")
	}

	for _, rec := range records {
		fields := make(map[string]string, len(ds.Columns))
		for i, col := range columns {
			if i < len(rec) {
				if _, dup := fields[col]; !dup {
					fields[col] = rec[i]
				}
			}
		}
		if synthesizeID {
			id := fields["id_nuts"]
			if id == "" {
				id = fields["id_ars"]
			}
			fields["id"] = id
		}
		ds.Entities = append(ds.Entities, Entity{
			ID:     fields["id"],
			Name:   fields["name"],
			Fields: fields,
		})
	}

	ds.byID = make(map[string]int, len(ds.Entities))
	for i, e := range ds.Entities {
		if e.ID == "" {
			continue
		}
		if _, dup := ds.byID[e.ID]; !dup {
			ds.byID[e.ID] = i
		}
	}
	return ds
}

// HasColumn reports whether the dataset carries column.
func (d *Dataset) HasColumn(column string) bool {
	return contains(d.Columns, column)
}

// Lookup returns the first entity carrying id.
func (d *Dataset) Lookup(id string) (Entity, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Entity{}, false
	}
	return d.Entities[i], true
}

// ReferenceRows counts entities with a non-empty id.
func (d *Dataset) ReferenceRows() int {
	if !d.HasColumn("id") {
		return len(d.Entities)
	}
	n := 0
	for _, e := range d.Entities {
		if e.ID != "" {
			n++
		}
	}
	return n
}

// Name returns the dataset file name.
func (d *Dataset) Name() string {
	return filepath.Base(d.Source)
}

// Mapping is one cell of a match record.
type Mapping struct {
	By     string `json:"mapped_by"`
	Value  string `json:"mapped_value"`
	Source string `json:"mapped_source"`
	Label  string `json:"mapped_label"`
	Param  string `json:"mapped_param,omitempty"`
	// EntityID is the dataset's own id of the bound entity. It equals Value
	// except for zero-stripped id matches.
	EntityID string `json:"entity_id"`
}

// Proposal is a strategy's suggested binding of one input row.
type Proposal struct {
	Row      int
	EntityID string
	Value    string
	Label    string
	Param    string
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
