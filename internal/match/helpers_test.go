package match

import (
	"testing"

	"go.uber.org/zap"
)

func newTable(columns []string, rows ...[]string) *Table {
	return NewTable(columns, rows)
}

// namesTable builds a single-column input table named "name".
func namesTable(names ...string) *Table {
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return NewTable([]string{"name"}, rows)
}

// refDataset builds an id/name dataset from alternating id, name pairs.
func refDataset(source string, pairs ...string) *Dataset {
	var rows [][]string
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, []string{pairs[i], pairs[i+1]})
	}
	return NewDataset(source, []string{"id", "name"}, rows)
}

func request(input *Table, columns ColumnSpec, ds *Dataset, used UsedIDs) *Request {
	if used == nil {
		used = NewUsedIDs()
	}
	return &Request{
		Input:   input,
		Rows:    input.Rows,
		Columns: columns,
		Ref:     NewReference(ds),
		Used:    used,
		Logger:  zap.NewNop(),
	}
}

// byRow indexes proposal values by row.
func byRow(proposals []Proposal) map[int]string {
	out := make(map[int]string, len(proposals))
	for _, p := range proposals {
		out[p.Row] = p.Value
	}
	return out
}

// mappedValues returns the mapped value of every input row, "" when unmapped.
func mappedValues(t *testing.T, dr *DatasetResult, rows int) []string {
	t.Helper()
	out := make([]string, rows)
	for i := 0; i < rows; i++ {
		if m, ok := dr.Records.Get(i); ok {
			out[i] = m.Value
		}
	}
	return out
}

func newTestResolver() *Resolver {
	return NewResolver(ResolverConfig{Logger: zap.NewNop()})
}
