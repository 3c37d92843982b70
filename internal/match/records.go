package match

import "sort"

// UsedIDs is the set of entity ids already consumed within one dataset.
type UsedIDs map[string]struct{}

// NewUsedIDs seeds a set from ids.
func NewUsedIDs(ids ...string) UsedIDs {
	u := make(UsedIDs, len(ids))
	for _, id := range ids {
		u.Add(id)
	}
	return u
}

func (u UsedIDs) Has(id string) bool {
	_, ok := u[id]
	return ok
}

func (u UsedIDs) Add(id string) {
	if id != "" {
		u[id] = struct{}{}
	}
}

func (u UsedIDs) Len() int { return len(u) }

// Sorted returns the ids in ascending order.
func (u UsedIDs) Sorted() []string {
	out := make([]string, 0, len(u))
	for id := range u {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Records is the match record of one dataset: row index -> mapping.
// A cell, once written, is never overwritten.
type Records struct {
	cells map[int]Mapping
}

func NewRecords() *Records {
	return &Records{cells: make(map[int]Mapping)}
}

// Get returns the mapping of row.
func (r *Records) Get(row int) (Mapping, bool) {
	m, ok := r.cells[row]
	return m, ok
}

// Mapped reports whether row already has a mapping.
func (r *Records) Mapped(row int) bool {
	_, ok := r.cells[row]
	return ok
}

// set writes m for row unless the row is already mapped.
func (r *Records) set(row int, m Mapping) bool {
	if r.Mapped(row) {
		return false
	}
	r.cells[row] = m
	return true
}

// Len returns the number of mapped rows.
func (r *Records) Len() int { return len(r.cells) }

// Rows returns the mapped row indexes in ascending order.
func (r *Records) Rows() []int {
	out := make([]int, 0, len(r.cells))
	for row := range r.cells {
		out = append(out, row)
	}
	sort.Ints(out)
	return out
}

// Values returns the mapped values in row order.
func (r *Records) Values() []string {
	rows := r.Rows()
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = r.cells[row].Value
	}
	return out
}

// StepStat is the outcome of one strategy on one dataset.
type StepStat struct {
	Strategy   string `json:"strategy"`
	New        int    `json:"new"`
	Cumulative int    `json:"cumulative"`
	Rejected   int    `json:"rejected"`
}

// Coverage summarizes how well a dataset matched the input.
type Coverage struct {
	InputRows     int `json:"input_rows"`
	MatchedRows   int `json:"matched_rows"`
	UsedIDs       int `json:"used_ids"`
	ReferenceRows int `json:"reference_rows"`
}

// InputShare is the percentage of input rows matched.
func (c Coverage) InputShare() float64 {
	return percent(c.MatchedRows, c.InputRows)
}

// ReferenceShare is the percentage of reference rows consumed.
func (c Coverage) ReferenceShare() float64 {
	return percent(c.UsedIDs, c.ReferenceRows)
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100.0
}
