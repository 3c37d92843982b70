package match

import (
	"strings"

	"github.com/geo-mapper/internal/normalize"
)

// idHit is one reference entity reachable under an ID lookup key.
type idHit struct {
	EntityID string
	Value    string // canonical id, normalized with the same strip flag
	Label    string
	Column   string
}

// idIndex maps a normalized id value to every entity carrying it in any
// column whose header starts with "id".
type idIndex map[string][]idHit

// idColumns returns the dataset headers that start with "id" (case-insensitive).
func idColumns(ds *Dataset) []string {
	var cols []string
	for _, col := range ds.Columns {
		if strings.HasPrefix(strings.ToLower(col), "id") {
			cols = append(cols, col)
		}
	}
	return cols
}

func buildIDIndex(ds *Dataset, strip bool) idIndex {
	ix := make(idIndex)
	if !ds.HasColumn("id") {
		return ix
	}
	cols := idColumns(ds)
	for _, e := range ds.Entities {
		canonical, ok := normalize.ID(e.ID, strip)
		if !ok {
			continue
		}
		for _, col := range cols {
			key, ok := normalize.ID(e.Fields[col], strip)
			if !ok {
				continue
			}
			ix[key] = append(ix[key], idHit{EntityID: e.ID, Value: canonical, Label: e.Name, Column: col})
		}
	}
	return ix
}

// resolve returns the first hit under key when all hits agree on one
// canonical id. Keys reaching several ids are ambiguous.
func (ix idIndex) resolve(key string) (idHit, bool) {
	hits := ix[key]
	if len(hits) == 0 {
		return idHit{}, false
	}
	for _, h := range hits[1:] {
		if h.Value != hits[0].Value {
			return idHit{}, false
		}
	}
	return hits[0], true
}

// nameHit is one reference entity reachable under a name lookup key.
type nameHit struct {
	EntityID string
	Label    string
	Source   string
	Vintage  int
}

// nameIndex maps a derived name key to every entity producing it.
type nameIndex map[string][]nameHit

// buildNameIndex indexes entity names of the given datasets under key(name).
// Entities without id or name and empty keys are left out.
func buildNameIndex(key func(string) string, datasets ...*Dataset) nameIndex {
	ix := make(nameIndex)
	for _, ds := range datasets {
		if !ds.HasColumn("id") || !ds.HasColumn("name") {
			continue
		}
		for _, e := range ds.Entities {
			if e.ID == "" {
				continue
			}
			k := key(e.Name)
			if k == "" {
				continue
			}
			ix[k] = append(ix[k], nameHit{EntityID: e.ID, Label: e.Name, Source: ds.Source, Vintage: ds.Vintage})
		}
	}
	return ix
}

// safe returns the representative hit for key if the key is unique or all
// its hits share one entity id. Among same-id hits the newest vintage wins,
// earlier occurrences winning ties.
func (ix nameIndex) safe(key string) (nameHit, bool) {
	hits := ix[key]
	if len(hits) == 0 {
		return nameHit{}, false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.EntityID != best.EntityID {
			return nameHit{}, false
		}
		if h.Vintage > best.Vintage {
			best = h
		}
	}
	return best, true
}

// available returns the hits under key whose entity is not yet used.
func (ix nameIndex) available(key string, used UsedIDs) []nameHit {
	var out []nameHit
	for _, h := range ix[key] {
		if !used.Has(h.EntityID) {
			out = append(out, h)
		}
	}
	return out
}

// idCount returns the number of distinct entity ids under key.
func (ix nameIndex) idCount(key string) int {
	seen := make(map[string]struct{})
	for _, h := range ix[key] {
		seen[h.EntityID] = struct{}{}
	}
	return len(seen)
}

// Reference wraps a dataset with lazily built lookup indexes. One
// Reference is owned by a single resolution goroutine.
type Reference struct {
	*Dataset

	ids   map[bool]idIndex
	names map[string]nameIndex
}

// NewReference wraps ds.
func NewReference(ds *Dataset) *Reference {
	return &Reference{
		Dataset: ds,
		ids:     make(map[bool]idIndex),
		names:   make(map[string]nameIndex),
	}
}

func (r *Reference) idIndex(strip bool) idIndex {
	ix, ok := r.ids[strip]
	if !ok {
		ix = buildIDIndex(r.Dataset, strip)
		r.ids[strip] = ix
	}
	return ix
}

func (r *Reference) nameIndex(kind string, key func(string) string) nameIndex {
	ix, ok := r.names[kind]
	if !ok {
		ix = buildNameIndex(key, r.Dataset)
		r.names[kind] = ix
	}
	return ix
}

// usable reports whether the dataset has the columns a strategy needs.
func (r *Reference) usable(req Requirement) bool {
	if !r.HasColumn("id") {
		return false
	}
	if req == RequiresNameColumn {
		return r.HasColumn("name")
	}
	return true
}
