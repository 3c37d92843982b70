package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geo-mapper/internal/match"
)

// Meta is the per-run configuration that makes a mapping reproducible.
// It is read from JSON or YAML and written back next to the results.
type Meta struct {
	IDColumn       string        `json:"id_column,omitempty" yaml:"id_column,omitempty"`
	IDColumns      Columns       `json:"id_columns,omitempty" yaml:"id_columns,omitempty"`
	NameColumn     Columns       `json:"name_column,omitempty" yaml:"name_column,omitempty"`
	ValueColumns   Columns       `json:"value_columns,omitempty" yaml:"value_columns,omitempty"`
	Worksheet      string        `json:"worksheet,omitempty" yaml:"worksheet,omitempty"`
	GeodataLevel   string        `json:"geodata_level,omitempty" yaml:"geodata_level,omitempty"`
	GeodataYear    Scalar        `json:"geodata_year,omitempty" yaml:"geodata_year,omitempty"`
	Mappers        []string      `json:"mappers,omitempty" yaml:"mappers,omitempty"`
	ManualMappings []ManualEntry `json:"manual_mappings,omitempty" yaml:"manual_mappings,omitempty"`
}

// ManualEntry is one manual mapping as stored in meta files. InputIDs is
// keyed by the position of the id column; null values carry no expectation.
type ManualEntry struct {
	InputIDs    map[string]*Scalar `json:"input_ids,omitempty" yaml:"input_ids,omitempty"`
	InputName   *Scalar            `json:"input_name" yaml:"input_name"`
	GeodataID   *Scalar            `json:"geodata_id" yaml:"geodata_id"`
	GeodataName *Scalar            `json:"geodata_name" yaml:"geodata_name"`
}

// Scalar is a string or number literal kept verbatim as text.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("expected a string or number, got %s", data)
	default:
		*s = Scalar(data)
	}
	return nil
}

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(node.Value)
	return nil
}

func (s Scalar) String() string { return string(s) }

// Columns is a column selection written as a single name, a list of names,
// or a map of original column position to name.
type Columns []string

func (c *Columns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	cols, err := columnsFrom(v)
	if err != nil {
		return err
	}
	*c = cols
	return nil
}

func (c *Columns) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}
	cols, err := columnsFrom(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = cols
	return nil
}

func columnsFrom(v interface{}) (Columns, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return Columns{t}, nil
	case []interface{}:
		var out Columns
		for _, item := range t {
			if s := scalarText(item); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		values := make(map[string]interface{}, len(t))
		for k, item := range t {
			keys = append(keys, k)
			values[k] = item
		}
		return orderedColumns(keys, values), nil
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(t))
		values := make(map[string]interface{}, len(t))
		for k, item := range t {
			key := scalarText(k)
			keys = append(keys, key)
			values[key] = item
		}
		return orderedColumns(keys, values), nil
	default:
		return nil, fmt.Errorf("unsupported column selection %v", v)
	}
}

// orderedColumns sorts numeric keys numerically, others after them.
func orderedColumns(keys []string, values map[string]interface{}) Columns {
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	var out Columns
	for _, k := range keys {
		if s := scalarText(values[k]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func scalarText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// LoadMeta reads a meta file; the format follows the extension
// (.json, .yaml or .yml).
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta %s: %w", path, err)
	}

	var meta Meta
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &meta)
	case ".json":
		err = json.Unmarshal(data, &meta)
	default:
		return nil, fmt.Errorf("meta %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse meta %s: %w", path, err)
	}
	return &meta, nil
}

// WriteJSON writes meta as indented JSON.
func (m *Meta) WriteJSON(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write meta %s: %w", path, err)
	}
	return nil
}

// ColumnSpec returns the column selection. id_columns wins over id_column;
// the first name_column entry is used.
func (m *Meta) ColumnSpec() match.ColumnSpec {
	spec := match.ColumnSpec{ValueColumns: append([]string(nil), m.ValueColumns...)}
	switch {
	case len(m.IDColumns) > 0:
		spec.IDColumns = append([]string(nil), m.IDColumns...)
	case m.IDColumn != "":
		spec.IDColumns = []string{m.IDColumn}
	}
	if len(m.NameColumn) > 0 {
		spec.NameColumn = m.NameColumn[0]
	}
	return spec
}

// SetColumnSpec stores spec in the meta's column fields.
func (m *Meta) SetColumnSpec(spec match.ColumnSpec) {
	m.IDColumn = ""
	m.IDColumns = append(Columns(nil), spec.IDColumns...)
	m.NameColumn = nil
	if spec.NameColumn != "" {
		m.NameColumn = Columns{spec.NameColumn}
	}
	m.ValueColumns = append(Columns(nil), spec.ValueColumns...)
}

// Manual converts the manual entries. Entries without a geodata id are
// dropped, as are id expectations that are null or not positional.
func (m *Meta) Manual() []match.ManualMapping {
	var out []match.ManualMapping
	for _, e := range m.ManualMappings {
		if e.GeodataID == nil || *e.GeodataID == "" {
			continue
		}
		mm := match.ManualMapping{GeodataID: string(*e.GeodataID)}
		if e.GeodataName != nil {
			mm.GeodataName = string(*e.GeodataName)
		}
		if e.InputName != nil {
			name := string(*e.InputName)
			mm.InputName = &name
		}
		for k, v := range e.InputIDs {
			pos, err := strconv.Atoi(k)
			if err != nil || v == nil || *v == "" {
				continue
			}
			if mm.InputIDs == nil {
				mm.InputIDs = make(map[int]string)
			}
			mm.InputIDs[pos] = string(*v)
		}
		out = append(out, mm)
	}
	return out
}

// NewManualEntry is the inverse of Manual for one mapping.
func NewManualEntry(mm match.ManualMapping) ManualEntry {
	e := ManualEntry{GeodataID: scalarPtr(mm.GeodataID), GeodataName: scalarPtr(mm.GeodataName)}
	if mm.InputName != nil {
		e.InputName = scalarPtr(*mm.InputName)
	}
	if len(mm.InputIDs) > 0 {
		e.InputIDs = make(map[string]*Scalar, len(mm.InputIDs))
		for pos, v := range mm.InputIDs {
			e.InputIDs[strconv.Itoa(pos)] = scalarPtr(v)
		}
	}
	return e
}

func scalarPtr(s string) *Scalar {
	v := Scalar(s)
	return &v
}
