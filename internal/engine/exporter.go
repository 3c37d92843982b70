package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/match"
)

// Export file names.
const (
	MappedPairsFile      = "mapped_pairs.csv"
	MappedPairsWorkbook  = "mapped_pairs.xlsx"
	UnmappedOriginalFile = "unmapped_original.csv"
	UnmappedGeodataFile  = "unmapped_geodata.csv"
	MetaFile             = "meta.json"
)

// Exporter writes the results of a run into a directory.
type Exporter struct {
	format string
	logger *zap.Logger
}

// NewExporter creates an exporter for format (csv, xlsx or both).
func NewExporter(format string, logger *zap.Logger) *Exporter {
	if format == "" {
		format = config.FormatCSV
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{format: format, logger: logger}
}

// ExportRequest is everything an export needs.
type ExportRequest struct {
	Input    *match.Table
	Columns  match.ColumnSpec
	Datasets []*match.DatasetResult
	Meta     *config.Meta
	// CopyGeodata also copies the source CSV of every exported dataset.
	CopyGeodata bool
}

// sheet is one exported table.
type sheet struct {
	name   string
	header []string
	rows   [][]string
}

// Export writes all result files into dir and returns their paths.
func (e *Exporter) Export(dir string, req ExportRequest) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pairs := mappedPairs(req.Input, req.Columns, req.Datasets)
	sheets := []sheet{
		pairs,
		unmappedOriginal(req.Input, req.Columns, req.Datasets),
		unmappedGeodata(req.Datasets),
	}

	var files []string
	if e.format == config.FormatCSV || e.format == config.FormatBoth {
		names := []string{MappedPairsFile, UnmappedOriginalFile, UnmappedGeodataFile}
		for i, s := range sheets {
			path := filepath.Join(dir, names[i])
			if err := writeCSVFile(path, s); err != nil {
				return files, err
			}
			files = append(files, path)
			e.logger.Info("✓ Exported "+names[i], zap.Int("rows", len(s.rows)))
		}
	}
	if e.format == config.FormatXLSX || e.format == config.FormatBoth {
		path := filepath.Join(dir, MappedPairsWorkbook)
		if err := writeWorkbook(path, sheets); err != nil {
			return files, err
		}
		files = append(files, path)
		e.logger.Info("✓ Exported "+MappedPairsWorkbook, zap.Int("rows", len(pairs.rows)))
	}

	if req.Meta != nil {
		path := filepath.Join(dir, MetaFile)
		if err := req.Meta.WriteJSON(path); err != nil {
			return files, err
		}
		files = append(files, path)
	}

	if req.CopyGeodata {
		for _, dr := range req.Datasets {
			dst := filepath.Join(dir, dr.Dataset.Name())
			if err := copyFile(dr.Dataset.Source, dst); err != nil {
				e.logger.Warn("Could not copy geodata CSV", zap.String("source", dr.Dataset.Source), zap.Error(err))
				continue
			}
			files = append(files, dst)
		}
	}

	e.logger.Info("Export complete", zap.String("dir", dir), zap.Int("files", len(files)))
	return files, nil
}

func idFieldNames(columns match.ColumnSpec) []string {
	names := make([]string, len(columns.IDColumns))
	for i := range columns.IDColumns {
		names[i] = "original_id_" + strconv.Itoa(i+1)
	}
	return names
}

// secondaryColumns is the ordered union of the family id export columns of
// the datasets.
func secondaryColumns(datasets []*match.DatasetResult) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, dr := range datasets {
		for _, sc := range match.SecondaryIDColumns[dr.Dataset.Family] {
			if !seen[sc.Export] {
				seen[sc.Export] = true
				cols = append(cols, sc.Export)
			}
		}
	}
	return cols
}

func cell(input *match.Table, row match.Row, column string) string {
	v, _ := input.Value(row, column)
	return v
}

// mapperRank orders export rows by strategy precedence; manual and unknown
// strategies come last.
func mapperRank(strategy string) int {
	for i, name := range match.DefaultOrder {
		if name == strategy {
			return i
		}
	}
	return len(match.DefaultOrder)
}

func mappedPairs(input *match.Table, columns match.ColumnSpec, datasets []*match.DatasetResult) sheet {
	idFields := idFieldNames(columns)
	extras := secondaryColumns(datasets)

	header := append([]string{}, idFields...)
	header = append(header, "original_name", "geodata_name")
	header = append(header, extras...)
	header = append(header, "mapper", "parameter")
	base := make(map[string]bool, len(header))
	for _, h := range header {
		base[h] = true
	}
	for _, col := range columns.IDColumns {
		base[col] = true
	}
	base[columns.NameColumn] = true
	var values []string
	for _, v := range columns.ValueColumns {
		if !base[v] {
			values = append(values, v)
		}
	}
	header = append(header, values...)

	type ranked struct {
		rank  int
		cells []string
	}
	var out []ranked
	for _, dr := range datasets {
		ds := dr.Dataset
		for _, index := range dr.Records.Rows() {
			m, _ := dr.Records.Get(index)
			row, ok := input.Row(index)
			if !ok {
				continue
			}
			cells := make([]string, 0, len(header))
			for _, col := range columns.IDColumns {
				cells = append(cells, cell(input, row, col))
			}
			cells = append(cells, cell(input, row, columns.NameColumn), m.Label)

			secondary := make(map[string]string)
			if entity, ok := ds.Lookup(m.EntityID); ok {
				for _, sc := range match.SecondaryIDColumns[ds.Family] {
					secondary[sc.Export] = entity.Fields[sc.Source]
				}
			}
			for _, col := range extras {
				cells = append(cells, secondary[col])
			}
			cells = append(cells, m.By, m.Param)
			for _, col := range values {
				cells = append(cells, cell(input, row, col))
			}
			out = append(out, ranked{rank: mapperRank(m.By), cells: cells})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank < out[j].rank })

	rows := make([][]string, len(out))
	for i, r := range out {
		rows[i] = r.cells
	}
	return sheet{name: "mapped_pairs", header: header, rows: rows}
}

func unmappedOriginal(input *match.Table, columns match.ColumnSpec, datasets []*match.DatasetResult) sheet {
	header := append(idFieldNames(columns), "original_name")

	var rows [][]string
	for _, row := range input.Rows {
		mapped := false
		for _, dr := range datasets {
			if dr.Records.Mapped(row.Index) {
				mapped = true
				break
			}
		}
		if mapped {
			continue
		}
		cells := make([]string, 0, len(header))
		for _, col := range columns.IDColumns {
			cells = append(cells, cell(input, row, col))
		}
		rows = append(rows, append(cells, cell(input, row, columns.NameColumn)))
	}
	return sheet{name: "unmapped_original", header: header, rows: rows}
}

func unmappedGeodata(datasets []*match.DatasetResult) sheet {
	extras := secondaryColumns(datasets)
	header := append(append([]string{}, extras...), "geodata_name")

	var rows [][]string
	for _, dr := range datasets {
		ds := dr.Dataset
		if !ds.HasColumn("id") || !ds.HasColumn("name") {
			continue
		}
		for _, e := range ds.Entities {
			if e.ID == "" || dr.Used.Has(e.ID) {
				continue
			}
			secondary := make(map[string]string)
			for _, sc := range match.SecondaryIDColumns[ds.Family] {
				secondary[sc.Export] = e.Fields[sc.Source]
			}
			cells := make([]string, 0, len(header))
			for _, col := range extras {
				cells = append(cells, secondary[col])
			}
			rows = append(rows, append(cells, e.Name))
		}
	}
	return sheet{name: "unmapped_geodata", header: header, rows: rows}
}

func writeCSVFile(path string, s sheet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(s.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(s.rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return file.Close()
}

func writeWorkbook(path string, sheets []sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}

		if err := setRow(f, s.name, 1, s.header); err != nil {
			return err
		}
		if len(s.header) > 0 {
			first, _ := excelize.CoordinatesToCellName(1, 1)
			last, _ := excelize.CoordinatesToCellName(len(s.header), 1)
			if err := f.SetCellStyle(s.name, first, last, headerStyle); err != nil {
				return fmt.Errorf("failed to style header: %w", err)
			}
			lastCol, _ := excelize.ColumnNumberToName(len(s.header))
			if err := f.SetColWidth(s.name, "A", lastCol, 18); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
		for r, row := range s.rows {
			if err := setRow(f, s.name, r+2, row); err != nil {
				return err
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// setRow writes cells as text so ids keep their leading zeros.
func setRow(f *excelize.File, sheetName string, row int, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, start, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheetName, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
