package import_pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/match"
)

// Loader reads input tables and geodata catalogues.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadTable reads a CSV or Excel file. sheet selects the worksheet of Excel
// input; empty means the first sheet.
func (l *Loader) LoadTable(path, sheet string) (*match.Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return l.loadCSV(path)
	case ".xlsx", ".xlsm":
		return l.loadExcel(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %q (supported: .csv, .xlsx, .xlsm)", ErrUnsupportedFormat, ext)
	}
}

func (l *Loader) loadCSV(path string) (*match.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	table, delim, encoding, err := ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Info("Loaded CSV",
		zap.String("path", path),
		zap.String("delimiter", string(delim)),
		zap.String("encoding", encoding),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)))
	return table, nil
}

// ParseCSV parses delimited text of unknown delimiter and encoding. It
// returns the table along with the detected delimiter and encoding.
func ParseCSV(data []byte) (*match.Table, rune, string, error) {
	text, encoding, err := decodeText(data)
	if err != nil {
		return nil, 0, "", err
	}
	if strings.TrimSpace(text) == "" {
		return nil, 0, encoding, ErrEmptyTable
	}
	delim := sniffDelimiter(text)
	records, err := readRecords(text, delim)
	if err != nil {
		return nil, delim, encoding, err
	}
	columns, rows, err := splitTable(records)
	if err != nil {
		return nil, delim, encoding, err
	}
	return match.NewTable(columns, rows), delim, encoding, nil
}

func (l *Loader) loadExcel(path, sheet string) (*match.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: no sheets found: %w", path, ErrEmptyTable)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%s: worksheet %q not found (have %s)", path, sheet, strings.Join(sheets, ", "))
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of %s: %w", sheet, err)
	}
	columns, rows, err := splitTable(records)
	if err != nil {
		return nil, fmt.Errorf("%s[%s]: %w", path, sheet, err)
	}
	l.logger.Info("Loaded Excel",
		zap.String("path", path),
		zap.String("sheet", sheet),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)))
	return match.NewTable(columns, rows), nil
}
