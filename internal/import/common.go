package import_pkg

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	// ErrUnsupportedFormat is returned for input files that are neither CSV nor Excel.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrEmptyTable is returned when a file holds no header row.
	ErrEmptyTable = errors.New("table is empty")
)

// Delimiters tried by sniffDelimiter, in tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

// sniffLines is the number of lines inspected when guessing the delimiter.
const sniffLines = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns data as UTF-8. A BOM is stripped; bytes that are not
// valid UTF-8 are read as Windows-1252.
func decodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode windows-1252: %w", err)
	}
	return string(decoded), "windows-1252", nil
}

// countOutsideQuotes counts delim in line, ignoring quoted sections.
func countOutsideQuotes(line string, delim rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == delim && !quoted:
			n++
		}
	}
	return n
}

// sniffDelimiter picks the delimiter that splits the first lines into a
// consistent, non-zero number of fields. Without a consistent candidate the
// one most frequent in the header wins; comma is the fallback.
func sniffDelimiter(text string) rune {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sniffLines {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestCount := rune(0), 0
	for _, d := range Delimiters {
		head := countOutsideQuotes(lines[0], d)
		if head == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if countOutsideQuotes(line, d) != head {
				consistent = false
				break
			}
		}
		if consistent && head > bestCount {
			best, bestCount = d, head
		}
	}
	if best != 0 {
		return best
	}

	for _, d := range Delimiters {
		if n := countOutsideQuotes(lines[0], d); n > bestCount {
			best, bestCount = d, n
		}
	}
	if best == 0 {
		return ','
	}
	return best
}

// readRecords parses delimited text into raw records.
func readRecords(text string, delim rune) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// header cleans column names: names are trimmed, blanks become
// "Unnamed: <i>" and repeats get a ".<n>" suffix.
func header(raw []string) []string {
	cols := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		cols[i] = name
	}
	return cols
}

// body trims every cell and drops rows without any non-blank cell.
func body(records [][]string) [][]string {
	out := make([][]string, 0, len(records))
	for _, rec := range records {
		empty := true
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = strings.TrimSpace(cell)
			if row[i] != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// splitTable separates header and body of raw records.
func splitTable(records [][]string) ([]string, [][]string, error) {
	for i, rec := range records {
		if len(body([][]string{rec})) == 0 {
			continue
		}
		return header(rec), body(records[i+1:]), nil
	}
	return nil, nil, ErrEmptyTable
}
