package import_pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeExcel(t *testing.T, path string, sheets map[string][][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoadTableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kreise.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n01001,Flensburg\n"), 0644))

	table, err := NewLoader(nil).LoadTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, table.Columns)
	assert.Equal(t, []string{"01001", "Flensburg"}, table.Rows[0].Cells)
}

func TestLoadTableExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kreise.xlsx")
	writeExcel(t, path, map[string][][]interface{}{
		"Daten": {
			{"ags", "kreis"},
			{"13003", "Rostock"},
			{nil, nil},
			{"13004", "Schwerin"},
		},
	})

	table, err := NewLoader(nil).LoadTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ags", "kreis"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"13004", "Schwerin"}, table.Rows[1].Cells)

	table, err = NewLoader(nil).LoadTable(path, "Daten")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)

	_, err = NewLoader(nil).LoadTable(path, "Fehlt")
	assert.ErrorContains(t, err, `worksheet "Fehlt" not found (have Daten)`)
}

func TestLoadTableUnsupported(t *testing.T) {
	_, err := NewLoader(nil).LoadTable("kreise.ods", "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
