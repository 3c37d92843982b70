package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferFamily(t *testing.T) {
	tests := []struct {
		path string
		want Family
	}{
		{"geodata_clean/csv/LAU/2021/lau_2021.csv", FamilyLAU},
		{"geodata_clean/csv/lau/2021/lau_2021.csv", FamilyLAU},
		{"geodata_clean/csv/NUTS_3/2021/nuts_level_3.csv", FamilyNUTS},
		{"/tmp/nuts3.csv", FamilyNUTS},
		{"/tmp/geo.csv", FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFamily(tt.path))
		})
	}
}

func TestVintageOf(t *testing.T) {
	assert.Equal(t, 2021, VintageOf("csv/NUTS_3/2021/nuts_level_3.csv"))
	assert.Equal(t, -1, VintageOf("csv/NUTS_3/latest/nuts_level_3.csv"))
	assert.Equal(t, -1, VintageOf("geo.csv"))
}

func TestNewDatasetSynthesizesNUTSID(t *testing.T) {
	ds := NewDataset("csv/NUTS_3/2021/nuts_level_3.csv",
		[]string{"id_nuts", "id_ars", "name"},
		[][]string{
			{"DE212", "09162", "München, Kreisfreie Stadt"},
			{"", "09999", "Nirgendwo"},
		})

	require.Len(t, ds.Entities, 2)
	assert.True(t, ds.HasColumn("id"))
	assert.Equal(t, "DE212", ds.Entities[0].ID)
	assert.Equal(t, "09999", ds.Entities[1].ID)
	assert.Equal(t, FamilyNUTS, ds.Family)
	assert.Equal(t, 2021, ds.Vintage)

	e, ok := ds.Lookup("09999")
	require.True(t, ok)
	assert.Equal(t, "Nirgendwo", e.Name)
}

func TestNewDatasetKeepsLAUWithoutID(t *testing.T) {
	ds := NewDataset("csv/LAU/2021/lau.csv", []string{"code", "name"}, [][]string{{"1", "A"}})
	assert.False(t, ds.HasColumn("id"))
	assert.Equal(t, "", ds.Entities[0].ID)
}

func TestTableValue(t *testing.T) {
	tbl := newTable([]string{"id", "name"}, []string{"1", "Berlin"}, []string{"2"})

	v, ok := tbl.Value(tbl.Rows[0], "name")
	assert.True(t, ok)
	assert.Equal(t, "Berlin", v)

	_, ok = tbl.Value(tbl.Rows[1], "name")
	assert.False(t, ok, "short row")

	_, ok = tbl.Value(tbl.Rows[0], "missing")
	assert.False(t, ok)

	row, ok := tbl.Row(1)
	require.True(t, ok)
	assert.Equal(t, 1, row.Index)
}
