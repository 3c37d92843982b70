package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankDatasets(t *testing.T) {
	input := namesInput("Hamburg", "Bremen", "Köln")
	result := resolveNames(t, input,
		dataset("geo/LAU/2021/a.csv", "1", "Hamburg", "2", "Kiel", "3", "Lübeck", "4", "Husum"),
		dataset("geo/LAU/2022/b.csv", "1", "Hamburg", "2", "Bremen"),
		dataset("geo/LAU/2023/c.csv", "1", "Dresden"),
		dataset("geo/LAU/2024/d.csv", "1", "Hamburg"),
	)

	ranked := RankDatasets(result)
	var names []string
	for _, dr := range ranked {
		names = append(names, dr.Dataset.Source)
	}
	assert.Equal(t, []string{"geo/LAU/2022/b.csv", "geo/LAU/2024/d.csv", "geo/LAU/2021/a.csv"}, names)
}

func TestRankDatasetsKeepsOrderOnTies(t *testing.T) {
	input := namesInput("Hamburg")
	result := resolveNames(t, input,
		dataset("geo/LAU/2021/x.csv", "1", "Hamburg"),
		dataset("geo/LAU/2022/y.csv", "9", "Hamburg"),
	)

	ranked := RankDatasets(result)
	require.Len(t, ranked, 2)
	assert.Equal(t, "geo/LAU/2021/x.csv", ranked[0].Dataset.Source)
	assert.Equal(t, "geo/LAU/2022/y.csv", ranked[1].Dataset.Source)
}

func TestSelectExportSource(t *testing.T) {
	input := namesInput("Hamburg", "Bremen")
	result := resolveNames(t, input,
		dataset("geo/LAU/2021/a.csv", "1", "Hamburg"),
		dataset("geo/LAU/2022/b.csv", "1", "Hamburg", "2", "Bremen"),
		dataset("geo/NUTS_3/2022/b.csv", "DE1", "Bremen"),
	)

	tests := []struct {
		name    string
		source  string
		auto    bool
		want    string
		wantErr bool
	}{
		{name: "auto picks best", auto: true, want: "geo/LAU/2022/b.csv"},
		{name: "no auto no source", auto: false, want: ""},
		{name: "full path wins over auto", source: "geo/LAU/2021/a.csv", auto: true, want: "geo/LAU/2021/a.csv"},
		{name: "unique base name", source: "a.csv", want: "geo/LAU/2021/a.csv"},
		{name: "ambiguous base name", source: "b.csv", wantErr: true},
		{name: "unknown source", source: "missing.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dr, err := SelectExportSource(result, tt.source, tt.auto)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, dr)
				return
			}
			require.NotNil(t, dr)
			assert.Equal(t, tt.want, dr.Dataset.Source)
		})
	}
}

func TestSelectExportSourceNothingMatched(t *testing.T) {
	result := resolveNames(t, namesInput("Atlantis"), dataset("geo/LAU/2021/a.csv", "1", "Hamburg"))

	dr, err := SelectExportSource(result, "", true)
	require.NoError(t, err)
	assert.Nil(t, dr)
}
