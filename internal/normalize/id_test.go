package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		strip  bool
		want   string
		wantOK bool
	}{
		{name: "nil", value: nil, wantOK: false},
		{name: "nan", value: math.NaN(), wantOK: false},
		{name: "empty string", value: "", wantOK: false},
		{name: "int", value: 1, want: "1", wantOK: true},
		{name: "int64", value: int64(42), want: "42", wantOK: true},
		{name: "integral float", value: 1.0, want: "1", wantOK: true},
		{name: "large integral float", value: 1e21, want: "1000000000000000000000", wantOK: true},
		{name: "fractional float", value: 1.5, want: "1.5", wantOK: true},
		{name: "fractional float keeps shortest exact digits", value: 0.1 + 0.2, want: "0.30000000000000004", wantOK: true},
		{name: "leading zeros kept", value: "0012", want: "0012", wantOK: true},
		{name: "leading zeros stripped", value: "0012", strip: true, want: "12", wantOK: true},
		{name: "all zeros degrade to single zero", value: "0000", strip: true, want: "0", wantOK: true},
		{name: "nuts code untouched", value: "DE212", strip: true, want: "DE212", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ID(tt.value, tt.strip)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripLeadingZeros(t *testing.T) {
	assert.Equal(t, "", StripLeadingZeros(""))
	assert.Equal(t, "0", StripLeadingZeros("0"))
	assert.Equal(t, "7", StripLeadingZeros("007"))
	assert.Equal(t, "100", StripLeadingZeros("0100"))
}
