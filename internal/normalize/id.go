package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID renders an identifier-like value as a canonical string. The second
// return value is false when the value is nil, NaN or renders empty.
//
// Integral numbers render as plain digits (1.0 -> "1"). Non-integral floats
// use the shortest exact decimal form without exponent (1.5 -> "1.5").
// With stripLeadingZeros, leading '0' characters are removed and an
// all-zero value degrades to "0".
func ID(value any, stripLeadingZeros bool) (string, bool) {
	text, ok := render(value)
	if !ok || text == "" {
		return "", false
	}
	if stripLeadingZeros {
		text = StripLeadingZeros(text)
	}
	return text, true
}

// StripLeadingZeros removes leading '0' characters, keeping a single "0"
// for all-zero input.
func StripLeadingZeros(text string) string {
	if text == "" {
		return text
	}
	trimmed := strings.TrimLeft(text, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func render(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case int:
		return strconv.Itoa(v), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), true
	case float32:
		return renderFloat(float64(v))
	case float64:
		return renderFloat(v)
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func renderFloat(f float64) (string, bool) {
	if math.IsNaN(f) {
		return "", false
	}
	if !math.IsInf(f, 0) && f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
