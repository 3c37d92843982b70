package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/geo-mapper/internal/match"
)

var reNUTSLevel = regexp.MustCompile(`(?i)^nuts[\s_-]*([0-3])?$`)

// ParseLevel splits a geodata level such as "LAU", "NUTS 3" or "nuts_2" into
// a dataset family and NUTS level. Empty and "unknown" select everything.
func ParseLevel(level string) (match.Family, string, error) {
	level = strings.TrimSpace(level)
	if level == "" || strings.EqualFold(level, "unknown") {
		return match.FamilyUnknown, "", nil
	}
	if strings.EqualFold(level, "lau") {
		return match.FamilyLAU, "", nil
	}
	if m := reNUTSLevel.FindStringSubmatch(level); m != nil {
		return match.FamilyNUTS, m[1], nil
	}
	if len(level) == 1 && level[0] >= '0' && level[0] <= '3' {
		return match.FamilyNUTS, level, nil
	}
	return match.FamilyUnknown, "", fmt.Errorf("unknown geodata level %q", level)
}

// FormatLevel is the inverse of ParseLevel.
func FormatLevel(family match.Family, nutsLevel string) string {
	switch family {
	case match.FamilyLAU:
		return "LAU"
	case match.FamilyNUTS:
		if nutsLevel == "" {
			return "NUTS"
		}
		return "NUTS " + nutsLevel
	default:
		return "unknown"
	}
}
