package catalog

import (
	"strconv"
	"strings"

	"github.com/labtrack/lims/internal/domain/entities"
)

// Classify flags a result value against its reference range.
// Tests without a range, known-normal qualitative results and values that do not parse
// as numbers are all reported normal; only numeric values can be high or low.
func Classify(c Catalog, value, testName, section string) entities.Flag {
	r, ok := c.Range(section, testName)
	if !ok {
		return entities.FlagNormal
	}

	trimmed := strings.TrimSpace(value)
	if isKnownNormalText(trimmed) {
		return entities.FlagNormal
	}

	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return entities.FlagNormal
	}

	if r.Min != nil && n < *r.Min {
		return entities.FlagLow
	}
	if r.Max != nil && n > *r.Max {
		return entities.FlagHigh
	}
	return entities.FlagNormal
}

func isKnownNormalText(value string) bool {
	if value == "Compatible" {
		return true
	}
	switch strings.ToLower(value) {
	case "negative", "no growth":
		return true
	}
	return false
}
