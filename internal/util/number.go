package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber reads a number typed as text, tolerating a decimal comma
// and a leading "+". Blank text and a lone dash (the usual "no attempt"
// mark) yield NaN. Thousands separators are not accepted: no weight or
// bodyweight reaches four digits, and "104.500" must stay 104.5.
func ParseNumber(input string) (float64, bool) {
	compact := strings.ReplaceAll(NormalizeSpaces(input), " ", "")
	switch compact {
	case "", "-", "–", "—":
		return math.NaN(), true
	}
	compact = strings.TrimPrefix(compact, "+")
	if strings.Count(compact, ",") == 1 && !strings.Contains(compact, ".") {
		compact = strings.ReplaceAll(compact, ",", ".")
	}
	parsed, err := strconv.ParseFloat(compact, 64)
	if err != nil || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

// IsWholeNumber reports whether v is finite and has no fractional part.
func IsWholeNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
}
