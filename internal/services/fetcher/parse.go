package fetcher

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrPriceNotFound = errors.New("price not found on page")
	ErrBadPrice      = errors.New("unparseable price")

	nonNumeric = regexp.MustCompile(`[^0-9.,]`)
)

// ParsePrice reads a retail price string in either "1,234.56" or "1.234,56" style.
func ParsePrice(s string) (float64, error) {
	clean := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	clean = strings.Trim(clean, ".,")
	if clean == "" {
		return 0, ErrBadPrice
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		clean = decimalOrGroup(clean, ",")
	case lastDot >= 0:
		clean = decimalOrGroup(clean, ".")
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, ErrBadPrice
	}
	return v, nil
}

// decimalOrGroup treats a lone separator followed by one or two digits as the
// decimal point and anything else as digit grouping.
func decimalOrGroup(s, sep string) string {
	if strings.Count(s, sep) == 1 {
		if frac := len(s) - strings.Index(s, sep) - 1; frac > 0 && frac <= 2 {
			return strings.Replace(s, sep, ".", 1)
		}
	}
	return strings.ReplaceAll(s, sep, "")
}
