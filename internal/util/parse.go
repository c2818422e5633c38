package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var priceRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)

// ParsePriceCents extracts the first price-looking number from s and returns
// it in cents. Currency symbols, thousands separators and surrounding text
// are tolerated ("$1,299.99" -> 129999).
func ParsePriceCents(s string) (int64, error) {
	match := priceRegex.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("no price found in %q", s)
	}
	match = strings.ReplaceAll(match, ",", "")
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q: %w", match, err)
	}
	return int64(f*100 + 0.5), nil
}

// SafeAtoi parses s as an int, returning 0 on any failure.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// FormatCents renders a cent amount as a dollar string without the symbol.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
