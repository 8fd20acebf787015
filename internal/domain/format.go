package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatCurrency renders a USD amount with grouping. Sub-dollar amounts get
// more fraction digits: up to 4 below 1, up to 8 below 0.01.
func FormatCurrency(v float64) string {
	maxDigits := 2
	switch {
	case v > 0 && v < 0.01:
		maxDigits = 8
	case v > 0 && v < 1:
		maxDigits = 4
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	s := strconv.FormatFloat(v, 'f', maxDigits, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	for len(frac) > 2 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}

	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		// beyond int64, skip grouping
		return sign + "$" + intPart + "." + frac
	}
	return sign + "$" + humanize.Comma(n) + "." + frac
}

// FormatLargeNumber abbreviates with K/M/B/T suffixes.
func FormatLargeNumber(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.2fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// FormatPercentage always carries a sign for non-negative values.
func FormatPercentage(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
