package exchange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedMessage marks an inbound frame that was skipped.
var ErrMalformedMessage = errors.New("malformed feed message")

// ParseNumber parses a vendor decimal string. Negative values are rejected
// because prices and volumes are never negative.
func ParseNumber(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s=%q: %v", ErrMalformedMessage, field, s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: field %s=%q is negative", ErrMalformedMessage, field, s)
	}
	return v, nil
}

// ParseSigned is ParseNumber for fields that may be negative, like a change.
func ParseSigned(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s=%q: %v", ErrMalformedMessage, field, s, err)
	}
	return v, nil
}
