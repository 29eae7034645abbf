// Package phone canonicalizes phone numbers into an E.164-like form that is
// used as the only basis for number equality across the service.
package phone

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DomesticPrefix is prepended to ten digit national numbers.
const DomesticPrefix = "+1"

var ErrInvalidNumber = errors.New("invalid phone number")

// Normalize returns the canonical form of raw: a leading "+", the country code
// and the subscriber digits, with every formatting character removed.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	digits := make([]byte, 0, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		if c := trimmed[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}

	switch {
	case len(digits) == 10 && !strings.HasPrefix(trimmed, "+"):
		return DomesticPrefix + string(digits), nil
	case len(digits) == 11 && digits[0] == '1':
		return "+" + string(digits), nil
	case strings.HasPrefix(trimmed, "+") && len(digits) >= 8 && len(digits) <= 15 && digits[0] != '0':
		return "+" + string(digits), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
}

// Set normalizes every number, drops duplicates and sorts the result.
// One invalid member fails the whole set.
func Set(raws ...string) ([]string, error) {
	seen := make(map[string]struct{}, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		n, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Equal reports whether a and b denote the same number.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
