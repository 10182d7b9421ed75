package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unknown marks a field whose source cell lacked the expected structure.
const Unknown = "unknown"

// isMissing reports whether the site records the value as absent.
func isMissing(s string) bool {
	return s == "" || s == "-" || s == "?" || s == Unknown
}

// ParseCurrency converts a currency string such as "€1.50m" or "€500k" into
// a numeric value. A missing marker returns nil. The function is pure: same
// input, same output, no state.
func ParseCurrency(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return nil, nil
	}

	// Drop the leading currency symbol, if any.
	if r, size := utf8.DecodeRuneInString(s); !unicode.IsDigit(r) && r != '.' {
		s = s[size:]
	}

	// Split into the numeric run and a trailing multiplier suffix.
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return nil, fmt.Errorf("no numeric amount in %q", s)
	}
	amount, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s[:end], err)
	}

	switch suffix := strings.TrimSpace(s[end:]); suffix {
	case "":
		// e.g. "€1000" carries no multiplier.
	case "m":
		amount *= 1_000_000
	case "k":
		amount *= 1_000
	default:
		return nil, &UnknownSuffixError{Suffix: suffix, Input: s}
	}
	return &amount, nil
}

// ParseFee converts a free-text fee description into a numeric fee and an
// inferred loan flag. A fee is never negative and never absent: anything
// the text does not state normalizes to 0.
func ParseFee(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch {
	case isMissing(s):
		return 0, false, nil
	case s == "free transfer":
		return 0, false, nil
	case s == "loan transfer", strings.HasPrefix(s, "End of loan"):
		return 0, true, nil
	case strings.HasPrefix(s, "Loan fee"):
		_, rest, _ := strings.Cut(s, ":")
		value, err := ParseCurrency(strings.TrimSpace(rest))
		if err != nil {
			return 0, true, fmt.Errorf("loan fee: %w", err)
		}
		if value == nil {
			return 0, true, nil
		}
		return *value, true, nil
	default:
		value, err := ParseCurrency(s)
		if err != nil {
			return 0, false, err
		}
		if value == nil {
			return 0, false, nil
		}
		return *value, false, nil
	}
}
