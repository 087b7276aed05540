// Package numeral parses numerals written in an unknown locale convention,
// where "," and "." may each be either a decimal or a thousands separator.
package numeral

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalid is returned when the input is not a numeral at all
	ErrInvalid = errors.New("invalid numeral")
	// ErrAmbiguous is returned when the separators cannot be resolved under the given rules
	ErrAmbiguous = errors.New("ambiguous numeral")
)

// Error carries the rejected input alongside the reason
type Error struct {
	Raw string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("numeral %q: %v", e.Raw, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Separator says what a comma means in a given situation
type Separator int

const (
	CommaDecimal   Separator = iota // "5,25" is five and a quarter
	CommaThousands                  // "64,230" is sixty-four thousand
)

func (s Separator) String() string {
	switch s {
	case CommaDecimal:
		return "comma-decimal"
	case CommaThousands:
		return "comma-thousands"
	default:
		return "unknown"
	}
}

// ParseSeparator accepts the names produced by Separator.String
func ParseSeparator(name string) (Separator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "comma-decimal":
		return CommaDecimal, nil
	case "comma-thousands":
		return CommaThousands, nil
	}
	return 0, fmt.Errorf("unknown separator rule %q (want comma-decimal or comma-thousands)", name)
}

// Rules select the comma interpretation for the two ambiguous shapes
type Rules struct {
	CommaOnly Separator // numerals containing commas but no dot
	Mixed     Separator // numerals containing both commas and dots
}

// DefaultRules match what a model asked for English-formatted prices tends to emit:
// a lone comma is a decimal slip ("5,25"), a comma next to a dot groups thousands.
var DefaultRules = Rules{
	CommaOnly: CommaDecimal,
	Mixed:     CommaThousands,
}

// Parse converts raw into a finite, non-negative float64 under rules.
// Only digits, "." and "," are accepted; trailing separators are treated as
// sentence punctuation and dropped.
func Parse(raw string, rules Rules) (float64, error) {
	s := strings.TrimRight(strings.TrimSpace(raw), ".,")
	if s == "" || strings.IndexFunc(s, notNumeralRune) >= 0 {
		return 0, &Error{Raw: raw, Err: ErrInvalid}
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	var err error
	switch {
	case commas > 0 && dots == 0:
		s, err = resolveCommaOnly(s, commas, rules.CommaOnly)
	case commas > 0 && dots > 0:
		s, err = resolveMixed(s, commas, rules.Mixed)
	}
	if err != nil {
		return 0, &Error{Raw: raw, Err: err}
	}

	v, perr := strconv.ParseFloat(s, 64)
	if perr != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &Error{Raw: raw, Err: ErrInvalid}
	}
	return v, nil
}

func resolveCommaOnly(s string, commas int, sep Separator) (string, error) {
	if commas == 1 && sep == CommaDecimal {
		return strings.Replace(s, ",", ".", 1), nil
	}
	// More than one comma can only be grouping, and grouping must look like grouping.
	if validGroups(s, ',') {
		return strings.ReplaceAll(s, ",", ""), nil
	}
	return "", ErrAmbiguous
}

func resolveMixed(s string, commas int, sep Separator) (string, error) {
	if sep == CommaThousands {
		return strings.ReplaceAll(s, ",", ""), nil
	}
	// pt-BR style: dots group, a single comma is the decimal point
	if commas > 1 {
		return "", ErrAmbiguous
	}
	if strings.LastIndexByte(s, '.') > strings.IndexByte(s, ',') {
		return "", ErrAmbiguous
	}
	return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1), nil
}

// validGroups reports whether s splits on sep into a 1-3 digit head followed by 3 digit groups
func validGroups(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 {
		return false
	}
	if n := len(parts[0]); n < 1 || n > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func notNumeralRune(r rune) bool {
	return !(r >= '0' && r <= '9') && r != '.' && r != ','
}
