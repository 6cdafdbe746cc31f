// Package uiid normalizes Android resource identifiers to the canonical
// eight-digit lowercase hex form used as graph keys.
package uiid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a string cannot be read as a resource id.
var ErrInvalid = errors.New("invalid resource id")

// FromInt formats a literal resource id. Negative values are taken as their
// 32-bit two's complement, the way the VM stores them.
func FromInt(v int64) string {
	return fmt.Sprintf("%08x", uint32(v))
}

// Parse reads a resource id written as "@7f0a0001", "0x7f0a0001", a decimal
// literal, or bare hex, and returns its canonical form. A digit-only string is
// always decimal, as in node.csv and the event mapping.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalid
	}
	base := 16
	switch {
	case strings.HasPrefix(s, "@"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	case isDecimal(s):
		base = 10
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return fmt.Sprintf("%08x", uint32(v)), nil
}

// Canonical is Parse with a fast path for ids already in canonical form.
// Digit-only canonical ids such as "01040000" are kept as hex rather than
// read as decimal; use it for ids produced by FromInt.
func Canonical(s string) (string, error) {
	if IsCanonical(s) {
		return s, nil
	}
	return Parse(s)
}

// Equal reports whether two ids name the same resource.
func Equal(a, b string) bool {
	ca, errA := Canonical(a)
	cb, errB := Canonical(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return ca == cb
}

// Decimal renders a canonical id as its unsigned decimal value.
func Decimal(id string) string {
	v, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return id
	}
	return strconv.FormatUint(v, 10)
}

// TextKey keys a hardcoded-string record by control and layout.
func TextKey(uid, layout string) string {
	return uid + "@" + layout
}

// ScopeKey keys switch and thread side-table entries by control and layout.
func ScopeKey(uid, layout string) string {
	return uid + "$" + layout
}

// IsCanonical reports whether s is already in canonical form.
func IsCanonical(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
