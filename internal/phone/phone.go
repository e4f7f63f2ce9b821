// Package phone normalizes Brazilian phone numbers to their digit-only form.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidLength is returned when the digit count after stripping is not a
// local number (10 digits) or a mobile number with the ninth digit (11).
var ErrInvalidLength = errors.New("phone must have 10 or 11 digits")

// Normalize strips every non-digit character and validates the length.
// Normalizing an already-normalized number returns it unchanged.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 || len(digits) > 11 {
		return "", ErrInvalidLength
	}
	return digits, nil
}
