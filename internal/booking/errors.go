// Package booking implements slot allocation against the single-chair
// calendar: validated creation, partial edits and cancellation.
package booking

import "errors"

var (
	// ErrInvalidInput is returned when a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPhone is returned when the phone has fewer than 10 or more
	// than 11 digits after normalization.
	ErrInvalidPhone = errors.New("invalid phone")

	// ErrSlotTaken is returned when another appointment already occupies the
	// requested time slot.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrNotFound is returned when the appointment id does not resolve.
	ErrNotFound = errors.New("appointment not found")
)
