package sequenced

import "errors"

var (
	// ErrPositionTaken reports that (sequence, position) is already assigned.
	// Expected under concurrent writers; callers retry with a fresh position.
	ErrPositionTaken = errors.New("sequenced: position already taken")

	// ErrInvalidPosition reports a negative or malformed position. Programmer
	// error; not retried.
	ErrInvalidPosition = errors.New("sequenced: invalid position")

	// ErrPayloadTooLarge reports an item whose data exceeds the configured
	// bound.
	ErrPayloadTooLarge = errors.New("sequenced: payload too large")
)
