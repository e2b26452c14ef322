// Package identifier validates the bounded name token shared by user and
// room names: 1 to 20 bytes, no space, tab, carriage return, or line feed.
package identifier

import "errors"

const MaxLength = 20

var (
	ErrEmpty      = errors.New("identifier: empty")
	ErrTooLong    = errors.New("identifier: too long")
	ErrWhitespace = errors.New("identifier: contains whitespace")
)

// Validate reports whether b is a well-formed Identifier.
func Validate(b []byte) error {
	if len(b) == 0 {
		return ErrEmpty
	}
	if len(b) > MaxLength {
		return ErrTooLong
	}
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			return ErrWhitespace
		}
	}
	return nil
}

// Valid is a boolean convenience wrapper around Validate.
func Valid(b []byte) bool {
	return Validate(b) == nil
}
