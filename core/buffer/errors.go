package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned by reads past the end of the readable data
	ErrOutOfRange = errors.New("buffer: out of range")
	// ErrIncompleteText is returned when a decoded range ends inside a character
	ErrIncompleteText = errors.New("buffer: range ends inside a character")
)

// RangeError describes an offset/length pair outside of the buffer.
// List operations panic with it, the same way slice indexing does.
type RangeError struct {
	Op     string
	Offset int
	Length int
	Total  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("buffer: %s out of range: offset %d, length %d, total %d", e.Op, e.Offset, e.Length, e.Total)
}
