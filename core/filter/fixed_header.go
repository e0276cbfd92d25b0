package filter

import (
	"fmt"

	"github.com/searchktools/fast-socket/core/buffer"
)

// BodyLengthFunc returns the body length announced by a header, or a negative
// value when the header is invalid
type BodyLengthFunc func(header []byte) int

// FixedHeader frames packages made of a fixed-size header announcing the body length
type FixedHeader[P any] struct {
	FixedSize[P]
	headerSize   int
	header       []byte
	bodyLength   BodyLengthFunc
	headerParsed bool
}

// NewFixedHeader creates a filter for headerSize byte headers. The resolver
// receives header and body together.
func NewFixedHeader[P any](headerSize int, bodyLength BodyLengthFunc, resolve Resolver[P]) *FixedHeader[P] {
	f := &FixedHeader[P]{
		headerSize: headerSize,
		header:     make([]byte, headerSize),
		bodyLength: bodyLength,
	}
	f.original = headerSize
	f.size = headerSize
	f.resolve = resolve
	f.CanResolve = f.canResolve
	return f
}

// HeaderSize returns the header size
func (f *FixedHeader[P]) HeaderSize() int {
	return f.headerSize
}

func (f *FixedHeader[P]) canResolve(data *buffer.List) bool {
	if f.headerParsed {
		return true
	}

	data.CopyTo(f.header, 0)
	n := f.bodyLength(f.header)
	if n < 0 {
		f.SetError(fmt.Errorf("%w: negative body length %d", ErrInvalidData, n))
		return false
	}

	f.headerParsed = true
	if n == 0 {
		return true
	}

	f.ResetSize(f.headerSize + n)
	return false
}

// Reset prepares the filter for the next header
func (f *FixedHeader[P]) Reset() {
	f.headerParsed = false
	f.FixedSize.Reset()
}
