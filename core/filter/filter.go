// Package filter contains the receive filters: incremental framers that turn
// the bytes accumulated in a buffer.List into packages.
//
// A filter is called after every received chunk with the list of chunks not
// yet consumed. It either resolves a package from the start of the list, or
// asks for more data. Bytes of the last chunk that belong to the next package
// are reported as rest; the caller feeds them back as a new chunk.
package filter

import (
	"errors"

	"github.com/searchktools/fast-socket/core/buffer"
)

// State of a filter
type State int

const (
	StateNormal State = iota
	StateError
)

var ErrInvalidData = errors.New("filter: invalid data")

// ReceiveFilter frames packages of type P
type ReceiveFilter[P any] interface {
	// Filter inspects data and returns a package when one is complete. rest is
	// the number of trailing bytes of the last chunk not part of the package.
	Filter(data *buffer.List) (pkg P, ok bool, rest int)
	// Reset prepares the filter for the next package
	Reset()
	// State reports whether the filter hit unrecoverable input
	State() State
	// Next returns the filter that should handle the following bytes, or nil
	Next() ReceiveFilter[P]
}

// Resolver builds a package from the framed bytes
type Resolver[P any] func(data *buffer.List) (P, bool)

// Base holds the state and chaining shared by all filters
type Base[P any] struct {
	state State
	err   error
	next  ReceiveFilter[P]
}

// State returns the filter state
func (b *Base[P]) State() State {
	return b.state
}

// Err returns the reason of the error state
func (b *Base[P]) Err() error {
	return b.err
}

// Next returns the chained filter
func (b *Base[P]) Next() ReceiveFilter[P] {
	return b.next
}

// SetNext chains f after the current package
func (b *Base[P]) SetNext(f ReceiveFilter[P]) {
	b.next = f
}

// SetError moves the filter to the error state
func (b *Base[P]) SetError(err error) {
	if err == nil {
		err = ErrInvalidData
	}
	b.state = StateError
	b.err = err
}

// ResetBase clears state, error and chaining
func (b *Base[P]) ResetBase() {
	b.state = StateNormal
	b.err = nil
	b.next = nil
}
