package filter

import (
	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/search"
)

// CountSpliter frames packages made of a fixed number of separators, such as
// "#part1#part2#part3#" with a count of 4
type CountSpliter[P any] struct {
	Base[P]
	search  *search.State
	count   int
	found   int
	resolve Resolver[P]
}

// NewCountSpliter creates a filter completing a package at the count-th separator
func NewCountSpliter[P any](separator []byte, count int, resolve Resolver[P]) (*CountSpliter[P], error) {
	st, err := search.NewState(separator)
	if err != nil {
		return nil, err
	}

	return &CountSpliter[P]{search: st, count: count, resolve: resolve}, nil
}

// Filter counts separators in the newest chunk
func (f *CountSpliter[P]) Filter(data *buffer.List) (P, bool, int) {
	var zero P

	last := data.Last()
	offset, length := last.Offset, last.Length

	for f.found < f.count {
		pos, parsed := f.search.Search(last.Data, offset, length)
		if pos < 0 {
			return zero, false, 0
		}

		f.found++
		offset += parsed
		length -= parsed
	}

	data.SetLastLength(offset - last.Offset)
	f.found = 0
	f.search.Reset()

	pkg, ok := f.resolve(data)
	return pkg, ok, length
}

// Reset clears the separator count
func (f *CountSpliter[P]) Reset() {
	f.found = 0
	f.search.Reset()
	f.ResetBase()
}
