package filter

import (
	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/search"
)

// Terminator frames packages ending with a mark. The resolver receives the
// package including the mark.
type Terminator[P any] struct {
	Base[P]
	search  *search.State
	resolve Resolver[P]
}

// NewTerminator creates a filter splitting on mark
func NewTerminator[P any](mark []byte, resolve Resolver[P]) (*Terminator[P], error) {
	st, err := search.NewState(mark)
	if err != nil {
		return nil, err
	}

	return &Terminator[P]{search: st, resolve: resolve}, nil
}

// MarkLen returns the length of the terminator
func (f *Terminator[P]) MarkLen() int {
	return len(f.search.Mark())
}

// Filter searches the newest chunk for the terminator
func (f *Terminator[P]) Filter(data *buffer.List) (P, bool, int) {
	var zero P

	last := data.Last()
	pos, parsed := data.SearchMark(f.search)
	if pos < 0 {
		return zero, false, 0
	}

	data.SetLastLength(parsed)
	pkg, ok := f.resolve(data)
	return pkg, ok, last.Length - parsed
}

// Reset drops any partial terminator match
func (f *Terminator[P]) Reset() {
	f.search.Reset()
	f.ResetBase()
}
