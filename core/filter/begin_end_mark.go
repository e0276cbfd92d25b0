package filter

import (
	"errors"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/search"
)

var ErrMissingBeginMark = errors.New("filter: data does not start with the begin mark")

// BeginEndMark frames packages enclosed by a begin and an end mark. The
// stream must start with the begin mark: leading garbage is an error.
type BeginEndMark[P any] struct {
	Base[P]
	begin      *search.State
	end        *search.State
	foundBegin bool
	resolve    Resolver[P]
}

// NewBeginEndMark creates a filter for packages framed by begin and end
func NewBeginEndMark[P any](begin, end []byte, resolve Resolver[P]) (*BeginEndMark[P], error) {
	b, err := search.NewState(begin)
	if err != nil {
		return nil, err
	}

	e, err := search.NewState(end)
	if err != nil {
		return nil, err
	}

	return &BeginEndMark[P]{begin: b, end: e, resolve: resolve}, nil
}

// ChangeBeginMark replaces the begin mark
func (f *BeginEndMark[P]) ChangeBeginMark(mark []byte) error {
	return f.begin.Change(mark)
}

// ChangeEndMark replaces the end mark
func (f *BeginEndMark[P]) ChangeEndMark(mark []byte) error {
	return f.end.Change(mark)
}

// Filter looks for the begin mark at the start of the package, then for the end mark
func (f *BeginEndMark[P]) Filter(data *buffer.List) (P, bool, int) {
	var zero P

	last := data.Last()
	offset, length := last.Offset, last.Length
	searchOffset, searchLength := offset, length
	parsedTotal := 0

	if !f.foundBegin {
		pos, parsed := f.begin.Search(last.Data, offset, length)
		if pos < 0 {
			// only a prefix of the begin mark so far
			if matched := f.begin.Matched(); matched > 0 && data.Total() == matched {
				return zero, false, 0
			}

			f.SetError(ErrMissingBeginMark)
			return zero, false, 0
		}

		if pos != offset {
			f.SetError(ErrMissingBeginMark)
			return zero, false, 0
		}

		f.foundBegin = true
		parsedTotal = parsed
		searchOffset += parsed
		searchLength -= parsed
		if searchLength <= 0 {
			return zero, false, 0
		}
	}

	pos, parsed := f.end.Search(last.Data, searchOffset, searchLength)
	if pos < 0 {
		return zero, false, 0
	}

	parsedTotal += parsed
	rest := length - parsedTotal
	data.SetLastLength(parsedTotal)

	pkg, ok := f.resolve(data)
	if ok {
		f.foundBegin = false
		f.begin.Reset()
		f.end.Reset()
	}
	return pkg, ok, rest
}

// Reset forgets any begin mark seen
func (f *BeginEndMark[P]) Reset() {
	f.foundBegin = false
	f.begin.Reset()
	f.end.Reset()
	f.ResetBase()
}
