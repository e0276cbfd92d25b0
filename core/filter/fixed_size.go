package filter

import (
	"github.com/searchktools/fast-socket/core/buffer"
)

// FixedSize frames packages of a known size
type FixedSize[P any] struct {
	Base[P]
	original int
	size     int
	resolve  Resolver[P]

	// CanResolve, when set, is consulted once size bytes are available. Returning
	// false (usually after ResetSize) makes the filter wait for more data.
	CanResolve func(data *buffer.List) bool
}

// NewFixedSize creates a filter for packages of size bytes
func NewFixedSize[P any](size int, resolve Resolver[P]) *FixedSize[P] {
	return &FixedSize[P]{
		original: size,
		size:     size,
		resolve:  resolve,
	}
}

// Size returns the current package size
func (f *FixedSize[P]) Size() int {
	return f.size
}

// ResetSize changes the size of the package being framed
func (f *FixedSize[P]) ResetSize(size int) {
	f.size = size
}

// Filter resolves a package once Size bytes are available
func (f *FixedSize[P]) Filter(data *buffer.List) (P, bool, int) {
	var zero P

	total := data.Total()
	if total < f.size {
		return zero, false, 0
	}

	rest := 0
	if total > f.size {
		rest = total - f.size
		data.SetLastLength(data.Last().Length - rest)
	}

	if f.CanResolve != nil && !f.CanResolve(data) {
		return zero, false, rest
	}

	pkg, ok := f.resolve(data)
	return pkg, ok, rest
}

// Reset restores the original size
func (f *FixedSize[P]) Reset() {
	f.size = f.original
	f.ResetBase()
}
