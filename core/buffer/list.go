// Package buffer provides the zero-copy data structures of the receive path:
// reference-counted byte regions (State), views over them (Chunk), an ordered
// list of views addressed as one logical byte sequence (List) and read cursors
// over such a sequence (Reader, Stream).
package buffer

import (
	"sort"

	"golang.org/x/text/encoding"

	"github.com/searchktools/fast-socket/core/search"
)

// List is an ordered sequence of chunks addressed as one contiguous byte range.
// Adding a chunk retains its state, clearing the list releases it.
type List struct {
	chunks []Chunk
	ends   []int // ends[i] is the logical offset just past chunk i
	total  int
}

// NewList creates an empty list
func NewList() *List {
	return &List{
		chunks: make([]Chunk, 0, 4),
		ends:   make([]int, 0, 4),
	}
}

// Add appends a chunk
func (l *List) Add(c Chunk) {
	if c.State != nil {
		c.State.Retain()
	}

	l.chunks = append(l.chunks, c)
	l.total += c.Length
	l.ends = append(l.ends, l.total)
}

// AddSegment appends data[offset:offset+length] owned by state
func (l *List) AddSegment(data []byte, offset, length int, state *State) {
	l.Add(Chunk{Data: data, Offset: offset, Length: length, State: state})
}

// SetLastLength shrinks the last chunk to n bytes
func (l *List) SetLastLength(n int) {
	last := len(l.chunks) - 1
	if last < 0 {
		panic(&RangeError{Op: "set last length", Length: n})
	}

	c := &l.chunks[last]
	if n < 0 || n > c.Length {
		panic(&RangeError{Op: "set last length", Length: n, Total: c.Length})
	}

	l.total -= c.Length - n
	c.Length = n
	l.ends[last] = l.total
}

// Clear removes all chunks and releases their states
func (l *List) Clear() {
	for i := range l.chunks {
		if s := l.chunks[i].State; s != nil {
			s.Release()
		}
		l.chunks[i] = Chunk{}
	}

	l.chunks = l.chunks[:0]
	l.ends = l.ends[:0]
	l.total = 0
}

// Total returns the number of bytes across all chunks
func (l *List) Total() int {
	return l.total
}

// Count returns the number of chunks
func (l *List) Count() int {
	return len(l.chunks)
}

// At returns chunk i
func (l *List) At(i int) Chunk {
	return l.chunks[i]
}

// Last returns the last chunk, or the zero chunk when the list is empty
func (l *List) Last() Chunk {
	if len(l.chunks) == 0 {
		return Chunk{}
	}
	return l.chunks[len(l.chunks)-1]
}

// Chunks returns the chunks. The slice is owned by the list.
func (l *List) Chunks() []Chunk {
	return l.chunks
}

// Locate maps a logical offset to (chunk index, offset inside that chunk's view).
// An offset equal to Total maps to the end of the last chunk.
func (l *List) Locate(offset int) (index, inner int) {
	if offset < 0 || offset > l.total || len(l.chunks) == 0 {
		panic(&RangeError{Op: "locate", Offset: offset, Total: l.total})
	}

	if offset == l.total {
		last := len(l.chunks) - 1
		return last, l.chunks[last].Length
	}

	index = sort.Search(len(l.ends), func(i int) bool { return l.ends[i] > offset })
	return index, offset - (l.ends[index] - l.chunks[index].Length)
}

func (l *List) checkRange(op string, offset, length int) {
	if offset < 0 || length < 0 || offset+length > l.total {
		panic(&RangeError{Op: op, Offset: offset, Length: length, Total: l.total})
	}
}

// each calls fn for every chunk piece covering [offset, offset+length)
func (l *List) each(offset, length int, fn func(c Chunk, from, n int)) {
	if length == 0 {
		return
	}

	index, inner := l.Locate(offset)
	for length > 0 {
		c := l.chunks[index]
		n := c.Length - inner
		if n > length {
			n = length
		}

		if n > 0 {
			fn(c, c.Offset+inner, n)
			length -= n
		}

		index++
		inner = 0
	}
}

// ToBytes copies [offset, offset+length) into a new slice
func (l *List) ToBytes(offset, length int) []byte {
	l.checkRange("to bytes", offset, length)

	out := make([]byte, length)
	pos := 0
	l.each(offset, length, func(c Chunk, from, n int) {
		pos += copy(out[pos:], c.Data[from:from+n])
	})
	return out
}

// CopyTo fills dst with the bytes starting at srcOffset and returns the number copied
func (l *List) CopyTo(dst []byte, srcOffset int) int {
	l.checkRange("copy", srcOffset, len(dst))

	pos := 0
	l.each(srcOffset, len(dst), func(c Chunk, from, n int) {
		pos += copy(dst[pos:], c.Data[from:from+n])
	})
	return pos
}

// DecodeText decodes [offset, offset+length) with enc.
// Characters split across chunk boundaries are decoded correctly.
func (l *List) DecodeText(enc encoding.Encoding, offset, length int) (string, error) {
	l.checkRange("decode", offset, length)
	if length == 0 {
		return "", nil
	}

	index, inner := l.Locate(offset)
	return decodeChunks(enc, l.chunks, index, inner, length)
}

// DecodeString decodes [offset, offset+length) as UTF-8
func (l *List) DecodeString(offset, length int) (string, error) {
	return l.DecodeText(utf8Encoding, offset, length)
}

// ApplyXorMask XORs [offset, offset+length) in place with mask, repeating it.
// mask[0] applies to the byte at offset.
func (l *List) ApplyXorMask(mask []byte, offset, length int) {
	l.checkRange("xor mask", offset, length)
	if len(mask) == 0 {
		return
	}

	k := 0
	l.each(offset, length, func(c Chunk, from, n int) {
		data := c.Data[from : from+n]
		for i := range data {
			data[i] ^= mask[k%len(mask)]
			k++
		}
	})
}

// SearchMark continues st over the last chunk, see search.State.Search
func (l *List) SearchMark(st *search.State) (pos, parsed int) {
	last := l.Last()
	return st.Search(last.Data, last.Offset, last.Length)
}

// Clone returns a new list viewing length bytes, starting at byte segmentOffset
// of chunk index. The new list retains the states it references.
func (l *List) Clone(index, segmentOffset, length int) *List {
	out := NewList()
	for length > 0 {
		if index >= len(l.chunks) {
			panic(&RangeError{Op: "clone", Offset: segmentOffset, Length: length, Total: l.total})
		}

		c := l.chunks[index]
		n := c.Length - segmentOffset
		if n > length {
			n = length
		}

		if n > 0 {
			out.Add(c.Slice(segmentOffset, n))
			length -= n
		}

		index++
		segmentOffset = 0
	}
	return out
}
