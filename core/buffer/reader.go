package buffer

import (
	"golang.org/x/text/encoding"
)

// Reader is a forward cursor over a list or a plain chunk sequence.
// Multi-byte reads fail with ErrOutOfRange, without moving the cursor, when
// fewer bytes than requested remain.
type Reader struct {
	list   *List
	chunks []Chunk
	length int

	index    int // current chunk
	inner    int // offset inside the current chunk's view
	position int
}

// NewReader creates a reader over l
func NewReader(l *List) *Reader {
	r := &Reader{}
	r.Initialize(l)
	return r
}

// NewChunkReader creates a reader over a plain chunk sequence
func NewChunkReader(chunks []Chunk) *Reader {
	r := &Reader{}
	r.InitializeChunks(chunks)
	return r
}

// Initialize points the reader at the start of l
func (r *Reader) Initialize(l *List) {
	r.list = l
	r.chunks = l.Chunks()
	r.length = l.Total()
	r.rewind()
}

// InitializeChunks points the reader at the start of chunks
func (r *Reader) InitializeChunks(chunks []Chunk) {
	r.list = nil
	r.chunks = chunks
	r.length = 0
	for _, c := range chunks {
		r.length += c.Length
	}
	r.rewind()
}

// Reset detaches the reader from its data
func (r *Reader) Reset() {
	r.list = nil
	r.chunks = nil
	r.length = 0
	r.rewind()
}

func (r *Reader) rewind() {
	r.index = 0
	r.inner = 0
	r.position = 0
}

// Len returns the total number of readable bytes
func (r *Reader) Len() int {
	return r.length
}

// Position returns the number of bytes consumed
func (r *Reader) Position() int {
	return r.position
}

// Remaining returns the number of bytes left
func (r *Reader) Remaining() int {
	return r.length - r.position
}

// advance moves the cursor n bytes forward; n must not exceed Remaining
func (r *Reader) advance(n int) {
	r.position += n
	for n > 0 {
		left := r.chunks[r.index].Length - r.inner
		if n < left {
			r.inner += n
			return
		}

		n -= left
		r.index++
		r.inner = 0
	}
}

// ReadByte reads one byte
func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrOutOfRange
	}

	for r.inner >= r.chunks[r.index].Length {
		r.index++
		r.inner = 0
	}

	c := r.chunks[r.index]
	b := c.Data[c.Offset+r.inner]
	r.advance(1)
	return b, nil
}

// ReadBytes fills p completely
func (r *Reader) ReadBytes(p []byte) (int, error) {
	if r.Remaining() < len(p) {
		return 0, ErrOutOfRange
	}

	r.copyOut(p)
	r.advance(len(p))
	return len(p), nil
}

// copyOut copies len(p) bytes from the cursor without moving it
func (r *Reader) copyOut(p []byte) {
	index, inner := r.index, r.inner
	pos := 0
	for pos < len(p) {
		c := r.chunks[index]
		pos += copy(p[pos:], c.Data[c.Offset+inner:c.Offset+c.Length])
		index++
		inner = 0
	}
}

// ReadUint reads an n byte (1 to 8) unsigned integer
func (r *Reader) ReadUint(n int, littleEndian bool) (uint64, error) {
	if n < 1 || n > 8 {
		panic("buffer: integer width must be between 1 and 8 bytes")
	}

	if r.Remaining() < n {
		return 0, ErrOutOfRange
	}

	var v uint64
	for i := 0; i < n; i++ {
		b, _ := r.ReadByte()
		if littleEndian {
			v |= uint64(b) << (8 * i)
		} else {
			v = v<<8 | uint64(b)
		}
	}
	return v, nil
}

// ReadUint16 reads a big-endian uint16
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUint(2, false)
	return uint16(v), err
}

// ReadUint16LE reads a little-endian uint16
func (r *Reader) ReadUint16LE() (uint16, error) {
	v, err := r.ReadUint(2, true)
	return uint16(v), err
}

// ReadInt16 reads a big-endian int16
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint(2, false)
	return int16(v), err
}

// ReadInt16LE reads a little-endian int16
func (r *Reader) ReadInt16LE() (int16, error) {
	v, err := r.ReadUint(2, true)
	return int16(v), err
}

// ReadUint32 reads a big-endian uint32
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUint(4, false)
	return uint32(v), err
}

// ReadUint32LE reads a little-endian uint32
func (r *Reader) ReadUint32LE() (uint32, error) {
	v, err := r.ReadUint(4, true)
	return uint32(v), err
}

// ReadInt32 reads a big-endian int32
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint(4, false)
	return int32(v), err
}

// ReadInt32LE reads a little-endian int32
func (r *Reader) ReadInt32LE() (int32, error) {
	v, err := r.ReadUint(4, true)
	return int32(v), err
}

// ReadUint64 reads a big-endian uint64
func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUint(8, false)
}

// ReadUint64LE reads a little-endian uint64
func (r *Reader) ReadUint64LE() (uint64, error) {
	return r.ReadUint(8, true)
}

// ReadInt64 reads a big-endian int64
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint(8, false)
	return int64(v), err
}

// ReadInt64LE reads a little-endian int64
func (r *Reader) ReadInt64LE() (int64, error) {
	v, err := r.ReadUint(8, true)
	return int64(v), err
}

// ReadString decodes the next n bytes with enc
func (r *Reader) ReadString(n int, enc encoding.Encoding) (string, error) {
	if r.Remaining() < n {
		return "", ErrOutOfRange
	}
	if n == 0 {
		return "", nil
	}

	s, err := decodeChunks(enc, r.chunks, r.index, r.inner, n)
	if err != nil {
		return s, err
	}

	r.advance(n)
	return s, nil
}

// Skip moves the cursor n bytes forward
func (r *Reader) Skip(n int) error {
	if n < 0 || r.Remaining() < n {
		return ErrOutOfRange
	}

	r.advance(n)
	return nil
}

// Take returns the next n bytes as a new list sharing the underlying memory
// and moves the cursor past them. The returned list retains the chunk states,
// the caller clears it when done.
func (r *Reader) Take(n int) (*List, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrOutOfRange
	}

	var out *List
	if r.list != nil {
		out = r.list.Clone(r.index, r.inner, n)
	} else {
		out = NewList()
		index, inner, left := r.index, r.inner, n
		for left > 0 {
			c := r.chunks[index]
			k := c.Length - inner
			if k > left {
				k = left
			}
			if k > 0 {
				out.Add(c.Slice(inner, k))
				left -= k
			}
			index++
			inner = 0
		}
	}

	r.advance(n)
	return out, nil
}

// seek places the cursor at an absolute position
func (r *Reader) seek(pos int) {
	r.rewind()
	if pos == 0 {
		return
	}

	if r.list != nil {
		r.index, r.inner = r.list.Locate(pos)
		r.position = pos
		return
	}

	r.advance(pos)
}
