package buffer

// Chunk is a view (Data[Offset:Offset+Length]) over a byte region.
// State is optional; when set, holders of the chunk keep the region alive
// through its reference count.
type Chunk struct {
	Data   []byte
	Offset int
	Length int
	State  *State
}

// NewChunk creates a chunk over data[offset:offset+length]
func NewChunk(data []byte, offset, length int) Chunk {
	return Chunk{Data: data, Offset: offset, Length: length}
}

// Bytes returns the viewed bytes without copying
func (c Chunk) Bytes() []byte {
	return c.Data[c.Offset : c.Offset+c.Length]
}

// Slice returns a narrower view sharing the same state
func (c Chunk) Slice(offset, length int) Chunk {
	if offset < 0 || length < 0 || offset+length > c.Length {
		panic(&RangeError{Op: "slice", Offset: offset, Length: length, Total: c.Length})
	}

	return Chunk{
		Data:   c.Data,
		Offset: c.Offset + offset,
		Length: length,
		State:  c.State,
	}
}

// IsEmpty reports whether the chunk views no bytes
func (c Chunk) IsEmpty() bool {
	return c.Length == 0
}
