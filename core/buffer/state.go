package buffer

import "sync/atomic"

// State is the ownership handle of a byte region shared by chunks.
// A state starts with no holders; everyone keeping a chunk of it calls
// Retain and later Release. When the last holder releases, the release
// function runs (a pooled segment returns to its pool, a heap buffer is freed).
type State struct {
	data     []byte
	refCount atomic.Int32
	release  func(*State)
}

// NewState creates a state for data, release may be nil for GC managed memory
func NewState(data []byte, release func(*State)) *State {
	return &State{
		data:    data,
		release: release,
	}
}

// Data returns the underlying byte slice
func (s *State) Data() []byte {
	return s.data
}

// Len returns the length of the underlying byte slice
func (s *State) Len() int {
	return len(s.data)
}

// Retain increments the reference count
func (s *State) Retain() {
	s.refCount.Add(1)
}

// Release decrements the reference count and runs the release function when it reaches zero
func (s *State) Release() {
	count := s.refCount.Add(-1)
	if count < 0 {
		panic("buffer: state released more times than retained")
	}

	if count == 0 && s.release != nil {
		s.release(s)
	}
}

// RefCount returns the current reference count
func (s *State) RefCount() int32 {
	return s.refCount.Load()
}

// Chunk returns a chunk covering data[offset:offset+length] owned by this state
func (s *State) Chunk(offset, length int) Chunk {
	return Chunk{
		Data:   s.data,
		Offset: offset,
		Length: length,
		State:  s,
	}
}
