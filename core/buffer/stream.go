package buffer

import (
	"errors"
	"fmt"
	"io"
)

var errNegativePosition = errors.New("buffer: negative position")

// Stream is a Reader with io.Reader and io.Seeker semantics
type Stream struct {
	Reader
}

// NewStream creates a stream over l
func NewStream(l *List) *Stream {
	s := &Stream{}
	s.Initialize(l)
	return s
}

// Read implements io.Reader
func (s *Stream) Read(p []byte) (int, error) {
	left := s.Remaining()
	if left == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	if len(p) > left {
		p = p[:left]
	}

	return s.ReadBytes(p)
}

// Seek implements io.Seeker. Seeking past the end fails with ErrOutOfRange
// and keeps the position.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.position) + offset
	case io.SeekEnd:
		pos = int64(s.length) + offset
	default:
		return int64(s.position), errors.New("buffer: invalid whence")
	}

	if pos < 0 {
		return int64(s.position), errNegativePosition
	}
	if pos > int64(s.length) {
		return int64(s.position), fmt.Errorf("%w: seek to %d of %d", ErrOutOfRange, pos, s.length)
	}

	s.seek(int(pos))
	return pos, nil
}
