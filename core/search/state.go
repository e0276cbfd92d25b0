package search

// State carries a partial mark match from one searched range to the next
type State struct {
	mark    []byte
	matched int
}

// NewState creates a search state for mark
func NewState(mark []byte) (*State, error) {
	if len(mark) == 0 {
		return nil, ErrEmptyMark
	}

	return &State{mark: mark}, nil
}

// Mark returns the searched mark
func (s *State) Mark() []byte {
	return s.mark
}

// Matched returns the number of mark bytes matched at the end of the last range
func (s *State) Matched() int {
	return s.matched
}

// Search continues the search in source[offset:offset+length]. It returns
// pos = -1 until the mark is found; then pos is the mark start and parsed the
// number of bytes consumed from offset through the end of the mark.
func (s *State) Search(source []byte, offset, length int) (pos, parsed int) {
	p, n, res := SearchMark(source, offset, length, s.mark, s.matched)

	switch res {
	case Found:
		s.matched = 0
		return p, n
	case Partial:
		s.matched = n
	default:
		s.matched = 0
	}

	return -1, 0
}

// Change replaces the mark and clears the carried match
func (s *State) Change(mark []byte) error {
	if len(mark) == 0 {
		return ErrEmptyMark
	}

	s.mark = mark
	s.matched = 0
	return nil
}

// Reset clears the carried match
func (s *State) Reset() {
	s.matched = 0
}
