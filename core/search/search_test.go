package search

import (
	"bytes"
	"testing"
)

func TestSearchMarkFound(t *testing.T) {
	source := []byte("hello\r\nworld")
	pos, parsed, res := SearchMark(source, 0, len(source), []byte("\r\n"), 0)
	if res != Found {
		t.Fatalf("Expected Found, got %v", res)
	}
	if pos != 5 {
		t.Errorf("Expected pos 5, got %d", pos)
	}
	if parsed != 7 {
		t.Errorf("Expected parsed 7, got %d", parsed)
	}
}

func TestSearchMarkOffset(t *testing.T) {
	source := []byte("xx##ab##cd")
	pos, parsed, res := SearchMark(source, 4, 6, []byte("##"), 0)
	if res != Found || pos != 6 || parsed != 4 {
		t.Errorf("Expected (6, 4, Found), got (%d, %d, %v)", pos, parsed, res)
	}
}

func TestSearchMarkPartial(t *testing.T) {
	source := []byte("hello\r")
	pos, parsed, res := SearchMark(source, 0, len(source), []byte("\r\n"), 0)
	if res != Partial {
		t.Fatalf("Expected Partial, got %v", res)
	}
	if pos != -1 || parsed != 1 {
		t.Errorf("Expected (-1, 1), got (%d, %d)", pos, parsed)
	}

	next := []byte("\nrest")
	pos, parsed, res = SearchMark(next, 0, len(next), []byte("\r\n"), 1)
	if res != Found || pos != 0 || parsed != 1 {
		t.Errorf("Expected carried match (0, 1, Found), got (%d, %d, %v)", pos, parsed, res)
	}
}

func TestSearchMarkCarryMismatch(t *testing.T) {
	// carried "\r" followed by something else falls back to a fresh scan
	source := []byte("x\r\n")
	pos, parsed, res := SearchMark(source, 0, len(source), []byte("\r\n"), 1)
	if res != Found || pos != 1 || parsed != 3 {
		t.Errorf("Expected (1, 3, Found), got (%d, %d, %v)", pos, parsed, res)
	}
}

func TestSearchMarkNotFound(t *testing.T) {
	source := []byte("no mark here")
	pos, parsed, res := SearchMark(source, 0, len(source), []byte("##"), 0)
	if res != NotFound || pos != -1 || parsed != 0 {
		t.Errorf("Expected (-1, 0, NotFound), got (%d, %d, %v)", pos, parsed, res)
	}
}

func TestSearchMarkEmptyRange(t *testing.T) {
	_, parsed, res := SearchMark(nil, 0, 0, []byte("ab"), 1)
	if res != Partial || parsed != 1 {
		t.Errorf("Expected carried partial to survive an empty range, got (%d, %v)", parsed, res)
	}
}

// feeds the stream one piece at a time and returns the absolute position of
// the first mark, or -1
func searchSplit(t *testing.T, stream, mark []byte, cuts []int) int {
	t.Helper()

	state, err := NewState(mark)
	if err != nil {
		t.Fatal(err)
	}

	start := 0
	bounds := append(append([]int{}, cuts...), len(stream))
	for _, end := range bounds {
		piece := stream[start:end]
		pos, parsed := state.Search(piece, 0, len(piece))
		if pos >= 0 {
			return start + parsed - len(mark)
		}
		start = end
	}

	return -1
}

func TestStateSplitPositions(t *testing.T) {
	cases := []struct {
		stream string
		mark   string
	}{
		{"GET / HTTP/1.1\r\nHost: x\r\n\r\nbody", "\r\n\r\n"},
		{"0123456789##END##tail", "##END##"},
		{"xaaab", "aab"},
		{"abababc", "ababc"},
		{"zzzzzzz!", "!"},
	}

	for _, c := range cases {
		stream := []byte(c.stream)
		mark := []byte(c.mark)
		want := bytes.Index(stream, mark)

		if got := searchSplit(t, stream, mark, nil); got != want {
			t.Errorf("%q in %q: unsplit search got %d, want %d", c.mark, c.stream, got, want)
		}

		for i := 1; i < len(stream); i++ {
			if got := searchSplit(t, stream, mark, []int{i}); got != want {
				t.Errorf("%q in %q split at %d: got %d, want %d", c.mark, c.stream, i, got, want)
			}
		}

		cuts := make([]int, 0, len(stream))
		for i := 1; i < len(stream); i++ {
			cuts = append(cuts, i)
		}
		if got := searchSplit(t, stream, mark, cuts); got != want {
			t.Errorf("%q in %q byte by byte: got %d, want %d", c.mark, c.stream, got, want)
		}
	}
}

func TestStateResetAndChange(t *testing.T) {
	state, err := NewState([]byte("\r\n"))
	if err != nil {
		t.Fatal(err)
	}

	state.Search([]byte("abc\r"), 0, 4)
	if state.Matched() != 1 {
		t.Fatalf("Expected 1 matched byte, got %d", state.Matched())
	}

	state.Reset()
	if state.Matched() != 0 {
		t.Errorf("Expected reset to clear matched bytes, got %d", state.Matched())
	}

	if err := state.Change([]byte("|")); err != nil {
		t.Fatal(err)
	}
	pos, parsed := state.Search([]byte("a|b"), 0, 3)
	if pos != 1 || parsed != 2 {
		t.Errorf("Expected (1, 2) after change, got (%d, %d)", pos, parsed)
	}

	if err := state.Change(nil); err != ErrEmptyMark {
		t.Errorf("Expected ErrEmptyMark, got %v", err)
	}
}

func TestNewStateEmptyMark(t *testing.T) {
	if _, err := NewState(nil); err != ErrEmptyMark {
		t.Errorf("Expected ErrEmptyMark, got %v", err)
	}
}

func TestHelpers(t *testing.T) {
	source := []byte("abcdef")

	if idx := IndexOf(source, 'd', 1, 5); idx != 3 {
		t.Errorf("IndexOf: expected 3, got %d", idx)
	}
	if idx := IndexOf(source, 'a', 1, 5); idx != -1 {
		t.Errorf("IndexOf: expected -1, got %d", idx)
	}

	if n := StartsWith(source, 0, 6, []byte("abc")); n != 3 {
		t.Errorf("StartsWith: expected 3, got %d", n)
	}
	if n := StartsWith(source, 4, 2, []byte("efg")); n != 2 {
		t.Errorf("StartsWith: expected partial 2, got %d", n)
	}
	if n := StartsWith(source, 0, 6, []byte("abd")); n != -1 {
		t.Errorf("StartsWith: expected -1, got %d", n)
	}

	if !EndsWith(source, 0, 6, []byte("ef")) {
		t.Error("EndsWith: expected true")
	}
	if EndsWith(source, 0, 5, []byte("ef")) {
		t.Error("EndsWith: expected false")
	}
}

func BenchmarkSearchMark(b *testing.B) {
	source := bytes.Repeat([]byte("a"), 4096)
	copy(source[4000:], "\r\n\r\n")
	mark := []byte("\r\n\r\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SearchMark(source, 0, len(source), mark, 0)
	}
}
