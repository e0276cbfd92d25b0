// Package search finds byte marks (terminators, begin/end marks, separators)
// inside received data. A search can be resumed across chunk boundaries: the
// number of mark bytes matched at the end of one chunk is carried into the
// search of the next one.
package search

import (
	"bytes"
	"errors"
)

// Result classifies the outcome of a mark search
type Result int

const (
	// NotFound means no part of the mark was seen at the end of the range
	NotFound Result = iota
	// Partial means the range ends with a prefix of the mark
	Partial
	// Found means the whole mark was matched
	Found
)

var ErrEmptyMark = errors.New("search: mark must not be empty")

// SearchMark searches mark in source[offset:offset+length].
//
// matched is the number of mark bytes already matched at the end of the
// previously searched range. On Found, pos is the index of the mark start
// (offset itself when the mark began in an earlier range) and parsed is the
// number of bytes from offset up to and including the end of the mark. On
// Partial, parsed is the number of mark bytes matched at the end of the range.
func SearchMark(source []byte, offset, length int, mark []byte, matched int) (pos, parsed int, res Result) {
	if length <= 0 {
		if matched > 0 {
			return -1, matched, Partial
		}
		return -1, 0, NotFound
	}

	end := offset + length

	// extend the carried match first, then every shorter alignment the
	// carried bytes still allow
	for carried := matched; carried > 0; carried = nextBorder(mark, carried) {
		need := len(mark) - carried
		k := 0
		for k < need && k < length && source[offset+k] == mark[carried+k] {
			k++
		}

		if k == need {
			return offset, need, Found
		}

		if k == length {
			return -1, carried + k, Partial
		}
	}

	pos = offset
	for {
		idx := bytes.IndexByte(source[pos:end], mark[0])
		if idx < 0 {
			return -1, 0, NotFound
		}
		pos += idx

		count := 1
		for i := 1; i < len(mark); i++ {
			check := pos + i
			if check >= end {
				return -1, count, Partial
			}

			if source[check] != mark[i] {
				break
			}
			count++
		}

		if count == len(mark) {
			return pos, pos - offset + len(mark), Found
		}

		pos++
	}
}

// nextBorder returns the length of the longest proper prefix of mark[:n]
// which is also a suffix of it, or 0.
func nextBorder(mark []byte, n int) int {
	for b := n - 1; b > 0; b-- {
		if bytes.Equal(mark[:b], mark[n-b:n]) {
			return b
		}
	}
	return 0
}

// IndexOf returns the index of the first target byte in source[pos:pos+length], or -1
func IndexOf(source []byte, target byte, pos, length int) int {
	idx := bytes.IndexByte(source[pos:pos+length], target)
	if idx < 0 {
		return -1
	}
	return pos + idx
}

// StartsWith reports how far source[offset:offset+length] matches the start of mark.
// It returns len(mark) for a full match, the number of matched bytes when the range
// ends before the mark does, and -1 on a mismatch.
func StartsWith(source []byte, offset, length int, mark []byte) int {
	for i := 0; i < len(mark); i++ {
		if i >= length {
			return i
		}

		if source[offset+i] != mark[i] {
			return -1
		}
	}

	return len(mark)
}

// EndsWith reports whether source[offset:offset+length] ends with mark
func EndsWith(source []byte, offset, length int, mark []byte) bool {
	if len(mark) > length {
		return false
	}

	return bytes.Equal(source[offset+length-len(mark):offset+length], mark)
}
