package buffer

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8Encoding encoding.Encoding = unicode.UTF8

// decodeChunks decodes length bytes starting at byte inner of chunks[index].
// The decoder keeps its state between chunks, so only the few bytes of a
// character cut by a chunk boundary are carried over.
func decodeChunks(enc encoding.Encoding, chunks []Chunk, index, inner, length int) (string, error) {
	dec := enc.NewDecoder()

	var sb strings.Builder
	sb.Grow(length)

	var dst [512]byte
	var pending []byte

	for length > 0 {
		c := chunks[index]
		n := c.Length - inner
		if n > length {
			n = length
		}
		length -= n
		atEOF := length == 0

		src := c.Data[c.Offset+inner : c.Offset+inner+n]
		if len(pending) > 0 {
			src = append(pending, src...)
			pending = nil
		}

		for {
			nDst, nSrc, err := dec.Transform(dst[:], src, atEOF)
			sb.Write(dst[:nDst])
			src = src[nSrc:]

			if err == transform.ErrShortDst {
				continue
			}

			if err == transform.ErrShortSrc {
				if atEOF {
					return sb.String(), ErrIncompleteText
				}
				pending = append([]byte(nil), src...)
				break
			}

			if err != nil {
				return sb.String(), err
			}
			break
		}

		index++
		inner = 0
	}

	return sb.String(), nil
}
