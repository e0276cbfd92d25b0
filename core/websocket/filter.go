package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
	"github.com/searchktools/fast-socket/core/http"
)

var ErrBadHandshake = errors.New("websocket: bad handshake")

// Message is a package of a websocket connection: the opening handshake,
// a complete data message or a control frame
type Message struct {
	OpCode OpCode
	Data   []byte

	// Handshake is set on the first package of a connection
	Handshake *http.Request
	// HandshakeErr tells why the handshake cannot be accepted
	HandshakeErr error
}

// Text returns the payload as a string
func (m *Message) Text() string {
	return string(m.Data)
}

var headerTerminator = []byte("\r\n\r\n")

// NewFilter returns the filter of a new connection: it frames the opening
// handshake, then hands the stream to a frame filter accepting messages of
// at most maxMessageSize bytes (0 for no limit)
func NewFilter(maxMessageSize int) filter.ReceiveFilter[*Message] {
	frames := NewFrameFilter(maxMessageSize)

	var handshake *filter.Terminator[*Message]
	handshake, _ = filter.NewTerminator(headerTerminator, func(data *buffer.List) (*Message, bool) {
		text, err := data.DecodeText(charmap.ISO8859_1, 0, data.Total()-len(headerTerminator))
		if err != nil {
			handshake.SetError(err)
			return nil, false
		}

		req := http.AcquireRequest()
		if err := http.ParseRequest(text, req); err != nil {
			http.ReleaseRequest(req)
			handshake.SetError(err)
			return nil, false
		}

		msg := &Message{Handshake: req, HandshakeErr: CheckHandshake(req)}
		if msg.HandshakeErr == nil {
			handshake.SetNext(frames)
		}
		return msg, true
	})
	return handshake
}

// CheckHandshake validates an opening handshake request
func CheckHandshake(req *http.Request) error {
	switch {
	case req.Method != "GET":
		return fmt.Errorf("%w: method %s", ErrBadHandshake, req.Method)
	case req.Proto != "HTTP/1.1":
		return fmt.Errorf("%w: protocol %s", ErrBadHandshake, req.Proto)
	case !req.IsUpgrade("websocket"):
		return fmt.Errorf("%w: not a websocket upgrade", ErrBadHandshake)
	case req.Header("Sec-WebSocket-Key") == "":
		return fmt.Errorf("%w: missing Sec-WebSocket-Key", ErrBadHandshake)
	case req.Header("Sec-WebSocket-Version") != "13":
		return fmt.Errorf("%w: unsupported version %q", ErrBadHandshake, req.Header("Sec-WebSocket-Version"))
	case req.ContentLength != 0:
		return fmt.Errorf("%w: unexpected body", ErrBadHandshake)
	}
	return nil
}

// FrameFilter frames client frames. Control frames are returned as they
// arrive, fragments are assembled into one message. Payloads are unmasked in
// the receive buffer and copied out.
type FrameFilter struct {
	filter.Base[*Message]

	maxMessageSize int
	head           [maxHeaderSize]byte

	// current frame
	headerParsed bool
	headerLen    int
	payloadLen   int
	fin          bool
	opcode       OpCode
	mask         [4]byte

	// fragmented message, kept across Reset
	fragmenting bool
	fragOp      OpCode
	fragments   []byte
}

func NewFrameFilter(maxMessageSize int) *FrameFilter {
	return &FrameFilter{maxMessageSize: maxMessageSize}
}

func (f *FrameFilter) Filter(data *buffer.List) (*Message, bool, int) {
	total := data.Total()

	if !f.headerParsed {
		if total < 2 || !f.parseHeader(data, total) {
			return nil, false, 0
		}
	}

	need := f.headerLen + f.payloadLen
	if total < need {
		return nil, false, 0
	}

	rest := total - need
	if rest > 0 {
		data.SetLastLength(data.Last().Length - rest)
	}

	payload := f.payload(data)

	if f.opcode.IsControl() {
		return &Message{OpCode: f.opcode, Data: payload}, true, rest
	}

	if f.opcode == OpContinuation {
		if !f.fragmenting {
			f.SetError(ErrUnexpectedContinue)
			return nil, false, rest
		}
	} else {
		if f.fragmenting {
			f.SetError(ErrInterleavedMessage)
			return nil, false, rest
		}
		if f.fin {
			return f.message(f.opcode, payload, rest)
		}
		f.fragmenting = true
		f.fragOp = f.opcode
	}

	if limit := f.maxMessageSize; limit > 0 && len(f.fragments)+len(payload) > limit {
		f.SetError(ErrMessageTooLarge)
		return nil, false, rest
	}
	f.fragments = append(f.fragments, payload...)

	if !f.fin {
		// the frame is consumed, keep assembling with the next one
		f.SetNext(f)
		return nil, false, rest
	}

	op, full := f.fragOp, f.fragments
	f.fragmenting = false
	f.fragments = nil
	return f.message(op, full, rest)
}

// parseHeader reads the frame header once it is complete
func (f *FrameFilter) parseHeader(data *buffer.List, total int) bool {
	data.CopyTo(f.head[:2], 0)
	b0, b1 := f.head[0], f.head[1]

	f.fin = b0&finBit != 0
	f.opcode = OpCode(b0 & 0x0F)
	masked := b1&maskBit != 0
	length := int(b1 & 0x7F)

	switch {
	case b0&rsvBits != 0:
		f.SetError(ErrReservedBits)
		return false
	case !f.opcode.valid():
		f.SetError(fmt.Errorf("%w: %#x", ErrUnknownOpCode, byte(f.opcode)))
		return false
	case !masked:
		f.SetError(ErrUnmaskedFrame)
		return false
	case f.opcode.IsControl() && !f.fin:
		f.SetError(ErrFragmentedControl)
		return false
	case f.opcode.IsControl() && length > maxControlPayload:
		f.SetError(ErrControlTooLarge)
		return false
	}

	headerLen := 2 + 4
	switch length {
	case 126:
		headerLen += 2
	case 127:
		headerLen += 8
	}
	if total < headerLen {
		return false
	}
	data.CopyTo(f.head[:headerLen], 0)

	switch length {
	case 126:
		length = int(binary.BigEndian.Uint16(f.head[2:4]))
	case 127:
		n := binary.BigEndian.Uint64(f.head[2:10])
		if n > 1<<62 {
			f.SetError(ErrInvalidPayloadSize)
			return false
		}
		length = int(n)
	}

	if limit := f.maxMessageSize; limit > 0 && length > limit {
		f.SetError(fmt.Errorf("%w: frame of %d bytes", ErrMessageTooLarge, length))
		return false
	}

	copy(f.mask[:], f.head[headerLen-4:headerLen])
	f.headerLen = headerLen
	f.payloadLen = length
	f.headerParsed = true
	return true
}

func (f *FrameFilter) payload(data *buffer.List) []byte {
	if f.payloadLen == 0 {
		return nil
	}
	data.ApplyXorMask(f.mask[:], f.headerLen, f.payloadLen)
	return data.ToBytes(f.headerLen, f.payloadLen)
}

func (f *FrameFilter) message(op OpCode, payload []byte, rest int) (*Message, bool, int) {
	if op == OpText && !utf8.Valid(payload) {
		f.SetError(ErrInvalidUTF8)
		return nil, false, rest
	}
	return &Message{OpCode: op, Data: payload}, true, rest
}

// Reset prepares for the next frame. A partly assembled message is kept.
func (f *FrameFilter) Reset() {
	f.headerParsed = false
	f.headerLen = 0
	f.payloadLen = 0
	f.ResetBase()
}
