// Package websocket serves RFC 6455 websocket connections on the engine.
// The handshake and the frames are framed by receive filters; writes go
// through the session's sending queue.
package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
)

// OpCode is the frame opcode
type OpCode byte

const (
	OpContinuation OpCode = 0x0
	OpText         OpCode = 0x1
	OpBinary       OpCode = 0x2
	OpClose        OpCode = 0x8
	OpPing         OpCode = 0x9
	OpPong         OpCode = 0xA
)

// IsControl reports whether op is a control opcode
func (op OpCode) IsControl() bool {
	return op >= OpClose
}

func (op OpCode) valid() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// Close status codes
const (
	CloseNormal          uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseUnsupportedData uint16 = 1003
	CloseNoStatus        uint16 = 1005
	CloseInvalidPayload  uint16 = 1007
	CloseMessageTooBig   uint16 = 1009
)

const (
	finBit  = 0x80
	rsvBits = 0x70
	maskBit = 0x80

	// maxControlPayload is the largest payload of a control frame
	maxControlPayload = 125
	// maxHeaderSize covers the 2 byte head, a 64-bit length and the mask
	maxHeaderSize = 14
)

var (
	ErrReservedBits        = errors.New("websocket: reserved bits set")
	ErrUnknownOpCode       = errors.New("websocket: unknown opcode")
	ErrFragmentedControl   = errors.New("websocket: fragmented control frame")
	ErrControlTooLarge     = errors.New("websocket: control frame payload too large")
	ErrUnmaskedFrame       = errors.New("websocket: client frame is not masked")
	ErrMessageTooLarge     = errors.New("websocket: message too large")
	ErrUnexpectedContinue  = errors.New("websocket: continuation without a message")
	ErrInterleavedMessage  = errors.New("websocket: data frame inside a fragmented message")
	ErrInvalidUTF8         = errors.New("websocket: text message is not valid UTF-8")
	ErrInvalidPayloadSize  = errors.New("websocket: invalid payload length")
	ErrInvalidClosePayload = errors.New("websocket: invalid close payload")
)

// FrameSize returns the encoded size of an unmasked frame with n payload bytes
func FrameSize(n int) int {
	switch {
	case n < 126:
		return 2 + n
	case n <= 0xFFFF:
		return 4 + n
	default:
		return 10 + n
	}
}

// AppendFrame appends an unmasked frame to b. Servers never mask.
func AppendFrame(b []byte, fin bool, op OpCode, payload []byte) []byte {
	head := byte(op)
	if fin {
		head |= finBit
	}
	b = append(b, head)

	n := len(payload)
	switch {
	case n < 126:
		b = append(b, byte(n))
	case n <= 0xFFFF:
		b = append(b, 126)
		b = binary.BigEndian.AppendUint16(b, uint16(n))
	default:
		b = append(b, 127)
		b = binary.BigEndian.AppendUint64(b, uint64(n))
	}

	return append(b, payload...)
}

// AppendClosePayload appends a close status code and reason
func AppendClosePayload(b []byte, code uint16, reason string) []byte {
	b = binary.BigEndian.AppendUint16(b, code)
	return append(b, reason...)
}

// ParseClosePayload splits a close payload. An empty payload reports CloseNoStatus.
func ParseClosePayload(p []byte) (code uint16, reason string, err error) {
	switch len(p) {
	case 0:
		return CloseNoStatus, "", nil
	case 1:
		return 0, "", ErrInvalidClosePayload
	}
	return binary.BigEndian.Uint16(p), string(p[2:]), nil
}

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes Sec-WebSocket-Accept for a Sec-WebSocket-Key
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
