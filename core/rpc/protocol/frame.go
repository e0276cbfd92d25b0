// Package protocol frames RPC messages.
//
// Frame format, a 16 byte header followed by metadata and payload:
//
//	+--------+--------+--------+--------+--------+--------+--------+--------+
//	| Magic (4 bytes)                   | Ver    | Type   | Flags  | Codec  |
//	+--------+--------+--------+--------+--------+--------+--------+--------+
//	| RequestID (4 bytes)               | MetaLen (2)     | PayloadLen (2)  |
//	+--------+--------+--------+--------+--------+--------+--------+--------+
//	| Metadata (MetaLen bytes)          | Payload (PayloadLen bytes)        |
//	+--------+--------+--------+--------+--------+--------+--------+--------+
//
// All integers are big endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
)

const (
	// Magic number: "RPC\0"
	Magic uint32 = 0x52504300

	Version byte = 0x01

	HeaderSize = 16

	// MaxSectionSize bounds metadata and payload, their lengths are 16 bit
	MaxSectionSize = 0xFFFF
)

// Frame types
const (
	TypeRequest  byte = 0x01
	TypeResponse byte = 0x02
	TypeError    byte = 0x06
	TypePing     byte = 0x07
	TypePong     byte = 0x08
)

// Frame flags
const (
	FlagCompressed byte = 1 << 0
	FlagPriority   byte = 1 << 1
	// FlagOneWay requests get no response
	FlagOneWay byte = 1 << 2
)

var (
	ErrInvalidMagic   = errors.New("rpc: invalid magic number")
	ErrInvalidVersion = errors.New("rpc: unsupported protocol version")
	ErrFrameTooLarge  = errors.New("rpc: frame too large")
	ErrShortHeader    = errors.New("rpc: short header")
)

// Frame is one RPC message
type Frame struct {
	Version   byte
	Type      byte
	Flags     byte
	Codec     byte
	RequestID uint32
	Metadata  []byte
	Payload   []byte
}

func NewFrame(typ byte, requestID uint32) *Frame {
	return &Frame{
		Version:   Version,
		Type:      typ,
		RequestID: requestID,
	}
}

func (f *Frame) SetFlag(flag byte) {
	f.Flags |= flag
}

func (f *Frame) HasFlag(flag byte) bool {
	return f.Flags&flag != 0
}

// Size returns the encoded size of f
func (f *Frame) Size() int {
	return HeaderSize + len(f.Metadata) + len(f.Payload)
}

// AppendTo appends the encoded frame to b
func (f *Frame) AppendTo(b []byte) ([]byte, error) {
	if len(f.Metadata) > MaxSectionSize || len(f.Payload) > MaxSectionSize {
		return b, fmt.Errorf("%w: metadata %d, payload %d bytes", ErrFrameTooLarge, len(f.Metadata), len(f.Payload))
	}

	b = binary.BigEndian.AppendUint32(b, Magic)
	b = append(b, f.Version, f.Type, f.Flags, f.Codec)
	b = binary.BigEndian.AppendUint32(b, f.RequestID)
	b = binary.BigEndian.AppendUint16(b, uint16(len(f.Metadata)))
	b = binary.BigEndian.AppendUint16(b, uint16(len(f.Payload)))
	b = append(b, f.Metadata...)
	return append(b, f.Payload...), nil
}

// Encode returns the encoded frame
func (f *Frame) Encode() ([]byte, error) {
	return f.AppendTo(make([]byte, 0, f.Size()))
}

// EncodeState encodes f into a pooled buffer that is freed when the
// returned state is released by its last holder
func (f *Frame) EncodeState() (*buffer.State, error) {
	buf := mcache.Malloc(f.Size())
	if _, err := f.AppendTo(buf[:0]); err != nil {
		mcache.Free(buf)
		return nil, err
	}

	return buffer.NewState(buf, func(st *buffer.State) {
		mcache.Free(st.Data())
	}), nil
}

// CheckHeader validates magic and version and returns the body length
func CheckHeader(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, ErrShortHeader
	}
	if binary.BigEndian.Uint32(header[0:4]) != Magic {
		return 0, ErrInvalidMagic
	}
	if header[4] != Version {
		return 0, fmt.Errorf("%w: %d", ErrInvalidVersion, header[4])
	}

	metaLen := int(binary.BigEndian.Uint16(header[12:14]))
	payloadLen := int(binary.BigEndian.Uint16(header[14:16]))
	return metaLen + payloadLen, nil
}

// Decode decodes a complete frame
func Decode(buf []byte) (*Frame, error) {
	n, err := CheckHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < HeaderSize+n {
		return nil, fmt.Errorf("rpc: need %d bytes, got %d", HeaderSize+n, len(buf))
	}

	list := buffer.NewList()
	list.Add(buffer.NewChunk(buf, 0, HeaderSize+n))
	return readFrame(buffer.NewReader(list))
}

// readFrame reads a checked frame
func readFrame(r *buffer.Reader) (*Frame, error) {
	f := &Frame{}

	if err := r.Skip(4); err != nil {
		return nil, err
	}

	var err error
	read := func(p *byte) {
		if err == nil {
			*p, err = r.ReadByte()
		}
	}
	read(&f.Version)
	read(&f.Type)
	read(&f.Flags)
	read(&f.Codec)
	if err != nil {
		return nil, err
	}

	if f.RequestID, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	metaLen, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	payloadLen, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}

	if metaLen > 0 {
		f.Metadata = make([]byte, metaLen)
		if _, err := r.ReadBytes(f.Metadata); err != nil {
			return nil, err
		}
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := r.ReadBytes(f.Payload); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewFilter returns the receive filter framing RPC frames
func NewFilter() filter.ReceiveFilter[*Frame] {
	var f *filter.FixedHeader[*Frame]

	bodyLength := func(header []byte) int {
		n, err := CheckHeader(header)
		if err != nil {
			f.SetError(err)
			return 0
		}
		return n
	}

	f = filter.NewFixedHeader[*Frame](HeaderSize, bodyLength, func(data *buffer.List) (*Frame, bool) {
		if f.State() == filter.StateError {
			return nil, false
		}
		frame, err := readFrame(buffer.NewReader(data))
		if err != nil {
			f.SetError(err)
			return nil, false
		}
		return frame, true
	})
	return f
}
