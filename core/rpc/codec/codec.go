// Package codec encodes RPC payloads. The codec of a request travels in
// its frame header and the response uses the same one.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"

	msgpack "github.com/hashicorp/go-msgpack/codec"
	"google.golang.org/protobuf/proto"
)

var ErrUnsupportedCodec = errors.New("codec: unsupported codec")

// Codec encodes and decodes payloads
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
	Type() Type
}

// Type identifies a codec on the wire
type Type byte

const (
	JSON     Type = 0x01
	MsgPack  Type = 0x02
	Protobuf Type = 0x03
	Gob      Type = 0x04
)

var codecs = map[Type]Codec{
	JSON:     JSONCodec{},
	MsgPack:  MsgPackCodec{},
	Protobuf: ProtobufCodec{},
	Gob:      GobCodec{},
}

// Get returns the codec of typ
func Get(typ Type) (Codec, error) {
	c, ok := codecs[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnsupportedCodec, byte(typ))
	}
	return c, nil
}

// ByName returns the codec called name
func ByName(name string) (Codec, error) {
	for _, c := range codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
}

type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }
func (JSONCodec) Type() Type                      { return JSON }

// MsgPackCodec uses MessagePack
type MsgPackCodec struct{}

var msgpackHandle = &msgpack.MsgpackHandle{}

func (MsgPackCodec) Encode(v any) ([]byte, error) {
	var b []byte
	if err := msgpack.NewEncoderBytes(&b, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

func (MsgPackCodec) Decode(data []byte, v any) error {
	return msgpack.NewDecoderBytes(data, msgpackHandle).Decode(v)
}

func (MsgPackCodec) Name() string { return "msgpack" }
func (MsgPackCodec) Type() Type   { return MsgPack }

// ProtobufCodec needs proto.Message values
type ProtobufCodec struct{}

func (ProtobufCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: value must implement proto.Message, got %T", v)
	}
	return proto.Marshal(msg)
}

func (ProtobufCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: value must implement proto.Message, got %T", v)
	}
	return proto.Unmarshal(data, msg)
}

func (ProtobufCodec) Name() string { return "protobuf" }
func (ProtobufCodec) Type() Type   { return Protobuf }

// GobCodec uses encoding/gob, one value per payload
type GobCodec struct{}

func (GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (GobCodec) Name() string { return "gob" }
func (GobCodec) Type() Type   { return Gob }
