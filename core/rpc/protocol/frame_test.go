package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/pipeline"
)

func TestFrameEncodeDecode(t *testing.T) {
	f := NewFrame(TypeRequest, 12345)
	f.Codec = 2
	f.SetFlag(FlagOneWay)
	f.Metadata = []byte("test metadata")
	f.Payload = []byte("test payload")

	encoded, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != f.Size() {
		t.Errorf("Expected %d bytes, got %d", f.Size(), len(encoded))
	}
	if !bytes.HasPrefix(encoded, []byte("RPC\x00\x01\x01\x04\x02")) {
		t.Errorf("Unexpected header % x", encoded[:HeaderSize])
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Type != TypeRequest || decoded.RequestID != 12345 || decoded.Codec != 2 || !decoded.HasFlag(FlagOneWay) {
		t.Errorf("Unexpected header fields %+v", decoded)
	}
	if string(decoded.Metadata) != "test metadata" || string(decoded.Payload) != "test payload" {
		t.Errorf("Unexpected sections %q %q", decoded.Metadata, decoded.Payload)
	}
}

func TestFrameErrors(t *testing.T) {
	f := NewFrame(TypeRequest, 1)
	f.Payload = make([]byte, MaxSectionSize+1)
	if _, err := f.Encode(); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}

	good, _ := NewFrame(TypePing, 1).Encode()

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 9
	if _, err := Decode(badVersion); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("Expected ErrInvalidVersion, got %v", err)
	}

	if _, err := Decode(good[:10]); !errors.Is(err, ErrShortHeader) {
		t.Errorf("Expected ErrShortHeader, got %v", err)
	}
}

func TestFrameState(t *testing.T) {
	f := NewFrame(TypeResponse, 7)
	f.Payload = []byte("pooled")

	st, err := f.EncodeState()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := f.Encode()
	if got := st.Chunk(0, st.Len()).Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Expected % x, got % x", want, got)
	}

	st.Retain()
	st.Release()
}

func stream(t *testing.T) []byte {
	t.Helper()

	var b []byte
	for i, payload := range []string{"first", "", strings.Repeat("z", 100)} {
		f := NewFrame(TypeRequest, uint32(i+1))
		f.Metadata = []byte(`{"service":"S","method":"M"}`)
		f.Payload = []byte(payload)

		var err error
		if b, err = f.AppendTo(b); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func feed(chunks ...[]byte) ([]*Frame, pipeline.Result) {
	var got []*Frame
	p := pipeline.New[*Frame](pipeline.HandlerFunc[*Frame](func(f *Frame) {
		got = append(got, f)
	}), NewFilter())

	var r pipeline.Result
	for _, c := range chunks {
		r = p.Process(buffer.NewChunk(c, 0, len(c)))
		if r.State == pipeline.Error {
			break
		}
	}
	return got, r
}

func TestFilterSplitAnywhere(t *testing.T) {
	data := stream(t)

	for i := 0; i < len(data); i++ {
		chunks := [][]byte{data}
		if i > 0 {
			chunks = [][]byte{data[:i], data[i:]}
		}

		got, r := feed(chunks...)
		if r.State != pipeline.Completed {
			t.Fatalf("Split at %d: expected Completed, got %v %s", i, r.State, r.Message)
		}
		if len(got) != 3 {
			t.Fatalf("Split at %d: expected 3 frames, got %d", i, len(got))
		}
		for j, f := range got {
			if f.RequestID != uint32(j+1) {
				t.Errorf("Split at %d: frame %d has id %d", i, j, f.RequestID)
			}
		}
		if string(got[0].Payload) != "first" || got[1].Payload != nil || len(got[2].Payload) != 100 {
			t.Fatalf("Split at %d: unexpected payloads", i)
		}
	}
}

func TestFilterRejectsBadMagic(t *testing.T) {
	data := stream(t)
	data[0] = 'X'

	got, r := feed(data)
	if r.State != pipeline.Error || len(got) != 0 {
		t.Fatalf("Expected Error without frames, got %v with %d frames", r.State, len(got))
	}
	if !strings.Contains(r.Message, ErrInvalidMagic.Error()) {
		t.Errorf("Unexpected message %q", r.Message)
	}
}
