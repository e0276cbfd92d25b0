package websocket

import (
	"errors"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/searchktools/fast-socket/core/buffer"
)

var ErrConnClosed = errors.New("websocket: connection closed")

// Session is the engine connection a websocket runs on. core.Session
// satisfies it.
type Session interface {
	ID() uint64
	RemoteAddr() string
	Send(chunks ...buffer.Chunk) bool
	SendBytes(p []byte) bool
	CloseWhenFlushed()
}

// Conn is an open websocket connection
type Conn struct {
	sess    Session
	closing atomic.Bool
	rooms   *xsync.MapOf[string, struct{}]

	// Values holds user data of the connection
	Values *xsync.MapOf[string, any]
}

func newConn(sess Session) *Conn {
	return &Conn{
		sess:   sess,
		rooms:  xsync.NewMapOf[string, struct{}](),
		Values: xsync.NewMapOf[string, any](),
	}
}

func (c *Conn) ID() uint64 {
	return c.sess.ID()
}

func (c *Conn) RemoteAddr() string {
	return c.sess.RemoteAddr()
}

// encodeFrame encodes a frame into a pooled buffer released with its last chunk
func encodeFrame(op OpCode, payload []byte) *buffer.State {
	buf := mcache.Malloc(FrameSize(len(payload)))
	AppendFrame(buf[:0], true, op, payload)
	return buffer.NewState(buf, func(st *buffer.State) {
		mcache.Free(st.Data())
	})
}

// sendState queues the frame held by st
func (c *Conn) sendState(st *buffer.State) bool {
	return c.sess.Send(st.Chunk(0, st.Len()))
}

// WriteMessage sends one unfragmented message
func (c *Conn) WriteMessage(op OpCode, payload []byte) error {
	if c.closing.Load() {
		return ErrConnClosed
	}

	st := encodeFrame(op, payload)
	st.Retain()
	defer st.Release()

	if !c.sendState(st) {
		return ErrConnClosed
	}
	return nil
}

func (c *Conn) WriteText(text string) error {
	return c.WriteMessage(OpText, []byte(text))
}

func (c *Conn) WriteBinary(data []byte) error {
	return c.WriteMessage(OpBinary, data)
}

func (c *Conn) Ping(payload []byte) error {
	return c.WriteMessage(OpPing, payload)
}

// Close sends a close frame and closes the connection once it is written
func (c *Conn) Close(code uint16, reason string) error {
	if c.closing.Swap(true) {
		return nil
	}

	var payload []byte
	if code != CloseNoStatus {
		payload = AppendClosePayload(make([]byte, 0, 2+len(reason)), code, reason)
	}

	st := encodeFrame(OpClose, payload)
	st.Retain()
	c.sendState(st)
	st.Release()

	c.sess.CloseWhenFlushed()
	return nil
}

// Closing reports whether a close frame was sent
func (c *Conn) Closing() bool {
	return c.closing.Load()
}
