package sse

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("sse: stream closed")

// Sender is the connection events are written to. core.Session and the
// http.Conn of a handler satisfy it.
type Sender interface {
	SendBytes(p []byte) bool
}

// Writer writes events to one client
type Writer struct {
	conn   Sender
	nextID atomic.Int64
	closed atomic.Bool

	mu  sync.Mutex
	buf []byte
}

func NewWriter(conn Sender) *Writer {
	return &Writer{conn: conn}
}

// Send writes ev, numbering it when it has no ID
func (w *Writer) Send(ev Event) error {
	if ev.Data == "" {
		return ErrEmptyData
	}
	if ev.ID == "" {
		ev.ID = strconv.FormatInt(w.nextID.Add(1), 10)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = AppendEvent(w.buf[:0], ev)
	return w.write(w.buf)
}

// SendData writes an unnamed event
func (w *Writer) SendData(data string) error {
	return w.Send(Event{Data: data})
}

// SendJSON writes v encoded as JSON, eventType defaults to "json"
func (w *Writer) SendJSON(eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if eventType == "" {
		eventType = "json"
	}
	return w.Send(Event{Event: eventType, Data: string(data)})
}

// Heartbeat writes a comment that keeps idle proxies from dropping the stream
func (w *Writer) Heartbeat() error {
	return w.write(heartbeat)
}

// Close sends the close event. Later sends fail with ErrClosed.
func (w *Writer) Close() error {
	if err := w.Send(Event{Event: "close", Data: "close"}); err != nil {
		return err
	}
	w.closed.Store(true)

	if c, ok := w.conn.(interface{ CloseWhenFlushed() }); ok {
		c.CloseWhenFlushed()
	}
	return nil
}

func (w *Writer) write(p []byte) error {
	if w.closed.Load() || !w.conn.SendBytes(p) {
		return ErrClosed
	}
	return nil
}
