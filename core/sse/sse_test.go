package sse

import (
	"context"
	"strings"
	"testing"
	"time"
)

type recorder struct {
	out    strings.Builder
	broken bool
	closed bool
}

func (r *recorder) SendBytes(p []byte) bool {
	if r.broken {
		return false
	}
	r.out.Write(p)
	return true
}

func (r *recorder) CloseWhenFlushed() {
	r.closed = true
}

func TestAppendEvent(t *testing.T) {
	got := string(AppendEvent(nil, Event{ID: "7", Event: "update", Data: "a\nb", Retry: 3000}))
	want := "id: 7\nevent: update\nretry: 3000\ndata: a\ndata: b\n\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestWriter(t *testing.T) {
	r := &recorder{}
	w := NewWriter(r)

	if err := w.SendData("one"); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(Event{ID: "x", Data: "two"}); err != nil {
		t.Fatal(err)
	}
	if err := w.SendJSON("", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.Heartbeat(); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(Event{}); err != ErrEmptyData {
		t.Errorf("Expected ErrEmptyData, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := "id: 1\ndata: one\n\n" +
		"id: x\ndata: two\n\n" +
		"id: 2\nevent: json\ndata: {\"n\":1}\n\n" +
		": heartbeat\n\n" +
		"id: 3\nevent: close\ndata: close\n\n"
	if got := r.out.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if !r.closed {
		t.Error("Expected Close to close the connection once flushed")
	}
	if err := w.SendData("late"); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestBroker(t *testing.T) {
	b := NewBroker(2)

	a, c := &recorder{}, &recorder{}
	if err := b.Subscribe("a", NewWriter(a)); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe("c", NewWriter(c)); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe("d", NewWriter(&recorder{})); err != ErrTooManyClients {
		t.Errorf("Expected ErrTooManyClients, got %v", err)
	}

	if n := b.Publish(Event{Data: "hi"}); n != 2 {
		t.Errorf("Expected 2 deliveries, got %d", n)
	}
	if !b.PublishTo("a", Event{Data: "only a"}) || b.PublishTo("zz", Event{Data: "x"}) {
		t.Error("Unexpected PublishTo result")
	}

	c.broken = true
	if n := b.Publish(Event{Data: "again"}); n != 1 {
		t.Errorf("Expected 1 delivery, got %d", n)
	}
	if b.ClientCount() != 1 {
		t.Errorf("Expected the broken client to be dropped, got %d clients", b.ClientCount())
	}

	stats := b.Stats()
	if stats.Published != 2 || stats.Delivered != 4 || stats.Dropped != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if !strings.Contains(a.out.String(), "data: only a\n") {
		t.Errorf("Unexpected stream %q", a.out.String())
	}
}

func TestBrokerHeartbeat(t *testing.T) {
	b := NewBroker(0)
	r := &recorder{}
	b.Subscribe("a", NewWriter(r))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b.Heartbeat(ctx, 10*time.Millisecond)

	if !strings.HasPrefix(r.out.String(), ": heartbeat\n\n") {
		t.Errorf("Expected heartbeats, got %q", r.out.String())
	}
}
