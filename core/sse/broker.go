package sse

import (
	"context"
	"errors"
	"time"

	"github.com/getlantern/golog"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = golog.LoggerFor("fastsocket.sse")

var ErrTooManyClients = errors.New("sse: max clients reached")

// Broker fans events out to subscribed writers
type Broker struct {
	clients    *xsync.MapOf[string, *Writer]
	maxClients int

	published *xsync.Counter
	delivered *xsync.Counter
	dropped   *xsync.Counter
}

// NewBroker creates a broker, maxClients <= 0 means 10000
func NewBroker(maxClients int) *Broker {
	if maxClients <= 0 {
		maxClients = 10000
	}

	return &Broker{
		clients:    xsync.NewMapOf[string, *Writer](),
		maxClients: maxClients,
		published:  xsync.NewCounter(),
		delivered:  xsync.NewCounter(),
		dropped:    xsync.NewCounter(),
	}
}

// Subscribe registers w under id, replacing a previous writer with the same id
func (b *Broker) Subscribe(id string, w *Writer) error {
	if _, exists := b.clients.Load(id); !exists && b.clients.Size() >= b.maxClients {
		return ErrTooManyClients
	}
	b.clients.Store(id, w)
	return nil
}

func (b *Broker) Unsubscribe(id string) {
	b.clients.Delete(id)
}

// Publish sends ev to every client and returns the number reached. Clients
// whose connection is gone are unsubscribed.
func (b *Broker) Publish(ev Event) int {
	b.published.Inc()

	n := 0
	b.clients.Range(func(id string, w *Writer) bool {
		if b.deliver(id, w, ev) {
			n++
		}
		return true
	})
	return n
}

// PublishTo sends ev to one client
func (b *Broker) PublishTo(id string, ev Event) bool {
	w, ok := b.clients.Load(id)
	if !ok {
		return false
	}
	return b.deliver(id, w, ev)
}

func (b *Broker) deliver(id string, w *Writer, ev Event) bool {
	if err := w.Send(ev); err != nil {
		b.dropped.Inc()
		if errors.Is(err, ErrClosed) {
			log.Debugf("client %s gone, unsubscribing", id)
			b.clients.Delete(id)
		}
		return false
	}
	b.delivered.Inc()
	return true
}

// Heartbeat writes a heartbeat to every client every interval until ctx is done
func (b *Broker) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.clients.Range(func(id string, w *Writer) bool {
				if w.Heartbeat() != nil {
					b.clients.Delete(id)
				}
				return true
			})
		}
	}
}

func (b *Broker) ClientCount() int {
	return b.clients.Size()
}

// Stats of a broker
type Stats struct {
	Clients   int   `json:"clients"`
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

func (b *Broker) Stats() Stats {
	return Stats{
		Clients:   b.clients.Size(),
		Published: b.published.Value(),
		Delivered: b.delivered.Value(),
		Dropped:   b.dropped.Value(),
	}
}
