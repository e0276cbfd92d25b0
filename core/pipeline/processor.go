// Package pipeline drives a receive filter over the chunks of one connection
// and hands every framed package to a handler.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/getlantern/golog"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
)

var log = golog.LoggerFor("fastsocket.pipeline")

var ErrProcessorClosed = errors.New("pipeline: processor closed")

// State is the outcome of processing one chunk
type State int

const (
	// Completed means the chunk is fully consumed and its buffer may be reused
	Completed State = iota
	// Cached means bytes of the chunk are still referenced; the caller must
	// receive into a new buffer
	Cached
	// Error means the stream is invalid and the connection should be closed
	Error
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Cached:
		return "cached"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result of Process
type Result struct {
	State   State
	Message string
}

// Handler receives framed packages
type Handler[P any] interface {
	Handle(pkg P)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc[P any] func(pkg P)

// Handle calls f(pkg)
func (f HandlerFunc[P]) Handle(pkg P) {
	f(pkg)
}

// RawPackage is a package that keeps the buffer list it was framed from.
// The processor does not clear such a list; the package owns it.
type RawPackage interface {
	Buffer() *buffer.List
}

// Options configure a processor
type Options struct {
	// MaxPackageLength fails a stream whose pending package grows beyond it, 0 disables the check
	MaxPackageLength int
	// NewReceiveBufferRequired is called whenever Process returns Cached
	NewReceiveBufferRequired func()
}

// Option sets a processor option
type Option func(*Options)

// WithMaxPackageLength limits the size of a package
func WithMaxPackageLength(n int) Option {
	return func(o *Options) {
		o.MaxPackageLength = n
	}
}

// OnNewReceiveBufferRequired registers the callback fired with every Cached result
func OnNewReceiveBufferRequired(fn func()) Option {
	return func(o *Options) {
		o.NewReceiveBufferRequired = fn
	}
}

// Processor frames the chunks of one connection
type Processor[P any] struct {
	handler Handler[P]
	filter  filter.ReceiveFilter[P]
	cache   *buffer.List
	opts    Options
	closed  bool
}

// New creates a processor starting with filter f
func New[P any](handler Handler[P], f filter.ReceiveFilter[P], opts ...Option) *Processor[P] {
	p := &Processor[P]{
		handler: handler,
		filter:  f,
		cache:   buffer.NewList(),
	}

	for _, opt := range opts {
		opt(&p.opts)
	}
	return p
}

// Filter returns the active filter
func (p *Processor[P]) Filter() filter.ReceiveFilter[P] {
	return p.filter
}

// Cache returns the chunks of the package being framed
func (p *Processor[P]) Cache() *buffer.List {
	return p.cache
}

// Process feeds a received chunk to the filter, repeatedly, until it is consumed
func (p *Processor[P]) Process(chunk buffer.Chunk) Result {
	if p.closed {
		return Result{State: Error, Message: ErrProcessorClosed.Error()}
	}

	p.cache.Add(chunk)
	retained := false

	for {
		pkg, ok, rest := p.filter.Filter(p.cache)

		if p.filter.State() == filter.StateError {
			msg := "receive filter in error state"
			if e, isErr := p.filter.(interface{ Err() error }); isErr && e.Err() != nil {
				msg = e.Err().Error()
			}
			p.cache.Clear()
			return Result{State: Error, Message: msg}
		}

		if limit := p.opts.MaxPackageLength; limit > 0 {
			if total := p.cache.Total(); total > limit {
				p.cache.Clear()
				return Result{
					State:   Error,
					Message: fmt.Sprintf("max package length: %d, current processed length: %d", limit, total),
				}
			}
		}

		if !ok {
			// a filter may hand the rest of the stream to another one
			// without producing a package; what it framed so far is consumed
			if next := p.filter.Next(); next != nil {
				p.filter.Reset()
				p.filter = next
				p.cache.Clear()
			}

			if rest > 0 {
				p.pushRest(chunk, rest)
				continue
			}

			if p.cache.Total() == 0 && !retained {
				return Result{State: Completed}
			}
			return p.cached()
		}

		next := p.filter.Next()
		p.filter.Reset()
		if next != nil {
			p.filter = next
		}

		p.handler.Handle(pkg)

		if raw, isRaw := any(pkg).(RawPackage); isRaw && raw.Buffer() == p.cache {
			p.cache = buffer.NewList()
			retained = true
		} else {
			p.cache.Clear()
		}

		if rest <= 0 {
			if retained {
				return p.cached()
			}
			return Result{State: Completed}
		}

		p.pushRest(chunk, rest)
	}
}

// pushRest queues the trailing rest bytes of chunk as a new chunk
func (p *Processor[P]) pushRest(chunk buffer.Chunk, rest int) {
	p.cache.Add(chunk.Slice(chunk.Length-rest, rest))
}

func (p *Processor[P]) cached() Result {
	if fn := p.opts.NewReceiveBufferRequired; fn != nil {
		fn()
	}
	return Result{State: Cached}
}

// Close releases the pending chunks; later calls to Process fail
func (p *Processor[P]) Close() {
	if p.closed {
		return
	}

	p.closed = true
	if n := p.cache.Total(); n > 0 {
		log.Debugf("dropping %d pending bytes", n)
	}
	p.cache.Clear()
}
