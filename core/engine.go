package core

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getlantern/golog"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
	"github.com/searchktools/fast-socket/core/pipeline"
	"github.com/searchktools/fast-socket/core/poller"
	"github.com/searchktools/fast-socket/core/pools"
	"github.com/searchktools/fast-socket/core/sendqueue"
)

var log = golog.LoggerFor("fastsocket.core")

// Protocol binds a receive filter to a package handler
type Protocol[P any] struct {
	Name string
	// NewFilter creates the first filter of every session
	NewFilter func() filter.ReceiveFilter[P]
	// Handle runs on the event loop for every framed package
	Handle func(s *Session[P], pkg P)

	OnConnected func(s *Session[P])
	OnClosed    func(s *Session[P], reason string)
}

// Options configure an engine
type Options struct {
	ReceiveBufferSize int
	MinPoolSize       int
	MaxPoolSize       int
	SendingQueueSize  int
	MaxPackageLength  int
	IdleTimeout       time.Duration
	Workers           int
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		ReceiveBufferSize: DefaultReceiveBufferSize,
		MinPoolSize:       DefaultMinPoolSize,
		MaxPoolSize:       DefaultMaxPoolSize,
		SendingQueueSize:  DefaultSendingQueueSize,
		MaxPackageLength:  DefaultMaxPackageLength,
		IdleTimeout:       DefaultIdleTimeout,
	}
}

// Engine is a socket server driven by epoll/kqueue. Every session frames its
// input with the protocol's filter on the event loop and writes its output
// from the worker pool.
type Engine[P any] struct {
	protocol Protocol[P]
	opts     Options

	poller   poller.Poller
	sessions *xsync.MapOf[int, *Session[P]]
	count    *xsync.Counter
	nextID   atomic.Uint64

	segments *pools.SmartPool[*buffer.State]
	queues   *pools.SmartPool[*sendqueue.Queue]
	workers  *pools.WorkerPool
	metrics  *engineMetrics

	closing chan int
	ready   chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	addr    net.Addr
	stop    sync.Once
}

// NewEngine creates an engine for protocol
func NewEngine[P any](protocol Protocol[P], opts Options) (*Engine[P], error) {
	if protocol.NewFilter == nil || protocol.Handle == nil {
		return nil, fmt.Errorf("%w: protocol needs a filter and a handler", ErrInvalidOption)
	}
	if protocol.Name == "" {
		protocol.Name = "default"
	}

	segments, err := pools.NewSegmentPool(opts.ReceiveBufferSize, opts.MinPoolSize, opts.MaxPoolSize)
	if err != nil {
		return nil, fmt.Errorf("receive buffer pool: %w", err)
	}

	queues, err := sendqueue.NewPool(opts.SendingQueueSize, opts.MinPoolSize, opts.MaxPoolSize)
	if err != nil {
		return nil, fmt.Errorf("sending queue pool: %w", err)
	}

	e := &Engine[P]{
		protocol: protocol,
		opts:     opts,
		sessions: xsync.NewMapOf[int, *Session[P]](),
		count:    xsync.NewCounter(),
		segments: segments,
		queues:   queues,
		workers:  pools.NewWorkerPool(opts.Workers),
		closing:  make(chan int, 1024),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.metrics = newEngineMetrics(e)

	log.Debugf("%s engine: %d byte receive buffers, pools %d..%d, %d slot sending queues",
		protocol.Name, opts.ReceiveBufferSize, opts.MinPoolSize, opts.MaxPoolSize, opts.SendingQueueSize)

	return e, nil
}

// Ready is closed once the engine listens
func (e *Engine[P]) Ready() <-chan struct{} {
	return e.ready
}

// Addr returns the listening address, valid after Ready
func (e *Engine[P]) Addr() net.Addr {
	return e.addr
}

// SessionCount returns the number of open sessions
func (e *Engine[P]) SessionCount() int {
	return int(e.count.Value())
}

// Session returns the open session on fd
func (e *Engine[P]) Session(fd int) (*Session[P], bool) {
	return e.sessions.Load(fd)
}

// Run listens on addr and serves until Shutdown
func (e *Engine[P]) Run(addr string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	defer close(e.done)

	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}

	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	lnFile, err := ln.File()
	if err != nil {
		return err
	}
	defer lnFile.Close()
	lfd := int(lnFile.Fd())

	if err := syscall.SetNonblock(lfd, true); err != nil {
		return err
	}

	e.poller, err = poller.NewPoller()
	if err != nil {
		return err
	}
	defer e.poller.Close()

	if err := e.poller.Add(lfd); err != nil {
		return err
	}

	e.addr = ln.Addr()
	close(e.ready)
	log.Debugf("%s engine listening on %s", e.protocol.Name, e.addr)

	go e.cleanupIdleSessions()

	events := make([]poller.Event, 0, 1024)
	for !e.closed.Load() {
		events, err = e.poller.Wait(pollTimeout, events[:0])
		if err != nil {
			log.Errorf("poller wait: %v", err)
			continue
		}

		for _, ev := range events {
			if ev.Fd == lfd {
				e.acceptSessions(lfd)
				continue
			}

			e.handleEvent(ev)
		}

		e.drainClosing()
	}

	e.sessions.Range(func(_ int, s *Session[P]) bool {
		e.closeSession(s, "shutdown")
		return true
	})
	e.workers.Close()

	return nil
}

// Shutdown stops the event loop and closes every session
func (e *Engine[P]) Shutdown(ctx context.Context) error {
	e.stop.Do(func() {
		e.closed.Store(true)
	})

	select {
	case <-e.ready:
	default:
		// never started
		return nil
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine[P]) acceptSessions(lfd int) {
	for {
		nfd, sa, err := syscall.Accept(lfd)
		if err != nil {
			if err != syscall.EAGAIN && err != syscall.EWOULDBLOCK {
				log.Errorf("accept: %v", err)
			}
			return
		}

		if err := syscall.SetNonblock(nfd, true); err != nil {
			syscall.Close(nfd)
			continue
		}

		syscall.SetsockoptInt(nfd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
		syscall.SetsockoptInt(nfd, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)

		q, ok := e.queues.TryGet()
		if !ok {
			log.Debugf("no sending queue available, refusing connection")
			e.metrics.refused.Inc()
			syscall.Close(nfd)
			continue
		}
		q.StartEnqueue()

		s := &Session[P]{
			id:         e.nextID.Add(1),
			fd:         nfd,
			remoteAddr: sockaddrString(sa),
			engine:     e,
		}
		s.queue.Store(q)
		s.touch()
		s.processor = pipeline.New[P](pipeline.HandlerFunc[P](func(pkg P) {
			e.metrics.packages.Inc()
			e.protocol.Handle(s, pkg)
		}), e.protocol.NewFilter(),
			pipeline.WithMaxPackageLength(e.opts.MaxPackageLength),
			pipeline.OnNewReceiveBufferRequired(s.renewSegment),
		)

		if err := e.poller.Add(nfd); err != nil {
			s.dropQueue()
			syscall.Close(nfd)
			continue
		}

		e.sessions.Store(nfd, s)
		e.count.Inc()
		e.metrics.opened.Inc()

		if e.protocol.OnConnected != nil {
			e.protocol.OnConnected(s)
		}
	}
}

func (e *Engine[P]) handleEvent(ev poller.Event) {
	s, ok := e.sessions.Load(ev.Fd)
	if !ok {
		return
	}

	if ev.Hangup {
		e.closeSession(s, "hangup")
		return
	}

	s.touch()
	e.handleRead(s)
}

func (e *Engine[P]) handleRead(s *Session[P]) {
	seg, ok := s.receiveSegment()
	if !ok {
		// level-triggered: the descriptor is reported again on the next wait
		e.metrics.backpressure.Inc()
		log.Debugf("session %d: receive buffer pool exhausted", s.id)
		return
	}

	data := seg.Data()
	n, err := syscall.Read(s.fd, data)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || err == syscall.EINTR {
			return
		}
		e.closeSession(s, err.Error())
		return
	}

	if n == 0 {
		e.closeSession(s, "closed by peer")
		return
	}

	e.metrics.bytesIn.Add(n)

	result := s.processor.Process(seg.Chunk(0, n))
	if result.State == pipeline.Error {
		e.metrics.protocolErrors.Inc()
		log.Debugf("session %d: %s", s.id, result.Message)
		e.closeSession(s, result.Message)
	}
}

// requestClose hands a close to the event loop
func (e *Engine[P]) requestClose(fd int) {
	select {
	case e.closing <- fd:
	default:
		log.Debugf("close queue full, fd %d closes on its next event", fd)
	}
}

func (e *Engine[P]) drainClosing() {
	for {
		select {
		case fd := <-e.closing:
			if s, ok := e.sessions.Load(fd); ok {
				e.closeSession(s, "closed")
			}
		default:
			return
		}
	}
}

// closeSession runs on the event loop
func (e *Engine[P]) closeSession(s *Session[P], reason string) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	e.sessions.Delete(s.fd)
	e.poller.Remove(s.fd)
	syscall.Close(s.fd)

	s.processor.Close()
	s.renewSegment()

	// the flusher recycles the queue itself when it owns it
	if s.sending.CompareAndSwap(false, true) {
		s.dropQueue()
	}

	e.count.Dec()
	e.metrics.closed.Inc()

	if e.protocol.OnClosed != nil {
		e.protocol.OnClosed(s, reason)
	}
}

// cleanupIdleSessions periodically closes sessions idle for too long
func (e *Engine[P]) cleanupIdleSessions() {
	if e.opts.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
		}

		deadline := time.Now().Add(-e.opts.IdleTimeout).UnixNano()
		e.sessions.Range(func(fd int, s *Session[P]) bool {
			if s.lastActive.Load() < deadline {
				e.metrics.idleClosed.Inc()
				e.requestClose(fd)
			}
			return true
		})
	}
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *syscall.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	default:
		return ""
	}
}
