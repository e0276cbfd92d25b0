package core

import (
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/pipeline"
	"github.com/searchktools/fast-socket/core/sendqueue"
)

// Session is one accepted connection
type Session[P any] struct {
	id         uint64
	fd         int
	remoteAddr string
	engine     *Engine[P]

	// receive side, owned by the event loop
	processor *pipeline.Processor[P]
	segment   *buffer.State

	// send side
	queue   atomic.Pointer[sendqueue.Queue]
	sending atomic.Bool

	lastActive atomic.Int64
	closed     atomic.Bool
	// closeFlushed closes the session once the queue is drained
	closeFlushed atomic.Bool
}

// ID returns the session id
func (s *Session[P]) ID() uint64 {
	return s.id
}

// RemoteAddr returns the peer address
func (s *Session[P]) RemoteAddr() string {
	return s.remoteAddr
}

// LastActive returns the time of the last receive
func (s *Session[P]) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Closed reports whether the session is closed
func (s *Session[P]) Closed() bool {
	return s.closed.Load()
}

func (s *Session[P]) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Send queues chunks to be written in order. It is safe for concurrent use
// and returns false when the session is closed, stays congested or a chunk
// carries no data.
func (s *Session[P]) Send(chunks ...buffer.Chunk) bool {
	for _, c := range chunks {
		if c.Data == nil {
			return false
		}
	}

	// hold the states while retrying so a rejected attempt cannot free them
	for _, c := range chunks {
		if c.State != nil {
			c.State.Retain()
		}
	}
	defer func() {
		for _, c := range chunks {
			if c.State != nil {
				c.State.Release()
			}
		}
	}()

	for attempt := 0; attempt < sendAttempts; attempt++ {
		if s.closed.Load() {
			return false
		}

		q := s.queue.Load()
		if q == nil {
			return false
		}

		id := q.TrackID()
		if s.queue.Load() != q {
			continue
		}

		if q.EnqueueAll(chunks, id) {
			s.startSend()
			return true
		}

		s.startSend()
		runtime.Gosched()
	}

	s.engine.metrics.sendRejected.Inc()
	return false
}

// SendBytes copies p into a pooled buffer and queues it
func (s *Session[P]) SendBytes(p []byte) bool {
	if len(p) == 0 {
		return !s.closed.Load()
	}

	buf := mcache.Malloc(len(p))
	copy(buf, p)

	st := buffer.NewState(buf, freeSendBuffer)
	return s.Send(st.Chunk(0, len(buf)))
}

func freeSendBuffer(st *buffer.State) {
	mcache.Free(st.Data())
}

// Close asks the event loop to close the session
func (s *Session[P]) Close() {
	s.engine.requestClose(s.fd)
}

// CloseWhenFlushed closes the session after everything queued so far is written
func (s *Session[P]) CloseWhenFlushed() {
	s.closeFlushed.Store(true)

	if !s.sending.Load() {
		if q := s.queue.Load(); q == nil || q.Count() == 0 {
			s.Close()
		}
	}
}

func (s *Session[P]) startSend() {
	if !s.sending.CompareAndSwap(false, true) {
		return
	}

	if !s.engine.workers.Submit(s.flush) {
		s.sending.Store(false)
	}
}

// flush drains the sending queue. It swaps in an empty queue first so
// producers keep enqueueing while the old one is written.
func (s *Session[P]) flush() {
	for {
		if s.closed.Load() {
			s.dropQueue()
			return
		}

		old := s.queue.Load()
		if old == nil || old.Count() == 0 {
			s.sending.Store(false)

			// a producer may have enqueued after the check, or the
			// session closed while we still owned the flag. Once the flag
			// is released old may belong to another flusher, so look at
			// the current queue and drain it only after winning the flag back.
			if q := s.queue.Load(); q != nil && q.Count() > 0 && s.sending.CompareAndSwap(false, true) {
				continue
			}
			if s.closed.Load() && s.sending.CompareAndSwap(false, true) {
				s.dropQueue()
			} else if s.closeFlushed.Load() {
				s.Close()
			}
			return
		}

		fresh, swapped := s.engine.queues.TryGet()
		if swapped {
			fresh.StartEnqueue()
			s.queue.Store(fresh)
		} else {
			s.engine.metrics.queueExhausted.Inc()
		}

		old.StopEnqueue()
		err := s.write(old)
		old.Clear()

		if swapped {
			s.engine.queues.Push(old)
		} else {
			old.StartEnqueue()
		}

		if err != nil {
			log.Debugf("session %d: write failed: %v", s.id, err)
			s.engine.requestClose(s.fd)
		}
	}
}

func (s *Session[P]) write(q *sendqueue.Queue) error {
	var stalled time.Time

	for q.Count() > 0 {
		c := q.At(0)
		n, err := syscall.Write(s.fd, c.Bytes())
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EINTR {
				if stalled.IsZero() {
					stalled = time.Now()
				} else if time.Since(stalled) > writeTimeout {
					return ErrWriteTimeout
				}
				time.Sleep(100 * time.Microsecond)
				continue
			}
			return err
		}

		stalled = time.Time{}
		q.InternalTrim(n)
		s.engine.metrics.bytesOut.Add(n)
	}

	return nil
}

// dropQueue returns the queue to the pool, discarding unsent data
func (s *Session[P]) dropQueue() {
	q := s.queue.Swap(nil)
	if q == nil {
		return
	}

	q.StopEnqueue()
	q.Clear()
	s.engine.queues.Push(q)
}

// receiveSegment returns the segment to read into, taking one from the pool if needed
func (s *Session[P]) receiveSegment() (*buffer.State, bool) {
	if s.segment != nil {
		return s.segment, true
	}

	seg, ok := s.engine.segments.TryGet()
	if !ok {
		return nil, false
	}

	seg.Retain()
	s.segment = seg
	return seg, true
}

// renewSegment gives up the current segment; chunks still cached keep it alive
func (s *Session[P]) renewSegment() {
	if s.segment != nil {
		s.segment.Release()
		s.segment = nil
	}
}
