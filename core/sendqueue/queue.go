// Package sendqueue implements the per-session outbound queue: a fixed-capacity
// window of chunk slots that many producers fill concurrently without locks
// and one flusher drains.
package sendqueue

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/searchktools/fast-socket/core/buffer"
)

// atSpinCount bounds the wait for a reserved slot to be written
const atSpinCount = 50

// Queue is a window of a shared slot array.
//
// Items must carry data: a nil Data marks a reserved slot not yet written,
// so such items are rejected. Producers reserve slots with a CAS on the
// count and then fill them. A
// flusher calls StopEnqueue, which rejects new producers and waits for the
// in-flight ones, before reading. Clear bumps the track ID so producers still
// holding the old ID are rejected once the queue is reused.
type Queue struct {
	global   []buffer.Chunk
	offset   int
	capacity int

	_        cpu.CacheLinePad
	count    atomic.Int32
	_        cpu.CacheLinePad
	updating atomic.Int32
	readOnly atomic.Bool
	trackID  atomic.Uint32

	// advanced by the flusher, read by Count from any goroutine
	inner atomic.Int32

	// flusher side
	position int
}

// New creates a queue over global[offset:offset+capacity]
func New(global []buffer.Chunk, offset, capacity int) *Queue {
	q := &Queue{
		global:   global,
		offset:   offset,
		capacity: capacity,
	}
	q.trackID.Store(1)
	return q
}

// TrackID returns the current generation of the queue
func (q *Queue) TrackID() uint16 {
	return uint16(q.trackID.Load())
}

// Capacity returns the number of slots
func (q *Queue) Capacity() int {
	return q.capacity
}

// Count returns the number of reserved slots not yet trimmed away
func (q *Queue) Count() int {
	n := int(q.count.Load() - q.inner.Load())
	if n < 0 {
		// Clear is resetting the queue
		return 0
	}
	return n
}

// ReadOnly reports whether enqueueing is stopped
func (q *Queue) ReadOnly() bool {
	return q.readOnly.Load()
}

// Position is a flusher-side cursor, free for the caller's bookkeeping
func (q *Queue) Position() int {
	return q.position
}

// SetPosition sets the flusher-side cursor
func (q *Queue) SetPosition(pos int) {
	q.position = pos
}

// Enqueue adds item if the queue is writable, has room and still carries trackID.
// The queue retains the item's state until Clear.
func (q *Queue) Enqueue(item buffer.Chunk, trackID uint16) bool {
	if item.Data == nil || q.readOnly.Load() {
		return false
	}

	if item.State != nil {
		item.State.Retain()
	}

	q.updating.Add(1)
	start, ok := q.reserve(1, trackID)
	if ok {
		q.global[q.offset+start] = item
	}
	q.updating.Add(-1)

	if !ok && item.State != nil {
		item.State.Release()
	}
	return ok
}

// EnqueueAll adds all items contiguously, or none of them
func (q *Queue) EnqueueAll(items []buffer.Chunk, trackID uint16) bool {
	if len(items) == 0 {
		return true
	}
	if q.readOnly.Load() {
		return false
	}
	for _, item := range items {
		if item.Data == nil {
			return false
		}
	}

	for _, item := range items {
		if item.State != nil {
			item.State.Retain()
		}
	}

	q.updating.Add(1)
	start, ok := q.reserve(len(items), trackID)
	if ok {
		copy(q.global[q.offset+start:], items)
	}
	q.updating.Add(-1)

	if !ok {
		for _, item := range items {
			if item.State != nil {
				item.State.Release()
			}
		}
	}
	return ok
}

// reserve claims n consecutive slots and returns the first one
func (q *Queue) reserve(n int, trackID uint16) (int, bool) {
	for {
		old := q.count.Load()
		if int(old)+n > q.capacity {
			return 0, false
		}

		if q.readOnly.Load() || uint16(q.trackID.Load()) != trackID {
			return 0, false
		}

		if q.count.CompareAndSwap(old, old+int32(n)) {
			return int(old), true
		}
	}
}

// StopEnqueue rejects new producers and waits until in-flight ones finish.
// It reports false if the queue was already read-only.
func (q *Queue) StopEnqueue() bool {
	if !q.readOnly.CompareAndSwap(false, true) {
		return false
	}

	for q.updating.Load() != 0 {
		runtime.Gosched()
	}
	return true
}

// StartEnqueue accepts producers again
func (q *Queue) StartEnqueue() {
	q.readOnly.Store(false)
}

// At returns the i-th remaining item. A reserved slot whose producer has not
// written it yet is waited for briefly.
func (q *Queue) At(i int) buffer.Chunk {
	idx := q.offset + int(q.inner.Load()) + i

	item := q.global[idx]
	for spin := 0; item.Data == nil && spin < atSpinCount; spin++ {
		runtime.Gosched()
		item = q.global[idx]
	}
	return item
}

// Chunks returns the remaining items. Call it only after StopEnqueue.
func (q *Queue) Chunks() []buffer.Chunk {
	return q.global[q.offset+int(q.inner.Load()) : q.offset+int(q.count.Load())]
}

// InternalTrim drops the first sent bytes of the remaining items. A partially
// sent item is narrowed to its unsent tail.
func (q *Queue) InternalTrim(sent int) {
	count := int(q.count.Load())
	subTotal := 0

	for i := int(q.inner.Load()); i < count; i++ {
		slot := &q.global[q.offset+i]
		subTotal += slot.Length
		if subTotal <= sent {
			continue
		}

		q.inner.Store(int32(i))
		rest := subTotal - sent
		slot.Offset += slot.Length - rest
		slot.Length = rest
		return
	}

	q.inner.Store(int32(count))
}

// Clear releases every item, empties the queue and starts a new generation.
// The queue stays read-only until StartEnqueue.
func (q *Queue) Clear() {
	next := q.trackID.Load() + 1
	if next > 0xffff {
		next = 1
	}
	q.trackID.Store(next)

	count := int(q.count.Load())
	for i := 0; i < count; i++ {
		slot := &q.global[q.offset+i]
		if slot.State != nil {
			slot.State.Release()
		}
		*slot = buffer.Chunk{}
	}

	q.inner.Store(0)
	q.count.Store(0)
	q.position = 0
}
