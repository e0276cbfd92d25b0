package sendqueue

import (
	"sync"
	"testing"

	"github.com/searchktools/fast-socket/core/buffer"
)

func chunkOf(s string) buffer.Chunk {
	return buffer.NewChunk([]byte(s), 0, len(s))
}

func newQueue(capacity int) *Queue {
	return New(make([]buffer.Chunk, capacity), 0, capacity)
}

func TestQueueEnqueueCapacity(t *testing.T) {
	q := newQueue(3)
	id := q.TrackID()

	for i := 0; i < 3; i++ {
		if !q.Enqueue(chunkOf("x"), id) {
			t.Fatalf("Enqueue %d failed", i)
		}
	}

	if q.Enqueue(chunkOf("x"), id) {
		t.Error("Enqueue must fail on a full queue")
	}
	if q.Count() != 3 {
		t.Errorf("Expected count 3, got %d", q.Count())
	}
}

func TestQueueEnqueueAllIsAtomic(t *testing.T) {
	q := newQueue(4)
	id := q.TrackID()

	q.Enqueue(chunkOf("a"), id)
	batch := []buffer.Chunk{chunkOf("b"), chunkOf("c"), chunkOf("d"), chunkOf("e")}

	if q.EnqueueAll(batch, id) {
		t.Error("EnqueueAll must fail when the batch does not fit")
	}
	if q.Count() != 1 {
		t.Errorf("Failed batch must not reserve slots, count %d", q.Count())
	}

	if !q.EnqueueAll(batch[:3], id) {
		t.Fatal("EnqueueAll failed")
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if got := string(q.At(i).Bytes()); got != want {
			t.Errorf("Slot %d: expected %q, got %q", i, want, got)
		}
	}
}

func TestQueueStaleTrackID(t *testing.T) {
	q := newQueue(4)
	stale := q.TrackID()

	q.StopEnqueue()
	q.Clear()
	q.StartEnqueue()

	if q.TrackID() == stale {
		t.Fatal("Clear must change the track ID")
	}
	if q.Enqueue(chunkOf("late"), stale) {
		t.Error("Enqueue with a stale track ID must fail")
	}
	if q.Count() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Count())
	}
	if !q.Enqueue(chunkOf("fresh"), q.TrackID()) {
		t.Error("Enqueue with the current track ID failed")
	}
}

func TestQueueTrackIDWraps(t *testing.T) {
	q := newQueue(1)
	q.trackID.Store(0xffff)

	q.Clear()
	if q.TrackID() != 1 {
		t.Errorf("Expected track ID to wrap to 1, got %d", q.TrackID())
	}
}

func TestQueueStopEnqueue(t *testing.T) {
	q := newQueue(4)
	id := q.TrackID()

	if !q.StopEnqueue() {
		t.Fatal("First StopEnqueue must succeed")
	}
	if q.StopEnqueue() {
		t.Error("Second StopEnqueue must report the queue already stopped")
	}
	if q.Enqueue(chunkOf("x"), id) {
		t.Error("Enqueue on a read-only queue must fail")
	}

	q.StartEnqueue()
	if !q.Enqueue(chunkOf("x"), id) {
		t.Error("Enqueue after StartEnqueue failed")
	}
}

func TestQueueInternalTrim(t *testing.T) {
	q := newQueue(4)
	id := q.TrackID()
	q.EnqueueAll([]buffer.Chunk{chunkOf("hello"), chunkOf("world"), chunkOf("!")}, id)

	q.InternalTrim(7)
	if q.Count() != 2 {
		t.Fatalf("Expected 2 remaining items, got %d", q.Count())
	}
	if got := string(q.At(0).Bytes()); got != "rld" {
		t.Errorf("Expected 'rld', got %q", got)
	}

	q.InternalTrim(3)
	if q.Count() != 1 || string(q.At(0).Bytes()) != "!" {
		t.Errorf("Expected only '!' left, got %d items", q.Count())
	}

	q.InternalTrim(1)
	if q.Count() != 0 {
		t.Errorf("Expected nothing left, got %d", q.Count())
	}
}

func TestQueueClearReleasesStates(t *testing.T) {
	released := 0
	state := buffer.NewState([]byte("payload"), func(*buffer.State) { released++ })

	q := newQueue(2)
	q.Enqueue(state.Chunk(0, 7), q.TrackID())
	if state.RefCount() != 1 {
		t.Errorf("Expected the queue to hold one reference, got %d", state.RefCount())
	}

	q.StopEnqueue()
	q.Clear()
	if released != 1 {
		t.Errorf("Expected state released by Clear, got %d", released)
	}
}

func TestQueueRejectedItemIsNotRetained(t *testing.T) {
	state := buffer.NewState([]byte("x"), nil)

	q := newQueue(1)
	q.StopEnqueue()
	q.Enqueue(state.Chunk(0, 1), q.TrackID())

	if state.RefCount() != 0 {
		t.Errorf("Rejected item still referenced: %d", state.RefCount())
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100

	q := newQueue(producers * perProducer)
	id := q.TrackID()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				data := []byte{byte(p), byte(i)}
				if !q.Enqueue(buffer.NewChunk(data, 0, 2), id) {
					t.Errorf("Enqueue failed for producer %d item %d", p, i)
				}
			}
		}(p)
	}
	wg.Wait()

	q.StopEnqueue()
	if q.Count() != producers*perProducer {
		t.Fatalf("Expected %d items, got %d", producers*perProducer, q.Count())
	}

	// every item exactly once, and each producer's items in its own order
	next := make([]int, producers)
	for _, c := range q.Chunks() {
		b := c.Bytes()
		p, i := int(b[0]), int(b[1])
		if i != next[p] {
			t.Fatalf("Producer %d: expected item %d, got %d", p, next[p], i)
		}
		next[p]++
	}
	for p, n := range next {
		if n != perProducer {
			t.Errorf("Producer %d: expected %d items, got %d", p, perProducer, n)
		}
	}
}

func TestPoolPartitionsSlots(t *testing.T) {
	pool, err := NewPool(2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := pool.TryGet()
	b, _ := pool.TryGet()

	a.EnqueueAll([]buffer.Chunk{chunkOf("a1"), chunkOf("a2")}, a.TrackID())
	b.EnqueueAll([]buffer.Chunk{chunkOf("b1"), chunkOf("b2")}, b.TrackID())

	if string(a.At(1).Bytes()) != "a2" || string(b.At(0).Bytes()) != "b1" {
		t.Error("Queues from one source overlap")
	}
	if a.Enqueue(chunkOf("a3"), a.TrackID()) {
		t.Error("Queue wrote past its window")
	}
}

func TestQueueRejectsChunksWithoutData(t *testing.T) {
	q := newQueue(4)
	id := q.TrackID()

	if q.Enqueue(buffer.Chunk{}, id) {
		t.Error("Enqueue must reject a chunk without data")
	}
	if q.EnqueueAll([]buffer.Chunk{chunkOf("a"), {}}, id) {
		t.Error("EnqueueAll must reject a batch containing a chunk without data")
	}
	if q.Count() != 0 {
		t.Errorf("Rejected items must not reserve slots, count %d", q.Count())
	}

	// an empty but non-nil chunk is data
	if !q.Enqueue(buffer.NewChunk([]byte{}, 0, 0), id) {
		t.Error("Enqueue of an empty chunk failed")
	}
}

func TestQueueCountWhileFlushing(t *testing.T) {
	q := newQueue(8)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if n := q.Count(); n < 0 || n > q.Capacity() {
					t.Errorf("Count out of range: %d", n)
					return
				}
			}
		}()
	}

	for round := 0; round < 1000; round++ {
		q.StartEnqueue()
		id := q.TrackID()
		q.EnqueueAll([]buffer.Chunk{chunkOf("ab"), chunkOf("cd"), chunkOf("e")}, id)

		q.StopEnqueue()
		q.InternalTrim(3)
		q.InternalTrim(2)
		q.Clear()
	}

	close(done)
	wg.Wait()
}
