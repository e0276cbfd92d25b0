package pools

import (
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// spinCount bounds how long a getter waits for a concurrent push or growth
const spinCount = 100

var ErrInvalidPoolSize = errors.New("pools: invalid pool size")

// Source is a block of memory a batch of pooled items was carved from
type Source interface {
	Count() int
}

// SourceCreator allocates a source holding size items
type SourceCreator[T any] interface {
	Create(size int) (Source, []T)
}

// SourceCreatorFunc adapts a function to SourceCreator
type SourceCreatorFunc[T any] func(size int) (Source, []T)

// Create calls f(size)
func (f SourceCreatorFunc[T]) Create(size int) (Source, []T) {
	return f(size)
}

// SliceSource is a Source backed by a single allocation
type SliceSource struct {
	Memory any
	Items  int
}

// Count returns the number of items carved from the source
func (s *SliceSource) Count() int {
	return s.Items
}

type node[T any] struct {
	value T
	next  *node[T]
}

// SmartPool is a bounded, growable, lock-free object pool.
//
// It starts with minSize items and grows by allocating whole sources, each as
// large as everything allocated so far, until maxSize items exist. Items are
// never created one by one and the pool never shrinks.
type SmartPool[T any] struct {
	head      atomic.Pointer[node[T]]
	_         cpu.CacheLinePad
	available atomic.Int64
	_         cpu.CacheLinePad
	growing   atomic.Bool
	total     atomic.Int64

	sources     []Source
	sourceCount atomic.Int32
	creator     SourceCreator[T]
	minSize     int
	maxSize     int

	// Statistics
	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
	grows  atomic.Uint64
}

// NewSmartPool creates and initializes a pool
func NewSmartPool[T any](minSize, maxSize int, creator SourceCreator[T]) (*SmartPool[T], error) {
	p := &SmartPool[T]{}
	if err := p.Initialize(minSize, maxSize, creator); err != nil {
		return nil, err
	}
	return p, nil
}

// Initialize allocates the first source with minSize items and reserves room
// for the sources needed to reach maxSize by doubling
func (p *SmartPool[T]) Initialize(minSize, maxSize int, creator SourceCreator[T]) error {
	if minSize <= 0 || maxSize < minSize || creator == nil {
		return ErrInvalidPoolSize
	}

	n := 0
	if minSize != maxSize {
		current := minSize
		for {
			n++
			next := current * 2
			if next >= maxSize {
				break
			}
			current = next
		}
	}

	p.minSize = minSize
	p.maxSize = maxSize
	p.creator = creator
	p.sources = make([]Source, n+1)

	source, items := creator.Create(minSize)
	p.sources[0] = source
	p.sourceCount.Store(1)
	p.total.Store(int64(len(items)))

	for _, item := range items {
		p.push(item)
	}

	return nil
}

func (p *SmartPool[T]) push(item T) {
	n := &node[T]{value: item}
	for {
		top := p.head.Load()
		n.next = top
		if p.head.CompareAndSwap(top, n) {
			p.available.Add(1)
			return
		}
	}
}

// pop never sees an ABA swap: popped nodes are dropped, pushes allocate fresh ones
func (p *SmartPool[T]) pop() (T, bool) {
	for {
		top := p.head.Load()
		if top == nil {
			var zero T
			return zero, false
		}

		if p.head.CompareAndSwap(top, top.next) {
			p.available.Add(-1)
			return top.value, true
		}
	}
}

// Push returns an item to the pool
func (p *SmartPool[T]) Push(item T) {
	p.puts.Add(1)
	p.push(item)
}

// TryGet takes an item, growing the pool when it is empty and still below
// its maximum. It reports false when nothing could be obtained.
func (p *SmartPool[T]) TryGet() (T, bool) {
	p.gets.Add(1)

	if item, ok := p.pop(); ok {
		return item, true
	}

	if int(p.sourceCount.Load()) >= len(p.sources) {
		return p.spin()
	}

	if !p.growing.CompareAndSwap(false, true) {
		return p.spin()
	}

	item, ok := p.grow()
	p.growing.Store(false)
	if ok {
		return item, true
	}

	return p.spin()
}

// grow runs with the growing flag held
func (p *SmartPool[T]) grow() (T, bool) {
	var zero T

	// someone may have pushed back or grown while we raced for the flag
	if item, ok := p.pop(); ok {
		return item, true
	}

	count := int(p.sourceCount.Load())
	if count >= len(p.sources) {
		return zero, false
	}

	total := int(p.total.Load())
	size := min(total, p.maxSize-total)
	if size <= 0 {
		return zero, false
	}

	source, items := p.creator.Create(size)
	if len(items) == 0 {
		return zero, false
	}

	p.sources[count] = source
	p.sourceCount.Store(int32(count + 1))
	p.total.Add(int64(len(items)))
	p.grows.Add(1)
	log.Debugf("pool grew by %d items to %d", len(items), total+len(items))

	for _, item := range items[1:] {
		p.push(item)
	}
	return items[0], true
}

// spin waits a bounded number of rounds for an item to become available
func (p *SmartPool[T]) spin() (T, bool) {
	for i := 0; i < spinCount; i++ {
		runtime.Gosched()
		if item, ok := p.pop(); ok {
			return item, true
		}

		if !p.growing.Load() && p.available.Load() == 0 && int(p.sourceCount.Load()) >= len(p.sources) {
			break
		}
	}

	p.misses.Add(1)
	var zero T
	return zero, false
}

// Available returns the number of idle items
func (p *SmartPool[T]) Available() int {
	return int(p.available.Load())
}

// Total returns the number of items ever allocated
func (p *SmartPool[T]) Total() int {
	return int(p.total.Load())
}

// Min returns the initial size
func (p *SmartPool[T]) Min() int {
	return p.minSize
}

// Max returns the size limit
func (p *SmartPool[T]) Max() int {
	return p.maxSize
}

// Stats returns pool statistics
func (p *SmartPool[T]) Stats() SmartPoolStats {
	gets := p.gets.Load()
	misses := p.misses.Load()

	hitRate := 0.0
	if gets > 0 {
		hitRate = float64(gets-misses) / float64(gets)
	}

	return SmartPoolStats{
		Gets:      gets,
		Puts:      p.puts.Load(),
		Misses:    misses,
		Grows:     p.grows.Load(),
		Available: p.Available(),
		Total:     p.Total(),
		Sources:   int(p.sourceCount.Load()),
		HitRate:   hitRate,
	}
}

// SmartPoolStats contains smart pool statistics
type SmartPoolStats struct {
	Gets      uint64
	Puts      uint64
	Misses    uint64
	Grows     uint64
	Available int
	Total     int
	Sources   int
	HitRate   float64
}
