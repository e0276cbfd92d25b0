package pools

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work, such as flushing one session's sending queue
type Task func()

// WorkerPool runs tasks on a fixed set of goroutines. Idle workers steal from
// the queues of busy ones.
type WorkerPool struct {
	numWorkers int
	queues     []chan Task
	done       chan struct{}
	closed     atomic.Bool
	wg         sync.WaitGroup

	// Statistics
	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksInline    atomic.Uint64
		stealsSuccess  atomic.Uint64
		panics         atomic.Uint64
	}
}

// NewWorkerPool creates a worker pool, numWorkers <= 0 means one per CPU
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]chan Task, numWorkers),
		done:       make(chan struct{}),
	}

	for i := range pool.queues {
		pool.queues[i] = make(chan Task, 256)
	}

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.run(i)
	}

	return pool
}

// Submit queues a task round-robin. When the chosen queues are full the task
// runs on the caller's goroutine. It returns false once the pool is closed.
func (p *WorkerPool) Submit(task Task) bool {
	if p.closed.Load() {
		return false
	}

	n := p.stats.tasksSubmitted.Add(1)
	idx := int(n % uint64(p.numWorkers))

	for attempt := 0; attempt < 2; attempt++ {
		select {
		case <-p.done:
			return false
		case p.queues[idx] <- task:
			return true
		default:
			idx = (idx + 1) % p.numWorkers
		}
	}

	p.stats.tasksInline.Add(1)
	p.execute(task)
	return true
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case task := <-own:
			p.execute(task)
			continue
		case <-p.done:
			return
		default:
		}

		if p.steal(id) {
			continue
		}

		select {
		case task := <-own:
			p.execute(task)
		case <-p.done:
			return
		}
	}
}

// steal runs one task from another worker's queue
func (p *WorkerPool) steal(id int) bool {
	for i := 1; i < p.numWorkers; i++ {
		victim := p.queues[(id+i)%p.numWorkers]

		select {
		case task := <-victim:
			p.stats.stealsSuccess.Add(1)
			p.execute(task)
			return true
		default:
		}
	}

	return false
}

func (p *WorkerPool) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			log.Errorf("task panicked: %v", r)
		}
		p.stats.tasksCompleted.Add(1)
	}()

	task()
}

// Close stops the workers; queued tasks that have not started are dropped
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	close(p.done)
	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	submitted := p.stats.tasksSubmitted.Load()
	completed := p.stats.tasksCompleted.Load()

	pending := uint64(0)
	if submitted > completed {
		pending = submitted - completed
	}

	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   pending,
		TasksInline:    p.stats.tasksInline.Load(),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
		Panics:         p.stats.panics.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksInline    uint64
	StealsSuccess  uint64
	Panics         uint64
}
