package pools

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitCompleted(t *testing.T, pool *WorkerPool, n uint64) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for pool.Stats().TasksCompleted < n {
		select {
		case <-deadline:
			t.Fatalf("Timeout waiting for %d tasks, completed %d", n, pool.Stats().TasksCompleted)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerPool_Basic(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			counter.Add(1)
		})
	}

	waitCompleted(t, pool, 100)
	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		i := i
		pool.Submit(func() {
			if i%10 == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			counter.Add(1)
		})
	}

	waitCompleted(t, pool, 100)

	if stats := pool.Stats(); stats.StealsSuccess == 0 {
		t.Log("Warning: No successful steals detected")
	}
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	pool.Submit(func() { panic("boom") })

	var wg sync.WaitGroup
	wg.Add(1)
	pool.Submit(func() { wg.Done() })
	wg.Wait()

	if pool.Stats().Panics != 1 {
		t.Errorf("Expected 1 recorded panic, got %d", pool.Stats().Panics)
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Submit must fail on a closed pool")
	}
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(8)
	defer pool.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Submit(func() {
				_ = 1 + 1
			})
		}
	})

	for pool.Stats().TasksCompleted < uint64(b.N) {
		time.Sleep(time.Millisecond)
	}
}
