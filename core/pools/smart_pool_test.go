package pools

import (
	"sync"
	"testing"
)

func intCreator() SourceCreator[int] {
	next := 0
	var mu sync.Mutex
	return SourceCreatorFunc[int](func(size int) (Source, []int) {
		mu.Lock()
		defer mu.Unlock()

		items := make([]int, size)
		for i := range items {
			items[i] = next
			next++
		}
		return &SliceSource{Memory: items, Items: size}, items
	})
}

func TestSmartPool_InvalidSize(t *testing.T) {
	var p SmartPool[int]
	if err := p.Initialize(0, 10, intCreator()); err != ErrInvalidPoolSize {
		t.Errorf("Expected ErrInvalidPoolSize, got %v", err)
	}
	if err := p.Initialize(10, 5, intCreator()); err != ErrInvalidPoolSize {
		t.Errorf("Expected ErrInvalidPoolSize, got %v", err)
	}
}

func TestSmartPool_GrowthSchedule(t *testing.T) {
	p, err := NewSmartPool(4, 10, intCreator())
	if err != nil {
		t.Fatal(err)
	}

	if p.Total() != 4 || p.Available() != 4 {
		t.Fatalf("Expected 4 items, got total %d available %d", p.Total(), p.Available())
	}

	var taken []int
	expectTotals := []int{4, 4, 4, 4, 8, 8, 8, 8, 10, 10}
	for i, want := range expectTotals {
		item, ok := p.TryGet()
		if !ok {
			t.Fatalf("TryGet %d failed", i)
		}
		taken = append(taken, item)

		if p.Total() != want {
			t.Errorf("After %d gets expected total %d, got %d", i+1, want, p.Total())
		}
	}

	if _, ok := p.TryGet(); ok {
		t.Error("Expected TryGet to fail at max size")
	}
	if p.Total() != 10 {
		t.Errorf("Total must never exceed max, got %d", p.Total())
	}

	seen := make(map[int]bool)
	for _, item := range taken {
		if seen[item] {
			t.Errorf("Item %d handed out twice", item)
		}
		seen[item] = true
	}

	for _, item := range taken {
		p.Push(item)
	}
	if p.Available() != 10 {
		t.Errorf("Expected 10 available after returning everything, got %d", p.Available())
	}
}

func TestSmartPool_FixedSize(t *testing.T) {
	p, err := NewSmartPool(3, 3, intCreator())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, ok := p.TryGet(); !ok {
			t.Fatalf("TryGet %d failed", i)
		}
	}

	if _, ok := p.TryGet(); ok {
		t.Error("Fixed size pool must not grow")
	}

	stats := p.Stats()
	if stats.Misses != 1 || stats.Grows != 0 {
		t.Errorf("Expected 1 miss and no growth, got %+v", stats)
	}
}

func TestSmartPool_Concurrent(t *testing.T) {
	p, err := NewSmartPool(8, 512, intCreator())
	if err != nil {
		t.Fatal(err)
	}

	const goroutines = 16
	const rounds = 1000

	var wg sync.WaitGroup
	var mu sync.Mutex
	inUse := make(map[int]bool)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				item, ok := p.TryGet()
				if !ok {
					continue
				}

				mu.Lock()
				if inUse[item] {
					t.Errorf("Item %d held by two goroutines", item)
				}
				inUse[item] = true
				mu.Unlock()

				mu.Lock()
				delete(inUse, item)
				mu.Unlock()

				p.Push(item)
			}
		}()
	}
	wg.Wait()

	if p.Total() > 512 {
		t.Errorf("Total exceeded max: %d", p.Total())
	}
	if p.Available() != p.Total() {
		t.Errorf("Expected every item back, available %d total %d", p.Available(), p.Total())
	}
}

func TestSegmentPool_ReleaseReturnsSegment(t *testing.T) {
	p, err := NewSegmentPool(64, 2, 4)
	if err != nil {
		t.Fatal(err)
	}

	seg, ok := p.TryGet()
	if !ok {
		t.Fatal("TryGet failed")
	}
	if seg.Len() != 64 {
		t.Errorf("Expected 64 byte segment, got %d", seg.Len())
	}
	if p.Available() != 1 {
		t.Errorf("Expected 1 available, got %d", p.Available())
	}

	seg.Retain()
	seg.Retain()
	seg.Release()
	if p.Available() != 1 {
		t.Error("Segment returned while still referenced")
	}

	seg.Release()
	if p.Available() != 2 {
		t.Errorf("Expected segment back in the pool, available %d", p.Available())
	}
}

func TestSegmentPool_SegmentsDoNotOverlap(t *testing.T) {
	p, err := NewSegmentPool(8, 4, 4)
	if err != nil {
		t.Fatal(err)
	}

	var segs [4][]byte
	for i := range segs {
		seg, ok := p.TryGet()
		if !ok {
			t.Fatal("TryGet failed")
		}
		segs[i] = seg.Data()
		for j := range segs[i] {
			segs[i][j] = byte(i)
		}
	}

	for i, data := range segs {
		if cap(data) != 8 {
			t.Errorf("Segment %d can grow into its neighbour, cap %d", i, cap(data))
		}
		for _, b := range data {
			if b != byte(i) {
				t.Fatalf("Segment %d overwritten", i)
			}
		}
	}
}

func BenchmarkSmartPool_GetPush(b *testing.B) {
	p, _ := NewSmartPool(1024, 1024, intCreator())

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if item, ok := p.TryGet(); ok {
				p.Push(item)
			}
		}
	})
}
