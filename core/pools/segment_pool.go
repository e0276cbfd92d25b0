package pools

import (
	"github.com/getlantern/golog"

	"github.com/searchktools/fast-socket/core/buffer"
)

var log = golog.LoggerFor("fastsocket.pools")

// SegmentSourceCreator carves receive segments of bufferSize bytes out of one
// slab per source. Each segment is a buffer.State whose last release pushes it
// back to pool.
func SegmentSourceCreator(bufferSize int, pool *SmartPool[*buffer.State]) SourceCreator[*buffer.State] {
	release := func(s *buffer.State) {
		pool.Push(s)
	}

	return SourceCreatorFunc[*buffer.State](func(size int) (Source, []*buffer.State) {
		slab := make([]byte, size*bufferSize)
		items := make([]*buffer.State, size)
		for i := range items {
			start := i * bufferSize
			items[i] = buffer.NewState(slab[start:start+bufferSize:start+bufferSize], release)
		}
		return &SliceSource{Memory: slab, Items: size}, items
	})
}

// NewSegmentPool creates a pool of receive segments
func NewSegmentPool(bufferSize, minSize, maxSize int) (*SmartPool[*buffer.State], error) {
	if bufferSize <= 0 {
		return nil, ErrInvalidPoolSize
	}

	pool := &SmartPool[*buffer.State]{}
	if err := pool.Initialize(minSize, maxSize, SegmentSourceCreator(bufferSize, pool)); err != nil {
		return nil, err
	}
	return pool, nil
}
