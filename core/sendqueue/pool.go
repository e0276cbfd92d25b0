package sendqueue

import (
	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/pools"
)

// SourceCreator partitions one slot array per source into queues of queueSize slots
func SourceCreator(queueSize int) pools.SourceCreator[*Queue] {
	return pools.SourceCreatorFunc[*Queue](func(size int) (pools.Source, []*Queue) {
		global := make([]buffer.Chunk, size*queueSize)
		queues := make([]*Queue, size)
		for i := range queues {
			queues[i] = New(global, i*queueSize, queueSize)
		}
		return &pools.SliceSource{Memory: global, Items: size}, queues
	})
}

// NewPool creates a pool of sending queues
func NewPool(queueSize, minSize, maxSize int) (*pools.SmartPool[*Queue], error) {
	if queueSize <= 0 {
		return nil, pools.ErrInvalidPoolSize
	}
	return pools.NewSmartPool(minSize, maxSize, SourceCreator(queueSize))
}
