package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/fast-socket/core/pools"
)

// PoolStats represents statistics for all pools of an engine
type PoolStats struct {
	ReceiveBuffers SmartPoolStats  `json:"receive_buffers"`
	SendingQueues  SmartPoolStats  `json:"sending_queues"`
	Workers        WorkerPoolStats `json:"workers"`
	Sessions       int             `json:"sessions"`
	GC             pools.GCStats   `json:"gc"`
}

type SmartPoolStats struct {
	Gets      uint64  `json:"gets"`
	Puts      uint64  `json:"puts"`
	Misses    uint64  `json:"misses"`
	Grows     uint64  `json:"grows"`
	Available int     `json:"available"`
	Total     int     `json:"total"`
	HitRate   float64 `json:"hit_rate"`
}

type WorkerPoolStats struct {
	Workers   int    `json:"workers"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Inline    uint64 `json:"inline"`
	Steals    uint64 `json:"steals"`
	Panics    uint64 `json:"panics"`
}

func smartPoolStats(s pools.SmartPoolStats) SmartPoolStats {
	return SmartPoolStats{
		Gets:      s.Gets,
		Puts:      s.Puts,
		Misses:    s.Misses,
		Grows:     s.Grows,
		Available: s.Available,
		Total:     s.Total,
		HitRate:   s.HitRate,
	}
}

// GetPoolStats returns statistics for all memory pools
func (e *Engine[P]) GetPoolStats() PoolStats {
	w := e.workers.Stats()

	return PoolStats{
		ReceiveBuffers: smartPoolStats(e.segments.Stats()),
		SendingQueues:  smartPoolStats(e.queues.Stats()),
		Workers: WorkerPoolStats{
			Workers:   w.NumWorkers,
			Submitted: w.TasksSubmitted,
			Completed: w.TasksCompleted,
			Inline:    w.TasksInline,
			Steals:    w.StealsSuccess,
			Panics:    w.Panics,
		},
		Sessions: e.SessionCount(),
		GC:       pools.GetGCStats(),
	}
}

// GetPoolStatsJSON returns pool statistics as JSON string
func (e *Engine[P]) GetPoolStatsJSON() string {
	data, _ := json.MarshalIndent(e.GetPoolStats(), "", "  ")
	return string(data)
}

// GetPoolStatsText returns pool statistics as human-readable text
func (e *Engine[P]) GetPoolStatsText() string {
	stats := e.GetPoolStats()
	return fmt.Sprintf(`Pool Statistics (%s)
======================

Receive Buffers:
  Available: %d / %d
  Gets:      %d
  Misses:    %d
  Hit Rate:  %.2f%%

Sending Queues:
  Available: %d / %d
  Gets:      %d
  Misses:    %d

Workers:
  Workers:   %d
  Submitted: %d
  Inline:    %d

Sessions: %d

GC:
  Cycles:    %d
  Avg Pause: %s
`,
		e.protocol.Name,
		stats.ReceiveBuffers.Available, stats.ReceiveBuffers.Total,
		stats.ReceiveBuffers.Gets, stats.ReceiveBuffers.Misses, stats.ReceiveBuffers.HitRate*100,
		stats.SendingQueues.Available, stats.SendingQueues.Total,
		stats.SendingQueues.Gets, stats.SendingQueues.Misses,
		stats.Workers.Workers, stats.Workers.Submitted, stats.Workers.Inline,
		stats.Sessions,
		stats.GC.NumGC, stats.GC.AvgPause,
	)
}
