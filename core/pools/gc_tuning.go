package pools

import (
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds GC tuning parameters
type GCConfig struct {
	// Percent sets the garbage collection target percentage, 0 keeps the
	// runtime setting. Pooled segments and queues stay reachable for the
	// whole process lifetime so a higher value than 100 pays off.
	Percent int

	// MemoryLimit sets a soft memory limit in bytes, 0 = no limit
	MemoryLimit int64
}

// DefaultGCConfig returns the settings applied by the server
func DefaultGCConfig() GCConfig {
	return GCConfig{
		Percent: 200,
	}
}

// ApplyGCConfig applies cfg and returns the previous GC percent
func ApplyGCConfig(cfg GCConfig) int {
	previous := debug.SetGCPercent(-1)
	debug.SetGCPercent(previous)

	if cfg.Percent > 0 {
		debug.SetGCPercent(cfg.Percent)
		log.Debugf("GC percent %d (was %d)", cfg.Percent, previous)
	}

	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}

	return previous
}

// GCStats holds garbage collection statistics
type GCStats struct {
	NumGC        uint32        `json:"num_gc"`
	PauseTotal   time.Duration `json:"pause_total"`
	LastPause    time.Duration `json:"last_pause"`
	AvgPause     time.Duration `json:"avg_pause"`
	AllocBytes   uint64        `json:"alloc_bytes"`
	Sys          uint64        `json:"sys"`
	NumGoroutine int           `json:"goroutines"`
}

// GetGCStats returns current GC statistics
func GetGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		AllocBytes:   ms.Alloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ms.NumGC == 0 {
		return stats
	}

	stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])

	// PauseNs is a ring of the most recent 256 pauses
	numPauses := min(ms.NumGC, 256)
	var totalPause uint64
	for i := uint32(0); i < numPauses; i++ {
		totalPause += ms.PauseNs[i]
	}

	stats.PauseTotal = time.Duration(totalPause)
	stats.AvgPause = time.Duration(totalPause / uint64(numPauses))

	return stats
}
