package core

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics are registered in a per-engine set so several engines can
// run in one process
type engineMetrics struct {
	set *metrics.Set

	opened         *metrics.Counter
	closed         *metrics.Counter
	idleClosed     *metrics.Counter
	refused        *metrics.Counter
	packages       *metrics.Counter
	protocolErrors *metrics.Counter
	bytesIn        *metrics.Counter
	bytesOut       *metrics.Counter
	backpressure   *metrics.Counter
	queueExhausted *metrics.Counter
	sendRejected   *metrics.Counter
}

func newEngineMetrics[P any](e *Engine[P]) *engineMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`fastsocket_%s{protocol=%q}`, metric, e.protocol.Name)
	}

	m := &engineMetrics{
		set:            set,
		opened:         set.NewCounter(name("sessions_opened_total")),
		closed:         set.NewCounter(name("sessions_closed_total")),
		idleClosed:     set.NewCounter(name("sessions_idle_closed_total")),
		refused:        set.NewCounter(name("sessions_refused_total")),
		packages:       set.NewCounter(name("packages_total")),
		protocolErrors: set.NewCounter(name("protocol_errors_total")),
		bytesIn:        set.NewCounter(name("received_bytes_total")),
		bytesOut:       set.NewCounter(name("sent_bytes_total")),
		backpressure:   set.NewCounter(name("receive_pool_exhausted_total")),
		queueExhausted: set.NewCounter(name("sending_queue_pool_exhausted_total")),
		sendRejected:   set.NewCounter(name("send_rejected_total")),
	}

	set.NewGauge(name("sessions"), func() float64 {
		return float64(e.count.Value())
	})
	set.NewGauge(name("receive_buffers_available"), func() float64 {
		return float64(e.segments.Available())
	})
	set.NewGauge(name("receive_buffers_total"), func() float64 {
		return float64(e.segments.Total())
	})
	set.NewGauge(name("sending_queues_available"), func() float64 {
		return float64(e.queues.Available())
	})
	set.NewGauge(name("worker_tasks_pending"), func() float64 {
		return float64(e.workers.Stats().TasksPending)
	})

	return m
}

// WritePrometheus writes the engine metrics in Prometheus text format
func (e *Engine[P]) WritePrometheus(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}
