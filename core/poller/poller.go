// Package poller wraps the readiness notification facility of the platform
// (epoll on Linux, kqueue on BSD and macOS). Registration is level-triggered.
package poller

// Event reports a ready file descriptor
type Event struct {
	Fd int
	// Hangup is set when the peer closed or the descriptor failed
	Hangup bool
}

// Poller is the I/O multiplexing interface
type Poller interface {
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks up to timeout milliseconds and appends ready descriptors to events
	Wait(timeout int, events []Event) ([]Event, error)
	Close() error
}
