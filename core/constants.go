package core

import (
	"errors"
	"time"
)

// Engine defaults
const (
	DefaultReceiveBufferSize = 4096
	DefaultMinPoolSize       = 256
	DefaultMaxPoolSize       = 65536
	DefaultSendingQueueSize  = 16
	DefaultMaxPackageLength  = 1 << 20
	DefaultIdleTimeout       = 5 * time.Minute

	// pollTimeout is the poller wait in milliseconds
	pollTimeout = 100
	// sendAttempts bounds how often Send retries a full or swapping queue
	sendAttempts = 64
	// writeTimeout bounds how long a flush waits on a full socket buffer
	writeTimeout = 10 * time.Second
)

// Error definitions
var (
	ErrEngineClosed  = errors.New("engine closed")
	ErrSessionClosed = errors.New("session closed")
	ErrWriteTimeout  = errors.New("write timeout")
	ErrInvalidOption = errors.New("invalid engine option")
)
