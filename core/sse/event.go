// Package sse writes server-sent event streams to HTTP connections
package sse

import (
	"errors"
	"strconv"
	"strings"
)

var ErrEmptyData = errors.New("sse: event data is empty")

// Event is a server-sent event. An empty ID is replaced by the writer's
// next sequence number.
type Event struct {
	ID    string
	Event string
	Data  string
	// Retry is the reconnection time in milliseconds, 0 omits the field
	Retry int
}

// heartbeat is a comment line, ignored by clients
var heartbeat = []byte(": heartbeat\n\n")

// AppendEvent appends the wire form of ev to b. Every line of Data gets its
// own data field.
func AppendEvent(b []byte, ev Event) []byte {
	if ev.ID != "" {
		b = appendField(b, "id", ev.ID)
	}
	if ev.Event != "" {
		b = appendField(b, "event", ev.Event)
	}
	if ev.Retry > 0 {
		b = appendField(b, "retry", strconv.Itoa(ev.Retry))
	}

	data := ev.Data
	for {
		line, rest, more := strings.Cut(data, "\n")
		b = appendField(b, "data", line)
		if !more {
			break
		}
		data = rest
	}

	return append(b, '\n')
}

func appendField(b []byte, name, value string) []byte {
	b = append(b, name...)
	b = append(b, ": "...)
	b = append(b, value...)
	return append(b, '\n')
}
