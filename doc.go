/*
Package fastsocket is an event driven socket server for Go.

Every connection is read on an epoll (Linux) or kqueue (BSD/macOS) event loop
into pooled receive buffers. A receive filter turns the chunks of a session
into packages without copying them, and writes are queued per session and
flushed from a worker pool.

Features

  - Zero copy framing: receive filters read a list of buffer segments
  - Built-in filters: fixed size, fixed header, terminator, count splitter, begin/end mark
  - Filter hand-off: a filter may pass the rest of the stream to another one
  - Protocol suites: line commands, HTTP/1.1, websocket, RPC frames
  - Smart pools for receive buffers and sending queues, work stealing send workers
  - Metrics in Prometheus format and an h2c monitoring server

Quick Start

A line protocol server:

	package main

	import (
		"github.com/searchktools/fast-socket/app"
		"github.com/searchktools/fast-socket/config"
		"github.com/searchktools/fast-socket/core"
		"github.com/searchktools/fast-socket/core/protocol/line"
	)

	func main() {
		cfg := config.Default()
		cfg.Protocol = "line"

		a, err := app.New(cfg, app.WithLineHandler(func(s *core.Session[*line.Package], pkg *line.Package) {
			line.Reply(s, pkg.Key+" "+pkg.Body)
		}))
		if err != nil {
			panic(err)
		}
		a.Run()
	}

The fastsocket command serves the built-in handlers of every protocol:

	fastsocket serve --protocol rpc --port 9000 --metrics-addr :9090
	fastsocket call Echo.Sum '{"values":[1,2,3]}' --addr 127.0.0.1:9000

Modules

  - app: engine assembly and process lifecycle
  - cmd: command line (cobra, viper, .env files)
  - config: configuration loading and validation
  - core: engine and sessions
  - core/search: mark search across segments
  - core/buffer: segments, buffer lists, readers
  - core/filter: receive filters
  - core/pipeline: per connection filter driver
  - core/sendqueue: per session sending queues
  - core/pools: smart pools, segment pools, worker pool, GC tuning
  - core/poller: epoll/kqueue
  - core/protocol/line: line commands
  - core/http, core/router, core/middleware, core/sse: HTTP/1.1
  - core/websocket: RFC 6455 over the HTTP handshake
  - core/rpc: binary frames, codecs, registry, server, client
  - core/http2: h2c monitoring server
*/
package fastsocket
