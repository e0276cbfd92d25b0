// Package server serves registered services over RPC frames on the engine
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/golog"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
	"github.com/searchktools/fast-socket/core/rpc/codec"
	"github.com/searchktools/fast-socket/core/rpc/protocol"
	"github.com/searchktools/fast-socket/core/rpc/registry"
)

var log = golog.LoggerFor("fastsocket.rpc")

var ErrServerClosed = errors.New("rpc: server closed")

// Sender is the connection responses are written to. core.Session satisfies it.
type Sender interface {
	Send(chunks ...buffer.Chunk) bool
}

// Metadata names the called method, it is the JSON metadata of a request
type Metadata struct {
	Service string `json:"service"`
	Method  string `json:"method"`
}

// Server dispatches request frames to the registry
type Server struct {
	registry *registry.Registry
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	active sync.WaitGroup

	requests *xsync.Counter
	failures *xsync.Counter
}

// Option configures a server
type Option func(*Server)

// WithTimeout bounds every call, 0 disables the bound
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

func New(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		registry: registry.New(),
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		requests: xsync.NewCounter(),
		failures: xsync.NewCounter(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register registers a service, see registry.Registry.Register
func (s *Server) Register(name string, service any) error {
	return s.registry.Register(name, service)
}

// Registry returns the service registry
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Protocol returns the engine protocol serving s. Requests run on their own
// goroutine so slow methods never block the event loop.
func (s *Server) Protocol() core.Protocol[*protocol.Frame] {
	return core.Protocol[*protocol.Frame]{
		Name:      "rpc",
		NewFilter: func() filter.ReceiveFilter[*protocol.Frame] { return protocol.NewFilter() },
		Handle: func(sess *core.Session[*protocol.Frame], f *protocol.Frame) {
			if f.Type != protocol.TypeRequest {
				s.Serve(sess, f)
				return
			}

			s.active.Add(1)
			go func() {
				defer s.active.Done()
				s.Serve(sess, f)
			}()
		},
	}
}

// Serve handles one frame
func (s *Server) Serve(conn Sender, f *protocol.Frame) {
	switch f.Type {
	case protocol.TypeRequest:
		s.handleRequest(conn, f)
	case protocol.TypePing:
		s.reply(conn, protocol.NewFrame(protocol.TypePong, f.RequestID))
	default:
		log.Debugf("ignoring frame type %d", f.Type)
	}
}

func (s *Server) handleRequest(conn Sender, f *protocol.Frame) {
	s.requests.Inc()

	payload, err := s.call(f)
	if f.HasFlag(protocol.FlagOneWay) {
		if err != nil {
			log.Debugf("one-way request %d: %v", f.RequestID, err)
		}
		return
	}

	var resp *protocol.Frame
	if err != nil {
		s.failures.Inc()
		resp = protocol.NewFrame(protocol.TypeError, f.RequestID)
		resp.Payload = []byte(err.Error())
	} else {
		resp = protocol.NewFrame(protocol.TypeResponse, f.RequestID)
		resp.Payload = payload
	}
	resp.Codec = f.Codec
	s.reply(conn, resp)
}

// call runs the request and returns the encoded reply
func (s *Server) call(f *protocol.Frame) ([]byte, error) {
	if s.ctx.Err() != nil {
		return nil, ErrServerClosed
	}

	var meta Metadata
	if err := json.Unmarshal(f.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	c, err := codec.Get(codec.Type(f.Codec))
	if err != nil {
		return nil, err
	}

	svc, method, err := s.registry.Method(meta.Service, meta.Method)
	if err != nil {
		return nil, err
	}

	arg := method.NewArg()
	if err := c.Decode(f.Payload, arg); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := svc.Call(ctx, method, arg)
	if err != nil {
		return nil, err
	}

	data, err := c.Encode(reply)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return data, nil
}

func (s *Server) reply(conn Sender, f *protocol.Frame) {
	st, err := f.EncodeState()
	if err != nil {
		// the reply does not fit a frame, answer with an error instead
		f = protocol.NewFrame(protocol.TypeError, f.RequestID)
		f.Payload = []byte(err.Error())
		if st, err = f.EncodeState(); err != nil {
			log.Errorf("encode reply %d: %v", f.RequestID, err)
			return
		}
	}

	st.Retain()
	defer st.Release()

	if !conn.Send(st.Chunk(0, st.Len())) {
		log.Debugf("dropping reply %d, connection closed", f.RequestID)
	}
}

// Shutdown cancels running calls and waits for them to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats of a server
type Stats struct {
	Services []string `json:"services"`
	Requests int64    `json:"requests"`
	Failures int64    `json:"failures"`
}

func (s *Server) Stats() Stats {
	return Stats{
		Services: s.registry.Services(),
		Requests: s.requests.Value(),
		Failures: s.failures.Value(),
	}
}
