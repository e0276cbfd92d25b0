// Package http2 serves the monitoring endpoints over HTTP/1.1 and cleartext
// HTTP/2 (h2c)
package http2

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/getlantern/golog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var log = golog.LoggerFor("fastsocket.monitor")

var ErrServerClosed = errors.New("monitor: server closed")

// Source writes metrics in Prometheus text format. core.Engine satisfies it.
type Source interface {
	WritePrometheus(w io.Writer)
}

// Config of the monitoring server
type Config struct {
	Addr                 string
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	IdleTimeout          time.Duration
	// ProcessMetrics adds go_* and process_* metrics to /metrics
	ProcessMetrics bool
}

// Server exposes /metrics, /stats and /healthz
type Server struct {
	cfg    Config
	server *http.Server

	mu      sync.RWMutex
	sources []Source
	stats   map[string]func() any
	closed  bool
}

func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	s := &Server{
		cfg:   cfg,
		stats: make(map[string]func() any),
	}

	h2 := &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(s.routes(), h2),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// AddSource adds metrics written by /metrics
func (s *Server) AddSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

// AddStats adds a JSON section to /stats
func (s *Server) AddStats(name string, fn func() any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[name] = fn
}

// Handler returns the h2c handler serving the endpoints
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	return mux
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, src := range s.sources {
		src.WritePrometheus(w)
	}
	metrics.WritePrometheus(w, s.cfg.ProcessMetrics)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = s.stats[name]()
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Debugf("write stats: %v", err)
	}
}

// ListenAndServe listens on the configured address
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		ln.Close()
		return ErrServerClosed
	}

	log.Debugf("monitoring on %s (h2c)", ln.Addr())
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}
