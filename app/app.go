// Package app assembles an engine for the configured protocol, the
// monitoring server and the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/getlantern/golog"

	"github.com/searchktools/fast-socket/config"
	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/http"
	"github.com/searchktools/fast-socket/core/http2"
	"github.com/searchktools/fast-socket/core/pools"
	"github.com/searchktools/fast-socket/core/protocol/line"
	rpcserver "github.com/searchktools/fast-socket/core/rpc/server"
	"github.com/searchktools/fast-socket/core/sse"
	"github.com/searchktools/fast-socket/core/websocket"
)

var log = golog.LoggerFor("fastsocket.app")

const defaultShutdownTimeout = 10 * time.Second

// engine is an engine of any package type
type engine interface {
	Run(addr string) error
	Ready() <-chan struct{}
	Addr() net.Addr
	Shutdown(ctx context.Context) error
	SessionCount() int
	WritePrometheus(w io.Writer)
	GetPoolStats() core.PoolStats
}

// App is one server process
type App struct {
	cfg *config.Config

	lineHandler func(s *core.Session[*line.Package], pkg *line.Package)
	httpServer  *http.Server
	wsServer    *websocket.Server
	rpcServer   *rpcserver.Server

	shutdownTimeout time.Duration

	engine  engine
	monitor *http2.Server
	// stopped in order before the engine
	stoppers []func(ctx context.Context) error
}

// Option customizes an App
type Option func(*App)

// WithLineHandler replaces EchoLine
func WithLineHandler(fn func(s *core.Session[*line.Package], pkg *line.Package)) Option {
	return func(a *App) {
		a.lineHandler = fn
	}
}

// WithHTTPServer replaces the default HTTP routes
func WithHTTPServer(srv *http.Server) Option {
	return func(a *App) {
		a.httpServer = srv
	}
}

// WithWebSocketServer replaces the default websocket server
func WithWebSocketServer(srv *websocket.Server) Option {
	return func(a *App) {
		a.wsServer = srv
	}
}

// WithRPCServer replaces the server exposing EchoService
func WithRPCServer(srv *rpcserver.Server) Option {
	return func(a *App) {
		a.rpcServer = srv
	}
}

// WithShutdownTimeout bounds the graceful shutdown
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = d
	}
}

// New builds the engine serving cfg.Protocol
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:             cfg,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.MetricsAddr != "" {
		a.monitor = http2.NewServer(http2.Config{
			Addr:           cfg.MetricsAddr,
			ProcessMetrics: true,
		})
	}

	if err := a.build(); err != nil {
		return nil, fmt.Errorf("%s engine: %w", cfg.Protocol, err)
	}

	if a.monitor != nil {
		a.monitor.AddSource(a.engine)
		a.monitor.AddStats("pools", func() any { return a.engine.GetPoolStats() })
	}
	return a, nil
}

func (a *App) build() error {
	switch a.cfg.Protocol {
	case "line":
		handle := a.lineHandler
		if handle == nil {
			handle = EchoLine
		}
		proto, err := line.Protocol(line.Config{}, handle)
		if err != nil {
			return err
		}
		return buildEngine(a, proto)

	case "http":
		srv := a.httpServer
		if srv == nil {
			set := metrics.NewSet()
			broker := sse.NewBroker(0)
			srv = DefaultHTTPServer(set, broker)

			heartbeat, stop := context.WithCancel(context.Background())
			go broker.Heartbeat(heartbeat, 15*time.Second)
			a.onStop(func(context.Context) error {
				stop()
				return nil
			})

			a.addSource(set)
			a.addStats("sse", func() any { return broker.Stats() })
		}
		return buildEngine(a, srv.Protocol())

	case "websocket":
		srv := a.wsServer
		if srv == nil {
			srv = DefaultWebSocketServer()
		}
		a.addStats("websocket", func() any { return srv.Hub.Stats() })
		a.onStop(func(context.Context) error {
			srv.Hub.Broadcast(websocket.OpClose, websocket.AppendClosePayload(nil, websocket.CloseGoingAway, "shutdown"))
			return nil
		})
		return buildEngine(a, srv.Protocol())

	case "rpc":
		srv := a.rpcServer
		if srv == nil {
			srv = rpcserver.New()
			if err := srv.Register("Echo", EchoService{}); err != nil {
				return err
			}
		}
		a.addStats("rpc", func() any { return srv.Stats() })
		a.onStop(srv.Shutdown)
		return buildEngine(a, srv.Protocol())
	}

	return fmt.Errorf("%w: unknown protocol %q", config.ErrInvalidConfig, a.cfg.Protocol)
}

func buildEngine[P any](a *App, proto core.Protocol[P]) error {
	e, err := core.NewEngine(proto, a.cfg.EngineOptions())
	if err != nil {
		return err
	}
	a.engine = e
	return nil
}

func (a *App) addSource(src http2.Source) {
	if a.monitor != nil {
		a.monitor.AddSource(src)
	}
}

func (a *App) addStats(name string, fn func() any) {
	if a.monitor != nil {
		a.monitor.AddStats(name, fn)
	}
}

func (a *App) onStop(fn func(ctx context.Context) error) {
	a.stoppers = append(a.stoppers, fn)
}

// Addr returns the engine's listening address once it is ready
func (a *App) Addr() net.Addr {
	return a.engine.Addr()
}

// Ready is closed once the engine listens
func (a *App) Ready() <-chan struct{} {
	return a.engine.Ready()
}

// Run serves until SIGINT or SIGTERM
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is done or the engine fails, then shuts down
func (a *App) RunContext(ctx context.Context) error {
	previous := pools.ApplyGCConfig(pools.GCConfig{Percent: a.cfg.GCPercent})
	defer pools.ApplyGCConfig(pools.GCConfig{Percent: previous})

	errc := make(chan error, 2)
	go func() {
		errc <- a.engine.Run(a.cfg.Addr())
	}()

	if a.monitor != nil {
		go func() {
			if err := a.monitor.ListenAndServe(); err != nil {
				errc <- fmt.Errorf("monitor: %w", err)
			}
		}()
	}

	go func() {
		select {
		case <-a.engine.Ready():
			log.Debugf("serving %s on %s [%s]", a.cfg.Protocol, a.engine.Addr(), a.cfg.Env)
		case <-ctx.Done():
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Debugf("shutting down: %v", context.Cause(ctx))
	case runErr = <-errc:
		if runErr != nil {
			runErr = log.Errorf("%s engine stopped: %v", a.cfg.Protocol, runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the protocol servers, the engine and the monitor
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for _, stop := range a.stoppers {
		if err := stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}

	if a.monitor != nil {
		if err := a.monitor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("monitor: %w", err))
		}
	}
	return errors.Join(errs...)
}
