package http

import (
	"runtime/debug"
	"strings"

	"github.com/getlantern/golog"

	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/filter"
	"github.com/searchktools/fast-socket/core/router"
)

var log = golog.LoggerFor("fastsocket.http")

// HandlerFunc handles a request or acts as middleware
type HandlerFunc func(*Context)

// Server routes framed requests to handlers
type Server struct {
	routes     *router.Router[HandlerFunc]
	middleware []HandlerFunc

	// NotFound runs when no route matches, defaults to a 404 JSON error
	NotFound HandlerFunc
}

// NewServer creates a server without routes
func NewServer() *Server {
	return &Server{
		routes: router.New[HandlerFunc](),
	}
}

// Use appends middleware. Middleware runs in order before the route handler
// and stops the chain with Context.Abort.
func (s *Server) Use(middleware ...HandlerFunc) *Server {
	s.middleware = append(s.middleware, middleware...)
	return s
}

func (s *Server) Handle(method, path string, handler HandlerFunc) {
	s.routes.Add(method, path, handler)
}

func (s *Server) GET(path string, handler HandlerFunc) {
	s.Handle("GET", path, handler)
}

func (s *Server) POST(path string, handler HandlerFunc) {
	s.Handle("POST", path, handler)
}

func (s *Server) PUT(path string, handler HandlerFunc) {
	s.Handle("PUT", path, handler)
}

func (s *Server) DELETE(path string, handler HandlerFunc) {
	s.Handle("DELETE", path, handler)
}

// Protocol returns the engine protocol serving s
func (s *Server) Protocol() core.Protocol[*Request] {
	return core.Protocol[*Request]{
		Name:      "http",
		NewFilter: func() filter.ReceiveFilter[*Request] { return NewFilter() },
		Handle: func(sess *core.Session[*Request], req *Request) {
			s.Serve(sess, req)
		},
	}
}

// Serve runs the middleware and the route handler for req, then recycles it
func (s *Server) Serve(conn Conn, req *Request) {
	ctx := AcquireContext(conn, req)
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("panic serving %s %s: %v\n%s", req.Method, req.Path, err, debug.Stack())
			ctx.response.KeepAlive = false
			ctx.Error(500, "Internal Server Error")
		}

		ReleaseContext(ctx)
		ReleaseRequest(req)
	}()

	for _, mw := range s.middleware {
		mw(ctx)
		if ctx.IsAborted() {
			if !ctx.Written() {
				ctx.Status(204)
			}
			return
		}
	}

	handler, params, ok := s.routes.Find(req.Method, req.Path)
	if !ok {
		s.notFound(ctx)
		return
	}

	ctx.SetParams(params)
	handler(ctx)

	if !ctx.Written() {
		ctx.Status(204)
	}
}

func (s *Server) notFound(ctx *Context) {
	if allowed := s.routes.Allowed(ctx.Path()); len(allowed) > 0 {
		ctx.SetHeader("Allow", strings.Join(allowed, ", "))
		ctx.Error(405, "Method Not Allowed")
		return
	}

	if s.NotFound != nil {
		s.NotFound(ctx)
		return
	}
	ctx.Error(404, "Not Found")
}
