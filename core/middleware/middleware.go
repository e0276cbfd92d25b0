// Package middleware contains common middleware for the HTTP server
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/getlantern/golog"
	"github.com/google/uuid"

	"github.com/searchktools/fast-socket/core/http"
)

var log = golog.LoggerFor("fastsocket.middleware")

// Logger logs every request with its remote address
func Logger() http.HandlerFunc {
	return func(ctx *http.Context) {
		log.Debugf("%s %s %s", ctx.Conn().RemoteAddr(), ctx.Method(), ctx.Path())
	}
}

// CORSConfig configures CORS
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
}

// DefaultCORSConfig allows any origin
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}
}

// CORS adds CORS headers and answers preflight requests
func CORS(cfg CORSConfig) http.HandlerFunc {
	return func(ctx *http.Context) {
		ctx.SetHeader("Access-Control-Allow-Origin", cfg.AllowOrigin)
		ctx.SetHeader("Access-Control-Allow-Methods", cfg.AllowMethods)
		ctx.SetHeader("Access-Control-Allow-Headers", cfg.AllowHeaders)

		if ctx.Method() == "OPTIONS" {
			ctx.Abort()
			ctx.Status(204)
		}
	}
}

// RateLimiter allows requestsPerSecond requests per one second window
func RateLimiter(requestsPerSecond int) http.HandlerFunc {
	return rateLimiter(requestsPerSecond, time.Now)
}

func rateLimiter(requestsPerSecond int, now func() time.Time) http.HandlerFunc {
	var (
		mu         sync.Mutex
		tokens     = requestsPerSecond
		lastRefill = now()
	)

	return func(ctx *http.Context) {
		mu.Lock()

		t := now()
		if t.Sub(lastRefill) >= time.Second {
			tokens = requestsPerSecond
			lastRefill = t
		}

		if tokens > 0 {
			tokens--
			mu.Unlock()
			return
		}

		mu.Unlock()

		ctx.Abort()
		ctx.SetHeader("Retry-After", "1")
		ctx.Error(429, "Too Many Requests")
	}
}

// RequestIDHeader carries the request id
const RequestIDHeader = "X-Request-Id"

// RequestID echoes the client's request id or assigns a new one
func RequestID() http.HandlerFunc {
	return func(ctx *http.Context) {
		id := ctx.Header(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.SetHeader(RequestIDHeader, id)
	}
}

// Metrics counts requests per method in set
func Metrics(set *metrics.Set) http.HandlerFunc {
	return func(ctx *http.Context) {
		method := ctx.Method()
		switch method {
		case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
		default:
			method = "other"
		}
		set.GetOrCreateCounter(`fastsocket_http_requests_total{method="` + method + `"}`).Inc()
		set.GetOrCreateCounter(`fastsocket_http_request_body_bytes_total`).Add(len(ctx.Body()))
	}
}

// MaxBodySize rejects requests with a body larger than limit
func MaxBodySize(limit int) http.HandlerFunc {
	return func(ctx *http.Context) {
		if n := len(ctx.Body()); n > limit {
			ctx.Abort()
			ctx.Error(413, "body of "+strconv.Itoa(n)+" bytes exceeds "+strconv.Itoa(limit))
		}
	}
}
