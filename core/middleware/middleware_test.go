package middleware

import (
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/searchktools/fast-socket/core/http"
)

type fakeConn struct {
	written []string
}

func (c *fakeConn) SendBytes(p []byte) bool {
	c.written = append(c.written, string(p))
	return true
}

func (c *fakeConn) CloseWhenFlushed() {}

func (c *fakeConn) RemoteAddr() string {
	return "10.0.0.1:5000"
}

func do(t *testing.T, s *http.Server, text string) string {
	t.Helper()

	req := http.AcquireRequest()
	if err := http.ParseRequest(text, req); err != nil {
		t.Fatal(err)
	}

	conn := &fakeConn{}
	s.Serve(conn, req)
	if len(conn.written) != 1 {
		t.Fatalf("Expected one response, got %d", len(conn.written))
	}
	return conn.written[0]
}

func newServer(mw ...http.HandlerFunc) *http.Server {
	s := http.NewServer().Use(mw...)
	s.GET("/", func(ctx *http.Context) { ctx.String(200, "ok") })
	return s
}

func TestCORS(t *testing.T) {
	s := newServer(CORS(DefaultCORSConfig()))

	resp := do(t, s, "GET / HTTP/1.1")
	if !strings.Contains(resp, "Access-Control-Allow-Origin: *\r\n") || !strings.HasSuffix(resp, "ok") {
		t.Errorf("Unexpected response %q", resp)
	}

	resp = do(t, s, "OPTIONS / HTTP/1.1")
	if !strings.HasPrefix(resp, "HTTP/1.1 204") {
		t.Errorf("Expected preflight 204, got %q", resp)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newServer(rateLimiter(2, func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		if resp := do(t, s, "GET / HTTP/1.1"); !strings.HasPrefix(resp, "HTTP/1.1 200") {
			t.Fatalf("Request %d: expected 200, got %q", i, resp)
		}
	}

	resp := do(t, s, "GET / HTTP/1.1")
	if !strings.HasPrefix(resp, "HTTP/1.1 429") || !strings.Contains(resp, "Retry-After: 1\r\n") {
		t.Errorf("Expected 429, got %q", resp)
	}

	now = now.Add(time.Second)
	if resp := do(t, s, "GET / HTTP/1.1"); !strings.HasPrefix(resp, "HTTP/1.1 200") {
		t.Errorf("Expected the window to refill, got %q", resp)
	}
}

func TestRequestID(t *testing.T) {
	s := newServer(RequestID())

	resp := do(t, s, "GET / HTTP/1.1\r\nX-Request-Id: abc")
	if !strings.Contains(resp, "X-Request-Id: abc\r\n") {
		t.Errorf("Expected the client id echoed, got %q", resp)
	}

	resp = do(t, s, "GET / HTTP/1.1")
	i := strings.Index(resp, "X-Request-Id: ")
	if i < 0 {
		t.Fatalf("Expected a generated id, got %q", resp)
	}
	if id := resp[i+len("X-Request-Id: "):]; len(id) < 36 {
		t.Errorf("Expected a uuid, got %q", id)
	}
}

func TestMetricsAndBodySize(t *testing.T) {
	set := metrics.NewSet()
	s := http.NewServer().Use(Logger(), Metrics(set), MaxBodySize(4))
	s.POST("/", func(ctx *http.Context) { ctx.Status(200) })

	req := http.AcquireRequest()
	if err := http.ParseRequest("POST / HTTP/1.1", req); err != nil {
		t.Fatal(err)
	}
	req.Body = append(req.Body, "too long"...)

	conn := &fakeConn{}
	s.Serve(conn, req)
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 413") {
		t.Errorf("Expected 413, got %q", conn.written[0])
	}

	do(t, s, "BREW / HTTP/1.1")

	var sb strings.Builder
	set.WritePrometheus(&sb)
	out := sb.String()
	for _, want := range []string{
		`fastsocket_http_requests_total{method="POST"} 1`,
		`fastsocket_http_requests_total{method="other"} 1`,
		`fastsocket_http_request_body_bytes_total 8`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in\n%s", want, out)
		}
	}
}
