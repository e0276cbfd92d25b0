package http2

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/http2"
)

type staticSource string

func (s staticSource) WritePrometheus(w io.Writer) {
	fmt.Fprintf(w, "%s 1\n", string(s))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := NewServer(Config{})
	s.AddSource(staticSource(`fastsocket_sessions{protocol="line"}`))
	s.AddStats("engine", func() any { return map[string]int{"sessions": 3} })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestMetricsHTTP1(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts.Client(), ts.URL+"/metrics")
	if resp.StatusCode != 200 || !strings.Contains(body, `fastsocket_sessions{protocol="line"} 1`) {
		t.Errorf("Unexpected /metrics %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, ts.Client(), ts.URL+"/stats")
	var stats map[string]map[string]int
	if err := json.Unmarshal([]byte(body), &stats); err != nil {
		t.Fatalf("Invalid /stats %q: %v", body, err)
	}
	if stats["engine"]["sessions"] != 3 {
		t.Errorf("Unexpected stats %v", stats)
	}

	resp, _ = get(t, ts.Client(), ts.URL+"/nope")
	if resp.StatusCode != 404 {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestMetricsH2C(t *testing.T) {
	ts := newTestServer(t)

	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}

	resp, body := get(t, client, ts.URL+"/healthz")
	if resp.ProtoMajor != 2 {
		t.Errorf("Expected HTTP/2, got %s", resp.Proto)
	}
	if body != "ok\n" {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestShutdown(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := <-errc; err != nil && err != ErrServerClosed {
		t.Errorf("Unexpected Serve error %v", err)
	}
}
