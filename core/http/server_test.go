package http

import (
	"strings"
	"testing"
)

type fakeConn struct {
	written []string
	closed  bool
}

func (c *fakeConn) SendBytes(p []byte) bool {
	c.written = append(c.written, string(p))
	return true
}

func (c *fakeConn) CloseWhenFlushed() {
	c.closed = true
}

func (c *fakeConn) RemoteAddr() string {
	return "127.0.0.1:1234"
}

func serve(t *testing.T, s *Server, text string, body string) *fakeConn {
	t.Helper()

	req := AcquireRequest()
	if err := ParseRequest(text, req); err != nil {
		t.Fatal(err)
	}
	req.Body = append(req.Body, body...)

	conn := &fakeConn{}
	s.Serve(conn, req)
	return conn
}

func TestServerRoutes(t *testing.T) {
	s := NewServer()
	s.GET("/users/:id", func(ctx *Context) {
		ctx.String(200, "user "+ctx.Param("id")+" "+ctx.Query("v"))
	})
	s.POST("/echo", func(ctx *Context) {
		var v map[string]string
		if err := ctx.Bind(&v); err != nil {
			ctx.Error(400, err.Error())
			return
		}
		ctx.JSON(201, v)
	})

	conn := serve(t, s, "GET /users/42?v=x HTTP/1.1", "")
	if len(conn.written) != 1 {
		t.Fatalf("Expected one response, got %d", len(conn.written))
	}
	resp := conn.written[0]
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(resp, "\r\n\r\nuser 42 x") {
		t.Errorf("Unexpected response %q", resp)
	}
	if !strings.Contains(resp, "Content-Length: 9\r\n") || !strings.Contains(resp, "Connection: keep-alive\r\n") {
		t.Errorf("Missing headers in %q", resp)
	}
	if conn.closed {
		t.Error("Keep-alive connection must stay open")
	}

	conn = serve(t, s, "POST /echo HTTP/1.1\r\nConnection: close", `{"a":"b"}`)
	resp = conn.written[0]
	if !strings.HasPrefix(resp, "HTTP/1.1 201 Created\r\n") || !strings.HasSuffix(resp, `{"a":"b"}`) {
		t.Errorf("Unexpected response %q", resp)
	}
	if !conn.closed {
		t.Error("Expected Connection: close to close after the response")
	}
}

func TestServerNotFoundAndMethodNotAllowed(t *testing.T) {
	s := NewServer()
	s.GET("/only-get", func(ctx *Context) { ctx.Status(200) })

	conn := serve(t, s, "GET /missing HTTP/1.1", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 404 Not Found") {
		t.Errorf("Expected 404, got %q", conn.written[0])
	}

	conn = serve(t, s, "POST /only-get HTTP/1.1", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 405 Method Not Allowed") ||
		!strings.Contains(conn.written[0], "Allow: GET\r\n") {
		t.Errorf("Expected 405 with Allow, got %q", conn.written[0])
	}
}

func TestServerMiddleware(t *testing.T) {
	var order []string

	s := NewServer()
	s.Use(func(ctx *Context) {
		order = append(order, "first")
		ctx.SetHeader("X-Request-Id", "1")
	}, func(ctx *Context) {
		order = append(order, "second")
		if ctx.Header("Authorization") == "" {
			ctx.Abort()
			ctx.Error(401, "Unauthorized")
		}
	})
	s.GET("/", func(ctx *Context) {
		order = append(order, "handler")
		ctx.String(200, "ok")
	})

	conn := serve(t, s, "GET / HTTP/1.1", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 401") || !strings.Contains(conn.written[0], "X-Request-Id: 1\r\n") {
		t.Errorf("Unexpected response %q", conn.written[0])
	}
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("Unexpected order %v", order)
	}

	order = nil
	conn = serve(t, s, "GET / HTTP/1.1\r\nAuthorization: token", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 200") {
		t.Errorf("Unexpected response %q", conn.written[0])
	}
	if strings.Join(order, ",") != "first,second,handler" {
		t.Errorf("Unexpected order %v", order)
	}
}

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer()
	s.GET("/panic", func(*Context) { panic("boom") })
	s.GET("/silent", func(*Context) {})

	conn := serve(t, s, "GET /panic HTTP/1.1", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 500") || !conn.closed {
		t.Errorf("Expected a 500 closing the connection, got %q", conn.written[0])
	}

	conn = serve(t, s, "GET /silent HTTP/1.1", "")
	if !strings.HasPrefix(conn.written[0], "HTTP/1.1 204 No Content") {
		t.Errorf("Expected 204 when the handler writes nothing, got %q", conn.written[0])
	}
}

func TestResponseStreaming(t *testing.T) {
	r := NewResponse(200)
	r.SetupForServerSentEvents()

	out := string(r.AppendTo(nil))
	if strings.Contains(out, "Content-Length") {
		t.Errorf("Streaming responses have no length: %q", out)
	}
	if !strings.Contains(out, "Content-Type: text/event-stream\r\n") || !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("Unexpected stream header %q", out)
	}

	r = NewResponse(101)
	r.SetHeader("Upgrade", "websocket")
	out = string(r.AppendTo(nil))
	if !strings.HasPrefix(out, "HTTP/1.1 101 Switching Protocols\r\n") || !strings.Contains(out, "Connection: Upgrade\r\n") {
		t.Errorf("Unexpected upgrade response %q", out)
	}
}
