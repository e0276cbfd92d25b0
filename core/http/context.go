package http

import (
	"encoding/json"
	"sync"
)

// Conn is the connection a response is written to. core.Session satisfies it.
type Conn interface {
	SendBytes(p []byte) bool
	CloseWhenFlushed()
	RemoteAddr() string
}

// Context carries one request and builds its response
type Context struct {
	conn    Conn
	request *Request
	params  map[string]string

	response    Response
	responseBuf []byte

	aborted bool
	written bool
}

var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			responseBuf: make([]byte, 0, 4096),
		}
	},
}

// AcquireContext returns a context for req on conn
func AcquireContext(conn Conn, req *Request) *Context {
	c := contextPool.Get().(*Context)
	c.conn = conn
	c.request = req
	c.response.Reset()
	c.response.KeepAlive = req.KeepAlive()
	return c
}

// ReleaseContext returns c to the pool
func ReleaseContext(c *Context) {
	c.conn = nil
	c.request = nil
	c.params = nil
	c.aborted = false
	c.written = false
	c.responseBuf = c.responseBuf[:0]
	contextPool.Put(c)
}

func (c *Context) Request() *Request {
	return c.request
}

func (c *Context) Conn() Conn {
	return c.conn
}

func (c *Context) Method() string {
	return c.request.Method
}

func (c *Context) Path() string {
	return c.request.Path
}

func (c *Context) Query(key string) string {
	return c.request.Query[key]
}

func (c *Context) Header(key string) string {
	return c.request.Header(key)
}

func (c *Context) Body() []byte {
	return c.request.Body
}

// Param returns a path parameter of the matched route
func (c *Context) Param(key string) string {
	return c.params[key]
}

// SetParams sets the path parameters
func (c *Context) SetParams(params map[string]string) {
	c.params = params
}

// Bind decodes the JSON body into v
func (c *Context) Bind(v any) error {
	return json.Unmarshal(c.request.Body, v)
}

// SetHeader sets a response header
func (c *Context) SetHeader(key, value string) {
	c.response.SetHeader(key, value)
}

// Abort stops the remaining middleware and the route handler
func (c *Context) Abort() {
	c.aborted = true
}

func (c *Context) IsAborted() bool {
	return c.aborted
}

// Written reports whether a response was sent
func (c *Context) Written() bool {
	return c.written
}

// Status sends an empty response
func (c *Context) Status(code int) {
	c.Data(code, "", nil)
}

// String sends a text response
func (c *Context) String(code int, s string) {
	c.Data(code, "text/plain; charset=utf-8", []byte(s))
}

// JSON sends a JSON response
func (c *Context) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.String(500, "JSON marshal error")
		return
	}
	c.Data(code, "application/json", data)
}

// Bytes sends a raw bytes response
func (c *Context) Bytes(code int, data []byte) {
	c.Data(code, "application/octet-stream", data)
}

// Error sends a JSON error response
func (c *Context) Error(code int, message string) {
	c.JSON(code, map[string]any{
		"code":    code,
		"message": message,
	})
}

// Data sends a response with the given content type. Only the first
// response of a request is sent.
func (c *Context) Data(code int, contentType string, data []byte) {
	if c.written {
		return
	}

	c.response.StatusCode = code
	c.response.Status = StatusText(code)
	if contentType != "" {
		c.response.SetContentType(contentType)
	}
	c.response.Body = data
	c.write()
}

// Upgrade sends 101 Switching Protocols with the given headers
func (c *Context) Upgrade(protocol string, headers map[string]string) {
	if c.written {
		return
	}

	c.response.StatusCode = 101
	c.response.Status = StatusText(101)
	c.response.SetHeader("Upgrade", protocol)
	for k, v := range headers {
		c.response.SetHeader(k, v)
	}
	c.write()
}

// StartEventStream sends the header of a server-sent event stream. Events
// are written to Conn afterwards.
func (c *Context) StartEventStream() {
	if c.written {
		return
	}

	c.response.StatusCode = 200
	c.response.Status = StatusText(200)
	c.response.SetupForServerSentEvents()
	c.write()
}

func (c *Context) write() {
	c.written = true
	c.responseBuf = c.response.AppendTo(c.responseBuf[:0])
	c.conn.SendBytes(c.responseBuf)

	if !c.response.KeepAlive {
		c.conn.CloseWhenFlushed()
	}
}
