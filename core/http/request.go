package http

import (
	"net/textproto"
	"strings"
	"sync"

	"golang.org/x/net/http/httpguts"
)

// Request is one parsed HTTP/1.x request. The server recycles it once the
// handler returns, so handlers must not keep it.
type Request struct {
	Method   string
	Path     string
	Proto    string
	RawQuery string

	// Predefined common header fields
	ContentType   string
	ContentLength int64
	Host          string
	Connection    string
	Upgrade       string

	// ExtraHeaders holds every other header by canonical name
	ExtraHeaders map[string]string

	// Query parameters
	Query map[string]string

	Body []byte
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Body: make([]byte, 0, 1024),
		}
	},
}

func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset resets the request for reuse, keeping the allocated maps and body
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Proto = ""
	r.RawQuery = ""
	r.ContentType = ""
	r.ContentLength = 0
	r.Host = ""
	r.Connection = ""
	r.Upgrade = ""

	clear(r.ExtraHeaders)
	clear(r.Query)

	r.Body = r.Body[:0]
}

func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// Header returns the value of the named header, case-insensitively
func (r *Request) Header(key string) string {
	switch key = textproto.CanonicalMIMEHeaderKey(key); key {
	case "Content-Type":
		return r.ContentType
	case "Host":
		return r.Host
	case "Connection":
		return r.Connection
	case "Upgrade":
		return r.Upgrade
	default:
		return r.ExtraHeaders[key]
	}
}

// AddHeader sets a header. A repeated header is joined with ", ".
func (r *Request) AddHeader(key, value string) {
	key = textproto.CanonicalMIMEHeaderKey(key)

	var field *string
	switch key {
	case "Content-Type":
		field = &r.ContentType
	case "Host":
		field = &r.Host
	case "Connection":
		field = &r.Connection
	case "Upgrade":
		field = &r.Upgrade
	default:
		if r.ExtraHeaders == nil {
			r.ExtraHeaders = make(map[string]string)
		}
		if prev, ok := r.ExtraHeaders[key]; ok && prev != "" {
			value = prev + ", " + value
		}
		r.ExtraHeaders[key] = value
		return
	}

	if *field != "" {
		value = *field + ", " + value
	}
	*field = value
}

// KeepAlive reports whether the connection stays open after the response
func (r *Request) KeepAlive() bool {
	conn := []string{r.Connection}
	if r.Proto == "HTTP/1.0" {
		return httpguts.HeaderValuesContainsToken(conn, "keep-alive")
	}
	return !httpguts.HeaderValuesContainsToken(conn, "close")
}

// IsUpgrade reports whether the client asks to switch to protocol
func (r *Request) IsUpgrade(protocol string) bool {
	return httpguts.HeaderValuesContainsToken([]string{r.Connection}, "upgrade") &&
		strings.EqualFold(r.Upgrade, protocol)
}
