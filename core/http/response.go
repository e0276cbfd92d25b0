package http

import (
	"net/textproto"
	"strconv"
	"time"
)

// timeFormat is the format of the Date header
const timeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// ServerName is sent in the Server header
var ServerName = "fast-socket"

type headerField struct {
	key   string
	value string
}

// Response is an HTTP/1.1 response
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Body       []byte
	KeepAlive  bool
	// Streaming responses have no Content-Length; the body follows in
	// later writes until the connection closes
	Streaming bool

	header []headerField
}

// NewResponse creates a keep-alive response with code
func NewResponse(code int) *Response {
	return &Response{
		StatusCode: code,
		Status:     StatusText(code),
		Proto:      "HTTP/1.1",
		KeepAlive:  true,
	}
}

// Reset prepares the response for reuse
func (r *Response) Reset() {
	r.StatusCode = 200
	r.Status = ""
	r.Proto = "HTTP/1.1"
	r.Body = nil
	r.KeepAlive = true
	r.Streaming = false
	r.header = r.header[:0]
}

// SetHeader sets a header, replacing any previous value
func (r *Response) SetHeader(key, value string) {
	key = textproto.CanonicalMIMEHeaderKey(key)
	for i := range r.header {
		if r.header[i].key == key {
			r.header[i].value = value
			return
		}
	}
	r.header = append(r.header, headerField{key: key, value: value})
}

// Header returns the value of a header set on the response
func (r *Response) Header(key string) string {
	key = textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range r.header {
		if f.key == key {
			return f.value
		}
	}
	return ""
}

// SetContentType sets the Content-Type header
func (r *Response) SetContentType(contentType string) {
	r.SetHeader("Content-Type", contentType)
}

// SetupForServerSentEvents turns the response into an event stream header
func (r *Response) SetupForServerSentEvents() {
	r.SetContentType("text/event-stream")
	r.SetHeader("Cache-Control", "no-cache")
	r.SetHeader("Access-Control-Allow-Origin", "*")
	r.SetHeader("Access-Control-Allow-Headers", "Cache-Control")
	r.KeepAlive = true
	r.Streaming = true
}

// AppendTo appends the encoded response to b
func (r *Response) AppendTo(b []byte) []byte {
	status := r.Status
	if status == "" {
		status = StatusText(r.StatusCode)
	}

	b = append(b, r.Proto...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(r.StatusCode), 10)
	b = append(b, ' ')
	b = append(b, status...)
	b = append(b, "\r\n"...)

	for _, f := range r.header {
		switch f.key {
		case "Content-Length", "Connection":
			continue
		}
		b = appendHeader(b, f.key, f.value)
	}

	if r.Header("Date") == "" {
		b = appendHeader(b, "Date", time.Now().UTC().Format(timeFormat))
	}
	if r.Header("Server") == "" {
		b = appendHeader(b, "Server", ServerName)
	}

	if !r.Streaming && r.StatusCode != 101 {
		b = append(b, "Content-Length: "...)
		b = strconv.AppendInt(b, int64(len(r.Body)), 10)
		b = append(b, "\r\n"...)
	}

	switch {
	case r.StatusCode == 101:
		b = appendHeader(b, "Connection", "Upgrade")
	case r.KeepAlive:
		b = appendHeader(b, "Connection", "keep-alive")
	default:
		b = appendHeader(b, "Connection", "close")
	}

	b = append(b, "\r\n"...)
	return append(b, r.Body...)
}

func appendHeader(b []byte, key, value string) []byte {
	b = append(b, key...)
	b = append(b, ": "...)
	b = append(b, value...)
	return append(b, "\r\n"...)
}

// StatusText returns the HTTP status text for the given code
func StatusText(code int) string {
	switch code {
	case 101:
		return "Switching Protocols"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 429:
		return "Too Many Requests"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
