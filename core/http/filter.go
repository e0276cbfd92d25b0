package http

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
)

var headerTerminator = []byte("\r\n\r\n")

// codec pairs the header filter with the body filter it hands requests
// with a Content-Length to
type codec struct {
	header  *filter.Terminator[*Request]
	body    *filter.FixedSize[*Request]
	pending *Request
}

// NewFilter returns a filter framing HTTP/1.x requests. Requests without a
// body are resolved by the header filter; otherwise the header filter hands
// the stream to a body filter which chains back once the body is complete.
func NewFilter() filter.ReceiveFilter[*Request] {
	c := &codec{}
	c.header, _ = filter.NewTerminator(headerTerminator, c.resolveHeader)
	c.body = filter.NewFixedSize(0, c.resolveBody)
	return c.header
}

func (c *codec) resolveHeader(data *buffer.List) (*Request, bool) {
	// header fields are ISO-8859-1
	text, err := data.DecodeText(charmap.ISO8859_1, 0, data.Total()-len(headerTerminator))
	if err != nil {
		c.header.SetError(err)
		return nil, false
	}

	req := AcquireRequest()
	if err := ParseRequest(text, req); err != nil {
		ReleaseRequest(req)
		c.header.SetError(err)
		return nil, false
	}

	if req.ContentLength == 0 {
		return req, true
	}

	c.pending = req
	c.body.ResetSize(int(req.ContentLength))
	c.header.SetNext(c.body)
	return nil, false
}

func (c *codec) resolveBody(data *buffer.List) (*Request, bool) {
	req := c.pending
	c.pending = nil

	n := data.Total()
	if cap(req.Body) < n {
		req.Body = make([]byte, n)
	}
	req.Body = req.Body[:n]
	data.CopyTo(req.Body, 0)

	c.body.SetNext(c.header)
	return req, true
}
