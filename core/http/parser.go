package http

import (
	"errors"
	"fmt"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	ErrInvalidRequest   = errors.New("invalid HTTP request")
	ErrInvalidHeader    = errors.New("invalid HTTP header")
	ErrTransferEncoding = errors.New("transfer encodings are not supported")
)

// ParseRequest parses a request line and the header lines following it. text
// holds everything before the blank line ending the header block.
func ParseRequest(text string, req *Request) error {
	line, rest, _ := strings.Cut(text, "\n")
	line = strings.TrimSuffix(line, "\r")

	if err := parseRequestLine(line, req); err != nil {
		return err
	}

	if err := parseHeaders(rest, req); err != nil {
		return err
	}

	if te := req.ExtraHeaders["Transfer-Encoding"]; te != "" {
		return fmt.Errorf("%w: %s", ErrTransferEncoding, te)
	}

	if cl := req.ExtraHeaders["Content-Length"]; cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: content length %q", ErrInvalidHeader, cl)
		}
		req.ContentLength = n
	}

	return nil
}

// parseRequestLine parses METHOD PATH PROTO
func parseRequestLine(line string, req *Request) error {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" || strings.Contains(proto, " ") {
		return fmt.Errorf("%w: request line %q", ErrInvalidRequest, line)
	}

	if !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("%w: method %q", ErrInvalidRequest, method)
	}
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return fmt.Errorf("%w: protocol %q", ErrInvalidRequest, proto)
	}

	req.Method = method
	req.Proto = proto
	req.Path = target

	if idx := strings.IndexByte(target, '?'); idx != -1 {
		req.Path = target[:idx]
		req.RawQuery = target[idx+1:]
		parseQuery(req, req.RawQuery)
	}

	return nil
}

// parseHeaders parses Name: Value lines. A line starting with a space or a
// tab continues the previous value.
func parseHeaders(text string, req *Request) error {
	var prevKey string

	for text != "" {
		var line string
		line, text, _ = strings.Cut(text, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if prevKey == "" {
				return fmt.Errorf("%w: continuation without header", ErrInvalidHeader)
			}
			value := strings.TrimSpace(line)
			if !httpguts.ValidHeaderFieldValue(value) {
				return fmt.Errorf("%w: value of %s", ErrInvalidHeader, prevKey)
			}
			appendContinuation(req, prevKey, value)
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidHeader, line)
		}

		key := line[:colon]
		value := strings.TrimSpace(line[colon+1:])

		if !httpguts.ValidHeaderFieldName(key) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, key)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("%w: value of %s", ErrInvalidHeader, key)
		}

		req.AddHeader(key, value)
		prevKey = textproto.CanonicalMIMEHeaderKey(key)
	}

	return nil
}

func appendContinuation(req *Request, key, value string) {
	prev := req.Header(key)
	if prev != "" {
		value = prev + " " + value
	}

	// replace instead of joining with ", "
	switch key {
	case "Content-Type":
		req.ContentType = value
	case "Host":
		req.Host = value
	case "Connection":
		req.Connection = value
	case "Upgrade":
		req.Upgrade = value
	default:
		req.ExtraHeaders[key] = value
	}
}

// parseQuery parses query parameters; the last of repeated keys wins
func parseQuery(req *Request, query string) {
	if req.Query == nil {
		req.Query = make(map[string]string)
	}

	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		req.Query[key] = value
	}
}
