// Package router maps a method and a path to a handler. Static routes are
// found with one hash lookup; routes with :param or *catchAll segments are
// matched segment by segment.
package router

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Params holds the values of the wildcard segments of a matched route
type Params map[string]string

// Router is safe for concurrent lookups once all routes are added
type Router[H any] struct {
	static map[uint64][]staticRoute[H]
	params []paramRoute[H]
}

type staticRoute[H any] struct {
	method  string
	path    string
	handler H
}

type segment struct {
	value    string
	param    bool
	catchAll bool
}

type paramRoute[H any] struct {
	method   string
	segments []segment
	handler  H
}

// New creates an empty router
func New[H any]() *Router[H] {
	return &Router[H]{
		static: make(map[uint64][]staticRoute[H], 64),
	}
}

// Add registers handler for method and path. It panics on malformed paths.
func (r *Router[H]) Add(method, path string, handler H) {
	if path == "" || path[0] != '/' {
		panic("router: path must begin with '/'")
	}

	if !strings.ContainsAny(path, ":*") {
		h := hashRoute(method, path)
		routes := r.static[h]
		for i := range routes {
			if routes[i].method == method && routes[i].path == path {
				routes[i].handler = handler
				return
			}
		}
		r.static[h] = append(routes, staticRoute[H]{method: method, path: path, handler: handler})
		return
	}

	parts := strings.Split(path[1:], "/")
	segments := make([]segment, len(parts))
	for i, p := range parts {
		if len(p) > 1 && strings.ContainsAny(p[1:], ":*") {
			panic("router: only one wildcard per path segment is allowed")
		}

		switch {
		case strings.HasPrefix(p, ":"):
			if len(p) < 2 {
				panic("router: wildcards must be named")
			}
			segments[i] = segment{value: p[1:], param: true}
		case strings.HasPrefix(p, "*"):
			if len(p) < 2 {
				panic("router: wildcards must be named")
			}
			if i != len(parts)-1 {
				panic("router: catch-all routes are only allowed at the end of the path")
			}
			segments[i] = segment{value: p[1:], catchAll: true}
		default:
			segments[i] = segment{value: p}
		}
	}

	r.params = append(r.params, paramRoute[H]{method: method, segments: segments, handler: handler})
}

// Find returns the handler for method and path. Static routes win over
// parameterized ones; among those the first registered match wins.
func (r *Router[H]) Find(method, path string) (H, Params, bool) {
	var zero H

	for _, route := range r.static[hashRoute(method, path)] {
		if route.method == method && route.path == path {
			return route.handler, nil, true
		}
	}

	if len(path) == 0 || path[0] != '/' {
		return zero, nil, false
	}

	for i := range r.params {
		route := &r.params[i]
		if route.method != method {
			continue
		}
		if params, ok := route.match(path[1:]); ok {
			return route.handler, params, true
		}
	}

	return zero, nil, false
}

// Allowed returns the methods routed for path, for 405 responses
func (r *Router[H]) Allowed(path string) []string {
	var methods []string
	seen := make(map[string]bool)

	for _, routes := range r.static {
		for _, route := range routes {
			if route.path == path && !seen[route.method] {
				seen[route.method] = true
				methods = append(methods, route.method)
			}
		}
	}

	if len(path) > 0 && path[0] == '/' {
		for i := range r.params {
			route := &r.params[i]
			if seen[route.method] {
				continue
			}
			if _, ok := route.match(path[1:]); ok {
				seen[route.method] = true
				methods = append(methods, route.method)
			}
		}
	}

	return methods
}

func (route *paramRoute[H]) match(path string) (Params, bool) {
	var params Params

	for i, seg := range route.segments {
		if seg.catchAll {
			if params == nil {
				params = make(Params, 1)
			}
			params[seg.value] = path
			return params, true
		}

		part, rest, more := strings.Cut(path, "/")
		if last := i == len(route.segments)-1; more == last {
			// the path has fewer or more segments than the route
			return nil, false
		}

		if seg.param {
			if part == "" {
				return nil, false
			}
			if params == nil {
				params = make(Params, 2)
			}
			params[seg.value] = part
		} else if part != seg.value {
			return nil, false
		}

		path = rest
	}

	return params, true
}

func hashRoute(method, path string) uint64 {
	d := xxhash.New()
	d.WriteString(method)
	d.WriteString(" ")
	d.WriteString(path)
	return d.Sum64()
}
