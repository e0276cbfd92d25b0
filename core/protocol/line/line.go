// Package line implements a text command protocol: one command per line,
// a key followed by space separated parameters.
package line

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/buffer"
	"github.com/searchktools/fast-socket/core/filter"
)

// CRLF is the default line terminator
var CRLF = []byte("\r\n")

// Package is one parsed command line
type Package struct {
	Key        string
	Body       string
	Parameters []string
}

// Parser splits a line into key, body and parameters
type Parser struct {
	Separator          string
	ParameterSeparator string
}

// DefaultParser splits on single spaces
var DefaultParser = Parser{Separator: " ", ParameterSeparator: " "}

// Parse parses one line without its terminator
func (p Parser) Parse(text string) *Package {
	key, body, found := strings.Cut(text, p.Separator)
	pkg := &Package{Key: key}
	if !found {
		return pkg
	}

	pkg.Body = body
	for _, param := range strings.Split(body, p.ParameterSeparator) {
		if param != "" {
			pkg.Parameters = append(pkg.Parameters, param)
		}
	}
	return pkg
}

// Config of the line protocol
type Config struct {
	Terminator []byte
	Encoding   encoding.Encoding
	Parser     Parser
}

func (c Config) withDefaults() Config {
	if len(c.Terminator) == 0 {
		c.Terminator = CRLF
	}
	if c.Encoding == nil {
		c.Encoding = unicode.UTF8
	}
	if c.Parser.Separator == "" {
		c.Parser.Separator = DefaultParser.Separator
	}
	if c.Parser.ParameterSeparator == "" {
		c.Parser.ParameterSeparator = DefaultParser.ParameterSeparator
	}
	return c
}

// NewFilter creates a terminator filter resolving parsed lines
func NewFilter(cfg Config) (*filter.Terminator[*Package], error) {
	cfg = cfg.withDefaults()
	markLen := len(cfg.Terminator)

	return filter.NewTerminator(cfg.Terminator, func(data *buffer.List) (*Package, bool) {
		text, err := data.DecodeText(cfg.Encoding, 0, data.Total()-markLen)
		if err != nil {
			return nil, false
		}
		return cfg.Parser.Parse(text), true
	})
}

// Protocol returns an engine protocol calling handle for every line
func Protocol(cfg Config, handle func(s *core.Session[*Package], pkg *Package)) (core.Protocol[*Package], error) {
	cfg = cfg.withDefaults()

	// fail early on a bad terminator, every session builds its own filter
	if _, err := NewFilter(cfg); err != nil {
		return core.Protocol[*Package]{}, fmt.Errorf("line protocol: %w", err)
	}

	return core.Protocol[*Package]{
		Name: "line",
		NewFilter: func() filter.ReceiveFilter[*Package] {
			f, _ := NewFilter(cfg)
			return f
		},
		Handle: handle,
	}, nil
}

// Reply sends text followed by CRLF
func Reply[P any](s *core.Session[P], text string) bool {
	buf := make([]byte, 0, len(text)+len(CRLF))
	buf = append(buf, text...)
	buf = append(buf, CRLF...)
	return s.SendBytes(buf)
}
