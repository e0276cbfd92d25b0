// Package client calls an RPC server over a TCP connection
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getlantern/golog"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/searchktools/fast-socket/core/rpc/codec"
	"github.com/searchktools/fast-socket/core/rpc/protocol"
	"github.com/searchktools/fast-socket/core/rpc/server"
)

var log = golog.LoggerFor("fastsocket.rpc.client")

var ErrClientClosed = errors.New("rpc: client closed")

// RemoteError is an error returned by the server
type RemoteError string

func (e RemoteError) Error() string {
	return string(e)
}

// Client multiplexes calls over one connection
type Client struct {
	conn    net.Conn
	codec   codec.Codec
	reqID   atomic.Uint32
	pending *xsync.MapOf[uint32, *Call]

	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

// Call is an active call
type Call struct {
	Service string
	Method  string
	Args    any
	Reply   any
	OneWay  bool
	Error   error
	Done    chan *Call
}

// Option configures a client
type Option func(*Client)

// WithCodec sets the payload codec, JSON by default
func WithCodec(c codec.Codec) Option {
	return func(client *Client) {
		client.codec = c
	}
}

// Dial connects to addr
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient runs a client on conn
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		codec:   codec.JSONCodec{},
		pending: xsync.NewMapOf[uint32, *Call](),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.receive()
	return c
}

// Call makes a call and waits for its reply
func (c *Client) Call(ctx context.Context, service, method string, args, reply any) error {
	call := c.Go(&Call{Service: service, Method: method, Args: args, Reply: reply})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case call := <-call.Done:
		return call.Error
	}
}

// Go starts a call, call.Done receives it once complete. One-way calls
// complete once sent.
func (c *Client) Go(call *Call) *Call {
	if call.Done == nil {
		call.Done = make(chan *Call, 1)
	}

	if c.closed.Load() {
		call.Error = ErrClientClosed
		call.done()
		return call
	}

	meta, _ := json.Marshal(server.Metadata{Service: call.Service, Method: call.Method})
	payload, err := c.codec.Encode(call.Args)
	if err != nil {
		call.Error = fmt.Errorf("encode args: %w", err)
		call.done()
		return call
	}

	id := c.reqID.Add(1)
	f := protocol.NewFrame(protocol.TypeRequest, id)
	f.Codec = byte(c.codec.Type())
	f.Metadata = meta
	f.Payload = payload

	if call.OneWay {
		f.SetFlag(protocol.FlagOneWay)
	} else {
		c.pending.Store(id, call)
	}

	if err := c.send(f); err != nil {
		c.pending.Delete(id)
		call.Error = err
		call.done()
		return call
	}

	if call.OneWay {
		call.done()
	}
	return call
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	id := c.reqID.Add(1)
	call := &Call{Done: make(chan *Call, 1)}
	c.pending.Store(id, call)

	if err := c.send(protocol.NewFrame(protocol.TypePing, id)); err != nil {
		c.pending.Delete(id)
		return err
	}

	select {
	case <-ctx.Done():
		c.pending.Delete(id)
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func (c *Client) send(f *protocol.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}
	_, err = c.conn.Write(data)
	return err
}

func (c *Client) receive() {
	defer c.Close()

	r := bufio.NewReader(c.conn)
	header := make([]byte, protocol.HeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				log.Debugf("read header: %v", err)
			}
			return
		}

		n, err := protocol.CheckHeader(header)
		if err != nil {
			log.Errorf("invalid frame: %v", err)
			return
		}

		buf := make([]byte, protocol.HeaderSize+n)
		copy(buf, header)
		if _, err := io.ReadFull(r, buf[protocol.HeaderSize:]); err != nil {
			log.Debugf("read frame: %v", err)
			return
		}

		f, err := protocol.Decode(buf)
		if err != nil {
			log.Errorf("decode frame: %v", err)
			return
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f *protocol.Frame) {
	call, ok := c.pending.LoadAndDelete(f.RequestID)
	if !ok {
		log.Debugf("unexpected reply %d", f.RequestID)
		return
	}

	switch f.Type {
	case protocol.TypeResponse:
		if err := c.codec.Decode(f.Payload, call.Reply); err != nil {
			call.Error = fmt.Errorf("decode reply: %w", err)
		}
	case protocol.TypeError:
		call.Error = RemoteError(f.Payload)
	case protocol.TypePong:
	default:
		call.Error = fmt.Errorf("unexpected frame type %d", f.Type)
	}
	call.done()
}

func (call *Call) done() {
	select {
	case call.Done <- call:
	default:
	}
}

// Close closes the connection and fails pending calls
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		c.closed.Store(true)
		c.writeMu.Unlock()

		err = c.conn.Close()

		c.pending.Range(func(id uint32, call *Call) bool {
			c.pending.Delete(id)
			call.Error = ErrClientClosed
			call.done()
			return true
		})
	})
	return err
}
