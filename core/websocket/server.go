package websocket

import (
	"github.com/getlantern/golog"

	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/filter"
	"github.com/searchktools/fast-socket/core/http"
)

var log = golog.LoggerFor("fastsocket.websocket")

// Server accepts websocket connections and dispatches their messages
type Server struct {
	Hub *Hub
	// MaxMessageSize limits assembled messages, 0 for no limit
	MaxMessageSize int

	OnOpen    func(c *Conn, req *http.Request)
	OnMessage func(c *Conn, msg *Message)
	OnClose   func(c *Conn)
}

// NewServer creates a server calling onMessage for every data message
func NewServer(onMessage func(c *Conn, msg *Message)) *Server {
	return &Server{
		Hub:            NewHub(),
		MaxMessageSize: 1 << 20,
		OnMessage:      onMessage,
	}
}

// Protocol returns the engine protocol serving s
func (s *Server) Protocol() core.Protocol[*Message] {
	return core.Protocol[*Message]{
		Name:      "websocket",
		NewFilter: func() filter.ReceiveFilter[*Message] { return NewFilter(s.MaxMessageSize) },
		Handle: func(sess *core.Session[*Message], msg *Message) {
			s.Serve(sess, msg)
		},
		OnClosed: func(sess *core.Session[*Message], reason string) {
			s.Closed(sess.ID())
		},
	}
}

// Serve handles one package of sess
func (s *Server) Serve(sess Session, msg *Message) {
	if msg.Handshake != nil {
		s.handshake(sess, msg)
		return
	}

	c, ok := s.Hub.Conn(sess.ID())
	if !ok {
		return
	}

	switch msg.OpCode {
	case OpPing:
		c.WriteMessage(OpPong, msg.Data)
	case OpPong:
	case OpClose:
		code, _, err := ParseClosePayload(msg.Data)
		if err != nil {
			code = CloseProtocolError
		}
		if c.Closing() {
			// the peer answered our close
			sess.CloseWhenFlushed()
			return
		}
		c.Close(code, "")
	default:
		if s.OnMessage != nil {
			s.OnMessage(c, msg)
		}
	}
}

func (s *Server) handshake(sess Session, msg *Message) {
	req := msg.Handshake
	defer http.ReleaseRequest(req)

	if msg.HandshakeErr != nil {
		log.Debugf("rejecting %s: %v", sess.RemoteAddr(), msg.HandshakeErr)

		resp := http.NewResponse(400)
		resp.KeepAlive = false
		resp.SetContentType("text/plain; charset=utf-8")
		resp.Body = []byte(msg.HandshakeErr.Error())
		sess.SendBytes(resp.AppendTo(nil))
		sess.CloseWhenFlushed()
		return
	}

	resp := http.NewResponse(101)
	resp.SetHeader("Upgrade", "websocket")
	resp.SetHeader("Sec-WebSocket-Accept", AcceptKey(req.Header("Sec-WebSocket-Key")))
	if !sess.SendBytes(resp.AppendTo(nil)) {
		return
	}

	c := newConn(sess)
	s.Hub.add(c)
	if s.OnOpen != nil {
		s.OnOpen(c, req)
	}
}

// Closed forgets the connection of session id
func (s *Server) Closed(id uint64) {
	c, ok := s.Hub.remove(id)
	if ok && s.OnClose != nil {
		s.OnClose(c)
	}
}
