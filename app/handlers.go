package app

import (
	"context"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"github.com/searchktools/fast-socket/core"
	"github.com/searchktools/fast-socket/core/http"
	"github.com/searchktools/fast-socket/core/middleware"
	"github.com/searchktools/fast-socket/core/protocol/line"
	"github.com/searchktools/fast-socket/core/sse"
	"github.com/searchktools/fast-socket/core/websocket"
)

// EchoLine serves the built-in line commands:
//
//	ECHO <text>   replies text
//	PING          replies PONG
//	TIME          replies the server time in RFC 3339
//	QUIT          replies BYE and closes the session
func EchoLine(s *core.Session[*line.Package], pkg *line.Package) {
	switch strings.ToUpper(pkg.Key) {
	case "ECHO":
		line.Reply(s, pkg.Body)
	case "PING":
		line.Reply(s, "PONG")
	case "TIME":
		line.Reply(s, time.Now().Format(time.RFC3339))
	case "QUIT":
		line.Reply(s, "BYE")
		s.CloseWhenFlushed()
	case "":
	default:
		line.Reply(s, "ERR unknown command "+pkg.Key)
	}
}

// DefaultHTTPServer returns the built-in HTTP routes. Requests are counted in
// set, events posted to /publish reach every client of /events.
func DefaultHTTPServer(set *metrics.Set, broker *sse.Broker) *http.Server {
	srv := http.NewServer()
	srv.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(set),
		middleware.MaxBodySize(1<<20),
	)

	srv.GET("/", func(ctx *http.Context) {
		ctx.String(200, "fastsocket\n")
	})

	srv.GET("/healthz", func(ctx *http.Context) {
		ctx.JSON(200, map[string]string{"status": "ok"})
	})

	srv.POST("/echo", func(ctx *http.Context) {
		ct := ctx.Header("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		ctx.Data(200, ct, ctx.Body())
	})

	srv.GET("/events", func(ctx *http.Context) {
		ctx.StartEventStream()
		w := sse.NewWriter(ctx.Conn())
		if err := broker.Subscribe(uuid.NewString(), w); err != nil {
			w.Close()
		}
	})

	srv.POST("/publish", func(ctx *http.Context) {
		ev := sse.Event{
			Event: ctx.Query("event"),
			Data:  string(ctx.Body()),
		}
		if ev.Data == "" {
			ctx.Error(400, "empty event")
			return
		}
		ctx.JSON(202, map[string]int{"delivered": broker.Publish(ev)})
	})

	return srv
}

// LobbyRoom is the room every websocket client of the default server joins
const LobbyRoom = "lobby"

// DefaultWebSocketServer echoes messages to their sender. A text message
// starting with "/all " goes to every client in the lobby instead.
func DefaultWebSocketServer() *websocket.Server {
	var srv *websocket.Server
	srv = websocket.NewServer(func(c *websocket.Conn, msg *websocket.Message) {
		if msg.OpCode == websocket.OpText {
			if text, ok := strings.CutPrefix(string(msg.Data), "/all "); ok {
				srv.Hub.Room(LobbyRoom).Broadcast(websocket.OpText, []byte(text))
				return
			}
		}
		c.WriteMessage(msg.OpCode, msg.Data)
	})

	srv.OnOpen = func(c *websocket.Conn, req *http.Request) {
		srv.Hub.Room(LobbyRoom).Join(c)
	}
	return srv
}

// EchoService is the built-in RPC service
type EchoService struct{}

type EchoArgs struct {
	Message string `json:"message"`
}

type EchoReply struct {
	Message string `json:"message"`
}

func (EchoService) Echo(ctx context.Context, args *EchoArgs) (*EchoReply, error) {
	return &EchoReply{Message: args.Message}, nil
}

type SumArgs struct {
	Values []int64 `json:"values"`
}

type SumReply struct {
	Sum int64 `json:"sum"`
}

func (EchoService) Sum(ctx context.Context, args *SumArgs) (*SumReply, error) {
	var sum int64
	for _, v := range args.Values {
		sum += v
	}
	return &SumReply{Sum: sum}, nil
}
