package websocket

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Hub tracks open connections and their rooms
type Hub struct {
	conns *xsync.MapOf[uint64, *Conn]
	rooms *xsync.MapOf[string, *Room]

	sent    *xsync.Counter
	dropped *xsync.Counter
}

func NewHub() *Hub {
	return &Hub{
		conns:   xsync.NewMapOf[uint64, *Conn](),
		rooms:   xsync.NewMapOf[string, *Room](),
		sent:    xsync.NewCounter(),
		dropped: xsync.NewCounter(),
	}
}

func (h *Hub) add(c *Conn) {
	h.conns.Store(c.ID(), c)
}

func (h *Hub) remove(id uint64) (*Conn, bool) {
	c, ok := h.conns.LoadAndDelete(id)
	if !ok {
		return nil, false
	}

	c.rooms.Range(func(name string, _ struct{}) bool {
		if r, ok := h.rooms.Load(name); ok {
			r.conns.Delete(id)
		}
		return true
	})
	return c, true
}

// Conn returns the connection of session id
func (h *Hub) Conn(id uint64) (*Conn, bool) {
	return h.conns.Load(id)
}

func (h *Hub) Count() int {
	return h.conns.Size()
}

// Broadcast sends a message to every connection and returns how many accepted it
func (h *Hub) Broadcast(op OpCode, payload []byte) int {
	return h.fanOut(op, payload, h.conns.Range)
}

// fanOut encodes the frame once and queues it on every connection
func (h *Hub) fanOut(op OpCode, payload []byte, each func(func(uint64, *Conn) bool)) int {
	st := encodeFrame(op, payload)
	st.Retain()
	defer st.Release()

	n := 0
	each(func(_ uint64, c *Conn) bool {
		if !c.Closing() && c.sendState(st) {
			n++
			h.sent.Inc()
		} else {
			h.dropped.Inc()
		}
		return true
	})
	return n
}

// Room returns the room called name, creating it
func (h *Hub) Room(name string) *Room {
	r, _ := h.rooms.LoadOrCompute(name, func() *Room {
		return &Room{Name: name, hub: h, conns: xsync.NewMapOf[uint64, *Conn]()}
	})
	return r
}

// DeleteRoom removes a room and its memberships
func (h *Hub) DeleteRoom(name string) {
	r, ok := h.rooms.LoadAndDelete(name)
	if !ok {
		return
	}
	r.conns.Range(func(_ uint64, c *Conn) bool {
		c.rooms.Delete(name)
		return true
	})
}

func (h *Hub) RoomCount() int {
	return h.rooms.Size()
}

// HubStats of a hub
type HubStats struct {
	Connections int   `json:"connections"`
	Rooms       int   `json:"rooms"`
	Sent        int64 `json:"sent"`
	Dropped     int64 `json:"dropped"`
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Connections: h.conns.Size(),
		Rooms:       h.rooms.Size(),
		Sent:        h.sent.Value(),
		Dropped:     h.dropped.Value(),
	}
}

// Room is a named group of connections
type Room struct {
	Name  string
	hub   *Hub
	conns *xsync.MapOf[uint64, *Conn]
}

func (r *Room) Join(c *Conn) {
	r.conns.Store(c.ID(), c)
	c.rooms.Store(r.Name, struct{}{})
}

func (r *Room) Leave(c *Conn) {
	r.conns.Delete(c.ID())
	c.rooms.Delete(r.Name)
}

func (r *Room) Count() int {
	return r.conns.Size()
}

// Broadcast sends a message to every member
func (r *Room) Broadcast(op OpCode, payload []byte) int {
	return r.hub.fanOut(op, payload, r.conns.Range)
}
