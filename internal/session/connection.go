// Package session implements the per-client Connection: a thin wrapper
// binding a transport Peer to a protocol identity and a room
// back-reference. The UDP source (ip, port) already is the peer, so
// identity and transport binding live in one type.
package session

import (
	"sync"
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/transport"
)

// RoomHandle is the subset of room behavior a Connection needs without
// importing internal/room (which imports internal/session), avoiding an
// import cycle. internal/room's Room type satisfies this.
type RoomHandle interface {
	HandleClientLeave(clientID uint32, reason codec.DisconnectReason)
}

// Connection is the per-client session object: identity,
// ping, language, a room pointer cleared on leave, and an outbound
// coalescing buffer flushed once per tick.
type Connection struct {
	peer *transport.Peer

	ClientID uint32
	Username string
	Language uint8
	Platform uint8

	ProtocolVersion uint8

	mu           sync.Mutex
	room         RoomHandle
	pendingRoot  []codec.RootMsg
	lastPingSent time.Time
}

// New binds a transport peer to a freshly assigned client identity.
func New(peer *transport.Peer, clientID uint32, hello transport.HelloPayload) *Connection {
	return &Connection{
		peer:            peer,
		ClientID:        clientID,
		Username:        hello.Username,
		Language:        hello.Language,
		Platform:        hello.Platform,
		ProtocolVersion: hello.ProtocolVersion,
	}
}

// Peer exposes the underlying transport binding for direct sends (e.g.
// unreliable movement fast-path writes that bypass coalescing).
func (c *Connection) Peer() *transport.Peer { return c.peer }

// ID returns the process-unique client id assigned at Hello.
func (c *Connection) ID() uint32 { return c.ClientID }

// Name returns the username carried in the Hello payload.
func (c *Connection) Name() string { return c.Username }

// Addr returns the remote (ip, port) as a string, for ban checks and
// diagnostics.
func (c *Connection) Addr() string { return c.peer.Addr().String() }

// RTT reports the transport's current round-trip estimate, used as
// roundTripPing in diagnostics and admin surfaces.
func (c *Connection) RTT() time.Duration { return c.peer.RTT() }

// Room returns the room this connection currently belongs to, or nil.
func (c *Connection) Room() RoomHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// SetRoom attaches or clears (pass nil) the connection's owning room. A
// Connection is never read by a room other than the one that owns it;
// clearing the back-pointer on leave makes a stale reference inert
// rather than dangling.
func (c *Connection) SetRoom(r RoomHandle) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// EnqueueRoot buffers a root message for the next coalesced flush rather
// than writing it to the wire immediately.
func (c *Connection) EnqueueRoot(tag codec.RootMsgTag, payload []byte) {
	c.mu.Lock()
	c.pendingRoot = append(c.pendingRoot, codec.RootMsg{Tag: tag, Payload: payload})
	c.mu.Unlock()
}

// FlushRoot coalesces every buffered root message into one reliable
// packet and clears the buffer. Called once per tick by the worker; a
// no-op when nothing is pending.
func (c *Connection) FlushRoot() {
	c.mu.Lock()
	pending := c.pendingRoot
	c.pendingRoot = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	w := codec.NewWriter(64 * len(pending))
	for _, m := range pending {
		codec.EncodeRootMsg(w, m.Tag, m.Payload)
	}
	c.peer.SendReliable(w.Bytes())
}

// SendRootNow bypasses coalescing for messages that must not wait for
// the next flush (e.g. JoinedGame, Redirect, Disconnect).
func (c *Connection) SendRootNow(tag codec.RootMsgTag, payload []byte) {
	w := codec.NewWriter(64)
	codec.EncodeRootMsg(w, tag, payload)
	c.peer.SendReliable(w.Bytes())
}

// SendUnreliableRoot is used by the movement fast path and other
// loss-tolerant root traffic.
func (c *Connection) SendUnreliableRoot(tag codec.RootMsgTag, payload []byte) {
	w := codec.NewWriter(64)
	codec.EncodeRootMsg(w, tag, payload)
	c.peer.SendUnreliable(w.Bytes())
}

// MarkPingSent records the last time this connection was proactively
// pinged by the worker's keepalive scanner.
func (c *Connection) MarkPingSent(t time.Time) {
	c.mu.Lock()
	c.lastPingSent = t
	c.mu.Unlock()
}

// HandleDisconnect translates the transport-level disconnect into a
// ClientLeaveEvent on the owning room, then clears the back-pointer.
func (c *Connection) HandleDisconnect(reason codec.DisconnectReason) {
	c.mu.Lock()
	room := c.room
	c.room = nil
	c.mu.Unlock()

	if room != nil {
		room.HandleClientLeave(c.ClientID, reason)
	}
}
