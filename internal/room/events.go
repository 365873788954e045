package room

import (
	"sync"

	"gamecore/internal/codec"
)

// Event is anything the plugin/event hub can deliver. Listeners receive
// the concrete type and may mutate its exported fields; cancellable
// events additionally let a listener veto the default behavior.
type Event interface {
	EventName() string
}

// Cancellable is embedded by events whose default behavior a listener may
// veto.
type Cancellable struct {
	cancelled bool
}

// Cancel prevents the default behavior.
func (c *Cancellable) Cancel() { c.cancelled = true }

// Cancelled reports whether any listener vetoed.
func (c *Cancellable) Cancelled() bool { return c.cancelled }

// SelectHostEvent fires before a client is granted host (or acting-host)
// authority. Cancelling vetoes the candidate; the room then tries the
// next one in join order.
type SelectHostEvent struct {
	Cancellable
	RoomCode  int32
	Candidate uint32
}

func (*SelectHostEvent) EventName() string { return "room.select_host" }

// BeforeDestroyEvent fires before a room is torn down; cancelling keeps
// the room alive (ignored for the last-player-left path, where there is
// nothing left to keep alive for).
type BeforeDestroyEvent struct {
	Cancellable
	RoomCode int32
	Reason   string
}

func (*BeforeDestroyEvent) EventName() string { return "room.before_destroy" }

// DestroyEvent fires after teardown completes.
type DestroyEvent struct {
	RoomCode int32
}

func (*DestroyEvent) EventName() string { return "room.destroy" }

// EndGameIntentEvent fires per queued end-game intent each tick; the
// first uncancelled intent wins.
type EndGameIntentEvent struct {
	Cancellable
	RoomCode int32
	Intent   EndGameIntent
}

func (*EndGameIntentEvent) EventName() string { return "room.end_game_intent" }

// FixedUpdateEvent fires once per tick after component updates;
// cancelling suppresses that tick's broadcast.
type FixedUpdateEvent struct {
	Cancellable
	RoomCode int32
}

func (*FixedUpdateEvent) EventName() string { return "room.fixed_update" }

// ClientBroadcastEvent fires once per recipient of a broadcast; listeners
// may rewrite GameData per-recipient or cancel the send to that
// recipient entirely.
type ClientBroadcastEvent struct {
	Cancellable
	RoomCode  int32
	Recipient uint32
	GameData  []codec.GameDataMsg
}

func (*ClientBroadcastEvent) EventName() string { return "client.broadcast" }

// ClientLeaveEvent fires after a client has been removed from the room.
type ClientLeaveEvent struct {
	RoomCode int32
	ClientID uint32
	Reason   codec.DisconnectReason
}

func (*ClientLeaveEvent) EventName() string { return "client.leave" }

// ClientJoinEvent fires after a client has been inserted into the room.
type ClientJoinEvent struct {
	RoomCode int32
	ClientID uint32
}

func (*ClientJoinEvent) EventName() string { return "client.join" }

// ChatCommandEvent fires for chat messages starting with the configured
// command prefix. Reply sends a server-authored chat line back to the
// invoking player only.
type ChatCommandEvent struct {
	RoomCode int32
	SenderID uint32
	Command  string
	Args     []string
	Reply    func(text string)
}

func (*ChatCommandEvent) EventName() string { return "chat.command" }

// GameEndEvent fires after a game transitions to Ended.
type GameEndEvent struct {
	RoomCode int32
	Reason   uint8
}

func (*GameEndEvent) EventName() string { return "game.end" }

// Hub is the ordered typed-listener registry shared by the worker and its
// rooms. Emission is serial for cancellable events (listeners run in
// registration order and may veto) and best-effort concurrent otherwise.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]func(Event)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string][]func(Event))}
}

// On registers fn for every event whose EventName matches name.
func (h *Hub) On(name string, fn func(Event)) {
	h.mu.Lock()
	h.listeners[name] = append(h.listeners[name], fn)
	h.mu.Unlock()
}

func (h *Hub) snapshot(name string) []func(Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listeners[name]
}

// EmitSerial delivers e to each listener in order on the caller's
// context, so listeners can mutate and cancel before the room proceeds.
func (h *Hub) EmitSerial(e Event) {
	for _, fn := range h.snapshot(e.EventName()) {
		fn(e)
	}
}

// Emit delivers e to every listener concurrently, best-effort; the
// caller does not wait and cannot be vetoed.
func (h *Hub) Emit(e Event) {
	for _, fn := range h.snapshot(e.EventName()) {
		go fn(e)
	}
}
