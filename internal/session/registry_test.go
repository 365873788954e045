package session

import (
	"testing"

	"gamecore/internal/codec"
	"gamecore/internal/transport"
)

type fakeRoom struct {
	left     bool
	clientID uint32
	reason   codec.DisconnectReason
}

func (f *fakeRoom) HandleClientLeave(clientID uint32, reason codec.DisconnectReason) {
	f.left = true
	f.clientID = clientID
	f.reason = reason
}

func newTestConnection(id uint32) *Connection {
	return New(nil, id, transport.HelloPayload{Username: "p", ProtocolVersion: 6})
}

func TestRegistryInsertLookupRemove(t *testing.T) {
	r := NewRegistry()
	c := newTestConnection(r.Allocate())
	r.Insert(c)

	got, ok := r.Lookup(c.ClientID)
	if !ok || got != c {
		t.Fatalf("expected lookup to find inserted connection, ok=%v got=%v", ok, got)
	}

	r.Remove(c.ClientID)
	if _, ok := r.Lookup(c.ClientID); ok {
		t.Fatal("expected connection to be gone after Remove")
	}
}

func TestRegistryAllocateMonotonic(t *testing.T) {
	r := NewRegistry()
	a := r.Allocate()
	b := r.Allocate()
	if b != a+1 {
		t.Fatalf("expected monotonic ids, got %d then %d", a, b)
	}
	if a == 0 {
		t.Fatal("client id 0 is reserved for the server and must never be allocated")
	}
}

func TestRegistryEachVisitsAll(t *testing.T) {
	r := NewRegistry()
	r.Insert(newTestConnection(r.Allocate()))
	r.Insert(newTestConnection(r.Allocate()))

	seen := 0
	r.Each(func(c *Connection) { seen++ })
	if seen != 2 {
		t.Fatalf("expected Each to visit 2 connections, visited %d", seen)
	}
	if r.Len() != 2 {
		t.Fatalf("expected Len() == 2, got %d", r.Len())
	}
}

func TestHandleDisconnectNotifiesRoomAndClearsPointer(t *testing.T) {
	c := newTestConnection(1)
	room := &fakeRoom{}
	c.SetRoom(room)

	c.HandleDisconnect(codec.DisconnectKicked)

	if !room.left || room.clientID != 1 || room.reason != codec.DisconnectKicked {
		t.Fatalf("room did not observe the expected leave: %+v", room)
	}
	if c.Room() != nil {
		t.Fatal("connection's room back-pointer should be cleared after disconnect")
	}
}
