// Package object implements the per-room object graph: the
// authoritative registry of networked components, their net-id
// allocation, and the per-component serialization/RPC dispatch hooks.
// Components form a tagged union of kinds rather than a class
// hierarchy; dispatch is by (kind, rpc tag).
package object

import (
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/errkind"
)

// Kind tags a networked component's subtype.
type Kind uint8

const (
	KindPlayerControl Kind = iota
	KindPlayerPhysics
	KindCustomNetworkTransform
	KindShipStatus
	KindMeetingHud
	KindGameData
	KindLobbyBehaviour
	KindVoteBanSystem
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindPlayerControl:
		return "PlayerControl"
	case KindPlayerPhysics:
		return "PlayerPhysics"
	case KindCustomNetworkTransform:
		return "CustomNetworkTransform"
	case KindShipStatus:
		return "ShipStatus"
	case KindMeetingHud:
		return "MeetingHud"
	case KindGameData:
		return "GameData"
	case KindLobbyBehaviour:
		return "LobbyBehaviour"
	case KindVoteBanSystem:
		return "VoteBanSystem"
	case KindUnknown:
		return "Unknown"
	default:
		return "Kind(?)"
	}
}

// RoomOwner is the sentinel ownerId for components owned by the room
// itself rather than a player.
const RoomOwner int32 = -2

// Component is the tagged-union member every networked object implements.
// Concrete types embed base for the fields common to every kind.
type Component interface {
	NetID() uint32
	OwnerID() int32
	Kind() Kind
	Flags() uint8
	Dirty() bool

	Awake()
	FixedUpdate(dt time.Duration)
	PreSerialize()
	// Serialize writes the component's current state (or, when spawn is
	// true, its full spawn-time state) and reports whether it wrote
	// anything.
	Serialize(w *codec.Writer, spawn bool) bool
	Deserialize(r *codec.Reader) error
	HandleRpc(rpc codec.RpcMsg) error
}

// base carries the fields common to every networked component.
type base struct {
	netID    uint32
	ownerID  int32
	kind     Kind
	flags    uint8
	dirtyBit uint32
}

func (b *base) NetID() uint32  { return b.netID }
func (b *base) OwnerID() int32 { return b.ownerID }
func (b *base) Kind() Kind     { return b.kind }
func (b *base) Flags() uint8   { return b.flags }
func (b *base) Dirty() bool    { return b.dirtyBit != 0 }

// markDirty ORs bits into the component's per-field dirty mask; any
// non-zero value queues a Data message on the room's outbound stream.
func (b *base) markDirty(bits uint32) { b.dirtyBit |= bits }

func (b *base) clearDirty() { b.dirtyBit = 0 }

// unsupportedRpc is the shared HandleRpc fallback for components that
// accept no RPCs at all.
func unsupportedRpc(kind Kind, rpc codec.RpcMsg) error {
	return errkind.Errorf(errkind.PolicyViolation, "%s does not accept rpc tag %d", kind, rpc.Tag)
}
