package object

import (
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/errkind"
)

const (
	dirtyName uint32 = 1 << iota
	dirtyColor
	dirtyHat
	dirtyPet
	dirtySkin
	dirtyDead
	dirtyImpostor
	dirtyTasks
)

// PlayerControl is the per-player identity/cosmetics component: the
// Player record projected onto the networked object graph.
type PlayerControl struct {
	base
	PlayerID   uint8
	Name       string
	Color      uint8
	Hat        uint32
	Pet        uint32
	Skin       uint32
	IsDead     bool
	IsImpostor bool
}

func newPlayerControl(netID uint32, ownerID int32, flags uint8) Component {
	return &PlayerControl{base: base{netID: netID, ownerID: ownerID, kind: KindPlayerControl, flags: flags}}
}

func (c *PlayerControl) Awake()                        {}
func (c *PlayerControl) FixedUpdate(dt time.Duration)  {}
func (c *PlayerControl) PreSerialize()                 {}

func (c *PlayerControl) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteU8(c.PlayerID)
	w.WriteString(c.Name)
	w.WriteU8(c.Color)
	w.WritePackedU32(c.Hat)
	w.WritePackedU32(c.Pet)
	w.WritePackedU32(c.Skin)
	w.WriteBool(c.IsDead)
	w.WriteBool(c.IsImpostor)
	c.clearDirty()
	return true
}

func (c *PlayerControl) Deserialize(r *codec.Reader) error {
	var err error
	if c.PlayerID, err = r.ReadU8(); err != nil {
		return err
	}
	if c.Name, err = r.ReadString(); err != nil {
		return err
	}
	if c.Color, err = r.ReadU8(); err != nil {
		return err
	}
	if c.Hat, err = r.ReadPackedU32(); err != nil {
		return err
	}
	if c.Pet, err = r.ReadPackedU32(); err != nil {
		return err
	}
	if c.Skin, err = r.ReadPackedU32(); err != nil {
		return err
	}
	if c.IsDead, err = r.ReadBool(); err != nil {
		return err
	}
	if c.IsImpostor, err = r.ReadBool(); err != nil {
		return err
	}
	return nil
}

// HandleRpc dispatches the subset of RpcTag values that target a
// PlayerControl. SetHat, SetPet and SetSkin are handled independently;
// they share no state.
func (c *PlayerControl) HandleRpc(rpc codec.RpcMsg) error {
	r := codec.NewReader(rpc.Payload)
	switch rpc.Tag {
	case codec.RpcSetName:
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		c.Name = name
		c.markDirty(dirtyName)
	case codec.RpcSetColor:
		color, err := r.ReadU8()
		if err != nil {
			return err
		}
		c.Color = color
		c.markDirty(dirtyColor)
	case codec.RpcSetHat:
		hat, err := r.ReadPackedU32()
		if err != nil {
			return err
		}
		c.Hat = hat
		c.markDirty(dirtyHat)
	case codec.RpcSetPet:
		pet, err := r.ReadPackedU32()
		if err != nil {
			return err
		}
		c.Pet = pet
		c.markDirty(dirtyPet)
	case codec.RpcSetSkin:
		skin, err := r.ReadPackedU32()
		if err != nil {
			return err
		}
		c.Skin = skin
		c.markDirty(dirtySkin)
	case codec.RpcCheckName:
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		c.Name = name
		c.markDirty(dirtyName)
	case codec.RpcCheckColor:
		color, err := r.ReadU8()
		if err != nil {
			return err
		}
		c.Color = color
		c.markDirty(dirtyColor)
	case codec.RpcExiled, codec.RpcMurderPlayer:
		c.IsDead = true
		c.markDirty(dirtyDead)
	case codec.RpcPlayAnimation, codec.RpcCompleteTask, codec.RpcSendChat,
		codec.RpcSendChatNote, codec.RpcSetStartCounter, codec.RpcSyncSettings,
		codec.RpcStartMeeting, codec.RpcReportDeadBody, codec.RpcSetInfected:
		// transient or handled at room scope; nothing to replicate from
		// this component.
	default:
		return unsupportedRpc(c.kind, rpc)
	}
	return nil
}

// PlayerPhysics carries movement-adjacent RPCs that are not the hot-path
// transform itself: venting, scanner use.
type PlayerPhysics struct {
	base
	InVent bool
	VentID uint32
}

func newPlayerPhysics(netID uint32, ownerID int32, flags uint8) Component {
	return &PlayerPhysics{base: base{netID: netID, ownerID: ownerID, kind: KindPlayerPhysics, flags: flags}}
}

func (c *PlayerPhysics) Awake()                       {}
func (c *PlayerPhysics) FixedUpdate(dt time.Duration) {}
func (c *PlayerPhysics) PreSerialize()                {}

func (c *PlayerPhysics) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteBool(c.InVent)
	w.WritePackedU32(c.VentID)
	c.clearDirty()
	return true
}

func (c *PlayerPhysics) Deserialize(r *codec.Reader) error {
	var err error
	if c.InVent, err = r.ReadBool(); err != nil {
		return err
	}
	if c.VentID, err = r.ReadPackedU32(); err != nil {
		return err
	}
	return nil
}

func (c *PlayerPhysics) HandleRpc(rpc codec.RpcMsg) error {
	r := codec.NewReader(rpc.Payload)
	switch rpc.Tag {
	case codec.RpcEnterVent:
		ventID, err := r.ReadPackedU32()
		if err != nil {
			return err
		}
		c.InVent = true
		c.VentID = ventID
		c.markDirty(1)
	case codec.RpcExitVent:
		c.InVent = false
		c.markDirty(1)
	case codec.RpcSetScanner:
		// one-shot cosmetic RPC, no persistent state to mark dirty.
	default:
		return unsupportedRpc(c.kind, rpc)
	}
	return nil
}

// CustomNetworkTransform is the high-frequency position/velocity
// component driving the movement fast path.
type CustomNetworkTransform struct {
	base
	Position codec.Vector2
	Velocity codec.Vector2
	seq      uint16
}

func newCustomNetworkTransform(netID uint32, ownerID int32, flags uint8) Component {
	return &CustomNetworkTransform{base: base{netID: netID, ownerID: ownerID, kind: KindCustomNetworkTransform, flags: flags}}
}

func (c *CustomNetworkTransform) Awake()                       {}
func (c *CustomNetworkTransform) FixedUpdate(dt time.Duration) {}
func (c *CustomNetworkTransform) PreSerialize()                {}

func (c *CustomNetworkTransform) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteU16(c.seq)
	w.WriteVector2(c.Position.X, c.Position.Y)
	w.WriteVector2(c.Velocity.X, c.Velocity.Y)
	c.clearDirty()
	return true
}

func (c *CustomNetworkTransform) Deserialize(r *codec.Reader) error {
	var err error
	if c.seq, err = r.ReadU16(); err != nil {
		return err
	}
	x, y, err := r.ReadVector2()
	if err != nil {
		return err
	}
	c.Position = codec.Vector2{X: x, Y: y}
	x, y, err = r.ReadVector2()
	if err != nil {
		return err
	}
	c.Velocity = codec.Vector2{X: x, Y: y}
	return nil
}

// ApplySnapTo sets position/velocity directly from an unreliable movement
// update and marks the component dirty for the next broadcast.
func (c *CustomNetworkTransform) ApplySnapTo(pos, vel codec.Vector2, seq uint16) {
	c.Position = pos
	c.Velocity = vel
	c.seq = seq
	c.markDirty(1)
}

func (c *CustomNetworkTransform) HandleRpc(rpc codec.RpcMsg) error {
	switch rpc.Tag {
	case codec.RpcSnapTo:
		r := codec.NewReader(rpc.Payload)
		x, y, err := r.ReadVector2()
		if err != nil {
			return err
		}
		c.Position = codec.Vector2{X: x, Y: y}
		c.markDirty(1)
		return nil
	default:
		return unsupportedRpc(c.kind, rpc)
	}
}

// LobbyBehaviour is the pre-game lobby singleton the server spawns when
// it is its own host.
type LobbyBehaviour struct{ base }

func newLobbyBehaviour(netID uint32, ownerID int32, flags uint8) Component {
	return &LobbyBehaviour{base{netID: netID, ownerID: ownerID, kind: KindLobbyBehaviour, flags: flags}}
}

func (c *LobbyBehaviour) Awake()                                       {}
func (c *LobbyBehaviour) FixedUpdate(dt time.Duration)                 {}
func (c *LobbyBehaviour) PreSerialize()                                {}
func (c *LobbyBehaviour) Serialize(w *codec.Writer, spawn bool) bool   { return spawn }
func (c *LobbyBehaviour) Deserialize(r *codec.Reader) error            { return nil }
func (c *LobbyBehaviour) HandleRpc(rpc codec.RpcMsg) error             { return unsupportedRpc(c.kind, rpc) }

// GameData holds the per-room player roster and task list snapshot that
// the client-side scoreboard renders from.
type GameData struct {
	base
	PlayerCount uint8
}

func newGameData(netID uint32, ownerID int32, flags uint8) Component {
	return &GameData{base: base{netID: netID, ownerID: ownerID, kind: KindGameData, flags: flags}}
}

func (c *GameData) Awake()                       {}
func (c *GameData) FixedUpdate(dt time.Duration) {}
func (c *GameData) PreSerialize()                {}

func (c *GameData) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteU8(c.PlayerCount)
	c.clearDirty()
	return true
}

func (c *GameData) Deserialize(r *codec.Reader) error {
	v, err := r.ReadU8()
	if err != nil {
		return err
	}
	c.PlayerCount = v
	return nil
}

func (c *GameData) HandleRpc(rpc codec.RpcMsg) error {
	switch rpc.Tag {
	case codec.RpcUpdateGameData:
		v, err := codec.NewReader(rpc.Payload).ReadU8()
		if err != nil {
			return err
		}
		c.PlayerCount = v
		c.markDirty(1)
		return nil
	default:
		return unsupportedRpc(c.kind, rpc)
	}
}

// MeetingHud tracks the active emergency meeting's vote state.
type MeetingHud struct {
	base
	Votes map[uint8]int8 // voterPlayerId -> target playerId, -1 for skip
}

func newMeetingHud(netID uint32, ownerID int32, flags uint8) Component {
	return &MeetingHud{base: base{netID: netID, ownerID: ownerID, kind: KindMeetingHud, flags: flags}, Votes: make(map[uint8]int8)}
}

func (c *MeetingHud) Awake()                       {}
func (c *MeetingHud) FixedUpdate(dt time.Duration) {}
func (c *MeetingHud) PreSerialize()                {}

func (c *MeetingHud) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WritePackedU32(uint32(len(c.Votes)))
	for voter, target := range c.Votes {
		w.WriteU8(voter)
		w.WriteI32(int32(target))
	}
	c.clearDirty()
	return true
}

func (c *MeetingHud) Deserialize(r *codec.Reader) error {
	n, err := r.ReadPackedU32()
	if err != nil {
		return err
	}
	votes := make(map[uint8]int8, n)
	for i := uint32(0); i < n; i++ {
		voter, err := r.ReadU8()
		if err != nil {
			return err
		}
		target, err := r.ReadI32()
		if err != nil {
			return err
		}
		votes[voter] = int8(target)
	}
	c.Votes = votes
	return nil
}

func (c *MeetingHud) HandleRpc(rpc codec.RpcMsg) error {
	r := codec.NewReader(rpc.Payload)
	switch rpc.Tag {
	case codec.RpcCastVote:
		voter, err := r.ReadU8()
		if err != nil {
			return err
		}
		target, err := r.ReadI32()
		if err != nil {
			return err
		}
		c.Votes[voter] = int8(target)
		c.markDirty(1)
	case codec.RpcClearVote:
		voter, err := r.ReadU8()
		if err != nil {
			return err
		}
		delete(c.Votes, voter)
		c.markDirty(1)
	default:
		return unsupportedRpc(c.kind, rpc)
	}
	return nil
}

// ShipStatus is the map-specific room singleton tracking tasks/sabotage.
type ShipStatus struct {
	base
	MapID uint8
}

func newShipStatus(netID uint32, ownerID int32, flags uint8) Component {
	return &ShipStatus{base: base{netID: netID, ownerID: ownerID, kind: KindShipStatus, flags: flags}}
}

func (c *ShipStatus) Awake()                       {}
func (c *ShipStatus) FixedUpdate(dt time.Duration) {}
func (c *ShipStatus) PreSerialize()                {}

func (c *ShipStatus) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteU8(c.MapID)
	c.clearDirty()
	return true
}

func (c *ShipStatus) Deserialize(r *codec.Reader) error {
	v, err := r.ReadU8()
	if err != nil {
		return err
	}
	c.MapID = v
	return nil
}

func (c *ShipStatus) HandleRpc(rpc codec.RpcMsg) error {
	switch rpc.Tag {
	case codec.RpcCloseDoorsOfType, codec.RpcRepairSystem:
		c.markDirty(1)
		return nil
	default:
		return unsupportedRpc(c.kind, rpc)
	}
}

// VoteBanSystem tracks kick-votes accumulated against players.
type VoteBanSystem struct {
	base
	Votes map[uint8]map[uint8]bool // target playerId -> set of voter playerId
}

func newVoteBanSystem(netID uint32, ownerID int32, flags uint8) Component {
	return &VoteBanSystem{base: base{netID: netID, ownerID: ownerID, kind: KindVoteBanSystem, flags: flags}, Votes: make(map[uint8]map[uint8]bool)}
}

func (c *VoteBanSystem) Awake()                       {}
func (c *VoteBanSystem) FixedUpdate(dt time.Duration) {}
func (c *VoteBanSystem) PreSerialize()                {}

func (c *VoteBanSystem) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WritePackedU32(uint32(len(c.Votes)))
	for target, voters := range c.Votes {
		w.WriteU8(target)
		w.WritePackedU32(uint32(len(voters)))
		for voter := range voters {
			w.WriteU8(voter)
		}
	}
	c.clearDirty()
	return true
}

func (c *VoteBanSystem) Deserialize(r *codec.Reader) error {
	n, err := r.ReadPackedU32()
	if err != nil {
		return err
	}
	votes := make(map[uint8]map[uint8]bool, n)
	for i := uint32(0); i < n; i++ {
		target, err := r.ReadU8()
		if err != nil {
			return err
		}
		count, err := r.ReadPackedU32()
		if err != nil {
			return err
		}
		voters := make(map[uint8]bool, count)
		for j := uint32(0); j < count; j++ {
			voter, err := r.ReadU8()
			if err != nil {
				return err
			}
			voters[voter] = true
		}
		votes[target] = voters
	}
	c.Votes = votes
	return nil
}

func (c *VoteBanSystem) HandleRpc(rpc codec.RpcMsg) error {
	return errkind.Errorf(errkind.PolicyViolation, "%s accepts no client rpc", c.kind)
}
