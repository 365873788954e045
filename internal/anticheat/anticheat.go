package anticheat

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"gamecore/internal/codec"
	"gamecore/internal/log"
	"gamecore/internal/object"
)

// FlushThreshold is the buffer size past which infractions are flushed
// without waiting for game end or room destroy.
const FlushThreshold = 100

// Sink receives batched infractions. internal/metricsapi implements it;
// tests use a recording fake.
type Sink interface {
	FlushInfractions(batch []Infraction) error
}

// Context carries everything the rules need to know about the sender and
// the room at the moment an RPC arrives. The room builds one per check;
// the monitor never reaches back into room state.
type Context struct {
	RoomCode       int32
	GameID         int64
	SenderID       uint32
	SenderPlayerID uint8
	Ping           time.Duration
	Role           Role
	ServerAsHost   bool
	MapID          uint8

	// DisplayName is the authenticated name from the auth service; empty
	// when the lookup failed or the service is absent.
	DisplayName string
	// OwnedCosmetics is the authenticated user's inventory; nil means no
	// inventory data, in which case only built-in catalog membership
	// passes.
	OwnedCosmetics map[uint32]bool

	// AlivePlayers maps in-game player slots to liveness, for vote
	// validation.
	AlivePlayers map[uint8]bool
	// HasVoted reports whether the sender's player already cast a vote in
	// the current meeting.
	HasVoted bool
}

// Verdict is the outcome of a check: whether the room may apply the RPC,
// and whether the sender has burned through its critical-infraction
// budget and should be disconnected.
type Verdict struct {
	Allow      bool
	Disconnect bool
}

// Monitor buffers a room's infractions and applies the inbound-RPC rule
// chain. It is owned by one room and accessed only on that room's
// dispatch context, so it carries no lock.
type Monitor struct {
	sink   Sink
	logger log.Logger

	buf    []Infraction
	nextID uint64

	// criticalBudget tracks per-client Critical infractions; a client
	// exceeding the refill rate is disconnected.
	criticalBudget map[uint32]*rate.Limiter
}

// NewMonitor builds a monitor flushing to sink. A nil sink discards
// batches (rooms on workers with no metrics endpoint configured).
func NewMonitor(sink Sink, logger log.Logger) *Monitor {
	return &Monitor{
		sink:           sink,
		logger:         logger,
		criticalBudget: make(map[uint32]*rate.Limiter),
	}
}

// Record appends one infraction to the buffer, flushing if the buffer
// crossed the size threshold, and reports whether the sender exceeded its
// critical budget.
func (m *Monitor) Record(ctx Context, name, details string, sev Severity) (disconnect bool) {
	if Exceptions(ctx.Role)[name] {
		return false
	}
	m.nextID++
	inf := Infraction{
		InfractionID: fmt.Sprintf("%d-%d", ctx.RoomCode, m.nextID),
		UserID:       ctx.SenderID,
		GameID:       ctx.GameID,
		CreatedAt:    time.Now(),
		PlayerPing:   ctx.Ping,
		Name:         name,
		Details:      details,
		Severity:     sev,
	}
	m.buf = append(m.buf, inf)
	m.logger.Warnf("infraction %s (%s) client=%d: %s", name, sev, ctx.SenderID, details)
	if len(m.buf) > FlushThreshold {
		m.Flush()
	}
	if sev == Critical {
		lim, ok := m.criticalBudget[ctx.SenderID]
		if !ok {
			lim = rate.NewLimiter(rate.Every(10*time.Second), 5)
			m.criticalBudget[ctx.SenderID] = lim
		}
		if !lim.Allow() {
			return true
		}
	}
	return false
}

// Flush ships the buffered batch to the sink and clears the buffer.
// Called on game end, room destroy, and the size threshold.
func (m *Monitor) Flush() {
	if len(m.buf) == 0 {
		return
	}
	batch := m.buf
	m.buf = nil
	if m.sink == nil {
		return
	}
	if err := m.sink.FlushInfractions(batch); err != nil {
		m.logger.Errorf("flush %d infractions: %v", len(batch), err)
	}
}

// Forget releases the per-client budget state when a client leaves.
func (m *Monitor) Forget(clientID uint32) {
	delete(m.criticalBudget, clientID)
}

// Buffered exposes the pending count for diagnostics and tests.
func (m *Monitor) Buffered() int { return len(m.buf) }

// CheckRpc runs the inbound-RPC rule chain in order. comp is nil when
// the target net id did not resolve.
func (m *Monitor) CheckRpc(ctx Context, comp object.Component, rpc codec.RpcMsg) Verdict {
	// 1. Existence.
	if comp == nil {
		m.Record(ctx, RuleUnknownRpcInnernetObject,
			fmt.Sprintf("rpc %d targets unknown net id %d", rpc.Tag, rpc.NetID), Medium)
		return Verdict{Allow: false}
	}

	// 2. Ownership. ownerId -1 is the room-wide override; room-owned
	// components (-2) skip this check and are gated only by the tag rules
	// below.
	owner := comp.OwnerID()
	if owner != -1 && owner != object.RoomOwner && owner != int32(ctx.SenderID) {
		d := m.Record(ctx, RuleRpcOwnership,
			fmt.Sprintf("rpc %d on net id %d owned by %d, sender %d", rpc.Tag, rpc.NetID, owner, ctx.SenderID), Critical)
		return Verdict{Allow: false, Disconnect: d}
	}

	// 3a. Host-only tags under server-as-host.
	if ctx.ServerAsHost && hostOnlyTags[rpc.Tag] {
		d := m.Record(ctx, RuleForbiddenRpcHostOnly,
			fmt.Sprintf("host-only rpc %d from client %d", rpc.Tag, ctx.SenderID), Critical)
		if !Exceptions(ctx.Role)[RuleForbiddenRpcHostOnly] {
			return Verdict{Allow: false, Disconnect: d}
		}
	}

	// 3b. Vote validity.
	if rpc.Tag == codec.RpcCastVote {
		if v := m.checkVote(ctx, rpc); !v.Allow {
			return v
		}
	}

	// 3c. Cosmetics.
	switch rpc.Tag {
	case codec.RpcCheckName:
		if v := m.checkName(ctx, rpc); !v.Allow {
			return v
		}
	case codec.RpcCheckColor:
		if v := m.checkColor(ctx, rpc); !v.Allow {
			return v
		}
	case codec.RpcSetHat, codec.RpcSetPet, codec.RpcSetSkin:
		if v := m.checkCosmeticID(ctx, rpc); !v.Allow {
			return v
		}
	}

	// 3d. SnapTo is an Airship mechanic only.
	if rpc.Tag == codec.RpcSnapTo && ctx.MapID != MapAirship {
		m.Record(ctx, RuleForbiddenRpcSnapTo,
			fmt.Sprintf("SnapTo on map %d", ctx.MapID), High)
		return Verdict{Allow: false}
	}

	// 3e. SetStartCounter requires acting-host standing.
	if rpc.Tag == codec.RpcSetStartCounter && ctx.Role != RoleActingHost {
		d := m.Record(ctx, RuleStartCounterNotHost,
			fmt.Sprintf("SetStartCounter from non-acting-host %d", ctx.SenderID), Critical)
		return Verdict{Allow: false, Disconnect: d}
	}

	// 3f. Component-class match.
	if want, known := carrierOf[rpc.Tag]; known && comp.Kind() != want && comp.Kind() != object.KindUnknown {
		d := m.Record(ctx, RuleRpcComponentMismatch,
			fmt.Sprintf("rpc %d belongs on %s, arrived on %s", rpc.Tag, want, comp.Kind()), Critical)
		return Verdict{Allow: false, Disconnect: d}
	}

	// 3g. Venting is an impostor mechanic.
	if rpc.Tag == codec.RpcEnterVent || rpc.Tag == codec.RpcExitVent {
		if ctx.Role != RoleImpostor {
			m.Record(ctx, RuleForbiddenRpcVent,
				fmt.Sprintf("vent rpc %d from non-impostor %d", rpc.Tag, ctx.SenderID), High)
			return Verdict{Allow: false}
		}
	}

	return Verdict{Allow: true}
}

// MapAirship is the map id on which SnapTo is legitimate.
const MapAirship uint8 = 3

func (m *Monitor) checkVote(ctx Context, rpc codec.RpcMsg) Verdict {
	r := codec.NewReader(rpc.Payload)
	voter, err := r.ReadU8()
	if err != nil {
		m.Record(ctx, RuleInvalidVote, "truncated CastVote", High)
		return Verdict{Allow: false}
	}
	suspect, err := r.ReadI32()
	if err != nil {
		m.Record(ctx, RuleInvalidVote, "truncated CastVote", High)
		return Verdict{Allow: false}
	}
	if voter != ctx.SenderPlayerID {
		m.Record(ctx, RuleInvalidVote,
			fmt.Sprintf("voter %d is not sender's player %d", voter, ctx.SenderPlayerID), High)
		return Verdict{Allow: false}
	}
	if ctx.HasVoted {
		m.Record(ctx, RuleInvalidVote,
			fmt.Sprintf("player %d voted twice", voter), High)
		return Verdict{Allow: false}
	}
	if suspect != skipVoteTarget && !ctx.AlivePlayers[uint8(suspect)] {
		m.Record(ctx, RuleInvalidVote,
			fmt.Sprintf("vote for dead or absent suspect %d", suspect), High)
		return Verdict{Allow: false}
	}
	return Verdict{Allow: true}
}

func (m *Monitor) checkName(ctx Context, rpc codec.RpcMsg) Verdict {
	name, err := codec.NewReader(rpc.Payload).ReadString()
	if err != nil {
		d := m.Record(ctx, RuleNameMismatch, "truncated CheckName", Critical)
		return Verdict{Allow: false, Disconnect: d}
	}
	if ctx.DisplayName != "" && name != ctx.DisplayName {
		d := m.Record(ctx, RuleNameMismatch,
			fmt.Sprintf("name %q does not match authenticated %q", name, ctx.DisplayName), Critical)
		return Verdict{Allow: false, Disconnect: d}
	}
	return Verdict{Allow: true}
}

func (m *Monitor) checkColor(ctx Context, rpc codec.RpcMsg) Verdict {
	color, err := codec.NewReader(rpc.Payload).ReadU8()
	if err != nil || color >= builtinColorCount {
		d := m.Record(ctx, RuleForbiddenRpcCosmetic,
			fmt.Sprintf("color %d outside catalog", color), Critical)
		return Verdict{Allow: false, Disconnect: d}
	}
	return Verdict{Allow: true}
}

func (m *Monitor) checkCosmeticID(ctx Context, rpc codec.RpcMsg) Verdict {
	id, err := codec.NewReader(rpc.Payload).ReadPackedU32()
	if err != nil {
		d := m.Record(ctx, RuleForbiddenRpcCosmetic, "truncated cosmetic rpc", Critical)
		return Verdict{Allow: false, Disconnect: d}
	}
	var builtin bool
	switch rpc.Tag {
	case codec.RpcSetHat:
		builtin = id < builtinHatMax
	case codec.RpcSetPet:
		builtin = id < builtinPetMax
	case codec.RpcSetSkin:
		builtin = id < builtinSkinMax
	}
	if builtin || ctx.OwnedCosmetics[id] {
		return Verdict{Allow: true}
	}
	d := m.Record(ctx, RuleForbiddenRpcCosmetic,
		fmt.Sprintf("cosmetic %d (rpc %d) neither built-in nor owned", id, rpc.Tag), Critical)
	return Verdict{Allow: false, Disconnect: d}
}
