package room

import (
	"math"

	"gamecore/internal/codec"
	"gamecore/internal/object"
)

const (
	// movementMinMagnitude is the displacement below which a movement
	// packet does not advance the sender's update counter.
	movementMinMagnitude = 0.5
	// visionRange is the Euclidean cutoff past which recipients are
	// skipped when visionChecks is on. Distances are never wrapped, even
	// on maps whose geometry might suggest it.
	visionRange = 7.0
)

// movementState is the per-room bookkeeping behind the movement fast
// path: per-sender packet counters, last forwarded position,
// and the optional shared serialization buffer.
type movementState struct {
	counters map[uint32]int
	lastPos  map[uint32]codec.Vector2
	buf      []byte
}

func (m *movementState) forget(id uint32) {
	delete(m.counters, id)
	delete(m.lastPos, id)
}

func (m *movementState) init() {
	if m.counters == nil {
		m.counters = make(map[uint32]int)
		m.lastPos = make(map[uint32]codec.Vector2)
	}
}

// handleMovement applies a CustomNetworkTransform delta and forwards it
// unreliably, subject to the configured optimizations: update-rate
// deduplication, vision-range filtering, dead/living filtering, and
// buffer reuse.
func (r *Room) handleMovement(sender uint32, d codec.DataPayload, ct *object.CustomNetworkTransform) {
	if err := ct.Deserialize(codec.NewReader(d.Payload)); err != nil {
		r.logger.Warnf("malformed movement from %d: %v", sender, err)
		return
	}
	r.movement.init()

	pos := ct.Position
	last, seen := r.movement.lastPos[sender]
	mag := math.Hypot(float64(pos.X-last.X), float64(pos.Y-last.Y))
	if !seen || mag > movementMinMagnitude {
		r.movement.counters[sender]++
		r.movement.lastPos[sender] = pos
	}

	if rate := r.cfg.Movement.UpdateRate; rate > 1 && r.movement.counters[sender]%rate != 0 {
		return
	}

	var packet []byte
	encode := func() []byte {
		return codec.EncodeGameData(codec.GameData{Code: r.code, Messages: []codec.GameDataMsg{{
			Tag:     codec.GameMsgData,
			Payload: codec.EncodeData(d),
		}}})
	}
	if r.cfg.Movement.ReuseBuffer {
		r.movement.buf = append(r.movement.buf[:0], encode()...)
		packet = r.movement.buf
	}

	senderPlayer := r.players[sender]
	for _, c := range r.connections {
		rid := c.ID()
		if rid == sender {
			continue
		}
		if r.cfg.Movement.DeadChecks && senderPlayer != nil && senderPlayer.IsDead {
			if rp, ok := r.players[rid]; ok && !rp.IsDead {
				continue
			}
		}
		if r.cfg.Movement.VisionChecks {
			if rt, ok := r.graph.FindKind(int32(rid), object.KindCustomNetworkTransform); ok {
				rpos := rt.(*object.CustomNetworkTransform).Position
				if math.Hypot(float64(rpos.X-pos.X), float64(rpos.Y-pos.Y)) > visionRange {
					continue
				}
			}
		}
		if packet != nil {
			c.SendUnreliableRoot(codec.RootMsgGameData, packet)
		} else {
			c.SendUnreliableRoot(codec.RootMsgGameData, encode())
		}
	}
}
