package room

import (
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/object"
)

// runTick is the fixed-tick update: create-timeout check,
// component updates, dirty serialization, end-game intent drain, and the
// per-tick broadcast. Nothing in here may suspend.
func (r *Room) runTick(now time.Time) {
	if r.state == Destroyed {
		return
	}

	if len(r.connections) == 0 && now.Sub(r.createdAt) >= r.cfg.CreateTimeout() {
		r.destroy("create timeout with no joins")
		return
	}

	dt := now.Sub(r.lastFixedUpdate)
	r.lastFixedUpdate = now

	r.graph.ForEach(func(c object.Component) {
		c.FixedUpdate(dt)
	})
	r.graph.ForEachDirty(func(c object.Component) {
		c.PreSerialize()
		w := codec.NewWriter(64)
		if c.Serialize(w, false) {
			r.outbound = append(r.outbound, codec.GameDataMsg{
				Tag:     codec.GameMsgData,
				Payload: codec.EncodeData(codec.DataPayload{NetID: c.NetID(), Payload: w.Bytes()}),
			})
		}
	})

	r.checkReadyDeadline(now)

	intents := r.endGameIntents
	r.endGameIntents = nil
	for _, intent := range intents {
		ev := &EndGameIntentEvent{RoomCode: r.code, Intent: intent}
		r.hub.EmitSerial(ev)
		if !ev.Cancelled() {
			r.endGame(intent.Reason)
			break
		}
	}

	fev := &FixedUpdateEvent{RoomCode: r.code}
	r.hub.EmitSerial(fev)
	if !fev.Cancelled() && len(r.outbound) > 0 {
		r.broadcastMessages(r.outbound, nil, BroadcastOpts{Reliable: true})
	}
	r.outbound = r.outbound[:0]
}
