package room

import "gamecore/internal/codec"

// BroadcastOpts selects recipients and delivery class for a fan-out.
// A nil Include means "everyone"; a non-nil Include additionally switches
// the game-data wrapper from GameData to the targeted GameDataTo form.
type BroadcastOpts struct {
	Include  map[uint32]bool
	Exclude  map[uint32]bool
	Reliable bool
}

// broadcastMessages fans gameData and payloads out to the selected
// connections. Each recipient gets a
// ClientBroadcastEvent first; listeners may rewrite the game data for
// that recipient or cancel the send entirely. Sends are enqueues on the
// per-peer reliability layer, so the loop never suspends.
func (r *Room) broadcastMessages(gameData []codec.GameDataMsg, payloads []codec.RootMsg, opts BroadcastOpts) {
	for _, c := range r.connections {
		id := c.ID()
		if opts.Include != nil && !opts.Include[id] {
			continue
		}
		if opts.Exclude[id] {
			continue
		}

		altered := gameData
		if len(gameData) > 0 {
			ev := &ClientBroadcastEvent{
				RoomCode:  r.code,
				Recipient: id,
				GameData:  append([]codec.GameDataMsg(nil), gameData...),
			}
			r.hub.EmitSerial(ev)
			if ev.Cancelled() {
				continue
			}
			altered = ev.GameData
		}

		if len(altered) > 0 {
			var tag codec.RootMsgTag
			var payload []byte
			if opts.Include != nil {
				tag = codec.RootMsgGameDataTo
				payload = codec.EncodeGameDataTo(codec.GameDataTo{Code: r.code, Target: id, Messages: altered})
			} else {
				tag = codec.RootMsgGameData
				payload = codec.EncodeGameData(codec.GameData{Code: r.code, Messages: altered})
			}
			if opts.Reliable {
				c.EnqueueRoot(tag, payload)
			} else {
				c.SendUnreliableRoot(tag, payload)
			}
		}

		for _, p := range payloads {
			if opts.Reliable {
				c.EnqueueRoot(p.Tag, p.Payload)
			} else {
				c.SendUnreliableRoot(p.Tag, p.Payload)
			}
		}
	}
}
