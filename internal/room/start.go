package room

import (
	"math/rand"
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/object"
)

// msgStart handles the host's Start declaration: broadcast StartGame,
// then, when the server is host, wait for every player's Ready with a
// hard deadline enforced on the tick.
func (r *Room) msgStart(m *MsgStart) {
	if !r.isHostAuthority(m.Sender) {
		r.logger.Warnf("StartGame from non-host %d", m.Sender)
		return
	}
	if r.state != NotStarted {
		return
	}
	r.state = Started
	r.logger.Infof("game started by %d", m.Sender)
	r.broadcastMessages(nil, []codec.RootMsg{{
		Tag:     codec.RootMsgStartGame,
		Payload: codec.EncodeStartGame(codec.StartGamePayload{Code: r.code}),
	}}, BroadcastOpts{Reliable: true})

	if r.serverAsHost {
		for _, p := range r.players {
			p.IsReady = false
		}
		r.readyDeadline = r.now().Add(startReadyWindow)
	}
}

// handleReady marks a player ready; when everyone is, the game setup
// runs without waiting out the deadline.
func (r *Room) handleReady(sender uint32) {
	p, ok := r.players[sender]
	if !ok {
		return
	}
	p.IsReady = true
	if r.readyDeadline.IsZero() {
		return
	}
	for _, pl := range r.players {
		if !pl.IsReady {
			return
		}
	}
	r.beginGame()
}

// checkReadyDeadline force-removes players that never sent Ready once
// the window closes, then proceeds with whoever is left.
func (r *Room) checkReadyDeadline(now time.Time) {
	if r.readyDeadline.IsZero() || now.Before(r.readyDeadline) {
		return
	}
	var stragglers []uint32
	for id, p := range r.players {
		if !p.IsReady {
			stragglers = append(stragglers, id)
		}
	}
	for _, id := range stragglers {
		r.logger.Warnf("force-removing never-ready player %d", id)
		r.removeClient(id, codec.DisconnectError)
	}
	if r.state == Started && len(r.players) > 0 {
		r.beginGame()
	}
}

// beginGame transitions the lobby into the running game: the lobby
// singleton goes away, the map ship comes up, impostors and tasks are
// dealt, and every player gets its in-game object.
func (r *Room) beginGame() {
	r.readyDeadline = time.Time{}

	var lobbyIDs []uint32
	r.graph.ForEach(func(c object.Component) {
		if c.Kind() == object.KindLobbyBehaviour {
			lobbyIDs = append(lobbyIDs, c.NetID())
		}
	})
	for _, netID := range lobbyIDs {
		if err := r.graph.Despawn(netID); err == nil {
			r.outbound = append(r.outbound, codec.GameDataMsg{
				Tag:     codec.GameMsgDespawn,
				Payload: codec.EncodeDespawn(codec.DespawnPayload{NetID: netID}),
			})
		}
	}

	if obj := r.spawnRoomObject(shipSpawnType(r.settings.MapID)); obj != nil {
		if ship, ok := obj.Components[0].(*object.ShipStatus); ok {
			ship.MapID = r.settings.MapID
		}
	}

	for _, id := range r.joinOrder {
		if _, ok := r.players[id]; !ok {
			continue
		}
		if _, ok := r.graph.FindKind(int32(id), object.KindPlayerControl); !ok {
			r.spawnPlayerObject(id)
		}
	}

	r.assignImpostors()
	r.assignTasks()
}

// assignImpostors deals ImpostorCount impostor roles uniformly and
// replicates the result as a SetInfected RPC on each chosen player's
// PlayerControl.
func (r *Room) assignImpostors() {
	candidates := make([]uint32, 0, len(r.players))
	for _, id := range r.joinOrder {
		if _, ok := r.players[id]; ok {
			candidates = append(candidates, id)
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	count := int(r.settings.ImpostorCount)
	if count < 1 {
		count = 1
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	w := codec.NewWriter(8)
	w.WritePackedU32(uint32(count))
	for i, id := range candidates {
		p := r.players[id]
		p.IsImpostor = i < count
		if p.IsImpostor {
			w.WriteU8(p.PlayerID)
			r.logger.Infof("impostor assigned: client %d (player %d)", id, p.PlayerID)
		}
		if pc, ok := r.graph.FindKind(int32(id), object.KindPlayerControl); ok {
			pc.(*object.PlayerControl).IsImpostor = p.IsImpostor
		}
	}

	for _, id := range candidates[:count] {
		if pc, ok := r.graph.FindKind(int32(id), object.KindPlayerControl); ok {
			r.outbound = append(r.outbound, codec.GameDataMsg{
				Tag: codec.GameMsgRPC,
				Payload: codec.EncodeRpc(codec.RpcMsg{
					NetID: pc.NetID(), Tag: codec.RpcSetInfected, Payload: w.Bytes(),
				}),
			})
		}
	}
}

// assignTasks deals each player the configured mix of common, short and
// long tasks. Task ids are map-local indices.
func (r *Room) assignTasks() {
	total := int(r.settings.CommonTasks) + int(r.settings.ShortTasks) + int(r.settings.LongTasks)
	if total == 0 {
		total = 4
	}
	for _, p := range r.players {
		p.Tasks = p.Tasks[:0]
		for i := 0; i < total; i++ {
			p.Tasks = append(p.Tasks, TaskState{ID: uint32(i)})
		}
	}
}

// spawnPlayerObject materializes the Player prefab for a client and
// seeds its PlayerControl from the room's Player record.
func (r *Room) spawnPlayerObject(clientID uint32) {
	p, ok := r.players[clientID]
	if !ok {
		return
	}
	obj, err := r.graph.Spawn(object.SpawnTypePlayer, int32(clientID), 0)
	if err != nil {
		r.logger.Errorf("spawn player object for %d: %v", clientID, err)
		return
	}
	if pc, ok := obj.Components[0].(*object.PlayerControl); ok {
		pc.PlayerID = p.PlayerID
		pc.Name = p.Name
		pc.Color = p.Color
		pc.Hat = p.Hat
		pc.Pet = p.Pet
		pc.Skin = p.Skin
		pc.IsDead = p.IsDead
		pc.IsImpostor = p.IsImpostor
	}
	r.queueSpawn(obj)
}

// msgEnd queues a host-issued end-game intent, resolved on the next
// tick so listeners can veto it.
func (r *Room) msgEnd(m *MsgEnd) {
	if !r.isHostAuthority(m.Sender) {
		r.logger.Warnf("EndGame from non-host %d", m.Sender)
		return
	}
	r.endGameIntents = append(r.endGameIntents, EndGameIntent{Name: "host", Reason: m.Reason})
}

// QueueEndGameIntent lets plugins and the admin surface request a game
// end; intents race on the next tick and the first uncancelled one wins.
func (r *Room) QueueEndGameIntent(intent EndGameIntent) {
	r.SendMessage(&msgQueueIntent{intent: intent})
}

type msgQueueIntent struct{ intent EndGameIntent }

func (m *msgQueueIntent) SenderID() uint32 { return 0 }

// endGame moves the room to Ended, clears the replicated state and
// flushes the infraction buffer.
func (r *Room) endGame(reason uint8) {
	if r.state != Started {
		return
	}
	r.state = Ended
	r.logger.Infof("game ended: reason %d", reason)
	r.broadcastMessages(nil, []codec.RootMsg{{
		Tag:     codec.RootMsgEndGame,
		Payload: codec.EncodeEndGame(codec.EndGamePayload{Code: r.code, Reason: reason}),
	}}, BroadcastOpts{Reliable: true})

	r.graph.Reset()
	r.outbound = r.outbound[:0]
	r.voted = make(map[uint8]bool)
	r.actingHostTransactionSent = false
	r.actingHostWaitingFor = nil
	for _, p := range r.players {
		p.IsReady = false
		p.InScene = false
		p.IsImpostor = false
		p.IsDead = false
		p.Tasks = nil
	}
	r.cheat.Flush()
	r.hub.Emit(&GameEndEvent{RoomCode: r.code, Reason: reason})
}

func shipSpawnType(mapID uint8) uint32 {
	switch mapID {
	case 1:
		return object.SpawnTypeShipStatusMiraHQ
	case 2:
		return object.SpawnTypeShipStatusPolus
	case 3:
		return object.SpawnTypeShipStatusAirship
	default:
		return object.SpawnTypeShipStatusTheSkeld
	}
}
