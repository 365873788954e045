package room

import (
	"net"

	"gamecore/internal/codec"
	"gamecore/internal/object"
)

// msgJoin runs the join protocol: ban check, player
// creation, host selection, the Ended-room rejoin split, and the
// server-as-host singletons.
func (r *Room) msgJoin(m *MsgJoin) {
	c := m.Conn
	id := c.ID()

	if r.banned[ipOf(c.Addr())] {
		c.SendRootNow(codec.RootMsgRemoveGame,
			codec.EncodeRemoveGame(codec.RemoveGamePayload{Reason: codec.DisconnectBanned}))
		return
	}
	if r.state == Started {
		c.SendRootNow(codec.RootMsgRemoveGame,
			codec.EncodeRemoveGame(codec.RemoveGamePayload{Reason: codec.DisconnectGameStarted}))
		return
	}
	if r.settings.MaxPlayers > 0 && len(r.players) >= int(r.settings.MaxPlayers) {
		c.SendRootNow(codec.RootMsgRemoveGame,
			codec.EncodeRemoveGame(codec.RemoveGamePayload{Reason: codec.DisconnectGameFull}))
		return
	}

	p := &Player{ClientID: id, PlayerID: r.nextPlayerID, Name: c.Name()}
	r.nextPlayerID++
	r.players[id] = p
	r.connections[id] = c
	if m.User != nil {
		r.users[id] = m.User
	}
	r.joinOrder = append(r.joinOrder, id)
	c.SetRoom(r)
	r.logger.Infof("player joined: %d (%s)", id, c.Name())

	if r.state == Ended {
		r.joinEnded(c, id)
		r.hub.Emit(&ClientJoinEvent{RoomCode: r.code, ClientID: id})
		return
	}

	if !r.serverAsHost && len(r.connections) == 1 {
		r.selectHost()
	}

	r.sendJoinedGame(c)
	c.SendRootNow(codec.RootMsgAlterGame, codec.EncodeAlterGame(codec.AlterGamePayload{
		Code: r.code, Tag: codec.AlterGamePrivacy, Value: uint8(r.privacy),
	}))
	r.broadcastJoinNotice(id)

	if r.serverAsHost {
		// The joiner exchanges initial settings with the server before
		// acting-host views settle; its CheckName drives the transaction.
		r.actingHostWaitingFor = append(r.actingHostWaitingFor, id)
		if len(r.actingHostIDs) == 0 && r.promoteActingHost(id) {
			r.sendHostViewUpdate(c)
		}
		r.ensureRoomObjects()
	}

	r.hub.Emit(&ClientJoinEvent{RoomCode: r.code, ClientID: id})
}

// joinEnded handles joining a room whose game is over: the classic host
// restarts it, everyone else parks until the host arrives.
func (r *Room) joinEnded(c Conn, id uint32) {
	if !r.serverAsHost && id == r.hostID {
		r.state = NotStarted
		r.sendJoinedGame(c)
		r.broadcastJoinNotice(id)
		r.releaseHostWaiters()
		return
	}
	r.waitingForHost[id] = true
	c.SendRootNow(codec.RootMsgWaitForHost, codec.EncodeWaitForHost(codec.WaitForHostPayload{
		Code: r.code, ClientID: id,
	}))
}

// sendJoinedGame delivers the direct join reply listing current peers.
func (r *Room) sendJoinedGame(c Conn) {
	id := c.ID()
	others := make([]uint32, 0, len(r.players))
	for _, pid := range r.joinOrder {
		if pid != id {
			if _, ok := r.players[pid]; ok {
				others = append(others, pid)
			}
		}
	}
	view := r.hostViewFor(id)
	c.SendRootNow(codec.RootMsgJoinedGame, codec.EncodeJoinedGame(codec.JoinedGamePayload{
		Code: r.code, ClientID: id, HostID: view, Others: others,
	}))
	r.lastHostView[id] = view
}

// broadcastJoinNotice tells every existing peer about the joiner, each
// with its own host view in the host field.
func (r *Room) broadcastJoinNotice(joiner uint32) {
	for _, c := range r.connections {
		if c.ID() == joiner {
			continue
		}
		c.EnqueueRoot(codec.RootMsgJoinGame, codec.EncodeJoinGame(codec.JoinGamePayload{
			Code: r.code, ClientID: joiner, HostID: r.hostViewFor(c.ID()),
		}))
	}
}

// releaseHostWaiters admits everyone parked in waitingForHost once the
// host has re-entered an Ended room.
func (r *Room) releaseHostWaiters() {
	for id := range r.waitingForHost {
		delete(r.waitingForHost, id)
		c, ok := r.connections[id]
		if !ok {
			continue
		}
		r.sendJoinedGame(c)
		r.broadcastJoinNotice(id)
	}
}

// ensureRoomObjects spawns the room-owned singletons a lobby needs when
// the server itself is host.
func (r *Room) ensureRoomObjects() {
	if !r.graph.HasKind(object.KindLobbyBehaviour) {
		r.spawnRoomObject(object.SpawnTypeLobbyBehaviour)
	}
	if !r.graph.HasKind(object.KindGameData) {
		r.spawnRoomObject(object.SpawnTypeGameData)
	}
}

// spawnRoomObject materializes a room-owned object and queues its Spawn
// message on the outbound stream.
func (r *Room) spawnRoomObject(spawnType uint32) *object.Object {
	obj, err := r.graph.Spawn(spawnType, object.RoomOwner, 0)
	if err != nil {
		r.logger.Errorf("spawn type %d: %v", spawnType, err)
		return nil
	}
	r.queueSpawn(obj)
	return obj
}

// queueSpawn appends an object's Spawn message to the outbound stream so
// the next tick replicates it.
func (r *Room) queueSpawn(obj *object.Object) {
	r.outbound = append(r.outbound, codec.GameDataMsg{
		Tag:     codec.GameMsgSpawn,
		Payload: codec.EncodeSpawn(r.graph.EncodeObject(obj)),
	})
}

func ipOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
