package room

import "gamecore/internal/codec"

// msgLeave runs the leave protocol: scrub every index, drop
// owned components, destroy on empty, migrate host authority otherwise.
func (r *Room) msgLeave(m *MsgLeave) {
	r.removeClient(m.ClientID, m.Reason)
}

func (r *Room) removeClient(id uint32, reason codec.DisconnectReason) {
	c, ok := r.connections[id]
	if !ok {
		r.logger.Debugf("client %d may already be removed", id)
		return
	}

	delete(r.waitingForHost, id)
	delete(r.connections, id)
	delete(r.players, id)
	delete(r.users, id)
	delete(r.lastHostView, id)
	wasActingHost := r.actingHostIDs[id]
	delete(r.actingHostIDs, id)
	for i, wid := range r.actingHostWaitingFor {
		if wid == id {
			r.actingHostWaitingFor = append(r.actingHostWaitingFor[:i], r.actingHostWaitingFor[i+1:]...)
			break
		}
	}
	for i, jid := range r.joinOrder {
		if jid == id {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	r.movement.forget(id)
	r.cheat.Forget(id)
	c.SetRoom(nil)

	for _, netID := range r.graph.DespawnOwned(int32(id)) {
		r.outbound = append(r.outbound, codec.GameDataMsg{
			Tag:     codec.GameMsgDespawn,
			Payload: codec.EncodeDespawn(codec.DespawnPayload{NetID: netID}),
		})
	}

	r.logger.Infof("player left: %d (%s)", id, reason)
	r.hub.Emit(&ClientLeaveEvent{RoomCode: r.code, ClientID: id, Reason: reason})

	if len(r.connections) == 0 {
		r.destroy("last player left")
		return
	}

	if (!r.serverAsHost && r.hostID == id) || (r.serverAsHost && wasActingHost && len(r.actingHostIDs) == 0) {
		r.reselectAfterLeave(id)
	}

	for _, rc := range r.connections {
		rc.EnqueueRoot(codec.RootMsgRemovePlayer, codec.EncodeRemovePlayer(codec.RemovePlayerPayload{
			Code: r.code, ClientID: id, HostID: r.hostViewFor(rc.ID()), Reason: reason,
		}))
	}
}
