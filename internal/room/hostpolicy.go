package room

import "gamecore/internal/codec"

// Host policy: two modes. In classic mode a client is host
// and migrates on leave; in server-as-host mode the server is host and
// zero or more acting hosts are delegated a subset of host authority.

// hostViewFor computes the host id a particular connection should
// believe in: itself when it is an acting host under SaaH, the server
// sentinel for everyone else under SaaH, and the real host otherwise.
func (r *Room) hostViewFor(clientID uint32) uint32 {
	if r.serverAsHost {
		if r.actingHostIDs[clientID] {
			return clientID
		}
		return ServerHostID
	}
	return r.hostID
}

// sendHostViewUpdate pushes one connection's current host view using the
// paired JoinGame(temp) + RemovePlayer(temp, host) idiom, which forces
// the client to reconcile the host id without a full rejoin.
func (r *Room) sendHostViewUpdate(c Conn) {
	view := r.hostViewFor(c.ID())
	c.EnqueueRoot(codec.RootMsgJoinGame, codec.EncodeJoinGame(codec.JoinGamePayload{
		Code: r.code, ClientID: hostViewTempID, HostID: view,
	}))
	c.EnqueueRoot(codec.RootMsgRemovePlayer, codec.EncodeRemovePlayer(codec.RemovePlayerPayload{
		Code: r.code, ClientID: hostViewTempID, HostID: view, Reason: codec.DisconnectExitGame,
	}))
	r.lastHostView[c.ID()] = view
}

// updateHostViews refreshes every connection's host view; called at the
// end of every host-policy mutation.
func (r *Room) updateHostViews() {
	for _, c := range r.connections {
		r.sendHostViewUpdate(c)
	}
}

// selectHost walks the join order looking for a candidate no listener
// vetoes and installs it as the classic host. Returns false when every
// candidate was vetoed or the room is empty.
func (r *Room) selectHost() bool {
	for _, id := range r.joinOrder {
		if _, ok := r.connections[id]; !ok {
			continue
		}
		ev := &SelectHostEvent{RoomCode: r.code, Candidate: id}
		r.hub.EmitSerial(ev)
		if ev.Cancelled() {
			continue
		}
		r.hostID = id
		r.logger.Infof("host selected: %d", id)
		return true
	}
	return false
}

// promoteActingHost grants clientID acting-host authority, subject to
// listener veto.
func (r *Room) promoteActingHost(clientID uint32) bool {
	ev := &SelectHostEvent{RoomCode: r.code, Candidate: clientID}
	r.hub.EmitSerial(ev)
	if ev.Cancelled() {
		return false
	}
	r.actingHostIDs[clientID] = true
	r.logger.Infof("acting host promoted: %d", clientID)
	return true
}

// enableServerAsHost switches to SaaH, optionally folding the previous
// classic host into the acting-host set, and refreshes every view.
func (r *Room) enableServerAsHost() {
	if r.serverAsHost {
		return
	}
	prev := r.hostID
	r.serverAsHost = true
	r.hostID = ServerHostID
	if prev != ServerHostID {
		if _, ok := r.connections[prev]; ok {
			r.promoteActingHost(prev)
		}
	}
	r.updateHostViews()
}

// disableServerAsHost returns to classic mode: the first acting host (or
// failing that the first connection) becomes the real host.
func (r *Room) disableServerAsHost() {
	if !r.serverAsHost {
		return
	}
	r.serverAsHost = false
	r.hostID = ServerHostID
	for _, id := range r.joinOrder {
		if r.actingHostIDs[id] {
			r.hostID = id
			break
		}
	}
	if r.hostID == ServerHostID {
		r.selectHost()
	}
	r.actingHostIDs = make(map[uint32]bool)
	r.updateHostViews()
}

// reselectAfterLeave re-runs host selection when the leaver held host
// authority. In classic mode this is host migration; in SaaH it keeps at
// least one acting host around when possible.
func (r *Room) reselectAfterLeave(leaver uint32) {
	if r.serverAsHost {
		if len(r.actingHostIDs) > 0 {
			return
		}
		for _, id := range r.joinOrder {
			if _, ok := r.connections[id]; !ok {
				continue
			}
			if r.promoteActingHost(id) {
				break
			}
		}
		r.updateHostViews()
		return
	}

	if r.hostID != leaver {
		return
	}
	if !r.selectHost() {
		return
	}
	// Host migration into an Ended room releases anyone parked waiting
	// for the old host to come back.
	if r.state == Ended && r.waitingForHost[r.hostID] {
		r.state = NotStarted
		r.releaseHostWaiters()
	}
	r.updateHostViews()
}
