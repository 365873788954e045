package room

import (
	"strings"

	"gamecore/internal/anticheat"
	"gamecore/internal/codec"
	"gamecore/internal/object"
)

// msgGameData demultiplexes the inner messages of a GameData/GameDataTo
// root message: component deltas, RPCs through the anti-cheat gate,
// spawns, despawns, scene changes and readiness. Messages that survive
// their checks are relayed to the other connections (or only the
// GameDataTo target).
func (r *Room) msgGameData(m *MsgGameData) {
	if _, ok := r.connections[m.Sender]; !ok {
		return
	}
	var relay []codec.GameDataMsg
	for _, msg := range m.Messages {
		switch msg.Tag {
		case codec.GameMsgData:
			d, err := codec.DecodeData(msg.Payload)
			if err != nil {
				r.logger.Warnf("malformed data msg from %d: %v", m.Sender, err)
				continue
			}
			comp, ok := r.graph.Lookup(d.NetID)
			if !ok {
				// Legitimate race with despawn; observe, never disconnect.
				r.logger.Warnf("data for stale net id %d from %d", d.NetID, m.Sender)
				continue
			}
			if ct, isTransform := comp.(*object.CustomNetworkTransform); isTransform && m.Target == nil {
				r.handleMovement(m.Sender, d, ct)
				continue
			}
			if err := comp.Deserialize(codec.NewReader(d.Payload)); err != nil {
				r.logger.Warnf("bad data payload for net id %d from %d: %v", d.NetID, m.Sender, err)
				continue
			}
			relay = append(relay, msg)

		case codec.GameMsgRPC:
			rpc, err := codec.DecodeRpc(msg.Payload)
			if err != nil {
				r.logger.Warnf("malformed rpc from %d: %v", m.Sender, err)
				continue
			}
			if r.handleRpc(m.Sender, rpc) {
				relay = append(relay, msg)
			}

		case codec.GameMsgSpawn:
			if !r.isHostAuthority(m.Sender) {
				r.logger.Warnf("spawn from non-host %d", m.Sender)
				continue
			}
			sm, err := codec.DecodeSpawn(msg.Payload)
			if err != nil {
				r.logger.Warnf("malformed spawn from %d: %v", m.Sender, err)
				continue
			}
			if _, err := r.graph.ApplySpawn(sm); err != nil {
				r.logger.Warnf("apply spawn type %d from %d: %v", sm.SpawnType, m.Sender, err)
				continue
			}
			relay = append(relay, msg)

		case codec.GameMsgDespawn:
			dp, err := codec.DecodeDespawn(msg.Payload)
			if err != nil {
				r.logger.Warnf("malformed despawn from %d: %v", m.Sender, err)
				continue
			}
			comp, ok := r.graph.Lookup(dp.NetID)
			if !ok {
				r.logger.Warnf("despawn for stale net id %d from %d", dp.NetID, m.Sender)
				continue
			}
			if comp.OwnerID() != int32(m.Sender) && !r.isHostAuthority(m.Sender) {
				r.logger.Warnf("despawn of net id %d owned by %d from %d", dp.NetID, comp.OwnerID(), m.Sender)
				continue
			}
			if err := r.graph.Despawn(dp.NetID); err != nil {
				continue
			}
			relay = append(relay, msg)

		case codec.GameMsgSceneChange:
			sc, err := codec.DecodeSceneChange(msg.Payload)
			if err != nil {
				r.logger.Warnf("malformed scene change from %d: %v", m.Sender, err)
				continue
			}
			r.handleSceneChange(m.Sender, sc)
			relay = append(relay, msg)

		case codec.GameMsgReady:
			r.handleReady(m.Sender)
			relay = append(relay, msg)

		case codec.GameMsgChangeSettings:
			if !r.isHostAuthority(m.Sender) {
				r.logger.Warnf("settings change from non-host %d", m.Sender)
				continue
			}
			if r.adoptSettings(msg.Payload) {
				relay = append(relay, msg)
			}

		default:
			r.logger.Warnf("unknown game data tag %d from %d", msg.Tag, m.Sender)
		}
	}

	if len(relay) == 0 {
		return
	}
	opts := BroadcastOpts{Reliable: m.Reliable, Exclude: map[uint32]bool{m.Sender: true}}
	if m.Target != nil {
		opts.Include = map[uint32]bool{*m.Target: true}
		opts.Exclude = nil
	}
	r.broadcastMessages(relay, nil, opts)
}

// handleRpc gates one RPC through the anti-cheat monitor, applies the
// room-level side effects, then dispatches to the component. Returns
// whether the RPC should be relayed.
func (r *Room) handleRpc(sender uint32, rpc codec.RpcMsg) bool {
	comp, _ := r.graph.Lookup(rpc.NetID)
	ctx := r.cheatContext(sender, rpc)
	verdict := r.cheat.CheckRpc(ctx, comp, rpc)
	if verdict.Disconnect {
		r.logger.Warnf("client %d exceeded critical infraction budget", sender)
		r.removeClient(sender, codec.DisconnectError)
		return false
	}
	if !verdict.Allow {
		return false
	}

	relay := true
	switch rpc.Tag {
	case codec.RpcCheckName:
		r.onCheckName(sender, rpc)
	case codec.RpcSyncSettings:
		r.onSyncSettings(sender, rpc)
	case codec.RpcSendChat:
		if r.onChat(sender, rpc) {
			relay = false
		}
	case codec.RpcStartMeeting, codec.RpcReportDeadBody:
		r.ensureMeeting()
	case codec.RpcVotingComplete, codec.RpcClose:
		r.endMeeting()
	case codec.RpcCastVote:
		if p, ok := r.players[sender]; ok {
			r.voted[p.PlayerID] = true
		}
	case codec.RpcSetInfected:
		r.onSetInfected(rpc)
	}

	if comp != nil {
		if err := comp.HandleRpc(rpc); err != nil {
			r.logger.Warnf("rpc %d on net id %d from %d: %v", rpc.Tag, rpc.NetID, sender, err)
		}
	}
	return relay
}

// cheatContext assembles the sender's standing for the anti-cheat rule
// chain. An acting host is graded as such for host-only tags; otherwise
// impostor standing takes precedence so legitimate venting passes.
func (r *Room) cheatContext(sender uint32, rpc codec.RpcMsg) anticheat.Context {
	ctx := anticheat.Context{
		RoomCode:     r.code,
		GameID:       r.gameID,
		SenderID:     sender,
		Role:         anticheat.RolePlayer,
		ServerAsHost: r.serverAsHost,
		MapID:        r.settings.MapID,
		AlivePlayers: make(map[uint8]bool, len(r.players)),
	}
	if c, ok := r.connections[sender]; ok {
		ctx.Ping = c.RTT()
	}
	for _, pl := range r.players {
		if !pl.IsDead {
			ctx.AlivePlayers[pl.PlayerID] = true
		}
	}
	p := r.players[sender]
	if p != nil {
		ctx.SenderPlayerID = p.PlayerID
		ctx.HasVoted = r.voted[p.PlayerID]
		if p.IsImpostor {
			ctx.Role = anticheat.RoleImpostor
		}
	}
	if r.actingHostIDs[sender] {
		if anticheat.IsHostOnly(rpc.Tag) || ctx.Role == anticheat.RolePlayer {
			ctx.Role = anticheat.RoleActingHost
		}
	}
	if u := r.users[sender]; u != nil {
		ctx.DisplayName = u.DisplayName
		ctx.OwnedCosmetics = u.OwnedCosmetics
	}
	return ctx
}

// onCheckName records the (already anti-cheat-validated) name and, when
// the sender heads the acting-host waiting list, runs the one-shot
// acting-host transaction.
func (r *Room) onCheckName(sender uint32, rpc codec.RpcMsg) {
	if name, err := codec.NewReader(rpc.Payload).ReadString(); err == nil {
		if p, ok := r.players[sender]; ok {
			p.Name = name
		}
	}
	if r.serverAsHost && !r.actingHostTransactionSent &&
		len(r.actingHostWaitingFor) > 0 && r.actingHostWaitingFor[0] == sender {
		r.runActingHostTransaction()
	}
}

// runActingHostTransaction sends each acting host the paired
// JoinGame(temp) + GameDataTo(SceneChange("OnlineGame")) exactly once,
// then restores their host views.
func (r *Room) runActingHostTransaction() {
	scene := codec.GameDataMsg{
		Tag: codec.GameMsgSceneChange,
		Payload: codec.EncodeSceneChange(codec.SceneChangePayload{
			ClientID: ServerHostID, Scene: "OnlineGame",
		}),
	}
	for id := range r.actingHostIDs {
		c, ok := r.connections[id]
		if !ok {
			continue
		}
		c.EnqueueRoot(codec.RootMsgJoinGame, codec.EncodeJoinGame(codec.JoinGamePayload{
			Code: r.code, ClientID: hostViewTempID, HostID: ServerHostID,
		}))
		c.EnqueueRoot(codec.RootMsgGameDataTo, codec.EncodeGameDataTo(codec.GameDataTo{
			Code: r.code, Target: id, Messages: []codec.GameDataMsg{scene},
		}))
	}
	r.actingHostTransactionSent = true
	for id := range r.actingHostIDs {
		if c, ok := r.connections[id]; ok {
			r.sendHostViewUpdate(c)
		}
	}
}

// onSyncSettings adopts an acting host's settings and completes its
// handshake leg.
func (r *Room) onSyncSettings(sender uint32, rpc codec.RpcMsg) {
	if !r.isHostAuthority(sender) {
		return
	}
	if !r.adoptSettings(rpc.Payload) {
		return
	}
	for i, id := range r.actingHostWaitingFor {
		if id == sender {
			r.actingHostWaitingFor = append(r.actingHostWaitingFor[:i], r.actingHostWaitingFor[i+1:]...)
			break
		}
	}
}

func (r *Room) adoptSettings(payload []byte) bool {
	raw, err := codec.NewReader(payload).ReadBytes()
	if err != nil {
		r.logger.Warnf("malformed settings payload: %v", err)
		return false
	}
	s, err := codec.UnmarshalGameSettings(raw)
	if err != nil {
		r.logger.Warnf("malformed settings: %v", err)
		return false
	}
	r.settings = s
	r.applyEnforcedSettings()
	r.logger.Infof("settings synced: map=%d impostors=%d max=%d",
		r.settings.MapID, r.settings.ImpostorCount, r.settings.MaxPlayers)
	return true
}

// onChat inspects a chat line for the configured command prefix; a
// command is consumed (not relayed) and handed to listeners, with a
// Reply closure that speaks back as the configured server player.
func (r *Room) onChat(sender uint32, rpc codec.RpcMsg) (consumed bool) {
	if !r.cfg.ChatCommands.Enabled {
		return false
	}
	prefix := r.cfg.ChatCommands.Prefix
	if prefix == "" {
		prefix = "/"
	}
	text, err := codec.NewReader(rpc.Payload).ReadString()
	if err != nil || !strings.HasPrefix(text, prefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return true
	}
	ev := &ChatCommandEvent{
		RoomCode: r.code,
		SenderID: sender,
		Command:  fields[0],
		Args:     fields[1:],
		Reply: func(reply string) {
			r.sendServerChat(sender, reply)
		},
	}
	r.hub.EmitSerial(ev)
	return true
}

// sendServerChat delivers a server-authored chat line to one client,
// prefixed with the configured server player name; the configured color,
// hat and skin are not applied.
func (r *Room) sendServerChat(target uint32, text string) {
	c, ok := r.connections[target]
	if !ok {
		return
	}
	speaker := r.cfg.ServerPlayer.Name
	if speaker == "" {
		speaker = "<server>"
	}
	w := codec.NewWriter(len(speaker) + len(text) + 4)
	w.WriteString(speaker + ": " + text)
	chat := codec.GameDataMsg{
		Tag: codec.GameMsgRPC,
		Payload: codec.EncodeRpc(codec.RpcMsg{
			NetID: 0, Tag: codec.RpcSendChat, Payload: w.Bytes(),
		}),
	}
	c.EnqueueRoot(codec.RootMsgGameDataTo, codec.EncodeGameDataTo(codec.GameDataTo{
		Code: r.code, Target: target, Messages: []codec.GameDataMsg{chat},
	}))
}

// ensureMeeting spawns the MeetingHud singleton and opens a fresh vote
// ledger.
func (r *Room) ensureMeeting() {
	if r.graph.HasKind(object.KindMeetingHud) {
		return
	}
	r.voted = make(map[uint8]bool)
	r.spawnRoomObject(object.SpawnTypeMeetingHud)
}

// endMeeting despawns the MeetingHud and closes the vote ledger.
func (r *Room) endMeeting() {
	var ids []uint32
	r.graph.ForEach(func(c object.Component) {
		if c.Kind() == object.KindMeetingHud {
			ids = append(ids, c.NetID())
		}
	})
	for _, netID := range ids {
		if err := r.graph.Despawn(netID); err == nil {
			r.outbound = append(r.outbound, codec.GameDataMsg{
				Tag:     codec.GameMsgDespawn,
				Payload: codec.EncodeDespawn(codec.DespawnPayload{NetID: netID}),
			})
		}
	}
	r.voted = make(map[uint8]bool)
}

// onSetInfected mirrors an authoritative impostor assignment into the
// room's player records.
func (r *Room) onSetInfected(rpc codec.RpcMsg) {
	rd := codec.NewReader(rpc.Payload)
	count, err := rd.ReadPackedU32()
	if err != nil {
		return
	}
	infected := make(map[uint8]bool, count)
	for i := uint32(0); i < count; i++ {
		pid, err := rd.ReadU8()
		if err != nil {
			return
		}
		infected[pid] = true
	}
	for _, p := range r.players {
		p.IsImpostor = infected[p.PlayerID]
	}
}

// handleSceneChange marks the player loaded and, under server-as-host,
// syncs the full object graph to the freshly loaded client and gives it
// its in-game object.
func (r *Room) handleSceneChange(sender uint32, sc codec.SceneChangePayload) {
	p, ok := r.players[sender]
	if !ok {
		return
	}
	p.InScene = true
	if !r.serverAsHost {
		return
	}

	var spawns []codec.GameDataMsg
	r.graph.Objects(func(obj *object.Object) {
		spawns = append(spawns, codec.GameDataMsg{
			Tag:     codec.GameMsgSpawn,
			Payload: codec.EncodeSpawn(r.graph.EncodeObject(obj)),
		})
	})
	if len(spawns) > 0 {
		if c, ok := r.connections[sender]; ok {
			c.EnqueueRoot(codec.RootMsgGameDataTo, codec.EncodeGameDataTo(codec.GameDataTo{
				Code: r.code, Target: sender, Messages: spawns,
			}))
		}
	}
	if _, ok := r.graph.FindKind(int32(sender), object.KindPlayerControl); !ok {
		r.spawnPlayerObject(sender)
	}
}
