package worker

import (
	"context"

	"gamecore/internal/codec"
	"gamecore/internal/room"
	"gamecore/internal/session"
	"gamecore/internal/transport"
)

// transport.Handler implementation: the worker is the only layer that
// sees raw peers; everything below a root header is resolved to a
// Connection first and then to the owning room.

// OnHello admits or rejects a new peer and mints its connection.
func (w *Worker) OnHello(p *transport.Peer, hello transport.HelloPayload) (uint32, bool, transport.DisconnectPayload) {
	if w.cfg.ProtocolVers != 0 && uint32(hello.ProtocolVersion) != w.cfg.ProtocolVers {
		w.logger.Infof("rejecting %v: protocol %d, want %d", p.Addr(), hello.ProtocolVersion, w.cfg.ProtocolVers)
		return 0, false, transport.DisconnectPayload{Reason: codec.DisconnectIncorrectVersion}
	}
	id := w.sessions.Allocate()
	conn := session.New(p, id, hello)
	w.sessions.Insert(conn)
	w.mu.Lock()
	w.conns[p.Addr().String()] = conn
	w.mu.Unlock()
	w.logger.Infof("client %d connected from %v (%s)", id, p.Addr(), hello.Username)
	return id, true, transport.DisconnectPayload{}
}

func (w *Worker) connFor(p *transport.Peer) (*session.Connection, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.conns[p.Addr().String()]
	return c, ok
}

// OnMessage decodes the root frames of a packet body and routes each.
func (w *Worker) OnMessage(p *transport.Peer, reliable bool, payload []byte) {
	conn, ok := w.connFor(p)
	if !ok {
		w.logger.Debugf("message from unknown peer %v", p.Addr())
		return
	}
	msgs, err := codec.DecodeRootMsgs(payload)
	if err != nil {
		w.logger.Warnf("malformed root frame from client %d: %v", conn.ID(), err)
		return
	}
	for _, m := range msgs {
		w.routeRoot(conn, m, reliable)
	}
}

// OnDisconnect handles an explicit client goodbye.
func (w *Worker) OnDisconnect(p *transport.Peer, reason codec.DisconnectReason, text string) {
	if conn, ok := w.connFor(p); ok {
		w.logger.Infof("client %d disconnected: %v %q", conn.ID(), reason, text)
		w.releaseConn(p, conn, reason)
	}
}

// OnPeerLost handles a transport-declared death (retransmit exhaustion,
// idle timeout, flood).
func (w *Worker) OnPeerLost(p *transport.Peer, cause string) {
	if conn, ok := w.connFor(p); ok {
		w.logger.Infof("client %d lost: %s", conn.ID(), cause)
		w.releaseConn(p, conn, codec.DisconnectError)
	}
}

func (w *Worker) releaseConn(p *transport.Peer, conn *session.Connection, reason codec.DisconnectReason) {
	conn.HandleDisconnect(reason)
	w.sessions.Remove(conn.ID())
	if w.authAPI != nil {
		w.authAPI.Forget(conn.ID())
	}
	w.mu.Lock()
	delete(w.conns, p.Addr().String())
	w.mu.Unlock()
}

func (w *Worker) routeRoot(conn *session.Connection, m codec.RootMsg, reliable bool) {
	switch m.Tag {
	case codec.RootMsgHostGame:
		p, err := codec.DecodeHostGame(m.Payload)
		if err != nil {
			w.logger.Warnf("malformed HostGame from %d: %v", conn.ID(), err)
			return
		}
		rm := w.createRoom(p.Settings)
		conn.SendRootNow(codec.RootMsgHostGame, codec.EncodeHostGameReply(rm.Code()))

	case codec.RootMsgJoinGame:
		p, err := codec.DecodeJoinGame(m.Payload)
		if err != nil {
			w.logger.Warnf("malformed JoinGame from %d: %v", conn.ID(), err)
			return
		}
		rm, ok := w.GetRoom(p.Code)
		if !ok {
			conn.SendRootNow(codec.RootMsgRemoveGame,
				codec.EncodeRemoveGame(codec.RemoveGamePayload{Reason: codec.DisconnectGameNotFound}))
			return
		}
		w.joinRoom(conn, rm)

	case codec.RootMsgGameData:
		gd, err := codec.DecodeGameData(m.Payload)
		if err != nil {
			w.logger.Warnf("malformed GameData from %d: %v", conn.ID(), err)
			return
		}
		if rm, ok := w.GetRoom(gd.Code); ok {
			rm.SendMessage(&room.MsgGameData{Sender: conn.ID(), Messages: gd.Messages, Reliable: reliable})
		}

	case codec.RootMsgGameDataTo:
		gdt, err := codec.DecodeGameDataTo(m.Payload)
		if err != nil {
			w.logger.Warnf("malformed GameDataTo from %d: %v", conn.ID(), err)
			return
		}
		if rm, ok := w.GetRoom(gdt.Code); ok {
			target := gdt.Target
			rm.SendMessage(&room.MsgGameData{Sender: conn.ID(), Target: &target, Messages: gdt.Messages, Reliable: reliable})
		}

	case codec.RootMsgStartGame:
		p, err := codec.DecodeStartGame(m.Payload)
		if err != nil {
			return
		}
		if rm, ok := w.GetRoom(p.Code); ok {
			rm.SendMessage(&room.MsgStart{Sender: conn.ID()})
		}

	case codec.RootMsgEndGame:
		p, err := codec.DecodeEndGame(m.Payload)
		if err != nil {
			return
		}
		if rm, ok := w.GetRoom(p.Code); ok {
			rm.SendMessage(&room.MsgEnd{Sender: conn.ID(), Reason: p.Reason})
		}

	case codec.RootMsgAlterGame:
		p, err := codec.DecodeAlterGame(m.Payload)
		if err != nil {
			return
		}
		if rm, ok := w.GetRoom(p.Code); ok {
			rm.SendMessage(&room.MsgAlterGame{Sender: conn.ID(), Payload: p})
		}

	case codec.RootMsgKickPlayer:
		p, err := codec.DecodeKickPlayer(m.Payload)
		if err != nil {
			return
		}
		if rm, ok := w.GetRoom(p.Code); ok {
			rm.SendMessage(&room.MsgKick{Sender: conn.ID(), Target: p.ClientID, Ban: p.Ban})
		}

	case codec.RootMsgGetGameList:
		conn.SendRootNow(codec.RootMsgGetGameListResult, w.encodeGameList())

	default:
		w.logger.Warnf("unknown root tag %d from %d", m.Tag, conn.ID())
	}
}

// joinRoom resolves the authenticated user off the room's context, then
// hands the join to the room's dispatch loop.
func (w *Worker) joinRoom(conn *session.Connection, rm *room.Room) {
	if w.authAPI == nil {
		rm.SendMessage(&room.MsgJoin{Conn: conn})
		return
	}
	go func() {
		var info *room.UserInfo
		user, err := w.authAPI.GetConnectionUser(context.Background(), conn.ID(), conn.Name())
		if err != nil {
			w.logger.Warnf("auth lookup for %d: %v", conn.ID(), err)
		} else if user != nil {
			info = &room.UserInfo{
				DisplayName:    user.DisplayName,
				OwnedCosmetics: make(map[uint32]bool, len(user.OwnedCosmetics)),
			}
			for _, id := range user.OwnedCosmetics {
				info.OwnedCosmetics[id] = true
			}
		}
		rm.SendMessage(&room.MsgJoin{Conn: conn, User: info})
	}()
}

// encodeGameList lists public rooms: count, then per room the code,
// player count and max players.
func (w *Worker) encodeGameList() []byte {
	snapshots := w.Rooms()
	buf := codec.NewWriter(8 + 8*len(snapshots))
	var public []room.Snapshot
	for _, s := range snapshots {
		if s.Privacy == "public" && s.State == "not_started" {
			public = append(public, s)
		}
	}
	buf.WritePackedU32(uint32(len(public)))
	for _, s := range public {
		buf.WriteI32(s.Code)
		buf.WriteU8(uint8(len(s.Players)))
		buf.WriteU8(s.Settings.MaxPlayers)
	}
	return buf.Bytes()
}
