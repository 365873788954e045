package room

import "gamecore/internal/codec"

// Msg is a unit of work sent into the room's dispatch loop. Everything
// that mutates room state arrives as a Msg so all mutation happens on the
// room's single execution context.
type Msg interface {
	SenderID() uint32
}

// MsgJoin asks the room to admit a connection.
type MsgJoin struct {
	Conn Conn
	User *UserInfo
}

func (m *MsgJoin) SenderID() uint32 { return m.Conn.ID() }

// MsgLeave removes a client (disconnect, timeout, kick follow-up).
type MsgLeave struct {
	ClientID uint32
	Reason   codec.DisconnectReason
}

func (m *MsgLeave) SenderID() uint32 { return m.ClientID }

// MsgGameData carries the inner messages of a GameData/GameDataTo root
// message. Target is nil for the broadcast form.
type MsgGameData struct {
	Sender   uint32
	Target   *uint32
	Messages []codec.GameDataMsg
	Reliable bool
}

func (m *MsgGameData) SenderID() uint32 { return m.Sender }

// MsgStart is the host's StartGame declaration.
type MsgStart struct {
	Sender uint32
}

func (m *MsgStart) SenderID() uint32 { return m.Sender }

// MsgEnd queues an end-game intent from the host.
type MsgEnd struct {
	Sender uint32
	Reason uint8
}

func (m *MsgEnd) SenderID() uint32 { return m.Sender }

// MsgAlterGame toggles a room property (privacy).
type MsgAlterGame struct {
	Sender  uint32
	Payload codec.AlterGamePayload
}

func (m *MsgAlterGame) SenderID() uint32 { return m.Sender }

// MsgKick is a host's request to remove (and optionally ban) a player.
type MsgKick struct {
	Sender uint32
	Target uint32
	Ban    bool
}

func (m *MsgKick) SenderID() uint32 { return m.Sender }

// MsgSetServerAsHost flips the host policy at runtime (admin surface).
type MsgSetServerAsHost struct {
	Enabled bool
	Res     chan error
}

func (m *MsgSetServerAsHost) SenderID() uint32 { return 0 }

// MsgSnapshot requests a point-in-time copy of the room's public state.
type MsgSnapshot struct {
	Res chan Snapshot
}

func (m *MsgSnapshot) SenderID() uint32 { return 0 }

// MsgDestroy tears the room down (admin destroy, worker shutdown).
type MsgDestroy struct {
	Reason string
}

func (m *MsgDestroy) SenderID() uint32 { return 0 }
