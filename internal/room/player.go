package room

// TaskState is one assigned task and its completion flag.
type TaskState struct {
	ID       uint32
	Complete bool
}

// Player is the room-owned game identity of a connected client.
// It lives and dies with its Room; the Connection only ever refers to it
// through the room's dispatch context.
type Player struct {
	ClientID   uint32
	PlayerID   uint8
	Name       string
	Color      uint8
	Hat        uint32
	Pet        uint32
	Skin       uint32
	IsDead     bool
	IsImpostor bool
	IsReady    bool
	InScene    bool
	Tasks      []TaskState
}

// UserInfo is the authenticated identity the worker resolved from the
// auth collaborator before handing the join to the room. Nil when auth is
// unavailable; the anti-cheat name/cosmetic rules then fall back to
// built-in catalog checks only.
type UserInfo struct {
	DisplayName    string
	OwnedCosmetics map[uint32]bool
}
