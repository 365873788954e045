package codec

// Typed payload builders for the root messages the room and worker layers
// exchange. Each XxxPayload pairs an Encode with a Decode so the two
// directions cannot drift apart.

// HostGamePayload is the client's room-creation request; the server's
// reply reuses the same tag carrying only the assigned code.
type HostGamePayload struct {
	Settings GameSettings
}

func EncodeHostGame(p HostGamePayload) []byte {
	w := NewWriter(48)
	w.WriteBytes(MarshalGameSettings(p.Settings))
	return w.Bytes()
}

func DecodeHostGame(buf []byte) (HostGamePayload, error) {
	r := NewReader(buf)
	raw, err := r.ReadBytes()
	if err != nil {
		return HostGamePayload{}, err
	}
	s, err := UnmarshalGameSettings(raw)
	if err != nil {
		return HostGamePayload{}, err
	}
	return HostGamePayload{Settings: s}, nil
}

// EncodeHostGameReply is the server's answer: just the assigned code.
func EncodeHostGameReply(code int32) []byte {
	w := NewWriter(4)
	w.WriteI32(code)
	return w.Bytes()
}

func DecodeHostGameReply(buf []byte) (int32, error) {
	return NewReader(buf).ReadI32()
}

// JoinGamePayload is both the client's join request (only Code set on the
// way in) and the server's join notification broadcast to existing peers.
type JoinGamePayload struct {
	Code     int32
	ClientID uint32
	HostID   uint32
}

func EncodeJoinGame(p JoinGamePayload) []byte {
	w := NewWriter(12)
	w.WriteI32(p.Code)
	w.WritePackedU32(p.ClientID)
	w.WritePackedU32(p.HostID)
	return w.Bytes()
}

func DecodeJoinGame(buf []byte) (JoinGamePayload, error) {
	r := NewReader(buf)
	var p JoinGamePayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	// The request form carries only the code.
	if r.Remaining() == 0 {
		return p, nil
	}
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	if p.HostID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	return p, nil
}

// JoinedGamePayload is the server's direct reply to a joiner, listing the
// peers already present.
type JoinedGamePayload struct {
	Code     int32
	ClientID uint32
	HostID   uint32
	Others   []uint32
}

func EncodeJoinedGame(p JoinedGamePayload) []byte {
	w := NewWriter(16 + 4*len(p.Others))
	w.WriteI32(p.Code)
	w.WritePackedU32(p.ClientID)
	w.WritePackedU32(p.HostID)
	w.WritePackedU32(uint32(len(p.Others)))
	for _, id := range p.Others {
		w.WritePackedU32(id)
	}
	return w.Bytes()
}

func DecodeJoinedGame(buf []byte) (JoinedGamePayload, error) {
	r := NewReader(buf)
	var p JoinedGamePayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	if p.HostID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	count, err := r.ReadPackedU32()
	if err != nil {
		return p, err
	}
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadPackedU32()
		if err != nil {
			return p, err
		}
		p.Others = append(p.Others, id)
	}
	return p, nil
}

// RemovePlayerPayload notifies remaining peers that a player left, and
// carries the (per-recipient) host id they should now believe in.
type RemovePlayerPayload struct {
	Code     int32
	ClientID uint32
	HostID   uint32
	Reason   DisconnectReason
}

func EncodeRemovePlayer(p RemovePlayerPayload) []byte {
	w := NewWriter(12)
	w.WriteI32(p.Code)
	w.WritePackedU32(p.ClientID)
	w.WritePackedU32(p.HostID)
	w.WriteU8(uint8(p.Reason))
	return w.Bytes()
}

func DecodeRemovePlayer(buf []byte) (RemovePlayerPayload, error) {
	r := NewReader(buf)
	var p RemovePlayerPayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	if p.HostID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	reason, err := r.ReadU8()
	if err != nil {
		return p, err
	}
	p.Reason = DisconnectReason(reason)
	return p, nil
}

// AlterGameTag selects which room property an AlterGame message changes.
type AlterGameTag uint8

const (
	AlterGamePrivacy AlterGameTag = 1
)

// AlterGamePayload toggles a room property, currently only privacy.
type AlterGamePayload struct {
	Code  int32
	Tag   AlterGameTag
	Value uint8
}

func EncodeAlterGame(p AlterGamePayload) []byte {
	w := NewWriter(8)
	w.WriteI32(p.Code)
	w.WriteU8(uint8(p.Tag))
	w.WriteU8(p.Value)
	return w.Bytes()
}

func DecodeAlterGame(buf []byte) (AlterGamePayload, error) {
	r := NewReader(buf)
	var p AlterGamePayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	tag, err := r.ReadU8()
	if err != nil {
		return p, err
	}
	p.Tag = AlterGameTag(tag)
	if p.Value, err = r.ReadU8(); err != nil {
		return p, err
	}
	return p, nil
}

// WaitForHostPayload parks a joiner until the host re-enters an Ended
// room.
type WaitForHostPayload struct {
	Code     int32
	ClientID uint32
}

func EncodeWaitForHost(p WaitForHostPayload) []byte {
	w := NewWriter(8)
	w.WriteI32(p.Code)
	w.WritePackedU32(p.ClientID)
	return w.Bytes()
}

func DecodeWaitForHost(buf []byte) (WaitForHostPayload, error) {
	r := NewReader(buf)
	var p WaitForHostPayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	return p, nil
}

// StartGamePayload announces the transition out of the lobby.
type StartGamePayload struct {
	Code int32
}

func EncodeStartGame(p StartGamePayload) []byte {
	w := NewWriter(4)
	w.WriteI32(p.Code)
	return w.Bytes()
}

func DecodeStartGame(buf []byte) (StartGamePayload, error) {
	code, err := NewReader(buf).ReadI32()
	return StartGamePayload{Code: code}, err
}

// EndGamePayload announces the end of a started game.
type EndGamePayload struct {
	Code   int32
	Reason uint8
}

func EncodeEndGame(p EndGamePayload) []byte {
	w := NewWriter(8)
	w.WriteI32(p.Code)
	w.WriteU8(p.Reason)
	return w.Bytes()
}

func DecodeEndGame(buf []byte) (EndGamePayload, error) {
	r := NewReader(buf)
	var p EndGamePayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	if p.Reason, err = r.ReadU8(); err != nil {
		return p, err
	}
	return p, nil
}

// KickPlayerPayload is a host's request to remove (and optionally ban) a
// player.
type KickPlayerPayload struct {
	Code     int32
	ClientID uint32
	Ban      bool
}

func EncodeKickPlayer(p KickPlayerPayload) []byte {
	w := NewWriter(12)
	w.WriteI32(p.Code)
	w.WritePackedU32(p.ClientID)
	w.WriteBool(p.Ban)
	return w.Bytes()
}

func DecodeKickPlayer(buf []byte) (KickPlayerPayload, error) {
	r := NewReader(buf)
	var p KickPlayerPayload
	var err error
	if p.Code, err = r.ReadI32(); err != nil {
		return p, err
	}
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	if p.Ban, err = r.ReadBool(); err != nil {
		return p, err
	}
	return p, nil
}

// RemoveGamePayload tells a client its room is gone (or was never there).
type RemoveGamePayload struct {
	Reason DisconnectReason
}

func EncodeRemoveGame(p RemoveGamePayload) []byte {
	w := NewWriter(1)
	w.WriteU8(uint8(p.Reason))
	return w.Bytes()
}

func DecodeRemoveGame(buf []byte) (RemoveGamePayload, error) {
	reason, err := NewReader(buf).ReadU8()
	return RemoveGamePayload{Reason: DisconnectReason(reason)}, err
}

// SceneChangePayload is the GameData sub-message a client sends when it
// finishes loading a scene.
type SceneChangePayload struct {
	ClientID uint32
	Scene    string
}

func EncodeSceneChange(p SceneChangePayload) []byte {
	w := NewWriter(16)
	w.WritePackedU32(p.ClientID)
	w.WriteString(p.Scene)
	return w.Bytes()
}

func DecodeSceneChange(buf []byte) (SceneChangePayload, error) {
	r := NewReader(buf)
	var p SceneChangePayload
	var err error
	if p.ClientID, err = r.ReadPackedU32(); err != nil {
		return p, err
	}
	if p.Scene, err = r.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

// ReadyPayload marks a client ready after StartGame.
type ReadyPayload struct {
	ClientID uint32
}

func EncodeReady(p ReadyPayload) []byte {
	w := NewWriter(4)
	w.WritePackedU32(p.ClientID)
	return w.Bytes()
}

func DecodeReady(buf []byte) (ReadyPayload, error) {
	id, err := NewReader(buf).ReadPackedU32()
	return ReadyPayload{ClientID: id}, err
}

// DataPayload is the GameData sub-message carrying a component's
// serialized delta: `packedU32 netId . payload`.
type DataPayload struct {
	NetID   uint32
	Payload []byte
}

func EncodeData(p DataPayload) []byte {
	w := NewWriter(8 + len(p.Payload))
	w.WritePackedU32(p.NetID)
	w.WriteRaw(p.Payload)
	return w.Bytes()
}

func DecodeData(buf []byte) (DataPayload, error) {
	r := NewReader(buf)
	netID, err := r.ReadPackedU32()
	if err != nil {
		return DataPayload{}, err
	}
	return DataPayload{NetID: netID, Payload: r.Rest()}, nil
}

// DespawnPayload removes a single component by net id.
type DespawnPayload struct {
	NetID uint32
}

func EncodeDespawn(p DespawnPayload) []byte {
	w := NewWriter(4)
	w.WritePackedU32(p.NetID)
	return w.Bytes()
}

func DecodeDespawn(buf []byte) (DespawnPayload, error) {
	id, err := NewReader(buf).ReadPackedU32()
	return DespawnPayload{NetID: id}, err
}
