package codec

// PacketKind is the first byte of every datagram.
type PacketKind uint8

const (
	PacketUnreliable PacketKind = 0
	PacketReliable   PacketKind = 1
	PacketHello      PacketKind = 8
	PacketDisconnect PacketKind = 9
	PacketAck        PacketKind = 10
	PacketPing       PacketKind = 12
)

// RootMsgTag identifies a top-level message nested inside a reliable or
// unreliable packet body.
type RootMsgTag uint8

const (
	RootMsgHostGame          RootMsgTag = 0
	RootMsgJoinGame          RootMsgTag = 1
	RootMsgStartGame         RootMsgTag = 2
	RootMsgRemoveGame        RootMsgTag = 3
	RootMsgRemovePlayer      RootMsgTag = 4
	RootMsgGameData          RootMsgTag = 5
	RootMsgGameDataTo        RootMsgTag = 6
	RootMsgJoinedGame        RootMsgTag = 7
	RootMsgEndGame           RootMsgTag = 8
	RootMsgAlterGame         RootMsgTag = 9
	RootMsgKickPlayer        RootMsgTag = 10
	RootMsgWaitForHost       RootMsgTag = 11
	RootMsgRedirect          RootMsgTag = 12
	RootMsgReselectServer    RootMsgTag = 13
	RootMsgGetGameList       RootMsgTag = 14
	RootMsgGetGameListResult RootMsgTag = 15
)

// GameDataMsgTag identifies a sub-message nested inside GameData/GameDataTo.
type GameDataMsgTag uint8

const (
	GameMsgData            GameDataMsgTag = 1
	GameMsgRPC             GameDataMsgTag = 2
	GameMsgSpawn           GameDataMsgTag = 3
	GameMsgDespawn         GameDataMsgTag = 4
	GameMsgSceneChange     GameDataMsgTag = 5
	GameMsgReady           GameDataMsgTag = 6
	GameMsgChangeSettings  GameDataMsgTag = 7
)

// RootMsg is a decoded [len u16le][tag u8][payload] frame.
type RootMsg struct {
	Tag     RootMsgTag
	Payload []byte
}

// EncodeRootMsg frames a root message as len.tag.payload, where len
// covers the payload alone and the tag is its own byte.
func EncodeRootMsg(w *Writer, tag RootMsgTag, payload []byte) {
	w.WriteU16(uint16(len(payload)))
	w.WriteU8(uint8(tag))
	w.WriteRaw(payload)
}

// DecodeRootMsgs decodes every len-prefixed root message in buf in order,
// stopping cleanly at exact exhaustion and failing on a partial trailer.
func DecodeRootMsgs(buf []byte) ([]RootMsg, error) {
	r := NewReader(buf)
	var out []RootMsg
	for r.Remaining() > 0 {
		payloadLen, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		tag, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadN(int(payloadLen))
		if err != nil {
			return nil, err
		}
		out = append(out, RootMsg{Tag: RootMsgTag(tag), Payload: payload})
	}
	return out, nil
}

// GameDataMsg is a decoded sub-message inside GameData/GameDataTo.
type GameDataMsg struct {
	Tag     GameDataMsgTag
	Payload []byte
}

// EncodeGameDataMsg frames a GameData sub-message identically to a root
// message: len.tag.payload, so nesting recurses the same way at both
// levels.
func EncodeGameDataMsg(w *Writer, tag GameDataMsgTag, payload []byte) {
	w.WriteU16(uint16(len(payload)))
	w.WriteU8(uint8(tag))
	w.WriteRaw(payload)
}

func DecodeGameDataMsgs(buf []byte) ([]GameDataMsg, error) {
	r := NewReader(buf)
	var out []GameDataMsg
	for r.Remaining() > 0 {
		payloadLen, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		tag, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadN(int(payloadLen))
		if err != nil {
			return nil, err
		}
		out = append(out, GameDataMsg{Tag: GameDataMsgTag(tag), Payload: payload})
	}
	return out, nil
}

// GameData is `code i32le . GameDataMsg+`.
type GameData struct {
	Code     int32
	Messages []GameDataMsg
}

func EncodeGameData(gd GameData) []byte {
	w := NewWriter(16)
	w.WriteI32(gd.Code)
	for _, m := range gd.Messages {
		EncodeGameDataMsg(w, m.Tag, m.Payload)
	}
	return w.Bytes()
}

func DecodeGameData(buf []byte) (GameData, error) {
	r := NewReader(buf)
	code, err := r.ReadI32()
	if err != nil {
		return GameData{}, err
	}
	msgs, err := DecodeGameDataMsgs(r.Rest())
	if err != nil {
		return GameData{}, err
	}
	return GameData{Code: code, Messages: msgs}, nil
}

// GameDataTo is `code i32le . packedU32 targetClientId . GameDataMsg+`.
type GameDataTo struct {
	Code     int32
	Target   uint32
	Messages []GameDataMsg
}

func EncodeGameDataTo(gdt GameDataTo) []byte {
	w := NewWriter(16)
	w.WriteI32(gdt.Code)
	w.WritePackedU32(gdt.Target)
	for _, m := range gdt.Messages {
		EncodeGameDataMsg(w, m.Tag, m.Payload)
	}
	return w.Bytes()
}

func DecodeGameDataTo(buf []byte) (GameDataTo, error) {
	r := NewReader(buf)
	code, err := r.ReadI32()
	if err != nil {
		return GameDataTo{}, err
	}
	target, err := r.ReadPackedU32()
	if err != nil {
		return GameDataTo{}, err
	}
	msgs, err := DecodeGameDataMsgs(r.Rest())
	if err != nil {
		return GameDataTo{}, err
	}
	return GameDataTo{Code: code, Target: target, Messages: msgs}, nil
}

// RpcMsg is `packedU32 netId . tag u8 . payload`.
type RpcMsg struct {
	NetID   uint32
	Tag     RpcTag
	Payload []byte
}

func EncodeRpc(m RpcMsg) []byte {
	w := NewWriter(8 + len(m.Payload))
	w.WritePackedU32(m.NetID)
	w.WriteU8(uint8(m.Tag))
	w.WriteRaw(m.Payload)
	return w.Bytes()
}

func DecodeRpc(buf []byte) (RpcMsg, error) {
	r := NewReader(buf)
	netID, err := r.ReadPackedU32()
	if err != nil {
		return RpcMsg{}, err
	}
	tag, err := r.ReadU8()
	if err != nil {
		return RpcMsg{}, err
	}
	return RpcMsg{NetID: netID, Tag: RpcTag(tag), Payload: r.Rest()}, nil
}

// RpcTag identifies the RPC carried inside an RpcMsg.
type RpcTag uint8

const (
	RpcPlayAnimation    RpcTag = 0
	RpcCompleteTask     RpcTag = 1
	RpcSyncSettings     RpcTag = 2
	RpcSetInfected      RpcTag = 3
	RpcExiled           RpcTag = 4
	RpcCheckName        RpcTag = 5
	RpcCheckColor       RpcTag = 6
	RpcSetName          RpcTag = 7
	RpcSetColor         RpcTag = 8
	RpcSetHat           RpcTag = 9
	RpcSetSkin          RpcTag = 10
	RpcReportDeadBody   RpcTag = 11
	RpcMurderPlayer     RpcTag = 12
	RpcSendChat         RpcTag = 13
	RpcStartMeeting     RpcTag = 14
	RpcSetScanner       RpcTag = 15
	RpcSendChatNote     RpcTag = 16
	RpcSetPet           RpcTag = 17
	RpcSetStartCounter  RpcTag = 18
	RpcEnterVent        RpcTag = 19
	RpcExitVent         RpcTag = 20
	RpcSnapTo           RpcTag = 21
	RpcClose            RpcTag = 22
	RpcVotingComplete   RpcTag = 23
	RpcCastVote         RpcTag = 24
	RpcClearVote        RpcTag = 25
	RpcAddVote          RpcTag = 26
	RpcCloseDoorsOfType RpcTag = 27
	RpcRepairSystem     RpcTag = 28
	RpcSetTasks         RpcTag = 29
	RpcUpdateGameData   RpcTag = 30
	RpcBootFromVent     RpcTag = 31
)

// DisconnectReason enum values must remain bit-exact for client
// compatibility.
type DisconnectReason uint8

const (
	DisconnectExitGame         DisconnectReason = 0
	DisconnectGameFull         DisconnectReason = 1
	DisconnectGameStarted      DisconnectReason = 2
	DisconnectGameNotFound     DisconnectReason = 3
	DisconnectIncorrectVersion DisconnectReason = 5
	DisconnectBanned           DisconnectReason = 6
	DisconnectKicked           DisconnectReason = 7
	DisconnectCustom           DisconnectReason = 8
	DisconnectDestroy          DisconnectReason = 16
	DisconnectError            DisconnectReason = 17
	DisconnectServerRequest    DisconnectReason = 19
)

// SpawnMsg is `packedU32 spawnType . packedI32 ownerId . packedU32
// baseNetId . flags u8 . packedU32 compCount . Component+`.
// Component payloads are opaque []byte here; internal/object interprets
// them per prefab, and assigns consecutive net ids starting at
// BaseNetID to each entry in Components in order.
type SpawnMsg struct {
	SpawnType  uint32
	OwnerID    int32
	BaseNetID  uint32
	Flags      uint8
	Components [][]byte
}

func EncodeSpawn(s SpawnMsg) []byte {
	w := NewWriter(16)
	w.WritePackedU32(s.SpawnType)
	w.WritePackedI32(s.OwnerID)
	w.WritePackedU32(s.BaseNetID)
	w.WriteU8(s.Flags)
	w.WritePackedU32(uint32(len(s.Components)))
	for _, c := range s.Components {
		w.WriteU16(uint16(len(c)))
		w.WriteRaw(c)
	}
	return w.Bytes()
}

func DecodeSpawn(buf []byte) (SpawnMsg, error) {
	r := NewReader(buf)
	spawnType, err := r.ReadPackedU32()
	if err != nil {
		return SpawnMsg{}, err
	}
	ownerID, err := r.ReadPackedI32()
	if err != nil {
		return SpawnMsg{}, err
	}
	baseNetID, err := r.ReadPackedU32()
	if err != nil {
		return SpawnMsg{}, err
	}
	flags, err := r.ReadU8()
	if err != nil {
		return SpawnMsg{}, err
	}
	count, err := r.ReadPackedU32()
	if err != nil {
		return SpawnMsg{}, err
	}
	comps := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		cl, err := r.ReadU16()
		if err != nil {
			return SpawnMsg{}, err
		}
		data, err := r.ReadN(int(cl))
		if err != nil {
			return SpawnMsg{}, err
		}
		comps = append(comps, data)
	}
	return SpawnMsg{SpawnType: spawnType, OwnerID: ownerID, BaseNetID: baseNetID, Flags: flags, Components: comps}, nil
}
