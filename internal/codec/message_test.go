package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRootMsgRoundTrip(t *testing.T) {
	w := NewWriter(32)
	EncodeRootMsg(w, RootMsgJoinGame, []byte{1, 2, 3})
	EncodeRootMsg(w, RootMsgAlterGame, []byte{9})

	msgs, err := DecodeRootMsgs(w.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := []RootMsg{
		{Tag: RootMsgJoinGame, Payload: []byte{1, 2, 3}},
		{Tag: RootMsgAlterGame, Payload: []byte{9}},
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("root msg round trip (-want +got):\n%s", diff)
	}
}

func TestGameDataRoundTrip(t *testing.T) {
	gd := GameData{
		Code: 0x20202020,
		Messages: []GameDataMsg{
			{Tag: GameMsgRPC, Payload: []byte{1, 2}},
			{Tag: GameMsgSpawn, Payload: []byte{3, 4, 5}},
		},
	}
	got, err := DecodeGameData(EncodeGameData(gd))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(gd, got); diff != "" {
		t.Errorf("game data round trip (-want +got):\n%s", diff)
	}
}

func TestGameDataToRoundTrip(t *testing.T) {
	gdt := GameDataTo{
		Code:   1234,
		Target: 42,
		Messages: []GameDataMsg{
			{Tag: GameMsgSceneChange, Payload: []byte("OnlineGame")},
		},
	}
	got, err := DecodeGameDataTo(EncodeGameDataTo(gdt))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(gdt, got); diff != "" {
		t.Errorf("game data to round trip (-want +got):\n%s", diff)
	}
}

func TestRpcRoundTrip(t *testing.T) {
	m := RpcMsg{NetID: 7, Tag: RpcCastVote, Payload: []byte{255}}
	got, err := DecodeRpc(EncodeRpc(m))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("rpc round trip (-want +got):\n%s", diff)
	}
}

func TestSpawnRoundTrip(t *testing.T) {
	s := SpawnMsg{
		SpawnType: 0,
		OwnerID:   -2,
		BaseNetID: 7,
		Flags:     1,
		Components: [][]byte{
			{1, 2, 3},
			{},
			{9},
		},
	}
	got, err := DecodeSpawn(EncodeSpawn(s))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("spawn round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeRootMsgsMalformedTrailer(t *testing.T) {
	w := NewWriter(8)
	EncodeRootMsg(w, RootMsgJoinGame, []byte{1})
	buf := w.Bytes()
	if _, err := DecodeRootMsgs(buf[:len(buf)-1]); err == nil {
		t.Fatal("expected malformed error on truncated frame")
	}
}
