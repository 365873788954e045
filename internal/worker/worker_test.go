package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/config"
	"gamecore/internal/log"
	"gamecore/internal/metricsapi"
	"gamecore/internal/transport"
)

func startWorker(t *testing.T) (*Worker, net.Addr) {
	t.Helper()
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	w := New(cfg, log.NewNop(), nil, metricsapi.Nop{})
	if err := w.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go w.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	return w, w.transport.LocalAddr()
}

// readPacket pulls datagrams until one of the wanted kinds arrives,
// acking nothing (tests are short enough that retransmits are harmless).
func readPacket(t *testing.T, conn net.Conn, want ...codec.PacketKind) (codec.PacketKind, []byte) {
	t.Helper()
	buf := make([]byte, 65507)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		kind := codec.PacketKind(buf[0])
		body := append([]byte(nil), buf[1:n]...)
		if kind == codec.PacketReliable && len(body) >= 2 {
			body = body[2:] // strip the nonce
		}
		for _, k := range want {
			if kind == k {
				return kind, body
			}
		}
	}
	t.Fatalf("no packet of kinds %v within deadline", want)
	return 0, nil
}

func hello(t *testing.T, conn net.Conn) uint32 {
	t.Helper()
	h := transport.EncodeHello(transport.HelloPayload{Username: "tester"})
	packet := append([]byte{byte(codec.PacketHello)}, h...)
	if _, err := conn.Write(packet); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_, body := readPacket(t, conn, codec.PacketHello)
	ack, err := transport.DecodeHelloAck(body)
	if err != nil {
		t.Fatalf("decode hello ack: %v", err)
	}
	return ack.ClientID
}

func sendReliableRoot(t *testing.T, conn net.Conn, nonce uint16, tag codec.RootMsgTag, payload []byte) {
	t.Helper()
	w := codec.NewWriter(8 + len(payload))
	w.WriteU8(uint8(codec.PacketReliable))
	w.WriteU16BE(nonce)
	codec.EncodeRootMsg(w, tag, payload)
	if _, err := conn.Write(w.Bytes()); err != nil {
		t.Fatalf("write reliable: %v", err)
	}
}

func TestHelloAssignsClientID(t *testing.T) {
	_, addr := startWorker(t)
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	id := hello(t, conn)
	if id == 0 {
		t.Error("client id 0 assigned; 0 is the server sentinel")
	}
}

func TestHostGameCreatesRoom(t *testing.T) {
	w, addr := startWorker(t)
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	hello(t, conn)

	sendReliableRoot(t, conn, 0, codec.RootMsgHostGame,
		codec.EncodeHostGame(codec.HostGamePayload{Settings: codec.GameSettings{MaxPlayers: 10}}))

	var code int32
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, body := readPacket(t, conn, codec.PacketReliable)
		msgs, err := codec.DecodeRootMsgs(body)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Tag == codec.RootMsgHostGame {
				code, err = codec.DecodeHostGameReply(m.Payload)
				if err != nil {
					t.Fatalf("decode HostGame reply: %v", err)
				}
			}
		}
		if code != 0 {
			break
		}
	}
	if code == 0 {
		t.Fatal("no HostGame reply received")
	}
	if _, ok := w.GetRoom(code); !ok {
		t.Errorf("room %d not registered", code)
	}
}

func TestJoinUnknownRoomRejected(t *testing.T) {
	_, addr := startWorker(t)
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	hello(t, conn)

	bogus, _ := codec.Code2Int("ZZZZZZ")
	sendReliableRoot(t, conn, 0, codec.RootMsgJoinGame,
		codec.EncodeJoinGame(codec.JoinGamePayload{Code: bogus}))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, body := readPacket(t, conn, codec.PacketReliable)
		msgs, err := codec.DecodeRootMsgs(body)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Tag == codec.RootMsgRemoveGame {
				p, err := codec.DecodeRemoveGame(m.Payload)
				if err != nil {
					t.Fatalf("decode RemoveGame: %v", err)
				}
				if p.Reason != codec.DisconnectGameNotFound {
					t.Errorf("reject reason = %v, want GameNotFound", p.Reason)
				}
				return
			}
		}
	}
	t.Fatal("no RemoveGame reply for unknown room")
}

func TestCodeAllocatorAvoidsCollisions(t *testing.T) {
	cfg := config.Default()
	w := New(cfg, log.NewNop(), nil, metricsapi.Nop{})
	seen := map[int32]bool{}
	w.mu.Lock()
	for i := 0; i < 100; i++ {
		code := w.allocCodeLocked()
		if seen[code] {
			// Random collisions are possible but the allocator must not
			// hand out a code already in the registry.
			if _, taken := w.rooms[code]; taken {
				t.Fatalf("allocated registered code %d", code)
			}
		}
		seen[code] = true
	}
	w.mu.Unlock()
}
