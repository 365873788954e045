package transport

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gamecore/internal/codec"
)

func TestHelloRoundTrip(t *testing.T) {
	h := HelloPayload{ProtocolVersion: 6, Username: "yeoji", Language: 2, Platform: 1}
	got, err := DecodeHello(EncodeHello(h))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("hello round trip (-want +got):\n%s", diff)
	}
}

func TestDisconnectRoundTrip(t *testing.T) {
	d := DisconnectPayload{Reason: codec.DisconnectKicked, Text: "afk"}
	got, err := DecodeDisconnect(EncodeDisconnect(d))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("disconnect round trip (-want +got):\n%s", diff)
	}
}

func TestAckRoundTrip(t *testing.T) {
	nonces := []uint16{0, 1, 65535, 1000}
	got, err := DecodeAck(EncodeAck(nonces))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(nonces, got); diff != "" {
		t.Errorf("ack round trip (-want +got):\n%s", diff)
	}
}

func TestAckRejectsOversizedCount(t *testing.T) {
	w := codec.NewWriter(4)
	w.WritePackedU32(5000)
	if _, err := DecodeAck(w.Bytes()); err == nil {
		t.Fatal("expected malformed error for oversized ack count")
	}
}

func TestWrapParsePacketReliable(t *testing.T) {
	body := []byte{1, 2, 3, 4}
	datagram := wrapPacket(codec.PacketReliable, 42, body)
	kind, nonce, got, err := parsePacket(datagram)
	if err != nil {
		t.Fatal(err)
	}
	if kind != codec.PacketReliable || nonce != 42 {
		t.Fatalf("got kind=%d nonce=%d, want Reliable/42", kind, nonce)
	}
	if diff := cmp.Diff(body, got); diff != "" {
		t.Errorf("body round trip (-want +got):\n%s", diff)
	}
}

func TestWrapParsePacketUnreliable(t *testing.T) {
	body := []byte{9, 9}
	datagram := wrapPacket(codec.PacketUnreliable, 0, body)
	kind, _, got, err := parsePacket(datagram)
	if err != nil {
		t.Fatal(err)
	}
	if kind != codec.PacketUnreliable {
		t.Fatalf("got kind=%d, want Unreliable", kind)
	}
	if diff := cmp.Diff(body, got); diff != "" {
		t.Errorf("body round trip (-want +got):\n%s", diff)
	}
}

func TestParsePacketRejectsEmpty(t *testing.T) {
	if _, _, _, err := parsePacket(nil); err == nil {
		t.Fatal("expected malformed error on empty datagram")
	}
}
