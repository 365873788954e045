// Package transport is the reliable-framing-over-datagrams layer: a UDP
// socket multiplexer with a per-peer reliability channel (nonces, acks,
// retransmission, duplicate suppression, keepalive/disconnect timers).
package transport

import (
	"gamecore/internal/codec"
	"gamecore/internal/errkind"
)

// HelloPayload is the client->server Hello body: protocol version,
// identity and locale.
type HelloPayload struct {
	ProtocolVersion uint8
	Username        string
	Language        uint8
	Platform        uint8
}

func EncodeHello(h HelloPayload) []byte {
	w := codec.NewWriter(24)
	w.WriteU8(h.ProtocolVersion)
	w.WriteString(h.Username)
	w.WriteU8(h.Language)
	w.WriteU8(h.Platform)
	return w.Bytes()
}

func DecodeHello(buf []byte) (HelloPayload, error) {
	r := codec.NewReader(buf)
	var h HelloPayload
	var err error
	if h.ProtocolVersion, err = r.ReadU8(); err != nil {
		return h, err
	}
	if h.Username, err = r.ReadString(); err != nil {
		return h, err
	}
	if h.Language, err = r.ReadU8(); err != nil {
		return h, err
	}
	if h.Platform, err = r.ReadU8(); err != nil {
		return h, err
	}
	return h, nil
}

// HelloAckPayload is the server's reply, assigning the connection's
// process-unique clientId.
type HelloAckPayload struct {
	ClientID        uint32
	ProtocolVersion uint8
}

func EncodeHelloAck(h HelloAckPayload) []byte {
	w := codec.NewWriter(8)
	w.WritePackedU32(h.ClientID)
	w.WriteU8(h.ProtocolVersion)
	return w.Bytes()
}

func DecodeHelloAck(buf []byte) (HelloAckPayload, error) {
	r := codec.NewReader(buf)
	var h HelloAckPayload
	var err error
	if h.ClientID, err = r.ReadPackedU32(); err != nil {
		return h, err
	}
	if h.ProtocolVersion, err = r.ReadU8(); err != nil {
		return h, err
	}
	return h, nil
}

// DisconnectPayload carries a reason and optional free text.
type DisconnectPayload struct {
	Reason codec.DisconnectReason
	Text   string
}

func EncodeDisconnect(d DisconnectPayload) []byte {
	w := codec.NewWriter(16)
	w.WriteU8(uint8(d.Reason))
	w.WriteString(d.Text)
	return w.Bytes()
}

func DecodeDisconnect(buf []byte) (DisconnectPayload, error) {
	r := codec.NewReader(buf)
	var d DisconnectPayload
	reason, err := r.ReadU8()
	if err != nil {
		return d, err
	}
	d.Reason = codec.DisconnectReason(reason)
	if d.Text, err = r.ReadString(); err != nil {
		return d, err
	}
	return d, nil
}

// EncodeAck writes an Ack body: a packed count followed by each acked
// nonce as a big-endian u16 (matching the reliable packet's own nonce
// encoding).
func EncodeAck(nonces []uint16) []byte {
	w := codec.NewWriter(2 + 2*len(nonces))
	w.WritePackedU32(uint32(len(nonces)))
	for _, n := range nonces {
		w.WriteU16BE(n)
	}
	return w.Bytes()
}

func DecodeAck(buf []byte) ([]uint16, error) {
	r := codec.NewReader(buf)
	count, err := r.ReadPackedU32()
	if err != nil {
		return nil, err
	}
	if count > 4096 {
		return nil, errkind.Errorf(errkind.Malformed, "ack nonce count %d too large", count)
	}
	out := make([]uint16, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := r.ReadU16BE()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// wrapPacket prepends the PacketKind byte in front of an already-encoded
// body (and, for reliable packets, the nonce).
func wrapPacket(kind codec.PacketKind, nonce uint16, body []byte) []byte {
	w := codec.NewWriter(3 + len(body))
	w.WriteU8(uint8(kind))
	if kind == codec.PacketReliable {
		w.WriteU16BE(nonce)
	}
	w.WriteRaw(body)
	return w.Bytes()
}

// parsePacket splits an inbound datagram into its kind, (if reliable) its
// nonce, and the remaining body.
func parsePacket(datagram []byte) (kind codec.PacketKind, nonce uint16, body []byte, err error) {
	r := codec.NewReader(datagram)
	b, err := r.ReadU8()
	if err != nil {
		return 0, 0, nil, err
	}
	kind = codec.PacketKind(b)
	if kind == codec.PacketReliable {
		nonce, err = r.ReadU16BE()
		if err != nil {
			return 0, 0, nil, err
		}
	}
	return kind, nonce, r.Rest(), nil
}
