package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"gamecore/internal/codec"
	"gamecore/internal/config"
	"gamecore/internal/errkind"
	"gamecore/internal/log"
)

// Handler receives events demultiplexed by the Transport. The worker is
// the only implementation; it resolves a Peer to a
// Connection and forwards payloads to the owning room's decoder.
type Handler interface {
	OnHello(p *Peer, hello HelloPayload) (clientID uint32, accept bool, reject DisconnectPayload)
	OnMessage(p *Peer, reliable bool, payload []byte)
	OnDisconnect(p *Peer, reason codec.DisconnectReason, text string)
	OnPeerLost(p *Peer, cause string)
}

// Transport owns the UDP socket and every peer's reliability state: the
// demultiplexing layer the worker owns, splitting inbound datagrams by
// (ip, port) before anything protocol-level happens.
type Transport struct {
	conn    net.PacketConn
	cfg     config.TransportConfig
	logger  log.Logger
	handler Handler

	mu    sync.Mutex
	peers map[string]*Peer

	closing chan struct{}
	closeWg sync.WaitGroup
}

// Listen opens a UDP socket at addr and returns a Transport bound to it.
func Listen(addr string, cfg config.TransportConfig, logger log.Logger, handler Handler) (*Transport, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errkind.Errorf(errkind.Fatal, "listen udp %s: %w", addr, err)
	}
	return &Transport{
		conn:    conn,
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		peers:   make(map[string]*Peer),
		closing: make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound socket address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Serve runs the read loop and the retransmit/keepalive scanner until ctx
// is cancelled or Close is called.
func (t *Transport) Serve(ctx context.Context) error {
	t.closeWg.Add(1)
	go func() {
		defer t.closeWg.Done()
		t.scanLoop(ctx)
	}()

	buf := make([]byte, 65507)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.closing:
			return nil
		default:
		}
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-t.closing:
				return nil
			default:
			}
			t.logger.Warnf("transport read error: %v", err)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		t.handleDatagram(addr, datagram)
	}
}

// Close closes the socket and waits for the scanner and any pending
// grace-period drops to finish. Peers in a disconnect grace period are
// dropped; other peers stay in the peer table.
func (t *Transport) Close() error {
	select {
	case <-t.closing:
	default:
		close(t.closing)
	}
	err := t.conn.Close()
	t.closeWg.Wait()
	return err
}

func (t *Transport) write(addr net.Addr, datagram []byte) {
	if _, err := t.conn.WriteTo(datagram, addr); err != nil {
		t.logger.Debugf("transport write to %v: %v", addr, err)
	}
}

func (t *Transport) peerFor(addr net.Addr) *Peer {
	key := addr.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[key]; ok {
		return p
	}
	p := newPeer(t, addr)
	t.peers[key] = p
	return p
}

func (t *Transport) lookupPeer(addr net.Addr) (*Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[addr.String()]
	return p, ok
}

func (t *Transport) dropPeer(p *Peer) {
	p.markClosed()
	t.mu.Lock()
	delete(t.peers, p.addr.String())
	t.mu.Unlock()
}

func (t *Transport) handleDatagram(addr net.Addr, datagram []byte) {
	kind, nonce, body, err := parsePacket(datagram)
	if err != nil {
		t.logger.Debugf("malformed datagram from %v: %v", addr, err)
		if p, ok := t.lookupPeer(addr); ok && !p.malformedLimit.Allow() {
			t.logger.Warnf("peer %v exceeded malformed/packet flood budget, disconnecting", addr)
			t.handler.OnPeerLost(p, "flood")
			t.dropPeer(p)
		}
		return
	}

	if kind == codec.PacketHello {
		t.handleHello(addr, body)
		return
	}

	p, ok := t.lookupPeer(addr)
	if !ok {
		// Anything but Hello from an unknown address is either a stale
		// retransmit after our own timeout or a malformed probe; drop it.
		return
	}
	p.touchHeard()

	if !p.malformedLimit.Allow() {
		t.logger.Warnf("peer %v exceeded malformed/packet flood budget, disconnecting", addr)
		t.handler.OnPeerLost(p, "flood")
		t.dropPeer(p)
		return
	}

	switch kind {
	case codec.PacketReliable:
		if p.dedup.SeenBefore(nonce) {
			p.sendAck([]uint16{nonce})
			return
		}
		p.sendAck([]uint16{nonce})
		t.handler.OnMessage(p, true, body)
	case codec.PacketUnreliable:
		t.handler.OnMessage(p, false, body)
	case codec.PacketAck:
		nonces, err := DecodeAck(body)
		if err != nil {
			t.logger.Debugf("malformed ack from %v: %v", addr, err)
			return
		}
		p.handleAck(nonces)
	case codec.PacketPing:
		// receipt alone refreshes lastHeardFrom, already done above.
	case codec.PacketDisconnect:
		d, err := DecodeDisconnect(body)
		if err != nil {
			t.logger.Debugf("malformed disconnect from %v: %v", addr, err)
			d = DisconnectPayload{Reason: codec.DisconnectError}
		}
		t.handler.OnDisconnect(p, d.Reason, d.Text)
		t.gracePeriodThenDrop(p)
	default:
		t.logger.Debugf("unknown packet kind %d from %v", kind, addr)
	}
}

func (t *Transport) handleHello(addr net.Addr, body []byte) {
	hello, err := DecodeHello(body)
	if err != nil {
		t.logger.Debugf("malformed hello from %v: %v", addr, err)
		return
	}
	p := t.peerFor(addr)
	p.touchHeard()
	clientID, accept, reject := t.handler.OnHello(p, hello)
	if !accept {
		t.write(addr, wrapPacket(codec.PacketDisconnect, 0, EncodeDisconnect(reject)))
		t.dropPeer(p)
		return
	}
	t.write(addr, wrapPacket(codec.PacketHello, 0, EncodeHelloAck(HelloAckPayload{
		ClientID:        clientID,
		ProtocolVersion: hello.ProtocolVersion,
	})))
}

// gracePeriodThenDrop keeps acking any already-in-flight reliable
// packets for 500ms after a Disconnect before releasing the peer.
func (t *Transport) gracePeriodThenDrop(p *Peer) {
	t.closeWg.Add(1)
	go func() {
		defer t.closeWg.Done()
		timer := time.NewTimer(500 * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-t.closing:
		}
		t.dropPeer(p)
	}()
}

func (t *Transport) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closing:
			return
		case <-ticker.C:
			t.scanOnce()
		}
	}
}

func (t *Transport) scanOnce() {
	now := time.Now()
	backoff := backoffConfig{
		initial:     t.cfg.InitialBackoff(),
		max:         t.cfg.MaxBackoff(),
		maxAttempts: t.cfg.MaxAttemptsOrDefault(),
	}
	pingInterval := t.cfg.PingInterval()
	peerTimeout := t.cfg.PeerTimeout()

	t.mu.Lock()
	peers := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	t.mu.Unlock()

	for _, p := range peers {
		if p.isClosed() {
			continue
		}
		due, timedOut := p.dueRetransmits(now, backoff)
		for _, datagram := range due {
			t.write(p.addr, datagram)
		}
		if timedOut {
			t.handler.OnPeerLost(p, "retransmit budget exhausted")
			t.dropPeer(p)
			continue
		}

		heard, sent := p.idleSince()
		if now.Sub(heard) > peerTimeout {
			t.handler.OnPeerLost(p, "idle timeout")
			t.dropPeer(p)
			continue
		}
		if now.Sub(sent) > pingInterval {
			p.sendPing()
		}
	}
}
