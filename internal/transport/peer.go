package transport

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gamecore/internal/codec"
	"gamecore/internal/log"
)

// pendingPacket is an in-flight reliable send awaiting an ack.
type pendingPacket struct {
	bytes       []byte
	firstSentAt time.Time
	lastSentAt  time.Time
	attempts    int
}

// Peer is the per-remote-address reliability state the transport keeps.
// It has no knowledge of rooms or game
// protocol; internal/session.Connection wraps a Peer with identity.
type Peer struct {
	addr net.Addr
	t    *Transport

	mu             sync.Mutex
	nextNonce      uint16
	unacked        map[uint16]*pendingPacket
	dedup          *dedupWindow
	lastHeardFrom  time.Time
	lastSentTo     time.Time
	rttEstimate    time.Duration
	closed         bool
	malformedLimit *rate.Limiter

	logger log.Logger
}

func newPeer(t *Transport, addr net.Addr) *Peer {
	now := time.Now()
	return &Peer{
		addr:           addr,
		t:              t,
		unacked:        make(map[uint16]*pendingPacket),
		dedup:          newDedupWindow(t.cfg.DedupWindow()),
		lastHeardFrom:  now,
		lastSentTo:     now,
		rttEstimate:    100 * time.Millisecond,
		malformedLimit: rate.NewLimiter(rate.Every(time.Second), 10),
		logger:         t.logger.With("peer", addr.String()),
	}
}

// Addr returns the peer's remote (ip, port).
func (p *Peer) Addr() net.Addr { return p.addr }

// RTT returns the current EWMA round-trip estimate.
func (p *Peer) RTT() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rttEstimate
}

// SendReliable enqueues a reliable send and returns immediately; delivery
// confirmation arrives asynchronously as an ack processed on the
// transport's read loop, and loss-after-exhaustion surfaces through the
// transport's OnPeerLost callback rather than a blocking future, since
// tick work must never suspend on it.
func (p *Peer) SendReliable(body []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	nonce := p.nextNonce
	p.nextNonce++ // wraps at 2^16; delivery order survives the wrap
	datagram := wrapPacket(codec.PacketReliable, nonce, body)
	p.unacked[nonce] = &pendingPacket{
		bytes:       datagram,
		firstSentAt: time.Now(),
		lastSentAt:  time.Now(),
		attempts:    1,
	}
	p.lastSentTo = time.Now()
	p.mu.Unlock()

	p.t.write(p.addr, datagram)
}

// SendUnreliable fires and forgets body with no nonce, no ack, no retry.
func (p *Peer) SendUnreliable(body []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.lastSentTo = time.Now()
	p.mu.Unlock()
	p.t.write(p.addr, wrapPacket(codec.PacketUnreliable, 0, body))
}

func (p *Peer) sendAck(nonces []uint16) {
	p.t.write(p.addr, wrapPacket(codec.PacketAck, 0, EncodeAck(nonces)))
}

func (p *Peer) sendPing() {
	p.mu.Lock()
	p.lastSentTo = time.Now()
	p.mu.Unlock()
	p.t.write(p.addr, wrapPacket(codec.PacketPing, 0, nil))
}

// touchHeard records inbound traffic for the idle/timeout clock.
func (p *Peer) touchHeard() {
	p.mu.Lock()
	p.lastHeardFrom = time.Now()
	p.mu.Unlock()
}

// handleAck marks every nonce in nonces delivered and folds its latency
// sample into the RTT EWMA (rtt = 0.875*rtt + 0.125*sample).
func (p *Peer) handleAck(nonces []uint16) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nonces {
		pending, ok := p.unacked[n]
		if !ok {
			continue
		}
		sample := now.Sub(pending.firstSentAt)
		p.rttEstimate = time.Duration(0.875*float64(p.rttEstimate) + 0.125*float64(sample))
		delete(p.unacked, n)
	}
}

// markClosed flags the peer dead; further sends are dropped.
func (p *Peer) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Peer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// dueRetransmits returns the set of pending packets due for another
// attempt under the exponential backoff schedule, and whether the peer's
// retransmit budget is exhausted.
func (p *Peer) dueRetransmits(now time.Time, cfg backoffConfig) (due [][]byte, timedOut bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pkt := range p.unacked {
		backoff := cfg.initial << uint(pkt.attempts-1)
		if backoff > cfg.max {
			backoff = cfg.max
		}
		if now.Sub(pkt.lastSentAt) < backoff {
			continue
		}
		if pkt.attempts >= cfg.maxAttempts {
			timedOut = true
			continue
		}
		pkt.attempts++
		pkt.lastSentAt = now
		due = append(due, pkt.bytes)
	}
	return due, timedOut
}

func (p *Peer) idleSince() (heard, sent time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHeardFrom, p.lastSentTo
}

type backoffConfig struct {
	initial     time.Duration
	max         time.Duration
	maxAttempts int
}
