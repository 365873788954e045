package transport

import (
	"testing"
	"time"
)

func newTestPeerForUnitTests() *Peer {
	return &Peer{
		unacked:        make(map[uint16]*pendingPacket),
		dedup:          newDedupWindow(8),
		rttEstimate:    100 * time.Millisecond,
		malformedLimit: nil,
	}
}

func TestDedupWindowSuppressesRepeat(t *testing.T) {
	d := newDedupWindow(4)
	if d.SeenBefore(1) {
		t.Fatal("first sighting of nonce 1 should not be seen-before")
	}
	if !d.SeenBefore(1) {
		t.Fatal("repeat of nonce 1 should be seen-before")
	}
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	d := newDedupWindow(2)
	d.SeenBefore(1)
	d.SeenBefore(2)
	d.SeenBefore(3) // evicts 1
	if !d.SeenBefore(2) {
		t.Fatal("nonce 2 should still be within the window")
	}
	if d.SeenBefore(1) {
		t.Fatal("nonce 1 should have been evicted and reappear as new")
	}
}

func TestHandleAckUpdatesRTTAndClearsUnacked(t *testing.T) {
	p := newTestPeerForUnitTests()
	sentAt := time.Now().Add(-50 * time.Millisecond)
	p.unacked[1] = &pendingPacket{bytes: []byte{1}, firstSentAt: sentAt, lastSentAt: sentAt, attempts: 1}

	before := p.rttEstimate
	p.handleAck([]uint16{1})

	if _, ok := p.unacked[1]; ok {
		t.Fatal("acked nonce should be removed from unacked")
	}
	if p.rttEstimate == before {
		t.Fatal("RTT estimate should move after an ack sample")
	}
}

func TestHandleAckIgnoresUnknownNonce(t *testing.T) {
	p := newTestPeerForUnitTests()
	p.handleAck([]uint16{99}) // must not panic on a nonce never sent
}

func TestDueRetransmitsHonorsBackoff(t *testing.T) {
	p := newTestPeerForUnitTests()
	now := time.Now()
	p.unacked[1] = &pendingPacket{bytes: []byte{1}, firstSentAt: now, lastSentAt: now, attempts: 1}

	cfg := backoffConfig{initial: 100 * time.Millisecond, max: time.Second, maxAttempts: 5}

	due, timedOut := p.dueRetransmits(now, cfg)
	if len(due) != 0 || timedOut {
		t.Fatalf("packet just sent should not be due yet, got due=%d timedOut=%v", len(due), timedOut)
	}

	later := now.Add(150 * time.Millisecond)
	due, timedOut = p.dueRetransmits(later, cfg)
	if len(due) != 1 || timedOut {
		t.Fatalf("packet past backoff should be due exactly once, got due=%d timedOut=%v", len(due), timedOut)
	}
	if p.unacked[1].attempts != 2 {
		t.Fatalf("attempts should increment to 2, got %d", p.unacked[1].attempts)
	}
}

func TestDueRetransmitsReportsTimeoutAtMaxAttempts(t *testing.T) {
	p := newTestPeerForUnitTests()
	now := time.Now()
	p.unacked[1] = &pendingPacket{bytes: []byte{1}, firstSentAt: now, lastSentAt: now, attempts: 5}

	cfg := backoffConfig{initial: time.Millisecond, max: time.Second, maxAttempts: 5}
	due, timedOut := p.dueRetransmits(now.Add(time.Second), cfg)
	if len(due) != 0 || !timedOut {
		t.Fatalf("exhausted attempts should report timeout with no further sends, got due=%d timedOut=%v", len(due), timedOut)
	}
}

// TestNonceWrapsAt16Bits covers boundary B1: nonce allocation must wrap
// around uint16 rather than overflow into a wider type.
func TestNonceWrapsAt16Bits(t *testing.T) {
	p := newTestPeerForUnitTests()
	p.nextNonce = 65535
	first := p.nextNonce
	p.nextNonce++
	second := p.nextNonce
	if first != 65535 || second != 0 {
		t.Fatalf("expected wrap 65535->0, got %d->%d", first, second)
	}
}
