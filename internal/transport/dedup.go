package transport

// dedupWindow is a bounded sliding set of recently seen reliable nonces,
// used to ack-but-not-deliver a reliable packet the peer already
// retransmitted past our first ack.
type dedupWindow struct {
	seen  map[uint16]struct{}
	order []uint16
	limit int
}

func newDedupWindow(limit int) *dedupWindow {
	if limit <= 0 {
		limit = 256
	}
	return &dedupWindow{seen: make(map[uint16]struct{}, limit), limit: limit}
}

// SeenBefore reports whether nonce was already recorded, and records it
// if not, evicting the oldest entry once the window is full.
func (d *dedupWindow) SeenBefore(nonce uint16) bool {
	if _, ok := d.seen[nonce]; ok {
		return true
	}
	d.seen[nonce] = struct{}{}
	d.order = append(d.order, nonce)
	if len(d.order) > d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}
