package object

import (
	"time"

	"gamecore/internal/codec"
)

// Unknown stores an opaque payload verbatim for spawn types the worker's
// prefab registry does not recognize, forwarding serialization
// unchanged so unrecognized objects survive a relay round trip.
type Unknown struct {
	base
	SpawnType uint32
	payload   []byte
}

func newUnknown(spawnType uint32) func(netID uint32, ownerID int32, flags uint8) Component {
	return func(netID uint32, ownerID int32, flags uint8) Component {
		return &Unknown{base: base{netID: netID, ownerID: ownerID, kind: KindUnknown, flags: flags}, SpawnType: spawnType}
	}
}

func (c *Unknown) Awake()                       {}
func (c *Unknown) FixedUpdate(dt time.Duration) {}
func (c *Unknown) PreSerialize()                {}

func (c *Unknown) Serialize(w *codec.Writer, spawn bool) bool {
	if !spawn && !c.Dirty() {
		return false
	}
	w.WriteRaw(c.payload)
	c.clearDirty()
	return len(c.payload) > 0 || spawn
}

func (c *Unknown) Deserialize(r *codec.Reader) error {
	c.payload = append([]byte(nil), r.Rest()...)
	return nil
}

// HandleRpc accepts and ignores every RPC tag; an Unknown component has
// no semantics of its own to enforce.
func (c *Unknown) HandleRpc(rpc codec.RpcMsg) error {
	return nil
}

// SetPayload overwrites the opaque byte blob this component forwards on
// every future serialize, used when applying inbound Data messages that
// target an Unknown net id.
func (c *Unknown) SetPayload(b []byte) {
	c.payload = append([]byte(nil), b...)
	c.markDirty(1)
}
