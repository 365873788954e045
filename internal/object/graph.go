package object

import (
	"sort"

	"gamecore/internal/codec"
	"gamecore/internal/errkind"
)

// UnknownPolicy decides what happens when a spawn names a type missing
// from the prefab registry (the `advanced.unknownObjects` room option).
type UnknownPolicy struct {
	// Mode is "reject", "materialize_all" or "materialize_list".
	Mode string
	List map[uint32]bool
}

// Allows reports whether spawnType may be materialized as Unknown.
func (p UnknownPolicy) Allows(spawnType uint32) bool {
	switch p.Mode {
	case "materialize_all":
		return true
	case "materialize_list":
		return p.List[spawnType]
	default:
		return false
	}
}

// Object groups the components materialized together by one spawn, in
// prefab order, so the whole group can be re-serialized as one SpawnMsg.
type Object struct {
	SpawnType  uint32
	OwnerID    int32
	Flags      uint8
	Components []Component
}

// BaseNetID is the net id of the object's first component; the rest are
// consecutive.
func (o *Object) BaseNetID() uint32 {
	return o.Components[0].NetID()
}

// Graph is the per-room registry of networked components, indexed by
// netId, with objects grouped by base net id. There is no per-owner
// index: owner lookups (FindKind, DespawnOwned) scan the graph. All
// access happens on the owning room's dispatch context, so there is no
// lock here.
type Graph struct {
	prefabs *codec.Registry[uint32, Prefab]
	unknown UnknownPolicy

	byNetID map[uint32]Component
	objects map[uint32]*Object // keyed by base net id
	// nextNetID is the monotonic allocator; remote spawns may only push
	// it forward.
	nextNetID uint32
}

// NewGraph builds an empty graph over a (typically cloned) prefab
// registry.
func NewGraph(prefabs *codec.Registry[uint32, Prefab], unknown UnknownPolicy) *Graph {
	return &Graph{
		prefabs:   prefabs,
		unknown:   unknown,
		byNetID:   make(map[uint32]Component),
		objects:   make(map[uint32]*Object),
		nextNetID: 1,
	}
}

func (g *Graph) allocNetID() uint32 {
	id := g.nextNetID
	g.nextNetID++
	return id
}

// observeNetID folds a remotely assigned net id into the allocator so a
// later local spawn can never collide with it.
func (g *Graph) observeNetID(id uint32) {
	if id >= g.nextNetID {
		g.nextNetID = id + 1
	}
}

// NextNetID exposes the allocator's current position for diagnostics.
func (g *Graph) NextNetID() uint32 { return g.nextNetID }

// Spawn materializes a fresh object of spawnType with locally allocated
// net ids, runs each component's Awake hook, and indexes everything.
func (g *Graph) Spawn(spawnType uint32, ownerID int32, flags uint8) (*Object, error) {
	prefab, ok := g.prefabs.Lookup(spawnType)
	if !ok {
		if !g.unknown.Allows(spawnType) {
			return nil, errkind.Errorf(errkind.NotFound, "unknown spawn type %d", spawnType)
		}
		prefab = Prefab{SpawnType: spawnType, Components: []ComponentFactory{newUnknown(spawnType)}}
	}
	obj := &Object{SpawnType: spawnType, OwnerID: ownerID, Flags: flags}
	for _, factory := range prefab.Components {
		c := factory(g.allocNetID(), ownerID, flags)
		c.Awake()
		g.byNetID[c.NetID()] = c
		obj.Components = append(obj.Components, c)
	}
	g.objects[obj.BaseNetID()] = obj
	return obj, nil
}

// ApplySpawn materializes an object described by a remote SpawnMsg,
// assigning consecutive net ids from the message's base id and feeding
// each component its spawn-time payload.
func (g *Graph) ApplySpawn(msg codec.SpawnMsg) (*Object, error) {
	prefab, ok := g.prefabs.Lookup(msg.SpawnType)
	if !ok {
		if !g.unknown.Allows(msg.SpawnType) {
			return nil, errkind.Errorf(errkind.NotFound, "unknown spawn type %d", msg.SpawnType)
		}
		factories := make([]ComponentFactory, len(msg.Components))
		for i := range factories {
			factories[i] = newUnknown(msg.SpawnType)
		}
		prefab = Prefab{SpawnType: msg.SpawnType, Components: factories}
	}
	if len(msg.Components) != len(prefab.Components) {
		return nil, errkind.Errorf(errkind.Malformed, "spawn type %d carries %d components, prefab has %d",
			msg.SpawnType, len(msg.Components), len(prefab.Components))
	}
	obj := &Object{SpawnType: msg.SpawnType, OwnerID: msg.OwnerID, Flags: msg.Flags}
	for i, factory := range prefab.Components {
		netID := msg.BaseNetID + uint32(i)
		if _, taken := g.byNetID[netID]; taken {
			return nil, errkind.Errorf(errkind.Malformed, "spawn net id %d already in use", netID)
		}
		c := factory(netID, msg.OwnerID, msg.Flags)
		if err := c.Deserialize(codec.NewReader(msg.Components[i])); err != nil {
			return nil, err
		}
		c.Awake()
		g.observeNetID(netID)
		g.byNetID[netID] = c
		obj.Components = append(obj.Components, c)
	}
	g.objects[obj.BaseNetID()] = obj
	return obj, nil
}

// EncodeObject re-serializes an object's spawn-time state as the SpawnMsg
// a recipient would need to reconstruct it.
func (g *Graph) EncodeObject(obj *Object) codec.SpawnMsg {
	msg := codec.SpawnMsg{
		SpawnType: obj.SpawnType,
		OwnerID:   obj.OwnerID,
		BaseNetID: obj.BaseNetID(),
		Flags:     obj.Flags,
	}
	for _, c := range obj.Components {
		w := codec.NewWriter(32)
		c.Serialize(w, true)
		msg.Components = append(msg.Components, w.Bytes())
	}
	return msg
}

// Lookup resolves a net id to its component.
func (g *Graph) Lookup(netID uint32) (Component, bool) {
	c, ok := g.byNetID[netID]
	return c, ok
}

// ObjectOf returns the spawn group containing netID, if any.
func (g *Graph) ObjectOf(netID uint32) (*Object, bool) {
	for _, obj := range g.objects {
		for _, c := range obj.Components {
			if c.NetID() == netID {
				return obj, true
			}
		}
	}
	return nil, false
}

// Despawn removes the single component with netID from every index.
func (g *Graph) Despawn(netID uint32) error {
	c, ok := g.byNetID[netID]
	if !ok {
		return errkind.Errorf(errkind.NotFound, "despawn: no component with net id %d", netID)
	}
	delete(g.byNetID, netID)
	for base, obj := range g.objects {
		for i, oc := range obj.Components {
			if oc != c {
				continue
			}
			obj.Components = append(obj.Components[:i], obj.Components[i+1:]...)
			if len(obj.Components) == 0 {
				delete(g.objects, base)
			}
			return nil
		}
	}
	return nil
}

// DespawnOwned removes every component owned by ownerID and returns
// their net ids in ascending order (oldest spawn first), so the room can broadcast Despawn
// messages for each.
func (g *Graph) DespawnOwned(ownerID int32) []uint32 {
	var removed []uint32
	for base, obj := range g.objects {
		if obj.OwnerID != ownerID {
			continue
		}
		for _, c := range obj.Components {
			delete(g.byNetID, c.NetID())
			removed = append(removed, c.NetID())
		}
		delete(g.objects, base)
	}
	// Net ids are allocated monotonically, so ascending order is spawn order.
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// FindKind returns the first component of kind owned by ownerID, for
// call sites that need "this player's PlayerControl".
func (g *Graph) FindKind(ownerID int32, kind Kind) (Component, bool) {
	for _, c := range g.byNetID {
		if c.OwnerID() == ownerID && c.Kind() == kind {
			return c, true
		}
	}
	return nil, false
}

// HasKind reports whether any component of kind exists, regardless of
// owner (used for the SaaH lobby/GameData singletons).
func (g *Graph) HasKind(kind Kind) bool {
	for _, c := range g.byNetID {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

// ForEach visits every live component in unspecified order.
func (g *Graph) ForEach(fn func(Component)) {
	for _, c := range g.byNetID {
		fn(c)
	}
}

// ForEachDirty visits every component whose dirty mask is non-zero.
func (g *Graph) ForEachDirty(fn func(Component)) {
	for _, c := range g.byNetID {
		if c.Dirty() {
			fn(c)
		}
	}
}

// DeserializeInto feeds an inbound Data payload to the component with
// netID.
func (g *Graph) DeserializeInto(netID uint32, payload []byte) error {
	c, ok := g.byNetID[netID]
	if !ok {
		return errkind.Errorf(errkind.NotFound, "data for unknown net id %d", netID)
	}
	return c.Deserialize(codec.NewReader(payload))
}

// Len reports how many components are live.
func (g *Graph) Len() int { return len(g.byNetID) }

// Objects visits every spawn group in unspecified order.
func (g *Graph) Objects(fn func(*Object)) {
	for _, obj := range g.objects {
		fn(obj)
	}
}

// Reset drops every live component while keeping the net-id allocator
// where it is, so ids from the previous game are never reissued.
func (g *Graph) Reset() {
	g.byNetID = make(map[uint32]Component)
	g.objects = make(map[uint32]*Object)
}
