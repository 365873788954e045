package object

import "gamecore/internal/codec"

// ComponentFactory builds one fresh component of a known kind for a
// newly spawned object.
type ComponentFactory func(netID uint32, ownerID int32, flags uint8) Component

// Prefab is an ordered template of the component subtypes that together
// make up one spawn type.
type Prefab struct {
	SpawnType  uint32
	Components []ComponentFactory
}

// Spawn type identifiers. Values are process-local conventions, not a
// wire compatibility surface the way DisconnectReason is.
const (
	SpawnTypePlayer         uint32 = 0
	SpawnTypeMeetingHud     uint32 = 1
	SpawnTypeLobbyBehaviour uint32 = 2
	SpawnTypeGameData       uint32 = 3
	SpawnTypeVoteBanSystem  uint32 = 4

	// Map-specific ShipStatus variants, one spawn type per map id.
	SpawnTypeShipStatusTheSkeld   uint32 = 10
	SpawnTypeShipStatusMiraHQ     uint32 = 11
	SpawnTypeShipStatusPolus      uint32 = 12
	SpawnTypeShipStatusAirship    uint32 = 13
)

// DefaultPrefabs returns the worker-wide prefab registry; each room
// clones it so per-room extensions never leak between rooms.
func DefaultPrefabs() *codec.Registry[uint32, Prefab] {
	reg := codec.NewRegistry[uint32, Prefab]()
	reg.Register(SpawnTypePlayer, Prefab{
		SpawnType:  SpawnTypePlayer,
		Components: []ComponentFactory{newPlayerControl, newPlayerPhysics, newCustomNetworkTransform},
	})
	reg.Register(SpawnTypeMeetingHud, Prefab{SpawnType: SpawnTypeMeetingHud, Components: []ComponentFactory{newMeetingHud}})
	reg.Register(SpawnTypeLobbyBehaviour, Prefab{SpawnType: SpawnTypeLobbyBehaviour, Components: []ComponentFactory{newLobbyBehaviour}})
	reg.Register(SpawnTypeGameData, Prefab{SpawnType: SpawnTypeGameData, Components: []ComponentFactory{newGameData}})
	reg.Register(SpawnTypeVoteBanSystem, Prefab{SpawnType: SpawnTypeVoteBanSystem, Components: []ComponentFactory{newVoteBanSystem}})
	for _, st := range []uint32{
		SpawnTypeShipStatusTheSkeld,
		SpawnTypeShipStatusMiraHQ,
		SpawnTypeShipStatusPolus,
		SpawnTypeShipStatusAirship,
	} {
		reg.Register(st, Prefab{SpawnType: st, Components: []ComponentFactory{newShipStatus}})
	}
	return reg
}
