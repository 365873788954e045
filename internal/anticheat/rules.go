package anticheat

import (
	"gamecore/internal/codec"
	"gamecore/internal/object"
)

// Role is the sender's standing inside the room, used by the per-role
// exception table.
type Role uint8

const (
	RolePlayer Role = iota
	RoleImpostor
	RoleActingHost
)

// Exceptions returns the rule names a role is allowed to trip without an
// infraction being recorded. Acting hosts legitimately exercise host-only
// RPCs while the server is host; impostors legitimately vent.
func Exceptions(role Role) map[string]bool {
	switch role {
	case RoleActingHost:
		return map[string]bool{
			RuleForbiddenRpcHostOnly: true,
		}
	case RoleImpostor:
		return map[string]bool{
			RuleForbiddenRpcVent: true,
		}
	default:
		return nil
	}
}

// IsHostOnly reports whether tag is reserved to the authoritative host,
// so the room can grade a sender's role before building the check
// context (an impostor acting host is RoleActingHost for these tags and
// RoleImpostor for everything else).
func IsHostOnly(tag codec.RpcTag) bool { return hostOnlyTags[tag] }

// hostOnlyTags are RPCs only the authoritative host may issue; in
// server-as-host mode any client sending them is flagged Critical.
var hostOnlyTags = map[codec.RpcTag]bool{
	codec.RpcClose:          true,
	codec.RpcExiled:         true,
	codec.RpcMurderPlayer:   true,
	codec.RpcSetInfected:    true,
	codec.RpcSetTasks:       true,
	codec.RpcStartMeeting:   true,
	codec.RpcSyncSettings:   true,
	codec.RpcVotingComplete: true,
	codec.RpcBootFromVent:   true,
	codec.RpcSetName:        true,
	codec.RpcSetColor:       true,
}

// carrierOf maps each RPC tag to the component kind that legitimately
// carries it. A tag arriving on any other kind is a component-class
// mismatch.
var carrierOf = map[codec.RpcTag]object.Kind{
	codec.RpcPlayAnimation:    object.KindPlayerControl,
	codec.RpcCompleteTask:     object.KindPlayerControl,
	codec.RpcSyncSettings:     object.KindPlayerControl,
	codec.RpcSetInfected:      object.KindPlayerControl,
	codec.RpcExiled:           object.KindPlayerControl,
	codec.RpcCheckName:        object.KindPlayerControl,
	codec.RpcCheckColor:       object.KindPlayerControl,
	codec.RpcSetName:          object.KindPlayerControl,
	codec.RpcSetColor:         object.KindPlayerControl,
	codec.RpcSetHat:           object.KindPlayerControl,
	codec.RpcSetSkin:          object.KindPlayerControl,
	codec.RpcSetPet:           object.KindPlayerControl,
	codec.RpcReportDeadBody:   object.KindPlayerControl,
	codec.RpcMurderPlayer:     object.KindPlayerControl,
	codec.RpcSendChat:         object.KindPlayerControl,
	codec.RpcStartMeeting:     object.KindPlayerControl,
	codec.RpcSetScanner:       object.KindPlayerPhysics,
	codec.RpcSendChatNote:     object.KindPlayerControl,
	codec.RpcSetStartCounter:  object.KindPlayerControl,
	codec.RpcEnterVent:        object.KindPlayerPhysics,
	codec.RpcExitVent:         object.KindPlayerPhysics,
	codec.RpcBootFromVent:     object.KindPlayerPhysics,
	codec.RpcSnapTo:           object.KindCustomNetworkTransform,
	codec.RpcClose:            object.KindMeetingHud,
	codec.RpcVotingComplete:   object.KindMeetingHud,
	codec.RpcCastVote:         object.KindMeetingHud,
	codec.RpcClearVote:        object.KindMeetingHud,
	codec.RpcAddVote:          object.KindVoteBanSystem,
	codec.RpcCloseDoorsOfType: object.KindShipStatus,
	codec.RpcRepairSystem:     object.KindShipStatus,
	codec.RpcSetTasks:         object.KindGameData,
	codec.RpcUpdateGameData:   object.KindGameData,
}

// Built-in cosmetic catalog bounds: ids below these values ship with the
// game and need no inventory entry; anything above must appear in the
// authenticated user's owned cosmetics.
const (
	builtinColorCount uint8  = 18
	builtinHatMax     uint32 = 100
	builtinPetMax     uint32 = 16
	builtinSkinMax    uint32 = 32
)

// skipVoteTarget is the suspect value meaning "skip" in CastVote.
const skipVoteTarget int32 = 255
