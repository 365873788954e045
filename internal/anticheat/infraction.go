// Package anticheat gates every inbound RPC before the room applies it:
// existence, ownership, tag classification and component-class checks,
// with per-rule severity bookkeeping batched into infraction records and
// flushed to the metrics collaborator.
package anticheat

import (
	"fmt"
	"time"
)

// Severity grades an infraction. Critical suppresses the RPC outright;
// High suppresses when the rule's semantics demand it; Medium and Low are
// observational.
type Severity uint8

const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Rule names, stable across flushes so the metrics sink can aggregate.
const (
	RuleUnknownRpcInnernetObject = "UnknownRpcInnernetObject"
	RuleRpcOwnership             = "RpcOwnership"
	RuleForbiddenRpcHostOnly     = "ForbiddenRpcHostOnly"
	RuleForbiddenRpcVent         = "ForbiddenRpcVent"
	RuleInvalidVote              = "InvalidVote"
	RuleForbiddenRpcCosmetic     = "ForbiddenRpcCosmetic"
	RuleNameMismatch             = "NameMismatch"
	RuleForbiddenRpcSnapTo       = "ForbiddenRpcSnapTo"
	RuleStartCounterNotHost      = "StartCounterNotHost"
	RuleRpcComponentMismatch     = "RpcComponentMismatch"
)

// Infraction is one observed rule violation. InfractionID is
// unique per room lifetime so the metrics sink's batched insert can be
// idempotent on it.
type Infraction struct {
	InfractionID string
	UserID       uint32
	GameID       int64
	CreatedAt    time.Time
	PlayerPing   time.Duration
	Name         string
	Details      string
	Severity     Severity
}
