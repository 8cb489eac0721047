package domain

import (
	"fmt"

	"vigil/internal/fixed"
)

// AgentState is an agent's lifecycle stage.
type AgentState int

const (
	Available AgentState = iota
	StartingTransit
	InTransit
	Recovering
	OnAssignment
	OnMission
	InTraining
	Terminated
)

func (s AgentState) String() string {
	switch s {
	case Available:
		return "available"
	case StartingTransit:
		return "starting-transit"
	case InTransit:
		return "in-transit"
	case Recovering:
		return "recovering"
	case OnAssignment:
		return "on-assignment"
	case OnMission:
		return "on-mission"
	case InTraining:
		return "in-training"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TerminationCause distinguishes why an agent left the roster.
type TerminationCause int

const (
	NotTerminated TerminationCause = iota
	KIA
	Sacked
)

func (c TerminationCause) String() string {
	switch c {
	case NotTerminated:
		return "none"
	case KIA:
		return "kia"
	case Sacked:
		return "sacked"
	default:
		return "unknown"
	}
}

// DutyKind tags what an agent's assignment points at.
type DutyKind int

const (
	DutyStandby DutyKind = iota
	DutyContracting
	DutyTraining
	DutyEspionage
	DutyMission
	DutyLead
	DutyRecovery
	DutySacked
	DutyKIA
)

func (k DutyKind) String() string {
	switch k {
	case DutyStandby:
		return "standby"
	case DutyContracting:
		return "contracting"
	case DutyTraining:
		return "training"
	case DutyEspionage:
		return "espionage"
	case DutyMission:
		return "mission"
	case DutyLead:
		return "lead"
	case DutyRecovery:
		return "recovery"
	case DutySacked:
		return "sacked"
	case DutyKIA:
		return "kia"
	default:
		return "unknown"
	}
}

// Duty is an agent's assignment: an activity tag, a mission or investigation
// id, or a terminal tag. Construct it with the Duty* helpers so the id fields
// are only set for kinds that carry one.
type Duty struct {
	Kind      DutyKind `json:"kind"`
	MissionID int64    `json:"mission_id,omitempty"`
	LeadID    int64    `json:"lead_id,omitempty"`
}

func StandbyDuty() Duty     { return Duty{Kind: DutyStandby} }
func ContractingDuty() Duty { return Duty{Kind: DutyContracting} }
func TrainingDuty() Duty    { return Duty{Kind: DutyTraining} }
func EspionageDuty() Duty   { return Duty{Kind: DutyEspionage} }
func RecoveryDuty() Duty    { return Duty{Kind: DutyRecovery} }
func SackedDuty() Duty      { return Duty{Kind: DutySacked} }
func KIADuty() Duty         { return Duty{Kind: DutyKIA} }

func MissionDuty(missionID int64) Duty {
	Check(missionID > 0, "mission duty with id %d", missionID)
	return Duty{Kind: DutyMission, MissionID: missionID}
}

func LeadDuty(investigationID int64) Duty {
	Check(investigationID > 0, "lead duty with id %d", investigationID)
	return Duty{Kind: DutyLead, LeadID: investigationID}
}

func (d Duty) String() string {
	switch d.Kind {
	case DutyMission:
		return fmt.Sprintf("mission:%d", d.MissionID)
	case DutyLead:
		return fmt.Sprintf("lead:%d", d.LeadID)
	default:
		return d.Kind.String()
	}
}

// validDuties is the exhaustive table of recognized (state, duty) pairs.
// Anything outside it is a programming error, not bad user input.
var validDuties = map[AgentState]map[DutyKind]bool{
	Available:       {DutyStandby: true},
	StartingTransit: {DutyStandby: true, DutyContracting: true, DutyTraining: true, DutyEspionage: true, DutyMission: true, DutyLead: true},
	InTransit:       {DutyStandby: true, DutyContracting: true, DutyTraining: true, DutyEspionage: true, DutyMission: true, DutyLead: true},
	Recovering:      {DutyRecovery: true},
	OnAssignment:    {DutyContracting: true, DutyEspionage: true, DutyLead: true},
	OnMission:       {DutyMission: true},
	InTraining:      {DutyTraining: true},
	Terminated:      {DutySacked: true, DutyKIA: true},
}

// Agent is an operative on the player's roster. Terminated agents stay in
// the roster as historical records.
type Agent struct {
	Actor

	State AgentState `json:"state"`
	Duty  Duty       `json:"duty"`

	HiredTurn       int              `json:"hired_turn"`
	TerminatedTurn  int              `json:"terminated_turn,omitempty"`
	Termination     TerminationCause `json:"termination,omitempty"`
	KilledByEnemyID int64            `json:"killed_by_enemy_id,omitempty"`

	MissionCount int         `json:"mission_count"`
	TrainedSkill fixed.Fixed `json:"trained_skill"`

	// Wound bookkeeping while Recovering: total HP lost at deployment end
	// and the linear per-turn restoration amount derived from it.
	WoundHP         fixed.Fixed `json:"wound_hp,omitempty"`
	RecoveryPerTurn fixed.Fixed `json:"recovery_per_turn,omitempty"`
}

// NewAgent returns an Available agent on standby with full hit points.
func NewAgent(id int64, name string, skill fixed.Fixed, maxHP int, weapon Weapon, hiredTurn int) *Agent {
	Check(id > 0, "agent id %d", id)
	Check(maxHP > 0, "agent %d: max hit points %d", id, maxHP)
	Check(!skill.IsNegative(), "agent %d: negative skill %v", id, skill)
	return &Agent{
		Actor: Actor{
			ID:           id,
			Name:         name,
			Skill:        skill,
			HitPoints:    fixed.FromInt(maxHP),
			MaxHitPoints: maxHP,
			Weapon:       weapon,
		},
		State:     Available,
		Duty:      StandbyDuty(),
		HiredTurn: hiredTurn,
	}
}

// Assign moves the agent to a new (state, duty) pair. Unrecognized pairs are
// defects.
func (a *Agent) Assign(state AgentState, duty Duty) {
	Check(validDuties[state][duty.Kind], "agent %d: state %v with duty %v", a.ID, state, duty)
	Check(a.State != Terminated, "agent %d: assignment after termination", a.ID)
	a.State = state
	a.Duty = duty
}

// Terminate retires the agent permanently. killerID records the responsible
// enemy for KIA and must be zero otherwise.
func (a *Agent) Terminate(turn int, cause TerminationCause, killerID int64) {
	Check(cause == KIA || cause == Sacked, "agent %d: termination cause %v", a.ID, cause)
	Check(cause == KIA || killerID == 0, "agent %d: killer id %d for cause %v", a.ID, killerID, cause)
	Check(a.State != Terminated, "agent %d: double termination", a.ID)
	a.State = Terminated
	a.TerminatedTurn = turn
	a.Termination = cause
	a.KilledByEnemyID = killerID
	if cause == KIA {
		a.Duty = KIADuty()
	} else {
		a.Duty = SackedDuty()
	}
}

// Terminated reports whether the agent has left the roster.
func (a *Agent) IsTerminated() bool { return a.State == Terminated }

// Idle reports whether the agent is available for a new assignment.
func (a *Agent) Idle() bool { return a.State == Available }
