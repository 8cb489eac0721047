package domain

import "vigil/internal/fixed"

// Delta is a previous/current/delta triple for an integer metric.
type Delta struct {
	Previous int64 `json:"previous"`
	Current  int64 `json:"current"`
	Delta    int64 `json:"delta"`
}

// NewDelta builds a Delta from its endpoints.
func NewDelta(prev, curr int64) Delta {
	return Delta{Previous: prev, Current: curr, Delta: curr - prev}
}

// FixedDelta is a previous/current/delta triple for a fixed-point metric.
type FixedDelta struct {
	Previous fixed.Fixed `json:"previous"`
	Current  fixed.Fixed `json:"current"`
	Delta    fixed.Fixed `json:"delta"`
}

// NewFixedDelta builds a FixedDelta from its endpoints.
func NewFixedDelta(prev, curr fixed.Fixed) FixedDelta {
	return FixedDelta{Previous: prev, Current: curr, Delta: curr.Sub(prev)}
}

// MissionReport summarizes one resolved deployment.
type MissionReport struct {
	MissionID   int64       `json:"mission_id"`
	Name        string      `json:"name"`
	Outcome     string      `json:"outcome"`
	Rounds      int         `json:"rounds"`
	AgentsLost  int         `json:"agents_lost"`
	EnemiesDown int         `json:"enemies_down"`
	SkillGained fixed.Fixed `json:"skill_gained"`
	MoneyReward int64       `json:"money_reward,omitempty"`
	Log         []RoundLog  `json:"log,omitempty"`
}

// FactionReport tracks one faction's movement this turn.
type FactionReport struct {
	FactionID      string `json:"faction_id"`
	Level          Delta  `json:"level"`
	Suppression    Delta  `json:"suppression"`
	SpawnedMission int64  `json:"spawned_mission,omitempty"`
}

// InvestigationReport tracks one lead investigation's movement this turn.
type InvestigationReport struct {
	InvestigationID int64       `json:"investigation_id"`
	LeadID          string      `json:"lead_id"`
	Intel           FixedDelta  `json:"intel"`
	SuccessChance   fixed.Fixed `json:"success_chance"`
	Status          string      `json:"status"`
	WithdrawnAgents []int64     `json:"withdrawn_agents,omitempty"`
	SpawnedMissions []int64     `json:"spawned_missions,omitempty"`
}

// TurnReport is the structured diff a turn advancement returns. It is the
// sole channel through which the rest of the system learns what changed;
// consumers render it directly instead of recomputing diffs from raw state.
type TurnReport struct {
	Turn int `json:"turn"`

	Money   Delta      `json:"money"`
	Funding Delta      `json:"funding"`
	Panic   FixedDelta `json:"panic"`

	Upkeep            int64       `json:"upkeep"`
	ContractingIncome int64       `json:"contracting_income"`
	EspionageRelief   fixed.Fixed `json:"espionage_relief"`

	AgentCounts map[string]Delta `json:"agent_counts"`

	Missions        []MissionReport       `json:"missions,omitempty"`
	ExpiredMissions []int64               `json:"expired_missions,omitempty"`
	Investigations  []InvestigationReport `json:"investigations,omitempty"`
	Factions        []FactionReport       `json:"factions,omitempty"`
}
