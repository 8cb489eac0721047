package script

import (
	"sort"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/fixed"
)

// deployableBelow is the exhaustion line under which the scripted player
// still considers an agent worth sending anywhere.
var deployableBelow = fixed.FromInt(80)

// RuleEnv wraps campaign state and exposes helper methods callable from
// expr expressions. All helpers read the state snapshot taken before rule
// evaluation; actions that mutate the campaign refresh it.
type RuleEnv struct {
	State  *domain.GameState
	Rules  *config.Rules
	Memory map[string]any
}

func (e RuleEnv) Turn() int      { return e.State.Turn }
func (e RuleEnv) Money() int64   { return e.State.Money }
func (e RuleEnv) Funding() int64 { return e.State.Funding }

// Panic returns oversight panic as a float for threshold comparisons.
func (e RuleEnv) Panic() float64 { return e.State.Panic.Float64() }

func (e RuleEnv) HireCost() int64 { return e.Rules.Economy.HireCost }

// IdleAgents returns ids of agents on standby and fit for a new assignment,
// least exhausted first.
func (e RuleEnv) IdleAgents() []int64 {
	var fit []*domain.Agent
	for _, a := range e.State.Agents {
		if a.State != domain.Available || a.Duty.Kind != domain.DutyStandby {
			continue
		}
		if a.Exhaustion.Cmp(deployableBelow) >= 0 {
			continue
		}
		fit = append(fit, a)
	}
	sort.Slice(fit, func(i, j int) bool { return fit[i].Exhaustion.Cmp(fit[j].Exhaustion) < 0 })
	ids := make([]int64, len(fit))
	for i, a := range fit {
		ids[i] = a.ID
	}
	return ids
}

func (e RuleEnv) IdleCount() int { return len(e.IdleAgents()) }

// RosterRoom returns how many more agents can be hired.
func (e RuleEnv) RosterRoom() int {
	return e.State.Caps.Agents - len(e.State.LiveAgents())
}

// TrainingRoom returns free academy slots.
func (e RuleEnv) TrainingRoom() int {
	busy := 0
	for _, a := range e.State.Agents {
		if a.State != domain.Terminated && a.Duty.Kind == domain.DutyTraining {
			busy++
		}
	}
	return e.State.Caps.Training - busy
}

// ContractorCount returns agents currently assigned to contracting.
func (e RuleEnv) ContractorCount() int {
	n := 0
	for _, a := range e.State.Agents {
		if a.State != domain.Terminated && a.Duty.Kind == domain.DutyContracting {
			n++
		}
	}
	return n
}

// UrgentMission returns the id of the active mission closest to expiry,
// or 0 when nothing needs a team. Missions without expiry sort last.
func (e RuleEnv) UrgentMission() int64 {
	var best *domain.Mission
	for _, m := range e.State.Missions {
		if m.State != domain.MissionActive {
			continue
		}
		if best == nil || missionUrgency(m) < missionUrgency(best) {
			best = m
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}

func missionUrgency(m *domain.Mission) int {
	if m.ExpiresIn == domain.NoExpiry {
		return int(^uint(0) >> 1)
	}
	return m.ExpiresIn
}

// OpenLead returns a lead id with no running investigation, preferring
// never-completed leads. Empty when every lead is covered.
func (e RuleEnv) OpenLead() string {
	ids := make([]string, 0, len(e.Rules.Leads))
	for id := range e.Rules.Leads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fallback := ""
	for _, id := range ids {
		if e.State.ActiveInvestigationForLead(id) != nil {
			continue
		}
		if e.State.LeadCompletions[id] == 0 {
			return id
		}
		if fallback == "" {
			fallback = id
		}
	}
	return fallback
}

// AffordableUpgrade returns the cheapest unpurchased upgrade within budget,
// or empty.
func (e RuleEnv) AffordableUpgrade() string {
	owned := map[string]bool{}
	for _, id := range e.State.Upgrades {
		owned[id] = true
	}
	best := ""
	var bestCost int64
	for id, def := range e.Rules.Upgrades {
		if owned[id] || def.Cost > e.State.Money {
			continue
		}
		if best == "" || def.Cost < bestCost || (def.Cost == bestCost && id < best) {
			best, bestCost = id, def.Cost
		}
	}
	return best
}

// TransportCap returns the deployment roster limit.
func (e RuleEnv) TransportCap() int { return e.State.Caps.Transport }

// Wiped reports whether the roster has no living agents left.
func (e RuleEnv) Wiped() bool { return len(e.State.LiveAgents()) == 0 }
