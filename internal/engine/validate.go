package engine

import (
	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/fixed"
)

// exhaustionCeiling is the threshold at or above which an agent cannot take
// a new assignment.
const exhaustionCeiling = 100

// The validation predicates below are the single rulebook for command
// eligibility: the CLI, the HTTP API, and scripted players all go through
// them, so none of the three can bypass what the others enforce.

// ValidateHire checks roster capacity and funds for one hire.
func ValidateHire(state *domain.GameState, rules *config.Rules) error {
	if len(state.LiveAgents()) >= state.Caps.Agents {
		return reject(CodeCapacityExceeded, "agent capacity %d reached", state.Caps.Agents)
	}
	if state.Money < rules.Economy.HireCost {
		return reject(CodeInsufficientFunds, "hiring costs %d, have %d", rules.Economy.HireCost, state.Money)
	}
	return nil
}

// ValidateAssignable checks that every listed agent exists, is available,
// and is under the exhaustion ceiling. It is the common gate for
// contracting, training, deployment, and investigation rosters.
func ValidateAssignable(state *domain.GameState, agentIDs []int64) error {
	if len(agentIDs) == 0 {
		return reject(CodeBadRequest, "no agents listed")
	}
	seen := make(map[int64]bool, len(agentIDs))
	for _, id := range agentIDs {
		if seen[id] {
			return reject(CodeBadRequest, "agent %d listed twice", id)
		}
		seen[id] = true
		a := state.FindAgent(id)
		if a == nil {
			return reject(CodeNotFound, "agent %d not found", id)
		}
		if a.IsTerminated() {
			return reject(CodeInvalidState, "agent %d is terminated", id)
		}
		if !a.Idle() {
			return reject(CodeInvalidState, "agent %d is %s", id, a.State)
		}
		if a.Exhaustion.Cmp(fixed.FromInt(exhaustionCeiling)) >= 0 {
			return reject(CodeOverExhaustion, "agent %d exhaustion %s is at the ceiling", id, a.Exhaustion)
		}
	}
	return nil
}

// ValidateSack checks that every listed agent can be let go.
func ValidateSack(state *domain.GameState, agentIDs []int64) error {
	if len(agentIDs) == 0 {
		return reject(CodeBadRequest, "no agents listed")
	}
	for _, id := range agentIDs {
		a := state.FindAgent(id)
		if a == nil {
			return reject(CodeNotFound, "agent %d not found", id)
		}
		if a.IsTerminated() {
			return reject(CodeInvalidState, "agent %d is already terminated", id)
		}
		if !a.Idle() {
			return reject(CodeInvalidState, "agent %d is %s; recall before sacking", id, a.State)
		}
	}
	return nil
}

// ValidateRecall checks that every listed agent has an assignment that can
// be aborted. Deployed agents are committed until the mission resolves.
func ValidateRecall(state *domain.GameState, agentIDs []int64) error {
	if len(agentIDs) == 0 {
		return reject(CodeBadRequest, "no agents listed")
	}
	for _, id := range agentIDs {
		a := state.FindAgent(id)
		if a == nil {
			return reject(CodeNotFound, "agent %d not found", id)
		}
		switch a.State {
		case domain.OnAssignment, domain.InTraining:
		case domain.StartingTransit, domain.InTransit:
			if a.Duty.Kind == domain.DutyMission {
				return reject(CodeInvalidState, "agent %d is committed to a mission", id)
			}
		default:
			return reject(CodeInvalidState, "agent %d is %s, nothing to recall", id, a.State)
		}
	}
	return nil
}

// ValidateTrainingCapacity counts current and inbound trainees against the
// training cap.
func ValidateTrainingCapacity(state *domain.GameState, incoming int) error {
	var used int
	for _, a := range state.Agents {
		if !a.IsTerminated() && a.Duty.Kind == domain.DutyTraining {
			used++
		}
	}
	if used+incoming > state.Caps.Training {
		return reject(CodeCapacityExceeded, "training capacity %d, %d in use", state.Caps.Training, used)
	}
	return nil
}

// ValidateDeploy checks the mission and the roster size against transport
// capacity.
func ValidateDeploy(state *domain.GameState, missionID int64, agentIDs []int64) error {
	m := state.FindMission(missionID)
	if m == nil {
		return reject(CodeNotFound, "mission %d not found", missionID)
	}
	if m.State != domain.MissionActive {
		return reject(CodeInvalidState, "mission %d is %s", missionID, m.State)
	}
	if len(agentIDs) > state.Caps.Transport {
		return reject(CodeCapacityExceeded, "transport capacity %d, %d agents listed", state.Caps.Transport, len(agentIDs))
	}
	return ValidateAssignable(state, agentIDs)
}

// ValidateStartInvestigation checks the lead and the proposed team.
func ValidateStartInvestigation(state *domain.GameState, rules *config.Rules, leadID string, agentIDs []int64) error {
	if _, ok := rules.Lead(leadID); !ok {
		return reject(CodeNotFound, "unknown lead %s", leadID)
	}
	if state.ActiveInvestigationForLead(leadID) != nil {
		return reject(CodeDuplicate, "lead %s is already under investigation", leadID)
	}
	return ValidateAssignable(state, agentIDs)
}

// ValidateReinforce checks the investigation and the reinforcements.
func ValidateReinforce(state *domain.GameState, investigationID int64, agentIDs []int64) error {
	li := state.FindInvestigation(investigationID)
	if li == nil {
		return reject(CodeNotFound, "investigation %d not found", investigationID)
	}
	if li.State != domain.LeadActive {
		return reject(CodeInvalidState, "investigation %d is %s", investigationID, li.State)
	}
	return ValidateAssignable(state, agentIDs)
}

// ValidatePurchase checks the upgrade id, funds, and prior purchases.
func ValidatePurchase(state *domain.GameState, rules *config.Rules, upgradeID string) error {
	def, ok := rules.Upgrades[upgradeID]
	if !ok {
		return reject(CodeNotFound, "unknown upgrade %s", upgradeID)
	}
	for _, owned := range state.Upgrades {
		if owned == upgradeID {
			return reject(CodeDuplicate, "upgrade %s already purchased", upgradeID)
		}
	}
	if state.Money < def.Cost {
		return reject(CodeInsufficientFunds, "upgrade %s costs %d, have %d", upgradeID, def.Cost, state.Money)
	}
	return nil
}
