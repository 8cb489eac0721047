package domain

import "vigil/internal/fixed"

// LeadState is an investigation's lifecycle stage.
type LeadState int

const (
	LeadActive LeadState = iota
	LeadDone
	LeadAbandoned
)

func (s LeadState) String() string {
	switch s {
	case LeadActive:
		return "active"
	case LeadDone:
		return "done"
	case LeadAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// LeadInvestigation is a running inquiry into a lead. At most one Active
// investigation may exist per lead; GameState enforces that invariant.
type LeadInvestigation struct {
	ID        int64       `json:"id"`
	LeadID    string      `json:"lead_id"`
	Intel     fixed.Fixed `json:"intel"`
	AgentIDs  []int64     `json:"agent_ids"`
	StartTurn int         `json:"start_turn"`
	State     LeadState   `json:"state"`
}

// NewLeadInvestigation returns an Active investigation with zero intel.
func NewLeadInvestigation(id int64, leadID string, agentIDs []int64, startTurn int) *LeadInvestigation {
	Check(id > 0, "investigation id %d", id)
	Check(leadID != "", "investigation %d: empty lead id", id)
	Check(len(agentIDs) > 0, "investigation %d: empty agent roster", id)
	return &LeadInvestigation{
		ID:        id,
		LeadID:    leadID,
		AgentIDs:  append([]int64(nil), agentIDs...),
		StartTurn: startTurn,
		State:     LeadActive,
	}
}

// RemoveAgent drops an agent id from the roster; a missing id is a defect.
func (li *LeadInvestigation) RemoveAgent(agentID int64) {
	for i, id := range li.AgentIDs {
		if id == agentID {
			li.AgentIDs = append(li.AgentIDs[:i], li.AgentIDs[i+1:]...)
			return
		}
	}
	panic(Defect{Msg: "investigation: removing agent not on roster"})
}
