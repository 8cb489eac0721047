package domain

import (
	"fmt"

	"vigil/internal/fixed"
)

// Caps are the agency's capacity limits.
type Caps struct {
	Agents    int `json:"agents"`    // roster size, terminated excluded
	Transport int `json:"transport"` // agents per deployment
	Training  int `json:"training"`  // simultaneous trainees
}

// GameState is the aggregate root owning the whole state graph. Entities
// reference each other by id only and are looked up through it; a dangling
// id is a defect. Terminated agents and terminal missions/investigations are
// retained as history.
type GameState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Seed int64  `json:"seed"`

	Turn    int         `json:"turn"`
	Actions int         `json:"actions"`
	Panic   fixed.Fixed `json:"panic"`
	Money   int64       `json:"money"`
	Funding int64       `json:"funding"`
	Caps    Caps        `json:"caps"`

	NextEntityID int64 `json:"next_entity_id"`

	Agents         []*Agent             `json:"agents"`
	Missions       []*Mission           `json:"missions"`
	Investigations []*LeadInvestigation `json:"investigations"`
	Factions       []*Faction           `json:"factions"`

	// LeadCompletions counts how many times each lead has been completed.
	LeadCompletions map[string]int `json:"lead_completions,omitempty"`

	// Upgrades lists purchased capability tiers by id.
	Upgrades []string `json:"upgrades,omitempty"`

	Report *TurnReport `json:"report,omitempty"`
}

// NewGameState returns an empty state at turn zero.
func NewGameState(id, name string, seed int64) *GameState {
	Check(id != "", "game with empty id")
	return &GameState{
		ID:              id,
		Name:            name,
		Seed:            seed,
		NextEntityID:    1,
		LeadCompletions: make(map[string]int),
	}
}

// AllocateID hands out the next numeric entity id.
func (s *GameState) AllocateID() int64 {
	id := s.NextEntityID
	s.NextEntityID++
	return id
}

// AgentByID looks up an agent; dangling ids are defects.
func (s *GameState) AgentByID(id int64) *Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	panic(Defect{Msg: fmt.Sprintf("dangling agent id %d", id)})
}

// MissionByID looks up a mission; dangling ids are defects.
func (s *GameState) MissionByID(id int64) *Mission {
	for _, m := range s.Missions {
		if m.ID == id {
			return m
		}
	}
	panic(Defect{Msg: fmt.Sprintf("dangling mission id %d", id)})
}

// InvestigationByID looks up an investigation; dangling ids are defects.
func (s *GameState) InvestigationByID(id int64) *LeadInvestigation {
	for _, li := range s.Investigations {
		if li.ID == id {
			return li
		}
	}
	panic(Defect{Msg: fmt.Sprintf("dangling investigation id %d", id)})
}

// FactionByID looks up a faction; dangling ids are defects.
func (s *GameState) FactionByID(id string) *Faction {
	for _, f := range s.Factions {
		if f.ID == id {
			return f
		}
	}
	panic(Defect{Msg: fmt.Sprintf("dangling faction id %q", id)})
}

// FindAgent returns nil instead of panicking; for command validation where a
// missing id is the user's mistake, not ours.
func (s *GameState) FindAgent(id int64) *Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// FindMission is the command-validation counterpart of MissionByID.
func (s *GameState) FindMission(id int64) *Mission {
	for _, m := range s.Missions {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// FindInvestigation is the command-validation counterpart of InvestigationByID.
func (s *GameState) FindInvestigation(id int64) *LeadInvestigation {
	for _, li := range s.Investigations {
		if li.ID == id {
			return li
		}
	}
	return nil
}

// ActiveInvestigationForLead returns the lead's Active investigation, or nil.
func (s *GameState) ActiveInvestigationForLead(leadID string) *LeadInvestigation {
	for _, li := range s.Investigations {
		if li.LeadID == leadID && li.State == LeadActive {
			return li
		}
	}
	return nil
}

// LiveAgents returns the roster minus terminated agents.
func (s *GameState) LiveAgents() []*Agent {
	var out []*Agent
	for _, a := range s.Agents {
		if !a.IsTerminated() {
			out = append(out, a)
		}
	}
	return out
}

// AgentCounts tallies agents by state.
func (s *GameState) AgentCounts() map[string]int64 {
	counts := make(map[string]int64)
	for _, a := range s.Agents {
		counts[a.State.String()]++
	}
	return counts
}

// CheckInvariants sweeps the cross-cutting invariants that are not already
// structurally guaranteed. Violations are defects and panic.
func (s *GameState) CheckInvariants() {
	Check(!s.Panic.IsNegative() && s.Panic.Cmp(fixed.One) <= 0, "panic %v outside [0,1]", s.Panic)
	Check(s.Turn >= 0, "turn %d", s.Turn)

	for _, a := range s.Agents {
		Check(validDuties[a.State][a.Duty.Kind], "agent %d: state %v with duty %v", a.ID, a.State, a.Duty)
		Check(a.State != Terminated || a.Termination != NotTerminated, "agent %d: terminated without cause", a.ID)
		Check(!a.HitPoints.IsNegative(), "agent %d: negative hit points", a.ID)
		Check(!a.Exhaustion.IsNegative(), "agent %d: negative exhaustion", a.ID)
		switch a.Duty.Kind {
		case DutyMission:
			m := s.MissionByID(a.Duty.MissionID)
			Check(!m.State.Terminal(), "agent %d: duty on terminal mission %d", a.ID, m.ID)
		case DutyLead:
			s.InvestigationByID(a.Duty.LeadID)
		}
	}

	activeByLead := make(map[string]int)
	for _, li := range s.Investigations {
		Check(!li.Intel.IsNegative(), "investigation %d: negative intel", li.ID)
		if li.State == LeadActive {
			activeByLead[li.LeadID]++
			Check(len(li.AgentIDs) > 0, "investigation %d: active with no agents", li.ID)
			for _, id := range li.AgentIDs {
				s.AgentByID(id)
			}
		}
	}
	for lead, n := range activeByLead {
		Check(n == 1, "lead %q: %d active investigations", lead, n)
	}

	for _, m := range s.Missions {
		Check(len(m.Enemies) > 0, "mission %d: empty enemy roster", m.ID)
		if m.State == MissionDeployed {
			Check(len(m.DeployedAgentIDs) > 0, "mission %d: deployed with no agents", m.ID)
		}
	}

	for _, f := range s.Factions {
		Check(f.Level >= 0 && f.Level <= MaxFactionLevel, "faction %s: level %d", f.ID, f.Level)
		Check(f.SuppressionTurns >= 0, "faction %s: suppression %d", f.ID, f.SuppressionTurns)
	}
}
