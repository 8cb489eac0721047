package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/events"
	"vigil/internal/repo"
	"vigil/internal/rng"
	"vigil/internal/turn"
)

// Engine is the command surface over a persisted game. Every command loads
// the current snapshot, mutates it in memory, and writes the new snapshot
// plus an event row in one transaction. A Rejection leaves the database
// untouched; a Defect panic aborts before anything is written.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Rules  *config.Rules
	Now    func() time.Time
}

func New(db *sql.DB, rules *config.Rules) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Rules:  rules,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// CreateGame sets up a new campaign: starting funds, dormant-free factions
// at level one, and the configured number of rookie hires, snapshotted as
// turn zero. A zero seed requests a random one.
func (e Engine) CreateGame(ctx context.Context, name string, seed int64) (domain.Game, error) {
	if name == "" {
		return domain.Game{}, reject(CodeBadRequest, "game name is required")
	}
	if seed == 0 {
		var err error
		if seed, err = rng.NewSeed(); err != nil {
			return domain.Game{}, err
		}
	}
	id := uuid.New().String()
	state := e.startingState(id, name, seed)
	state.CheckInvariants()

	now := e.nowRFC3339()
	g := domain.Game{
		ID:        id,
		Name:      name,
		Seed:      seed,
		Turn:      0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Game{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertGame(ctx, tx, g); err != nil {
		return domain.Game{}, err
	}
	if err := e.Repo.UpsertSnapshot(ctx, tx, id, 0, state, now); err != nil {
		return domain.Game{}, err
	}
	if err := e.Events.Append(ctx, tx, "game.created", id, "game", id, events.EventPayload{
		"name": name,
		"seed": seed,
	}); err != nil {
		return domain.Game{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Game{}, err
	}
	return g, nil
}

func (e Engine) startingState(id, name string, seed int64) *domain.GameState {
	r := e.Rules
	state := domain.NewGameState(id, name, seed)
	state.Money = r.Game.StartMoney
	state.Funding = r.Game.StartFunding
	state.Panic = r.Game.StartPanic
	state.Caps = domain.Caps{
		Agents:    r.Game.AgentCap,
		Transport: r.Game.TransportCap,
		Training:  r.Game.TrainingCap,
	}
	for _, def := range r.Factions {
		state.Factions = append(state.Factions, domain.NewFaction(def.ID, def.Name, 1, def.Countdown))
	}
	for i := 0; i < r.Game.StartingAgents; i++ {
		e.addRookie(state)
	}
	return state
}

func (e Engine) addRookie(state *domain.GameState) *domain.Agent {
	r := e.Rules
	id := state.AllocateID()
	a := domain.NewAgent(id, fmt.Sprintf("recruit-%d", id), r.Agents.RookieSkill, r.Agents.MaxHitPoints, domain.Weapon{
		Name:      r.Agents.Weapon.Name,
		Damage:    r.Agents.Weapon.Damage,
		MinDamage: r.Agents.Weapon.MinDamage,
		MaxDamage: r.Agents.Weapon.MaxDamage,
	}, state.Turn)
	state.Agents = append(state.Agents, a)
	return a
}

// GetGame returns the game row.
func (e Engine) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	return e.Repo.GetGame(ctx, gameID)
}

// GetState loads the current-turn snapshot of a game.
func (e Engine) GetState(ctx context.Context, gameID string) (*domain.GameState, error) {
	g, err := e.Repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return e.Repo.GetSnapshot(ctx, g.ID, g.Turn)
}

// withState runs fn against the current snapshot and persists snapshot,
// event, and updated_at together. fn returning an error (typically a
// Rejection) discards the mutation.
func (e Engine) withState(ctx context.Context, gameID, evtType, entityKind, entityID string, fn func(state *domain.GameState) (events.EventPayload, error)) (*domain.GameState, error) {
	g, err := e.Repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	state, err := e.Repo.GetSnapshot(ctx, g.ID, g.Turn)
	if err != nil {
		return nil, err
	}
	payload, err := fn(state)
	if err != nil {
		return nil, err
	}
	state.Actions++
	state.CheckInvariants()

	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSnapshot(ctx, tx, g.ID, state.Turn, state, now); err != nil {
		return nil, err
	}
	if err := e.Repo.SetGameTurn(ctx, tx, g.ID, state.Turn, now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, evtType, g.ID, entityKind, entityID, payload); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return state, nil
}

// HireAgent recruits one rookie. The hire joins the roster immediately,
// ready for assignment the same turn.
func (e Engine) HireAgent(ctx context.Context, gameID string) (*domain.Agent, error) {
	var hired *domain.Agent
	_, err := e.withState(ctx, gameID, "agent.hired", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateHire(state, e.Rules); err != nil {
			return nil, err
		}
		state.Money -= e.Rules.Economy.HireCost
		hired = e.addRookie(state)
		return events.EventPayload{"agent_id": hired.ID, "cost": e.Rules.Economy.HireCost}, nil
	})
	if err != nil {
		return nil, err
	}
	return hired, nil
}

// SackAgents lets go of available agents; they stay on the roster as
// terminated records.
func (e Engine) SackAgents(ctx context.Context, gameID string, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "agent.sacked", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateSack(state, agentIDs); err != nil {
			return nil, err
		}
		for _, id := range agentIDs {
			state.AgentByID(id).Terminate(state.Turn, domain.Sacked, 0)
		}
		return events.EventPayload{"agent_ids": agentIDs}, nil
	})
	return err
}

// RecallAgents aborts assignments. Agents working on-site travel back
// through transit; agents still in transit turn around in place. Recalled
// investigators leave their investigation, abandoning it when the roster
// empties. Agents committed to a mission cannot be recalled.
func (e Engine) RecallAgents(ctx context.Context, gameID string, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "agent.recalled", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateRecall(state, agentIDs); err != nil {
			return nil, err
		}
		for _, id := range agentIDs {
			a := state.AgentByID(id)
			if a.Duty.Kind == domain.DutyLead {
				li := state.InvestigationByID(a.Duty.LeadID)
				li.RemoveAgent(id)
				if len(li.AgentIDs) == 0 {
					li.State = domain.LeadAbandoned
				}
			}
			a.Assign(domain.StartingTransit, domain.StandbyDuty())
		}
		return events.EventPayload{"agent_ids": agentIDs}, nil
	})
	return err
}

// AssignContracting sends available agents out on income work.
func (e Engine) AssignContracting(ctx context.Context, gameID string, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "agent.contracting", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateAssignable(state, agentIDs); err != nil {
			return nil, err
		}
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.ContractingDuty())
		}
		return events.EventPayload{"agent_ids": agentIDs}, nil
	})
	return err
}

// AssignEspionage sends available agents into the field to watch faction
// activity; each one eases panic a little every turn it stays out.
func (e Engine) AssignEspionage(ctx context.Context, gameID string, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "agent.espionage", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateAssignable(state, agentIDs); err != nil {
			return nil, err
		}
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.EspionageDuty())
		}
		return events.EventPayload{"agent_ids": agentIDs}, nil
	})
	return err
}

// AssignTraining sends available agents to the academy, bounded by the
// training cap.
func (e Engine) AssignTraining(ctx context.Context, gameID string, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "agent.training", "agent", "", func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateAssignable(state, agentIDs); err != nil {
			return nil, err
		}
		if err := ValidateTrainingCapacity(state, len(agentIDs)); err != nil {
			return nil, err
		}
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.TrainingDuty())
		}
		return events.EventPayload{"agent_ids": agentIDs}, nil
	})
	return err
}

// DeployMission commits a squad to an active mission. The squad travels
// through transit; the battle resolves during turn advancement once the
// whole roster has arrived.
func (e Engine) DeployMission(ctx context.Context, gameID string, missionID int64, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "mission.deployed", "mission", fmt.Sprint(missionID), func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateDeploy(state, missionID, agentIDs); err != nil {
			return nil, err
		}
		state.MissionByID(missionID).Deploy(agentIDs)
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.MissionDuty(missionID))
		}
		return events.EventPayload{"mission_id": missionID, "agent_ids": agentIDs}, nil
	})
	return err
}

// StartInvestigation opens an investigation into a known lead and sends
// the team into transit toward it.
func (e Engine) StartInvestigation(ctx context.Context, gameID, leadID string, agentIDs []int64) (*domain.LeadInvestigation, error) {
	var li *domain.LeadInvestigation
	_, err := e.withState(ctx, gameID, "lead.started", "lead", leadID, func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateStartInvestigation(state, e.Rules, leadID, agentIDs); err != nil {
			return nil, err
		}
		li = domain.NewLeadInvestigation(state.AllocateID(), leadID, agentIDs, state.Turn)
		state.Investigations = append(state.Investigations, li)
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.LeadDuty(li.ID))
		}
		return events.EventPayload{"investigation_id": li.ID, "agent_ids": agentIDs}, nil
	})
	if err != nil {
		return nil, err
	}
	return li, nil
}

// ReinforceInvestigation adds agents to a running investigation.
func (e Engine) ReinforceInvestigation(ctx context.Context, gameID string, investigationID int64, agentIDs []int64) error {
	_, err := e.withState(ctx, gameID, "lead.reinforced", "lead", fmt.Sprint(investigationID), func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidateReinforce(state, investigationID, agentIDs); err != nil {
			return nil, err
		}
		li := state.InvestigationByID(investigationID)
		li.AgentIDs = append(li.AgentIDs, agentIDs...)
		for _, id := range agentIDs {
			state.AgentByID(id).Assign(domain.StartingTransit, domain.LeadDuty(li.ID))
		}
		return events.EventPayload{"investigation_id": li.ID, "agent_ids": agentIDs}, nil
	})
	return err
}

// PurchaseUpgrade buys a capacity tier. Each upgrade can be bought once.
func (e Engine) PurchaseUpgrade(ctx context.Context, gameID, upgradeID string) error {
	_, err := e.withState(ctx, gameID, "upgrade.purchased", "upgrade", upgradeID, func(state *domain.GameState) (events.EventPayload, error) {
		if err := ValidatePurchase(state, e.Rules, upgradeID); err != nil {
			return nil, err
		}
		def := e.Rules.Upgrades[upgradeID]
		state.Money -= def.Cost
		state.Upgrades = append(state.Upgrades, upgradeID)
		switch def.Capacity {
		case "agents":
			state.Caps.Agents += def.Adds
		case "transport":
			state.Caps.Transport += def.Adds
		case "training":
			state.Caps.Training += def.Adds
		default:
			panic(domain.Defect{Msg: "upgrade " + upgradeID + ": capacity " + def.Capacity})
		}
		return events.EventPayload{"upgrade_id": upgradeID, "cost": def.Cost}, nil
	})
	return err
}

// AdvanceTurn runs the end-of-turn pipeline and persists the new snapshot
// and its report. Randomness is drawn from a stream derived from the game
// seed and the turn number, so replaying the same turn from the same
// snapshot gives the same outcome.
func (e Engine) AdvanceTurn(ctx context.Context, gameID string) (*domain.TurnReport, error) {
	g, err := e.Repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	state, err := e.Repo.GetSnapshot(ctx, g.ID, g.Turn)
	if err != nil {
		return nil, err
	}
	src := rng.New(state.Seed + int64(state.Turn)*1_000_003)
	report := turn.Advance(state, e.Rules, src)

	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSnapshot(ctx, tx, g.ID, state.Turn, state, now); err != nil {
		return nil, err
	}
	if err := e.Repo.InsertReport(ctx, tx, g.ID, report, now); err != nil {
		return nil, err
	}
	if err := e.Repo.SetGameTurn(ctx, tx, g.ID, state.Turn, now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "turn.advanced", g.ID, "game", g.ID, events.EventPayload{
		"turn":  report.Turn,
		"panic": state.Panic,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

// Undo rewinds the game by one turn, dropping the later snapshot and its
// report. Commands issued since the last advancement are lost with the
// snapshot they were applied to.
func (e Engine) Undo(ctx context.Context, gameID string) (int, error) {
	g, err := e.Repo.GetGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if g.Turn == 0 {
		return 0, reject(CodeInvalidState, "nothing to undo at turn 0")
	}
	target := g.Turn - 1
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteSnapshotsAfter(ctx, tx, g.ID, target); err != nil {
		return 0, err
	}
	if err := e.Repo.SetGameTurn(ctx, tx, g.ID, target, now); err != nil {
		return 0, err
	}
	if err := e.Events.Append(ctx, tx, "turn.undone", g.ID, "game", g.ID, events.EventPayload{
		"from_turn": g.Turn,
		"to_turn":   target,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return target, nil
}
