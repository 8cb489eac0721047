package script

import (
	"context"

	"vigil/internal/engine"
)

// ActionHire recruits a single rookie.
func ActionHire(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
	_, err := e.HireAgent(ctx, gameID)
	return err
}

// DeployAction sends up to teamSize idle agents at the most urgent mission.
func DeployAction(teamSize int) ActionFunc {
	return func(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
		missionID := env.UrgentMission()
		if missionID == 0 {
			return nil
		}
		team := env.IdleAgents()
		if limit := env.TransportCap(); teamSize > limit {
			teamSize = limit
		}
		if len(team) > teamSize {
			team = team[:teamSize]
		}
		if len(team) == 0 {
			return nil
		}
		return e.DeployMission(ctx, gameID, missionID, team)
	}
}

// InvestigateAction puts up to teamSize idle agents on an open lead.
func InvestigateAction(teamSize int) ActionFunc {
	return func(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
		leadID := env.OpenLead()
		if leadID == "" {
			return nil
		}
		team := env.IdleAgents()
		if len(team) > teamSize {
			team = team[:teamSize]
		}
		if len(team) == 0 {
			return nil
		}
		_, err := e.StartInvestigation(ctx, gameID, leadID, team)
		return err
	}
}

// TrainAction sends up to n idle agents to the academy.
func TrainAction(n int) ActionFunc {
	return func(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
		if room := env.TrainingRoom(); n > room {
			n = room
		}
		team := env.IdleAgents()
		if len(team) > n {
			team = team[:n]
		}
		if len(team) == 0 {
			return nil
		}
		return e.AssignTraining(ctx, gameID, team)
	}
}

// ActionContractIdle sends every remaining idle agent out to earn income.
func ActionContractIdle(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
	team := env.IdleAgents()
	if len(team) == 0 {
		return nil
	}
	return e.AssignContracting(ctx, gameID, team)
}

// ActionBuyUpgrade purchases the cheapest upgrade in budget.
func ActionBuyUpgrade(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error {
	id := env.AffordableUpgrade()
	if id == "" {
		return nil
	}
	return e.PurchaseUpgrade(ctx, gameID, id)
}
