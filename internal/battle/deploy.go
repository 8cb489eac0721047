package battle

import (
	"vigil/internal/domain"
	"vigil/internal/fixed"
	"vigil/internal/power"
	"vigil/internal/rng"
)

const (
	// flatMissionExhaustion is paid by every surviving agent after a
	// deployment, win or lose.
	flatMissionExhaustionPts = 10
	// lossExhaustionScalePts scales the extra exhaustion from losing
	// teammates: the lost fraction, rounded up to 5% increments, times this.
	lossExhaustionScalePts = 40
	// recoveryTurns is the length of the linear wound-restoration schedule.
	recoveryTurns = 4
)

// survivalBonus indexes skill gained for surviving a mission by the agent's
// prior mission count; the final entry repeats for every later mission.
var survivalBonus = [4]fixed.Fixed{
	fixed.One,
	fixed.MustFromFloat(0.75),
	fixed.MustFromFloat(0.5),
	fixed.MustFromFloat(0.25),
}

// EvaluateDeployment resolves a Deployed mission's battle and applies the
// consequences: casualties, exhaustion, skill growth, and recovery or
// standby transitions for survivors. It moves the mission to its terminal
// state and returns the report fragment describing what happened.
func EvaluateDeployment(state *domain.GameState, m *domain.Mission, src rng.Source) domain.MissionReport {
	domain.Check(m.State == domain.MissionDeployed, "mission %d: evaluating in state %v", m.ID, m.State)

	agents := make([]*domain.Agent, len(m.DeployedAgentIDs))
	for i, id := range m.DeployedAgentIDs {
		agents[i] = state.AgentByID(id)
	}

	res := Resolve(agents, m.Enemies, src)

	neutralized := true
	enemiesDown := 0
	for _, e := range m.Enemies {
		if !power.Active(&e.Actor) {
			enemiesDown++
		} else {
			neutralized = false
		}
	}
	domain.Check(!(neutralized && res.Outcome == Retreated),
		"mission %d: enemies neutralized and agents retreated", m.ID)

	lost := 0
	for _, a := range agents {
		if !a.Alive() {
			lost++
		}
	}
	lossPenalty := lossExhaustion(lost, len(agents))

	skillGained := fixed.Zero
	for _, a := range agents {
		if !a.Alive() {
			a.Terminate(state.Turn, domain.KIA, res.KilledBy[a.ID])
			continue
		}

		a.AddExhaustion(fixed.FromInt(flatMissionExhaustionPts))
		a.AddExhaustion(lossPenalty)

		gain := res.SkillDeltas[a.ID].Add(survivalBonus[min(a.MissionCount, len(survivalBonus)-1)])
		a.Skill = a.Skill.Add(gain)
		skillGained = skillGained.Add(gain)
		a.MissionCount++

		wound := fixed.FromInt(a.MaxHitPoints).Sub(a.HitPoints)
		if wound.IsZero() {
			a.Assign(domain.Available, domain.StandbyDuty())
		} else {
			a.Assign(domain.Recovering, domain.RecoveryDuty())
			a.WoundHP = wound
			a.RecoveryPerTurn = fixed.Max(wound.DivInt(recoveryTurns), fixed.Fixed(1))
		}
	}

	m.State = res.Outcome.MissionState()
	m.BattleLog = res.Log
	m.ResolvedTurn = state.Turn

	report := domain.MissionReport{
		MissionID:   m.ID,
		Name:        m.Name,
		Outcome:     m.State.String(),
		Rounds:      res.Rounds,
		AgentsLost:  lost,
		EnemiesDown: enemiesDown,
		SkillGained: skillGained,
		Log:         res.Log,
	}
	if m.State == domain.MissionWon {
		report.MoneyReward = m.Reward.Money
	}
	return report
}

// lossExhaustion converts the fraction of teammates lost, rounded up to 5%
// increments, into extra exhaustion points.
func lossExhaustion(lost, deployed int) fixed.Fixed {
	if lost == 0 {
		return fixed.Zero
	}
	frac := fixed.FromInt(lost).DivInt(deployed)
	steps := frac.MulInt(20)
	n := steps.Floor()
	if steps != fixed.FromInt(int(n)) {
		n++
	}
	return fixed.FromInt(int(n)).DivInt(20).MulInt(lossExhaustionScalePts)
}
