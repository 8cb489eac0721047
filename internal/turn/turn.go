// Package turn sequences one full turn advancement: agent lifecycle upkeep,
// investigations, transit, mission expiry and resolution, asset and panic
// deltas, and faction activity, in a fixed phase order where each phase
// reads the previous phase's committed state. The returned TurnReport is
// the only channel consumers learn changes from.
package turn

import (
	"vigil/internal/battle"
	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/faction"
	"vigil/internal/fixed"
	"vigil/internal/intel"
	"vigil/internal/rng"
)

// Advance runs one turn against the state graph. The state must satisfy all
// invariants on entry; it satisfies them again on return or Advance panics
// with a Defect.
func Advance(state *domain.GameState, rules *config.Rules, src rng.Source) *domain.TurnReport {
	state.CheckInvariants()

	prevMoney := state.Money
	prevFunding := state.Funding
	prevPanic := state.Panic

	// Phase 1: new turn.
	state.Turn++
	state.Actions = 0

	// Phase 2: upkeep against the pre-update roster.
	upkeep := rules.Economy.UpkeepPerAgent * int64(len(state.LiveAgents()))

	// Phase 3: agent-count snapshot for the report diff.
	prevCounts := state.AgentCounts()

	// Phase 4: standing agents shed exhaustion.
	for _, a := range state.Agents {
		if a.State == domain.Available {
			a.RecoverExhaustion(rules.Agents.StandbyRecovery)
		}
	}

	// Phase 5: wounded agents heal.
	advanceRecovering(state, rules)

	// Phase 6: contracting income and espionage field work.
	income := contractingIncome(state, rules)
	relief := espionageRelief(state, rules)

	// Phase 7: training.
	for _, a := range state.Agents {
		if a.State == domain.InTraining {
			a.Skill = a.Skill.Add(rules.Agents.TrainingSkillGain)
			a.TrainedSkill = a.TrainedSkill.Add(rules.Agents.TrainingSkillGain)
			a.AddExhaustion(rules.Agents.TrainingExhaustion)
		}
	}

	// Phase 8: investigations, before transit so released agents move this
	// turn.
	invReports := advanceInvestigations(state, rules, src)

	// Phase 9: transit.
	advanceTransit(state)

	// Phase 10: mission expiry.
	expired := tickExpiry(state)

	// Phase 11: resolve deployments whose rosters have arrived.
	missionReports := resolveDeployments(state, src)

	// Phases 12-13: assets and panic.
	reward := collectRewards(state, missionReports)
	state.Money += -upkeep + income + state.Funding + reward.money
	state.Funding += reward.funding
	for _, id := range expired {
		state.Funding -= state.MissionByID(id).Penalty.Funding
	}

	panicLevel := state.Panic
	for _, id := range expired {
		panicLevel = panicLevel.Add(state.MissionByID(id).Penalty.PanicIncrease)
	}
	panicLevel = panicLevel.Sub(reward.panicReduction).Sub(relief)
	state.Panic = panicLevel.Clamp(fixed.Zero, fixed.One)
	for _, id := range expired {
		if state.MissionByID(id).Penalty.ExistentialLoss {
			state.Panic = fixed.One
		}
	}

	// Phase 14: factions.
	factionReports := advanceFactions(state, rules, reward.suppression, src)

	report := &domain.TurnReport{
		Turn:              state.Turn,
		Money:             domain.NewDelta(prevMoney, state.Money),
		Funding:           domain.NewDelta(prevFunding, state.Funding),
		Panic:             domain.NewFixedDelta(prevPanic, state.Panic),
		Upkeep:            upkeep,
		ContractingIncome: income,
		EspionageRelief:   relief,
		AgentCounts:       countDeltas(prevCounts, state.AgentCounts()),
		Missions:          missionReports,
		ExpiredMissions:   expired,
		Investigations:    invReports,
		Factions:          factionReports,
	}
	state.Report = report

	state.CheckInvariants()
	return report
}

// advanceRecovering heals wounded agents linearly. Recovery bookkeeping is
// set up so the heal lands exactly on max HP; anything else is a defect.
func advanceRecovering(state *domain.GameState, rules *config.Rules) {
	for _, a := range state.Agents {
		if a.State != domain.Recovering {
			continue
		}
		heal := fixed.Min(a.RecoveryPerTurn, a.WoundHP)
		a.HitPoints = a.HitPoints.Add(heal)
		a.WoundHP = a.WoundHP.Sub(heal)
		a.RecoverExhaustion(rules.Agents.StandbyRecovery)
		if a.WoundHP.IsZero() {
			domain.Check(a.HitPoints.Cmp(fixed.FromInt(a.MaxHitPoints)) == 0,
				"agent %d finished recovery at %v/%d HP", a.ID, a.HitPoints, a.MaxHitPoints)
			a.Assign(domain.Available, domain.StandbyDuty())
		}
	}
}

func contractingIncome(state *domain.GameState, rules *config.Rules) int64 {
	var income int64
	for _, a := range state.Agents {
		if a.State == domain.OnAssignment && a.Duty.Kind == domain.DutyContracting {
			income += rules.Economy.ContractingIncome
			a.AddExhaustion(rules.Agents.ContractingExhaustion)
		}
	}
	return income
}

// espionageRelief sums the panic relief earned by espionage agents in the
// field. The relief applies in the panic phase so it competes with expiry
// penalties on the same clamp.
func espionageRelief(state *domain.GameState, rules *config.Rules) fixed.Fixed {
	relief := fixed.Zero
	for _, a := range state.Agents {
		if a.State == domain.OnAssignment && a.Duty.Kind == domain.DutyEspionage {
			relief = relief.Add(rules.Economy.EspionagePanicRelief)
			a.AddExhaustion(rules.Agents.EspionageExhaustion)
		}
	}
	return relief
}

func advanceInvestigations(state *domain.GameState, rules *config.Rules, src rng.Source) []domain.InvestigationReport {
	var reports []domain.InvestigationReport
	for _, li := range state.Investigations {
		if li.State != domain.LeadActive {
			continue
		}
		lead, ok := rules.Lead(li.LeadID)
		domain.Check(ok, "investigation %d: unknown lead %s", li.ID, li.LeadID)

		res := intel.Advance(state, li, lead.Difficulty, src)
		rep := domain.InvestigationReport{
			InvestigationID: li.ID,
			LeadID:          li.LeadID,
			Intel:           domain.NewFixedDelta(res.IntelBefore, res.IntelAfter),
			SuccessChance:   res.SuccessChance,
			Status:          li.State.String(),
			WithdrawnAgents: res.Withdrawn,
		}
		if res.Completed {
			for _, template := range lead.Spawns {
				m := faction.SpawnMission(state, rules, template, "")
				rep.SpawnedMissions = append(rep.SpawnedMissions, m.ID)
			}
		}
		reports = append(reports, rep)
	}
	return reports
}

// advanceTransit lands InTransit agents on their duty, then moves freshly
// dispatched agents into transit proper. The order gives every dispatch a
// full turn in the air.
func advanceTransit(state *domain.GameState) {
	for _, a := range state.Agents {
		if a.State == domain.InTransit {
			a.Assign(arrivalState(a.Duty), a.Duty)
		}
	}
	for _, a := range state.Agents {
		if a.State == domain.StartingTransit {
			a.Assign(domain.InTransit, a.Duty)
		}
	}
}

func arrivalState(d domain.Duty) domain.AgentState {
	switch d.Kind {
	case domain.DutyStandby:
		return domain.Available
	case domain.DutyContracting, domain.DutyEspionage, domain.DutyLead:
		return domain.OnAssignment
	case domain.DutyTraining:
		return domain.InTraining
	case domain.DutyMission:
		return domain.OnMission
	}
	panic(domain.Defect{Msg: "agent in transit toward duty " + d.Kind.String()})
}

func tickExpiry(state *domain.GameState) []int64 {
	var expired []int64
	for _, m := range state.Missions {
		if m.State != domain.MissionActive || m.ExpiresIn == domain.NoExpiry {
			continue
		}
		m.ExpiresIn--
		if m.ExpiresIn == 0 {
			m.State = domain.MissionExpired
			expired = append(expired, m.ID)
		}
	}
	return expired
}

func resolveDeployments(state *domain.GameState, src rng.Source) []domain.MissionReport {
	var reports []domain.MissionReport
	for _, m := range state.Missions {
		if m.State != domain.MissionDeployed || !rosterArrived(state, m) {
			continue
		}
		reports = append(reports, battle.EvaluateDeployment(state, m, src))
	}
	return reports
}

func rosterArrived(state *domain.GameState, m *domain.Mission) bool {
	for _, id := range m.DeployedAgentIDs {
		if state.AgentByID(id).State != domain.OnMission {
			return false
		}
	}
	return true
}

type rewards struct {
	money          int64
	funding        int64
	panicReduction fixed.Fixed
	suppression    map[string]int
}

func collectRewards(state *domain.GameState, missionReports []domain.MissionReport) rewards {
	r := rewards{suppression: map[string]int{}}
	for _, rep := range missionReports {
		m := state.MissionByID(rep.MissionID)
		if m.State != domain.MissionWon {
			continue
		}
		r.money += m.Reward.Money
		r.funding += m.Reward.Funding
		r.panicReduction = r.panicReduction.Add(m.Reward.PanicReduction)
		for factionID, turns := range m.Reward.Suppression {
			r.suppression[factionID] += turns
		}
	}
	return r
}

func advanceFactions(state *domain.GameState, rules *config.Rules, suppression map[string]int, src rng.Source) []domain.FactionReport {
	var reports []domain.FactionReport
	for _, f := range state.Factions {
		res := faction.Advance(state, f, rules, suppression[f.ID], src)
		rep := domain.FactionReport{
			FactionID:   f.ID,
			Level:       domain.NewDelta(int64(res.LevelBefore), int64(res.LevelAfter)),
			Suppression: domain.NewDelta(int64(res.SuppressionBefore), int64(res.SuppressionAfter)),
		}
		if res.Spawned != nil {
			rep.SpawnedMission = res.Spawned.ID
		}
		reports = append(reports, rep)
	}
	return reports
}

func countDeltas(prev, curr map[string]int64) map[string]domain.Delta {
	out := make(map[string]domain.Delta, len(curr))
	for k, c := range curr {
		out[k] = domain.NewDelta(prev[k], c)
	}
	for k, p := range prev {
		if _, ok := curr[k]; !ok {
			out[k] = domain.NewDelta(p, 0)
		}
	}
	return out
}
