// Package intel advances lead investigations: success rolls, intel
// accumulation under diminishing returns ("probability pressure"), and the
// forced withdrawal of over-exhausted agents. Completion side effects that
// reach outside the investigation (spawning dependent missions) belong to
// the caller.
package intel

import (
	"vigil/internal/domain"
	"vigil/internal/fixed"
	"vigil/internal/power"
	"vigil/internal/rng"
)

// LabelSuccess is the decision-point label for the per-turn success roll.
const LabelSuccess = "intel.success"

const (
	// difficultyScale is K: an investigation's intel ceiling is
	// difficulty × K.
	difficultyScale = 10
	// contributionDiv converts an agent's effective skill into per-turn
	// intel input.
	contributionDiv = 10
	// withdrawExhaustion is the ceiling at which an agent is pulled out.
	withdrawExhaustion = 100
)

// workExhaustion is what a turn of investigation work costs each agent.
var workExhaustion = fixed.FromInt(4)

// Result describes what one turn did to one investigation.
type Result struct {
	Completed bool
	Abandoned bool
	Withdrawn []int64

	IntelBefore   fixed.Fixed
	IntelAfter    fixed.Fixed
	SuccessChance fixed.Fixed
}

// SuccessChance is the probability that an investigation at the given intel
// completes this turn.
func SuccessChance(intelAcc, difficulty fixed.Fixed) fixed.Fixed {
	ceiling := difficulty.MulInt(difficultyScale)
	domain.Check(!ceiling.IsZero(), "investigation with zero difficulty")
	return fixed.Min(intelAcc.Div(ceiling), fixed.One)
}

// Advance runs one turn of an Active investigation. It mutates the
// investigation and its agents; released agents leave toward standby via
// transit, never directly to Available.
func Advance(state *domain.GameState, li *domain.LeadInvestigation, difficulty fixed.Fixed, src rng.Source) Result {
	domain.Check(li.State == domain.LeadActive, "investigation %d: advancing in state %v", li.ID, li.State)

	res := Result{IntelBefore: li.Intel}
	res.SuccessChance = SuccessChance(li.Intel, difficulty)

	if src.Float64(LabelSuccess) < res.SuccessChance.Float64() {
		li.State = domain.LeadDone
		state.LeadCompletions[li.LeadID]++
		releaseAll(state, li)
		res.Completed = true
		res.IntelAfter = li.Intel
		return res
	}

	res.Withdrawn = withdrawExhausted(state, li)
	if len(li.AgentIDs) == 0 {
		li.State = domain.LeadAbandoned
		res.Abandoned = true
		res.IntelAfter = li.Intel
		return res
	}

	accumulate(state, li, difficulty)
	res.IntelAfter = li.Intel
	return res
}

// withdrawExhausted pulls out every agent at or past the exhaustion ceiling
// and shrinks accumulated intel in proportion to the investigating skill
// removed.
func withdrawExhausted(state *domain.GameState, li *domain.LeadInvestigation) []int64 {
	oldSkill := teamSkill(state, li)

	var withdrawn []int64
	for _, id := range append([]int64(nil), li.AgentIDs...) {
		a := state.AgentByID(id)
		if a.Exhaustion.Cmp(fixed.FromInt(withdrawExhaustion)) >= 0 {
			li.RemoveAgent(id)
			a.Assign(domain.StartingTransit, domain.StandbyDuty())
			withdrawn = append(withdrawn, id)
		}
	}
	if len(withdrawn) == 0 {
		return nil
	}

	if oldSkill.IsZero() {
		return withdrawn
	}
	newSkill := teamSkill(state, li)
	loss := li.Intel.Mul(fixed.One.Sub(newSkill.Div(oldSkill)))
	li.Intel = fixed.Max(li.Intel.Sub(loss), fixed.Zero)
	return withdrawn
}

// accumulate adds this turn's intel gain and charges the agents for the
// work. Only agents on site contribute; a team still in transit gains
// nothing and pays nothing. Resistance grows as intel approaches the
// difficulty-derived ceiling, so returns diminish.
func accumulate(state *domain.GameState, li *domain.LeadInvestigation, difficulty fixed.Fixed) {
	var arrived []*domain.Agent
	for _, id := range li.AgentIDs {
		if a := state.AgentByID(id); a.State == domain.OnAssignment {
			arrived = append(arrived, a)
		}
	}
	if len(arrived) == 0 {
		return
	}

	ceiling := difficulty.MulInt(difficultyScale)
	progress := fixed.Min(li.Intel.Div(ceiling), fixed.One)
	resistance := fixed.Min(progress.Mul(progress), fixed.One)

	input := fixed.Zero
	for _, a := range arrived {
		input = input.Add(power.EffectiveSkill(&a.Actor).DivInt(contributionDiv))
	}
	// Σcontrib × n^1.5 / n: a superlinear team bonus attenuated back to a
	// per-agent basis.
	input = input.Mul(fixed.FromInt(len(arrived)).Sqrt())

	gain := input.Mul(fixed.One.Sub(resistance))
	li.Intel = li.Intel.Add(gain)

	for _, a := range arrived {
		a.AddExhaustion(workExhaustion)
	}
}

// teamSkill sums the assigned agents' intel contributions.
func teamSkill(state *domain.GameState, li *domain.LeadInvestigation) fixed.Fixed {
	total := fixed.Zero
	for _, id := range li.AgentIDs {
		a := state.AgentByID(id)
		total = total.Add(power.EffectiveSkill(&a.Actor).DivInt(contributionDiv))
	}
	return total
}

// releaseAll sends every assigned agent home through transit.
func releaseAll(state *domain.GameState, li *domain.LeadInvestigation) {
	for _, id := range li.AgentIDs {
		state.AgentByID(id).Assign(domain.StartingTransit, domain.StandbyDuty())
	}
	li.AgentIDs = nil
}
