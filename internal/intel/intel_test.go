package intel

import (
	"testing"

	"vigil/internal/domain"
	"vigil/internal/fixed"
	"vigil/internal/rng"
)

var testWeapon = domain.Weapon{
	Name:      "sidearm",
	Damage:    fixed.FromInt(10),
	MinDamage: 10,
	MaxDamage: 10,
}

func investigationState(t *testing.T, agentSkills ...int) (*domain.GameState, *domain.LeadInvestigation) {
	t.Helper()
	state := domain.NewGameState("g1", "test", 1)
	var ids []int64
	for _, skill := range agentSkills {
		id := state.AllocateID()
		a := domain.NewAgent(id, "agent", fixed.FromInt(skill), 100, testWeapon, 0)
		state.Agents = append(state.Agents, a)
		ids = append(ids, id)
	}
	li := domain.NewLeadInvestigation(state.AllocateID(), "lead-hq", ids, state.Turn)
	state.Investigations = append(state.Investigations, li)
	for _, id := range ids {
		state.AgentByID(id).Assign(domain.OnAssignment, domain.LeadDuty(li.ID))
	}
	return state, li
}

func TestIntelAccumulatesAndChanceIsMonotone(t *testing.T) {
	state, li := investigationState(t, 50, 50)
	difficulty := fixed.FromInt(100)
	src := rng.Constant{F: 0.999} // never completes

	prevIntel := li.Intel
	prevChance := fixed.Zero
	for turn := 0; turn < 10; turn++ {
		res := Advance(state, li, difficulty, src)
		if res.Completed || res.Abandoned {
			t.Fatalf("turn %d: unexpected terminal result %+v", turn, res)
		}
		if res.IntelAfter.Cmp(prevIntel) <= 0 {
			t.Fatalf("turn %d: intel did not increase: %v -> %v", turn, prevIntel, res.IntelAfter)
		}
		if res.SuccessChance.Cmp(prevChance) < 0 {
			t.Fatalf("turn %d: success chance decreased: %v -> %v", turn, prevChance, res.SuccessChance)
		}
		prevIntel = res.IntelAfter
		prevChance = res.SuccessChance
	}
	if li.State != domain.LeadActive {
		t.Fatalf("state = %v, want active", li.State)
	}
}

func TestGainDiminishesNearCeiling(t *testing.T) {
	state, li := investigationState(t, 50)
	difficulty := fixed.FromInt(10)
	src := rng.Constant{F: 0.999}

	first := Advance(state, li, difficulty, src)
	earlyGain := first.IntelAfter.Sub(first.IntelBefore)

	// Park the investigation near its ceiling and strip the exhaustion the
	// first pass charged, so only resistance differs.
	li.Intel = fixed.FromInt(95)
	state.Agents[0].Exhaustion = fixed.Zero

	late := Advance(state, li, difficulty, src)
	lateGain := late.IntelAfter.Sub(late.IntelBefore)

	if lateGain.Cmp(earlyGain) >= 0 {
		t.Fatalf("gain near ceiling %v not below early gain %v", lateGain, earlyGain)
	}
	if lateGain.Cmp(fixed.Zero) <= 0 {
		t.Fatalf("gain near ceiling should stay positive, got %v", lateGain)
	}
}

func TestCompletionReleasesAgentsThroughTransit(t *testing.T) {
	state, li := investigationState(t, 50, 60)
	li.Intel = fixed.FromInt(500)
	difficulty := fixed.FromInt(100)

	src := rng.NewScripted()
	src.QueueFloat(LabelSuccess, 0.3) // chance is 0.5, so this completes

	res := Advance(state, li, difficulty, src)
	if !res.Completed {
		t.Fatalf("expected completion, got %+v", res)
	}
	if li.State != domain.LeadDone {
		t.Fatalf("state = %v, want done", li.State)
	}
	if len(li.AgentIDs) != 0 {
		t.Fatalf("roster not cleared: %v", li.AgentIDs)
	}
	if got := state.LeadCompletions["lead-hq"]; got != 1 {
		t.Fatalf("lead completions = %d, want 1", got)
	}
	for _, a := range state.Agents {
		if a.State != domain.StartingTransit {
			t.Fatalf("agent %d state = %v, want starting transit", a.ID, a.State)
		}
		if a.Duty.Kind != domain.DutyStandby {
			t.Fatalf("agent %d duty = %v, want standby", a.ID, a.Duty.Kind)
		}
	}
	state.CheckInvariants()
}

func TestExhaustedAgentIsWithdrawnWithIntelLoss(t *testing.T) {
	state, li := investigationState(t, 80, 20)
	li.Intel = fixed.FromInt(100)
	state.Agents[0].Exhaustion = fixed.FromInt(120)
	difficulty := fixed.FromInt(1000)
	src := rng.Constant{F: 0.999}

	res := Advance(state, li, difficulty, src)
	if len(res.Withdrawn) != 1 || res.Withdrawn[0] != state.Agents[0].ID {
		t.Fatalf("withdrawn = %v, want exhausted agent only", res.Withdrawn)
	}
	if res.Abandoned {
		t.Fatal("one agent remains, investigation should stay active")
	}
	if state.Agents[0].State != domain.StartingTransit {
		t.Fatalf("withdrawn agent state = %v", state.Agents[0].State)
	}

	// Removing the exhausted agent costs intel in proportion to its share
	// of investigating skill; the remainder keeps accumulating, so the
	// post-turn total lands between the loss floor and the old value.
	if li.Intel.Cmp(fixed.FromInt(100)) >= 0 {
		t.Fatalf("intel %v did not shrink after withdrawal", li.Intel)
	}
	if li.Intel.Cmp(fixed.FromInt(80)) < 0 {
		t.Fatalf("intel %v lost more than the withdrawn agent's share", li.Intel)
	}
	state.CheckInvariants()
}

func TestLosingEveryAgentAbandonsTheInvestigation(t *testing.T) {
	state, li := investigationState(t, 50)
	li.Intel = fixed.FromInt(30)
	state.Agents[0].Exhaustion = fixed.FromInt(100)
	src := rng.Constant{F: 0.999}

	res := Advance(state, li, fixed.FromInt(1000), src)
	if !res.Abandoned {
		t.Fatalf("expected abandonment, got %+v", res)
	}
	if li.State != domain.LeadAbandoned {
		t.Fatalf("state = %v, want abandoned", li.State)
	}
	state.CheckInvariants()
}

func TestLargerTeamOutpacesSumOfParts(t *testing.T) {
	solo, liSolo := investigationState(t, 50)
	quad, liQuad := investigationState(t, 50, 50, 50, 50)
	src := rng.Constant{F: 0.999}
	difficulty := fixed.FromInt(1000)

	soloGain := Advance(solo, liSolo, difficulty, src).IntelAfter
	quadGain := Advance(quad, liQuad, difficulty, src).IntelAfter

	if quadGain.Cmp(soloGain.MulInt(4)) <= 0 {
		t.Fatalf("four agents gained %v, want more than 4x solo gain %v", quadGain, soloGain)
	}
}
