package turn

import (
	"testing"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/faction"
	"vigil/internal/fixed"
	"vigil/internal/rng"
)

func newTurnState() (*domain.GameState, *config.Rules) {
	rules := config.Default()
	state := domain.NewGameState("g1", "test", 1)
	state.Money = rules.Game.StartMoney
	state.Funding = rules.Game.StartFunding
	state.Panic = rules.Game.StartPanic
	state.Caps = domain.Caps{
		Agents:    rules.Game.AgentCap,
		Transport: rules.Game.TransportCap,
		Training:  rules.Game.TrainingCap,
	}
	return state, rules
}

func addAgent(state *domain.GameState, rules *config.Rules) *domain.Agent {
	a := domain.NewAgent(
		state.AllocateID(),
		"agent",
		rules.Agents.RookieSkill,
		rules.Agents.MaxHitPoints,
		domain.Weapon{
			Name:      rules.Agents.Weapon.Name,
			Damage:    rules.Agents.Weapon.Damage,
			MinDamage: rules.Agents.Weapon.MinDamage,
			MaxDamage: rules.Agents.Weapon.MaxDamage,
		},
		state.Turn,
	)
	state.Agents = append(state.Agents, a)
	return a
}

func TestSteadyStateTurnTouchesOnlyTheExpected(t *testing.T) {
	state, rules := newTurnState()
	a1 := addAgent(state, rules)
	a2 := addAgent(state, rules)
	a1.Exhaustion = fixed.FromInt(25)

	skillBefore := a1.Skill
	moneyBefore := state.Money

	// An empty scripted source panics on any draw: a steady state must not
	// consume randomness.
	report := Advance(state, rules, rng.NewScripted())

	if state.Turn != 1 {
		t.Fatalf("turn = %d", state.Turn)
	}
	wantMoney := moneyBefore - 2*rules.Economy.UpkeepPerAgent + state.Funding
	if state.Money != wantMoney {
		t.Fatalf("money = %d, want %d", state.Money, wantMoney)
	}
	if state.Funding != rules.Game.StartFunding {
		t.Fatalf("funding moved: %d", state.Funding)
	}
	if state.Panic.Cmp(rules.Game.StartPanic) != 0 {
		t.Fatalf("panic moved: %v", state.Panic)
	}
	if a1.Exhaustion.Cmp(fixed.FromInt(15)) != 0 {
		t.Fatalf("exhaustion = %v, want 15", a1.Exhaustion)
	}
	if a1.Skill.Cmp(skillBefore) != 0 || a2.State != domain.Available {
		t.Fatal("standby agent mutated beyond exhaustion recovery")
	}
	if report.Upkeep != 2*rules.Economy.UpkeepPerAgent || report.ContractingIncome != 0 {
		t.Fatalf("report upkeep/income = %d/%d", report.Upkeep, report.ContractingIncome)
	}
	for name, d := range report.AgentCounts {
		if d.Delta != 0 {
			t.Fatalf("agent count %s moved: %+v", name, d)
		}
	}
	if state.Report != report {
		t.Fatal("report not attached to state")
	}
}

func TestExistentialExpirySetsPanicToOne(t *testing.T) {
	state, rules := newTurnState()
	state.Panic = fixed.MustFromFloat(0.3)
	state.Factions = append(state.Factions, domain.NewFaction("exalt", "EXALT", 1, 5))

	m := faction.SpawnMission(state, rules, "endgame-ritual", "exalt")
	m.ExpiresIn = 1

	report := Advance(state, rules, rng.NewScripted())

	if m.State != domain.MissionExpired {
		t.Fatalf("mission state = %v", m.State)
	}
	if state.Panic.Cmp(fixed.One) != 0 {
		t.Fatalf("panic = %v, want exactly 1", state.Panic)
	}
	if len(report.ExpiredMissions) != 1 || report.ExpiredMissions[0] != m.ID {
		t.Fatalf("expired missions = %v", report.ExpiredMissions)
	}
}

func TestContractingAndTrainingAccrue(t *testing.T) {
	state, rules := newTurnState()
	worker := addAgent(state, rules)
	student := addAgent(state, rules)
	worker.Assign(domain.OnAssignment, domain.ContractingDuty())
	student.Assign(domain.InTraining, domain.TrainingDuty())
	skillBefore := student.Skill

	report := Advance(state, rules, rng.NewScripted())

	if report.ContractingIncome != rules.Economy.ContractingIncome {
		t.Fatalf("income = %d", report.ContractingIncome)
	}
	if worker.Exhaustion.Cmp(rules.Agents.ContractingExhaustion) != 0 {
		t.Fatalf("worker exhaustion = %v", worker.Exhaustion)
	}
	wantSkill := skillBefore.Add(rules.Agents.TrainingSkillGain)
	if student.Skill.Cmp(wantSkill) != 0 {
		t.Fatalf("student skill = %v, want %v", student.Skill, wantSkill)
	}
	if student.TrainedSkill.Cmp(rules.Agents.TrainingSkillGain) != 0 {
		t.Fatalf("trained skill = %v", student.TrainedSkill)
	}
}

func TestEspionageEasesPanicAndTiresTheSpy(t *testing.T) {
	state, rules := newTurnState()
	spy := addAgent(state, rules)
	spy.Assign(domain.OnAssignment, domain.EspionageDuty())
	panicBefore := state.Panic

	report := Advance(state, rules, rng.NewScripted())

	if report.EspionageRelief.Cmp(rules.Economy.EspionagePanicRelief) != 0 {
		t.Fatalf("relief = %v, want %v", report.EspionageRelief, rules.Economy.EspionagePanicRelief)
	}
	wantPanic := panicBefore.Sub(rules.Economy.EspionagePanicRelief)
	if state.Panic.Cmp(wantPanic) != 0 {
		t.Fatalf("panic = %v, want %v", state.Panic, wantPanic)
	}
	if spy.Exhaustion.Cmp(rules.Agents.EspionageExhaustion) != 0 {
		t.Fatalf("spy exhaustion = %v", spy.Exhaustion)
	}
	if report.ContractingIncome != 0 {
		t.Fatalf("espionage earned income: %d", report.ContractingIncome)
	}
}

func TestRecoveryHealsLinearlyAndLandsOnMaxHP(t *testing.T) {
	state, rules := newTurnState()
	a := addAgent(state, rules)
	wound := fixed.FromInt(20)
	a.HitPoints = a.HitPoints.Sub(wound)
	a.WoundHP = wound
	a.RecoveryPerTurn = fixed.FromInt(5)
	a.Assign(domain.Recovering, domain.RecoveryDuty())

	for i := 0; i < 3; i++ {
		Advance(state, rules, rng.NewScripted())
		if a.State != domain.Recovering {
			t.Fatalf("turn %d: left recovery early", i+1)
		}
	}
	Advance(state, rules, rng.NewScripted())
	if a.State != domain.Available {
		t.Fatalf("state = %v after full recovery", a.State)
	}
	if a.HitPoints.Cmp(fixed.FromInt(a.MaxHitPoints)) != 0 {
		t.Fatalf("hp = %v, want exactly %d", a.HitPoints, a.MaxHitPoints)
	}
}

func TestTransitTakesOneFullTurn(t *testing.T) {
	state, rules := newTurnState()
	a := addAgent(state, rules)
	a.Assign(domain.StartingTransit, domain.TrainingDuty())

	Advance(state, rules, rng.NewScripted())
	if a.State != domain.InTransit {
		t.Fatalf("state = %v after first turn", a.State)
	}
	Advance(state, rules, rng.NewScripted())
	if a.State != domain.InTraining {
		t.Fatalf("state = %v after second turn", a.State)
	}
}

func TestInvestigationCompletionSpawnsLeadMissions(t *testing.T) {
	state, rules := newTurnState()
	a := addAgent(state, rules)

	li := domain.NewLeadInvestigation(state.AllocateID(), "street-network", []int64{a.ID}, state.Turn)
	li.Intel = fixed.FromInt(1000) // chance clamps to 1
	state.Investigations = append(state.Investigations, li)
	a.Assign(domain.OnAssignment, domain.LeadDuty(li.ID))

	src := rng.NewScripted()
	src.QueueFloat("intel.success", 0.5)

	report := Advance(state, rules, src)

	if li.State != domain.LeadDone {
		t.Fatalf("investigation state = %v", li.State)
	}
	if len(report.Investigations) != 1 {
		t.Fatalf("investigation reports = %d", len(report.Investigations))
	}
	spawned := report.Investigations[0].SpawnedMissions
	if len(spawned) != len(rules.Leads["street-network"].Spawns) {
		t.Fatalf("spawned %v, want one per lead template", spawned)
	}
	for _, id := range spawned {
		if state.MissionByID(id).State != domain.MissionActive {
			t.Fatalf("spawned mission %d not active", id)
		}
	}
	// Released in phase 8, promoted by the transit phase in the same turn.
	if a.State != domain.InTransit {
		t.Fatalf("released agent state = %v", a.State)
	}
	if state.LeadCompletions["street-network"] != 1 {
		t.Fatalf("completions = %d", state.LeadCompletions["street-network"])
	}
}

func TestDeploymentResolvesOnceRosterArrives(t *testing.T) {
	state, rules := newTurnState()
	state.Factions = append(state.Factions, domain.NewFaction("exalt", "EXALT", 1, 50))

	a := addAgent(state, rules)
	a.Skill = fixed.FromInt(90)

	enemy := domain.NewEnemy(state.AllocateID(), "thug 1", "thug", fixed.FromInt(20), 10,
		domain.Weapon{Name: "pistol", Damage: fixed.FromInt(6), MinDamage: 6, MaxDamage: 6}, false)
	m := domain.NewMission(state.AllocateID(), "Raid", "stash-raid", []*domain.Enemy{enemy}, 4, 0, "")
	m.Reward = domain.Reward{Money: 500, Suppression: map[string]int{"exalt": 2}}
	state.Missions = append(state.Missions, m)

	m.Deploy([]int64{a.ID})
	a.Assign(domain.OnMission, domain.MissionDuty(m.ID))

	src := rng.NewScripted()
	src.QueueFloat("battle.attack", 0.0)
	src.QueueInt("battle.damage", 2) // 8 base + 2 kills the 10 HP enemy

	moneyBefore := state.Money
	report := Advance(state, rules, src)

	if m.State != domain.MissionWon {
		t.Fatalf("mission state = %v", m.State)
	}
	if len(report.Missions) != 1 || report.Missions[0].MoneyReward != 500 {
		t.Fatalf("mission reports = %+v", report.Missions)
	}
	wantMoney := moneyBefore - rules.Economy.UpkeepPerAgent + state.Funding + 500
	if state.Money != wantMoney {
		t.Fatalf("money = %d, want %d", state.Money, wantMoney)
	}
	f := state.FactionByID("exalt")
	if f.SuppressionTurns != 1 {
		t.Fatalf("suppression = %d, want 2 granted minus 1 decay", f.SuppressionTurns)
	}
}

func TestDeploymentWaitsForTransit(t *testing.T) {
	state, rules := newTurnState()
	a := addAgent(state, rules)
	a.Skill = fixed.FromInt(90)

	enemy := domain.NewEnemy(state.AllocateID(), "thug 1", "thug", fixed.FromInt(20), 10,
		domain.Weapon{Name: "pistol", Damage: fixed.FromInt(6), MinDamage: 6, MaxDamage: 6}, false)
	m := domain.NewMission(state.AllocateID(), "Raid", "stash-raid", []*domain.Enemy{enemy}, 2, 0, "")
	state.Missions = append(state.Missions, m)

	m.Deploy([]int64{a.ID})
	a.Assign(domain.StartingTransit, domain.MissionDuty(m.ID))

	Advance(state, rules, rng.NewScripted())
	if m.State != domain.MissionDeployed || a.State != domain.InTransit {
		t.Fatalf("mission resolved before the roster arrived: %v / %v", m.State, a.State)
	}

	// The roster lands in the transit phase and the battle runs later the
	// same turn.
	src := rng.NewScripted()
	src.QueueFloat("battle.attack", 0.0)
	src.QueueInt("battle.damage", 2)
	Advance(state, rules, src)
	if m.State != domain.MissionWon {
		t.Fatalf("mission state = %v after arrival turn", m.State)
	}
}
