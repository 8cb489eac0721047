package engine_test

import (
	"context"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/db"
	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	GameID string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	if _, err := db.EnsureWorkspace(dir); err != nil {
		t.Fatalf("workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	g, err := eng.CreateGame(ctx, "test-campaign", 42)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, GameID: g.ID}
}

func wantRejection(t *testing.T, err error) {
	t.Helper()
	if _, ok := engine.IsRejection(err); !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestCreateGameSeedsStartingState(t *testing.T) {
	env := newTestEnv(t)
	state, err := env.Engine.GetState(env.Ctx, env.GameID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	rules := env.Engine.Rules
	if state.Money != rules.Game.StartMoney || state.Funding != rules.Game.StartFunding {
		t.Fatalf("money %d funding %d", state.Money, state.Funding)
	}
	if len(state.Agents) != rules.Game.StartingAgents {
		t.Fatalf("expected %d starting agents, got %d", rules.Game.StartingAgents, len(state.Agents))
	}
	for _, a := range state.Agents {
		if !a.Idle() {
			t.Fatalf("agent %d starts %s", a.ID, a.State)
		}
	}
	if len(state.Factions) != len(rules.Factions) {
		t.Fatalf("expected %d factions, got %d", len(rules.Factions), len(state.Factions))
	}
	for _, f := range state.Factions {
		if f.Level != 1 {
			t.Fatalf("faction %s starts at level %d", f.ID, f.Level)
		}
	}
}

func TestHireChargesAndRespectsCap(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.Engine.GetState(env.Ctx, env.GameID)
	a, err := env.Engine.HireAgent(env.Ctx, env.GameID)
	if err != nil {
		t.Fatalf("hire: %v", err)
	}
	if !a.Idle() {
		t.Fatalf("hire arrives %s", a.State)
	}
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if after.Money != before.Money-env.Engine.Rules.Economy.HireCost {
		t.Fatalf("money %d after hire", after.Money)
	}
	// fill the roster to the cap, then expect a rejection
	for len(after.LiveAgents()) < after.Caps.Agents {
		if _, err := env.Engine.HireAgent(env.Ctx, env.GameID); err != nil {
			t.Fatalf("hire to cap: %v", err)
		}
		after, _ = env.Engine.GetState(env.Ctx, env.GameID)
	}
	_, err = env.Engine.HireAgent(env.Ctx, env.GameID)
	wantRejection(t, err)
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.Engine.GetState(env.Ctx, env.GameID)
	wantRejection(t, env.Engine.SackAgents(env.Ctx, env.GameID, []int64{9999}))
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if after.Actions != before.Actions {
		t.Fatalf("actions %d changed by rejected command", after.Actions)
	}
}

func TestSackTerminatesAvailableAgentsOnly(t *testing.T) {
	env := newTestEnv(t)
	state, _ := env.Engine.GetState(env.Ctx, env.GameID)
	id := state.Agents[0].ID
	if err := env.Engine.AssignContracting(env.Ctx, env.GameID, []int64{id}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	wantRejection(t, env.Engine.SackAgents(env.Ctx, env.GameID, []int64{id}))
	other := state.Agents[1].ID
	if err := env.Engine.SackAgents(env.Ctx, env.GameID, []int64{other}); err != nil {
		t.Fatalf("sack: %v", err)
	}
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	a := after.AgentByID(other)
	if !a.IsTerminated() || a.Termination != domain.Sacked {
		t.Fatalf("agent %d: %s/%v", other, a.State, a.Termination)
	}
}

func TestTrainingCapacityIsEnforced(t *testing.T) {
	env := newTestEnv(t)
	state, _ := env.Engine.GetState(env.Ctx, env.GameID)
	limit := state.Caps.Training
	var ids []int64
	for _, a := range state.Agents {
		ids = append(ids, a.ID)
	}
	if len(ids) <= limit {
		t.Skipf("default roster %d not above training cap %d", len(ids), limit)
	}
	if err := env.Engine.AssignTraining(env.Ctx, env.GameID, ids[:limit]); err != nil {
		t.Fatalf("assign to cap: %v", err)
	}
	wantRejection(t, env.Engine.AssignTraining(env.Ctx, env.GameID, ids[limit:limit+1]))
}

func TestEspionageAssignmentReachesTheField(t *testing.T) {
	env := newTestEnv(t)
	state, _ := env.Engine.GetState(env.Ctx, env.GameID)
	id := state.Agents[0].ID
	if err := env.Engine.AssignEspionage(env.Ctx, env.GameID, []int64{id}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	wantRejection(t, env.Engine.AssignEspionage(env.Ctx, env.GameID, []int64{id}))

	// Two turns of transit put the spy on assignment; the third turn eases
	// panic.
	for i := 0; i < 2; i++ {
		if _, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	mid, _ := env.Engine.GetState(env.Ctx, env.GameID)
	a := mid.AgentByID(id)
	if a.State != domain.OnAssignment || a.Duty.Kind != domain.DutyEspionage {
		t.Fatalf("agent %d: %s/%s", id, a.State, a.Duty.Kind)
	}
	report, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if report.EspionageRelief.IsZero() {
		t.Fatal("espionage produced no panic relief")
	}
	if err := env.Engine.RecallAgents(env.Ctx, env.GameID, []int64{id}); err != nil {
		t.Fatalf("recall: %v", err)
	}
}

func TestRecallPullsAgentOutOfInvestigation(t *testing.T) {
	env := newTestEnv(t)
	state, _ := env.Engine.GetState(env.Ctx, env.GameID)
	id := state.Agents[0].ID
	li, err := env.Engine.StartInvestigation(env.Ctx, env.GameID, "street-network", []int64{id})
	if err != nil {
		t.Fatalf("start investigation: %v", err)
	}
	if err := env.Engine.RecallAgents(env.Ctx, env.GameID, []int64{id}); err != nil {
		t.Fatalf("recall: %v", err)
	}
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if got := after.InvestigationByID(li.ID); got.State != domain.LeadAbandoned {
		t.Fatalf("investigation %s after sole investigator left", got.State)
	}
	a := after.AgentByID(id)
	if a.State != domain.StartingTransit || a.Duty.Kind != domain.DutyStandby {
		t.Fatalf("recalled agent %s/%s", a.State, a.Duty)
	}
}

func TestStartInvestigationRejectsSecondTeamOnSameLead(t *testing.T) {
	env := newTestEnv(t)
	state, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if _, err := env.Engine.StartInvestigation(env.Ctx, env.GameID, "street-network", []int64{state.Agents[0].ID}); err != nil {
		t.Fatalf("first team: %v", err)
	}
	_, err := env.Engine.StartInvestigation(env.Ctx, env.GameID, "street-network", []int64{state.Agents[1].ID})
	wantRejection(t, err)
}

func TestPurchaseUpgradeRaisesCapOnce(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if err := env.Engine.PurchaseUpgrade(env.Ctx, env.GameID, "barracks-1"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	def := env.Engine.Rules.Upgrades["barracks-1"]
	if after.Caps.Agents != before.Caps.Agents+def.Adds {
		t.Fatalf("agent cap %d", after.Caps.Agents)
	}
	if after.Money != before.Money-def.Cost {
		t.Fatalf("money %d", after.Money)
	}
	wantRejection(t, env.Engine.PurchaseUpgrade(env.Ctx, env.GameID, "barracks-1"))
}

func TestAdvanceTurnPersistsSnapshotAndReport(t *testing.T) {
	env := newTestEnv(t)
	report, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if report.Turn != 1 {
		t.Fatalf("report turn %d", report.Turn)
	}
	g, err := env.Engine.GetGame(env.Ctx, env.GameID)
	if err != nil || g.Turn != 1 {
		t.Fatalf("game turn %d err %v", g.Turn, err)
	}
	stored, err := env.Engine.Repo.GetReport(env.Ctx, env.GameID, 1)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if stored.Turn != 1 {
		t.Fatalf("stored report turn %d", stored.Turn)
	}
}

func TestAdvanceTurnIsDeterministicPerSeed(t *testing.T) {
	run := func(t *testing.T) int64 {
		env := newTestEnv(t)
		state, _ := env.Engine.GetState(env.Ctx, env.GameID)
		if _, err := env.Engine.StartInvestigation(env.Ctx, env.GameID, "street-network", []int64{state.Agents[0].ID, state.Agents[1].ID}); err != nil {
			t.Fatalf("start investigation: %v", err)
		}
		for i := 0; i < 5; i++ {
			if _, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID); err != nil {
				t.Fatalf("advance %d: %v", i, err)
			}
		}
		after, _ := env.Engine.GetState(env.Ctx, env.GameID)
		return after.Money
	}
	if a, b := run(t), run(t); a != b {
		t.Fatalf("same seed diverged: %d vs %d", a, b)
	}
}

func TestUndoRewindsOneTurn(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if _, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	turn, err := env.Engine.Undo(env.Ctx, env.GameID)
	if err != nil || turn != 0 {
		t.Fatalf("undo to %d err %v", turn, err)
	}
	after, _ := env.Engine.GetState(env.Ctx, env.GameID)
	if after.Turn != 0 || after.Money != before.Money {
		t.Fatalf("turn %d money %d after undo", after.Turn, after.Money)
	}
	if _, err := env.Engine.Repo.GetReport(env.Ctx, env.GameID, 1); err == nil {
		t.Fatalf("report for undone turn still stored")
	}
	_, err = env.Engine.Undo(env.Ctx, env.GameID)
	wantRejection(t, err)
}

func TestCommandEventsAreLogged(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.HireAgent(env.Ctx, env.GameID); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if _, err := env.Engine.AdvanceTurn(env.Ctx, env.GameID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.GameID, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range evts {
		types[evt.Type] = true
	}
	for _, want := range []string{"game.created", "agent.hired", "turn.advanced"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}
