package faction

import (
	"testing"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/rng"
)

func testFaction(level, countdown int) *domain.Faction {
	f := domain.NewFaction("exalt", "EXALT", level, countdown)
	return f
}

func TestDormantFactionDoesNothing(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()
	f := testFaction(0, 3)

	res := Advance(state, f, rules, 0, rng.Constant{})
	if res.Spawned != nil || f.Level != 0 || f.TurnsAtLevel != 0 {
		t.Fatalf("dormant faction moved: %+v / %+v", res, f)
	}
}

func TestLevelAdvancesAfterMinTurns(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()
	f := testFaction(1, 100) // countdown far away, isolate escalation

	minTurns := rules.Factions[0].Levels[0].MinTurns
	for i := 0; i < minTurns-1; i++ {
		Advance(state, f, rules, 0, rng.Constant{})
		if f.Level != 1 {
			t.Fatalf("advanced early on turn %d", i+1)
		}
	}
	Advance(state, f, rules, 0, rng.Constant{})
	if f.Level != 2 {
		t.Fatalf("level = %d after %d turns, want 2", f.Level, minTurns)
	}
	if f.TurnsAtLevel != 0 {
		t.Fatalf("turns at level not reset: %d", f.TurnsAtLevel)
	}
	if f.OpCountdown != rules.Factions[0].Countdown {
		t.Fatalf("countdown not reset: %d", f.OpCountdown)
	}
}

func TestCountdownSpawnsOperationAndResets(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()
	f := testFaction(1, 2)
	f.TurnsAtLevel = -100 // keep the faction at level 1 throughout

	first := Advance(state, f, rules, 0, rng.Constant{})
	if first.Spawned != nil {
		t.Fatal("spawned before countdown expired")
	}
	second := Advance(state, f, rules, 0, rng.Constant{})
	if second.Spawned == nil {
		t.Fatal("countdown expired without an operation")
	}
	m := second.Spawned
	if m.OperationLevel != 1 || m.FactionID != "exalt" {
		t.Fatalf("spawned %+v, want level-1 exalt operation", m)
	}
	if m.State != domain.MissionActive || len(m.Enemies) == 0 {
		t.Fatalf("operation not active with enemies: %+v", m)
	}
	if f.OpCountdown != rules.Factions[0].Countdown {
		t.Fatalf("countdown not reset: %d", f.OpCountdown)
	}
	if f.LastOperation != m.Template {
		t.Fatalf("last operation %q != template %q", f.LastOperation, m.Template)
	}
	if len(state.Missions) != 1 || state.Missions[0] != m {
		t.Fatal("spawned mission not registered in state")
	}
	state.CheckInvariants()
}

func TestSuppressionDelaysOperations(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()
	f := testFaction(1, 1)
	f.TurnsAtLevel = -100

	// Suppression decays before the operation check, so a grant of 3 holds
	// the faction quiet for the grant turn plus one more.
	res := Advance(state, f, rules, 3, rng.Constant{})
	if res.Spawned != nil || f.OpCountdown != 1 {
		t.Fatalf("suppressed faction still operated: %+v", res)
	}
	if f.SuppressionTurns != 2 {
		t.Fatalf("suppression = %d after decay, want 2", f.SuppressionTurns)
	}
	res = Advance(state, f, rules, 0, rng.Constant{})
	if res.Spawned != nil {
		t.Fatal("operation fired while suppression held")
	}
	res = Advance(state, f, rules, 0, rng.Constant{})
	if res.Spawned == nil {
		t.Fatal("operation did not resume after suppression lapsed")
	}
}

func TestOperationAvoidsImmediateRepeat(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()

	// Give the level two templates so repeat avoidance has a choice.
	second := rules.Missions["street-terror"]
	second.Name = "Counterfeit ring"
	rules.Missions["counterfeit-ring"] = second
	rules.Factions[0].Operations = append(rules.Factions[0].Operations, "counterfeit-ring")

	f := testFaction(1, 1)
	f.TurnsAtLevel = -1000

	var prev string
	for i := 0; i < 6; i++ {
		res := Advance(state, f, rules, 0, rng.Constant{})
		if res.Spawned == nil {
			t.Fatalf("turn %d: no operation", i+1)
		}
		if prev != "" && res.Spawned.Template == prev {
			t.Fatalf("turn %d: repeated template %s", i+1, prev)
		}
		prev = res.Spawned.Template
	}
}

func TestLevelFallsBackToNearestTemplateBelow(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()
	f := testFaction(4, 1) // no level-4 template in the defaults
	f.TurnsAtLevel = -1000

	res := Advance(state, f, rules, 0, rng.Constant{})
	if res.Spawned == nil {
		t.Fatal("no operation spawned")
	}
	if got := res.Spawned.OperationLevel; got != 3 {
		t.Fatalf("operation level = %d, want fallback to 3", got)
	}
}

func TestSpawnMissionFromOffensiveTemplate(t *testing.T) {
	state := domain.NewGameState("g1", "test", 1)
	rules := config.Default()

	m := SpawnMission(state, rules, "stash-raid", "")
	if !m.Offensive() {
		t.Fatal("stash-raid should be offensive")
	}
	if len(m.Enemies) != len(rules.Missions["stash-raid"].Enemies) {
		t.Fatalf("enemy roster size %d", len(m.Enemies))
	}
	if m.Reward.Money != rules.Missions["stash-raid"].Reward.Money {
		t.Fatalf("reward money %d", m.Reward.Money)
	}
	state.CheckInvariants()
}
