package domain

import (
	"testing"

	"vigil/internal/fixed"
)

func testWeapon() Weapon {
	return Weapon{Name: "sidearm", Damage: fixed.FromInt(10), MinDamage: 5, MaxDamage: 15}
}

func TestAgentAssignRejectsIllegalPairs(t *testing.T) {
	a := NewAgent(1, "Asha", fixed.FromInt(50), 100, testWeapon(), 1)

	a.Assign(StartingTransit, ContractingDuty())
	a.Assign(InTransit, ContractingDuty())
	a.Assign(OnAssignment, ContractingDuty())

	defer func() {
		if recover() == nil {
			t.Fatal("expected defect for available + mission duty")
		}
	}()
	a.Assign(Available, MissionDuty(7))
}

func TestAgentTerminate(t *testing.T) {
	a := NewAgent(2, "Brik", fixed.FromInt(40), 80, testWeapon(), 1)
	a.Terminate(5, KIA, 31)
	if !a.IsTerminated() || a.Termination != KIA || a.KilledByEnemyID != 31 || a.TerminatedTurn != 5 {
		t.Fatalf("termination bookkeeping: %+v", a)
	}
	if a.Duty.Kind != DutyKIA {
		t.Fatalf("duty after KIA: %v", a.Duty)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected defect for double termination")
		}
	}()
	a.Terminate(6, Sacked, 0)
}

func TestActorDamageFloorsAtZero(t *testing.T) {
	a := NewAgent(3, "Cole", fixed.FromInt(40), 10, testWeapon(), 1)
	a.ApplyDamage(fixed.FromInt(25))
	if !a.HitPoints.IsZero() {
		t.Fatalf("hit points: %v", a.HitPoints)
	}
	if a.Alive() {
		t.Fatal("dead actor reported alive")
	}
}

func TestMissionFactoryRules(t *testing.T) {
	enemy := NewEnemy(10, "thug", "grunt", fixed.FromInt(20), 50, testWeapon(), false)

	m := NewMission(1, "raid", "tmpl", []*Enemy{enemy}, NoExpiry, 0, "")
	if !m.Offensive() {
		t.Fatal("offensive mission misclassified")
	}

	d := NewMission(2, "strike", "tmpl", []*Enemy{enemy}, 4, 3, "syndicate")
	if d.Offensive() {
		t.Fatal("defensive mission misclassified")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected defect for operation level without faction")
		}
	}()
	NewMission(3, "bad", "tmpl", []*Enemy{enemy}, 4, 2, "")
}

func TestStateSingleActiveInvestigationPerLead(t *testing.T) {
	s := NewGameState("g1", "test", 1)
	a := NewAgent(s.AllocateID(), "Asha", fixed.FromInt(50), 100, testWeapon(), 1)
	s.Agents = append(s.Agents, a)
	li1 := NewLeadInvestigation(s.AllocateID(), "lead-a", []int64{a.ID}, 1)
	li2 := NewLeadInvestigation(s.AllocateID(), "lead-a", []int64{a.ID}, 1)
	s.Investigations = append(s.Investigations, li1, li2)

	defer func() {
		if recover() == nil {
			t.Fatal("expected defect for duplicate active investigation")
		}
	}()
	s.CheckInvariants()
}

func TestStateLookupPanicsOnDanglingID(t *testing.T) {
	s := NewGameState("g1", "test", 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected defect for dangling agent id")
		}
	}()
	s.AgentByID(99)
}

func TestDeltas(t *testing.T) {
	d := NewDelta(10, 7)
	if d.Delta != -3 {
		t.Fatalf("delta: %+v", d)
	}
	fd := NewFixedDelta(fixed.MustFromFloat(0.5), fixed.MustFromFloat(0.75))
	if fd.Delta != fixed.MustFromFloat(0.25) {
		t.Fatalf("fixed delta: %+v", fd)
	}
}
