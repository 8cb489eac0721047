package power

import (
	"testing"

	"vigil/internal/domain"
	"vigil/internal/fixed"
)

func actor(skill fixed.Fixed, hp, maxHP int, exhaustion fixed.Fixed) *domain.Actor {
	return &domain.Actor{
		ID:           1,
		Skill:        skill,
		HitPoints:    fixed.FromInt(hp),
		MaxHitPoints: maxHP,
		Exhaustion:   exhaustion,
		Weapon:       domain.Weapon{Damage: fixed.FromInt(10), MinDamage: 5, MaxDamage: 15},
	}
}

func TestEffectiveSkillNeverExceedsBase(t *testing.T) {
	skill := fixed.FromInt(60)
	for hp := 0; hp <= 100; hp += 20 {
		for exh := 0; exh <= 120; exh += 15 {
			a := actor(skill, hp, 100, fixed.FromInt(exh))
			if EffectiveSkill(a).Cmp(skill) > 0 {
				t.Fatalf("effective skill above base at hp=%d exh=%d", hp, exh)
			}
		}
	}
}

func TestEffectiveSkillMonotonic(t *testing.T) {
	skill := fixed.FromInt(60)
	prev := EffectiveSkill(actor(skill, 100, 100, fixed.Zero))
	for exh := 5; exh <= 110; exh += 5 {
		cur := EffectiveSkill(actor(skill, 100, 100, fixed.FromInt(exh)))
		if cur.Cmp(prev) > 0 {
			t.Fatalf("effective skill rose with exhaustion at %d", exh)
		}
		prev = cur
	}
	prev = EffectiveSkill(actor(skill, 100, 100, fixed.Zero))
	for hp := 90; hp >= 0; hp -= 10 {
		cur := EffectiveSkill(actor(skill, hp, 100, fixed.Zero))
		if cur.Cmp(prev) > 0 {
			t.Fatalf("effective skill rose with hp loss at %d", hp)
		}
		prev = cur
	}
}

func TestFirstFiveExhaustionPointsAreFree(t *testing.T) {
	skill := fixed.FromInt(60)
	fresh := EffectiveSkill(actor(skill, 100, 100, fixed.Zero))
	slightlyTired := EffectiveSkill(actor(skill, 100, 100, fixed.FromInt(5)))
	if fresh != slightlyTired {
		t.Fatalf("exhaustion 5 should be free: %v vs %v", fresh, slightlyTired)
	}
	tired := EffectiveSkill(actor(skill, 100, 100, fixed.FromInt(6)))
	if tired.Cmp(fresh) >= 0 {
		t.Fatalf("exhaustion 6 should cost: %v vs %v", tired, fresh)
	}
}

func TestExhaustionZeroesSkillAt105(t *testing.T) {
	a := actor(fixed.FromInt(60), 100, 100, fixed.FromInt(105))
	if !EffectiveSkill(a).IsZero() {
		t.Fatalf("effective skill at 105 exhaustion: %v", EffectiveSkill(a))
	}
	// Clamped: more exhaustion changes nothing.
	b := actor(fixed.FromInt(60), 100, 100, fixed.FromInt(300))
	if EffectiveSkill(b) != EffectiveSkill(a) {
		t.Fatal("exhaustion above 105 should clamp")
	}
}

func TestExhaustionMultiplierLinearPastFreePoints(t *testing.T) {
	// 55 exhaustion = 50 costly points = half skill; 104 leaves 1% standing.
	half := EffectiveSkill(actor(fixed.FromInt(60), 100, 100, fixed.FromInt(55)))
	if half != fixed.FromInt(30) {
		t.Fatalf("effective skill at 55 exhaustion: %v, want 30", half)
	}
	nearDone := EffectiveSkill(actor(fixed.FromInt(100), 100, 100, fixed.FromInt(104)))
	if nearDone != fixed.FromInt(1) {
		t.Fatalf("effective skill at 104 exhaustion: %v, want 1", nearDone)
	}
}

func TestIncapacitation(t *testing.T) {
	healthy := actor(fixed.FromInt(60), 100, 100, fixed.Zero)
	if IsIncapacitated(healthy) {
		t.Fatal("healthy actor incapacitated")
	}
	// 10 HP of 100 → hp multiplier 0.1 → effective = 10% of base.
	critical := actor(fixed.FromInt(60), 10, 100, fixed.Zero)
	if !IsIncapacitated(critical) {
		t.Fatal("critical actor should be incapacitated")
	}
	if !critical.Alive() {
		t.Fatal("incapacitated actor should still be alive")
	}
	if Active(critical) {
		t.Fatal("incapacitated actor should not be active")
	}
}

func TestTerminatedAgentRatedAtPeak(t *testing.T) {
	a := domain.NewAgent(1, "Vale", fixed.FromInt(60), 100, domain.Weapon{Damage: fixed.FromInt(10), MinDamage: 5, MaxDamage: 15}, 1)
	peak := AgentRating(a)

	a.ApplyDamage(fixed.FromInt(100))
	a.AddExhaustion(fixed.FromInt(60))
	a.Terminate(3, domain.KIA, 9)
	if AgentRating(a) != peak {
		t.Fatalf("terminated rating %v, want peak %v", AgentRating(a), peak)
	}
}

func TestRatingWeaponDamageCapped(t *testing.T) {
	light := actor(fixed.FromInt(60), 100, 100, fixed.Zero)
	light.Weapon.Damage = fixed.FromInt(50)
	heavy := actor(fixed.FromInt(60), 100, 100, fixed.Zero)
	heavy.Weapon.Damage = fixed.FromInt(500)
	if CombatRating(light) != CombatRating(heavy) {
		t.Fatal("weapon damage above cap should not raise rating")
	}
}
