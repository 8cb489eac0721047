// Package power derives an actor's fighting condition from its current
// state: effective skill, incapacitation, and the normalized combat rating
// used for threat display and planning. All functions are pure.
package power

import (
	"vigil/internal/domain"
	"vigil/internal/fixed"
)

const (
	// freeExhaustion is the number of exhaustion points that cost nothing;
	// effective skill hits zero at freeExhaustion + 100.
	freeExhaustion = 5
	// incapacitationRatio: effective skill at or below this fraction of base
	// skill means the actor is alive but cannot fight.
	incapacitationRatio = 10 // percent
	// ratingDamageCap bounds the weapon contribution to combat rating.
	ratingDamageCap = 50
)

// EffectiveSkill is base skill attenuated by hit-point loss and exhaustion.
func EffectiveSkill(a *domain.Actor) fixed.Fixed {
	return a.Skill.Mul(hpMultiplier(a)).Mul(exhaustionMultiplier(a))
}

func hpMultiplier(a *domain.Actor) fixed.Fixed {
	maxHP := fixed.FromInt(a.MaxHitPoints)
	lost := maxHP.Sub(a.HitPoints).Div(maxHP)
	return fixed.Max(fixed.One.Sub(lost), fixed.Zero)
}

func exhaustionMultiplier(a *domain.Actor) fixed.Fixed {
	exh := a.Exhaustion.Clamp(fixed.Zero, fixed.FromInt(freeExhaustion+100))
	costly := fixed.Max(exh.Sub(fixed.FromInt(freeExhaustion)), fixed.Zero)
	return fixed.One.Sub(costly.DivInt(100))
}

// IsIncapacitated reports whether the actor is too degraded to act or be
// targeted. Incapacitated actors may still be alive.
func IsIncapacitated(a *domain.Actor) bool {
	threshold := a.Skill.MulInt(incapacitationRatio).DivInt(100)
	return EffectiveSkill(a).Cmp(threshold) <= 0
}

// Active reports whether the actor can fight: alive and not incapacitated.
func Active(a *domain.Actor) bool {
	return a.Alive() && !IsIncapacitated(a)
}

// CombatRating is the normalized strength metric used for mission difficulty
// display and scripted-player planning. It never gates combat outcomes.
func CombatRating(a *domain.Actor) fixed.Fixed {
	dmg := fixed.Min(a.Weapon.Damage, fixed.FromInt(ratingDamageCap))
	bonus := fixed.One.
		Add(a.HitPoints.DivInt(100)).
		Add(dmg.MulInt(2).DivInt(100))
	return EffectiveSkill(a).Mul(bonus)
}

// AgentRating is CombatRating, except terminated agents are rated at their
// historical peak: full hit points and zero exhaustion.
func AgentRating(a *domain.Agent) fixed.Fixed {
	if !a.IsTerminated() {
		return CombatRating(&a.Actor)
	}
	peak := a.Actor
	peak.HitPoints = fixed.FromInt(peak.MaxHitPoints)
	peak.Exhaustion = fixed.Zero
	return CombatRating(&peak)
}

// TeamEffectiveSkill sums effective skill over a roster of actors.
func TeamEffectiveSkill(actors []*domain.Actor) fixed.Fixed {
	total := fixed.Zero
	for _, a := range actors {
		total = total.Add(EffectiveSkill(a))
	}
	return total
}
