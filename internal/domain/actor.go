// Package domain holds the simulation state graph: actors, missions, lead
// investigations, factions, and the aggregate GameState, together with the
// factories and invariants that keep it consistent. Entities are referenced
// across the graph by numeric id only; lookups that dangle are defects.
package domain

import "vigil/internal/fixed"

// Weapon describes an actor's armament. Damage is the nominal value used for
// threat rating; actual hits draw uniformly from [MinDamage, MaxDamage].
type Weapon struct {
	Name      string      `json:"name"`
	Damage    fixed.Fixed `json:"damage"`
	MinDamage int         `json:"min_damage"`
	MaxDamage int         `json:"max_damage"`
}

// Actor is the shared shape of any combat participant. Agent and Enemy embed
// it, so battle math works on either side without caring which it got.
type Actor struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Skill        fixed.Fixed `json:"skill"`
	HitPoints    fixed.Fixed `json:"hit_points"`
	MaxHitPoints int         `json:"max_hit_points"`
	Exhaustion   fixed.Fixed `json:"exhaustion"` // percent, 0 and up
	Weapon       Weapon      `json:"weapon"`
}

// Alive reports whether the actor still has hit points.
func (a *Actor) Alive() bool { return a.HitPoints > 0 }

// ApplyDamage subtracts dmg from hit points, flooring at zero.
func (a *Actor) ApplyDamage(dmg fixed.Fixed) {
	Check(!dmg.IsNegative(), "actor %d: negative damage %v", a.ID, dmg)
	a.HitPoints = fixed.Max(a.HitPoints.Sub(dmg), fixed.Zero)
}

// AddExhaustion raises exhaustion by pts. Exhaustion has no upper bound;
// consumers clamp where their formulas require it.
func (a *Actor) AddExhaustion(pts fixed.Fixed) {
	Check(!pts.IsNegative(), "actor %d: negative exhaustion delta %v", a.ID, pts)
	a.Exhaustion = a.Exhaustion.Add(pts)
}

// RecoverExhaustion lowers exhaustion by pts, flooring at zero.
func (a *Actor) RecoverExhaustion(pts fixed.Fixed) {
	Check(!pts.IsNegative(), "actor %d: negative recovery %v", a.ID, pts)
	a.Exhaustion = fixed.Max(a.Exhaustion.Sub(pts), fixed.Zero)
}
