package domain

import "vigil/internal/fixed"

// Enemy is a scripted opposing combatant on a mission roster.
type Enemy struct {
	Actor

	Archetype string `json:"archetype"`
	Officer   bool   `json:"officer,omitempty"`
}

// NewEnemy returns an enemy at full hit points.
func NewEnemy(id int64, name, archetype string, skill fixed.Fixed, maxHP int, weapon Weapon, officer bool) *Enemy {
	Check(id > 0, "enemy id %d", id)
	Check(maxHP > 0, "enemy %d: max hit points %d", id, maxHP)
	Check(!skill.IsNegative(), "enemy %d: negative skill %v", id, skill)
	return &Enemy{
		Actor: Actor{
			ID:           id,
			Name:         name,
			Skill:        skill,
			HitPoints:    fixed.FromInt(maxHP),
			MaxHitPoints: maxHP,
			Weapon:       weapon,
		},
		Archetype: archetype,
		Officer:   officer,
	}
}
