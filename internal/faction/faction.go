// Package faction advances opposing factions: activity-level escalation,
// suppression decay, and the operation countdown that spawns defensive
// missions against the player.
package faction

import (
	"fmt"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/rng"
)

// LabelTemplate is the decision-point label for operation template picks.
const LabelTemplate = "faction.template"

// Result describes one turn of one faction for the report.
type Result struct {
	LevelBefore       int
	LevelAfter        int
	SuppressionBefore int
	SuppressionAfter  int
	Spawned           *domain.Mission
}

// Advance runs one turn for one faction. suppression is the delay granted
// by missions won this turn; it is applied before escalation so a fresh
// suppression always buys at least one quiet turn.
func Advance(state *domain.GameState, f *domain.Faction, rules *config.Rules, suppression int, src rng.Source) Result {
	def, ok := rules.Faction(f.ID)
	domain.Check(ok, "faction %s has no definition", f.ID)

	res := Result{LevelBefore: f.Level, SuppressionBefore: f.SuppressionTurns}

	domain.Check(suppression >= 0, "faction %s: negative suppression grant %d", f.ID, suppression)
	f.SuppressionTurns += suppression

	if !f.Dormant() {
		f.TurnsAtLevel++
		if f.Level < len(def.Levels) && f.TurnsAtLevel >= def.Levels[f.Level-1].MinTurns {
			f.Level++
			f.TurnsAtLevel = 0
			f.OpCountdown = def.Countdown
		}
	}

	if f.SuppressionTurns > 0 {
		f.SuppressionTurns--
	}

	if !f.Dormant() && !f.Suppressed() {
		f.OpCountdown--
		if f.OpCountdown == 0 {
			res.Spawned = launchOperation(state, f, def, rules, src)
			f.OpCountdown = def.Countdown
		}
	}

	res.LevelAfter = f.Level
	res.SuppressionAfter = f.SuppressionTurns
	return res
}

// launchOperation picks a defensive template for the faction's current
// level and spawns it. When no template exists at the exact level the
// faction falls back to the nearest level below; config validation
// guarantees level 1 is always covered.
func launchOperation(state *domain.GameState, f *domain.Faction, def config.FactionDef, rules *config.Rules, src rng.Source) *domain.Mission {
	var candidates []string
	for level := f.Level; level >= 1 && len(candidates) == 0; level-- {
		candidates = rules.OperationTemplates(def, level)
	}
	domain.Check(len(candidates) > 0, "faction %s: no operation template at or below level %d", f.ID, f.Level)

	// Avoid repeating the previous operation when there is a choice.
	if len(candidates) > 1 && f.LastOperation != "" {
		filtered := candidates[:0]
		for _, name := range candidates {
			if name != f.LastOperation {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	name := candidates[src.IntN(LabelTemplate, len(candidates))]
	f.LastOperation = name
	return SpawnMission(state, rules, name, f.ID)
}

// SpawnMission instantiates a mission template into the state graph. An
// empty factionID spawns the template as a player-side (offensive) mission;
// defensive templates require the owning faction. Unknown template names
// are defects: config validation resolves every reference up front.
func SpawnMission(state *domain.GameState, rules *config.Rules, template string, factionID string) *domain.Mission {
	def, ok := rules.Mission(template)
	domain.Check(ok, "unknown mission template %s", template)

	enemies := make([]*domain.Enemy, 0, len(def.Enemies))
	for i, arch := range def.Enemies {
		a := rules.Archetypes[arch]
		enemies = append(enemies, domain.NewEnemy(
			state.AllocateID(),
			fmt.Sprintf("%s %d", arch, i+1),
			arch,
			a.Skill,
			a.HitPoints,
			domain.Weapon{
				Name:      a.Weapon.Name,
				Damage:    a.Weapon.Damage,
				MinDamage: a.Weapon.MinDamage,
				MaxDamage: a.Weapon.MaxDamage,
			},
			a.Officer,
		))
	}

	expiry := def.ExpiresIn
	if expiry == 0 {
		expiry = domain.NoExpiry
	}

	m := domain.NewMission(state.AllocateID(), def.Name, template, enemies, expiry, def.OperationLevel, factionID)
	m.Reward = domain.Reward{
		Money:          def.Reward.Money,
		Funding:        def.Reward.Funding,
		PanicReduction: def.Reward.PanicReduction,
		Suppression:    def.Reward.Suppression,
	}
	m.Penalty = domain.Penalty{
		Funding:         def.Penalty.Funding,
		PanicIncrease:   def.Penalty.PanicIncrease,
		ExistentialLoss: def.Penalty.Existential,
	}
	state.Missions = append(state.Missions, m)
	return m
}
