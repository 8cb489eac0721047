// Package battle resolves multi-round fights between an agent roster and an
// enemy roster, and evaluates the consequences of one mission deployment.
// Resolution mutates the participants' hit points and exhaustion in place;
// skill changes are returned as deltas and applied by the deployment
// evaluator.
package battle

import (
	"sort"

	"vigil/internal/domain"
	"vigil/internal/fixed"
	"vigil/internal/power"
	"vigil/internal/rng"
)

// Decision-point labels for the random stream.
const (
	LabelAttack = "battle.attack"
	LabelDamage = "battle.damage"
)

// Outcome is the terminal result of a battle. Exactly one applies.
type Outcome int

const (
	Won Outcome = iota
	Wiped
	Retreated
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case Wiped:
		return "wiped"
	case Retreated:
		return "retreated"
	default:
		return "unknown"
	}
}

// MissionState maps the outcome onto the mission lifecycle.
func (o Outcome) MissionState() domain.MissionState {
	switch o {
	case Won:
		return domain.MissionWon
	case Wiped:
		return domain.MissionWiped
	default:
		return domain.MissionRetreated
	}
}

const (
	// Retreat triggers when agents fall below retreatWeaknessPct of their
	// starting total effective skill while enemies hold at least
	// retreatPressurePct of the agents' current total.
	retreatWeaknessPct = 50
	retreatPressurePct = 80

	// roundCap guards against a resolution loop that fails to converge.
	// Exhaustion growth incapacitates everyone long before this.
	roundCap = 1000
)

// Exhaustion cost per attack exchange.
var (
	attackerExhaustion = fixed.FromInt(2)
	defenderExhaustion = fixed.One
)

// Skill rewards per attack exchange, one constant per role/outcome pair.
var (
	skillSuccessfulAttack  = fixed.MustFromFloat(0.3)
	skillFailedAttack      = fixed.MustFromFloat(0.05)
	skillSuccessfulDefense = fixed.MustFromFloat(0.2)
	skillFailedDefense     = fixed.MustFromFloat(0.1)
)

// Result is the terminal outcome of one battle.
type Result struct {
	Outcome Outcome
	Rounds  int
	Log     []domain.RoundLog

	// SkillDeltas accumulates per-agent skill rewards earned in battle.
	SkillDeltas map[int64]fixed.Fixed
	// KilledBy records, for each agent reduced to zero hit points, the enemy
	// that landed the killing hit.
	KilledBy map[int64]int64
}

type battle struct {
	agents  []*domain.Agent
	enemies []*domain.Enemy
	src     rng.Source

	startSkill fixed.Fixed          // agents' total effective skill at battle start
	snap       map[int64]fixed.Fixed // per-round pre-combat effective skill
	attacks    map[int64]int         // running per-target attack counts
	deltas     map[int64]fixed.Fixed
	killedBy   map[int64]int64
	agentIDs   map[int64]bool
	log        []domain.RoundLog
}

// Resolve runs one battle to a terminal outcome. Both rosters must be
// non-empty.
func Resolve(agents []*domain.Agent, enemies []*domain.Enemy, src rng.Source) Result {
	domain.Check(len(agents) > 0, "battle with no agents")
	domain.Check(len(enemies) > 0, "battle with no enemies")

	b := &battle{
		agents:   agents,
		enemies:  enemies,
		src:      src,
		attacks:  make(map[int64]int),
		deltas:   make(map[int64]fixed.Fixed),
		killedBy: make(map[int64]int64),
		agentIDs: make(map[int64]bool, len(agents)),
	}
	for _, a := range agents {
		b.agentIDs[a.ID] = true
	}
	b.startSkill = b.agentSkill()

	outcome := b.run()
	b.logEntry(len(b.log)+1, outcome, true)

	return Result{
		Outcome:     outcome,
		Rounds:      len(b.log) - 1,
		Log:         b.log,
		SkillDeltas: b.deltas,
		KilledBy:    b.killedBy,
	}
}

func (b *battle) run() Outcome {
	if b.activeEnemies() == 0 {
		return Won
	}
	if b.activeAgents() == 0 {
		return Wiped
	}
	for round := 1; ; round++ {
		domain.Check(round <= roundCap, "battle failed to converge after %d rounds", roundCap)

		b.logEntry(round, 0, false)
		b.snapshot()

		b.agentPhase()
		b.enemyPhase()

		// Elimination takes precedence over retreat, which keeps "enemies
		// neutralized" and "agents retreated" mutually exclusive.
		if b.activeEnemies() == 0 {
			return Won
		}
		if b.activeAgents() == 0 {
			return Wiped
		}
		if b.shouldRetreat() {
			return Retreated
		}
	}
}

// snapshot freezes every participant's effective skill before any action in
// the round, so a unit taking damage mid-round does not change its
// attractiveness as a target.
func (b *battle) snapshot() {
	b.snap = make(map[int64]fixed.Fixed, len(b.agents)+len(b.enemies))
	for _, a := range b.agents {
		b.snap[a.ID] = power.EffectiveSkill(&a.Actor)
	}
	for _, e := range b.enemies {
		b.snap[e.ID] = power.EffectiveSkill(&e.Actor)
	}
}

func (b *battle) agentPhase() {
	for _, att := range b.actingOrder(b.agentActors()) {
		if !power.Active(att) {
			continue
		}
		def := b.selectTarget(b.enemyActors())
		if def == nil {
			return
		}
		b.attack(att, def)
	}
}

func (b *battle) enemyPhase() {
	for _, att := range b.actingOrder(b.enemyActors()) {
		if !power.Active(att) {
			continue
		}
		def := b.selectTarget(b.agentActors())
		if def == nil {
			return
		}
		b.attack(att, def)
	}
}

// actingOrder sorts active units by descending snapshot skill, ties broken
// by ascending id so the order is stable for a given random stream.
func (b *battle) actingOrder(side []*domain.Actor) []*domain.Actor {
	var acting []*domain.Actor
	for _, u := range side {
		if power.Active(u) {
			acting = append(acting, u)
		}
	}
	sort.SliceStable(acting, func(i, j int) bool {
		si, sj := b.snap[acting[i].ID], b.snap[acting[j].ID]
		if c := si.Cmp(sj); c != 0 {
			return c > 0
		}
		return acting[i].ID < acting[j].ID
	})
	return acting
}

// selectTarget balances load across live, non-incapacitated targets: fewest
// attacks received first, then lowest snapshot skill, then lowest id.
func (b *battle) selectTarget(side []*domain.Actor) *domain.Actor {
	var best *domain.Actor
	for _, u := range side {
		if !power.Active(u) {
			continue
		}
		if best == nil || b.preferTarget(u, best) {
			best = u
		}
	}
	return best
}

func (b *battle) preferTarget(u, over *domain.Actor) bool {
	if b.attacks[u.ID] != b.attacks[over.ID] {
		return b.attacks[u.ID] < b.attacks[over.ID]
	}
	if c := b.snap[u.ID].Cmp(b.snap[over.ID]); c != 0 {
		return c < 0
	}
	return u.ID < over.ID
}

// attack resolves one contested exchange between attacker and defender.
func (b *battle) attack(att, def *domain.Actor) {
	b.attacks[def.ID]++

	hit := b.src.Float64(LabelAttack) < b.hitChance(att, def)
	if hit {
		dmg := att.Weapon.MinDamage
		if spread := att.Weapon.MaxDamage - att.Weapon.MinDamage; spread > 0 {
			dmg += b.src.IntN(LabelDamage, spread+1)
		}
		def.ApplyDamage(fixed.FromInt(dmg))
		b.reward(att, skillSuccessfulAttack)
		b.reward(def, skillFailedDefense)
		if !def.Alive() && b.agentIDs[def.ID] {
			b.killedBy[def.ID] = att.ID
		}
	} else {
		b.reward(att, skillFailedAttack)
		b.reward(def, skillSuccessfulDefense)
	}

	att.AddExhaustion(attackerExhaustion)
	if def.Alive() {
		def.AddExhaustion(defenderExhaustion)
	}
}

// hitChance rises monotonically with the attacker/defender skill ratio.
func (b *battle) hitChance(att, def *domain.Actor) float64 {
	a, d := b.snap[att.ID], b.snap[def.ID]
	total := a.Add(d)
	if total.IsZero() {
		return 0.5
	}
	return a.Div(total).Float64()
}

// reward accrues a skill delta, but only agents keep theirs.
func (b *battle) reward(u *domain.Actor, amount fixed.Fixed) {
	if b.agentIDs[u.ID] {
		b.deltas[u.ID] = b.deltas[u.ID].Add(amount)
	}
}

func (b *battle) shouldRetreat() bool {
	current := b.agentSkill()
	weakened := current.MulInt(100).Cmp(b.startSkill.MulInt(retreatWeaknessPct)) < 0
	pressured := b.enemySkill().MulInt(100).Cmp(current.MulInt(retreatPressurePct)) >= 0
	return weakened && pressured
}

func (b *battle) agentActors() []*domain.Actor {
	out := make([]*domain.Actor, len(b.agents))
	for i, a := range b.agents {
		out[i] = &a.Actor
	}
	return out
}

func (b *battle) enemyActors() []*domain.Actor {
	out := make([]*domain.Actor, len(b.enemies))
	for i, e := range b.enemies {
		out[i] = &e.Actor
	}
	return out
}

func (b *battle) agentSkill() fixed.Fixed {
	return power.TeamEffectiveSkill(b.agentActors())
}

func (b *battle) enemySkill() fixed.Fixed {
	return power.TeamEffectiveSkill(b.enemyActors())
}

func (b *battle) activeAgents() int {
	n := 0
	for _, a := range b.agents {
		if power.Active(&a.Actor) {
			n++
		}
	}
	return n
}

func (b *battle) activeEnemies() int {
	n := 0
	for _, e := range b.enemies {
		if power.Active(&e.Actor) {
			n++
		}
	}
	return n
}

func (b *battle) logEntry(round int, outcome Outcome, final bool) {
	agentSkill := b.agentSkill()
	enemySkill := b.enemySkill()
	ratio := fixed.Zero
	if !enemySkill.IsZero() {
		ratio = agentSkill.Div(enemySkill)
	}
	entry := domain.RoundLog{
		Round:         round,
		ActiveAgents:  b.activeAgents(),
		ActiveEnemies: b.activeEnemies(),
		AgentSkill:    agentSkill,
		EnemySkill:    enemySkill,
		AgentHP:       b.totalHP(b.agentActors()),
		EnemyHP:       b.totalHP(b.enemyActors()),
		SkillRatio:    ratio,
	}
	if final {
		entry.Outcome = outcome.MissionState()
	}
	b.log = append(b.log, entry)
}

func (b *battle) totalHP(side []*domain.Actor) fixed.Fixed {
	total := fixed.Zero
	for _, u := range side {
		total = total.Add(u.HitPoints)
	}
	return total
}
