package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vigil/internal/fixed"
)

// Rules models vigil.yml: every tunable the simulation reads. The embedded
// default template is the balance baseline; a workspace file overrides it
// wholesale.
type Rules struct {
	Game struct {
		StartMoney     int64       `yaml:"start_money"`
		StartFunding   int64       `yaml:"start_funding"`
		StartPanic     fixed.Fixed `yaml:"start_panic"`
		StartingAgents int         `yaml:"starting_agents"`
		AgentCap       int         `yaml:"agent_cap"`
		TransportCap   int         `yaml:"transport_cap"`
		TrainingCap    int         `yaml:"training_cap"`
	} `yaml:"game"`

	Economy struct {
		HireCost             int64       `yaml:"hire_cost"`
		UpkeepPerAgent       int64       `yaml:"upkeep_per_agent"`
		ContractingIncome    int64       `yaml:"contracting_income"`
		EspionagePanicRelief fixed.Fixed `yaml:"espionage_panic_relief"`
	} `yaml:"economy"`

	Agents struct {
		RookieSkill           fixed.Fixed `yaml:"rookie_skill"`
		MaxHitPoints          int         `yaml:"max_hit_points"`
		Weapon                WeaponDef   `yaml:"weapon"`
		StandbyRecovery       fixed.Fixed `yaml:"standby_recovery"`
		TrainingSkillGain     fixed.Fixed `yaml:"training_skill_gain"`
		TrainingExhaustion    fixed.Fixed `yaml:"training_exhaustion"`
		ContractingExhaustion fixed.Fixed `yaml:"contracting_exhaustion"`
		EspionageExhaustion   fixed.Fixed `yaml:"espionage_exhaustion"`
	} `yaml:"agents"`

	Upgrades   map[string]UpgradeDef   `yaml:"upgrades"`
	Archetypes map[string]ArchetypeDef `yaml:"archetypes"`
	Missions   map[string]MissionDef   `yaml:"missions"`
	Leads      map[string]LeadDef      `yaml:"leads"`
	Factions   []FactionDef            `yaml:"factions"`

	Server ServerConfig `yaml:"server,omitempty"`
}

// ServerConfig tunes the optional HTTP API. The zero value disables auth
// secrets and webhooks; the simulation never reads this section.
type ServerConfig struct {
	Addr      string          `yaml:"addr,omitempty"`
	JWTSecret string          `yaml:"jwt_secret,omitempty"`
	Webhooks  []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig is one event-delivery target. An empty Events list matches
// every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// WeaponDef is a weapon loadout shared by an archetype or the agent roster.
type WeaponDef struct {
	Name      string      `yaml:"name"`
	Damage    fixed.Fixed `yaml:"damage"`
	MinDamage int         `yaml:"min_damage"`
	MaxDamage int         `yaml:"max_damage"`
}

// UpgradeDef is one purchasable capacity tier.
type UpgradeDef struct {
	Capacity string `yaml:"capacity"` // agents | transport | training
	Adds     int    `yaml:"adds"`
	Cost     int64  `yaml:"cost"`
}

// ArchetypeDef is an enemy stat block referenced by mission rosters.
type ArchetypeDef struct {
	Skill     fixed.Fixed `yaml:"skill"`
	HitPoints int         `yaml:"hit_points"`
	Officer   bool        `yaml:"officer"`
	Weapon    WeaponDef   `yaml:"weapon"`
}

// MissionDef is a spawnable mission template. OperationLevel 0 marks an
// offensive (player-initiated) template; defensive templates carry the
// faction operation level they represent.
type MissionDef struct {
	Name           string     `yaml:"name"`
	Enemies        []string   `yaml:"enemies"` // archetype names
	ExpiresIn      int        `yaml:"expires_in"`
	OperationLevel int        `yaml:"operation_level"`
	Reward         RewardDef  `yaml:"reward"`
	Penalty        PenaltyDef `yaml:"penalty"`
}

type RewardDef struct {
	Money          int64          `yaml:"money"`
	Funding        int64          `yaml:"funding"`
	PanicReduction fixed.Fixed    `yaml:"panic_reduction"`
	Suppression    map[string]int `yaml:"suppression"` // faction id -> delay turns
}

type PenaltyDef struct {
	Funding       int64       `yaml:"funding"`
	PanicIncrease fixed.Fixed `yaml:"panic_increase"`
	Existential   bool        `yaml:"existential"`
}

// LeadDef is an investigable lead: difficulty feeds the success-chance
// ceiling, Spawns lists mission templates unlocked by completion.
type LeadDef struct {
	Name       string      `yaml:"name"`
	Difficulty fixed.Fixed `yaml:"difficulty"`
	Spawns     []string    `yaml:"spawns"`
}

// FactionDef drives the faction scheduler: per-level dwell times, the
// operation cadence, and the defensive templates the faction draws from.
type FactionDef struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Levels     []LevelDef `yaml:"levels"` // index 0 = level 1
	Countdown  int        `yaml:"countdown"`
	Operations []string   `yaml:"operations"` // defensive mission template names
}

// LevelDef configures one activity level.
type LevelDef struct {
	MinTurns int `yaml:"min_turns"`
}

// Load reads and validates rules from a workspace, falling back to the
// embedded defaults when no file exists.
func Load(workspace string) (*Rules, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the rules file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "vigil.yml")
}

// Default returns the embedded baseline rules.
func Default() *Rules {
	r, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("config: embedded default template invalid: %v", err))
	}
	return r
}

// DefaultYAML returns the embedded template text, for export/import flows.
func DefaultYAML() string {
	return defaultTemplate
}

// FromYAML parses and validates rules from raw YAML bytes.
func FromYAML(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid rules yaml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// FromFile reads YAML rules from the given path.
func FromFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the rules are internally consistent: every cross
// reference (archetype, template, faction) must resolve.
func (r *Rules) Validate() error {
	if r.Game.AgentCap <= 0 || r.Game.TransportCap <= 0 || r.Game.TrainingCap <= 0 {
		return fmt.Errorf("game caps must be positive")
	}
	if r.Game.StartingAgents < 0 || r.Game.StartingAgents > r.Game.AgentCap {
		return fmt.Errorf("game.starting_agents must be within [0, agent_cap]")
	}
	if r.Game.StartPanic.IsNegative() || r.Game.StartPanic.Cmp(fixed.One) > 0 {
		return fmt.Errorf("game.start_panic must be within [0,1]")
	}
	if r.Economy.HireCost <= 0 {
		return fmt.Errorf("economy.hire_cost must be positive")
	}
	if r.Economy.EspionagePanicRelief.IsNegative() {
		return fmt.Errorf("economy.espionage_panic_relief must not be negative")
	}
	if r.Agents.MaxHitPoints <= 0 {
		return fmt.Errorf("agents.max_hit_points must be positive")
	}
	if r.Agents.RookieSkill.IsZero() || r.Agents.RookieSkill.IsNegative() {
		return fmt.Errorf("agents.rookie_skill must be positive")
	}
	if err := validateWeapon("agents.weapon", r.Agents.Weapon); err != nil {
		return err
	}
	for id, u := range r.Upgrades {
		switch u.Capacity {
		case "agents", "transport", "training":
		default:
			return fmt.Errorf("upgrade %s: unknown capacity %q", id, u.Capacity)
		}
		if u.Adds <= 0 || u.Cost <= 0 {
			return fmt.Errorf("upgrade %s: adds and cost must be positive", id)
		}
	}
	for name, a := range r.Archetypes {
		if a.HitPoints <= 0 {
			return fmt.Errorf("archetype %s: hit_points must be positive", name)
		}
		if a.Skill.IsZero() || a.Skill.IsNegative() {
			return fmt.Errorf("archetype %s: skill must be positive", name)
		}
		if err := validateWeapon("archetype "+name, a.Weapon); err != nil {
			return err
		}
	}
	if len(r.Missions) == 0 {
		return fmt.Errorf("missions: at least one template is required")
	}
	for name, m := range r.Missions {
		if len(m.Enemies) == 0 {
			return fmt.Errorf("mission %s: empty enemy roster", name)
		}
		for _, arch := range m.Enemies {
			if _, ok := r.Archetypes[arch]; !ok {
				return fmt.Errorf("mission %s: unknown archetype %s", name, arch)
			}
		}
		if m.ExpiresIn < 0 {
			return fmt.Errorf("mission %s: expires_in must be >= 0 (0 = never)", name)
		}
		if m.OperationLevel < 0 || m.OperationLevel > 7 {
			return fmt.Errorf("mission %s: operation_level out of range", name)
		}
		for factionID := range m.Reward.Suppression {
			if r.factionDef(factionID) == nil {
				return fmt.Errorf("mission %s: suppression targets unknown faction %s", name, factionID)
			}
		}
		if m.Penalty.Existential && m.OperationLevel == 0 {
			return fmt.Errorf("mission %s: existential penalty on offensive template", name)
		}
	}
	for id, l := range r.Leads {
		if l.Difficulty.IsZero() || l.Difficulty.IsNegative() {
			return fmt.Errorf("lead %s: difficulty must be positive", id)
		}
		for _, spawn := range l.Spawns {
			def, ok := r.Missions[spawn]
			if !ok {
				return fmt.Errorf("lead %s: spawns unknown mission %s", id, spawn)
			}
			if def.OperationLevel != 0 {
				return fmt.Errorf("lead %s: spawned mission %s is not offensive", id, spawn)
			}
		}
	}
	for _, f := range r.Factions {
		if f.ID == "" {
			return fmt.Errorf("factions: empty faction id")
		}
		if len(f.Levels) == 0 {
			return fmt.Errorf("faction %s: at least one level is required", f.ID)
		}
		if len(f.Levels) > 7 {
			return fmt.Errorf("faction %s: more than 7 levels", f.ID)
		}
		for i, lvl := range f.Levels {
			if lvl.MinTurns <= 0 {
				return fmt.Errorf("faction %s: level %d min_turns must be positive", f.ID, i+1)
			}
		}
		if f.Countdown <= 0 {
			return fmt.Errorf("faction %s: countdown must be positive", f.ID)
		}
		if len(f.Operations) == 0 {
			return fmt.Errorf("faction %s: no operation templates", f.ID)
		}
		lowest := 0
		for _, op := range f.Operations {
			def, ok := r.Missions[op]
			if !ok {
				return fmt.Errorf("faction %s: unknown operation template %s", f.ID, op)
			}
			if def.OperationLevel == 0 {
				return fmt.Errorf("faction %s: operation template %s is offensive", f.ID, op)
			}
			if lowest == 0 || def.OperationLevel < lowest {
				lowest = def.OperationLevel
			}
		}
		// The scheduler falls back to the nearest lower level, so an active
		// faction must always find a template at level 1.
		if lowest != 1 {
			return fmt.Errorf("faction %s: needs an operation template at level 1", f.ID)
		}
	}
	return nil
}

func validateWeapon(ctx string, w WeaponDef) error {
	if w.MinDamage < 0 || w.MaxDamage < w.MinDamage {
		return fmt.Errorf("%s: damage range [%d,%d] invalid", ctx, w.MinDamage, w.MaxDamage)
	}
	return nil
}

// Mission returns a template by name; the name must have passed Validate.
func (r *Rules) Mission(name string) (MissionDef, bool) {
	m, ok := r.Missions[name]
	return m, ok
}

// Lead returns a lead definition by id.
func (r *Rules) Lead(id string) (LeadDef, bool) {
	l, ok := r.Leads[id]
	return l, ok
}

// Faction returns a faction definition by id.
func (r *Rules) Faction(id string) (FactionDef, bool) {
	if f := r.factionDef(id); f != nil {
		return *f, true
	}
	return FactionDef{}, false
}

func (r *Rules) factionDef(id string) *FactionDef {
	for i := range r.Factions {
		if r.Factions[i].ID == id {
			return &r.Factions[i]
		}
	}
	return nil
}

// OperationTemplates returns the faction's defensive templates matching the
// given activity level, in stable name order as listed in the definition.
func (r *Rules) OperationTemplates(f FactionDef, level int) []string {
	var out []string
	for _, op := range f.Operations {
		if r.Missions[op].OperationLevel == level {
			out = append(out, op)
		}
	}
	return out
}

const defaultTemplate = `game:
  start_money: 2000
  start_funding: 400
  start_panic: "0.2"
  starting_agents: 4
  agent_cap: 8
  transport_cap: 4
  training_cap: 2

economy:
  hire_cost: 150
  upkeep_per_agent: 20
  contracting_income: 60
  espionage_panic_relief: "0.005"

agents:
  rookie_skill: "40"
  max_hit_points: 100
  weapon:
    name: sidearm
    damage: "14"
    min_damage: 8
    max_damage: 20
  standby_recovery: "10"
  training_skill_gain: "1.5"
  training_exhaustion: "6"
  contracting_exhaustion: "8"
  espionage_exhaustion: "6"

upgrades:
  barracks-1:
    capacity: agents
    adds: 4
    cost: 600
  barracks-2:
    capacity: agents
    adds: 8
    cost: 1500
  transport-1:
    capacity: transport
    adds: 2
    cost: 500
  transport-2:
    capacity: transport
    adds: 4
    cost: 1200
  academy-1:
    capacity: training
    adds: 2
    cost: 800

archetypes:
  thug:
    skill: "30"
    hit_points: 60
    weapon:
      name: pistol
      damage: "10"
      min_damage: 6
      max_damage: 14
  soldier:
    skill: "45"
    hit_points: 90
    weapon:
      name: rifle
      damage: "16"
      min_damage: 10
      max_damage: 24
  veteran:
    skill: "60"
    hit_points: 110
    weapon:
      name: carbine
      damage: "20"
      min_damage: 14
      max_damage: 28
  commander:
    skill: "75"
    hit_points: 130
    officer: true
    weapon:
      name: machine-pistol
      damage: "24"
      min_damage: 16
      max_damage: 34

missions:
  stash-raid:
    name: "Raid a weapons stash"
    enemies: [thug, thug, thug]
    expires_in: 4
    reward:
      money: 300
      panic_reduction: "0.02"
  courier-intercept:
    name: "Intercept a courier"
    enemies: [thug, soldier]
    expires_in: 3
    reward:
      money: 250
      funding: 50
  cell-takedown:
    name: "Take down a cell"
    enemies: [soldier, soldier, veteran]
    expires_in: 5
    reward:
      money: 600
      panic_reduction: "0.05"
      suppression:
        exalt: 2
  hq-assault:
    name: "Assault the regional HQ"
    enemies: [soldier, veteran, veteran, commander]
    expires_in: 0
    reward:
      money: 1200
      funding: 200
      panic_reduction: "0.1"
      suppression:
        exalt: 4
  street-terror:
    name: "Terror in the streets"
    enemies: [thug, thug, soldier]
    expires_in: 3
    operation_level: 1
    reward:
      panic_reduction: "0.04"
    penalty:
      funding: 50
      panic_increase: "0.05"
  district-bombing:
    name: "District bombing plot"
    enemies: [soldier, soldier, veteran]
    expires_in: 3
    operation_level: 2
    reward:
      panic_reduction: "0.06"
      suppression:
        exalt: 2
    penalty:
      funding: 100
      panic_increase: "0.08"
  infiltration-op:
    name: "Government infiltration"
    enemies: [soldier, veteran, veteran]
    expires_in: 4
    operation_level: 3
    reward:
      panic_reduction: "0.08"
      suppression:
        exalt: 3
    penalty:
      funding: 150
      panic_increase: "0.1"
  capital-strike:
    name: "Strike on the capital"
    enemies: [veteran, veteran, commander]
    expires_in: 4
    operation_level: 5
    reward:
      funding: 100
      panic_reduction: "0.12"
      suppression:
        exalt: 4
    penalty:
      funding: 250
      panic_increase: "0.15"
  endgame-ritual:
    name: "The final operation"
    enemies: [veteran, veteran, commander, commander]
    expires_in: 5
    operation_level: 7
    reward:
      panic_reduction: "0.2"
      suppression:
        exalt: 6
    penalty:
      existential: true

leads:
  street-network:
    name: "Map the street network"
    difficulty: "6"
    spawns: [stash-raid]
  finance-trail:
    name: "Follow the finance trail"
    difficulty: "10"
    spawns: [courier-intercept, cell-takedown]
  inner-circle:
    name: "Identify the inner circle"
    difficulty: "18"
    spawns: [hq-assault]

factions:
  - id: exalt
    name: "EXALT"
    levels:
      - min_turns: 3
      - min_turns: 4
      - min_turns: 4
      - min_turns: 5
      - min_turns: 5
      - min_turns: 6
      - min_turns: 6
    countdown: 3
    operations:
      - street-terror
      - district-bombing
      - infiltration-op
      - capital-strike
      - endgame-ritual
`
