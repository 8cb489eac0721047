package domain

import "vigil/internal/fixed"

// MissionState is a mission's lifecycle stage.
type MissionState int

const (
	MissionActive MissionState = iota
	MissionDeployed
	MissionWon
	MissionWiped
	MissionRetreated
	MissionExpired
)

func (s MissionState) String() string {
	switch s {
	case MissionActive:
		return "active"
	case MissionDeployed:
		return "deployed"
	case MissionWon:
		return "won"
	case MissionWiped:
		return "wiped"
	case MissionRetreated:
		return "retreated"
	case MissionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the mission reached a final state.
func (s MissionState) Terminal() bool {
	switch s {
	case MissionWon, MissionWiped, MissionRetreated, MissionExpired:
		return true
	}
	return false
}

// NoExpiry marks a mission that never times out.
const NoExpiry = -1

// Reward is what a Won mission pays out. Suppression delays the named
// factions' next operations by the given number of turns.
type Reward struct {
	Money          int64          `json:"money,omitempty"`
	Funding        int64          `json:"funding,omitempty"`
	PanicReduction fixed.Fixed    `json:"panic_reduction,omitempty"`
	Suppression    map[string]int `json:"suppression,omitempty"`
}

// Penalty is what an expired mission costs. ExistentialLoss is set on
// top-operation-level defensive missions whose expiry drives panic to 100%.
type Penalty struct {
	Funding         int64       `json:"funding,omitempty"`
	PanicIncrease   fixed.Fixed `json:"panic_increase,omitempty"`
	ExistentialLoss bool        `json:"existential_loss,omitempty"`
}

// RoundLog is one battle log entry: the pre-combat snapshot of a round, or
// the final post-battle entry carrying the terminal outcome.
type RoundLog struct {
	Round         int          `json:"round"`
	ActiveAgents  int          `json:"active_agents"`
	ActiveEnemies int          `json:"active_enemies"`
	AgentSkill    fixed.Fixed  `json:"agent_skill"`
	EnemySkill    fixed.Fixed  `json:"enemy_skill"`
	AgentHP       fixed.Fixed  `json:"agent_hp"`
	EnemyHP       fixed.Fixed  `json:"enemy_hp"`
	SkillRatio    fixed.Fixed  `json:"skill_ratio"`
	Outcome       MissionState `json:"outcome,omitempty"` // set on the final entry only
}

// Mission is a combat engagement. Player-initiated ("offensive") missions
// have OperationLevel zero; faction-initiated ("defensive") missions carry
// the spawning faction's operation level, which drives different reward and
// penalty rules.
type Mission struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Template       string       `json:"template"`
	State          MissionState `json:"state"`
	Enemies        []*Enemy     `json:"enemies"`
	ExpiresIn      int          `json:"expires_in"` // turns, or NoExpiry
	OperationLevel int          `json:"operation_level,omitempty"`
	FactionID      string       `json:"faction_id,omitempty"`
	Reward         Reward       `json:"reward"`
	Penalty        Penalty      `json:"penalty,omitempty"`

	DeployedAgentIDs []int64    `json:"deployed_agent_ids,omitempty"`
	BattleLog        []RoundLog `json:"battle_log,omitempty"`
	ResolvedTurn     int        `json:"resolved_turn,omitempty"`
}

// NewMission returns an Active mission. Defensive missions must name their
// faction; offensive missions must not carry an operation level.
func NewMission(id int64, name, template string, enemies []*Enemy, expiresIn int, opLevel int, factionID string) *Mission {
	Check(id > 0, "mission id %d", id)
	Check(len(enemies) > 0, "mission %d: empty enemy roster", id)
	Check(expiresIn == NoExpiry || expiresIn > 0, "mission %d: expiry %d", id, expiresIn)
	Check(opLevel >= 0, "mission %d: operation level %d", id, opLevel)
	Check((opLevel > 0) == (factionID != ""), "mission %d: operation level %d with faction %q", id, opLevel, factionID)
	return &Mission{
		ID:             id,
		Name:           name,
		Template:       template,
		State:          MissionActive,
		Enemies:        enemies,
		ExpiresIn:      expiresIn,
		OperationLevel: opLevel,
		FactionID:      factionID,
	}
}

// Offensive reports whether the mission is player-initiated.
func (m *Mission) Offensive() bool { return m.OperationLevel == 0 }

// EnemyByID finds an enemy on the roster; a dangling id is a defect.
func (m *Mission) EnemyByID(id int64) *Enemy {
	for _, e := range m.Enemies {
		if e.ID == id {
			return e
		}
	}
	panic(Defect{Msg: "mission " + m.Name + ": dangling enemy id"})
}

// Deploy moves the mission to Deployed with the given agent roster.
func (m *Mission) Deploy(agentIDs []int64) {
	Check(m.State == MissionActive, "mission %d: deploy in state %v", m.ID, m.State)
	Check(len(agentIDs) > 0, "mission %d: deploy with empty roster", m.ID)
	m.State = MissionDeployed
	m.DeployedAgentIDs = append([]int64(nil), agentIDs...)
}
