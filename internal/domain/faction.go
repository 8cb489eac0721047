package domain

// MaxFactionLevel is the top activity level a faction can reach.
const MaxFactionLevel = 7

// Faction is an opposing organization escalating independently over time.
// Level 0 is dormant.
type Faction struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Level            int    `json:"level"`
	TurnsAtLevel     int    `json:"turns_at_level"`
	OpCountdown      int    `json:"op_countdown"`
	SuppressionTurns int    `json:"suppression_turns"`
	LastOperation    string `json:"last_operation,omitempty"`
}

// NewFaction returns a faction at the given starting level with the given
// operation countdown.
func NewFaction(id, name string, level, opCountdown int) *Faction {
	Check(id != "", "faction with empty id")
	Check(level >= 0 && level <= MaxFactionLevel, "faction %s: level %d", id, level)
	Check(opCountdown >= 0, "faction %s: countdown %d", id, opCountdown)
	return &Faction{
		ID:          id,
		Name:        name,
		Level:       level,
		OpCountdown: opCountdown,
	}
}

// Dormant reports whether the faction is inactive.
func (f *Faction) Dormant() bool { return f.Level == 0 }

// Suppressed reports whether mission rewards are currently delaying the
// faction's next operation.
func (f *Faction) Suppressed() bool { return f.SuppressionTurns > 0 }
