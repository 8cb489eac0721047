package script

import (
	"context"

	"github.com/expr-lang/expr/vm"

	"vigil/internal/engine"
)

// ActionFunc issues engine commands when a rule's condition is true.
type ActionFunc func(ctx context.Context, env RuleEnv, e engine.Engine, gameID string) error

// Rule is the atomic unit of scripted-player behavior: a condition → action
// pair. The player evaluates rules by priority and uses Category + Exclusive
// to prevent conflicting orders on the same resource (roster, budget).
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	Category     string      // grouping for exclusive semantics
	Exclusive    bool        // if true, blocks lower-priority rules in same category
	ConditionSrc string      // expr source (preserved for serialization)
	program      *vm.Program // compiled bytecode
	Action       ActionFunc
}
