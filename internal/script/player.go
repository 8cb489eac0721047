package script

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"vigil/internal/engine"
	"vigil/internal/fixed"
)

// Player runs compiled rules against campaign state, one pass per turn.
// Rules fire in priority order; exclusive rules block lower-priority rules
// in the same category, preventing conflicting orders on the same roster.
type Player struct {
	Engine engine.Engine
	GameID string

	// MaxTurns stops the run after that many advances. PanicCeiling stops
	// it when oversight panic reaches the line; zero means no ceiling.
	MaxTurns     int
	PanicCeiling fixed.Fixed

	rules  []*Rule
	Memory map[string]any
}

// Outcome says why a run stopped and where it ended.
type Outcome struct {
	Turns      int    `json:"turns"`
	StopReason string `json:"stop_reason"`
	Money      int64  `json:"money"`
	Panic      string `json:"panic"`
}

// NewPlayer compiles all rule conditions into expr bytecode and sorts by
// priority. Compilation failure leaves no player behind.
func NewPlayer(e engine.Engine, gameID string, rules []*Rule, maxTurns int) (*Player, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Player{
		Engine:   e,
		GameID:   gameID,
		MaxTurns: maxTurns,
		rules:    compiled,
		Memory:   make(map[string]any),
	}, nil
}

// Run plays turns until a stop condition holds: the turn limit, a wiped
// roster, or the panic ceiling.
func (p *Player) Run(ctx context.Context) (*Outcome, error) {
	played := 0
	for {
		state, err := p.Engine.GetState(ctx, p.GameID)
		if err != nil {
			return nil, err
		}
		env := RuleEnv{State: state, Rules: p.Engine.Rules, Memory: p.Memory}
		if reason := p.stopReason(env, played); reason != "" {
			slog.Info("run finished", "reason", reason, "turns", played, "money", state.Money, "panic", state.Panic)
			return &Outcome{Turns: played, StopReason: reason, Money: state.Money, Panic: state.Panic.String()}, nil
		}
		if err := p.PlayTurn(ctx); err != nil {
			return nil, err
		}
		played++
	}
}

func (p *Player) stopReason(env RuleEnv, played int) string {
	switch {
	case played >= p.MaxTurns:
		return "turn-limit"
	case env.Wiped():
		return "roster-wiped"
	case !p.PanicCeiling.IsZero() && env.State.Panic.Cmp(p.PanicCeiling) >= 0:
		return "panic-ceiling"
	}
	return ""
}

// PlayTurn evaluates all rules against the current state and advances one
// turn. Rejections from actions are logged and skipped: a stale condition
// losing a race with the simulation is normal play, not a failure.
func (p *Player) PlayTurn(ctx context.Context) error {
	state, err := p.Engine.GetState(ctx, p.GameID)
	if err != nil {
		return err
	}
	env := RuleEnv{State: state, Rules: p.Engine.Rules, Memory: p.Memory}
	fired := make(map[string]bool) // category → exclusive rule already fired

	for _, r := range p.rules {
		if fired[r.Category] {
			continue
		}

		result, err := vm.Run(r.program, env)
		if err != nil {
			slog.Warn("rule condition error", "rule", r.Name, "error", err)
			continue
		}
		match, ok := result.(bool)
		if !ok || !match {
			continue
		}

		slog.Debug("rule fired", "rule", r.Name, "priority", r.Priority, "category", r.Category)
		if err := r.Action(ctx, env, p.Engine, p.GameID); err != nil {
			if rej, ok := engine.IsRejection(err); ok {
				slog.Warn("rule action rejected", "rule", r.Name, "code", rej.Code, "reason", rej.Reason)
			} else {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}
		if r.Exclusive {
			fired[r.Category] = true
		}

		// Actions mutate the campaign; later conditions must see it.
		state, err = p.Engine.GetState(ctx, p.GameID)
		if err != nil {
			return err
		}
		env.State = state
	}

	report, err := p.Engine.AdvanceTurn(ctx, p.GameID)
	if err != nil {
		return err
	}
	slog.Info("turn played",
		"turn", report.Turn,
		"money", report.Money.Current,
		"funding", report.Funding.Current,
		"panic", report.Panic.Current,
		"missions", len(report.Missions),
	)
	return nil
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	for _, r := range rules {
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}
