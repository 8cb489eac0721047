package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vigil/internal/app"
	"vigil/internal/config"
	"vigil/internal/db"
	"vigil/internal/domain"
	"vigil/internal/fixed"
	"vigil/internal/repo"
	"vigil/internal/script"
	"vigil/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil CLI",
	Long: `Vigil runs a deterministic covert-defense campaign, one turn at a time.
Core concepts:
- Workspace: your .vigil directory holding the campaign database; rules live in vigil.yml next to it.
- Game: one campaign with its own seed; every turn is replayable from that seed.
- Agents: your roster. They idle, contract for income, train, investigate leads, or deploy on missions; exhaustion and wounds take them out of rotation.
- Leads: investigations that burn agent-turns to unlock offensive missions.
- Missions: deployments resolved as automated battles when the transport arrives.
- Factions: enemy organizations that escalate on their own clock and launch operations at you; win their missions to slow them down.
- Panic and funding: lose missions or ignore operations and oversight panic rises, cutting your funding.
- Turn: 'vigil turn advance' runs the whole simulation step and prints the report; 'vigil turn undo' rewinds one turn.
- Event log: diary of every command and turn, view with 'vigil log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VIGIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("game", "", "game id (defaults to the only game in the workspace)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("game", rootCmd.PersistentFlags().Lookup("game"))
}

func registerCommands() {
	rootCmd.AddCommand(gameCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(upgradeCmd())
	rootCmd.AddCommand(turnCmd())
	rootCmd.AddCommand(aiCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func gameCmd() *cobra.Command {
	game := &cobra.Command{Use: "game", Short: "Manage games"}
	game.AddCommand(gameNewCmd())
	game.AddCommand(gameListCmd())
	game.AddCommand(gameShowCmd())
	game.AddCommand(gameDeleteCmd())
	return game
}

func gameNewCmd() *cobra.Command {
	var name string
	var seed int64
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.Engine.CreateGame(ctx, name, seed)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "campaign name")
	cmd.Flags().Int64Var(&seed, "seed", 0, "deterministic seed (0 picks a random one)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func gameListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				games, err := a.Engine.Repo.ListGames(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(games)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Seed", "Turn", "Updated"})
				for _, g := range games {
					tw.AppendRow(table.Row{g.ID, g.Name, g.Seed, g.Turn, g.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func gameShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current game record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	return cmd
}

func gameDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a game and all its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.Repo.DeleteGame(ctx, args[0])
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show campaign status",
		Long:  "The scoreboard: money, funding, panic, capacities, roster counts, and what every faction is up to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), func(ctx context.Context, a *app.App, state *domain.GameState) error {
				if viper.GetBool("json") {
					return printJSON(state)
				}
				fmt.Printf("Campaign: %s (turn %d, %d actions)\n", state.Name, state.Turn, state.Actions)
				fmt.Printf("Money: %d  Funding: %d  Panic: %s\n", state.Money, state.Funding, state.Panic)
				fmt.Printf("Caps: %d agents, %d transport, %d training\n", state.Caps.Agents, state.Caps.Transport, state.Caps.Training)
				fmt.Println("Agents:")
				for st, c := range state.AgentCounts() {
					fmt.Printf("  %s: %d\n", st, c)
				}
				active := 0
				for _, m := range state.Missions {
					if m.State == domain.MissionActive {
						active++
					}
				}
				fmt.Printf("Missions: %d active of %d\n", active, len(state.Missions))
				for _, f := range state.Factions {
					extra := ""
					if f.Suppressed() {
						extra = fmt.Sprintf(" (suppressed %d)", f.SuppressionTurns)
					}
					fmt.Printf("Faction %s: level %d, next op in %d%s\n", f.Name, f.Level, f.OpCountdown, extra)
				}
				return nil
			})
		},
	}
	return cmd
}

func agentCmd() *cobra.Command {
	agent := &cobra.Command{
		Use:   "agent",
		Short: "Manage the roster",
		Long:  "Agents move between duties: standby recovers exhaustion, contracting earns money, training builds skill, espionage eases panic, and leads and missions spend them.",
	}
	agent.AddCommand(agentListCmd())
	agent.AddCommand(agentHireCmd())
	agent.AddCommand(agentRosterCmd("sack", "Sack idle agents", func(ctx context.Context, a *app.App, gameID string, ids []int64) error {
		return a.Engine.SackAgents(ctx, gameID, ids)
	}))
	agent.AddCommand(agentRosterCmd("recall", "Recall agents to standby", func(ctx context.Context, a *app.App, gameID string, ids []int64) error {
		return a.Engine.RecallAgents(ctx, gameID, ids)
	}))
	agent.AddCommand(agentRosterCmd("contracting", "Send agents out contracting", func(ctx context.Context, a *app.App, gameID string, ids []int64) error {
		return a.Engine.AssignContracting(ctx, gameID, ids)
	}))
	agent.AddCommand(agentRosterCmd("training", "Send agents to the academy", func(ctx context.Context, a *app.App, gameID string, ids []int64) error {
		return a.Engine.AssignTraining(ctx, gameID, ids)
	}))
	agent.AddCommand(agentRosterCmd("espionage", "Send agents out on espionage", func(ctx context.Context, a *app.App, gameID string, ids []int64) error {
		return a.Engine.AssignEspionage(ctx, gameID, ids)
	}))
	return agent
}

func agentListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), func(ctx context.Context, a *app.App, state *domain.GameState) error {
				agents := state.Agents
				if !all {
					kept := agents[:0:0]
					for _, ag := range agents {
						if ag.State != domain.Terminated {
							kept = append(kept, ag)
						}
					}
					agents = kept
				}
				if viper.GetBool("json") {
					return printJSON(agents)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "State", "Duty", "Skill", "HP", "Exhaustion", "Missions"})
				for _, ag := range agents {
					hp := fmt.Sprintf("%s/%d", ag.HitPoints, ag.MaxHitPoints)
					tw.AppendRow(table.Row{ag.ID, ag.Name, ag.State, ag.Duty, ag.Skill, hp, ag.Exhaustion, ag.MissionCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include terminated agents")
	return cmd
}

func agentHireCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "hire",
		Short: "Hire rookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				var hired []*domain.Agent
				for i := 0; i < count; i++ {
					ag, err := a.Engine.HireAgent(ctx, g.ID)
					if err != nil {
						return err
					}
					hired = append(hired, ag)
				}
				return printJSONOrTable(hired)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of rookies to hire")
	return cmd
}

func agentRosterCmd(use, short string, fn func(ctx context.Context, a *app.App, gameID string, ids []int64) error) *cobra.Command {
	var ids []int64
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				return fn(ctx, a, g.ID, ids)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "agent id (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func missionCmd() *cobra.Command {
	mission := &cobra.Command{
		Use:   "mission",
		Short: "Manage missions",
		Long:  "Missions appear from completed leads and faction operations. Deploy a team before they expire; the battle resolves on the next turn after the transport arrives.",
	}
	mission.AddCommand(missionListCmd())
	mission.AddCommand(missionDeployCmd())
	return mission
}

func missionListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), func(ctx context.Context, a *app.App, state *domain.GameState) error {
				missions := state.Missions
				if !all {
					kept := missions[:0:0]
					for _, m := range missions {
						if m.State == domain.MissionActive || m.State == domain.MissionDeployed {
							kept = append(kept, m)
						}
					}
					missions = kept
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "State", "Enemies", "Expires", "Faction"})
				for _, m := range missions {
					expires := "-"
					if m.ExpiresIn != domain.NoExpiry {
						expires = fmt.Sprintf("%d", m.ExpiresIn)
					}
					tw.AppendRow(table.Row{m.ID, m.Name, m.State, len(m.Enemies), expires, m.FactionID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include resolved and expired missions")
	return cmd
}

func missionDeployCmd() *cobra.Command {
	var missionID int64
	var ids []int64
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy agents on a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				return a.Engine.DeployMission(ctx, g.ID, missionID, ids)
			})
		},
	}
	cmd.Flags().Int64Var(&missionID, "mission", 0, "mission id")
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "agent id (repeatable)")
	_ = cmd.MarkFlagRequired("mission")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func leadCmd() *cobra.Command {
	lead := &cobra.Command{
		Use:   "lead",
		Short: "Manage lead investigations",
		Long:  "Leads are rumors worth chasing. Assign agents to investigate; intel accumulates each turn until the lead resolves and spawns its missions.",
	}
	lead.AddCommand(leadListCmd())
	lead.AddCommand(leadInvestigateCmd())
	lead.AddCommand(leadReinforceCmd())
	return lead
}

func leadListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads and running investigations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), func(ctx context.Context, a *app.App, state *domain.GameState) error {
				if viper.GetBool("json") {
					out := map[string]any{
						"leads":          a.Rules.Leads,
						"investigations": state.Investigations,
						"completions":    state.LeadCompletions,
					}
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Lead", "Name", "Difficulty", "Completions"})
				for id, def := range a.Rules.Leads {
					tw.AppendRow(table.Row{id, def.Name, def.Difficulty, state.LeadCompletions[id]})
				}
				tw.Render()
				if len(state.Investigations) == 0 {
					return nil
				}
				iw := table.NewWriter()
				iw.SetOutputMirror(os.Stdout)
				iw.AppendHeader(table.Row{"ID", "Lead", "State", "Intel", "Agents"})
				for _, inv := range state.Investigations {
					iw.AppendRow(table.Row{inv.ID, inv.LeadID, inv.State, inv.Intel, len(inv.AgentIDs)})
				}
				iw.Render()
				return nil
			})
		},
	}
	return cmd
}

func leadInvestigateCmd() *cobra.Command {
	var ids []int64
	cmd := &cobra.Command{
		Use:   "investigate <lead-id>",
		Short: "Start investigating a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				inv, err := a.Engine.StartInvestigation(ctx, g.ID, args[0], ids)
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "agent id (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func leadReinforceCmd() *cobra.Command {
	var invID int64
	var ids []int64
	cmd := &cobra.Command{
		Use:   "reinforce",
		Short: "Add agents to a running investigation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				return a.Engine.ReinforceInvestigation(ctx, g.ID, invID, ids)
			})
		},
	}
	cmd.Flags().Int64Var(&invID, "investigation", 0, "investigation id")
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "agent id (repeatable)")
	_ = cmd.MarkFlagRequired("investigation")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func upgradeCmd() *cobra.Command {
	upgrade := &cobra.Command{Use: "upgrade", Short: "Buy capacity upgrades"}
	upgrade.AddCommand(upgradeListCmd())
	upgrade.AddCommand(upgradeBuyCmd())
	return upgrade
}

func upgradeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upgrades",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd.Context(), func(ctx context.Context, a *app.App, state *domain.GameState) error {
				owned := map[string]bool{}
				for _, id := range state.Upgrades {
					owned[id] = true
				}
				if viper.GetBool("json") {
					out := map[string]any{"upgrades": a.Rules.Upgrades, "purchased": state.Upgrades}
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Capacity", "Adds", "Cost", "Purchased"})
				for id, def := range a.Rules.Upgrades {
					tw.AppendRow(table.Row{id, def.Capacity, def.Adds, def.Cost, owned[id]})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func upgradeBuyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <upgrade-id>",
		Short: "Purchase an upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				return a.Engine.PurchaseUpgrade(ctx, g.ID, args[0])
			})
		},
	}
	return cmd
}

func turnCmd() *cobra.Command {
	turn := &cobra.Command{Use: "turn", Short: "Advance or rewind the simulation"}
	turn.AddCommand(turnAdvanceCmd())
	turn.AddCommand(turnUndoCmd())
	turn.AddCommand(turnReportCmd())
	return turn
}

func turnAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance one turn and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				report, err := a.Engine.AdvanceTurn(ctx, g.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				printReport(report)
				return nil
			})
		},
	}
	return cmd
}

func turnUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Rewind to the previous turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				turn, err := a.Engine.Undo(ctx, g.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Rewound to turn %d\n", turn)
				return nil
			})
		},
	}
	return cmd
}

func turnReportCmd() *cobra.Command {
	var turn int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a past turn report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				if turn == 0 {
					turn = g.Turn
				}
				report, err := a.Engine.Repo.GetReport(ctx, g.ID, turn)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				printReport(report)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&turn, "turn", 0, "turn number (defaults to the latest)")
	return cmd
}

func printReport(r *domain.TurnReport) {
	fmt.Printf("Turn %d\n", r.Turn)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Metric", "Previous", "Current", "Delta"})
	tw.AppendRow(table.Row{"Money", r.Money.Previous, r.Money.Current, r.Money.Delta})
	tw.AppendRow(table.Row{"Funding", r.Funding.Previous, r.Funding.Current, r.Funding.Delta})
	tw.AppendRow(table.Row{"Panic", r.Panic.Previous, r.Panic.Current, r.Panic.Delta})
	tw.AppendRow(table.Row{"Upkeep", "", r.Upkeep, ""})
	tw.AppendRow(table.Row{"Contracting", "", r.ContractingIncome, ""})
	if !r.EspionageRelief.IsZero() {
		tw.AppendRow(table.Row{"Espionage", "", r.EspionageRelief, ""})
	}
	tw.Render()
	if len(r.Missions) > 0 {
		mw := table.NewWriter()
		mw.SetOutputMirror(os.Stdout)
		mw.AppendHeader(table.Row{"Mission", "Outcome", "Rounds", "Lost", "Down", "Reward"})
		for _, m := range r.Missions {
			mw.AppendRow(table.Row{m.Name, m.Outcome, m.Rounds, m.AgentsLost, m.EnemiesDown, m.MoneyReward})
		}
		mw.Render()
	}
	for _, inv := range r.Investigations {
		fmt.Printf("Investigation %d (%s): %s, intel %s -> %s\n", inv.InvestigationID, inv.LeadID, inv.Status, inv.Intel.Previous, inv.Intel.Current)
	}
	for _, f := range r.Factions {
		fmt.Printf("Faction %s: level %d -> %d", f.FactionID, f.Level.Previous, f.Level.Current)
		if f.SpawnedMission != 0 {
			fmt.Printf(", launched mission %d", f.SpawnedMission)
		}
		fmt.Println()
	}
	for _, id := range r.ExpiredMissions {
		fmt.Printf("Mission %d expired\n", id)
	}
}

func aiCmd() *cobra.Command {
	ai := &cobra.Command{
		Use:   "ai",
		Short: "Scripted players",
		Long:  "A scripted player compiles a doctrine (a small set of weighted priorities) into rules and plays turns on its own. Useful for balance testing and soak runs.",
	}
	ai.AddCommand(aiRunCmd())
	return ai
}

func aiRunCmd() *cobra.Command {
	var turns int
	var doctrinePath, panicCeiling string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play turns with a doctrine until a stop condition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				doctrine := script.DefaultDoctrine()
				if doctrinePath != "" {
					data, err := os.ReadFile(doctrinePath)
					if err != nil {
						return err
					}
					if err := json.Unmarshal(data, &doctrine); err != nil {
						return fmt.Errorf("invalid doctrine file: %w", err)
					}
				}
				player, err := script.NewPlayer(a.Engine, g.ID, script.CompileDoctrine(doctrine), turns)
				if err != nil {
					return err
				}
				if panicCeiling != "" {
					ceiling, err := fixed.Parse(panicCeiling)
					if err != nil {
						return fmt.Errorf("invalid panic ceiling: %w", err)
					}
					player.PanicCeiling = ceiling
				}
				outcome, err := player.Run(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(outcome)
			})
		},
	}
	cmd.Flags().IntVar(&turns, "turns", 20, "maximum turns to play")
	cmd.Flags().StringVar(&doctrinePath, "doctrine", "", "path to a doctrine JSON file (defaults to the balanced doctrine)")
	cmd.Flags().StringVar(&panicCeiling, "panic-ceiling", "", "stop when panic reaches this value")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: commands, turn advances, and undos.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				g, err := a.ResolveGame(ctx, viper.GetString("game"))
				if err != nil {
					return err
				}
				events, err := a.Engine.Repo.LatestEvents(ctx, n, g.ID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func rulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Manage the rules file",
		Long:  "Rules live in vigil.yml at the workspace root. Without one the embedded balance baseline applies.",
	}
	rules.AddCommand(rulesShowCmd())
	rules.AddCommand(rulesInitCmd())
	rules.AddCommand(rulesImportCmd())
	return rules
}

func rulesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective rules YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			data, err := os.ReadFile(config.Path(workspace))
			if err != nil {
				if !os.IsNotExist(err) {
					return err
				}
				data = []byte(config.DefaultYAML())
			}
			fmt.Print(string(data))
			return nil
		},
	}
	return cmd
}

func rulesInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default rules to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.DefaultYAML()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func rulesImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and install a rules file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			if _, err := config.FromYAML(data); err != nil {
				return err
			}
			path := config.Path(viper.GetString("workspace"))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Installed %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML rules")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys for scripted players"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once, only the hash is stored)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				raw := make([]byte, 32)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				secret := "vk_" + hex.EncodeToString(raw)
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": secret})
				}
				fmt.Printf("Key %s created for %s\n", key.ID, key.ActorID)
				fmt.Printf("Secret (save it now): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				keys, err := a.Engine.Repo.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowAnonymous, devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("VIGIL_JWT_SECRET"),
				AllowAnonymous: allowAnonymous,
				EnableDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = a.Rules.Server.JWTSecret
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowAnonymous {
				return fmt.Errorf("set VIGIL_JWT_SECRET (or server.jwt_secret in vigil.yml), or pass --allow-anonymous for local play")
			}
			if !cmd.Flags().Changed("addr") && a.Rules.Server.Addr != "" {
				addr = a.Rules.Server.Addr
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Vigil API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "serve without authentication (local play)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose /auth/dev/login for minting test tokens")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withState(ctx context.Context, fn func(context.Context, *app.App, *domain.GameState) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		g, err := a.ResolveGame(ctx, viper.GetString("game"))
		if err != nil {
			return err
		}
		state, err := a.Engine.GetState(ctx, g.ID)
		if err != nil {
			return err
		}
		return fn(ctx, a, state)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
