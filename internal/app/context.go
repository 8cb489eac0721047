package app

import (
	"context"
	"database/sql"
	"fmt"

	"vigil/internal/config"
	"vigil/internal/db"
	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/migrate"
)

// App bundles everything a command needs against one workspace: the open
// database (migrated), the loaded rules, and an engine over both.
type App struct {
	Workspace string
	DB        *sql.DB
	Rules     *config.Rules
	Engine    engine.Engine
}

// Open prepares the workspace: creates the data directory, opens and
// migrates the database, loads the rules (workspace file or embedded
// defaults), and builds the engine.
func Open(workspace string) (*App, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	rules, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &App{
		Workspace: workspace,
		DB:        conn,
		Rules:     rules,
		Engine:    engine.New(conn, rules),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// ResolveGame picks the active game: an explicit id wins, otherwise the
// workspace's single game.
func (a *App) ResolveGame(ctx context.Context, override string) (domain.Game, error) {
	if override != "" {
		return a.Engine.Repo.GetGame(ctx, override)
	}
	return a.Engine.Repo.SingleGame(ctx)
}
