// Package db opens the campaign workspace store: a single SQLite file under
// the .vigil directory holding games, snapshots, reports, and the event log.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".vigil"
	dbName       = "vigil.db"
)

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the .vigil directory if missing and returns its
// path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(rootOrDot(workspace), workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the campaign database. Foreign keys are enforced, and a busy
// timeout covers readers (the webhook dispatcher, status queries) racing a
// command transaction.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	return sql.Open("sqlite", dsn)
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(rootOrDot(workspace), workspaceDir, dbName)
}

func rootOrDot(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}
