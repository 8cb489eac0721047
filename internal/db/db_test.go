package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesWorkspace(t *testing.T) {
	ws := t.TempDir()
	conn, err := Open(Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, workspaceDir)); err != nil {
		t.Fatalf("workspace dir: %v", err)
	}
}

func TestPathDefaultsToCurrentDir(t *testing.T) {
	got := Path("")
	want := filepath.Join(".", workspaceDir, dbName)
	if got != want {
		t.Fatalf("path: %q, want %q", got, want)
	}
}
