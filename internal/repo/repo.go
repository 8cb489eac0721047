package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vigil/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertGame(ctx context.Context, tx *sql.Tx, g domain.Game) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO games(id,name,seed,turn,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		g.ID, g.Name, g.Seed, g.Turn, g.CreatedAt, g.UpdatedAt)
	return err
}

func (r Repo) GetGame(ctx context.Context, id string) (domain.Game, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,seed,turn,created_at,updated_at FROM games WHERE id=?`, id)
	var g domain.Game
	err := row.Scan(&g.ID, &g.Name, &g.Seed, &g.Turn, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	return g, err
}

func (r Repo) ListGames(ctx context.Context) ([]domain.Game, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,seed,turn,created_at,updated_at FROM games ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.Seed, &g.Turn, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// SingleGame returns the only game in the workspace, erroring when the
// caller must disambiguate.
func (r Repo) SingleGame(ctx context.Context) (domain.Game, error) {
	games, err := r.ListGames(ctx)
	if err != nil {
		return domain.Game{}, err
	}
	if len(games) == 0 {
		return domain.Game{}, ErrNotFound
	}
	if len(games) > 1 {
		return domain.Game{}, fmt.Errorf("multiple games exist; specify --game")
	}
	return games[0], nil
}

func (r Repo) SetGameTurn(ctx context.Context, tx *sql.Tx, id string, turn int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE games SET turn=?, updated_at=? WHERE id=?`, turn, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteGame(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM games WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSnapshot stores the full GameState for one turn. Commands issued
// mid-turn overwrite the same row; turn advancement inserts the next one.
func (r Repo) UpsertSnapshot(ctx context.Context, tx *sql.Tx, gameID string, turn int, state *domain.GameState, createdAt string) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO snapshots(game_id,turn,state_json,created_at) VALUES (?,?,?,?)
ON CONFLICT(game_id,turn) DO UPDATE SET state_json=excluded.state_json, created_at=excluded.created_at`,
		gameID, turn, string(payload), createdAt)
	return err
}

func (r Repo) GetSnapshot(ctx context.Context, gameID string, turn int) (*domain.GameState, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT state_json FROM snapshots WHERE game_id=? AND turn=?`, gameID, turn).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var state domain.GameState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}

func (r Repo) DeleteSnapshotsAfter(ctx context.Context, tx *sql.Tx, gameID string, turn int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE game_id=? AND turn>?`, gameID, turn); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE game_id=? AND turn>?`, gameID, turn)
	return err
}

func (r Repo) InsertReport(ctx context.Context, tx *sql.Tx, gameID string, report *domain.TurnReport, createdAt string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO reports(game_id,turn,report_json,created_at) VALUES (?,?,?,?)`,
		gameID, report.Turn, string(payload), createdAt)
	return err
}

func (r Repo) GetReport(ctx context.Context, gameID string, turn int) (*domain.TurnReport, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE game_id=? AND turn=?`, gameID, turn).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var report domain.TurnReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// LatestEvents returns up to limit most recent events, newest first,
// optionally filtered by game and type.
func (r Repo) LatestEvents(ctx context.Context, limit int, gameID, evtType string) ([]domain.Event, error) {
	return r.listEvents(ctx, `id<=?`, int64(1)<<62, limit, gameID, evtType, `ORDER BY id DESC`)
}

// EventsAfter returns events with id greater than cursor, oldest first. The
// webhook dispatcher tails the log with it.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, gameID string) ([]domain.Event, error) {
	return r.listEvents(ctx, `id>?`, cursor, limit, gameID, "", `ORDER BY id ASC`)
}

func (r Repo) listEvents(ctx context.Context, idClause string, idArg int64, limit int, gameID, evtType, order string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(game_id,''),entity_kind,COALESCE(entity_id,''),payload_json FROM events WHERE ` + idClause
	args := []any{idArg}
	if gameID != "" {
		query += ` AND game_id=?`
		args = append(args, gameID)
	}
	if evtType != "" {
		query += ` AND type=?`
		args = append(args, evtType)
	}
	query += ` ` + order
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.GameID, &e.EntityKind, &e.EntityID, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context, gameID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if gameID != "" {
		query += ` WHERE game_id=?`
		args = append(args, gameID)
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
