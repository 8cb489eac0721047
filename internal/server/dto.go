package server

import (
	"encoding/json"

	"vigil/internal/domain"
	"vigil/internal/fixed"
)

// GameResponse is the API shape of a game row.
type GameResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seed      int64  `json:"seed"`
	Turn      int    `json:"turn"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func gameResponse(g domain.Game) GameResponse {
	return GameResponse{
		ID:        g.ID,
		Name:      g.Name,
		Seed:      g.Seed,
		Turn:      g.Turn,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func mapGames(items []domain.Game) []GameResponse {
	out := make([]GameResponse, 0, len(items))
	for _, g := range items {
		out = append(out, gameResponse(g))
	}
	return out
}

// StatusResponse is the campaign-at-a-glance summary.
type StatusResponse struct {
	GameID      string           `json:"game_id"`
	Name        string           `json:"name"`
	Turn        int              `json:"turn"`
	Actions     int              `json:"actions"`
	Money       int64            `json:"money"`
	Funding     int64            `json:"funding"`
	Panic       fixed.Fixed      `json:"panic"`
	Caps        domain.Caps      `json:"caps"`
	AgentCounts map[string]int64 `json:"agent_counts"`
	Missions    map[string]int   `json:"missions"`
	Factions    []FactionStatus  `json:"factions"`
}

// FactionStatus is one faction's line in the status summary.
type FactionStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Suppression int    `json:"suppression"`
	Countdown   int    `json:"countdown"`
}

func statusResponse(state *domain.GameState) StatusResponse {
	missions := map[string]int{}
	for _, m := range state.Missions {
		missions[m.State.String()]++
	}
	factions := make([]FactionStatus, 0, len(state.Factions))
	for _, f := range state.Factions {
		factions = append(factions, FactionStatus{
			ID:          f.ID,
			Name:        f.Name,
			Level:       f.Level,
			Suppression: f.SuppressionTurns,
			Countdown:   f.OpCountdown,
		})
	}
	return StatusResponse{
		GameID:      state.ID,
		Name:        state.Name,
		Turn:        state.Turn,
		Actions:     state.Actions,
		Money:       state.Money,
		Funding:     state.Funding,
		Panic:       state.Panic,
		Caps:        state.Caps,
		AgentCounts: state.AgentCounts(),
		Missions:    missions,
		Factions:    factions,
	}
}

// EventResponse is the API shape of one event-log row.
type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	GameID     string          `json:"game_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		GameID:     evt.GameID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		Payload:    payload,
	}
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// AgentIDsRequest is the shared body for roster commands.
type AgentIDsRequest struct {
	AgentIDs []int64 `json:"agent_ids"`
}

// CreateGameRequest starts a new campaign. A zero seed asks the server to
// pick one.
type CreateGameRequest struct {
	Name string `json:"name"`
	Seed int64  `json:"seed,omitempty"`
}

// UndoResponse reports the turn the game was rewound to.
type UndoResponse struct {
	Turn int `json:"turn"`
}

// DevLoginRequest asks the dev-login endpoint for a token.
type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// DevLoginResponse carries a freshly minted JWT.
type DevLoginResponse struct {
	Token string `json:"token"`
}
