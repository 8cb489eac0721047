package vigilsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Vigil HTTP API client.
type Client struct {
	BaseURL     string
	GameID      string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, gameID string) *Client {
	return &Client{
		BaseURL: baseURL,
		GameID:  gameID,
		Timeout: 10 * time.Second,
	}
}

// Game represents the API game record.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seed      int64  `json:"seed"`
	Turn      int    `json:"turn"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Caps holds the three roster capacities.
type Caps struct {
	Agents    int `json:"agents"`
	Transport int `json:"transport"`
	Training  int `json:"training"`
}

// FactionStatus is one faction's line in the status summary.
type FactionStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Suppression int    `json:"suppression"`
	Countdown   int    `json:"countdown"`
}

// Status summarizes a campaign without the full state dump. Panic is the
// server's fixed-point decimal string.
type Status struct {
	GameID      string           `json:"game_id"`
	Name        string           `json:"name"`
	Turn        int              `json:"turn"`
	Actions     int              `json:"actions"`
	Money       int64            `json:"money"`
	Funding     int64            `json:"funding"`
	Panic       string           `json:"panic"`
	Caps        Caps             `json:"caps"`
	AgentCounts map[string]int64 `json:"agent_counts"`
	Missions    map[string]int   `json:"missions"`
	Factions    []FactionStatus  `json:"factions"`
}

// Agent represents the API agent model (partial). Fixed-point fields
// arrive as decimal strings.
type Agent struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Skill      string `json:"skill"`
	Exhaustion string `json:"exhaustion"`
	HiredTurn  int    `json:"hired_turn"`
}

// Mission represents the API mission model (partial).
type Mission struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Template  string `json:"template"`
	State     string `json:"state"`
	ExpiresIn int    `json:"expires_in"`
	FactionID string `json:"faction_id,omitempty"`
}

// Investigation represents a running lead investigation (partial).
type Investigation struct {
	ID       int64   `json:"id"`
	LeadID   string  `json:"lead_id"`
	Intel    string  `json:"intel"`
	AgentIDs []int64 `json:"agent_ids"`
	State    string  `json:"state"`
}

// TurnReport is the structured diff one turn advance returns. Consumers
// that need the full detail should decode Raw themselves.
type TurnReport struct {
	Turn    int             `json:"turn"`
	Money   Delta           `json:"money"`
	Funding Delta           `json:"funding"`
	Raw     json.RawMessage `json:"-"`
}

// Delta is a previous/current/delta triple.
type Delta struct {
	Previous int64 `json:"previous"`
	Current  int64 `json:"current"`
	Delta    int64 `json:"delta"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	GameID     string         `json:"game_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateGame starts a new campaign and points the client at it. A zero
// seed asks the server to pick one.
func (c *Client) CreateGame(ctx context.Context, name string, seed int64) (Game, error) {
	body := map[string]any{"name": name, "seed": seed}
	var resp Game
	if err := c.do(ctx, http.MethodPost, "v0/games", body, &resp); err != nil {
		return Game{}, err
	}
	c.GameID = resp.ID
	return resp, nil
}

// Games lists all campaigns on the server.
func (c *Client) Games(ctx context.Context) ([]Game, error) {
	var resp []Game
	err := c.do(ctx, http.MethodGet, "v0/games", nil, &resp)
	return resp, err
}

// Status returns the campaign summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, c.gamePath("status"), nil, &resp)
	return resp, err
}

// Agents lists the roster.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var resp []Agent
	err := c.do(ctx, http.MethodGet, c.gamePath("agents"), nil, &resp)
	return resp, err
}

// Hire recruits one rookie.
func (c *Client) Hire(ctx context.Context) (Agent, error) {
	var resp Agent
	err := c.do(ctx, http.MethodPost, c.gamePath("agents/hire"), nil, &resp)
	return resp, err
}

// Sack terminates idle agents.
func (c *Client) Sack(ctx context.Context, agentIDs []int64) error {
	return c.rosterCommand(ctx, "sack", agentIDs)
}

// Recall pulls agents back to standby.
func (c *Client) Recall(ctx context.Context, agentIDs []int64) error {
	return c.rosterCommand(ctx, "recall", agentIDs)
}

// AssignContracting sends agents out to earn income.
func (c *Client) AssignContracting(ctx context.Context, agentIDs []int64) error {
	return c.rosterCommand(ctx, "contracting", agentIDs)
}

// AssignTraining sends agents to the academy.
func (c *Client) AssignTraining(ctx context.Context, agentIDs []int64) error {
	return c.rosterCommand(ctx, "training", agentIDs)
}

// AssignEspionage sends agents into the field to ease panic.
func (c *Client) AssignEspionage(ctx context.Context, agentIDs []int64) error {
	return c.rosterCommand(ctx, "espionage", agentIDs)
}

func (c *Client) rosterCommand(ctx context.Context, verb string, agentIDs []int64) error {
	body := map[string]any{"agent_ids": agentIDs}
	return c.do(ctx, http.MethodPost, c.gamePath("agents/"+verb), body, nil)
}

// Missions lists missions.
func (c *Client) Missions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, c.gamePath("missions"), nil, &resp)
	return resp, err
}

// Deploy sends a team on a mission.
func (c *Client) Deploy(ctx context.Context, missionID int64, agentIDs []int64) error {
	body := map[string]any{"agent_ids": agentIDs}
	endpoint := c.gamePath(fmt.Sprintf("missions/%d/deploy", missionID))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// Investigations lists lead investigations.
func (c *Client) Investigations(ctx context.Context) ([]Investigation, error) {
	var resp []Investigation
	err := c.do(ctx, http.MethodGet, c.gamePath("investigations"), nil, &resp)
	return resp, err
}

// Investigate starts an investigation on a lead.
func (c *Client) Investigate(ctx context.Context, leadID string, agentIDs []int64) (Investigation, error) {
	body := map[string]any{"agent_ids": agentIDs}
	endpoint := c.gamePath(fmt.Sprintf("leads/%s/investigate", url.PathEscape(leadID)))
	var resp Investigation
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Reinforce adds agents to a running investigation.
func (c *Client) Reinforce(ctx context.Context, investigationID int64, agentIDs []int64) error {
	body := map[string]any{"agent_ids": agentIDs}
	endpoint := c.gamePath(fmt.Sprintf("investigations/%d/reinforce", investigationID))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// PurchaseUpgrade buys a capacity upgrade.
func (c *Client) PurchaseUpgrade(ctx context.Context, upgradeID string) error {
	endpoint := c.gamePath(fmt.Sprintf("upgrades/%s/purchase", url.PathEscape(upgradeID)))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// AdvanceTurn runs one simulation step and returns the turn report.
func (c *Client) AdvanceTurn(ctx context.Context) (TurnReport, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.gamePath("turn/advance"), nil, &raw); err != nil {
		return TurnReport{}, err
	}
	var resp TurnReport
	if err := json.Unmarshal(raw, &resp); err != nil {
		return TurnReport{}, err
	}
	resp.Raw = raw
	return resp, nil
}

// Undo rewinds one turn and returns the turn now current.
func (c *Client) Undo(ctx context.Context) (int, error) {
	var resp struct {
		Turn int `json:"turn"`
	}
	err := c.do(ctx, http.MethodPost, c.gamePath("turn/undo"), nil, &resp)
	return resp.Turn, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.gamePath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) gamePath(p string) string {
	game := url.PathEscape(c.GameID)
	return fmt.Sprintf("v0/games/%s/%s", game, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
