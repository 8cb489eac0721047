package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"vigil/internal/config"
	"vigil/internal/db"
	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowAnonymous: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createGame(t *testing.T, srv *testServer) GameResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games", map[string]any{
		"name": "campaign",
		"seed": 7,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create game: %d %s", res.StatusCode, string(data))
	}
	var g GameResponse
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("unmarshal game: %v", err)
	}
	return g
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	g := createGame(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/games/"+g.ID+"/status", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", res.StatusCode, string(data))
	}
	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Turn != 0 || status.Money == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/turn/advance", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance: %d %s", res.StatusCode, string(data))
	}
	var report domain.TurnReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Turn != 1 {
		t.Fatalf("report turn %d", report.Turn)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/turn/undo", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("undo: %d %s", res.StatusCode, string(data))
	}
	var undo UndoResponse
	_ = json.Unmarshal(data, &undo)
	if undo.Turn != 0 {
		t.Fatalf("undo landed on %d", undo.Turn)
	}
}

func TestRejectionMapsToStatusAndCode(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	g := createGame(t, srv)

	// sacking an unknown agent is a 404 with the rejection code
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/agents/sack", map[string]any{
		"agent_ids": []int64{9999},
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != engine.CodeNotFound {
		t.Fatalf("code %q", envelope.Error.Code)
	}

	// undo at turn zero conflicts
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/turn/undo", nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
}

func TestCommandsMutateState(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	g := createGame(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/agents/hire", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("hire: %d %s", res.StatusCode, string(data))
	}
	var hired domain.Agent
	if err := json.Unmarshal(data, &hired); err != nil {
		t.Fatalf("unmarshal agent: %v", err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/agents/contracting", map[string]any{
		"agent_ids": []int64{hired.ID},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("contracting: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/games/"+g.ID+"/agents", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list agents: %d %s", res.StatusCode, string(data))
	}
	var agents []domain.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		t.Fatalf("unmarshal agents: %v", err)
	}
	var found bool
	for _, a := range agents {
		if a.ID == hired.ID && a.State == domain.StartingTransit {
			found = true
		}
	}
	if !found {
		t.Fatalf("hired agent not in transit: %s", string(data))
	}
}

func TestEventsEndpointPaginates(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	g := createGame(t, srv)
	for i := 0; i < 3; i++ {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/games/"+g.ID+"/agents/hire", nil, nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("hire %d: %d %s", i, res.StatusCode, string(data))
		}
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/games/"+g.ID+"/events?limit=2", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("page: %d items cursor %q", len(page.Items), page.NextCursor)
	}
}

func TestAuthRequiredWithoutAnonymous(t *testing.T) {
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: "secret"}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	defer func() {
		srv.Shutdown(context.Background())
		ln.Close()
	}()
	url := "http://" + ln.Addr().String()

	res, _ := doJSON(t, &http.Client{}, http.MethodGet, url+"/v0/games", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, &http.Client{}, http.MethodGet, url+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
}

func TestDevLoginMintsUsableToken(t *testing.T) {
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: "secret", EnableDevLogin: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	defer func() {
		srv.Shutdown(context.Background())
		ln.Close()
	}()
	url := "http://" + ln.Addr().String()

	res, body := doJSON(t, &http.Client{}, http.MethodPost, url+"/v0/auth/dev/login", DevLoginRequest{ActorID: "tester"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login failed: %d %s", res.StatusCode, body)
	}
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("dev login returned empty token")
	}

	res, _ = doJSON(t, &http.Client{}, http.MethodGet, url+"/v0/games", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("minted token rejected: %d", res.StatusCode)
	}

	res, _ = doJSON(t, &http.Client{}, http.MethodGet, url+"/v0/games", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
}
