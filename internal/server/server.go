package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_funds"`
	Message string         `json:"message" example:"hiring costs 150, have 80"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Vigil API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Vigil API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerGames(group, cfg.Engine)
	registerStatus(group, cfg.Engine)
	registerAgents(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerLeads(group, cfg.Engine)
	registerUpgrades(group, cfg.Engine)
	registerTurns(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	if cfg.Auth.EnableDevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the envelope: Rejections carry their
// own code, ErrNotFound becomes 404, anything else is internal.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var rej engine.Rejection
	if errors.As(err, &rej) {
		return newAPIError(statusForRejection(rej.Code), rej.Code, rej.Reason, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func statusForRejection(code string) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeBadRequest:
		return http.StatusBadRequest
	case engine.CodeInvalidState, engine.CodeDuplicate:
		return http.StatusConflict
	case engine.CodeInsufficientFunds, engine.CodeCapacityExceeded, engine.CodeOverExhaustion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Vigil API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

type gamePath struct {
	GameID string `path:"game_id"`
}

func registerGames(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-game",
		Method:        http.MethodPost,
		Path:          "/games",
		Summary:       "Create game",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateGameRequest `json:"body"`
	}) (*struct {
		Body GameResponse `json:"body"`
	}, error) {
		g, err := e.CreateGame(ctx, input.Body.Name, input.Body.Seed)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GameResponse `json:"body"`
		}{Body: gameResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-games",
		Method:      http.MethodGet,
		Path:        "/games",
		Summary:     "List games",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []GameResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListGames(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []GameResponse `json:"body"`
		}{Body: mapGames(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-game",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}",
		Summary:     "Get game",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body GameResponse `json:"body"`
	}, error) {
		g, err := e.Repo.GetGame(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GameResponse `json:"body"`
		}{Body: gameResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-game",
		Method:      http.MethodDelete,
		Path:        "/games/{game_id}",
		Summary:     "Delete game",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct{}, error) {
		if err := e.Repo.DeleteGame(ctx, input.GameID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/state",
		Summary:     "Current turn snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body *domain.GameState `json:"body"`
	}, error) {
		state, err := e.GetState(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.GameState `json:"body"`
		}{Body: state}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/status",
		Summary:     "Campaign status summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		state, err := e.GetState(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: statusResponse(state)}, nil
	})
}

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/agents",
		Summary:     "List agents",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body []*domain.Agent `json:"body"`
	}, error) {
		state, err := e.GetState(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []*domain.Agent `json:"body"`
		}{Body: state.Agents}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "hire-agent",
		Method:        http.MethodPost,
		Path:          "/games/{game_id}/agents/hire",
		Summary:       "Hire a rookie",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body *domain.Agent `json:"body"`
	}, error) {
		a, err := e.HireAgent(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.Agent `json:"body"`
		}{Body: a}, nil
	})

	type rosterCommand struct {
		GameID string          `path:"game_id"`
		Body   AgentIDsRequest `json:"body"`
	}
	register := func(id, pathSuffix, summary string, run func(ctx context.Context, gameID string, ids []int64) error) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        "/games/{game_id}/agents/" + pathSuffix,
			Summary:     summary,
			Errors: []int{
				http.StatusBadRequest,
				http.StatusNotFound,
				http.StatusConflict,
				http.StatusUnprocessableEntity,
			},
		}, func(ctx context.Context, input *rosterCommand) (*struct{}, error) {
			if err := run(ctx, input.GameID, input.Body.AgentIDs); err != nil {
				return nil, handleError(err)
			}
			return &struct{}{}, nil
		})
	}
	register("sack-agents", "sack", "Sack agents", e.SackAgents)
	register("recall-agents", "recall", "Recall agents from assignments", e.RecallAgents)
	register("assign-contracting", "contracting", "Send agents contracting", e.AssignContracting)
	register("assign-training", "training", "Send agents to training", e.AssignTraining)
	register("assign-espionage", "espionage", "Send agents on espionage", e.AssignEspionage)
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/missions",
		Summary:     "List missions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body []*domain.Mission `json:"body"`
	}, error) {
		state, err := e.GetState(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []*domain.Mission `json:"body"`
		}{Body: state.Missions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deploy-mission",
		Method:      http.MethodPost,
		Path:        "/games/{game_id}/missions/{mission_id}/deploy",
		Summary:     "Deploy a squad to a mission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		GameID    string          `path:"game_id"`
		MissionID int64           `path:"mission_id"`
		Body      AgentIDsRequest `json:"body"`
	}) (*struct{}, error) {
		if err := e.DeployMission(ctx, input.GameID, input.MissionID, input.Body.AgentIDs); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLeads(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-investigations",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/investigations",
		Summary:     "List lead investigations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body []*domain.LeadInvestigation `json:"body"`
	}, error) {
		state, err := e.GetState(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []*domain.LeadInvestigation `json:"body"`
		}{Body: state.Investigations}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-investigation",
		Method:        http.MethodPost,
		Path:          "/games/{game_id}/leads/{lead_id}/investigate",
		Summary:       "Start investigating a lead",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		GameID string          `path:"game_id"`
		LeadID string          `path:"lead_id"`
		Body   AgentIDsRequest `json:"body"`
	}) (*struct {
		Body *domain.LeadInvestigation `json:"body"`
	}, error) {
		li, err := e.StartInvestigation(ctx, input.GameID, input.LeadID, input.Body.AgentIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.LeadInvestigation `json:"body"`
		}{Body: li}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reinforce-investigation",
		Method:      http.MethodPost,
		Path:        "/games/{game_id}/investigations/{investigation_id}/reinforce",
		Summary:     "Reinforce an investigation",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		GameID          string          `path:"game_id"`
		InvestigationID int64           `path:"investigation_id"`
		Body            AgentIDsRequest `json:"body"`
	}) (*struct{}, error) {
		if err := e.ReinforceInvestigation(ctx, input.GameID, input.InvestigationID, input.Body.AgentIDs); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerUpgrades(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "purchase-upgrade",
		Method:      http.MethodPost,
		Path:        "/games/{game_id}/upgrades/{upgrade_id}/purchase",
		Summary:     "Purchase an upgrade",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		GameID    string `path:"game_id"`
		UpgradeID string `path:"upgrade_id"`
	}) (*struct{}, error) {
		if err := e.PurchaseUpgrade(ctx, input.GameID, input.UpgradeID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTurns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "advance-turn",
		Method:      http.MethodPost,
		Path:        "/games/{game_id}/turn/advance",
		Summary:     "Advance the turn",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body *domain.TurnReport `json:"body"`
	}, error) {
		report, err := e.AdvanceTurn(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.TurnReport `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "undo-turn",
		Method:      http.MethodPost,
		Path:        "/games/{game_id}/turn/undo",
		Summary:     "Rewind one turn",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *gamePath) (*struct {
		Body UndoResponse `json:"body"`
	}, error) {
		turn, err := e.Undo(ctx, input.GameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UndoResponse `json:"body"`
		}{Body: UndoResponse{Turn: turn}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/reports/{turn}",
		Summary:     "Turn report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GameID string `path:"game_id"`
		Turn   int    `path:"turn"`
	}) (*struct {
		Body *domain.TurnReport `json:"body"`
	}, error) {
		report, err := e.Repo.GetReport(ctx, input.GameID, input.Turn)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.TurnReport `json:"body"`
		}{Body: report}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/games/{game_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		GameID string `path:"game_id"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		var items []domain.Event
		var err error
		if input.Cursor != "" {
			cursorID, perr := strconv.ParseInt(input.Cursor, 10, 64)
			if perr != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			items, err = e.Repo.EventsAfter(ctx, limit+1, cursorID, input.GameID)
		} else {
			items, err = e.Repo.LatestEvents(ctx, limit+1, input.GameID, input.Type)
		}
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
