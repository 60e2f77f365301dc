package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/handlers"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/middleware"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/services"
	"github.com/Aksuiekbro/debetter-sub002/storage"
	"github.com/Aksuiekbro/debetter-sub002/testutil"
	"github.com/go-chi/chi/v5"
)

var testSecret = []byte("routes-test-secret")

type apiError struct {
	Error struct {
		Kind    string            `json:"kind"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
		Refs    map[string]string `json:"refs"`
	} `json:"error"`
}

type testAPI struct {
	t         *testing.T
	server    *httptest.Server
	organizer string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	conn := testutil.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploader, err := storage.NewMemoryUploader("https://media.test/")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	wsHub := hub.NewHub(logger)
	go wsHub.Run(ctx)

	svc := services.New(conn, uploader, wsHub, services.Settings{
		DefaultQuorum:         1,
		DefaultJudgesPerMatch: 1,
		PointsPerWin:          1,
	}, logger)

	router := chi.NewRouter()
	SetupRoutes(router, Dependencies{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		Health:         handlers.NewHealthHandler(conn),
		Tournaments:    handlers.NewTournamentHandler(svc.Tournaments),
		Entrants:       handlers.NewEntrantHandler(svc.Entrants),
		Participant:    handlers.NewParticipantHandler(svc.Participants),
		Teams:          handlers.NewTeamHandler(svc.Teams),
		Postings:       handlers.NewPostingHandler(svc.Postings),
		Evaluations:    handlers.NewEvaluationHandler(svc.Evaluations),
		Standings:      handlers.NewStandingsHandler(svc.Standings),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, svc.Tournaments, []string{"*"}, logger),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	api := &testAPI{t: t, server: server}
	api.organizer = api.token("organizer-1", middleware.RoleOrganizer)
	return api
}

func (a *testAPI) token(userID string, role middleware.Role) string {
	a.t.Helper()
	tok, err := middleware.NewToken(testSecret, userID, role, time.Hour, time.Now())
	if err != nil {
		a.t.Fatalf("NewToken: %v", err)
	}
	return tok
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (a *testAPI) do(method, path, token string, body, out interface{}) int {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("%s %s: decode response (status %d): %v", method, path, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

func (a *testAPI) mustDo(method, path, token string, body, out interface{}, want int) {
	a.t.Helper()
	var raw json.RawMessage
	status := a.do(method, path, token, body, &raw)
	if status != want {
		a.t.Fatalf("%s %s: status = %d, want %d: %s", method, path, status, want, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			a.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func (a *testAPI) createEntrant(name string, role models.EntrantRole) string {
	a.t.Helper()
	var out struct {
		Entrant models.Entrant `json:"entrant"`
	}
	a.mustDo(http.MethodPost, "/api/v1/entrants", a.organizer,
		map[string]any{"display_name": name, "role": role}, &out, http.StatusCreated)
	return out.Entrant.ID
}

func TestTournamentFlow(t *testing.T) {
	api := newTestAPI(t)

	judgeID := api.createEntrant("Judge Judy", models.RoleJudge)
	var debaters []string
	for i := 1; i <= 4; i++ {
		debaters = append(debaters, api.createEntrant(fmt.Sprintf("Debater %d", i), models.RoleDebater))
	}

	var created struct {
		Tournament models.Tournament `json:"tournament"`
	}
	api.mustDo(http.MethodPost, "/api/v1/tournaments", api.organizer,
		map[string]any{"name": "Spring Open"}, &created, http.StatusCreated)
	tid := created.Tournament.ID

	var registered struct {
		Tournament models.Tournament `json:"tournament"`
	}
	api.mustDo(http.MethodPost, "/api/v1/tournaments/"+tid+"/participants", api.organizer,
		map[string]any{"judge_ids": []string{judgeID}, "debater_ids": debaters}, &registered, http.StatusOK)
	if len(registered.Tournament.JudgeIDs) != 1 || len(registered.Tournament.DebaterIDs) != 4 {
		t.Fatalf("registered judges=%v debaters=%v", registered.Tournament.JudgeIDs, registered.Tournament.DebaterIDs)
	}

	var randomized services.RandomizeTeamsResult
	api.mustDo(http.MethodPost, "/api/v1/tournaments/"+tid+"/teams/randomize", api.organizer,
		map[string]any{"seed": 7}, &randomized, http.StatusOK)
	if len(randomized.Teams) != 2 || randomized.Leftover != nil {
		t.Fatalf("randomize: %d teams, leftover %v", len(randomized.Teams), randomized.Leftover)
	}

	var round services.GenerateRoundResult
	api.mustDo(http.MethodPost, "/api/v1/tournaments/"+tid+"/rounds", api.organizer, nil, &round, http.StatusCreated)
	if round.Round != 1 || len(round.Postings) != 1 {
		t.Fatalf("round = %d with %d postings", round.Round, len(round.Postings))
	}
	posting := round.Postings[0]
	if !posting.HasJudge(judgeID) {
		t.Fatalf("judge %s not assigned: %v", judgeID, posting.JudgeIDs)
	}

	teamsByID := map[string]models.Team{}
	for _, team := range randomized.Teams {
		teamsByID[team.ID] = *team
	}
	winner := teamsByID[posting.Team1ID]
	loser := teamsByID[posting.Team2ID]

	judgeToken := api.token(judgeID, middleware.RoleJudge)

	var errBody apiError
	if status := api.do(http.MethodPost, "/api/v1/tournaments", judgeToken, map[string]any{"name": "Nope"}, &errBody); status != http.StatusForbidden {
		t.Fatalf("judge creating tournament: status = %d, want 403", status)
	}

	ballot := map[string]any{
		"winner_team_id": winner.ID,
		"scores": []map[string]any{
			{"entrant_id": winner.Members[0].EntrantID, "points": 78},
			{"entrant_id": loser.Members[0].EntrantID, "points": 71},
		},
	}
	var submitted struct {
		Evaluation models.Evaluation `json:"evaluation"`
	}
	api.mustDo(http.MethodPost, "/api/v1/postings/"+posting.ID+"/evaluations", judgeToken, ballot, &submitted, http.StatusCreated)
	if submitted.Evaluation.JudgeID != judgeID || submitted.Evaluation.Sequence != 1 {
		t.Fatalf("evaluation = %+v", submitted.Evaluation)
	}

	errBody = apiError{}
	if status := api.do(http.MethodPost, "/api/v1/postings/"+posting.ID+"/evaluations", judgeToken, ballot, &errBody); status != http.StatusConflict {
		t.Fatalf("second evaluation: status = %d, want 409", status)
	}
	if errBody.Error.Kind != "duplicate_evaluation" {
		t.Errorf("kind = %q, want duplicate_evaluation", errBody.Error.Kind)
	}
	if errBody.Error.Refs["judge_id"] != judgeID {
		t.Errorf("refs = %v", errBody.Error.Refs)
	}

	var got struct {
		Posting models.Posting `json:"posting"`
	}
	api.mustDo(http.MethodGet, "/api/v1/postings/"+posting.ID, judgeToken, nil, &got, http.StatusOK)
	if got.Posting.Status != models.PostingCompleted || got.Posting.WinnerTeamID == nil || *got.Posting.WinnerTeamID != winner.ID {
		t.Fatalf("posting after quorum = %+v", got.Posting)
	}

	var table struct {
		Standings []models.Standing `json:"standings"`
	}
	api.mustDo(http.MethodGet, "/api/v1/tournaments/"+tid+"/standings", judgeToken, nil, &table, http.StatusOK)
	if len(table.Standings) != 2 {
		t.Fatalf("standings rows = %d", len(table.Standings))
	}
	top := table.Standings[0]
	if top.TeamID != winner.ID || top.Rank != 1 || top.Wins != 1 || top.Points != 1 {
		t.Errorf("top row = %+v", top)
	}
	if bottom := table.Standings[1]; bottom.Losses != 1 || bottom.Rank != 2 {
		t.Errorf("bottom row = %+v", bottom)
	}

	var speakers struct {
		Speakers []models.SpeakerStanding `json:"speakers"`
	}
	api.mustDo(http.MethodGet, "/api/v1/tournaments/"+tid+"/speakers/standings", judgeToken, nil, &speakers, http.StatusOK)
	if len(speakers.Speakers) != 4 {
		t.Fatalf("speaker rows = %d", len(speakers.Speakers))
	}
	if top := speakers.Speakers[0]; top.EntrantID != winner.Members[0].EntrantID || top.TotalPoints != 78 || top.GamesPlayed != 1 {
		t.Errorf("top speaker = %+v", top)
	}
	if second := speakers.Speakers[1]; second.EntrantID != loser.Members[0].EntrantID || second.Rank != 2 {
		t.Errorf("second speaker = %+v", second)
	}

	var activity struct {
		Judges []models.JudgeActivity `json:"judges"`
	}
	api.mustDo(http.MethodGet, "/api/v1/tournaments/"+tid+"/judges/activity", api.organizer, nil, &activity, http.StatusOK)
	if len(activity.Judges) != 1 || activity.Judges[0].Evaluations != 1 || activity.Judges[0].Assigned != 1 {
		t.Errorf("activity = %+v", activity.Judges)
	}

	errBody = apiError{}
	status := api.do(http.MethodPatch, "/api/v1/postings/"+posting.ID+"/status", api.organizer,
		map[string]any{"status": "cancelled"}, &errBody)
	if status != http.StatusConflict || errBody.Error.Kind != "posting_locked" {
		t.Errorf("cancel completed posting: status = %d kind = %q", status, errBody.Error.Kind)
	}
}

func TestJudgeCannotSubmitForAnotherJudge(t *testing.T) {
	api := newTestAPI(t)
	judgeToken := api.token("judge-a", middleware.RoleJudge)

	postingID := "0b6a0d5e-7f60-4f4c-9a57-3f1a5a8b0c11"
	var errBody apiError
	status := api.do(http.MethodPost, "/api/v1/postings/"+postingID+"/evaluations", judgeToken,
		map[string]any{"judge_id": "judge-b", "winner_team_id": "x", "scores": []any{}}, &errBody)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestErrorResponses(t *testing.T) {
	api := newTestAPI(t)
	judgeToken := api.token("judge-a", middleware.RoleJudge)
	missing := "0b6a0d5e-7f60-4f4c-9a57-3f1a5a8b0c11"

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
		wantKind   string
	}{
		{"no token", http.MethodGet, "/api/v1/tournaments", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"bad token", http.MethodGet, "/api/v1/tournaments", "garbage", nil, http.StatusUnauthorized, "unauthorized"},
		{"judge cannot mutate", http.MethodPost, "/api/v1/entrants", judgeToken, map[string]any{"display_name": "x"}, http.StatusForbidden, "forbidden"},
		{"malformed id", http.MethodGet, "/api/v1/tournaments/not-a-uuid", api.organizer, nil, http.StatusBadRequest, "bad_request"},
		{"unknown tournament", http.MethodGet, "/api/v1/tournaments/" + missing, api.organizer, nil, http.StatusNotFound, "not_found"},
		{"validation", http.MethodPost, "/api/v1/tournaments", api.organizer, map[string]any{"name": "  "}, http.StatusUnprocessableEntity, "validation_error"},
		{"unknown json key", http.MethodPost, "/api/v1/tournaments", api.organizer, map[string]any{"title": "x"}, http.StatusBadRequest, "bad_request"},
		{"bad status filter", http.MethodGet, "/api/v1/tournaments?status=paused", api.organizer, nil, http.StatusUnprocessableEntity, "validation_error"},
		{"unknown route", http.MethodGet, "/api/v2/anything", "", nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body apiError
			status := api.do(tt.method, tt.path, tt.token, tt.body, &body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, body)
			}
			if body.Error.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Error.Kind, tt.wantKind)
			}
		})
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	api := newTestAPI(t)

	var body apiError
	status := api.do(http.MethodPost, "/api/v1/tournaments", api.organizer,
		map[string]any{"name": "Cup", "quorum": 0}, &body)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", status)
	}
	if body.Error.Fields["quorum"] == "" {
		t.Errorf("fields = %v, want a quorum entry", body.Error.Fields)
	}
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	var body map[string]string
	if status := api.do(http.MethodGet, "/healthz", "", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
