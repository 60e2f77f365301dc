package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/storage"
	"github.com/Aksuiekbro/debetter-sub002/testutil"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []hub.Message
}

func (n *recordingNotifier) BroadcastToRoom(_ string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := message.(hub.Message); ok {
		n.messages = append(n.messages, m)
	}
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.messages {
		if m.Type == eventType {
			c++
		}
	}
	return c
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *sql.DB
	logger   *slog.Logger
	svc      *Services
	notifier *recordingNotifier
	uploader *storage.MemoryUploader
	seq      int
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, Settings{DefaultQuorum: 1, PointsPerWin: 1})
}

func newFixtureWith(t *testing.T, settings Settings) *fixture {
	t.Helper()
	conn := testutil.NewTestDB(t)
	uploader, err := storage.NewMemoryUploader("https://media.test/")
	if err != nil {
		t.Fatal(err)
	}
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       conn,
		logger:   logger,
		svc:      New(conn, uploader, notifier, settings, logger),
		notifier: notifier,
		uploader: uploader,
	}
}

func (f *fixture) entrant(role models.EntrantRole) string {
	f.t.Helper()
	f.seq++
	e, err := f.svc.Entrants.CreateEntrant(f.ctx, CreateEntrantInput{
		DisplayName: fmt.Sprintf("%s %02d", role, f.seq),
		Role:        role,
	})
	if err != nil {
		f.t.Fatalf("create entrant: %v", err)
	}
	return e.ID
}

func (f *fixture) tournament(input CreateTournamentInput) *models.Tournament {
	f.t.Helper()
	if input.Name == "" {
		input.Name = "Spring Open"
	}
	tr, err := f.svc.Tournaments.CreateTournament(f.ctx, input)
	if err != nil {
		f.t.Fatalf("create tournament: %v", err)
	}
	return tr
}

func (f *fixture) judges(tournamentID string, n int) []string {
	f.t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.entrant(models.RoleJudge)
	}
	if _, err := f.svc.Participants.RegisterParticipants(f.ctx, tournamentID, ids, nil); err != nil {
		f.t.Fatalf("register judges: %v", err)
	}
	return ids
}

// teams registers two debaters per team and creates teams named T1..Tn.
func (f *fixture) teams(tournamentID string, n int) []*models.Team {
	f.t.Helper()
	debaters := make([]string, 2*n)
	for i := range debaters {
		debaters[i] = f.entrant(models.RoleDebater)
	}
	if _, err := f.svc.Participants.RegisterParticipants(f.ctx, tournamentID, nil, debaters); err != nil {
		f.t.Fatalf("register debaters: %v", err)
	}
	teams := make([]*models.Team, n)
	for i := range teams {
		team, err := f.svc.Teams.CreateTeam(f.ctx, tournamentID, CreateTeamInput{
			Name:      fmt.Sprintf("T%d", i+1),
			LeaderID:  debaters[2*i],
			SpeakerID: debaters[2*i+1],
		})
		if err != nil {
			f.t.Fatalf("create team: %v", err)
		}
		teams[i] = team
	}
	return teams
}

func (f *fixture) posting(tournamentID string, team1, team2 *models.Team, judgeIDs []string) *models.Posting {
	f.t.Helper()
	theme := "This house would abolish homework"
	p, err := f.svc.Postings.CreatePosting(f.ctx, tournamentID, PostingInput{
		Team1ID:  team1.ID,
		Team2ID:  team2.ID,
		JudgeIDs: judgeIDs,
		Theme:    &theme,
	})
	if err != nil {
		f.t.Fatalf("create posting: %v", err)
	}
	return p
}

func (f *fixture) evaluate(p *models.Posting, judgeID string, winner *models.Team, teams ...*models.Team) (*models.Evaluation, error) {
	scores := []models.SpeakerScore{}
	for _, team := range teams {
		for _, m := range team.Members {
			scores = append(scores, models.SpeakerScore{EntrantID: m.EntrantID, Points: 75})
		}
	}
	return f.svc.Evaluations.SubmitEvaluation(f.ctx, EvaluationInput{
		PostingID:    p.ID,
		JudgeID:      judgeID,
		Scores:       scores,
		WinnerTeamID: winner.ID,
	})
}

func (f *fixture) mustGetPosting(id string) *models.Posting {
	f.t.Helper()
	p, err := f.svc.Postings.GetPosting(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get posting: %v", err)
	}
	return p
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (err: %v)", got, kind, err)
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }
