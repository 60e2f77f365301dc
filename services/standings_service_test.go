package services

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
)

func TestStandingsAreIdempotent(t *testing.T) {
	f := newFixtureWith(t, Settings{DefaultQuorum: 1, PointsPerWin: 3})
	tr := f.tournament(CreateTournamentInput{})
	judges := f.judges(tr.ID, 2)
	teams := f.teams(tr.ID, 4)

	results := [][2]*models.Team{
		{teams[0], teams[1]},
		{teams[2], teams[3]},
		{teams[0], teams[2]},
	}
	for _, r := range results {
		p := f.posting(tr.ID, r[0], r[1], judges[:1])
		if _, err := f.evaluate(p, judges[0], r[0], r[0]); err != nil {
			t.Fatal(err)
		}
	}

	first, err := f.svc.Standings.Compute(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Standings.Compute(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("compute is not idempotent:\n%v\n%v", first, second)
	}

	want := []models.Standing{
		{Rank: 1, TeamID: teams[0].ID, TeamName: "T1", Wins: 2, Points: 6, Played: 2},
		{Rank: 2, TeamID: teams[2].ID, TeamName: "T3", Wins: 1, Losses: 1, Points: 3, Played: 2},
		{Rank: 3, TeamID: teams[1].ID, TeamName: "T2", Losses: 1, Played: 1},
		{Rank: 3, TeamID: teams[3].ID, TeamName: "T4", Losses: 1, Played: 1},
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("standings = %+v\nwant %+v", first, want)
	}

	if _, err := f.svc.Standings.Refresh(f.ctx, tr.ID); err != nil {
		t.Fatal(err)
	}
	stored, err := f.svc.Teams.ListTeams(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored[0].Wins != 2 || stored[0].Points != 6 || stored[1].Losses != 1 {
		t.Errorf("stored totals = %+v %+v", stored[0], stored[1])
	}
	if f.notifier.count(hub.EventStandingsUpdated) == 0 {
		t.Error("standings.updated was not published")
	}
}

func TestTallySkipsInconsistentPostings(t *testing.T) {
	s := &standingsService{settings: DefaultSettings().withDefaults(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	teams := []*models.Team{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}
	winner := func(id string) *string { return &id }

	table := s.tally("t", teams, []*models.Posting{
		{ID: "ok", Team1ID: "a", Team2ID: "b", Status: models.PostingCompleted, WinnerTeamID: winner("b")},
		{ID: "foreign team", Team1ID: "a", Team2ID: "zzz", Status: models.PostingCompleted, WinnerTeamID: winner("a")},
		{ID: "no winner", Team1ID: "a", Team2ID: "b", Status: models.PostingCompleted},
		{ID: "winner not playing", Team1ID: "a", Team2ID: "b", Status: models.PostingCompleted, WinnerTeamID: winner("c")},
		{ID: "cancelled", Team1ID: "a", Team2ID: "b", Status: models.PostingCancelled, WinnerTeamID: winner("a")},
	})

	if table[0].TeamID != "b" || table[0].Wins != 1 || table[0].Points != 1 {
		t.Errorf("leader = %+v", table[0])
	}
	if table[1].TeamID != "a" || table[1].Losses != 1 || table[1].Played != 1 {
		t.Errorf("runner-up = %+v", table[1])
	}
}

func TestJudgeActivity(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(2)})
	judges := f.judges(tr.ID, 3)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges[:2])

	if _, err := f.evaluate(p, judges[2], teams[0], teams[0]); err != nil {
		t.Fatal(err)
	}

	activity, err := f.svc.Standings.JudgeActivity(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(activity) != 3 {
		t.Fatalf("got %d judges", len(activity))
	}
	if activity[0].JudgeID != judges[2] || activity[0].Evaluations != 1 || activity[0].Assigned != 0 {
		t.Errorf("most active = %+v", activity[0])
	}
	for _, a := range activity[1:] {
		if a.Assigned != 1 || a.Evaluations != 0 || a.DisplayName == "" {
			t.Errorf("assigned judge = %+v", a)
		}
	}
}

// pausingPostings holds the first List call after it has read from the
// store, until release is closed.
type pausingPostings struct {
	repositories.PostingRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *pausingPostings) List(ctx context.Context, exec repositories.SQLExecutor, filter repositories.ListPostingsFilter) ([]*models.Posting, error) {
	postings, err := r.PostingRepository.List(ctx, exec, filter)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return postings, err
}

func TestRefreshKeepsNewerTotals(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	judges := f.judges(tr.ID, 1)
	teams := f.teams(tr.ID, 4)
	first := f.posting(tr.ID, teams[0], teams[1], judges)
	second := f.posting(tr.ID, teams[2], teams[3], judges)

	if _, err := f.evaluate(first, judges[0], teams[0], teams[0], teams[1]); err != nil {
		t.Fatal(err)
	}

	postings := &pausingPostings{
		PostingRepository: repositories.NewPostingRepository(f.db),
		read:              make(chan struct{}),
		release:           make(chan struct{}),
	}
	slow := NewStandingsService(f.db,
		repositories.NewTournamentRepository(f.db),
		repositories.NewEntrantRepository(f.db),
		repositories.NewParticipantRepository(f.db),
		repositories.NewTeamRepository(f.db),
		postings,
		repositories.NewEvaluationRepository(f.db),
		nil, DefaultSettings(), f.logger)

	type outcome struct {
		table []models.Standing
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		table, err := slow.Refresh(f.ctx, tr.ID)
		done <- outcome{table, err}
	}()

	// The slow refresh has seen only the first result. The second posting
	// completes and refreshes before it writes.
	<-postings.read
	if _, err := f.evaluate(second, judges[0], teams[2], teams[2], teams[3]); err != nil {
		t.Fatal(err)
	}
	close(postings.release)

	got := <-done
	if got.err != nil {
		t.Fatal(got.err)
	}

	stored, err := f.svc.Teams.ListTeams(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	wins := map[string]int{}
	for _, team := range stored {
		wins[team.ID] = team.Wins
	}
	if wins[teams[0].ID] != 1 || wins[teams[2].ID] != 1 {
		t.Errorf("stored wins = %v, want T1 and T3 at 1", wins)
	}

	returned := map[string]int{}
	for _, row := range got.table {
		returned[row.TeamID] = row.Wins
	}
	if returned[teams[2].ID] != 1 {
		t.Errorf("superseded refresh returned %+v", got.table)
	}
}

func speakerScores(points map[string]int) []models.SpeakerScore {
	scores := make([]models.SpeakerScore, 0, len(points))
	for id, p := range points {
		scores = append(scores, models.SpeakerScore{EntrantID: id, Points: p})
	}
	return scores
}

func member(team *models.Team, role models.MemberRole) string {
	for _, m := range team.Members {
		if m.Role == role {
			return m.EntrantID
		}
	}
	return ""
}

func TestSpeakerStandings(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(2)})
	judges := f.judges(tr.ID, 2)
	teams := f.teams(tr.ID, 3)

	lead1, speak1 := member(teams[0], models.MemberLeader), member(teams[0], models.MemberSpeaker)
	lead2, speak2 := member(teams[1], models.MemberLeader), member(teams[1], models.MemberSpeaker)
	lead3, speak3 := member(teams[2], models.MemberLeader), member(teams[2], models.MemberSpeaker)

	done := f.posting(tr.ID, teams[0], teams[1], judges)
	ballots := []map[string]int{
		{lead1: 80, speak1: 70, lead2: 60, speak2: 65},
		{lead1: 78, speak1: 72, lead2: 70, speak2: 64},
	}
	for i, points := range ballots {
		_, err := f.svc.Evaluations.SubmitEvaluation(f.ctx, EvaluationInput{
			PostingID:    done.ID,
			JudgeID:      judges[i],
			Scores:       speakerScores(points),
			WinnerTeamID: teams[0].ID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if p := f.mustGetPosting(done.ID); p.Status != models.PostingCompleted {
		t.Fatalf("posting status = %s", p.Status)
	}

	// One ballot short of quorum: these points must not count yet.
	open := f.posting(tr.ID, teams[0], teams[2], judges)
	_, err := f.svc.Evaluations.SubmitEvaluation(f.ctx, EvaluationInput{
		PostingID:    open.ID,
		JudgeID:      judges[0],
		Scores:       speakerScores(map[string]int{lead1: 90, lead3: 100}),
		WinnerTeamID: teams[2].ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	table, err := f.svc.Standings.SpeakerStandings(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 6 {
		t.Fatalf("got %d speakers", len(table))
	}

	want := []struct {
		id      string
		rank    int
		total   int
		ballots int
		games   int
		avg     float64
	}{
		{lead1, 1, 158, 2, 1, 79},
		{speak1, 2, 142, 2, 1, 71},
		{lead2, 3, 130, 2, 1, 65},
		{speak2, 4, 129, 2, 1, 64.5},
		{lead3, 5, 0, 0, 0, 0},
		{speak3, 5, 0, 0, 0, 0},
	}
	for i, w := range want {
		got := table[i]
		if got.EntrantID != w.id || got.Rank != w.rank || got.TotalPoints != w.total ||
			got.Ballots != w.ballots || got.GamesPlayed != w.games || got.AveragePoints != w.avg {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
	}
	if table[0].TeamID != teams[0].ID || table[0].DisplayName == "" {
		t.Errorf("leader row = %+v", table[0])
	}

	again, err := f.svc.Standings.SpeakerStandings(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table, again) {
		t.Error("speaker standings are not deterministic")
	}
}

func TestSettingsHonourZero(t *testing.T) {
	s := Settings{DefaultQuorum: 0, DefaultJudgesPerMatch: 0, PointsPerWin: 0}.withDefaults()
	if s.DefaultQuorum != 1 {
		t.Errorf("quorum = %d, want 1", s.DefaultQuorum)
	}
	if s.DefaultJudgesPerMatch != 0 || s.PointsPerWin != 0 {
		t.Errorf("zero settings were replaced: %+v", s)
	}
	if d := DefaultSettings(); d.DefaultJudgesPerMatch != 1 || d.PointsPerWin != 1 {
		t.Errorf("defaults = %+v", d)
	}
}
