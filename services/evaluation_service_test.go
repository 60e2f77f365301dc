package services

import (
	"sync"
	"testing"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

func TestQuorumOneCompletesOnFirstEvaluation(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(1)})
	judges := f.judges(tr.ID, 1)
	teams := f.teams(tr.ID, 4)

	p1 := f.posting(tr.ID, teams[0], teams[1], judges)
	f.posting(tr.ID, teams[2], teams[3], judges)

	if _, err := f.evaluate(p1, judges[0], teams[0], teams[0], teams[1]); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got := f.mustGetPosting(p1.ID)
	if got.Status != models.PostingCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.WinnerTeamID == nil || *got.WinnerTeamID != teams[0].ID {
		t.Fatalf("winner = %v, want %s", got.WinnerTeamID, teams[0].ID)
	}

	table, err := f.svc.Standings.Compute(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]models.Standing{}
	for _, row := range table {
		byName[row.TeamName] = row
	}
	want := map[string][2]int{"T1": {1, 0}, "T2": {0, 1}, "T3": {0, 0}, "T4": {0, 0}}
	for name, wl := range want {
		if byName[name].Wins != wl[0] || byName[name].Losses != wl[1] {
			t.Errorf("%s = %d/%d, want %d/%d", name, byName[name].Wins, byName[name].Losses, wl[0], wl[1])
		}
	}
	if table[0].TeamName != "T1" || table[0].Rank != 1 {
		t.Errorf("leader = %+v", table[0])
	}
	if f.notifier.count(hub.EventPostingCompleted) != 1 {
		t.Error("posting.completed was not published")
	}
}

func TestQuorumThreeCompletesOnThirdEvaluation(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(3)})
	judges := f.judges(tr.ID, 3)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges)

	winners := []*models.Team{teams[1], teams[0], teams[1]}
	for i, judge := range judges {
		ev, err := f.evaluate(p, judge, winners[i], teams[0])
		if err != nil {
			t.Fatalf("evaluation %d: %v", i+1, err)
		}
		if ev.Sequence != i+1 {
			t.Errorf("sequence = %d, want %d", ev.Sequence, i+1)
		}
		got := f.mustGetPosting(p.ID)
		if i < 2 && got.Status != models.PostingInProgress {
			t.Fatalf("after %d evaluations status = %s, want in_progress", i+1, got.Status)
		}
		if i == 2 {
			if got.Status != models.PostingCompleted {
				t.Fatalf("after 3 evaluations status = %s", got.Status)
			}
			if *got.WinnerTeamID != teams[1].ID {
				t.Errorf("majority winner = %s, want %s", *got.WinnerTeamID, teams[1].ID)
			}
		}
	}
}

func TestDuplicateEvaluation(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(2)})
	judges := f.judges(tr.ID, 3)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges)

	first, err := f.evaluate(p, judges[0], teams[0], teams[0])
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.evaluate(p, judges[0], teams[1], teams[1])
	wantKind(t, err, apperrors.KindDuplicateEvaluation)

	evs, err := f.svc.Evaluations.ListEvaluations(f.ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].ID != first.ID || evs[0].WinnerTeamID != teams[0].ID {
		t.Fatalf("stored evaluations = %+v", evs)
	}
	if got := f.mustGetPosting(p.ID); got.EvaluationCount != 1 {
		t.Errorf("evaluation count = %d, want 1", got.EvaluationCount)
	}

	if _, err := f.evaluate(p, judges[1], teams[0], teams[0]); err != nil {
		t.Fatal(err)
	}
	// Completed now: the original judges get duplicates, a new judge a lock.
	_, err = f.evaluate(p, judges[1], teams[0], teams[0])
	wantKind(t, err, apperrors.KindDuplicateEvaluation)
	_, err = f.evaluate(p, judges[2], teams[0], teams[0])
	wantKind(t, err, apperrors.KindPostingLocked)
}

func TestConcurrentSubmissionsBySameJudge(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(3)})
	judges := f.judges(tr.ID, 1)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges)

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		duplicates int
		others     []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winner := teams[i%2]
			_, err := f.evaluate(p, judges[0], winner, winner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperrors.Is(err, apperrors.KindDuplicateEvaluation):
				duplicates++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if accepted != 1 || duplicates != attempts-1 {
		t.Fatalf("accepted=%d duplicates=%d", accepted, duplicates)
	}
	evs, err := f.svc.Evaluations.ListEvaluations(f.ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("stored %d evaluations, want 1", len(evs))
	}
	if got := f.mustGetPosting(p.ID); got.EvaluationCount != 1 || got.Status != models.PostingInProgress {
		t.Errorf("posting = %s with %d evaluations", got.Status, got.EvaluationCount)
	}
}

func TestEvaluationValidation(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	judges := f.judges(tr.ID, 1)
	teams := f.teams(tr.ID, 3)
	p := f.posting(tr.ID, teams[0], teams[1], judges)
	speaker := teams[0].Members[0].EntrantID

	tests := []struct {
		name  string
		input EvaluationInput
		kind  apperrors.Kind
	}{
		{"missing winner", EvaluationInput{PostingID: p.ID, JudgeID: judges[0],
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 70}}}, apperrors.KindValidation},
		{"points out of range", EvaluationInput{PostingID: p.ID, JudgeID: judges[0], WinnerTeamID: teams[0].ID,
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 101}}}, apperrors.KindValidation},
		{"criterion out of range", EvaluationInput{PostingID: p.ID, JudgeID: judges[0], WinnerTeamID: teams[0].ID,
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 50, Criteria: map[string]int{"style": -1}}}}, apperrors.KindValidation},
		{"speaker twice", EvaluationInput{PostingID: p.ID, JudgeID: judges[0], WinnerTeamID: teams[0].ID,
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 50}, {EntrantID: speaker, Points: 60}}}, apperrors.KindValidation},
		{"winner not playing", EvaluationInput{PostingID: p.ID, JudgeID: judges[0], WinnerTeamID: teams[2].ID,
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 50}}}, apperrors.KindValidation},
		{"speaker not playing", EvaluationInput{PostingID: p.ID, JudgeID: judges[0], WinnerTeamID: teams[0].ID,
			Scores: []models.SpeakerScore{{EntrantID: teams[2].Members[0].EntrantID, Points: 50}}}, apperrors.KindValidation},
		{"unknown posting", EvaluationInput{PostingID: "missing", JudgeID: judges[0], WinnerTeamID: teams[0].ID,
			Scores: []models.SpeakerScore{{EntrantID: speaker, Points: 50}}}, apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Evaluations.SubmitEvaluation(f.ctx, tt.input)
			wantKind(t, err, tt.kind)
		})
	}

	if got := f.mustGetPosting(p.ID); got.Status != models.PostingScheduled || got.EvaluationCount != 0 {
		t.Errorf("rejected evaluations changed the posting: %s/%d", got.Status, got.EvaluationCount)
	}
}

func TestJudgePolicies(t *testing.T) {
	t.Run("relaxed", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(CreateTournamentInput{})
		judges := f.judges(tr.ID, 2)
		teams := f.teams(tr.ID, 2)
		p := f.posting(tr.ID, teams[0], teams[1], judges[:1])

		outsider := f.entrant(models.RoleJudge)
		_, err := f.evaluate(p, outsider, teams[0], teams[0])
		wantKind(t, err, apperrors.KindNotFound)

		_, err = f.evaluate(p, teams[0].Members[0].EntrantID, teams[0], teams[0])
		wantKind(t, err, apperrors.KindValidation)

		if _, err := f.evaluate(p, judges[1], teams[1], teams[1]); err != nil {
			t.Fatalf("registered but unassigned judge was refused: %v", err)
		}
	})

	t.Run("assigned only", func(t *testing.T) {
		f := newFixture(t)
		tr := f.tournament(CreateTournamentInput{AssignedJudgesOnly: true, RequiredJudges: intPtr(1)})
		judges := f.judges(tr.ID, 2)
		teams := f.teams(tr.ID, 2)
		p := f.posting(tr.ID, teams[0], teams[1], judges[:1])

		_, err := f.evaluate(p, judges[1], teams[0], teams[0])
		wantKind(t, err, apperrors.KindValidation)
		if _, err := f.evaluate(p, judges[0], teams[0], teams[0]); err != nil {
			t.Fatal(err)
		}
	})
}

func TestDecideWinner(t *testing.T) {
	p := &models.Posting{Team1ID: "a", Team2ID: "b"}
	ev := func(winner string) *models.Evaluation { return &models.Evaluation{WinnerTeamID: winner} }

	tests := []struct {
		name string
		evs  []*models.Evaluation
		want string
	}{
		{"single", []*models.Evaluation{ev("b")}, "b"},
		{"majority", []*models.Evaluation{ev("a"), ev("b"), ev("b")}, "b"},
		{"split goes to first accepted", []*models.Evaluation{ev("b"), ev("a")}, "b"},
		{"split of four", []*models.Evaluation{ev("a"), ev("b"), ev("b"), ev("a")}, "a"},
		{"foreign votes ignored", []*models.Evaluation{ev("x"), ev("a")}, "a"},
		{"no valid votes", []*models.Evaluation{ev("x")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decideWinner(p, tt.evs); got != tt.want {
				t.Errorf("winner = %q, want %q", got, tt.want)
			}
		})
	}
}
