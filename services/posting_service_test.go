package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/pairing"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
)

func TestCreatePostingValidation(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	judges := f.judges(tr.ID, 1)
	teams := f.teams(tr.ID, 2)

	other := f.tournament(CreateTournamentInput{Name: "Other"})
	foreign := f.teams(other.ID, 1)[0]

	theme := "Motion"
	tests := []struct {
		name  string
		input PostingInput
		kind  apperrors.Kind
	}{
		{"self pairing", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[0].ID, Theme: &theme}, apperrors.KindValidation},
		{"missing motion", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID}, apperrors.KindValidation},
		{"theme and custom model", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme, CustomModel: strPtr("model")}, apperrors.KindValidation},
		{"location and link", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme,
			Location: strPtr("Room 4"), VirtualLink: strPtr("https://meet.example.com/x")}, apperrors.KindValidation},
		{"judge twice", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme, JudgeIDs: []string{judges[0], judges[0]}}, apperrors.KindValidation},
		{"unknown team", PostingInput{Team1ID: teams[0].ID, Team2ID: "nope", Theme: &theme}, apperrors.KindNotFound},
		{"team of another tournament", PostingInput{Team1ID: teams[0].ID, Team2ID: foreign.ID, Theme: &theme}, apperrors.KindNotFound},
		{"unregistered judge", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme, JudgeIDs: []string{"ghost"}}, apperrors.KindNotFound},
		{"debater as judge", PostingInput{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme,
			JudgeIDs: []string{teams[0].Members[0].EntrantID}}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Postings.CreatePosting(f.ctx, tr.ID, tt.input)
			wantKind(t, err, tt.kind)
		})
	}

	var appErr *apperrors.Error
	_, err := f.svc.Postings.CreatePosting(f.ctx, tr.ID, PostingInput{Team1ID: teams[0].ID, Team2ID: foreign.ID, Theme: &theme})
	if !errors.As(err, &appErr) || appErr.Refs["team_id"] != foreign.ID {
		t.Errorf("foreign team error lacks team ref: %v", err)
	}

	postings, err := f.svc.Postings.ListPostings(f.ctx, repositories.ListPostingsFilter{TournamentID: tr.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 0 {
		t.Errorf("rejected inputs created %d postings", len(postings))
	}
}

func TestCreatePostingsBatchReportsEachItem(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	teams := f.teams(tr.ID, 4)
	theme := "Motion"

	res, err := f.svc.Postings.CreatePostingsBatch(f.ctx, tr.ID, "Day 1", []PostingInput{
		{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme},
		{Team1ID: teams[2].ID, Team2ID: teams[2].ID, Theme: &theme},
		{Team1ID: teams[2].ID, Team2ID: "unknown", Theme: &theme},
		{Team1ID: teams[2].ID, Team2ID: teams[3].ID, CustomModel: strPtr("Model UN")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 || len(res.Errors) != 2 {
		t.Fatalf("created %d, rejected %d", len(res.Created), len(res.Errors))
	}
	if res.Errors[0].Index != 1 || res.Errors[0].Kind != apperrors.KindValidation {
		t.Errorf("first error = %+v", res.Errors[0])
	}
	if res.Errors[1].Index != 2 || res.Errors[1].Kind != apperrors.KindNotFound {
		t.Errorf("second error = %+v", res.Errors[1])
	}

	batch := "Day 1"
	listed, err := f.svc.Postings.ListPostings(f.ctx, repositories.ListPostingsFilter{TournamentID: tr.ID, BatchName: &batch})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Errorf("batch lists %d postings, want 2", len(listed))
	}

	_, err = f.svc.Postings.CreatePostingsBatch(f.ctx, tr.ID, " ", nil)
	wantKind(t, err, apperrors.KindValidation)
}

// failingPostings fails the n-th Create with a store error.
type failingPostings struct {
	repositories.PostingRepository
	calls  int
	failOn int
}

func (r *failingPostings) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Posting) error {
	r.calls++
	if r.calls == r.failOn {
		return apperrors.StoreUnavailable("insert posting", errors.New("connection reset"))
	}
	return r.PostingRepository.Create(ctx, exec, p)
}

func TestCreatePostingsBatchKeepsCreatedOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	teams := f.teams(tr.ID, 4)
	theme := "Motion"

	postings := &failingPostings{PostingRepository: repositories.NewPostingRepository(f.db), failOn: 2}
	svc := NewPostingService(f.db,
		repositories.NewTournamentRepository(f.db),
		repositories.NewParticipantRepository(f.db),
		repositories.NewTeamRepository(f.db),
		postings,
		pairing.NewRandomGenerator(), nil, f.uploader, nil, DefaultSettings(), f.logger)

	inputs := []PostingInput{
		{Team1ID: teams[0].ID, Team2ID: teams[1].ID, Theme: &theme},
		{Team1ID: teams[2].ID, Team2ID: teams[3].ID, Theme: &theme},
		{Team1ID: teams[0].ID, Team2ID: teams[2].ID, Theme: &theme},
	}
	res, err := svc.CreatePostingsBatch(f.ctx, tr.ID, "Day 2", inputs)
	if err != nil {
		t.Fatalf("batch returned %v, want a per-item report", err)
	}
	if len(res.Created) != 1 || res.Created[0].Team1ID != teams[0].ID {
		t.Fatalf("created = %+v", res.Created)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	for i, e := range res.Errors {
		if e.Index != i+1 || e.Kind != apperrors.KindStoreUnavailable {
			t.Errorf("error %d = %+v", i, e)
		}
		if strings.Contains(e.Reason, "connection reset") {
			t.Errorf("store detail leaked: %q", e.Reason)
		}
	}
	if postings.calls != 2 {
		t.Errorf("store was called %d times after failing, want the batch to stop", postings.calls)
	}

	// Retrying only the reported items stores every posting exactly once.
	retry := make([]PostingInput, 0, len(res.Errors))
	for _, e := range res.Errors {
		retry = append(retry, inputs[e.Index])
	}
	again, err := f.svc.Postings.CreatePostingsBatch(f.ctx, tr.ID, "Day 2", retry)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Created) != 2 || len(again.Errors) != 0 {
		t.Fatalf("retry created %d, rejected %+v", len(again.Created), again.Errors)
	}

	batch := "Day 2"
	listed, err := f.svc.Postings.ListPostings(f.ctx, repositories.ListPostingsFilter{TournamentID: tr.ID, BatchName: &batch})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != len(inputs) {
		t.Errorf("%d postings stored, want %d", len(listed), len(inputs))
	}
}

func TestGenerateRoundIsAtomic(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{RequiredJudges: intPtr(2)})
	f.judges(tr.ID, 3)
	f.teams(tr.ID, 5)

	res, err := f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{Seed: int64Ptr(11)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Round != 1 || len(res.Postings) != 2 || res.LeftoverTeam == nil || res.Seed != 11 {
		t.Fatalf("round %d, %d postings, leftover %v, seed %d", res.Round, len(res.Postings), res.LeftoverTeam, res.Seed)
	}
	for _, p := range res.Postings {
		if len(p.JudgeIDs) != 2 || p.Status != models.PostingScheduled {
			t.Errorf("posting %+v", p)
		}
	}

	// Replaying round 1 collides on the first match and must leave nothing behind.
	_, err = f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{Round: 1, Seed: int64Ptr(12)})
	wantKind(t, err, apperrors.KindConflict)

	round := 1
	listed, err := f.svc.Postings.ListPostings(f.ctx, repositories.ListPostingsFilter{TournamentID: tr.ID, Round: &round})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("round 1 has %d postings after the failed replay", len(listed))
	}

	next, err := f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{})
	if err != nil {
		t.Fatal(err)
	}
	if next.Round != 2 {
		t.Errorf("next round = %d, want 2", next.Round)
	}

	_, err = f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{JudgesPerMatch: intPtr(4)})
	wantKind(t, err, apperrors.KindValidation)
}

func TestGenerateRoundWithNamedGenerator(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	f.judges(tr.ID, 2)
	f.teams(tr.ID, 4)

	res, err := f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{Generator: "round_robin"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Generator != pairing.GeneratorRoundRobin || len(res.Postings) != 2 {
		t.Errorf("generator %q with %d postings", res.Generator, len(res.Postings))
	}

	_, err = f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{Generator: "swiss"})
	wantKind(t, err, apperrors.KindValidation)
}

func TestGenerateRoundNeedsTwoTeams(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	f.teams(tr.ID, 1)
	_, err := f.svc.Postings.GenerateRound(f.ctx, tr.ID, GenerateRoundInput{})
	wantKind(t, err, apperrors.KindInsufficientTeams)
}

func TestUpdatePostingDetails(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	judges := f.judges(tr.ID, 2)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges[:1])

	when := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)
	updated, err := f.svc.Postings.UpdatePostingDetails(f.ctx, p.ID, UpdatePostingInput{
		CustomModel:     strPtr("Model parliament"),
		VirtualLink:     strPtr("https://meet.example.com/r1"),
		ScheduledTime:   timePtr(when),
		JudgeIDs:        &[]string{judges[1], judges[0]},
		ExpectedVersion: intPtr(p.Version),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Theme != nil || updated.CustomModel == nil || *updated.CustomModel != "Model parliament" {
		t.Errorf("motion = %v / %v", updated.Theme, updated.CustomModel)
	}
	if updated.VirtualLink == nil || updated.ScheduledTime == nil || !updated.ScheduledTime.Equal(when) {
		t.Errorf("venue/schedule = %v %v", updated.VirtualLink, updated.ScheduledTime)
	}
	if len(updated.JudgeIDs) != 2 || updated.JudgeIDs[0] != judges[1] {
		t.Errorf("judges = %v", updated.JudgeIDs)
	}
	if updated.Version != p.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, p.Version+1)
	}

	_, err = f.svc.Postings.UpdatePostingDetails(f.ctx, p.ID, UpdatePostingInput{Theme: strPtr("x"), ExpectedVersion: intPtr(p.Version)})
	wantKind(t, err, apperrors.KindConflict)

	_, err = f.svc.Postings.UpdatePostingDetails(f.ctx, p.ID, UpdatePostingInput{Theme: strPtr("x"), CustomModel: strPtr("y")})
	wantKind(t, err, apperrors.KindValidation)

	if _, err := f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingInProgress); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Postings.UpdatePostingDetails(f.ctx, p.ID, UpdatePostingInput{Theme: strPtr("late change")})
	wantKind(t, err, apperrors.KindPostingLocked)
}

func TestChangePostingStatus(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(2)})
	judges := f.judges(tr.ID, 2)
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], judges)

	_, err := f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingCompleted)
	wantKind(t, err, apperrors.KindValidation)

	got, err := f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingInProgress)
	if err != nil || got.Status != models.PostingInProgress {
		t.Fatalf("start: %v %v", got, err)
	}
	if again, err := f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingInProgress); err != nil || again.Version != got.Version {
		t.Errorf("repeating the current status must be a no-op: %v", err)
	}
	_, err = f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingScheduled)
	wantKind(t, err, apperrors.KindValidation)
	_, err = f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, "finished")
	wantKind(t, err, apperrors.KindValidation)

	for _, judge := range judges {
		if _, err := f.evaluate(p, judge, teams[1], teams[1]); err != nil {
			t.Fatal(err)
		}
	}
	_, err = f.svc.Postings.ChangePostingStatus(f.ctx, p.ID, models.PostingCancelled)
	wantKind(t, err, apperrors.KindPostingLocked)
}

func TestCancellationPolicy(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{Quorum: intPtr(2)})
	judges := f.judges(tr.ID, 2)
	teams := f.teams(tr.ID, 2)

	cancelled := f.posting(tr.ID, teams[0], teams[1], judges)
	got, err := f.svc.Postings.ChangePostingStatus(f.ctx, cancelled.ID, models.PostingCancelled)
	if err != nil || got.Status != models.PostingCancelled {
		t.Fatalf("cancel scheduled posting: %v %v", got, err)
	}
	_, err = f.evaluate(cancelled, judges[0], teams[0], teams[0])
	wantKind(t, err, apperrors.KindPostingLocked)

	evaluated := f.posting(tr.ID, teams[0], teams[1], judges)
	if _, err := f.evaluate(evaluated, judges[0], teams[0], teams[0]); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Postings.ChangePostingStatus(f.ctx, evaluated.ID, models.PostingCancelled)
	wantKind(t, err, apperrors.KindPostingLocked)
	if !strings.Contains(err.Error(), "evaluations already recorded") {
		t.Errorf("reason = %v", err)
	}

	table, err := f.svc.Standings.Compute(f.ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range table {
		if row.Played != 0 {
			t.Errorf("%s played %d, cancelled and open postings must not count", row.TeamName, row.Played)
		}
	}
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(t)
	tr := f.tournament(CreateTournamentInput{})
	teams := f.teams(tr.ID, 2)
	p := f.posting(tr.ID, teams[0], teams[1], nil)

	got, err := f.svc.Postings.UploadMedia(f.ctx, p.ID, repositories.MediaBallot, "image/png", strings.NewReader("scan-1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.BallotURL == nil || !strings.HasPrefix(*got.BallotURL, "https://media.test/postings/"+p.ID+"/ballot-") {
		t.Fatalf("ballot url = %v", got.BallotURL)
	}
	first := *got.BallotKey

	got, err = f.svc.Postings.UploadMedia(f.ctx, p.ID, repositories.MediaBallot, "application/pdf", strings.NewReader("scan-2"))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := f.uploader.Object(first); ok {
		t.Error("replaced ballot was not deleted")
	}
	if f.uploader.Len() != 1 || !strings.HasSuffix(*got.BallotKey, ".pdf") {
		t.Errorf("objects=%d key=%s", f.uploader.Len(), *got.BallotKey)
	}

	_, err = f.svc.Postings.UploadMedia(f.ctx, p.ID, repositories.MediaAudio, "image/png", strings.NewReader("x"))
	wantKind(t, err, apperrors.KindValidation)
	_, err = f.svc.Postings.UploadMedia(f.ctx, "missing", repositories.MediaAudio, "audio/mpeg", strings.NewReader("x"))
	wantKind(t, err, apperrors.KindNotFound)

	audio, err := f.svc.Postings.UploadMedia(f.ctx, p.ID, repositories.MediaAudio, "audio/mpeg", strings.NewReader("mp3"))
	if err != nil {
		t.Fatal(err)
	}
	if audio.AudioURL == nil || audio.BallotURL == nil {
		t.Errorf("media urls = %v %v", audio.AudioURL, audio.BallotURL)
	}
}
