package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"go.opentelemetry.io/otel/attribute"
)

type EvaluationInput struct {
	PostingID    string                `json:"posting_id"`
	JudgeID      string                `json:"judge_id"`
	Scores       []models.SpeakerScore `json:"scores"`
	WinnerTeamID string                `json:"winner_team_id"`
	Notes        *string               `json:"notes,omitempty"`
}

type EvaluationService interface {
	// SubmitEvaluation accepts at most one evaluation per judge and posting.
	// A repeated submission fails with a duplicate evaluation error and
	// leaves the first one untouched. Reaching quorum completes the posting.
	SubmitEvaluation(ctx context.Context, input EvaluationInput) (*models.Evaluation, error)
	ListEvaluations(ctx context.Context, postingID string) ([]*models.Evaluation, error)
	// FinalizePosting completes the posting when its evaluations reach the
	// tournament quorum. The boolean reports whether this call completed it.
	FinalizePosting(ctx context.Context, postingID string) (*models.Posting, bool, error)
}

type evaluationService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	postings     repositories.PostingRepository
	evaluations  repositories.EvaluationRepository
	standings    StandingsService
	notifier     Notifier
	settings     Settings
	logger       *slog.Logger
}

func NewEvaluationService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	postings repositories.PostingRepository,
	evaluations repositories.EvaluationRepository,
	standings StandingsService,
	notifier Notifier,
	settings Settings,
	logger *slog.Logger,
) EvaluationService {
	return &evaluationService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		postings:     postings,
		evaluations:  evaluations,
		standings:    standings,
		notifier:     notifier,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

func validateEvaluationInput(input EvaluationInput) (EvaluationInput, error) {
	input.PostingID = strings.TrimSpace(input.PostingID)
	input.JudgeID = strings.TrimSpace(input.JudgeID)
	input.WinnerTeamID = strings.TrimSpace(input.WinnerTeamID)
	input.Notes = trimmed(input.Notes)

	fields := apperrors.FieldErrors{}
	fields.Check(input.PostingID != "", "posting_id", "is required")
	fields.Check(input.JudgeID != "", "judge_id", "is required")
	fields.Check(input.WinnerTeamID != "", "winner_team_id", "is required")
	fields.Check(len(input.Scores) > 0, "scores", "at least one speaker score is required")

	inRange := func(v int) bool { return v >= models.MinSpeakerPoints && v <= models.MaxSpeakerPoints }
	bounds := fmt.Sprintf("must be between %d and %d", models.MinSpeakerPoints, models.MaxSpeakerPoints)

	seen := make(map[string]struct{}, len(input.Scores))
	for i := range input.Scores {
		score := &input.Scores[i]
		score.EntrantID = strings.TrimSpace(score.EntrantID)
		field := fmt.Sprintf("scores[%d]", i)
		if score.EntrantID == "" {
			fields.Add(field+".entrant_id", "is required")
		} else if _, dup := seen[score.EntrantID]; dup {
			fields.Add(field+".entrant_id", "speaker "+score.EntrantID+" is scored more than once")
		}
		seen[score.EntrantID] = struct{}{}
		fields.Check(inRange(score.Points), field+".points", bounds)
		for name, v := range score.Criteria {
			fields.Check(strings.TrimSpace(name) != "", field+".criteria", "criterion name is required")
			fields.Check(inRange(v), field+".criteria."+name, bounds)
		}
	}

	if err := fields.Err("invalid evaluation"); err != nil {
		return input, err
	}
	return input, nil
}

func (s *evaluationService) SubmitEvaluation(ctx context.Context, input EvaluationInput) (ev *models.Evaluation, err error) {
	ctx, span := tracer.Start(ctx, "EvaluationService.SubmitEvaluation")
	span.SetAttributes(attribute.String("posting.id", input.PostingID), attribute.String("judge.id", input.JudgeID))
	defer func() { finishSpan(span, err) }()

	input, err = validateEvaluationInput(input)
	if err != nil {
		return nil, err
	}

	posting, err := s.postings.GetByID(ctx, nil, input.PostingID)
	if err != nil {
		return nil, err
	}
	if posting.Status.IsTerminal() {
		return nil, s.terminalError(ctx, posting, input.JudgeID)
	}

	tournament, err := s.tournaments.GetByID(ctx, nil, posting.TournamentID)
	if err != nil {
		return nil, err
	}
	team1, err := s.postingTeam(ctx, posting, posting.Team1ID)
	if err != nil {
		return nil, err
	}
	team2, err := s.postingTeam(ctx, posting, posting.Team2ID)
	if err != nil {
		return nil, err
	}
	if err := s.checkJudge(ctx, tournament, posting, input.JudgeID); err != nil {
		return nil, err
	}

	fields := apperrors.FieldErrors{}
	fields.Check(posting.HasTeam(input.WinnerTeamID), "winner_team_id", "must be one of the posting's two teams")
	for i, score := range input.Scores {
		fields.Check(team1.HasMember(score.EntrantID) || team2.HasMember(score.EntrantID),
			fmt.Sprintf("scores[%d].entrant_id", i), "speaker "+score.EntrantID+" is not on either team")
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation("invalid evaluation", fields).WithRef("posting_id", posting.ID)
	}

	ev = &models.Evaluation{
		ID:           newID(),
		TournamentID: posting.TournamentID,
		PostingID:    posting.ID,
		JudgeID:      input.JudgeID,
		Scores:       input.Scores,
		WinnerTeamID: input.WinnerTeamID,
		Notes:        input.Notes,
		SubmittedAt:  s.settings.now(),
	}

	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		count, ok, err := s.postings.RecordEvaluation(ctx, tx, posting.ID)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.postings.GetByID(ctx, tx, posting.ID)
			if err != nil {
				return err
			}
			return apperrors.PostingLocked(posting.ID, string(current.Status), "posting no longer accepts evaluations")
		}
		ev.Sequence = count

		inserted, err := s.evaluations.Insert(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			return apperrors.DuplicateEvaluation(posting.ID, input.JudgeID)
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindDuplicateEvaluation) {
			s.logger.Info("duplicate evaluation rejected",
				slog.String("posting_id", posting.ID),
				slog.String("judge_id", input.JudgeID))
		}
		return nil, err
	}

	s.logger.Info("evaluation recorded",
		slog.String("posting_id", posting.ID),
		slog.String("judge_id", ev.JudgeID),
		slog.Int("sequence", ev.Sequence))
	notify(s.notifier, posting.TournamentID, hub.EventEvaluationRecorded, ev)

	if ev.Sequence >= tournament.Quorum {
		if _, _, err := s.FinalizePosting(ctx, posting.ID); err != nil {
			logError(s.logger, "failed to finalize posting", err, slog.String("posting_id", posting.ID))
		}
	}
	return ev, nil
}

// terminalError explains why a completed or cancelled posting refused an
// evaluation. A judge resubmitting gets a duplicate, anyone else a lock.
func (s *evaluationService) terminalError(ctx context.Context, posting *models.Posting, judgeID string) error {
	_, err := s.evaluations.GetByPostingAndJudge(ctx, nil, posting.ID, judgeID)
	switch {
	case err == nil:
		return apperrors.DuplicateEvaluation(posting.ID, judgeID)
	case !apperrors.Is(err, apperrors.KindNotFound):
		return err
	}
	return apperrors.PostingLocked(posting.ID, string(posting.Status), "posting is "+string(posting.Status))
}

func (s *evaluationService) postingTeam(ctx context.Context, posting *models.Posting, teamID string) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, nil, teamID)
	if err != nil {
		return nil, err
	}
	if team.TournamentID != posting.TournamentID {
		return nil, errWrongTournament("team", teamID, posting.TournamentID)
	}
	return team, nil
}

// checkJudge applies the tournament's judge policy. By default any judge
// registered in the tournament may evaluate any posting; with
// AssignedJudgesOnly the judge must be assigned to the posting.
func (s *evaluationService) checkJudge(ctx context.Context, t *models.Tournament, posting *models.Posting, judgeID string) error {
	if posting.HasJudge(judgeID) {
		return nil
	}
	if t.AssignedJudgesOnly {
		return apperrors.Validation("judge is not assigned to this posting", map[string]string{
			"judge_id": "only assigned judges may evaluate in this tournament",
		}).WithRef("posting_id", posting.ID).WithRef("judge_id", judgeID)
	}

	p, err := s.participants.Get(ctx, nil, t.ID, judgeID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return apperrors.NotFound("judge", judgeID).WithRef("tournament_id", t.ID)
	}
	if err != nil {
		return err
	}
	if p.Role != models.RoleJudge {
		return errNotRegisteredAs(judgeID, models.RoleJudge, "judge_id")
	}
	return nil
}

func (s *evaluationService) ListEvaluations(ctx context.Context, postingID string) ([]*models.Evaluation, error) {
	if _, err := s.postings.GetByID(ctx, nil, postingID); err != nil {
		return nil, err
	}
	return s.evaluations.ListByPosting(ctx, nil, postingID)
}

func (s *evaluationService) FinalizePosting(ctx context.Context, postingID string) (p *models.Posting, done bool, err error) {
	ctx, span := tracer.Start(ctx, "EvaluationService.FinalizePosting")
	span.SetAttributes(attribute.String("posting.id", postingID))
	defer func() { finishSpan(span, err) }()

	p, err = s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, false, err
	}
	if p.Status.IsTerminal() {
		return p, false, nil
	}
	t, err := s.tournaments.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return nil, false, err
	}
	evaluations, err := s.evaluations.ListByPosting(ctx, nil, postingID)
	if err != nil {
		return nil, false, err
	}
	if len(evaluations) < t.Quorum {
		return p, false, nil
	}

	winner := decideWinner(p, evaluations[:t.Quorum])
	if winner == "" {
		return nil, false, apperrors.Internal(fmt.Errorf("no valid winner among evaluations of posting %s", postingID))
	}

	ok, err := s.postings.Complete(ctx, nil, postingID, winner)
	if err != nil {
		return nil, false, err
	}
	p, err = s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return p, false, nil
	}

	s.logger.Info("posting completed",
		slog.String("posting_id", postingID),
		slog.String("winner_team_id", winner),
		slog.Int("evaluations", len(evaluations)))
	notify(s.notifier, p.TournamentID, hub.EventPostingCompleted, p)

	if s.standings != nil {
		if _, err := s.standings.Refresh(ctx, p.TournamentID); err != nil {
			logError(s.logger, "failed to refresh standings", err, slog.String("tournament_id", p.TournamentID))
		}
	}
	return p, true, nil
}

// decideWinner returns the team declared by most evaluations. On a tie the
// earliest evaluation naming one of the tied teams decides. Evaluations must
// be ordered by acceptance.
func decideWinner(p *models.Posting, evaluations []*models.Evaluation) string {
	votes := make(map[string]int, 2)
	best := 0
	for _, ev := range evaluations {
		if !p.HasTeam(ev.WinnerTeamID) {
			continue
		}
		votes[ev.WinnerTeamID]++
		best = max(best, votes[ev.WinnerTeamID])
	}
	for _, ev := range evaluations {
		if votes[ev.WinnerTeamID] == best && best > 0 {
			return ev.WinnerTeamID
		}
	}
	return ""
}
