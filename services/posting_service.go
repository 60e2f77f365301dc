package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/pairing"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"github.com/Aksuiekbro/debetter-sub002/storage"
	"go.opentelemetry.io/otel/attribute"
)

// PostingInput describes one manually created posting. Theme and
// CustomModel are mutually exclusive, as are Location and VirtualLink.
type PostingInput struct {
	Team1ID       string     `json:"team1_id"`
	Team2ID       string     `json:"team2_id"`
	JudgeIDs      []string   `json:"judge_ids"`
	Theme         *string    `json:"theme,omitempty"`
	CustomModel   *string    `json:"custom_model,omitempty"`
	Location      *string    `json:"location,omitempty"`
	VirtualLink   *string    `json:"virtual_link,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

type BatchItemError struct {
	Index  int               `json:"index"`
	Reason string            `json:"reason"`
	Kind   apperrors.Kind    `json:"kind"`
	Refs   map[string]string `json:"refs,omitempty"`
}

// BatchResult reports every item of a best-effort batch: created postings and
// the index of each rejected input with its reason.
type BatchResult struct {
	BatchName string            `json:"batch_name"`
	Created   []*models.Posting `json:"created"`
	Errors    []BatchItemError  `json:"errors"`
}

type GenerateRoundInput struct {
	// Round defaults to the next round after the highest existing one.
	Round int `json:"round,omitempty"`
	// JudgesPerMatch defaults to the tournament's required judge count.
	JudgesPerMatch *int   `json:"judges_per_match,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	// Generator is "random" or "round_robin"; empty uses the service default.
	Generator string `json:"generator,omitempty"`
}

type GenerateRoundResult struct {
	Round        int               `json:"round"`
	Postings     []*models.Posting `json:"postings"`
	LeftoverTeam *models.Team      `json:"leftover_team,omitempty"`
	Seed         int64             `json:"seed"`
	Generator    string            `json:"generator"`
}

// UpdatePostingInput changes a scheduled posting. Nil fields are left alone;
// setting one side of an exclusive pair clears the other side.
type UpdatePostingInput struct {
	JudgeIDs        *[]string  `json:"judge_ids,omitempty"`
	Theme           *string    `json:"theme,omitempty"`
	CustomModel     *string    `json:"custom_model,omitempty"`
	Location        *string    `json:"location,omitempty"`
	VirtualLink     *string    `json:"virtual_link,omitempty"`
	ScheduledTime   *time.Time `json:"scheduled_time,omitempty"`
	ExpectedVersion *int       `json:"expected_version,omitempty"`
}

// Finalizer completes a posting once its evaluations reach quorum.
type Finalizer interface {
	FinalizePosting(ctx context.Context, postingID string) (*models.Posting, bool, error)
}

type PostingService interface {
	CreatePosting(ctx context.Context, tournamentID string, input PostingInput) (*models.Posting, error)
	// CreatePostingsBatch creates every item independently. A failed item
	// never prevents the others from being created. Once the store becomes
	// unavailable the remaining items are not attempted and are reported as
	// store_unavailable, next to the postings already created.
	CreatePostingsBatch(ctx context.Context, tournamentID, batchName string, inputs []PostingInput) (*BatchResult, error)
	// GenerateRound pairs the tournament's teams into a new round. The round
	// is written atomically: either every posting is stored or none is.
	GenerateRound(ctx context.Context, tournamentID string, input GenerateRoundInput) (*GenerateRoundResult, error)
	GetPosting(ctx context.Context, postingID string) (*models.Posting, error)
	ListPostings(ctx context.Context, filter repositories.ListPostingsFilter) ([]*models.Posting, error)
	UpdatePostingDetails(ctx context.Context, postingID string, input UpdatePostingInput) (*models.Posting, error)
	ChangePostingStatus(ctx context.Context, postingID string, next models.PostingStatus) (*models.Posting, error)
	UploadMedia(ctx context.Context, postingID string, kind repositories.MediaKind, contentType string, body io.Reader) (*models.Posting, error)
}

type postingService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	postings     repositories.PostingRepository
	generator    pairing.RoundGenerator
	finalizer    Finalizer
	uploader     storage.FileUploader
	notifier     Notifier
	settings     Settings
	logger       *slog.Logger
}

func NewPostingService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	postings repositories.PostingRepository,
	generator pairing.RoundGenerator,
	finalizer Finalizer,
	uploader storage.FileUploader,
	notifier Notifier,
	settings Settings,
	logger *slog.Logger,
) PostingService {
	if generator == nil {
		generator = pairing.NewRandomGenerator()
	}
	return &postingService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		postings:     postings,
		generator:    generator,
		finalizer:    finalizer,
		uploader:     uploader,
		notifier:     notifier,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

// normalizePostingInput trims the input and checks everything that needs no
// store access.
func normalizePostingInput(input PostingInput) (PostingInput, error) {
	input.Team1ID = strings.TrimSpace(input.Team1ID)
	input.Team2ID = strings.TrimSpace(input.Team2ID)
	input.Theme = trimmed(input.Theme)
	input.CustomModel = trimmed(input.CustomModel)
	input.Location = trimmed(input.Location)
	input.VirtualLink = trimmed(input.VirtualLink)
	input.ScheduledTime = utcPtr(input.ScheduledTime)

	fields := apperrors.FieldErrors{}
	fields.Check(input.Team1ID != "", "team1_id", "is required")
	fields.Check(input.Team2ID != "", "team2_id", "is required")
	if input.Team1ID != "" && input.Team1ID == input.Team2ID {
		fields.Add("team2_id", "a team cannot be paired with itself")
	}
	switch {
	case input.Theme == nil && input.CustomModel == nil:
		fields.Add("theme", "theme or custom_model is required")
	case input.Theme != nil && input.CustomModel != nil:
		fields.Add("custom_model", "theme and custom_model are mutually exclusive")
	}
	if input.Location != nil && input.VirtualLink != nil {
		fields.Add("virtual_link", "location and virtual_link are mutually exclusive")
	}

	input.JudgeIDs = normalizeJudgeIDs(input.JudgeIDs, fields)

	if err := fields.Err("invalid posting"); err != nil {
		return input, err
	}
	return input, nil
}

// normalizeJudgeIDs trims ids and records blanks and repeats in fields.
func normalizeJudgeIDs(ids []string, fields apperrors.FieldErrors) []string {
	judges := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			fields.Add(fmt.Sprintf("judge_ids[%d]", i), "judge id is required")
			continue
		}
		if _, dup := seen[id]; dup {
			fields.Add(fmt.Sprintf("judge_ids[%d]", i), "judge "+id+" is listed more than once")
			continue
		}
		seen[id] = struct{}{}
		judges = append(judges, id)
	}
	return judges
}

func (s *postingService) activeTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, errTournamentFinished(t)
	}
	return t, nil
}

// checkTeams verifies that both team ids reference teams of the tournament.
func (s *postingService) checkTeams(ctx context.Context, tournamentID string, teamIDs ...string) error {
	for _, id := range teamIDs {
		team, err := s.teams.GetByID(ctx, nil, id)
		if err != nil {
			return err
		}
		if team.TournamentID != tournamentID {
			return errWrongTournament("team", id, tournamentID)
		}
	}
	return nil
}

// checkJudges verifies that every id is registered as a judge of the tournament.
func (s *postingService) checkJudges(ctx context.Context, t *models.Tournament, judgeIDs []string) error {
	for _, id := range judgeIDs {
		p, err := s.participants.Get(ctx, nil, t.ID, id)
		if apperrors.Is(err, apperrors.KindNotFound) {
			return apperrors.NotFound("judge", id).WithRef("tournament_id", t.ID)
		}
		if err != nil {
			return err
		}
		if p.Role != models.RoleJudge {
			return errNotRegisteredAs(id, models.RoleJudge, "judge_ids")
		}
	}
	if t.AssignedJudgesOnly && len(judgeIDs) < t.Quorum {
		return apperrors.Validation("not enough judges to reach quorum", map[string]string{
			"judge_ids": fmt.Sprintf("at least %d judges must be assigned", t.Quorum),
		})
	}
	return nil
}

func (s *postingService) buildPosting(tournamentID string, input PostingInput, batchName *string) *models.Posting {
	now := s.settings.now()
	return &models.Posting{
		ID:            newID(),
		TournamentID:  tournamentID,
		Team1ID:       input.Team1ID,
		Team2ID:       input.Team2ID,
		JudgeIDs:      input.JudgeIDs,
		Theme:         input.Theme,
		CustomModel:   input.CustomModel,
		Location:      input.Location,
		VirtualLink:   input.VirtualLink,
		ScheduledTime: input.ScheduledTime,
		Status:        models.PostingScheduled,
		BatchName:     batchName,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *postingService) createOne(ctx context.Context, t *models.Tournament, input PostingInput, batchName *string) (*models.Posting, error) {
	input, err := normalizePostingInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.checkTeams(ctx, t.ID, input.Team1ID, input.Team2ID); err != nil {
		return nil, err
	}
	if err := s.checkJudges(ctx, t, input.JudgeIDs); err != nil {
		return nil, err
	}

	posting := s.buildPosting(t.ID, input, batchName)
	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.postings.Create(ctx, tx, posting)
	})
	if err != nil {
		return nil, err
	}
	return posting, nil
}

func (s *postingService) CreatePosting(ctx context.Context, tournamentID string, input PostingInput) (p *models.Posting, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.CreatePosting")
	span.SetAttributes(attribute.String("tournament.id", tournamentID))
	defer func() { finishSpan(span, err) }()

	t, err := s.activeTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	p, err = s.createOne(ctx, t, input, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("posting created",
		slog.String("tournament_id", tournamentID),
		slog.String("posting_id", p.ID))
	notify(s.notifier, tournamentID, hub.EventPostingCreated, p)
	return p, nil
}

func (s *postingService) CreatePostingsBatch(ctx context.Context, tournamentID, batchName string, inputs []PostingInput) (res *BatchResult, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.CreatePostingsBatch")
	span.SetAttributes(attribute.String("tournament.id", tournamentID), attribute.Int("items", len(inputs)))
	defer func() { finishSpan(span, err) }()

	batchName = strings.TrimSpace(batchName)
	fields := apperrors.FieldErrors{}
	fields.Check(batchName != "", "batch_name", "is required")
	fields.Check(len(inputs) > 0, "postings", "at least one posting is required")
	if err := fields.Err("invalid batch"); err != nil {
		return nil, err
	}

	t, err := s.activeTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	res = &BatchResult{BatchName: batchName, Created: []*models.Posting{}, Errors: []BatchItemError{}}
	for i, input := range inputs {
		p, err := s.createOne(ctx, t, input, &batchName)
		if err != nil {
			reason := err.Error()
			if apperrors.Retryable(err) {
				reason = "store unavailable"
			}
			res.Errors = append(res.Errors, BatchItemError{
				Index:  i,
				Reason: reason,
				Kind:   apperrors.KindOf(err),
				Refs:   apperrors.RefsOf(err),
			})
			if apperrors.Retryable(err) {
				logError(s.logger, "posting batch interrupted", err,
					slog.String("tournament_id", tournamentID),
					slog.String("batch_name", batchName),
					slog.Int("index", i))
				for j := i + 1; j < len(inputs); j++ {
					res.Errors = append(res.Errors, BatchItemError{
						Index:  j,
						Reason: "not attempted: store unavailable",
						Kind:   apperrors.KindStoreUnavailable,
					})
				}
				break
			}
			continue
		}
		res.Created = append(res.Created, p)
		notify(s.notifier, tournamentID, hub.EventPostingCreated, p)
	}

	s.logger.Info("posting batch processed",
		slog.String("tournament_id", tournamentID),
		slog.String("batch_name", batchName),
		slog.Int("created", len(res.Created)),
		slog.Int("rejected", len(res.Errors)))
	return res, nil
}

func (s *postingService) GenerateRound(ctx context.Context, tournamentID string, input GenerateRoundInput) (res *GenerateRoundResult, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.GenerateRound")
	span.SetAttributes(attribute.String("tournament.id", tournamentID), attribute.Int("round", input.Round))
	defer func() { finishSpan(span, err) }()

	if input.Round < 0 {
		return nil, apperrors.Validation("invalid round", map[string]string{"round": "must not be negative"})
	}
	generator := s.generator
	if input.Generator != "" {
		g, ok := pairing.GeneratorByName(input.Generator)
		if !ok {
			return nil, apperrors.Validation("unknown generator", map[string]string{
				"generator": "must be one of random, round_robin",
			})
		}
		generator = g
	}
	t, err := s.activeTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	round := input.Round
	if round == 0 {
		last, err := s.postings.MaxRound(ctx, nil, tournamentID)
		if err != nil {
			return nil, err
		}
		round = last + 1
	}
	judgesPerMatch := t.RequiredJudges
	if input.JudgesPerMatch != nil {
		judgesPerMatch = *input.JudgesPerMatch
	}
	if t.AssignedJudgesOnly && judgesPerMatch < t.Quorum {
		return nil, apperrors.Validation("not enough judges to reach quorum", map[string]string{
			"judges_per_match": fmt.Sprintf("must be at least the quorum of %d", t.Quorum),
		})
	}

	teams, err := s.teams.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	role := models.RoleJudge
	judges, err := s.participants.ListByTournament(ctx, nil, tournamentID, &role)
	if err != nil {
		return nil, err
	}
	judgeIDs := make([]string, len(judges))
	for i, j := range judges {
		judgeIDs[i] = j.EntrantID
	}

	generated, err := generator.GenerateRound(ctx, pairing.GenerateRoundParams{
		Tournament: t,
		Teams:      teams,
		JudgeIDs:   judgeIDs,
		RoundParams: pairing.RoundParams{
			Round:          round,
			JudgesPerMatch: judgesPerMatch,
			Seed:           input.Seed,
		},
	})
	if err != nil {
		return nil, err
	}

	now := s.settings.now()
	for _, p := range generated.Postings {
		p.ID = newID()
		p.TournamentID = tournamentID
		p.Status = models.PostingScheduled
		p.Version = 1
		p.CreatedAt, p.UpdatedAt = now, now
	}

	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, p := range generated.Postings {
			if err := s.postings.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res = &GenerateRoundResult{
		Round:        round,
		Postings:     generated.Postings,
		LeftoverTeam: generated.LeftoverTeam,
		Seed:         generated.Seed,
		Generator:    generator.GetName(),
	}
	attrs := []any{
		slog.String("tournament_id", tournamentID),
		slog.Int("round", round),
		slog.Int("postings", len(res.Postings)),
		slog.Int64("seed", res.Seed),
	}
	if res.LeftoverTeam != nil {
		attrs = append(attrs, slog.String("leftover_team_id", res.LeftoverTeam.ID))
	}
	s.logger.Info("round generated", attrs...)
	notify(s.notifier, tournamentID, hub.EventRoundGenerated, res)
	return res, nil
}

func (s *postingService) GetPosting(ctx context.Context, postingID string) (*models.Posting, error) {
	p, err := s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, err
	}
	populatePostingMedia(p, s.uploader)
	return p, nil
}

func (s *postingService) ListPostings(ctx context.Context, filter repositories.ListPostingsFilter) ([]*models.Posting, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.Validation("invalid filter", map[string]string{"status": "unknown status"})
	}
	if _, err := s.tournaments.GetByID(ctx, nil, filter.TournamentID); err != nil {
		return nil, err
	}
	postings, err := s.postings.List(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	for _, p := range postings {
		populatePostingMedia(p, s.uploader)
	}
	return postings, nil
}

func lockedError(p *models.Posting) error {
	return apperrors.PostingLocked(p.ID, string(p.Status), "posting is "+string(p.Status))
}

func (s *postingService) UpdatePostingDetails(ctx context.Context, postingID string, input UpdatePostingInput) (p *models.Posting, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.UpdatePostingDetails")
	span.SetAttributes(attribute.String("posting.id", postingID))
	defer func() { finishSpan(span, err) }()

	fields := apperrors.FieldErrors{}
	if input.Theme != nil && input.CustomModel != nil {
		fields.Add("custom_model", "theme and custom_model are mutually exclusive")
	}
	if input.Location != nil && input.VirtualLink != nil {
		fields.Add("virtual_link", "location and virtual_link are mutually exclusive")
	}
	if err := fields.Err("invalid posting update"); err != nil {
		return nil, err
	}

	p, err = s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PostingScheduled {
		return nil, lockedError(p)
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != p.Version {
		return nil, apperrors.Conflict("posting was modified by someone else").
			WithRef("posting_id", postingID).
			WithRef("version", fmt.Sprint(p.Version))
	}

	switch {
	case input.Theme != nil:
		p.Theme, p.CustomModel = trimmed(input.Theme), nil
	case input.CustomModel != nil:
		p.Theme, p.CustomModel = nil, trimmed(input.CustomModel)
	}
	switch {
	case input.Location != nil:
		p.Location, p.VirtualLink = trimmed(input.Location), nil
	case input.VirtualLink != nil:
		p.Location, p.VirtualLink = nil, trimmed(input.VirtualLink)
	}
	if input.ScheduledTime != nil {
		p.ScheduledTime = utcPtr(input.ScheduledTime)
	}
	if input.JudgeIDs != nil {
		judgeFields := apperrors.FieldErrors{}
		judgeIDs := normalizeJudgeIDs(*input.JudgeIDs, judgeFields)
		if err := judgeFields.Err("invalid posting update"); err != nil {
			return nil, err
		}
		t, err := s.tournaments.GetByID(ctx, nil, p.TournamentID)
		if err != nil {
			return nil, err
		}
		if err := s.checkJudges(ctx, t, judgeIDs); err != nil {
			return nil, err
		}
		p.JudgeIDs = judgeIDs
	}

	version := p.Version
	var ok bool
	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		ok, err = s.postings.UpdateDetails(ctx, tx, p, &version)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.postings.GetByID(ctx, nil, postingID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.PostingScheduled {
			return nil, lockedError(current)
		}
		return nil, apperrors.Conflict("posting was modified by someone else").WithRef("posting_id", postingID)
	}

	p, err = s.GetPosting(ctx, postingID)
	if err != nil {
		return nil, err
	}
	notify(s.notifier, p.TournamentID, hub.EventPostingUpdated, p)
	return p, nil
}

func (s *postingService) ChangePostingStatus(ctx context.Context, postingID string, next models.PostingStatus) (p *models.Posting, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.ChangePostingStatus")
	span.SetAttributes(attribute.String("posting.id", postingID), attribute.String("posting.status", string(next)))
	defer func() { finishSpan(span, err) }()

	if !next.Valid() {
		return nil, apperrors.Validation("invalid status", map[string]string{"status": "unknown status " + string(next)})
	}
	current, err := s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, err
	}
	if current.Status == next {
		populatePostingMedia(current, s.uploader)
		return current, nil
	}
	if current.Status.IsTerminal() {
		return nil, lockedError(current)
	}
	if !isValidPostingTransition(current.Status, next) {
		return nil, apperrors.Validation("invalid status transition", map[string]string{
			"status": "cannot move from " + string(current.Status) + " to " + string(next),
		}).WithRef("posting_id", postingID)
	}

	switch next {
	case models.PostingInProgress:
		ok, err := s.postings.UpdateStatus(ctx, nil, postingID, models.PostingScheduled, models.PostingInProgress)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.raceOutcome(ctx, postingID, next)
		}

	case models.PostingCancelled:
		ok, err := s.postings.Cancel(ctx, nil, postingID)
		if err != nil {
			return nil, err
		}
		if !ok {
			reloaded, err := s.postings.GetByID(ctx, nil, postingID)
			if err != nil {
				return nil, err
			}
			if reloaded.Status.IsTerminal() {
				return nil, lockedError(reloaded)
			}
			if reloaded.EvaluationCount > 0 {
				return nil, apperrors.PostingLocked(postingID, string(reloaded.Status), "evaluations already recorded")
			}
			return nil, apperrors.Conflict("posting changed concurrently").WithRef("posting_id", postingID)
		}

	case models.PostingCompleted:
		if s.finalizer == nil {
			return nil, apperrors.Internal(fmt.Errorf("no finalizer configured"))
		}
		_, finalized, err := s.finalizer.FinalizePosting(ctx, postingID)
		if err != nil {
			return nil, err
		}
		if !finalized {
			return nil, apperrors.Validation("quorum not reached", map[string]string{
				"status": "posting cannot be completed before its evaluations reach quorum",
			}).WithRef("posting_id", postingID)
		}
	}

	s.logger.Info("posting status changed",
		slog.String("posting_id", postingID),
		slog.String("from", string(current.Status)),
		slog.String("to", string(next)))

	p, err = s.GetPosting(ctx, postingID)
	if err != nil {
		return nil, err
	}
	if next != models.PostingCompleted {
		notify(s.notifier, p.TournamentID, hub.EventPostingUpdated, p)
	}
	return p, nil
}

// raceOutcome resolves a lost compare-and-swap: the posting is reported as is
// when it already reached next, locked when terminal, conflicting otherwise.
func (s *postingService) raceOutcome(ctx context.Context, postingID string, next models.PostingStatus) (*models.Posting, error) {
	p, err := s.GetPosting(ctx, postingID)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Status == next:
		return p, nil
	case p.Status.IsTerminal():
		return nil, lockedError(p)
	}
	return nil, apperrors.Conflict("posting changed concurrently").WithRef("posting_id", postingID)
}

func (s *postingService) UploadMedia(ctx context.Context, postingID string, kind repositories.MediaKind, contentType string, body io.Reader) (p *models.Posting, err error) {
	ctx, span := tracer.Start(ctx, "PostingService.UploadMedia")
	span.SetAttributes(attribute.String("posting.id", postingID), attribute.String("media.kind", string(kind)))
	defer func() { finishSpan(span, err) }()

	if s.uploader == nil {
		return nil, errMediaNotConfigured
	}

	var (
		ext string
		ok  bool
	)
	switch kind {
	case repositories.MediaBallot:
		ext, ok = storage.BallotExtension(contentType)
	case repositories.MediaAudio:
		ext, ok = storage.AudioExtension(contentType)
	default:
		return nil, apperrors.Validation("invalid media kind", map[string]string{"kind": "must be ballot or audio"})
	}
	if !ok {
		return nil, apperrors.Validation("unsupported media type", map[string]string{
			"content_type": contentType + " is not accepted for " + string(kind),
		})
	}

	current, err := s.postings.GetByID(ctx, nil, postingID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostingCancelled {
		return nil, lockedError(current)
	}

	key := storage.PostingMediaKey(postingID, string(kind), newID(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, apperrors.StoreUnavailable("upload "+string(kind), err)
	}
	if err := s.postings.SetMediaKey(ctx, nil, postingID, kind, key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			logError(s.logger, "failed to remove orphaned media", delErr, slog.String("key", key))
		}
		return nil, err
	}

	old := current.BallotKey
	if kind == repositories.MediaAudio {
		old = current.AudioKey
	}
	if old != nil && *old != "" && *old != key {
		if err := s.uploader.Delete(ctx, *old); err != nil {
			s.logger.Warn("failed to delete replaced media",
				slog.String("posting_id", postingID),
				slog.String("key", *old),
				slog.Any("error", err))
		}
	}

	p, err = s.GetPosting(ctx, postingID)
	if err != nil {
		return nil, err
	}
	notify(s.notifier, p.TournamentID, hub.EventPostingUpdated, p)
	return p, nil
}
