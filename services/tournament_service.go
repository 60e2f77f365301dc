package services

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name                 string     `json:"name"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	RequiredJudges       *int       `json:"required_judges,omitempty"`
	Quorum               *int       `json:"quorum,omitempty"`
	AssignedJudgesOnly   bool       `json:"assigned_judges_only"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	// GetTournament loads the tournament with its registered judges and
	// debaters, team ids and posting ids.
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	ChangeStatus(ctx context.Context, id string, next models.TournamentStatus) (*models.Tournament, error)
	// DeleteTournament removes a tournament that has no postings yet.
	// Tournaments with postings can only be cancelled.
	DeleteTournament(ctx context.Context, id string) error
}

type tournamentService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	postings     repositories.PostingRepository
	settings     Settings
	logger       *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	postings repositories.PostingRepository,
	settings Settings,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		postings:     postings,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	t := &models.Tournament{
		ID:                   newID(),
		Name:                 strings.TrimSpace(input.Name),
		Status:               models.TournamentDraft,
		RegistrationDeadline: utcPtr(input.RegistrationDeadline),
		RequiredJudges:       s.settings.DefaultJudgesPerMatch,
		Quorum:               s.settings.DefaultQuorum,
		AssignedJudgesOnly:   input.AssignedJudgesOnly,
	}
	if input.RequiredJudges != nil {
		t.RequiredJudges = *input.RequiredJudges
	}
	if input.Quorum != nil {
		t.Quorum = *input.Quorum
	}

	fields := apperrors.FieldErrors{}
	fields.Check(t.Name != "", "name", "is required")
	fields.Check(t.Quorum >= 1, "quorum", "must be at least 1")
	fields.Check(t.RequiredJudges >= 0, "required_judges", "must not be negative")
	if t.AssignedJudgesOnly {
		fields.Check(t.Quorum <= t.RequiredJudges, "quorum",
			"cannot exceed required_judges when only assigned judges may evaluate")
	}
	if err := fields.Err("invalid tournament"); err != nil {
		return nil, err
	}

	now := s.settings.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.tournaments.Create(ctx, nil, t); err != nil {
		return nil, err
	}
	t.JudgeIDs, t.DebaterIDs = []string{}, []string{}
	t.TeamIDs, t.PostingIDs = []string{}, []string{}
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id string) (t *models.Tournament, err error) {
	ctx, span := tracer.Start(ctx, "TournamentService.GetTournament")
	span.SetAttributes(attribute.String("tournament.id", id))
	defer func() { finishSpan(span, err) }()

	t, err = s.tournaments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	var participants []*models.Participant
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.participants.ListByTournament(gctx, nil, id, nil)
		return err
	})
	g.Go(func() error {
		var err error
		t.TeamIDs, err = s.teams.ListIDs(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		t.PostingIDs, err = s.postings.ListIDs(gctx, nil, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.JudgeIDs, t.DebaterIDs = []string{}, []string{}
	for _, p := range participants {
		switch p.Role {
		case models.RoleJudge:
			t.JudgeIDs = append(t.JudgeIDs, p.EntrantID)
		case models.RoleDebater:
			t.DebaterIDs = append(t.DebaterIDs, p.EntrantID)
		}
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.Validation("invalid filter", map[string]string{"status": "unknown status"})
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperrors.Validation("invalid filter", map[string]string{"limit": "limit and offset must not be negative"})
	}
	return s.tournaments.List(ctx, nil, filter)
}

func (s *tournamentService) ChangeStatus(ctx context.Context, id string, next models.TournamentStatus) (*models.Tournament, error) {
	if !next.Valid() {
		return nil, apperrors.Validation("invalid status", map[string]string{"status": "unknown status " + string(next)})
	}

	current, err := s.tournaments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if current.Status == next {
		return s.GetTournament(ctx, id)
	}
	if !isValidTournamentTransition(current.Status, next) {
		return nil, apperrors.Validation("invalid status transition", map[string]string{
			"status": "cannot move from " + string(current.Status) + " to " + string(next),
		}).WithRef("tournament_id", id)
	}

	ok, err := s.tournaments.UpdateStatus(ctx, nil, id, current.Status, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Conflict("tournament status changed concurrently").WithRef("tournament_id", id)
	}
	s.logger.Info("tournament status changed",
		slog.String("tournament_id", id),
		slog.String("from", string(current.Status)),
		slog.String("to", string(next)))
	return s.GetTournament(ctx, id)
}

func (s *tournamentService) DeleteTournament(ctx context.Context, id string) error {
	deleted, err := s.tournaments.Delete(ctx, nil, id)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}
	if _, err := s.tournaments.GetByID(ctx, nil, id); err != nil {
		return err
	}
	return errPostingsExist(id)
}
