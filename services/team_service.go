package services

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/pairing"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"go.opentelemetry.io/otel/attribute"
)

type CreateTeamInput struct {
	Name      string `json:"name"`
	LeaderID  string `json:"leader_id"`
	SpeakerID string `json:"speaker_id"`
}

type RandomizeTeamsResult struct {
	Teams []*models.Team `json:"teams"`
	// Leftover is the debater without a partner when the pool is odd.
	Leftover *models.Entrant `json:"leftover,omitempty"`
	Seed     int64           `json:"seed"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, tournamentID string, input CreateTeamInput) (*models.Team, error)
	// RandomizeTeams replaces the tournament's teams with random pairs of its
	// registered debaters. It is refused once postings exist.
	RandomizeTeams(ctx context.Context, tournamentID string, seed *int64) (*RandomizeTeamsResult, error)
	ListTeams(ctx context.Context, tournamentID string) ([]*models.Team, error)
}

type teamService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	postings     repositories.PostingRepository
	notifier     Notifier
	settings     Settings
	logger       *slog.Logger
}

func NewTeamService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	postings repositories.PostingRepository,
	notifier Notifier,
	settings Settings,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		postings:     postings,
		notifier:     notifier,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

func (s *teamService) CreateTeam(ctx context.Context, tournamentID string, input CreateTeamInput) (*models.Team, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.LeaderID = strings.TrimSpace(input.LeaderID)
	input.SpeakerID = strings.TrimSpace(input.SpeakerID)

	fields := apperrors.FieldErrors{}
	fields.Check(input.Name != "", "name", "is required")
	fields.Check(input.LeaderID != "", "leader_id", "is required")
	fields.Check(input.SpeakerID != "", "speaker_id", "is required")
	fields.Check(input.LeaderID == "" || input.LeaderID != input.SpeakerID, "speaker_id", "must differ from leader_id")
	if err := fields.Err("invalid team"); err != nil {
		return nil, err
	}

	tournament, err := s.tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status.IsTerminal() {
		return nil, errTournamentFinished(tournament)
	}
	for field, id := range map[string]string{"leader_id": input.LeaderID, "speaker_id": input.SpeakerID} {
		if err := s.requireDebater(ctx, tournamentID, id, field); err != nil {
			return nil, err
		}
	}

	team := &models.Team{
		ID:           newID(),
		TournamentID: tournamentID,
		Name:         input.Name,
		Members: []models.TeamMember{
			{EntrantID: input.LeaderID, Role: models.MemberLeader},
			{EntrantID: input.SpeakerID, Role: models.MemberSpeaker},
		},
		CreatedAt: s.settings.now(),
	}
	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		position, err := s.teams.NextPosition(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		team.Position = position
		err = s.teams.Create(ctx, tx, team)
		if apperrors.Is(err, apperrors.KindConflict) && len(apperrors.RefsOf(err)) == 0 {
			return apperrors.Conflict("team name is already in use").WithRef("tournament_id", tournamentID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	notify(s.notifier, tournamentID, hub.EventTeamsUpdated, map[string]interface{}{"team_ids": []string{team.ID}})
	return team, nil
}

func (s *teamService) requireDebater(ctx context.Context, tournamentID, entrantID, field string) error {
	p, err := s.participants.Get(ctx, nil, tournamentID, entrantID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return errNotRegisteredAs(entrantID, models.RoleDebater, field)
	}
	if err != nil {
		return err
	}
	if p.Role != models.RoleDebater {
		return errNotRegisteredAs(entrantID, models.RoleDebater, field)
	}
	return nil
}

func (s *teamService) RandomizeTeams(ctx context.Context, tournamentID string, seed *int64) (res *RandomizeTeamsResult, err error) {
	ctx, span := tracer.Start(ctx, "TeamService.RandomizeTeams")
	span.SetAttributes(attribute.String("tournament.id", tournamentID))
	defer func() { finishSpan(span, err) }()

	tournament, err := s.tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status.IsTerminal() {
		return nil, errTournamentFinished(tournament)
	}
	n, err := s.postings.Count(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errPostingsExist(tournamentID)
	}

	role := models.RoleDebater
	debaters, err := s.participants.ListByTournament(ctx, nil, tournamentID, &role)
	if err != nil {
		return nil, err
	}
	pool := make([]*models.Entrant, len(debaters))
	for i, d := range debaters {
		pool[i] = &models.Entrant{ID: d.EntrantID, DisplayName: d.DisplayName, Role: d.Role}
	}

	formed, err := pairing.FormTeams(pool, seed)
	if err != nil {
		return nil, err
	}

	now := s.settings.now()
	for _, team := range formed.Teams {
		team.ID = newID()
		team.TournamentID = tournamentID
		team.CreatedAt = now
	}

	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := s.postings.Count(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errPostingsExist(tournamentID)
		}
		if err := s.teams.DeleteByTournament(ctx, tx, tournamentID); err != nil {
			return err
		}
		for _, team := range formed.Teams {
			if err := s.teams.Create(ctx, tx, team); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.String("tournament_id", tournamentID),
		slog.Int("teams", len(formed.Teams)),
		slog.Int64("seed", formed.Seed),
	}
	if formed.Leftover != nil {
		attrs = append(attrs, slog.String("leftover_entrant_id", formed.Leftover.ID))
	}
	s.logger.Info("teams randomized", attrs...)

	ids := make([]string, len(formed.Teams))
	for i, team := range formed.Teams {
		ids[i] = team.ID
	}
	notify(s.notifier, tournamentID, hub.EventTeamsUpdated, map[string]interface{}{"team_ids": ids, "seed": formed.Seed})

	return &RandomizeTeamsResult{Teams: formed.Teams, Leftover: formed.Leftover, Seed: formed.Seed}, nil
}

func (s *teamService) ListTeams(ctx context.Context, tournamentID string) ([]*models.Team, error) {
	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}
	return s.teams.ListByTournament(ctx, nil, tournamentID)
}
