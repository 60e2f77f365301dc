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

// ParticipantService registers entrants into tournaments as judges or debaters.
type ParticipantService interface {
	// RegisterParticipants is idempotent for entrants already registered with
	// the same role. Registering an entrant under a second role fails.
	RegisterParticipants(ctx context.Context, tournamentID string, judgeIDs, debaterIDs []string) (*models.Tournament, error)
	ListParticipants(ctx context.Context, tournamentID string, role *models.EntrantRole) ([]*models.Participant, error)
}

type participantService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	tournamentSv TournamentService
	notifier     Notifier
	settings     Settings
	logger       *slog.Logger
}

func NewParticipantService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	tournamentSv TournamentService,
	notifier Notifier,
	settings Settings,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		tournamentSv: tournamentSv,
		notifier:     notifier,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

type registration struct {
	entrantID string
	role      models.EntrantRole
}

func (s *participantService) RegisterParticipants(ctx context.Context, tournamentID string, judgeIDs, debaterIDs []string) (t *models.Tournament, err error) {
	ctx, span := tracer.Start(ctx, "ParticipantService.RegisterParticipants")
	span.SetAttributes(
		attribute.String("tournament.id", tournamentID),
		attribute.Int("judges", len(judgeIDs)),
		attribute.Int("debaters", len(debaterIDs)),
	)
	defer func() { finishSpan(span, err) }()

	judges := cleanIDs(judgeIDs)
	debaters := cleanIDs(debaterIDs)

	fields := apperrors.FieldErrors{}
	fields.Check(len(judges)+len(debaters) > 0, "participants", "at least one judge or debater id is required")
	judgeSet := make(map[string]struct{}, len(judges))
	for _, id := range judges {
		judgeSet[id] = struct{}{}
	}
	for i, id := range debaters {
		if _, both := judgeSet[id]; both {
			fields.Add(fmt.Sprintf("debater_ids[%d]", i), "entrant "+id+" is also listed as a judge")
		}
	}
	if err := fields.Err("invalid registration"); err != nil {
		return nil, err
	}

	tournament, err := s.tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if !tournament.RegistrationOpen(s.settings.now()) {
		return nil, errRegistrationClosed(tournament)
	}

	batch := make([]registration, 0, len(judges)+len(debaters))
	for _, id := range judges {
		batch = append(batch, registration{id, models.RoleJudge})
	}
	for _, id := range debaters {
		batch = append(batch, registration{id, models.RoleDebater})
	}

	added := 0
	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.settings.now()
		for _, r := range batch {
			existing, err := s.participants.Get(ctx, tx, tournamentID, r.entrantID)
			switch {
			case err == nil:
				if existing.Role != r.role {
					return apperrors.Validation("entrant is already registered with another role", map[string]string{
						"role": "entrant " + r.entrantID + " is registered as " + string(existing.Role),
					}).WithRef("entrant_id", r.entrantID)
				}
				continue
			case !apperrors.Is(err, apperrors.KindNotFound):
				return err
			}

			inserted, err := s.participants.Insert(ctx, tx, &models.Participant{
				TournamentID: tournamentID,
				EntrantID:    r.entrantID,
				Role:         r.role,
				RegisteredAt: now,
			})
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if added > 0 {
		s.logger.Info("participants registered",
			slog.String("tournament_id", tournamentID),
			slog.Int("added", added))
		notify(s.notifier, tournamentID, hub.EventParticipantsRegistered, map[string]interface{}{
			"tournament_id": tournamentID,
			"added":         added,
		})
	}
	return s.tournamentSv.GetTournament(ctx, tournamentID)
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID string, role *models.EntrantRole) ([]*models.Participant, error) {
	if role != nil && !role.Valid() {
		return nil, apperrors.Validation("invalid filter", map[string]string{"role": "unknown role"})
	}
	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}
	return s.participants.ListByTournament(ctx, nil, tournamentID, role)
}

// cleanIDs trims ids, drops blanks and keeps the first occurrence of each.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
