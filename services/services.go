package services

import (
	"database/sql"
	"log/slog"

	"github.com/Aksuiekbro/debetter-sub002/pairing"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"github.com/Aksuiekbro/debetter-sub002/storage"
)

// Services bundles every service of the engine over one database.
type Services struct {
	Tournaments  TournamentService
	Entrants     EntrantService
	Participants ParticipantService
	Teams        TeamService
	Postings     PostingService
	Evaluations  EvaluationService
	Standings    StandingsService
}

// New wires the repositories and services. uploader and notifier may be nil.
func New(db *sql.DB, uploader storage.FileUploader, notifier Notifier, settings Settings, logger *slog.Logger) *Services {
	tournamentRepo := repositories.NewTournamentRepository(db)
	entrantRepo := repositories.NewEntrantRepository(db)
	participantRepo := repositories.NewParticipantRepository(db)
	teamRepo := repositories.NewTeamRepository(db)
	postingRepo := repositories.NewPostingRepository(db)
	evaluationRepo := repositories.NewEvaluationRepository(db)

	tournamentService := NewTournamentService(db, tournamentRepo, participantRepo, teamRepo, postingRepo, settings, logger)
	standingsService := NewStandingsService(db, tournamentRepo, entrantRepo, participantRepo, teamRepo, postingRepo, evaluationRepo, notifier, settings, logger)
	evaluationService := NewEvaluationService(db, tournamentRepo, participantRepo, teamRepo, postingRepo, evaluationRepo, standingsService, notifier, settings, logger)

	return &Services{
		Tournaments:  tournamentService,
		Entrants:     NewEntrantService(entrantRepo, settings),
		Participants: NewParticipantService(db, tournamentRepo, participantRepo, tournamentService, notifier, settings, logger),
		Teams:        NewTeamService(db, tournamentRepo, participantRepo, teamRepo, postingRepo, notifier, settings, logger),
		Postings: NewPostingService(db, tournamentRepo, participantRepo, teamRepo, postingRepo,
			pairing.NewRandomGenerator(), evaluationService, uploader, notifier, settings, logger),
		Evaluations: evaluationService,
		Standings:   standingsService,
	}
}
