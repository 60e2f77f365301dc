package services

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"sort"

	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/models"
	"github.com/Aksuiekbro/debetter-sub002/repositories"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type StandingsService interface {
	// Compute derives the ranked table from completed postings only. It
	// writes nothing and returns the same table until new results arrive.
	Compute(ctx context.Context, tournamentID string) ([]models.Standing, error)
	// Refresh computes the table and overwrites the stored team totals with
	// it, unless totals derived from more completed postings are already
	// stored. In that case nothing is written and the current table is
	// returned.
	Refresh(ctx context.Context, tournamentID string) ([]models.Standing, error)
	JudgeActivity(ctx context.Context, tournamentID string) ([]models.JudgeActivity, error)
	// SpeakerStandings ranks debaters by the speaker points of completed
	// postings.
	SpeakerStandings(ctx context.Context, tournamentID string) ([]models.SpeakerStanding, error)
}

type standingsService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	entrants     repositories.EntrantRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	postings     repositories.PostingRepository
	evaluations  repositories.EvaluationRepository
	notifier     Notifier
	settings     Settings
	logger       *slog.Logger
}

func NewStandingsService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	entrants repositories.EntrantRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	postings repositories.PostingRepository,
	evaluations repositories.EvaluationRepository,
	notifier Notifier,
	settings Settings,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		db:           db,
		tournaments:  tournaments,
		entrants:     entrants,
		participants: participants,
		teams:        teams,
		postings:     postings,
		evaluations:  evaluations,
		notifier:     notifier,
		settings:     settings.withDefaults(),
		logger:       loggerOrDefault(logger),
	}
}

func (s *standingsService) Compute(ctx context.Context, tournamentID string) (table []models.Standing, err error) {
	ctx, span := tracer.Start(ctx, "StandingsService.Compute")
	span.SetAttributes(attribute.String("tournament.id", tournamentID))
	defer func() { finishSpan(span, err) }()

	table, _, err = s.compute(ctx, tournamentID)
	return table, err
}

// compute also returns how many completed postings the table was derived
// from. Completed is terminal, so the count only grows.
func (s *standingsService) compute(ctx context.Context, tournamentID string) ([]models.Standing, int, error) {
	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, 0, err
	}

	var (
		teams    []*models.Team
		postings []*models.Posting
	)
	completed := models.PostingCompleted
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teams.ListByTournament(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		postings, err = s.postings.List(gctx, nil, repositories.ListPostingsFilter{
			TournamentID: tournamentID,
			Status:       &completed,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return s.tally(tournamentID, teams, postings), len(postings), nil
}

// tally folds completed postings into per-team totals and ranks them.
func (s *standingsService) tally(tournamentID string, teams []*models.Team, postings []*models.Posting) []models.Standing {
	rows := make(map[string]*models.Standing, len(teams))
	for _, t := range teams {
		rows[t.ID] = &models.Standing{TeamID: t.ID, TeamName: t.Name}
	}

	for _, p := range postings {
		if p.Status != models.PostingCompleted {
			continue
		}
		home, away := rows[p.Team1ID], rows[p.Team2ID]
		if home == nil || away == nil || p.Team1ID == p.Team2ID {
			s.logger.Warn("posting references teams outside the tournament, skipped",
				slog.String("tournament_id", tournamentID),
				slog.String("posting_id", p.ID))
			continue
		}
		if p.WinnerTeamID == nil || !p.HasTeam(*p.WinnerTeamID) {
			s.logger.Warn("completed posting has no valid winner, skipped",
				slog.String("tournament_id", tournamentID),
				slog.String("posting_id", p.ID))
			continue
		}

		winner, loser := rows[*p.WinnerTeamID], rows[p.Opponent(*p.WinnerTeamID)]
		winner.Wins++
		winner.Points += s.settings.PointsPerWin
		winner.Played++
		loser.Losses++
		loser.Played++
	}

	table := make([]models.Standing, 0, len(rows))
	for _, row := range rows {
		table = append(table, *row)
	}
	sort.Slice(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.TeamName != b.TeamName {
			return a.TeamName < b.TeamName
		}
		return a.TeamID < b.TeamID
	})

	for i := range table {
		if i > 0 && table[i].Wins == table[i-1].Wins && table[i].Points == table[i-1].Points {
			table[i].Rank = table[i-1].Rank
		} else {
			table[i].Rank = i + 1
		}
	}
	return table
}

func (s *standingsService) Refresh(ctx context.Context, tournamentID string) (table []models.Standing, err error) {
	ctx, span := tracer.Start(ctx, "StandingsService.Refresh")
	span.SetAttributes(attribute.String("tournament.id", tournamentID))
	defer func() { finishSpan(span, err) }()

	table, completed, err := s.compute(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	stale := false
	err = repositories.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		// The stamp row is written first so concurrent refreshes queue on it.
		ok, err := s.tournaments.AdvanceStandings(ctx, tx, tournamentID, completed)
		if err != nil {
			return err
		}
		if !ok {
			stale = true
			return nil
		}
		for _, row := range table {
			if err := s.teams.UpdateTotals(ctx, tx, row.TeamID, row.Wins, row.Losses, row.Points); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stale {
		s.logger.Debug("standings refresh superseded by a newer one",
			slog.String("tournament_id", tournamentID),
			slog.Int("completed_postings", completed))
		return s.Compute(ctx, tournamentID)
	}

	s.logger.Debug("standings refreshed",
		slog.String("tournament_id", tournamentID),
		slog.Int("teams", len(table)))
	notify(s.notifier, tournamentID, hub.EventStandingsUpdated, table)
	return table, nil
}

func (s *standingsService) JudgeActivity(ctx context.Context, tournamentID string) ([]models.JudgeActivity, error) {
	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}

	var (
		judges      []*models.Participant
		evaluated   map[string]int
		assignments map[string]int
	)
	role := models.RoleJudge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		judges, err = s.participants.ListByTournament(gctx, nil, tournamentID, &role)
		return err
	})
	g.Go(func() error {
		var err error
		evaluated, err = s.evaluations.CountByJudge(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = s.postings.CountJudgeAssignments(gctx, nil, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make(map[string]*models.JudgeActivity, len(judges))
	for _, j := range judges {
		rows[j.EntrantID] = &models.JudgeActivity{JudgeID: j.EntrantID, DisplayName: j.DisplayName}
	}
	var unnamed []string
	for _, counts := range []map[string]int{evaluated, assignments} {
		for id := range counts {
			if _, ok := rows[id]; !ok {
				rows[id] = &models.JudgeActivity{JudgeID: id}
				unnamed = append(unnamed, id)
			}
		}
	}
	if len(unnamed) > 0 {
		names, err := s.entrants.GetByIDs(ctx, nil, unnamed)
		if err != nil {
			return nil, err
		}
		for id, e := range names {
			rows[id].DisplayName = e.DisplayName
		}
	}

	activity := make([]models.JudgeActivity, 0, len(rows))
	for id, row := range rows {
		row.Evaluations = evaluated[id]
		row.Assigned = assignments[id]
		activity = append(activity, *row)
	}
	sort.Slice(activity, func(i, j int) bool {
		a, b := activity[i], activity[j]
		if a.Evaluations != b.Evaluations {
			return a.Evaluations > b.Evaluations
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.JudgeID < b.JudgeID
	})
	return activity, nil
}

func (s *standingsService) SpeakerStandings(ctx context.Context, tournamentID string) (table []models.SpeakerStanding, err error) {
	ctx, span := tracer.Start(ctx, "StandingsService.SpeakerStandings")
	span.SetAttributes(attribute.String("tournament.id", tournamentID))
	defer func() { finishSpan(span, err) }()

	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}

	var (
		teams       []*models.Team
		debaters    []*models.Participant
		evaluations []*models.Evaluation
	)
	role := models.RoleDebater
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teams.ListByTournament(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		debaters, err = s.participants.ListByTournament(gctx, nil, tournamentID, &role)
		return err
	})
	g.Go(func() error {
		var err error
		evaluations, err = s.evaluations.ListCompleted(gctx, nil, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make(map[string]*models.SpeakerStanding, len(debaters))
	for _, d := range debaters {
		rows[d.EntrantID] = &models.SpeakerStanding{EntrantID: d.EntrantID, DisplayName: d.DisplayName}
	}
	for _, t := range teams {
		for _, m := range t.Members {
			if row, ok := rows[m.EntrantID]; ok {
				row.TeamID = t.ID
			}
		}
	}

	games := make(map[string]map[string]struct{})
	for _, e := range evaluations {
		for _, sc := range e.Scores {
			row, ok := rows[sc.EntrantID]
			if !ok {
				s.logger.Warn("speaker score for an entrant who is not a debater here, skipped",
					slog.String("tournament_id", tournamentID),
					slog.String("evaluation_id", e.ID),
					slog.String("entrant_id", sc.EntrantID))
				continue
			}
			row.TotalPoints += sc.Points
			row.Ballots++
			if games[sc.EntrantID] == nil {
				games[sc.EntrantID] = make(map[string]struct{})
			}
			games[sc.EntrantID][e.PostingID] = struct{}{}
		}
	}

	table = make([]models.SpeakerStanding, 0, len(rows))
	for id, row := range rows {
		row.GamesPlayed = len(games[id])
		if row.Ballots > 0 {
			row.AveragePoints = math.Round(float64(row.TotalPoints)/float64(row.Ballots)*100) / 100
		}
		table = append(table, *row)
	}
	sort.Slice(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.AveragePoints != b.AveragePoints {
			return a.AveragePoints > b.AveragePoints
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.EntrantID < b.EntrantID
	})
	for i := range table {
		if i > 0 && table[i].TotalPoints == table[i-1].TotalPoints && table[i].AveragePoints == table[i-1].AveragePoints {
			table[i].Rank = table[i-1].Rank
		} else {
			table[i].Rank = i + 1
		}
	}
	return table, nil
}
