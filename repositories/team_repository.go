package repositories

import (
	"context"
	"database/sql"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

type TeamRepository interface {
	// Create stores the team together with its members.
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Team, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.Team, error)
	ListIDs(ctx context.Context, exec SQLExecutor, tournamentID string) ([]string, error)
	NextPosition(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error
	UpdateTotals(ctx context.Context, exec SQLExecutor, teamID string, wins, losses, points int) error
}

type sqlTeamRepository struct {
	baseRepository
}

func NewTeamRepository(db *sql.DB) TeamRepository {
	return &sqlTeamRepository{baseRepository{db: db}}
}

const teamColumns = `id, tournament_id, name, position, wins, losses, points, created_at`

func scanTeam(row rowScanner) (*models.Team, error) {
	t := &models.Team{}
	err := row.Scan(&t.ID, &t.TournamentID, &t.Name, &t.Position, &t.Wins, &t.Losses, &t.Points, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *sqlTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	executor := r.getExecutor(exec)
	query := `INSERT INTO teams (` + teamColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := executor.ExecContext(ctx, query,
		team.ID, team.TournamentID, team.Name, team.Position, team.Wins, team.Losses, team.Points, team.CreatedAt,
	)
	if err != nil {
		return storeError("create team", err)
	}

	memberQuery := `
		INSERT INTO team_members (team_id, tournament_id, entrant_id, role)
		VALUES ($1, $2, $3, $4)`
	for _, m := range team.Members {
		if _, err := executor.ExecContext(ctx, memberQuery, team.ID, team.TournamentID, m.EntrantID, m.Role); err != nil {
			if apperrors.Is(storeError("", err), apperrors.KindConflict) {
				return apperrors.Conflict("entrant is already a member of a team in this tournament").
					WithRef("entrant_id", m.EntrantID)
			}
			return storeError("add team member", err)
		}
	}
	return nil
}

func (r *sqlTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Team, error) {
	executor := r.getExecutor(exec)
	team, err := scanTeam(executor.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("load team", "team", id, err)
	}

	members, err := r.loadMembers(ctx, executor, `team_id = $1`, id)
	if err != nil {
		return nil, err
	}
	team.Members = members[team.ID]
	return team, nil
}

func (r *sqlTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.Team, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE tournament_id = $1 ORDER BY position, name`, tournamentID)
	if err != nil {
		return nil, storeError("list teams", err)
	}

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			rows.Close()
			return nil, storeError("scan team", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeError("list teams", err)
	}
	rows.Close()

	members, err := r.loadMembers(ctx, executor, `tournament_id = $1`, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		t.Members = members[t.ID]
	}
	return teams, nil
}

// loadMembers returns members grouped by team, leaders first.
func (r *sqlTeamRepository) loadMembers(ctx context.Context, executor SQLExecutor, where string, arg string) (map[string][]models.TeamMember, error) {
	query := `
		SELECT team_id, entrant_id, role FROM team_members
		WHERE ` + where + `
		ORDER BY team_id, CASE role WHEN 'leader' THEN 0 ELSE 1 END, entrant_id`

	rows, err := executor.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeError("load team members", err)
	}
	defer rows.Close()

	members := make(map[string][]models.TeamMember)
	for rows.Next() {
		var teamID string
		var m models.TeamMember
		if err := rows.Scan(&teamID, &m.EntrantID, &m.Role); err != nil {
			return nil, storeError("scan team member", err)
		}
		members[teamID] = append(members[teamID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load team members", err)
	}
	return members, nil
}

func (r *sqlTeamRepository) ListIDs(ctx context.Context, exec SQLExecutor, tournamentID string) ([]string, error) {
	executor := r.getExecutor(exec)
	return queryIDs(ctx, executor, "list team ids",
		`SELECT id FROM teams WHERE tournament_id = $1 ORDER BY position, name`, tournamentID)
}

func (r *sqlTeamRepository) NextPosition(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error) {
	executor := r.getExecutor(exec)
	var next int
	err := executor.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM teams WHERE tournament_id = $1`, tournamentID).Scan(&next)
	if err != nil {
		return 0, storeError("next team position", err)
	}
	return next, nil
}

func (r *sqlTeamRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM team_members WHERE tournament_id = $1`, tournamentID); err != nil {
		return storeError("delete team members", err)
	}
	if _, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE tournament_id = $1`, tournamentID); err != nil {
		return storeError("delete teams", err)
	}
	return nil
}

func (r *sqlTeamRepository) UpdateTotals(ctx context.Context, exec SQLExecutor, teamID string, wins, losses, points int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE teams SET wins = $1, losses = $2, points = $3 WHERE id = $4`,
		wins, losses, points, teamID)
	if err != nil {
		return storeError("update team totals", err)
	}
	return checkAffectedRows(result, apperrors.NotFound("team", teamID))
}

func queryIDs(ctx context.Context, executor SQLExecutor, op, query string, args ...interface{}) ([]string, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return ids, nil
}
