package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aksuiekbro/debetter-sub002/models"
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error)
	List(ctx context.Context, exec SQLExecutor, filter ListTournamentsFilter) ([]*models.Tournament, error)
	// UpdateStatus moves the tournament from one status to another. It
	// returns false when the stored status is no longer from.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, from, to models.TournamentStatus) (bool, error)
	// Delete removes a tournament that has no postings. It returns false when
	// the tournament is missing or postings exist.
	Delete(ctx context.Context, exec SQLExecutor, id string) (bool, error)
	// AdvanceStandings marks the stored team totals as derived from the given
	// number of completed postings. It returns false when totals derived from
	// more postings are already stored.
	AdvanceStandings(ctx context.Context, exec SQLExecutor, id string, completed int) (bool, error)
}

type sqlTournamentRepository struct {
	baseRepository
}

func NewTournamentRepository(db *sql.DB) TournamentRepository {
	return &sqlTournamentRepository{baseRepository{db: db}}
}

const tournamentColumns = `id, name, status, registration_deadline, required_judges, quorum,
	assigned_judges_only, created_at, updated_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Status, &t.RegistrationDeadline, &t.RequiredJudges, &t.Quorum,
		&t.AssignedJudgesOnly, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *sqlTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (` + tournamentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := executor.ExecContext(ctx, query,
		t.ID, t.Name, t.Status, t.RegistrationDeadline, t.RequiredJudges, t.Quorum,
		t.AssignedJudgesOnly, t.CreatedAt, t.UpdatedAt,
	)
	return storeError("create tournament", err)
}

func (r *sqlTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr("load tournament", "tournament", id, err)
	}
	return t, nil
}

func (r *sqlTournamentRepository) List(ctx context.Context, exec SQLExecutor, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argID)
			args = append(args, filter.Offset)
		}
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list tournaments", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, storeError("scan tournament", err)
		}
		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list tournaments", err)
	}
	return tournaments, nil
}

func (r *sqlTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, from, to models.TournamentStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := executor.ExecContext(ctx, query, to, utcNow(), id, from)
	if err != nil {
		return false, storeError("update tournament status", err)
	}
	return affected(result)
}

func (r *sqlTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id string) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		DELETE FROM tournaments
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM postings WHERE tournament_id = $1)`

	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return false, storeError("delete tournament", err)
	}
	return affected(result)
}

func (r *sqlTournamentRepository) AdvanceStandings(ctx context.Context, exec SQLExecutor, id string, completed int) (bool, error) {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET standings_completed = $1 WHERE id = $2 AND standings_completed <= $1`,
		completed, id)
	if err != nil {
		return false, storeError("advance standings", err)
	}
	return affected(result)
}
