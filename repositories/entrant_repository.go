package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aksuiekbro/debetter-sub002/models"
)

type ListEntrantsFilter struct {
	Role   *models.EntrantRole
	Limit  int
	Offset int
}

type EntrantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, e *models.Entrant) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Entrant, error)
	// GetByIDs returns the entrants that exist, keyed by id.
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []string) (map[string]*models.Entrant, error)
	List(ctx context.Context, exec SQLExecutor, filter ListEntrantsFilter) ([]*models.Entrant, error)
}

type sqlEntrantRepository struct {
	baseRepository
}

func NewEntrantRepository(db *sql.DB) EntrantRepository {
	return &sqlEntrantRepository{baseRepository{db: db}}
}

const entrantColumns = `id, display_name, contact, role, enrolled_at`

func scanEntrant(row rowScanner) (*models.Entrant, error) {
	e := &models.Entrant{}
	if err := row.Scan(&e.ID, &e.DisplayName, &e.Contact, &e.Role, &e.EnrolledAt); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *sqlEntrantRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Entrant) error {
	executor := r.getExecutor(exec)
	query := `INSERT INTO entrants (` + entrantColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := executor.ExecContext(ctx, query, e.ID, e.DisplayName, e.Contact, e.Role, e.EnrolledAt)
	return storeError("create entrant", err)
}

func (r *sqlEntrantRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Entrant, error) {
	executor := r.getExecutor(exec)
	e, err := scanEntrant(executor.QueryRowContext(ctx,
		`SELECT `+entrantColumns+` FROM entrants WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("load entrant", "entrant", id, err)
	}
	return e, nil
}

func (r *sqlEntrantRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []string) (map[string]*models.Entrant, error) {
	result := make(map[string]*models.Entrant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	executor := r.getExecutor(exec)
	query := `SELECT ` + entrantColumns + ` FROM entrants WHERE id IN (` + placeholders(1, len(ids)) + `)`

	rows, err := executor.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, storeError("load entrants", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntrant(rows)
		if err != nil {
			return nil, storeError("scan entrant", err)
		}
		result[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load entrants", err)
	}
	return result, nil
}

func (r *sqlEntrantRepository) List(ctx context.Context, exec SQLExecutor, filter ListEntrantsFilter) ([]*models.Entrant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + entrantColumns + ` FROM entrants WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Role != nil {
		query += fmt.Sprintf(" AND role = $%d", argID)
		args = append(args, *filter.Role)
		argID++
	}
	query += " ORDER BY display_name, id"
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
		return nil, storeError("list entrants", err)
	}
	defer rows.Close()

	entrants := make([]*models.Entrant, 0)
	for rows.Next() {
		e, err := scanEntrant(rows)
		if err != nil {
			return nil, storeError("scan entrant", err)
		}
		entrants = append(entrants, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list entrants", err)
	}
	return entrants, nil
}
