package repositories

import (
	"context"
	"database/sql"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

type ParticipantRepository interface {
	Get(ctx context.Context, exec SQLExecutor, tournamentID, entrantID string) (*models.Participant, error)
	// Insert registers p unless the entrant is already registered; the
	// boolean reports whether a row was written.
	Insert(ctx context.Context, exec SQLExecutor, p *models.Participant) (bool, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, role *models.EntrantRole) ([]*models.Participant, error)
}

type sqlParticipantRepository struct {
	baseRepository
}

func NewParticipantRepository(db *sql.DB) ParticipantRepository {
	return &sqlParticipantRepository{baseRepository{db: db}}
}

func (r *sqlParticipantRepository) Get(ctx context.Context, exec SQLExecutor, tournamentID, entrantID string) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT tp.tournament_id, tp.entrant_id, tp.role, tp.registered_at, e.display_name
		FROM tournament_participants tp
		JOIN entrants e ON e.id = tp.entrant_id
		WHERE tp.tournament_id = $1 AND tp.entrant_id = $2`

	p := &models.Participant{}
	err := executor.QueryRowContext(ctx, query, tournamentID, entrantID).Scan(
		&p.TournamentID, &p.EntrantID, &p.Role, &p.RegisteredAt, &p.DisplayName,
	)
	if err != nil {
		return nil, notFoundOr("load participant", "participant", entrantID, err)
	}
	return p, nil
}

func (r *sqlParticipantRepository) Insert(ctx context.Context, exec SQLExecutor, p *models.Participant) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_participants (tournament_id, entrant_id, role, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tournament_id, entrant_id) DO NOTHING`

	result, err := executor.ExecContext(ctx, query, p.TournamentID, p.EntrantID, p.Role, p.RegisteredAt)
	if err != nil {
		if apperrors.Is(storeError("", err), apperrors.KindNotFound) {
			return false, apperrors.NotFound("entrant", p.EntrantID)
		}
		return false, storeError("register participant", err)
	}
	return affected(result)
}

func (r *sqlParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string, role *models.EntrantRole) ([]*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT tp.tournament_id, tp.entrant_id, tp.role, tp.registered_at, e.display_name
		FROM tournament_participants tp
		JOIN entrants e ON e.id = tp.entrant_id
		WHERE tp.tournament_id = $1`
	args := []interface{}{tournamentID}
	if role != nil {
		query += ` AND tp.role = $2`
		args = append(args, *role)
	}
	query += ` ORDER BY tp.registered_at, tp.entrant_id`

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list participants", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.TournamentID, &p.EntrantID, &p.Role, &p.RegisteredAt, &p.DisplayName); err != nil {
			return nil, storeError("scan participant", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list participants", err)
	}
	return participants, nil
}
