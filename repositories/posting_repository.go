package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Aksuiekbro/debetter-sub002/apperrors"
	"github.com/Aksuiekbro/debetter-sub002/models"
)

type MediaKind string

const (
	MediaBallot MediaKind = "ballot"
	MediaAudio  MediaKind = "audio"
)

type ListPostingsFilter struct {
	TournamentID string
	Status       *models.PostingStatus
	BatchName    *string
	Round        *int
}

type PostingRepository interface {
	// Create stores the posting and its judge assignments.
	Create(ctx context.Context, exec SQLExecutor, p *models.Posting) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Posting, error)
	List(ctx context.Context, exec SQLExecutor, filter ListPostingsFilter) ([]*models.Posting, error)
	ListIDs(ctx context.Context, exec SQLExecutor, tournamentID string) ([]string, error)
	Count(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error)
	MaxRound(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error)

	// RecordEvaluation bumps the evaluation counter of a non-terminal posting,
	// moving it to in_progress if it was scheduled, and returns the new count.
	// ok is false when the posting is terminal.
	RecordEvaluation(ctx context.Context, exec SQLExecutor, id string) (count int, ok bool, err error)
	// Complete finalizes an in_progress posting. It returns false when the
	// posting was not in_progress anymore.
	Complete(ctx context.Context, exec SQLExecutor, id, winnerTeamID string) (bool, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, from, to models.PostingStatus) (bool, error)
	// Cancel succeeds only for non-terminal postings without evaluations.
	Cancel(ctx context.Context, exec SQLExecutor, id string) (bool, error)
	// UpdateDetails rewrites judges, motion, venue and schedule of a scheduled
	// posting. When expectedVersion is set the stored version must match.
	UpdateDetails(ctx context.Context, exec SQLExecutor, p *models.Posting, expectedVersion *int) (bool, error)
	SetMediaKey(ctx context.Context, exec SQLExecutor, id string, kind MediaKind, key string) error
	CountJudgeAssignments(ctx context.Context, exec SQLExecutor, tournamentID string) (map[string]int, error)
}

type sqlPostingRepository struct {
	baseRepository
}

func NewPostingRepository(db *sql.DB) PostingRepository {
	return &sqlPostingRepository{baseRepository{db: db}}
}

const postingColumns = `id, tournament_id, round, match_number, team1_id, team2_id,
	theme, custom_model, location, virtual_link, scheduled_time, status, winner_team_id,
	batch_name, evaluation_count, version, ballot_key, audio_key, created_at, updated_at`

func scanPosting(row rowScanner) (*models.Posting, error) {
	p := &models.Posting{}
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.Round, &p.MatchNumber, &p.Team1ID, &p.Team2ID,
		&p.Theme, &p.CustomModel, &p.Location, &p.VirtualLink, &p.ScheduledTime, &p.Status, &p.WinnerTeamID,
		&p.BatchName, &p.EvaluationCount, &p.Version, &p.BallotKey, &p.AudioKey, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *sqlPostingRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Posting) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO postings (` + postingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := executor.ExecContext(ctx, query,
		p.ID, p.TournamentID, p.Round, p.MatchNumber, p.Team1ID, p.Team2ID,
		p.Theme, p.CustomModel, p.Location, p.VirtualLink, p.ScheduledTime, p.Status, p.WinnerTeamID,
		p.BatchName, p.EvaluationCount, p.Version, p.BallotKey, p.AudioKey, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		err = storeError("create posting", err)
		if apperrors.Is(err, apperrors.KindConflict) && p.Round > 0 {
			return apperrors.Newf(apperrors.KindConflict, "match %d of round %d already exists", p.MatchNumber, p.Round).
				WithRef("tournament_id", p.TournamentID)
		}
		return err
	}
	return r.insertJudges(ctx, executor, p.ID, p.JudgeIDs)
}

func (r *sqlPostingRepository) insertJudges(ctx context.Context, executor SQLExecutor, postingID string, judgeIDs []string) error {
	query := `INSERT INTO posting_judges (posting_id, judge_id, position) VALUES ($1, $2, $3)`
	for i, judgeID := range judgeIDs {
		if _, err := executor.ExecContext(ctx, query, postingID, judgeID, i+1); err != nil {
			err = storeError("assign judge", err)
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.NotFound("judge", judgeID)
			}
			return err
		}
	}
	return nil
}

func (r *sqlPostingRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Posting, error) {
	executor := r.getExecutor(exec)
	p, err := scanPosting(executor.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("load posting", "posting", id, err)
	}

	judges, err := r.loadJudges(ctx, executor, `pj.posting_id = $1`, id)
	if err != nil {
		return nil, err
	}
	p.JudgeIDs = judgesOf(judges, p.ID)
	return p, nil
}

func (r *sqlPostingRepository) List(ctx context.Context, exec SQLExecutor, filter ListPostingsFilter) ([]*models.Posting, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + postingColumns + ` FROM postings WHERE tournament_id = $1`
	args := []interface{}{filter.TournamentID}
	argID := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.BatchName != nil {
		query += fmt.Sprintf(" AND batch_name = $%d", argID)
		args = append(args, *filter.BatchName)
		argID++
	}
	if filter.Round != nil {
		query += fmt.Sprintf(" AND round = $%d", argID)
		args = append(args, *filter.Round)
	}
	query += " ORDER BY round, match_number, created_at, id"

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list postings", err)
	}
	postings := make([]*models.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			rows.Close()
			return nil, storeError("scan posting", err)
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeError("list postings", err)
	}
	rows.Close()

	if len(postings) == 0 {
		return postings, nil
	}
	judges, err := r.loadJudges(ctx, executor, `p.tournament_id = $1`, filter.TournamentID)
	if err != nil {
		return nil, err
	}
	for _, p := range postings {
		p.JudgeIDs = judgesOf(judges, p.ID)
	}
	return postings, nil
}

func judgesOf(judges map[string][]string, postingID string) []string {
	if ids, ok := judges[postingID]; ok {
		return ids
	}
	return []string{}
}

func (r *sqlPostingRepository) loadJudges(ctx context.Context, executor SQLExecutor, where, arg string) (map[string][]string, error) {
	query := `
		SELECT pj.posting_id, pj.judge_id
		FROM posting_judges pj
		JOIN postings p ON p.id = pj.posting_id
		WHERE ` + where + `
		ORDER BY pj.posting_id, pj.position`

	rows, err := executor.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeError("load posting judges", err)
	}
	defer rows.Close()

	judges := make(map[string][]string)
	for rows.Next() {
		var postingID, judgeID string
		if err := rows.Scan(&postingID, &judgeID); err != nil {
			return nil, storeError("scan posting judge", err)
		}
		judges[postingID] = append(judges[postingID], judgeID)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load posting judges", err)
	}
	return judges, nil
}

func (r *sqlPostingRepository) ListIDs(ctx context.Context, exec SQLExecutor, tournamentID string) ([]string, error) {
	return queryIDs(ctx, r.getExecutor(exec), "list posting ids",
		`SELECT id FROM postings WHERE tournament_id = $1 ORDER BY round, match_number, created_at, id`, tournamentID)
}

func (r *sqlPostingRepository) Count(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error) {
	var n int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM postings WHERE tournament_id = $1`, tournamentID).Scan(&n)
	if err != nil {
		return 0, storeError("count postings", err)
	}
	return n, nil
}

func (r *sqlPostingRepository) MaxRound(ctx context.Context, exec SQLExecutor, tournamentID string) (int, error) {
	var n int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(round), 0) FROM postings WHERE tournament_id = $1`, tournamentID).Scan(&n)
	if err != nil {
		return 0, storeError("max round", err)
	}
	return n, nil
}

func (r *sqlPostingRepository) RecordEvaluation(ctx context.Context, exec SQLExecutor, id string) (int, bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE postings SET
			status = CASE WHEN status = 'scheduled' THEN 'in_progress' ELSE status END,
			evaluation_count = evaluation_count + 1,
			version = version + 1,
			updated_at = $1
		WHERE id = $2 AND status IN ('scheduled', 'in_progress')
		RETURNING evaluation_count`

	var count int
	err := executor.QueryRowContext(ctx, query, utcNow(), id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeError("record evaluation", err)
	}
	return count, true, nil
}

func (r *sqlPostingRepository) Complete(ctx context.Context, exec SQLExecutor, id, winnerTeamID string) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE postings SET status = 'completed', winner_team_id = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND status = 'in_progress'`

	result, err := executor.ExecContext(ctx, query, winnerTeamID, utcNow(), id)
	if err != nil {
		return false, storeError("complete posting", err)
	}
	return affected(result)
}

func (r *sqlPostingRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, from, to models.PostingStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE postings SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := executor.ExecContext(ctx, query, to, utcNow(), id, from)
	if err != nil {
		return false, storeError("update posting status", err)
	}
	return affected(result)
}

func (r *sqlPostingRepository) Cancel(ctx context.Context, exec SQLExecutor, id string) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE postings SET status = 'cancelled', version = version + 1, updated_at = $1
		WHERE id = $2 AND status IN ('scheduled', 'in_progress') AND evaluation_count = 0`

	result, err := executor.ExecContext(ctx, query, utcNow(), id)
	if err != nil {
		return false, storeError("cancel posting", err)
	}
	return affected(result)
}

func (r *sqlPostingRepository) UpdateDetails(ctx context.Context, exec SQLExecutor, p *models.Posting, expectedVersion *int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE postings SET
			theme = $1, custom_model = $2, location = $3, virtual_link = $4, scheduled_time = $5,
			version = version + 1, updated_at = $6
		WHERE id = $7 AND status = 'scheduled'`
	args := []interface{}{p.Theme, p.CustomModel, p.Location, p.VirtualLink, p.ScheduledTime, utcNow(), p.ID}
	if expectedVersion != nil {
		query += ` AND version = $8`
		args = append(args, *expectedVersion)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return false, storeError("update posting", err)
	}
	ok, err := affected(result)
	if err != nil || !ok {
		return ok, err
	}

	if _, err := executor.ExecContext(ctx, `DELETE FROM posting_judges WHERE posting_id = $1`, p.ID); err != nil {
		return false, storeError("clear posting judges", err)
	}
	if err := r.insertJudges(ctx, executor, p.ID, p.JudgeIDs); err != nil {
		return false, err
	}
	return true, nil
}

func (r *sqlPostingRepository) SetMediaKey(ctx context.Context, exec SQLExecutor, id string, kind MediaKind, key string) error {
	var column string
	switch kind {
	case MediaBallot:
		column = "ballot_key"
	case MediaAudio:
		column = "audio_key"
	default:
		return apperrors.Validation("unknown media kind", map[string]string{"kind": string(kind)})
	}

	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE postings SET `+column+` = $1, updated_at = $2 WHERE id = $3`, key, utcNow(), id)
	if err != nil {
		return storeError("store media key", err)
	}
	return checkAffectedRows(result, apperrors.NotFound("posting", id))
}

func (r *sqlPostingRepository) CountJudgeAssignments(ctx context.Context, exec SQLExecutor, tournamentID string) (map[string]int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT pj.judge_id, COUNT(*)
		FROM posting_judges pj
		JOIN postings p ON p.id = pj.posting_id
		WHERE p.tournament_id = $1 AND p.status <> 'cancelled'
		GROUP BY pj.judge_id`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, storeError("count judge assignments", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var judgeID string
		var n int
		if err := rows.Scan(&judgeID, &n); err != nil {
			return nil, storeError("scan judge assignment", err)
		}
		counts[judgeID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("count judge assignments", err)
	}
	return counts, nil
}
