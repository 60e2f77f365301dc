package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Aksuiekbro/debetter-sub002/models"
)

type EvaluationRepository interface {
	// Insert stores e unless the judge already evaluated the posting. The
	// boolean is false when the (posting, judge) pair was taken.
	Insert(ctx context.Context, exec SQLExecutor, e *models.Evaluation) (bool, error)
	GetByPostingAndJudge(ctx context.Context, exec SQLExecutor, postingID, judgeID string) (*models.Evaluation, error)
	// ListByPosting returns evaluations in acceptance order.
	ListByPosting(ctx context.Context, exec SQLExecutor, postingID string) ([]*models.Evaluation, error)
	// ListCompleted returns the evaluations of the tournament's completed
	// postings, grouped by posting in acceptance order.
	ListCompleted(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.Evaluation, error)
	CountByJudge(ctx context.Context, exec SQLExecutor, tournamentID string) (map[string]int, error)
}

type sqlEvaluationRepository struct {
	baseRepository
}

func NewEvaluationRepository(db *sql.DB) EvaluationRepository {
	return &sqlEvaluationRepository{baseRepository{db: db}}
}

const evaluationColumns = `id, tournament_id, posting_id, judge_id, seq, scores, winner_team_id, notes, submitted_at`

func scanEvaluation(row rowScanner) (*models.Evaluation, error) {
	e := &models.Evaluation{}
	var scores string
	err := row.Scan(&e.ID, &e.TournamentID, &e.PostingID, &e.JudgeID, &e.Sequence, &scores,
		&e.WinnerTeamID, &e.Notes, &e.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scores), &e.Scores); err != nil {
		return nil, fmt.Errorf("decode scores of evaluation %s: %w", e.ID, err)
	}
	return e, nil
}

func (r *sqlEvaluationRepository) Insert(ctx context.Context, exec SQLExecutor, e *models.Evaluation) (bool, error) {
	scores, err := json.Marshal(e.Scores)
	if err != nil {
		return false, fmt.Errorf("encode scores: %w", err)
	}

	executor := r.getExecutor(exec)
	query := `
		INSERT INTO evaluations (` + evaluationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (posting_id, judge_id) DO NOTHING`

	result, err := executor.ExecContext(ctx, query,
		e.ID, e.TournamentID, e.PostingID, e.JudgeID, e.Sequence, string(scores),
		e.WinnerTeamID, e.Notes, e.SubmittedAt,
	)
	if err != nil {
		return false, storeError("insert evaluation", err)
	}
	return affected(result)
}

func (r *sqlEvaluationRepository) GetByPostingAndJudge(ctx context.Context, exec SQLExecutor, postingID, judgeID string) (*models.Evaluation, error) {
	executor := r.getExecutor(exec)
	e, err := scanEvaluation(executor.QueryRowContext(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE posting_id = $1 AND judge_id = $2`, postingID, judgeID))
	if err != nil {
		return nil, notFoundOr("load evaluation", "evaluation", postingID+"/"+judgeID, err)
	}
	return e, nil
}

func (r *sqlEvaluationRepository) ListByPosting(ctx context.Context, exec SQLExecutor, postingID string) ([]*models.Evaluation, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE posting_id = $1 ORDER BY seq, submitted_at, id`, postingID)
	if err != nil {
		return nil, storeError("list evaluations", err)
	}
	defer rows.Close()

	evaluations := make([]*models.Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, storeError("scan evaluation", err)
		}
		evaluations = append(evaluations, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list evaluations", err)
	}
	return evaluations, nil
}

func (r *sqlEvaluationRepository) ListCompleted(ctx context.Context, exec SQLExecutor, tournamentID string) ([]*models.Evaluation, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT e.id, e.tournament_id, e.posting_id, e.judge_id, e.seq, e.scores,
			e.winner_team_id, e.notes, e.submitted_at
		FROM evaluations e
		JOIN postings p ON p.id = e.posting_id
		WHERE e.tournament_id = $1 AND p.status = $2
		ORDER BY e.posting_id, e.seq, e.id`, tournamentID, models.PostingCompleted)
	if err != nil {
		return nil, storeError("list completed evaluations", err)
	}
	defer rows.Close()

	evaluations := make([]*models.Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, storeError("scan evaluation", err)
		}
		evaluations = append(evaluations, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list completed evaluations", err)
	}
	return evaluations, nil
}

func (r *sqlEvaluationRepository) CountByJudge(ctx context.Context, exec SQLExecutor, tournamentID string) (map[string]int, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT judge_id, COUNT(*) FROM evaluations WHERE tournament_id = $1 GROUP BY judge_id`, tournamentID)
	if err != nil {
		return nil, storeError("count evaluations", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var judgeID string
		var n int
		if err := rows.Scan(&judgeID, &n); err != nil {
			return nil, storeError("scan evaluation count", err)
		}
		counts[judgeID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("count evaluations", err)
	}
	return counts, nil
}
