package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certprep/certprep-backend/internal/model"
)

// QuestionStatsRepository maintains per-question attempt aggregates.
type QuestionStatsRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionStatsRepository creates a new QuestionStatsRepository.
func NewQuestionStatsRepository(pool *pgxpool.Pool) *QuestionStatsRepository {
	return &QuestionStatsRepository{pool: pool}
}

// BulkRecord folds a batch of outcomes into question_stats with a single
// statement. Outcomes for the same question are pre-aggregated in SQL.
// Rows for questions that were deleted from the bank are ignored.
func (r *QuestionStatsRepository) BulkRecord(ctx context.Context, batch []model.QuestionOutcome) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	questionIDs := make([]uuid.UUID, 0, n)
	corrects := make([]int, 0, n)
	seconds := make([]float64, 0, n)
	attemptedAts := make([]time.Time, 0, n)
	for _, o := range batch {
		questionIDs = append(questionIDs, o.QuestionID)
		corrects = append(corrects, boolToInt(o.Correct))
		seconds = append(seconds, o.SecondsSpent)
		attemptedAts = append(attemptedAts, o.AttemptedAt)
	}

	query := `
		INSERT INTO question_stats AS s (question_id, total_attempts, correct_attempts, average_time_seconds, last_attempted)
		SELECT t.question_id, t.attempts, t.correct, t.avg_seconds, t.last_attempted
		FROM (
			SELECT
				u.question_id,
				COUNT(*)::int          AS attempts,
				SUM(u.correct)::int    AS correct,
				AVG(u.seconds)         AS avg_seconds,
				MAX(u.attempted_at)    AS last_attempted
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::float8[],
				$4::timestamptz[]
			) AS u (question_id, correct, seconds, attempted_at)
			JOIN questions q ON q.id = u.question_id
			GROUP BY u.question_id
		) AS t
		ON CONFLICT (question_id) DO UPDATE SET
			average_time_seconds = (s.average_time_seconds * s.total_attempts + EXCLUDED.average_time_seconds * EXCLUDED.total_attempts)
			                       / (s.total_attempts + EXCLUDED.total_attempts),
			total_attempts = s.total_attempts + EXCLUDED.total_attempts,
			correct_attempts = s.correct_attempts + EXCLUDED.correct_attempts,
			last_attempted = GREATEST(s.last_attempted, EXCLUDED.last_attempted)
	`

	if _, err := r.pool.Exec(ctx, query, questionIDs, corrects, seconds, attemptedAts); err != nil {
		return fmt.Errorf("bulk record question stats: %w", err)
	}
	return nil
}

// RecordOne folds a single outcome into question_stats.
func (r *QuestionStatsRepository) RecordOne(ctx context.Context, o model.QuestionOutcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO question_stats AS s (question_id, total_attempts, correct_attempts, average_time_seconds, last_attempted)
		 SELECT q.id, 1, $2, $3, $4 FROM questions q WHERE q.id = $1
		 ON CONFLICT (question_id) DO UPDATE SET
		     average_time_seconds = (s.average_time_seconds * s.total_attempts + EXCLUDED.average_time_seconds)
		                            / (s.total_attempts + 1),
		     total_attempts = s.total_attempts + 1,
		     correct_attempts = s.correct_attempts + EXCLUDED.correct_attempts,
		     last_attempted = GREATEST(s.last_attempted, EXCLUDED.last_attempted)`,
		o.QuestionID, boolToInt(o.Correct), o.SecondsSpent, o.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("record question stats: %w", err)
	}
	return nil
}

// Get returns the aggregate for one question.
func (r *QuestionStatsRepository) Get(ctx context.Context, questionID uuid.UUID) (*model.QuestionStats, error) {
	st := &model.QuestionStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT question_id, total_attempts, correct_attempts, average_time_seconds::float8, last_attempted
		 FROM question_stats WHERE question_id = $1`, questionID,
	).Scan(&st.QuestionID, &st.TotalAttempts, &st.CorrectAttempts, &st.AverageTimeSeconds, &st.LastAttempted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question stats: %w", err)
	}
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
