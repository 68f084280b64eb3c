package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certprep/certprep-backend/internal/exam"
	"github.com/certprep/certprep-backend/internal/model"
)

// ExamTx is the handle passed to WithinTx. Every call runs inside the same
// database transaction.
type ExamTx interface {
	// InsertSession writes the exam row and its question snapshot.
	InsertSession(ctx context.Context, s *exam.Session) error
	// LockSession loads the session and holds a row lock until commit.
	LockSession(ctx context.Context, id uuid.UUID) (*exam.Session, error)
	// GetSession loads the session without locking.
	GetSession(ctx context.Context, id uuid.UUID) (*exam.Session, error)
	// SaveState persists status, timing and score fields.
	SaveState(ctx context.Context, s *exam.Session) error
	// UpsertAnswer records the answer to one question, replacing any earlier one.
	UpsertAnswer(ctx context.Context, examID, questionID uuid.UUID, a exam.Answer, correct bool, partial float64) error
	// DeleteSession removes the exam together with its questions and answers.
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// ExamRepository handles exam session persistence.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// WithinTx runs fn in a single transaction. It commits when fn returns nil
// and rolls back otherwise.
func (r *ExamRepository) WithinTx(ctx context.Context, fn func(tx ExamTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin exam tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&examTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit exam tx: %w", err)
	}
	return nil
}

// ListByOwner returns a page of the owner's exams, newest first, and the
// total count.
func (r *ExamRepository) ListByOwner(ctx context.Context, owner model.Identity, limit, offset int) ([]model.ExamSummary, int, error) {
	userID, sessionID := owner.Columns()

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams
		 WHERE user_id IS NOT DISTINCT FROM $1 AND session_id IS NOT DISTINCT FROM $2`,
		userID, sessionID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, provider, certification, mode, status, total_questions, time_limit_minutes,
		        score, passed, created_at, completed_at
		 FROM exams
		 WHERE user_id IS NOT DISTINCT FROM $1 AND session_id IS NOT DISTINCT FROM $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, sessionID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	exams := make([]model.ExamSummary, 0, limit)
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(
			&e.ID, &e.Provider, &e.Certification, &e.Mode, &e.Status, &e.TotalQuestions,
			&e.TimeLimitMinutes, &e.Score, &e.Passed, &e.CreatedAt, &e.CompletedAt,
		); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

type examTx struct {
	tx pgx.Tx
}

func (t *examTx) InsertSession(ctx context.Context, s *exam.Session) error {
	userID, sessionID := s.Owner.Columns()

	_, err := t.tx.Exec(ctx,
		`INSERT INTO exams (
			id, user_id, session_id, provider, certification, category, difficulty, mode, settings,
			source_exam_id, status, total_questions, time_limit_minutes, passing_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.ID, userID, sessionID, s.Provider, s.Certification, s.Category, string(s.Difficulty), string(s.Mode),
		s.Settings, s.SourceExamID, string(s.Status), len(s.Questions), s.TimeLimitMinutes, s.PassingScore,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	_, err = t.tx.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"exam_id", "question_id", "order_num", "snapshot"},
		pgx.CopyFromSlice(len(s.Questions), func(i int) ([]any, error) {
			q := s.Questions[i]
			return []any{s.ID, q.ID, i + 1, q}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert exam questions: %w", err)
	}
	return nil
}

func (t *examTx) LockSession(ctx context.Context, id uuid.UUID) (*exam.Session, error) {
	return t.load(ctx, id, true)
}

func (t *examTx) GetSession(ctx context.Context, id uuid.UUID) (*exam.Session, error) {
	return t.load(ctx, id, false)
}

func (t *examTx) load(ctx context.Context, id uuid.UUID, lock bool) (*exam.Session, error) {
	query := `SELECT id, user_id, session_id, provider, certification, category, difficulty, mode, settings,
	                 source_exam_id, status, time_limit_minutes, time_spent_minutes, passing_score, score, passed,
	                 correct_answers, incorrect_answers, unanswered_questions,
	                 started_at, completed_at, created_at, updated_at
	          FROM exams WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		s         exam.Session
		userID    *int64
		sessionID *string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&s.ID, &userID, &sessionID, &s.Provider, &s.Certification, &s.Category, &s.Difficulty, &s.Mode,
		&s.Settings, &s.SourceExamID, &s.Status, &s.TimeLimitMinutes, &s.TimeSpentMinutes, &s.PassingScore,
		&s.Score, &s.Passed, &s.CorrectAnswers, &s.IncorrectAnswers, &s.UnansweredQuestions,
		&s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exam.ErrNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	s.Owner = model.IdentityFromColumns(userID, sessionID)

	questions, err := t.loadQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Questions = questions

	answers, err := t.loadAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Answers = answers

	return &s, nil
}

func (t *examTx) loadQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT snapshot FROM exam_questions WHERE exam_id = $1 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, fmt.Errorf("load exam questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan exam question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (t *examTx) loadAnswers(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]exam.Answer, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT question_id, selected, is_multi FROM exam_answers WHERE exam_id = $1`, examID,
	)
	if err != nil {
		return nil, fmt.Errorf("load exam answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]exam.Answer)
	for rows.Next() {
		var (
			qid      uuid.UUID
			selected []int
			multi    bool
		)
		if err := rows.Scan(&qid, &selected, &multi); err != nil {
			return nil, fmt.Errorf("scan exam answer: %w", err)
		}
		if len(selected) == 0 {
			continue
		}
		if multi {
			answers[qid] = exam.Multi(selected...)
		} else {
			answers[qid] = exam.Single(selected[0])
		}
	}
	return answers, rows.Err()
}

func (t *examTx) SaveState(ctx context.Context, s *exam.Session) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE exams
		 SET status = $2, time_spent_minutes = $3, score = $4, passed = $5,
		     correct_answers = $6, incorrect_answers = $7, unanswered_questions = $8,
		     started_at = $9, completed_at = $10, updated_at = $11
		 WHERE id = $1`,
		s.ID, string(s.Status), s.TimeSpentMinutes, s.Score, s.Passed,
		s.CorrectAnswers, s.IncorrectAnswers, s.UnansweredQuestions,
		s.StartedAt, s.CompletedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save exam state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (t *examTx) UpsertAnswer(ctx context.Context, examID, questionID uuid.UUID, a exam.Answer, correct bool, partial float64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO exam_answers (exam_id, question_id, selected, is_multi, is_correct, partial_score, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (exam_id, question_id) DO UPDATE
		 SET selected = EXCLUDED.selected,
		     is_multi = EXCLUDED.is_multi,
		     is_correct = EXCLUDED.is_correct,
		     partial_score = EXCLUDED.partial_score,
		     answered_at = EXCLUDED.answered_at`,
		examID, questionID, a.Indices(), a.IsMulti(), correct, partial,
	)
	if err != nil {
		return fmt.Errorf("upsert exam answer: %w", err)
	}
	return nil
}

func (t *examTx) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	return nil
}
