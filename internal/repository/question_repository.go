package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certprep/certprep-backend/internal/model"
)

var (
	ErrCertificationNotFound = errors.New("certification not found")
	ErrQuestionNotFound      = errors.New("question not found")
)

// QuestionRepository handles question-bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// RandomQuestions returns up to count active questions matching the filter
// in random order. It returns fewer when the pool is smaller; it never pads.
func (r *QuestionRepository) RandomQuestions(ctx context.Context, count int, f model.QuestionFilter) ([]model.Question, error) {
	query := `
		SELECT q.id, q.question_text, q.explanation, q.provider, q.certification, q.category,
		       q.difficulty, q.question_type, q.expected_answer_count, q.points, q.correct_answers,
		       COALESCE(
		           (SELECT json_agg(json_build_object('label', o.label, 'text', o.option_text) ORDER BY o.option_order)
		            FROM question_options o WHERE o.question_id = q.id),
		           '[]'::json
		       ) AS options
		FROM questions q
		WHERE q.is_active AND q.provider = $1 AND q.certification = $2`
	args := []any{f.Provider, f.Certification}

	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND q.category = $%d", len(args))
	}
	if f.Difficulty != "" {
		args = append(args, string(f.Difficulty))
		query += fmt.Sprintf(" AND q.difficulty = $%d", len(args))
	}
	if len(f.ExcludeIDs) > 0 {
		args = append(args, f.ExcludeIDs)
		query += fmt.Sprintf(" AND q.id <> ALL($%d::uuid[])", len(args))
	}

	args = append(args, count)
	query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query random questions: %w", err)
	}
	defer rows.Close()

	questions := make([]model.Question, 0, count)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(
			&q.ID, &q.Text, &q.Explanation, &q.Provider, &q.Certification, &q.Category,
			&q.Difficulty, &q.Type, &q.ExpectedAnswerCount, &q.Points, &q.CorrectAnswers, &q.Options,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetCertification returns exam defaults for a provider certification.
func (r *QuestionRepository) GetCertification(ctx context.Context, provider, code string) (*model.Certification, error) {
	c := &model.Certification{}
	err := r.pool.QueryRow(ctx,
		`SELECT provider, code, name, default_question_count, default_time_limit_minutes, passing_score
		 FROM certifications WHERE provider = $1 AND code = $2`, provider, code,
	).Scan(&c.Provider, &c.Code, &c.Name, &c.DefaultQuestionCount, &c.DefaultTimeLimitMinutes, &c.PassingScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificationNotFound
		}
		return nil, fmt.Errorf("get certification: %w", err)
	}
	return c, nil
}

// UpsertImported stores an imported question and its options in one
// transaction, keyed by content hash. It also makes sure the certification
// and statistics rows exist. inserted is false when an existing question was
// updated.
func (r *QuestionRepository) UpsertImported(ctx context.Context, iq *model.ImportedQuestion) (id uuid.UUID, inserted bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := &iq.Question

	if _, err := tx.Exec(ctx,
		`INSERT INTO certifications (provider, code, name) VALUES ($1, $2, $3)
		 ON CONFLICT (provider, code) DO NOTHING`,
		q.Provider, q.Certification, q.Certification,
	); err != nil {
		return uuid.Nil, false, fmt.Errorf("ensure certification: %w", err)
	}

	tags := iq.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := iq.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	// xmax is zero only for freshly inserted tuples.
	err = tx.QueryRow(ctx,
		`INSERT INTO questions (
			content_hash, question_text, explanation, provider, certification, category, difficulty,
			question_type, expected_answer_count, points, correct_answers, tags, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (content_hash) DO UPDATE SET
			explanation = EXCLUDED.explanation,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			question_type = EXCLUDED.question_type,
			expected_answer_count = EXCLUDED.expected_answer_count,
			correct_answers = EXCLUDED.correct_answers,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`,
		iq.ContentHash, q.Text, q.Explanation, q.Provider, q.Certification, q.Category, string(q.Difficulty),
		string(q.Type), q.Expected(), max(q.Points, 1), q.CorrectAnswers, tags, metadata,
	).Scan(&id, &inserted)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert question: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM question_options WHERE question_id = $1`, id); err != nil {
		return uuid.Nil, false, fmt.Errorf("clear question options: %w", err)
	}

	correct := make(map[int]bool, len(q.CorrectAnswers))
	for _, idx := range q.CorrectAnswers {
		correct[idx] = true
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"question_options"},
		[]string{"question_id", "option_order", "label", "option_text", "is_correct"},
		pgx.CopyFromSlice(len(q.Options), func(i int) ([]any, error) {
			o := q.Options[i]
			return []any{id, i, o.Label, o.Text, correct[i]}, nil
		}),
	)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("insert question options: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO question_stats (question_id) VALUES ($1) ON CONFLICT (question_id) DO NOTHING`, id,
	); err != nil {
		return uuid.Nil, false, fmt.Errorf("init question stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, false, fmt.Errorf("commit import tx: %w", err)
	}
	return id, inserted, nil
}
