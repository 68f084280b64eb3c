package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/exam"
	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/repository"
	"github.com/certprep/certprep-backend/internal/response"
)

// AnswerResult is returned after a submission. Correct and Explanation are
// only filled when the exam reveals correctness while running.
type AnswerResult struct {
	QuestionID        uuid.UUID   `json:"question_id"`
	Answer            exam.Answer `json:"answer"`
	Warnings          []string    `json:"warnings,omitempty"`
	Correct           *bool       `json:"correct,omitempty"`
	Explanation       string      `json:"explanation,omitempty"`
	AnsweredQuestions int         `json:"answered_questions"`
	TotalQuestions    int         `json:"total_questions"`
	RemainingSeconds  int64       `json:"remaining_seconds"`
}

// ExamService orchestrates the exam lifecycle on top of the session
// aggregate. Every mutation locks the exam row for the whole transaction.
type ExamService struct {
	questions QuestionSource
	store     ExamStore
	stats     StatsPublisher
	cfg       config.ExamConfig
	log       zerolog.Logger

	now     func() time.Time
	shuffle exam.Shuffler
}

// NewExamService creates a new ExamService. stats may be nil, which disables
// question statistics.
func NewExamService(
	questions QuestionSource,
	store ExamStore,
	stats StatsPublisher,
	cfg config.ExamConfig,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		questions: questions,
		store:     store,
		stats:     stats,
		cfg:       cfg,
		log:       log.With().Str("component", "exam_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		shuffle:   exam.RandomShuffler,
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Creation
// ────────────────────────────────────────────────────────────────────────────

// CreateExam draws questions for the requested certification and persists a
// new not_started session together with its question snapshot.
func (s *ExamService) CreateExam(ctx context.Context, owner model.Identity, req model.CreateExamRequest) (*exam.View, error) {
	if !owner.Valid() {
		return nil, &exam.ValidationError{Field: "owner", Reason: "an authenticated user or session is required"}
	}

	defaults, err := s.certificationDefaults(ctx, req.Provider, req.Certification)
	if err != nil {
		return nil, err
	}

	count := req.QuestionCount
	if count == 0 {
		count = min(defaults.DefaultQuestionCount, s.cfg.MaxQuestions)
	}
	if count < 1 || count > s.cfg.MaxQuestions {
		return nil, &exam.ValidationError{
			Field:  "question_count",
			Reason: fmt.Sprintf("must be between 1 and %d", s.cfg.MaxQuestions),
		}
	}

	timeLimit := req.TimeLimitMinutes
	if timeLimit == 0 {
		timeLimit = defaults.DefaultTimeLimitMinutes
	}

	mode := req.Mode
	if mode == "" {
		mode = model.ExamModePractice
	}
	if !mode.Valid() {
		return nil, &exam.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	if req.Difficulty != "" && !req.Difficulty.Valid() {
		return nil, &exam.ValidationError{Field: "difficulty", Reason: fmt.Sprintf("unknown difficulty %q", req.Difficulty)}
	}

	questions, err := s.questions.RandomQuestions(ctx, count, model.QuestionFilter{
		Provider:      req.Provider,
		Certification: req.Certification,
		Category:      req.Category,
		Difficulty:    req.Difficulty,
	})
	if err != nil {
		return nil, &exam.PersistenceError{Op: "load questions", Err: err}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions match %s/%s", exam.ErrInsufficientData, req.Provider, req.Certification)
	}
	if len(questions) < s.cfg.MinQuestions {
		return nil, fmt.Errorf("%w: %d questions match, at least %d required",
			exam.ErrInsufficientData, len(questions), s.cfg.MinQuestions)
	}

	settings := ResolveSettings(mode, req.Settings)
	sess, err := exam.NewSession(exam.NewSessionParams{
		Owner:            owner,
		Provider:         req.Provider,
		Certification:    req.Certification,
		Category:         req.Category,
		Difficulty:       req.Difficulty,
		Mode:             mode,
		Settings:         settings,
		Questions:        exam.BuildSnapshot(questions, settings, s.shuffle),
		TimeLimitMinutes: timeLimit,
		PassingScore:     defaults.PassingScore,
	}, s.now())
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, sess)
}

// CreateRemediationExam builds a practice exam from the questions the owner
// missed (answered incorrectly or left unanswered) in a completed exam.
func (s *ExamService) CreateRemediationExam(ctx context.Context, owner model.Identity, sourceID uuid.UUID) (*exam.View, error) {
	source, err := s.load(ctx, owner, sourceID, "remediate")
	if err != nil {
		return nil, err
	}

	results, err := source.Results()
	if err != nil {
		return nil, err
	}

	missed := make([]model.Question, 0, results.TotalQuestions-results.CorrectAnswers)
	for i, qr := range results.Questions {
		if !qr.Correct {
			missed = append(missed, source.Questions[i])
		}
	}
	if len(missed) < s.cfg.MinRemediationQuestions {
		return nil, fmt.Errorf("%w: %d missed questions, at least %d required",
			exam.ErrInsufficientData, len(missed), s.cfg.MinRemediationQuestions)
	}

	// Keep the per-question pace of the source exam.
	perQuestion := float64(source.TimeLimitMinutes) / float64(len(source.Questions))
	timeLimit := max(1, int(math.Ceil(perQuestion*float64(len(missed)))))

	settings := ResolveSettings(model.ExamModePractice, model.ExamSettingsRequest{})
	settings.RandomizeQuestions = true

	sess, err := exam.NewSession(exam.NewSessionParams{
		Owner:            owner,
		Provider:         source.Provider,
		Certification:    source.Certification,
		Category:         source.Category,
		Difficulty:       source.Difficulty,
		Mode:             model.ExamModePractice,
		Settings:         settings,
		Questions:        exam.BuildSnapshot(missed, settings, s.shuffle),
		TimeLimitMinutes: timeLimit,
		PassingScore:     source.PassingScore,
		SourceExamID:     &source.ID,
	}, s.now())
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, sess)
}

// ResolveSettings applies mode defaults to the requested overrides.
// Explanations are shown by default only in practice mode.
func ResolveSettings(mode model.ExamMode, req model.ExamSettingsRequest) model.ExamSettings {
	settings := model.ExamSettings{ShowExplanations: mode == model.ExamModePractice}
	if req.RandomizeQuestions != nil {
		settings.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.RandomizeAnswers != nil {
		settings.RandomizeAnswers = *req.RandomizeAnswers
	}
	if req.ShowExplanations != nil {
		settings.ShowExplanations = *req.ShowExplanations
	}
	return settings
}

func (s *ExamService) certificationDefaults(ctx context.Context, provider, code string) (model.Certification, error) {
	defaults := model.Certification{
		Provider:                provider,
		Code:                    code,
		DefaultQuestionCount:    s.cfg.DefaultQuestionCount,
		DefaultTimeLimitMinutes: s.cfg.DefaultTimeLimitMinutes,
		PassingScore:            s.cfg.DefaultPassingScore,
	}

	cert, err := s.questions.GetCertification(ctx, provider, code)
	switch {
	case err == nil:
		if cert.DefaultQuestionCount > 0 {
			defaults.DefaultQuestionCount = cert.DefaultQuestionCount
		}
		if cert.DefaultTimeLimitMinutes > 0 {
			defaults.DefaultTimeLimitMinutes = cert.DefaultTimeLimitMinutes
		}
		defaults.PassingScore = cert.PassingScore
		defaults.Name = cert.Name
		return defaults, nil
	case errors.Is(err, repository.ErrCertificationNotFound):
		return defaults, nil
	default:
		return defaults, &exam.PersistenceError{Op: "load certification", Err: err}
	}
}

func (s *ExamService) insert(ctx context.Context, sess *exam.Session) (*exam.View, error) {
	err := s.store.WithinTx(ctx, func(tx repository.ExamTx) error {
		return tx.InsertSession(ctx, sess)
	})
	if err != nil {
		return nil, s.classify("create", sess.ID, err)
	}

	s.log.Info().
		Str("exam_id", sess.ID.String()).
		Str("owner", sess.Owner.String()).
		Str("certification", sess.Provider+"/"+sess.Certification).
		Str("mode", string(sess.Mode)).
		Int("questions", len(sess.Questions)).
		Msg("Exam created")

	return sess.View(sess.CreatedAt), nil
}

// ────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ────────────────────────────────────────────────────────────────────────────

// StartExam moves the exam to in_progress and starts its clock.
func (s *ExamService) StartExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error) {
	return s.transition(ctx, owner, examID, "start", func(sess *exam.Session, now time.Time) error {
		return sess.Start(now)
	})
}

// PauseExam pauses a running exam that still has time left.
func (s *ExamService) PauseExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error) {
	return s.transition(ctx, owner, examID, "pause", func(sess *exam.Session, now time.Time) error {
		if err := sess.EnsureTimeRemaining("pause", now); err != nil {
			return err
		}
		return sess.Pause(now)
	})
}

// ResumeExam resumes a paused exam that still has time left.
func (s *ExamService) ResumeExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error) {
	return s.transition(ctx, owner, examID, "resume", func(sess *exam.Session, now time.Time) error {
		return sess.Resume(now)
	})
}

// CancelExam abandons an exam that has not finished.
func (s *ExamService) CancelExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error) {
	return s.transition(ctx, owner, examID, "cancel", func(sess *exam.Session, now time.Time) error {
		return sess.Cancel(now)
	})
}

// SubmitAnswer records or replaces the answer to one question.
func (s *ExamService) SubmitAnswer(ctx context.Context, owner model.Identity, examID, questionID uuid.UUID, a exam.Answer) (*AnswerResult, error) {
	var result *AnswerResult
	err := s.mutate(ctx, owner, examID, "answer", func(tx repository.ExamTx, sess *exam.Session, now time.Time) error {
		if err := sess.EnsureTimeRemaining("answer", now); err != nil {
			return err
		}
		out, err := sess.SubmitAnswer(questionID, a, now)
		if err != nil {
			return err
		}
		if err := tx.UpsertAnswer(ctx, sess.ID, questionID, out.Answer, out.Correct, out.PartialScore); err != nil {
			return err
		}
		if err := tx.SaveState(ctx, sess); err != nil {
			return err
		}

		result = &AnswerResult{
			QuestionID:        questionID,
			Answer:            out.Answer,
			Warnings:          out.Warnings,
			AnsweredQuestions: len(sess.Answers),
			TotalQuestions:    len(sess.Questions),
			RemainingSeconds:  int64(sess.RemainingTime(now) / time.Second),
		}
		if sess.RevealsCorrectness() {
			correct := out.Correct
			result.Correct = &correct
			if q, ok := sess.Question(questionID); ok {
				result.Explanation = q.Explanation
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteExam scores the exam and freezes its outcome. Completion is allowed
// after the time limit has passed.
func (s *ExamService) CompleteExam(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Results, error) {
	var results *exam.Results
	err := s.mutate(ctx, owner, examID, "complete", func(tx repository.ExamTx, sess *exam.Session, now time.Time) error {
		r, err := sess.Complete(now)
		if err != nil {
			return err
		}
		results = r
		return tx.SaveState(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("owner", owner.String()).
		Float64("score", results.Score).
		Bool("passed", results.Passed).
		Int("unanswered", results.UnansweredQuestions).
		Msg("Exam completed")

	s.publishOutcomes(ctx, results)
	return results, nil
}

// DeleteExam removes an owned exam regardless of its status.
func (s *ExamService) DeleteExam(ctx context.Context, owner model.Identity, examID uuid.UUID) error {
	err := s.mutate(ctx, owner, examID, "delete", func(tx repository.ExamTx, sess *exam.Session, _ time.Time) error {
		return tx.DeleteSession(ctx, sess.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("exam_id", examID.String()).Str("owner", owner.String()).Msg("Exam deleted")
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Queries
// ────────────────────────────────────────────────────────────────────────────

// GetExamByID returns the candidate view of an owned exam.
func (s *ExamService) GetExamByID(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.View, error) {
	sess, err := s.load(ctx, owner, examID, "get")
	if err != nil {
		return nil, err
	}
	return sess.View(s.now()), nil
}

// GetExamResults returns the scored review of a completed exam.
func (s *ExamService) GetExamResults(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Results, error) {
	sess, err := s.load(ctx, owner, examID, "results")
	if err != nil {
		return nil, err
	}
	return sess.Results()
}

// GetExamAnalysis returns strengths, weaknesses and recommendations for a
// completed exam.
func (s *ExamService) GetExamAnalysis(ctx context.Context, owner model.Identity, examID uuid.UUID) (*exam.Analysis, error) {
	results, err := s.GetExamResults(ctx, owner, examID)
	if err != nil {
		return nil, err
	}
	return exam.Analyze(results), nil
}

// ListExams returns a page of the owner's exams, newest first.
func (s *ExamService) ListExams(ctx context.Context, owner model.Identity, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	exams, total, err := s.store.ListByOwner(ctx, owner, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, &exam.PersistenceError{Op: "list exams", Err: err}
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func (s *ExamService) transition(ctx context.Context, owner model.Identity, examID uuid.UUID, op string, apply func(*exam.Session, time.Time) error) (*exam.View, error) {
	var view *exam.View
	err := s.mutate(ctx, owner, examID, op, func(tx repository.ExamTx, sess *exam.Session, now time.Time) error {
		if err := apply(sess, now); err != nil {
			return err
		}
		if err := tx.SaveState(ctx, sess); err != nil {
			return err
		}
		view = sess.View(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("exam_id", examID.String()).Str("op", op).Str("status", string(view.Status)).Msg("Exam transition")
	return view, nil
}

// mutate locks the exam row, checks ownership and runs fn in one
// transaction. Any error rolls the transaction back.
func (s *ExamService) mutate(ctx context.Context, owner model.Identity, examID uuid.UUID, op string, fn func(repository.ExamTx, *exam.Session, time.Time) error) error {
	err := s.store.WithinTx(ctx, func(tx repository.ExamTx) error {
		sess, err := tx.LockSession(ctx, examID)
		if err != nil {
			return err
		}
		if err := s.checkOwner(sess, owner, op); err != nil {
			return err
		}
		return fn(tx, sess, s.now())
	})
	if err != nil {
		return s.classify(op, examID, err)
	}
	return nil
}

func (s *ExamService) load(ctx context.Context, owner model.Identity, examID uuid.UUID, op string) (*exam.Session, error) {
	var sess *exam.Session
	err := s.store.WithinTx(ctx, func(tx repository.ExamTx) error {
		loaded, err := tx.GetSession(ctx, examID)
		if err != nil {
			return err
		}
		if err := s.checkOwner(loaded, owner, op); err != nil {
			return err
		}
		sess = loaded
		return nil
	})
	if err != nil {
		return nil, s.classify(op, examID, err)
	}
	return sess, nil
}

// checkOwner hides foreign exams behind ErrNotFound.
func (s *ExamService) checkOwner(sess *exam.Session, owner model.Identity, op string) error {
	if sess.BelongsTo(owner) {
		return nil
	}
	s.log.Warn().
		Str("exam_id", sess.ID.String()).
		Str("identity", owner.String()).
		Str("op", op).
		Msg("Exam access denied: owner mismatch")
	return exam.ErrNotFound
}

// classify passes domain errors through and wraps everything else as a
// persistence failure of the exam.
func (s *ExamService) classify(op string, examID uuid.UUID, err error) error {
	for _, kind := range []error{
		exam.ErrNotFound,
		exam.ErrInvalidTransition,
		exam.ErrValidation,
		exam.ErrInsufficientData,
		exam.ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	s.log.Error().Err(err).Str("exam_id", examID.String()).Str("op", op).Msg("Exam persistence failure")
	return &exam.PersistenceError{Op: op, ExamID: examID, Err: err}
}

// publishOutcomes feeds the question statistics pipeline. Failures are
// logged and never change the completion result.
func (s *ExamService) publishOutcomes(ctx context.Context, r *exam.Results) {
	if s.stats == nil || r.TotalQuestions == 0 {
		return
	}

	perQuestion := float64(r.TimeSpentMinutes*60) / float64(r.TotalQuestions)
	attemptedAt := s.now()
	if r.CompletedAt != nil {
		attemptedAt = *r.CompletedAt
	}

	outcomes := make([]model.QuestionOutcome, 0, len(r.Questions))
	for _, qr := range r.Questions {
		if !qr.Answered {
			continue
		}
		outcomes = append(outcomes, model.QuestionOutcome{
			ExamID:       r.ExamID,
			QuestionID:   qr.QuestionID,
			Answered:     true,
			Correct:      qr.Correct,
			SecondsSpent: perQuestion,
			AttemptedAt:  attemptedAt,
		})
	}
	if len(outcomes) == 0 {
		return
	}

	if err := s.stats.Publish(ctx, outcomes); err != nil {
		s.log.Warn().Err(err).Str("exam_id", r.ExamID.String()).Msg("Failed to publish question outcomes")
	}
}
