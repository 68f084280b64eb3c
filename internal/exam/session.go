package exam

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/certprep/certprep-backend/internal/model"
)

// Status is the canonical lifecycle state of an exam session. The same
// values are stored in the database.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Session is one timed attempt. Questions is a snapshot taken at creation and
// never changes length; Answers, Score, Passed and CompletedAt are frozen once
// the session is completed. Mutate it only through its methods.
type Session struct {
	ID            uuid.UUID
	Owner         model.Identity
	Provider      string
	Certification string
	Category      string
	Difficulty    model.Difficulty
	Mode          model.ExamMode
	Settings      model.ExamSettings
	// SourceExamID is set for remediation exams built from a previous attempt.
	SourceExamID *uuid.UUID

	Questions []model.Question
	Answers   map[uuid.UUID]Answer

	TimeLimitMinutes int
	TimeSpentMinutes int
	Status           Status

	PassingScore        float64
	Score               *float64
	Passed              *bool
	CorrectAnswers      int
	IncorrectAnswers    int
	UnansweredQuestions int

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSessionParams holds everything needed to build a fresh session.
type NewSessionParams struct {
	Owner            model.Identity
	Provider         string
	Certification    string
	Category         string
	Difficulty       model.Difficulty
	Mode             model.ExamMode
	Settings         model.ExamSettings
	Questions        []model.Question
	TimeLimitMinutes int
	PassingScore     float64
	SourceExamID     *uuid.UUID
}

// NewSession builds a not_started session owning a copy of the questions.
func NewSession(p NewSessionParams, now time.Time) (*Session, error) {
	if !p.Owner.Valid() {
		return nil, errors.New("exam owner is required")
	}
	if len(p.Questions) == 0 {
		return nil, ErrInsufficientData
	}
	if p.TimeLimitMinutes < 1 {
		return nil, errors.New("time limit must be at least one minute")
	}
	if p.PassingScore < 0 || p.PassingScore > 100 {
		return nil, errors.New("passing score must be within [0, 100]")
	}

	questions := make([]model.Question, len(p.Questions))
	for i := range p.Questions {
		questions[i] = cloneQuestion(p.Questions[i])
	}

	return &Session{
		ID:               uuid.New(),
		Owner:            p.Owner,
		Provider:         p.Provider,
		Certification:    p.Certification,
		Category:         p.Category,
		Difficulty:       p.Difficulty,
		Mode:             p.Mode,
		Settings:         p.Settings,
		SourceExamID:     p.SourceExamID,
		Questions:        questions,
		Answers:          make(map[uuid.UUID]Answer),
		TimeLimitMinutes: p.TimeLimitMinutes,
		Status:           StatusNotStarted,
		PassingScore:     p.PassingScore,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// BelongsTo reports whether the identity owns this session.
func (s *Session) BelongsTo(id model.Identity) bool {
	return s.Owner.Equal(id)
}

// Question returns the snapshot question with the given id.
func (s *Session) Question(id uuid.UUID) (*model.Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Start moves not_started -> in_progress.
func (s *Session) Start(now time.Time) error {
	if s.Status != StatusNotStarted {
		reason := ReasonAlreadyStarted
		if s.Status.Terminal() {
			reason = ReasonTerminal
		}
		return transitionErr("start", s.Status, reason)
	}
	s.Status = StatusInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	return nil
}

// Pause moves in_progress -> paused. The exam clock keeps running.
func (s *Session) Pause(now time.Time) error {
	if s.Status != StatusInProgress {
		return transitionErr("pause", s.Status, ReasonNotInProgress)
	}
	s.Status = StatusPaused
	s.UpdatedAt = now
	return nil
}

// Resume moves paused -> in_progress while time remains.
func (s *Session) Resume(now time.Time) error {
	if s.Status != StatusPaused {
		return transitionErr("resume", s.Status, ReasonNotPaused)
	}
	if s.remaining(now) <= 0 {
		return transitionErr("resume", s.Status, ReasonTimeExpired)
	}
	s.Status = StatusInProgress
	s.UpdatedAt = now
	return nil
}

// AnswerOutcome reports the effect of a single submission.
type AnswerOutcome struct {
	QuestionID   uuid.UUID `json:"question_id"`
	Answer       Answer    `json:"answer"`
	Correct      bool      `json:"-"`
	PartialScore float64   `json:"-"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// SubmitAnswer records (or replaces) the answer to one question. Callers must
// reject the call beforehand when IsTimeExpired reports true.
func (s *Session) SubmitAnswer(questionID uuid.UUID, a Answer, now time.Time) (*AnswerOutcome, error) {
	if s.Status != StatusInProgress {
		reason := ReasonNotInProgress
		if s.Status == StatusNotStarted {
			reason = ReasonNotStarted
		}
		return nil, transitionErr("answer", s.Status, reason)
	}

	q, ok := s.Question(questionID)
	if !ok {
		return nil, validationErr("question_id", "question %s is not part of this exam", questionID)
	}

	normalized, warnings, err := Normalize(q, a)
	if err != nil {
		return nil, err
	}

	if s.Answers == nil {
		s.Answers = make(map[uuid.UUID]Answer)
	}
	s.Answers[questionID] = normalized
	s.UpdatedAt = now

	return &AnswerOutcome{
		QuestionID:   questionID,
		Answer:       normalized,
		Correct:      IsCorrect(q, normalized),
		PartialScore: PartialScore(q, normalized),
		Warnings:     warnings,
	}, nil
}

// Complete moves in_progress -> completed, scoring the session and freezing
// the outcome. Unanswered questions count against the score.
func (s *Session) Complete(now time.Time) (*Results, error) {
	switch s.Status {
	case StatusInProgress:
	case StatusNotStarted:
		return nil, transitionErr("complete", s.Status, ReasonNotStarted)
	case StatusCompleted:
		return nil, transitionErr("complete", s.Status, ReasonAlreadyCompleted)
	case StatusCancelled:
		return nil, transitionErr("complete", s.Status, ReasonTerminal)
	default:
		return nil, transitionErr("complete", s.Status, ReasonNotInProgress)
	}

	s.TimeSpentMinutes = s.elapsedMinutes(now)
	results := Aggregate(s)

	score := results.Score
	passed := results.Passed
	s.Score = &score
	s.Passed = &passed
	s.CorrectAnswers = results.CorrectAnswers
	s.IncorrectAnswers = results.IncorrectAnswers
	s.UnansweredQuestions = results.UnansweredQuestions
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now

	results.Status = s.Status
	results.CompletedAt = s.CompletedAt
	return results, nil
}

// Cancel abandons a session that has not finished.
func (s *Session) Cancel(now time.Time) error {
	if s.Status.Terminal() {
		return transitionErr("cancel", s.Status, ReasonTerminal)
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now
	return nil
}

// Results returns the frozen outcome of a completed session.
func (s *Session) Results() (*Results, error) {
	if s.Status != StatusCompleted {
		return nil, transitionErr("review", s.Status, ReasonNotCompleted)
	}
	return Aggregate(s), nil
}

// IsTimeExpired is true while in progress once the time limit has elapsed.
func (s *Session) IsTimeExpired(now time.Time) bool {
	return s.Status == StatusInProgress && s.remaining(now) <= 0
}

// IsTimeExhausted is true for any running or paused session whose clock has
// run out. A paused session in this state can no longer be resumed or
// completed; it can only be cancelled or deleted.
func (s *Session) IsTimeExhausted(now time.Time) bool {
	switch s.Status {
	case StatusInProgress, StatusPaused:
		return s.remaining(now) <= 0
	}
	return false
}

// EnsureTimeRemaining rejects op once the exam clock has run out.
func (s *Session) EnsureTimeRemaining(op string, now time.Time) error {
	if s.IsTimeExpired(now) {
		return transitionErr(op, s.Status, ReasonTimeExpired)
	}
	return nil
}

// RemainingTime is the time left on the exam clock.
func (s *Session) RemainingTime(now time.Time) time.Duration {
	if s.Status.Terminal() {
		return 0
	}
	return max(0, s.remaining(now))
}

func (s *Session) limit() time.Duration {
	return time.Duration(s.TimeLimitMinutes) * time.Minute
}

func (s *Session) remaining(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return s.limit()
	}
	return s.limit() - now.Sub(*s.StartedAt)
}

// elapsedMinutes rounds the elapsed wall-clock time up to whole minutes and
// caps it at the time limit.
func (s *Session) elapsedMinutes(now time.Time) int {
	if s.StartedAt == nil {
		return 0
	}
	elapsed := now.Sub(*s.StartedAt)
	if elapsed <= 0 {
		return 0
	}
	minutes := int(math.Ceil(elapsed.Minutes()))
	return min(minutes, s.TimeLimitMinutes)
}

func cloneQuestion(q model.Question) model.Question {
	out := q
	out.Options = append([]model.Option(nil), q.Options...)
	out.CorrectAnswers = append([]int(nil), q.CorrectAnswers...)
	return out
}
