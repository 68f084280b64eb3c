package exam

import (
	"time"

	"github.com/google/uuid"

	"github.com/certprep/certprep-backend/internal/model"
)

// View is the candidate-facing projection of a session. Answer keys and
// explanations are never included.
type View struct {
	ID                  uuid.UUID                    `json:"id"`
	Provider            string                       `json:"provider"`
	Certification       string                       `json:"certification"`
	Category            string                       `json:"category,omitempty"`
	Difficulty          model.Difficulty             `json:"difficulty,omitempty"`
	Mode                model.ExamMode               `json:"mode"`
	Status              Status                       `json:"status"`
	Settings            model.ExamSettings           `json:"settings"`
	SourceExamID        *uuid.UUID                   `json:"source_exam_id,omitempty"`
	TotalQuestions      int                          `json:"total_questions"`
	AnsweredQuestions   int                          `json:"answered_questions"`
	TimeLimitMinutes    int                          `json:"time_limit"`
	TimeSpentMinutes    int                          `json:"time_spent"`
	RemainingSeconds    int64                        `json:"remaining_seconds"`
	TimeExpired         bool                         `json:"time_expired"`
	TimeExhausted       bool                         `json:"time_exhausted"`
	PassingScore        float64                      `json:"passing_score"`
	Score               *float64                     `json:"score,omitempty"`
	Passed              *bool                        `json:"passed,omitempty"`
	CorrectAnswers      *int                         `json:"correct_answers,omitempty"`
	IncorrectAnswers    *int                         `json:"incorrect_answers,omitempty"`
	UnansweredQuestions *int                         `json:"unanswered_questions,omitempty"`
	Questions           []model.QuestionForCandidate `json:"questions"`
	Answers             map[uuid.UUID]Answer         `json:"answers"`
	StartedAt           *time.Time                   `json:"started_at,omitempty"`
	CompletedAt         *time.Time                   `json:"completed_at,omitempty"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

// View projects the session for its owner at the given instant.
func (s *Session) View(now time.Time) *View {
	v := &View{
		ID:                s.ID,
		Provider:          s.Provider,
		Certification:     s.Certification,
		Category:          s.Category,
		Difficulty:        s.Difficulty,
		Mode:              s.Mode,
		Status:            s.Status,
		Settings:          s.Settings,
		SourceExamID:      s.SourceExamID,
		TotalQuestions:    len(s.Questions),
		AnsweredQuestions: len(s.Answers),
		TimeLimitMinutes:  s.TimeLimitMinutes,
		TimeSpentMinutes:  s.TimeSpentMinutes,
		RemainingSeconds:  int64(s.RemainingTime(now) / time.Second),
		TimeExpired:       s.IsTimeExpired(now),
		TimeExhausted:     s.IsTimeExhausted(now),
		PassingScore:      s.PassingScore,
		Score:             s.Score,
		Passed:            s.Passed,
		Questions:         make([]model.QuestionForCandidate, 0, len(s.Questions)),
		Answers:           make(map[uuid.UUID]Answer, len(s.Answers)),
		StartedAt:         s.StartedAt,
		CompletedAt:       s.CompletedAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.Status == StatusCompleted {
		v.CorrectAnswers = &s.CorrectAnswers
		v.IncorrectAnswers = &s.IncorrectAnswers
		v.UnansweredQuestions = &s.UnansweredQuestions
	}

	for i := range s.Questions {
		q := &s.Questions[i]
		v.Questions = append(v.Questions, model.QuestionForCandidate{
			ID:                  q.ID,
			Text:                q.Text,
			Options:             q.Options,
			Category:            q.Category,
			Difficulty:          q.Difficulty,
			Type:                q.Type,
			ExpectedAnswerCount: q.Expected(),
			OrderNum:            i + 1,
		})
	}
	for id, a := range s.Answers {
		v.Answers[id] = a
	}
	return v
}

// RevealsCorrectness reports whether per-answer correctness may be returned
// to the candidate while the exam is still running.
func (s *Session) RevealsCorrectness() bool {
	return s.Settings.ShowExplanations && s.Mode == model.ExamModePractice
}
