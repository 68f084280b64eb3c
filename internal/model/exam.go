package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamMode enumerates how an exam is presented to the candidate.
type ExamMode string

const (
	ExamModePractice   ExamMode = "practice"
	ExamModeRealistic  ExamMode = "realistic"
	ExamModeTimed      ExamMode = "timed"
	ExamModeSimulation ExamMode = "simulation"
	ExamModeReview     ExamMode = "review"
)

// ExamModes lists every accepted mode.
var ExamModes = []ExamMode{ExamModePractice, ExamModeRealistic, ExamModeTimed, ExamModeSimulation, ExamModeReview}

// Valid reports whether m is a known mode.
func (m ExamMode) Valid() bool {
	for _, known := range ExamModes {
		if m == known {
			return true
		}
	}
	return false
}

// ExamSettings are display and randomization flags fixed at creation.
type ExamSettings struct {
	RandomizeQuestions bool `json:"randomize_questions"`
	RandomizeAnswers   bool `json:"randomize_answers"`
	ShowExplanations   bool `json:"show_explanations"`
}

// ExamSettingsRequest carries optional overrides; nil keeps the mode default.
type ExamSettingsRequest struct {
	RandomizeQuestions *bool `json:"randomize_questions"`
	RandomizeAnswers   *bool `json:"randomize_answers"`
	ShowExplanations   *bool `json:"show_explanations"`
}

// CreateExamRequest is the payload for creating a practice exam.
type CreateExamRequest struct {
	Provider         string              `json:"provider" binding:"required,min=1,max=50"`
	Certification    string              `json:"certification" binding:"required,min=1,max=50"`
	Category         string              `json:"category" binding:"omitempty,max=100"`
	Difficulty       Difficulty          `json:"difficulty" binding:"omitempty,difficulty"`
	QuestionCount    int                 `json:"question_count" binding:"omitempty,min=1,max=500"`
	TimeLimitMinutes int                 `json:"time_limit" binding:"omitempty,min=1,max=600"`
	Mode             ExamMode            `json:"mode" binding:"omitempty,exam_mode"`
	Settings         ExamSettingsRequest `json:"settings"`
}

// SubmitAnswerRequest carries either a bare option index or a list of indices.
type SubmitAnswerRequest struct {
	Answer json.RawMessage `json:"answer" binding:"required"`
}

// ExamSummary is the list view of an exam.
type ExamSummary struct {
	ID               uuid.UUID  `json:"id"`
	Provider         string     `json:"provider"`
	Certification    string     `json:"certification"`
	Mode             ExamMode   `json:"mode"`
	Status           string     `json:"status"`
	TotalQuestions   int        `json:"total_questions"`
	TimeLimitMinutes int        `json:"time_limit"`
	Score            *float64   `json:"score,omitempty"`
	Passed           *bool      `json:"passed,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
