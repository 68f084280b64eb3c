package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionOutcome is one question's result in a completed exam, queued for
// the question statistics worker.
type QuestionOutcome struct {
	ExamID     uuid.UUID `json:"exam_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answered   bool      `json:"answered"`
	Correct    bool      `json:"correct"`
	// SecondsSpent is the exam's average time per question.
	SecondsSpent float64   `json:"seconds_spent"`
	AttemptedAt  time.Time `json:"attempted_at"`
	// Retries counts failed writes; the stats worker drops the outcome once
	// it reaches its retry cap.
	Retries int `json:"retries,omitempty"`
}

// QuestionStats is the aggregate row kept per question.
type QuestionStats struct {
	QuestionID         uuid.UUID  `json:"question_id"`
	TotalAttempts      int        `json:"total_attempts"`
	CorrectAttempts    int        `json:"correct_attempts"`
	AverageTimeSeconds float64    `json:"average_time_seconds"`
	LastAttempted      *time.Time `json:"last_attempted,omitempty"`
}
