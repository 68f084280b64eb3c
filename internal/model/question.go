package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the answer shapes a question accepts.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiSelect  QuestionType = "multi_select"
	QuestionTypeTrueFalse    QuestionType = "true_false"
)

// Difficulty enumerates the fixed difficulty buckets.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists every difficulty bucket in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

// Valid reports whether d is one of the known buckets.
func (d Difficulty) Valid() bool {
	for _, known := range Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

// Option is a single selectable answer of a question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is a sanitized question-bank item. CorrectAnswers holds zero-based
// option indices and is never sent to clients while an exam is running.
type Question struct {
	ID                  uuid.UUID    `json:"id"`
	Text                string       `json:"text"`
	Explanation         string       `json:"explanation,omitempty"`
	Options             []Option     `json:"options"`
	CorrectAnswers      []int        `json:"correct_answers"`
	Provider            string       `json:"provider"`
	Certification       string       `json:"certification"`
	Category            string       `json:"category"`
	Difficulty          Difficulty   `json:"difficulty"`
	Type                QuestionType `json:"question_type"`
	ExpectedAnswerCount int          `json:"expected_answer_count"`
	Points              int          `json:"points"`
}

// IsMultiSelect reports whether the question expects a set of answers.
func (q *Question) IsMultiSelect() bool {
	return q.Type == QuestionTypeMultiSelect
}

// Expected returns the number of selections the question expects (at least 1).
func (q *Question) Expected() int {
	if q.IsMultiSelect() {
		if q.ExpectedAnswerCount > 0 {
			return q.ExpectedAnswerCount
		}
		if n := len(q.CorrectAnswers); n > 0 {
			return n
		}
	}
	return 1
}

// QuestionFilter narrows the question pool used to build an exam.
type QuestionFilter struct {
	Provider      string
	Certification string
	Category      string
	Difficulty    Difficulty
	// ExcludeIDs removes specific questions from the pool.
	ExcludeIDs []uuid.UUID
}

// QuestionForCandidate is a question as shown during an attempt (no answer key).
type QuestionForCandidate struct {
	ID                  uuid.UUID    `json:"id"`
	Text                string       `json:"text"`
	Options             []Option     `json:"options"`
	Category            string       `json:"category"`
	Difficulty          Difficulty   `json:"difficulty"`
	Type                QuestionType `json:"question_type"`
	ExpectedAnswerCount int          `json:"expected_answer_count"`
	OrderNum            int          `json:"order_num"`
}

// ImportedQuestion is a question-bank item produced by the importer, keyed by
// the hash of its normalized content.
type ImportedQuestion struct {
	ContentHash string
	Question    Question
	Tags        []string
	Metadata    map[string]any
}
