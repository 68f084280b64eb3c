package exam

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/certprep/certprep-backend/internal/model"
)

// Bucket is a total/correct/percentage breakdown for one category or
// difficulty.
type Bucket struct {
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
	Percentage float64 `json:"percentage"`
}

// TypeBucket is the breakdown for one question type.
type TypeBucket struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// TypeBreakdown splits results by multi-select vs single-choice questions.
// True/false questions count as single-choice.
type TypeBreakdown struct {
	MultiSelect  TypeBucket `json:"multi_select"`
	SingleChoice TypeBucket `json:"single_choice"`
}

// QuestionResult is the per-question review detail.
type QuestionResult struct {
	QuestionID     uuid.UUID          `json:"question_id"`
	OrderNum       int                `json:"order_num"`
	Text           string             `json:"text"`
	Options        []model.Option     `json:"options"`
	Category       string             `json:"category"`
	Difficulty     model.Difficulty   `json:"difficulty"`
	Type           model.QuestionType `json:"question_type"`
	Answer         *Answer            `json:"answer"`
	Answered       bool               `json:"answered"`
	Correct        bool               `json:"correct"`
	PartialScore   float64            `json:"partial_score"`
	Selection      OptionBreakdown    `json:"option_breakdown"`
	Explanation    string             `json:"explanation,omitempty"`
	CorrectAnswers []int              `json:"correct_answers"`
}

// Results is the scored outcome of a session.
type Results struct {
	ExamID              uuid.UUID                   `json:"exam_id"`
	Status              Status                      `json:"status"`
	TotalQuestions      int                         `json:"total_questions"`
	CorrectAnswers      int                         `json:"correct_answers"`
	IncorrectAnswers    int                         `json:"incorrect_answers"`
	UnansweredQuestions int                         `json:"unanswered_questions"`
	Score               float64                     `json:"score"`
	PassingScore        float64                     `json:"passing_score"`
	Passed              bool                        `json:"passed"`
	TimeLimitMinutes    int                         `json:"time_limit"`
	TimeSpentMinutes    int                         `json:"time_spent"`
	Efficiency          float64                     `json:"efficiency"`
	Categories          map[string]Bucket           `json:"category_breakdown"`
	Difficulties        map[model.Difficulty]Bucket `json:"difficulty_breakdown"`
	Types               TypeBreakdown               `json:"question_type_breakdown"`
	Questions           []QuestionResult            `json:"questions"`
	CompletedAt         *time.Time                  `json:"completed_at,omitempty"`
}

// Aggregate scores every question of the session in a single pass. It is
// pure: the session is not modified.
func Aggregate(s *Session) *Results {
	r := &Results{
		ExamID:           s.ID,
		Status:           s.Status,
		TotalQuestions:   len(s.Questions),
		PassingScore:     s.PassingScore,
		TimeLimitMinutes: s.TimeLimitMinutes,
		TimeSpentMinutes: s.TimeSpentMinutes,
		Categories:       make(map[string]Bucket),
		Difficulties:     make(map[model.Difficulty]Bucket, len(model.Difficulties)),
		Questions:        make([]QuestionResult, 0, len(s.Questions)),
		CompletedAt:      s.CompletedAt,
	}
	for _, d := range model.Difficulties {
		r.Difficulties[d] = Bucket{}
	}

	for i := range s.Questions {
		q := &s.Questions[i]
		a, answered := s.Answers[q.ID]
		answered = answered && !a.IsZero()
		correct := answered && IsCorrect(q, a)

		switch {
		case correct:
			r.CorrectAnswers++
		case answered:
			r.IncorrectAnswers++
		default:
			r.UnansweredQuestions++
		}

		cat := r.Categories[q.Category]
		cat.Total++
		if correct {
			cat.Correct++
		}
		r.Categories[q.Category] = cat

		if q.Difficulty.Valid() {
			d := r.Difficulties[q.Difficulty]
			d.Total++
			if correct {
				d.Correct++
			}
			r.Difficulties[q.Difficulty] = d
		}

		tb := &r.Types.SingleChoice
		if q.IsMultiSelect() {
			tb = &r.Types.MultiSelect
		}
		tb.Total++
		switch {
		case correct:
			tb.Correct++
		case answered:
			tb.Incorrect++
		default:
			tb.Unanswered++
		}

		qr := QuestionResult{
			QuestionID:     q.ID,
			OrderNum:       i + 1,
			Text:           q.Text,
			Options:        q.Options,
			Category:       q.Category,
			Difficulty:     q.Difficulty,
			Type:           q.Type,
			Answered:       answered,
			Correct:        correct,
			Selection:      Breakdown(q, a),
			CorrectAnswers: dedupSorted(q.CorrectAnswers),
		}
		if answered {
			qa := a
			qr.Answer = &qa
			qr.PartialScore = PartialScore(q, a)
		}
		if s.Settings.ShowExplanations {
			qr.Explanation = q.Explanation
		}
		r.Questions = append(r.Questions, qr)
	}

	for name, b := range r.Categories {
		b.Percentage = percentage(b.Correct, b.Total)
		r.Categories[name] = b
	}
	for d, b := range r.Difficulties {
		b.Percentage = percentage(b.Correct, b.Total)
		r.Difficulties[d] = b
	}

	r.Score = percentage(r.CorrectAnswers, r.TotalQuestions)
	r.Passed = r.Score >= s.PassingScore
	if s.TimeSpentMinutes > 0 {
		r.Efficiency = round2(float64(r.CorrectAnswers) / float64(s.TimeSpentMinutes))
	}
	return r
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
