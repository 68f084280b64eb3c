package exam

import (
	"fmt"
	"sort"

	"github.com/certprep/certprep-backend/internal/model"
)

// Analysis thresholds, in percent.
const (
	StrengthThreshold           = 80.0
	WeakCategoryThreshold       = 60.0
	WeakDifficultyThreshold     = 50.0
	WeakMultiSelectThreshold    = 60.0
	fastPaceCorrectPerMinute    = 2.0
	slowPaceCorrectPerMinute    = 0.5
	rushedTimeShare             = 0.25
	nearlyOutOfTimeShare        = 0.95
	passMarginForRecommendation = 10.0
)

// Insight is one strength or weakness.
type Insight struct {
	Area       string  `json:"area"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
}

// Analysis is qualitative feedback derived from completed results. Nothing
// in it is persisted.
type Analysis struct {
	ExamID          string    `json:"exam_id"`
	Score           float64   `json:"score"`
	Passed          bool      `json:"passed"`
	Strengths       []Insight `json:"strengths"`
	Weaknesses      []Insight `json:"weaknesses"`
	Pacing          []string  `json:"pacing"`
	Recommendations []string  `json:"recommendations"`
}

// Analyze derives strengths, weaknesses, pacing hints and recommendations.
func Analyze(r *Results) *Analysis {
	a := &Analysis{
		ExamID:          r.ExamID.String(),
		Score:           r.Score,
		Passed:          r.Passed,
		Strengths:       []Insight{},
		Weaknesses:      []Insight{},
		Pacing:          []string{},
		Recommendations: []string{},
	}

	categories := make([]string, 0, len(r.Categories))
	for name := range r.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	for _, name := range categories {
		b := r.Categories[name]
		if b.Total == 0 {
			continue
		}
		in := Insight{Area: "category", Name: name, Percentage: b.Percentage, Total: b.Total, Correct: b.Correct}
		switch {
		case b.Percentage >= StrengthThreshold:
			a.Strengths = append(a.Strengths, in)
		case b.Percentage < WeakCategoryThreshold:
			a.Weaknesses = append(a.Weaknesses, in)
		}
	}

	for _, d := range model.Difficulties {
		b := r.Difficulties[d]
		if b.Total > 0 && b.Percentage < WeakDifficultyThreshold {
			a.Weaknesses = append(a.Weaknesses, Insight{
				Area: "difficulty", Name: string(d), Percentage: b.Percentage, Total: b.Total, Correct: b.Correct,
			})
		}
	}

	if ms := r.Types.MultiSelect; ms.Total > 0 {
		pct := percentage(ms.Correct, ms.Total)
		if pct < WeakMultiSelectThreshold {
			a.Weaknesses = append(a.Weaknesses, Insight{
				Area: "question_type", Name: string(model.QuestionTypeMultiSelect), Percentage: pct, Total: ms.Total, Correct: ms.Correct,
			})
		}
	}

	a.Pacing = pacing(r)
	a.Recommendations = recommendations(r, a)
	return a
}

func pacing(r *Results) []string {
	hints := []string{}
	if r.TimeLimitMinutes <= 0 || r.TotalQuestions == 0 {
		return hints
	}
	share := float64(r.TimeSpentMinutes) / float64(r.TimeLimitMinutes)

	switch {
	case r.TimeSpentMinutes == 0:
		hints = append(hints, "No time was recorded for this attempt.")
	case r.Efficiency >= fastPaceCorrectPerMinute:
		hints = append(hints, fmt.Sprintf("Fast and accurate: %.2f correct answers per minute.", r.Efficiency))
	case r.Efficiency < slowPaceCorrectPerMinute:
		hints = append(hints, fmt.Sprintf("Low efficiency: %.2f correct answers per minute. Practice recognizing key terms faster.", r.Efficiency))
	}

	if share <= rushedTimeShare && r.Score < StrengthThreshold {
		hints = append(hints, "You used little of the available time. Slow down and read each option carefully.")
	}
	if share >= nearlyOutOfTimeShare {
		hints = append(hints, "You used almost all of the available time. Practice under timed conditions.")
	}
	if r.UnansweredQuestions > 0 {
		hints = append(hints, fmt.Sprintf("%d question(s) were left unanswered. Make sure to answer every question.", r.UnansweredQuestions))
	}
	return hints
}

func recommendations(r *Results, a *Analysis) []string {
	recs := []string{}
	for _, w := range a.Weaknesses {
		switch w.Area {
		case "category":
			recs = append(recs, fmt.Sprintf("Review %s: %.0f%% correct.", w.Name, w.Percentage))
		case "difficulty":
			recs = append(recs, fmt.Sprintf("Practice more %s questions.", w.Name))
		case "question_type":
			recs = append(recs, "Multi-select questions need every correct option and no wrong ones. Review them option by option.")
		}
	}

	switch {
	case !r.Passed && r.PassingScore-r.Score <= passMarginForRecommendation:
		recs = append(recs, "You are close to the passing score. A focused review of weak areas should get you there.")
	case !r.Passed:
		recs = append(recs, "Take a remediation exam built from the questions you missed.")
	case len(a.Weaknesses) == 0:
		recs = append(recs, "Strong result across all areas. Try a simulation exam under realistic conditions.")
	}
	return recs
}
