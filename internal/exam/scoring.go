package exam

import (
	"slices"

	"github.com/certprep/certprep-backend/internal/model"
)

// IsCorrect reports whether a matches the question's answer key.
//
// Multi-select questions require a list whose distinct indices equal the key
// exactly, in any order. Single-choice and true/false questions accept a bare
// index or a one-element list. A question without a key is never correct.
func IsCorrect(q *model.Question, a Answer) bool {
	correct := dedupSorted(q.CorrectAnswers)
	if len(correct) == 0 || a.IsZero() {
		return false
	}

	if q.IsMultiSelect() {
		if !a.multi {
			return false
		}
		return slices.Equal(a.distinct(), correct)
	}

	_, found := slices.BinarySearch(correct, a.indices[0])
	return found
}

// PartialScore returns fractional credit in [0,1] for analytics. For
// multi-select questions it is (correctly selected - wrongly selected) / key
// size, floored at zero; other questions score 1 or 0.
func PartialScore(q *model.Question, a Answer) float64 {
	correct := dedupSorted(q.CorrectAnswers)
	if len(correct) == 0 || a.IsZero() {
		return 0
	}
	if !q.IsMultiSelect() {
		if IsCorrect(q, a) {
			return 1
		}
		return 0
	}

	hits, misses := 0, 0
	for _, idx := range a.distinct() {
		if _, ok := slices.BinarySearch(correct, idx); ok {
			hits++
		} else {
			misses++
		}
	}
	return max(0, float64(hits-misses)/float64(len(correct)))
}

// OptionBreakdown classifies options for review rendering.
type OptionBreakdown struct {
	Selected            []int `json:"selected"`
	Correct             []int `json:"correct"`
	Missed              []int `json:"missed"`
	IncorrectlySelected []int `json:"incorrectly_selected"`
}

// Breakdown compares the selection with the answer key option by option.
func Breakdown(q *model.Question, a Answer) OptionBreakdown {
	correct := dedupSorted(q.CorrectAnswers)
	selected := a.distinct()

	b := OptionBreakdown{
		Selected:            selected,
		Correct:             correct,
		Missed:              []int{},
		IncorrectlySelected: []int{},
	}
	if b.Selected == nil {
		b.Selected = []int{}
	}
	if b.Correct == nil {
		b.Correct = []int{}
	}
	for _, idx := range correct {
		if !slices.Contains(selected, idx) {
			b.Missed = append(b.Missed, idx)
		}
	}
	for _, idx := range selected {
		if !slices.Contains(correct, idx) {
			b.IncorrectlySelected = append(b.IncorrectlySelected, idx)
		}
	}
	return b
}
