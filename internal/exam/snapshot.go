package exam

import (
	"math/rand/v2"
	"slices"

	"github.com/certprep/certprep-backend/internal/model"
)

// Shuffler permutes n items by calling swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// RandomShuffler shuffles with the global math/rand/v2 source.
func RandomShuffler(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// NoShuffle keeps the original order.
func NoShuffle(int, func(i, j int)) {}

// BuildSnapshot copies the questions and applies the randomization settings:
// options are shuffled (with the answer key remapped) when RandomizeAnswers is
// set, and question order is shuffled when RandomizeQuestions is set. The
// input slice is never modified.
func BuildSnapshot(questions []model.Question, settings model.ExamSettings, shuffle Shuffler) []model.Question {
	if shuffle == nil {
		shuffle = NoShuffle
	}

	out := make([]model.Question, len(questions))
	for i := range questions {
		out[i] = cloneQuestion(questions[i])
		if settings.RandomizeAnswers {
			shuffleOptions(&out[i], shuffle)
		}
	}
	if settings.RandomizeQuestions {
		shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// shuffleOptions permutes the options of q and rewrites CorrectAnswers to
// point at the same options in their new positions. True/false questions keep
// their order.
func shuffleOptions(q *model.Question, shuffle Shuffler) {
	if q.Type == model.QuestionTypeTrueFalse || len(q.Options) < 2 {
		return
	}

	// perm[newPos] = oldPos
	perm := make([]int, len(q.Options))
	for i := range perm {
		perm[i] = i
	}
	shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	oldToNew := make([]int, len(perm))
	options := make([]model.Option, len(perm))
	for newPos, oldPos := range perm {
		options[newPos] = q.Options[oldPos]
		oldToNew[oldPos] = newPos
	}

	correct := make([]int, 0, len(q.CorrectAnswers))
	for _, idx := range q.CorrectAnswers {
		if idx >= 0 && idx < len(oldToNew) {
			correct = append(correct, oldToNew[idx])
		}
	}
	slices.Sort(correct)

	q.Options = options
	q.CorrectAnswers = slices.Compact(correct)
}
