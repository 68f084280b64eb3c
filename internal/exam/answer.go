package exam

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/certprep/certprep-backend/internal/model"
)

// Answer is a submitted answer: either a single option index or a set of
// indices. Use Single or Multi to build one; the zero value is "unanswered".
type Answer struct {
	multi   bool
	indices []int
}

// Single returns an answer selecting exactly one option.
func Single(index int) Answer {
	return Answer{indices: []int{index}}
}

// Multi returns an answer selecting a list of options.
func Multi(indices ...int) Answer {
	return Answer{multi: true, indices: slices.Clone(indices)}
}

// IsZero reports whether nothing was selected.
func (a Answer) IsZero() bool { return len(a.indices) == 0 }

// IsMulti reports whether the answer was submitted as a list.
func (a Answer) IsMulti() bool { return a.multi }

// Indices returns a copy of the selected indices in submission order.
func (a Answer) Indices() []int { return slices.Clone(a.indices) }

// distinct returns the selected indices deduplicated and sorted.
func (a Answer) distinct() []int {
	return dedupSorted(a.indices)
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.IsZero():
		return []byte("null"), nil
	case a.multi:
		return json.Marshal(a.indices)
	default:
		return json.Marshal(a.indices[0])
	}
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAnswer(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAnswer decodes a raw JSON answer that is either a number or an array
// of numbers. Any other shape is a validation error.
func ParseAnswer(raw []byte) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Answer{}, validationErr("answer", "an option index or a list of option indices is required")
	}

	if raw[0] == '[' {
		var list []int
		if err := json.Unmarshal(raw, &list); err != nil {
			return Answer{}, validationErr("answer", "list must contain only option indices")
		}
		if len(list) == 0 {
			return Answer{}, validationErr("answer", "at least one option must be selected")
		}
		return Multi(list...), nil
	}

	var index int
	if err := json.Unmarshal(raw, &index); err != nil {
		return Answer{}, validationErr("answer", "must be an option index or a list of option indices")
	}
	return Single(index), nil
}

// Normalize checks a submission against the question it answers and returns
// the canonical form: a deduplicated Multi for multi-select questions and a
// Single otherwise. Duplicated indices are dropped and reported as warnings.
func Normalize(q *model.Question, a Answer) (Answer, []string, error) {
	if a.IsZero() {
		return Answer{}, nil, validationErr("answer", "at least one option must be selected")
	}

	for _, idx := range a.indices {
		if idx < 0 || idx >= len(q.Options) {
			return Answer{}, nil, validationErr("answer", "option index %d is out of range [0, %d)", idx, len(q.Options))
		}
	}

	var warnings []string
	distinct := a.distinct()
	if len(distinct) != len(a.indices) {
		warnings = append(warnings, "duplicate option indices were ignored")
	}

	if q.IsMultiSelect() {
		if expected := q.Expected(); len(distinct) > expected {
			return Answer{}, nil, validationErr("answer", "%d options selected but the question expects %d", len(distinct), expected)
		}
		return Answer{multi: true, indices: distinct}, warnings, nil
	}

	if len(distinct) > 1 {
		return Answer{}, nil, validationErr("answer", "question expects a single option")
	}
	return Single(distinct[0]), warnings, nil
}

func dedupSorted(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
