package exam

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		multi   bool
		indices []int
		wantErr bool
	}{
		{name: "bare index", raw: `2`, indices: []int{2}},
		{name: "list", raw: `[3, 1]`, multi: true, indices: []int{3, 1}},
		{name: "list with spaces", raw: "  [0]\n", multi: true, indices: []int{0}},
		{name: "empty list", raw: `[]`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "string", raw: `"A"`, wantErr: true},
		{name: "list of strings", raw: `["A"]`, wantErr: true},
		{name: "float", raw: `1.5`, wantErr: true},
		{name: "object", raw: `{"selected":1}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAnswer([]byte(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.IsMulti() != tc.multi {
				t.Fatalf("expected multi=%v, got %v", tc.multi, got.IsMulti())
			}
			if !slices.Equal(got.Indices(), tc.indices) {
				t.Fatalf("expected %v, got %v", tc.indices, got.Indices())
			}
		})
	}
}

func TestAnswerJSONRoundTrip(t *testing.T) {
	for _, a := range []Answer{Single(1), Multi(0, 2)} {
		raw, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back Answer
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back.IsMulti() != a.IsMulti() || !slices.Equal(back.Indices(), a.Indices()) {
			t.Fatalf("round trip changed %s", raw)
		}
	}

	raw, _ := json.Marshal(Answer{})
	if string(raw) != "null" {
		t.Fatalf("expected null for zero answer, got %s", raw)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		multiSelect  bool
		answer       Answer
		wantMulti    bool
		wantIndices  []int
		wantWarnings int
		wantErr      bool
	}{
		{name: "single bare", answer: Single(1), wantIndices: []int{1}},
		{name: "single list of one", answer: Multi(2), wantIndices: []int{2}},
		{name: "single duplicated list", answer: Multi(2, 2), wantIndices: []int{2}, wantWarnings: 1},
		{name: "single two options", answer: Multi(0, 1), wantErr: true},
		{name: "single out of range", answer: Single(9), wantErr: true},
		{name: "single negative", answer: Single(-1), wantErr: true},
		{name: "multi sorted and deduped", multiSelect: true, answer: Multi(2, 0, 2), wantMulti: true, wantIndices: []int{0, 2}, wantWarnings: 1},
		{name: "multi bare index becomes list", multiSelect: true, answer: Single(1), wantMulti: true, wantIndices: []int{1}},
		{name: "multi fewer than expected allowed", multiSelect: true, answer: Multi(0), wantMulti: true, wantIndices: []int{0}},
		{name: "multi exceeds expected", multiSelect: true, answer: Multi(0, 1, 2), wantErr: true},
		{name: "multi out of range", multiSelect: true, answer: Multi(0, 7), wantErr: true},
		{name: "empty", answer: Answer{}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := singleQuestion(0)
			if tc.multiSelect {
				q = multiQuestion(0, 2)
			}
			got, warnings, err := Normalize(q, tc.answer)
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.IsMulti() != tc.wantMulti {
				t.Fatalf("expected multi=%v, got %v", tc.wantMulti, got.IsMulti())
			}
			if !slices.Equal(got.Indices(), tc.wantIndices) {
				t.Fatalf("expected %v, got %v", tc.wantIndices, got.Indices())
			}
			if len(warnings) != tc.wantWarnings {
				t.Fatalf("expected %d warnings, got %v", tc.wantWarnings, warnings)
			}
		})
	}
}
