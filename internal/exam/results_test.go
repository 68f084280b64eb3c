package exam

import (
	"slices"
	"testing"
	"time"

	"github.com/certprep/certprep-backend/internal/model"
)

func completedSession(t *testing.T, questions []model.Question, answers map[int]Answer, spent time.Duration, showExplanations bool) *Session {
	t.Helper()
	s, err := NewSession(NewSessionParams{
		Owner:            model.UserIdentity(7),
		Provider:         "aws",
		Certification:    "saa-c03",
		Mode:             model.ExamModePractice,
		Settings:         model.ExamSettings{ShowExplanations: showExplanations},
		Questions:        questions,
		TimeLimitMinutes: 60,
		PassingScore:     70,
	}, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mustStart(t, s, t0)
	for i, a := range answers {
		mustAnswer(t, s, s.Questions[i].ID, a, t0)
	}
	if _, err := s.Complete(t0.Add(spent)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return s
}

func TestAggregate_Breakdowns(t *testing.T) {
	q1 := singleQuestion(0) // networking / easy
	q2 := singleQuestion(1) // networking / easy
	q3 := multiQuestion(0, 1)
	q4 := multiQuestion(2, 3)
	q3.Explanation = "because"

	s := completedSession(t, []model.Question{*q1, *q2, *q3, *q4}, map[int]Answer{
		0: Single(0),   // correct
		1: Single(2),   // wrong
		2: Multi(1, 0), // correct
	}, 4*time.Minute, true)

	r := Aggregate(s)
	if r.TotalQuestions != 4 || r.CorrectAnswers != 2 || r.IncorrectAnswers != 1 || r.UnansweredQuestions != 1 {
		t.Fatalf("unexpected counts %+v", r)
	}
	if r.Score != 50 || r.Passed {
		t.Fatalf("expected score 50 and failed, got %v %v", r.Score, r.Passed)
	}
	if r.Efficiency != 0.5 {
		t.Fatalf("expected efficiency 0.5, got %v", r.Efficiency)
	}

	net := r.Categories["networking"]
	if net.Total != 2 || net.Correct != 1 || net.Percentage != 50 {
		t.Fatalf("unexpected networking bucket %+v", net)
	}
	sec := r.Categories["security"]
	if sec.Total != 2 || sec.Correct != 1 || sec.Percentage != 50 {
		t.Fatalf("unexpected security bucket %+v", sec)
	}

	for _, d := range model.Difficulties {
		if _, ok := r.Difficulties[d]; !ok {
			t.Fatalf("missing difficulty bucket %s", d)
		}
	}
	if r.Difficulties[model.DifficultyExpert].Total != 0 {
		t.Fatalf("expert bucket should be empty")
	}

	ms := r.Types.MultiSelect
	if ms.Total != 2 || ms.Correct != 1 || ms.Incorrect != 0 || ms.Unanswered != 1 {
		t.Fatalf("unexpected multi-select bucket %+v", ms)
	}
	sc := r.Types.SingleChoice
	if sc.Total != 2 || sc.Correct != 1 || sc.Incorrect != 1 || sc.Unanswered != 0 {
		t.Fatalf("unexpected single-choice bucket %+v", sc)
	}

	detail := r.Questions[2]
	if !detail.Correct || detail.PartialScore != 1 || detail.Explanation != "because" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if !slices.Equal(detail.Selection.Selected, []int{0, 1}) {
		t.Fatalf("unexpected selection %+v", detail.Selection)
	}
	if r.Questions[3].Answered || r.Questions[3].Answer != nil {
		t.Fatalf("unanswered question reported as answered")
	}
}

func TestAggregate_HidesExplanationsWhenDisabled(t *testing.T) {
	q := singleQuestion(0)
	q.Explanation = "secret"
	s := completedSession(t, []model.Question{*q}, map[int]Answer{0: Single(0)}, time.Minute, false)

	if got := Aggregate(s).Questions[0].Explanation; got != "" {
		t.Fatalf("expected no explanation, got %q", got)
	}
}

func TestAggregate_ScoreRoundedToTwoDecimals(t *testing.T) {
	qs := []model.Question{*singleQuestion(0), *singleQuestion(0), *singleQuestion(0)}
	s := completedSession(t, qs, map[int]Answer{0: Single(0)}, time.Minute, false)

	if got := Aggregate(s).Score; got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
}

func TestAnalyze(t *testing.T) {
	strong := singleQuestion(0)
	strong.Category = "compute"
	weakMulti1 := multiQuestion(0, 1)
	weakMulti2 := multiQuestion(0, 1)

	s := completedSession(t, []model.Question{*strong, *weakMulti1, *weakMulti2}, map[int]Answer{
		0: Single(0),
		1: Multi(0),
		2: Multi(2, 3),
	}, 3*time.Minute, false)

	a := Analyze(Aggregate(s))

	if len(a.Strengths) != 1 || a.Strengths[0].Name != "compute" {
		t.Fatalf("expected compute as the only strength, got %+v", a.Strengths)
	}

	var areas []string
	for _, w := range a.Weaknesses {
		areas = append(areas, w.Area+":"+w.Name)
	}
	for _, want := range []string{"category:security", "difficulty:hard", "question_type:multi_select"} {
		if !slices.Contains(areas, want) {
			t.Fatalf("expected weakness %s in %v", want, areas)
		}
	}
	if len(a.Recommendations) == 0 {
		t.Fatalf("expected recommendations")
	}
}

func TestAnalyze_NoWeaknesses(t *testing.T) {
	s := completedSession(t, []model.Question{*singleQuestion(0)}, map[int]Answer{0: Single(0)}, time.Minute, false)
	a := Analyze(Aggregate(s))

	if len(a.Weaknesses) != 0 {
		t.Fatalf("expected no weaknesses, got %+v", a.Weaknesses)
	}
	if !a.Passed || len(a.Strengths) != 1 {
		t.Fatalf("unexpected analysis %+v", a)
	}
}
