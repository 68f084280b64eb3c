package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/model"
)

func intPtr(i int) *int { return &i }

func TestContentHash(t *testing.T) {
	a := ContentHash("What is S3?", []string{"Storage", "Compute"})
	b := ContentHash("  what is s3?  ", []string{" compute", "STORAGE"})
	if a != b {
		t.Fatal("hash should ignore case, surrounding space and option order")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64", len(a))
	}
	if a == ContentHash("What is S3?", []string{"Storage", "Network"}) {
		t.Fatal("different options must hash differently")
	}
}

func TestProvider(t *testing.T) {
	tests := []struct {
		name, text, file, want string
	}{
		{"file wins", "Which BigQuery feature fits?", "aws-saa-c03-dump", "aws"},
		{"google file", "Pick one.", "Google Cloud Professional Data Engineer", "gcp"},
		{"text gke", "How do you scale a GKE cluster?", "", "gcp"},
		{"text ec2", "Which EC2 instance type is cheapest?", "", "aws"},
		{"associate is not oracle", "Pick one.", "solutions-architect-associate", "general"},
		{"fallback", "Pick the right answer.", "", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Provider(tt.text, tt.file); got != tt.want {
				t.Fatalf("Provider = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCertification(t *testing.T) {
	tests := []struct {
		name, text, file, want string
	}{
		{"file phrase", "Pick one.", "AWS Solutions Architect Associate", "saa-c03"},
		{"file code", "Pick one.", "az-104_practice", "az-104"},
		{"ckad before cka", "Pick one.", "ckad-questions", "ckad"},
		{"text code", "This AZ-900 question covers regions.", "", "az-900"},
		{"fallback", "Pick one.", "misc", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Certification(tt.text, tt.file); got != tt.want {
				t.Fatalf("Certification = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategoryDifficultyTags(t *testing.T) {
	if got := Category("Which BigQuery feature reduces scan cost?"); got != "Data Processing" {
		t.Fatalf("Category = %q", got)
	}
	if got := Category("Pick one."); got != "General" {
		t.Fatalf("Category fallback = %q", got)
	}

	neutral := strings.Repeat("lorem ", 40)
	difficulties := []struct {
		text    string
		options int
		want    model.Difficulty
	}{
		{"Short question?", 4, model.DifficultyEasy},
		{neutral, 4, model.DifficultyMedium},
		{neutral + " troubleshoot", 4, model.DifficultyHard},
		{neutral, 7, model.DifficultyHard},
		{strings.Repeat("lorem ", 90), 4, model.DifficultyHard},
	}
	for i, d := range difficulties {
		if got := Difficulty(d.text, d.options); got != d.want {
			t.Fatalf("case %d: Difficulty = %s, want %s", i, got, d.want)
		}
	}

	tags := Tags("Deploy the Docker container on Kubernetes behind a VPC")
	want := []string{"kubernetes", "docker", "networking"}
	if !slices.Equal(tags, want) {
		t.Fatalf("Tags = %v, want %v", tags, want)
	}
}

func TestCorrectAnswers(t *testing.T) {
	opts := []rawOption{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	flagged := []rawOption{{Text: "a"}, {Text: "b", Correct: true}, {Text: "c", Correct: true}}

	tests := []struct {
		name string
		q    rawQuestion
		want []int
	}{
		{"single index", rawQuestion{Options: opts, CorrectAnswer: intPtr(1)}, []int{1}},
		{"index list deduped", rawQuestion{Options: opts, CorrectAnswers: []int{2, 0, 2}}, []int{0, 2}},
		{"flagged options", rawQuestion{Options: flagged}, []int{1, 2}},
		{"explanation letters", rawQuestion{Options: opts, Explanation: "Correct: C. because it scales"}, []int{2}},
		{"out of range dropped", rawQuestion{Options: opts, CorrectAnswer: intPtr(9)}, nil},
		{"explicit wins over flags", rawQuestion{Options: flagged, CorrectAnswer: intPtr(0)}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := correctAnswers(&tt.q); !slices.Equal(got, tt.want) {
				t.Fatalf("correctAnswers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    string
		want    int
		wantErr bool
	}{
		{"json array", "q.json", `[{"question":"Q1","options":["a","b"],"correctAnswer":0}]`, 1, false},
		{"json object", "q.json", `{"questions":[{"text":"Q1","options":[{"label":"A","text":"a","isCorrect":true},{"text":"b"}]},{"question":"Q2"}]}`, 2, false},
		{"json unknown object", "q.json", `{"items":[]}`, 0, true},
		{"json scalar", "q.json", `42`, 0, true},
		{"json malformed", "q.json", `[{"question":`, 0, true},
		{"yaml list", "q.yaml", "- question: Q1\n  options: [a, b]\n  correctAnswer: 1\n", 1, false},
		{"yaml object", "q.yml", "questions:\n  - question: Q1\n    options:\n      - text: a\n        correct: true\n      - b\n", 1, false},
		{"yaml unknown", "q.yaml", "hello: world\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decode(tt.path, []byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("items = %d, want %d", len(items), tt.want)
			}
		})
	}
}

func TestDecodeOptionShapes(t *testing.T) {
	items, err := decode("q.yaml", []byte("- question: Q1\n  options:\n    - plain\n    - label: X\n      text: flagged\n      isCorrect: true\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	opts := items[0].Options
	if opts[0].Text != "plain" || opts[0].Correct {
		t.Fatalf("scalar option = %+v", opts[0])
	}
	if opts[1].Label != "X" || opts[1].Text != "flagged" || !opts[1].Correct {
		t.Fatalf("object option = %+v", opts[1])
	}
}

func TestBuild(t *testing.T) {
	q := rawQuestion{
		ID:             "q-17",
		Question:       "  Which two services store objects?  ",
		Options:        []rawOption{{Text: "S3"}, {Text: "EBS"}, {Text: "Glacier"}},
		CorrectAnswers: []int{2, 0},
		Difficulty:     "Expert",
	}
	iq, err := build(&q, "aws-solutions-architect-associate")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := iq.Question
	if got.Text != "Which two services store objects?" {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Provider != "aws" || got.Certification != "saa-c03" {
		t.Fatalf("provider/cert = %s/%s", got.Provider, got.Certification)
	}
	if got.Type != model.QuestionTypeMultiSelect || got.ExpectedAnswerCount != 2 {
		t.Fatalf("type = %s expected = %d", got.Type, got.ExpectedAnswerCount)
	}
	if !slices.Equal(got.CorrectAnswers, []int{0, 2}) {
		t.Fatalf("correct = %v", got.CorrectAnswers)
	}
	if got.Difficulty != model.DifficultyExpert {
		t.Fatalf("difficulty = %s, want explicit expert", got.Difficulty)
	}
	if got.Options[1].Label != "B" {
		t.Fatalf("default label = %q, want B", got.Options[1].Label)
	}
	if iq.Metadata["original_id"] != "q-17" || iq.Metadata["source_file"] != "aws-solutions-architect-associate" {
		t.Fatalf("metadata = %v", iq.Metadata)
	}

	tf := rawQuestion{Question: "S3 is regional.", Options: []rawOption{{Text: "True"}, {Text: "False"}}, CorrectAnswer: intPtr(0)}
	iq, err = build(&tf, "")
	if err != nil {
		t.Fatalf("build true/false: %v", err)
	}
	if iq.Question.Type != model.QuestionTypeTrueFalse || iq.Question.ExpectedAnswerCount != 1 {
		t.Fatalf("true/false type = %s", iq.Question.Type)
	}
}

func TestBuildSkips(t *testing.T) {
	tests := []struct {
		name string
		q    rawQuestion
		want error
	}{
		{"no text", rawQuestion{Options: []rawOption{{Text: "a"}, {Text: "b"}}, CorrectAnswer: intPtr(0)}, ErrNoText},
		{"one option", rawQuestion{Question: "Q", Options: []rawOption{{Text: "a"}}, CorrectAnswer: intPtr(0)}, ErrTooFewOptions},
		{"no answer key", rawQuestion{Question: "Q", Options: []rawOption{{Text: "a"}, {Text: "b"}}}, ErrNoCorrectAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := build(&tt.q, ""); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// memoryWriter keys questions by content hash like the real upsert.
type memoryWriter struct {
	mu     sync.Mutex
	byHash map[string]uuid.UUID
	failOn string
}

func (m *memoryWriter) UpsertImported(_ context.Context, q *model.ImportedQuestion) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && q.Question.Text == m.failOn {
		return uuid.Nil, false, errors.New("constraint violation")
	}
	if m.byHash == nil {
		m.byHash = make(map[string]uuid.UUID)
	}
	if id, ok := m.byHash[q.ContentHash]; ok {
		return id, false, nil
	}
	id := uuid.New()
	m.byHash[q.ContentHash] = id
	return id, true, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "aws-saa-c03.json", `{"questions":[
			{"id":1,"question":"Which service stores objects?","options":["S3","EC2"],"correctAnswer":0},
			{"id":2,"question":"","options":["a","b"],"correctAnswer":0},
			{"id":3,"question":"Lonely","options":["only"],"correctAnswer":0},
			{"id":4,"question":"Broken write","options":["a","b"],"correctAnswer":1}
		]}`),
		writeFile(t, dir, "aws-saa-c03-copy.yaml", `
- id: 10
  question: Which service stores objects?
  options: [EC2, S3]
  correctAnswer: 1
- id: 11
  question: Which service runs containers?
  options: [ECS, S3]
  correctAnswer: 0
`),
		writeFile(t, dir, "broken.json", `{"questions": [`),
		filepath.Join(dir, "missing.json"),
	}

	writer := &memoryWriter{failOn: "Broken write"}
	im := New(writer, 2, zerolog.Nop())

	sum, err := im.ImportFiles(context.Background(), files)
	if err != nil {
		t.Fatalf("ImportFiles: %v", err)
	}

	want := Summary{Files: 4, Processed: 6, Inserted: 2, Updated: 1, Skipped: 2, Errors: 3}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	if len(writer.byHash) != 2 {
		t.Fatalf("stored %d distinct questions, want 2", len(writer.byHash))
	}
}

func TestImportFilesCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "q.json", `[{"question":"Q","options":["a","b"],"correctAnswer":0}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&memoryWriter{}, 1, zerolog.Nop()).ImportFiles(ctx, []string{path})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
