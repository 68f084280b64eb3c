// Package importer loads question-bank export files into the question store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/certprep/certprep-backend/internal/model"
)

// DefaultConcurrency bounds how many files are imported at once.
const DefaultConcurrency = 4

// Skip reasons.
var (
	ErrNoText          = errors.New("question has no text")
	ErrTooFewOptions   = errors.New("question has fewer than 2 options")
	ErrNoCorrectAnswer = errors.New("no correct answer could be recovered")
)

// QuestionWriter stores one imported question. *repository.QuestionRepository
// satisfies it.
type QuestionWriter interface {
	UpsertImported(ctx context.Context, q *model.ImportedQuestion) (id uuid.UUID, inserted bool, err error)
}

// Summary counts what an import run did. Processed includes skipped items.
type Summary struct {
	Files     int `json:"files"`
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s Summary) add(o Summary) Summary {
	return Summary{
		Files:     s.Files + o.Files,
		Processed: s.Processed + o.Processed,
		Inserted:  s.Inserted + o.Inserted,
		Updated:   s.Updated + o.Updated,
		Skipped:   s.Skipped + o.Skipped,
		Errors:    s.Errors + o.Errors,
	}
}

// Importer parses question files and upserts their items.
type Importer struct {
	writer      QuestionWriter
	concurrency int
	log         zerolog.Logger
}

// New creates an Importer. concurrency <= 0 uses DefaultConcurrency.
func New(writer QuestionWriter, concurrency int, log zerolog.Logger) *Importer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Importer{
		writer:      writer,
		concurrency: concurrency,
		log:         log.With().Str("component", "importer").Logger(),
	}
}

// ImportFiles imports every file, several at a time. A file that cannot be
// read or parsed counts as one error and does not stop the others. Only
// context cancellation aborts the run.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) (Summary, error) {
	var (
		mu    sync.Mutex
		total Summary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for _, path := range paths {
		g.Go(func() error {
			s := im.importFile(ctx, path)
			mu.Lock()
			total = total.add(s)
			mu.Unlock()
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return total, fmt.Errorf("import interrupted: %w", err)
	}
	return total, nil
}

func (im *Importer) importFile(ctx context.Context, path string) Summary {
	log := im.log.With().Str("file", path).Logger()
	sum := Summary{Files: 1}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read question file")
		sum.Errors++
		return sum
	}

	items, err := decode(path, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse question file")
		sum.Errors++
		return sum
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log.Info().Int("questions", len(items)).Str("source", stem).Msg("Processing question file")

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		sum.Processed++

		iq, err := build(&items[i], stem)
		if err != nil {
			log.Warn().Err(err).Interface("id", items[i].ID).Int("index", i).Msg("Skipping question")
			sum.Skipped++
			continue
		}

		_, inserted, err := im.writer.UpsertImported(ctx, iq)
		if err != nil {
			log.Error().Err(err).Interface("id", items[i].ID).Int("index", i).Msg("Failed to store question")
			sum.Errors++
			continue
		}
		if inserted {
			sum.Inserted++
		} else {
			sum.Updated++
		}
	}

	log.Info().
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Int("errors", sum.Errors).
		Msg("Question file done")
	return sum
}

// build turns a raw item into a question-bank entry. sourceFile is the file
// stem, used both for classification and as metadata.
func build(q *rawQuestion, sourceFile string) (*model.ImportedQuestion, error) {
	text := q.text()
	if text == "" {
		return nil, ErrNoText
	}
	if len(q.Options) < 2 {
		return nil, ErrTooFewOptions
	}

	options := make([]model.Option, len(q.Options))
	optionTexts := make([]string, len(q.Options))
	for i, o := range q.Options {
		label := o.Label
		if label == "" {
			label = string(rune('A' + i))
		}
		options[i] = model.Option{Label: label, Text: o.Text}
		optionTexts[i] = o.Text
	}

	correct := correctAnswers(q)
	if len(correct) == 0 {
		return nil, ErrNoCorrectAnswer
	}

	question := model.Question{
		Text:          text,
		Explanation:   strings.TrimSpace(q.Explanation),
		Options:       options,
		Provider:      firstNonEmpty(q.Provider, Provider(text, sourceFile)),
		Certification: firstNonEmpty(q.Certification, Certification(text, sourceFile)),
		Category:      firstNonEmpty(q.Category, Category(text)),
		Difficulty:    Difficulty(text, len(options)),
		Type:          questionType(options, correct),
		Points:        1,
	}
	question.Provider = strings.ToLower(question.Provider)
	question.Certification = strings.ToLower(question.Certification)
	if d := model.Difficulty(strings.ToLower(q.Difficulty)); d.Valid() {
		question.Difficulty = d
	}
	question.CorrectAnswers = correct
	if question.IsMultiSelect() {
		question.ExpectedAnswerCount = len(correct)
	} else {
		question.ExpectedAnswerCount = 1
	}

	metadata := map[string]any{"source_file": sourceFile}
	if q.ID != nil {
		metadata["original_id"] = q.ID
	}

	return &model.ImportedQuestion{
		ContentHash: ContentHash(text, optionTexts),
		Question:    question,
		Tags:        Tags(text),
		Metadata:    metadata,
	}, nil
}

func questionType(options []model.Option, correct []int) model.QuestionType {
	if len(correct) > 1 {
		return model.QuestionTypeMultiSelect
	}
	if len(options) == 2 &&
		strings.EqualFold(options[0].Text, "true") && strings.EqualFold(options[1].Text, "false") {
		return model.QuestionTypeTrueFalse
	}
	return model.QuestionTypeSingleChoice
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
