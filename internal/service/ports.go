package service

import (
	"context"

	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/repository"
)

// QuestionSource supplies question-bank items. RandomQuestions returns fewer
// than count items when the pool is smaller; it never pads.
type QuestionSource interface {
	RandomQuestions(ctx context.Context, count int, f model.QuestionFilter) ([]model.Question, error)
	GetCertification(ctx context.Context, provider, code string) (*model.Certification, error)
}

// ExamStore persists exam sessions. Mutations run through WithinTx so the
// row lock is held from guard check to commit.
type ExamStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.ExamTx) error) error
	ListByOwner(ctx context.Context, owner model.Identity, limit, offset int) ([]model.ExamSummary, int, error)
}

// AnonymousSessionStore registers anonymous session tokens.
type AnonymousSessionStore interface {
	Touch(ctx context.Context, token string) (created bool, err error)
}

// UserStore is the account storage used by AuthService.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// StatsPublisher hands question outcomes to the statistics pipeline.
type StatsPublisher interface {
	Publish(ctx context.Context, outcomes []model.QuestionOutcome) error
}

// Compile-time checks for the Postgres implementations.
var (
	_ QuestionSource        = (*repository.QuestionRepository)(nil)
	_ ExamStore             = (*repository.ExamRepository)(nil)
	_ AnonymousSessionStore = (*repository.AnonymousSessionRepository)(nil)
	_ UserStore             = (*repository.UserRepository)(nil)
)
