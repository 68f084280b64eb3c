package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certprep/certprep-backend/internal/exam"
	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/repository"
)

// ─── Question source ────────────────────────────────────────────────────────

type fakeQuestions struct {
	questions []model.Question
	certs     map[string]*model.Certification
	err       error
}

func (f *fakeQuestions) RandomQuestions(_ context.Context, count int, filter model.QuestionFilter) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Question
	for _, q := range f.questions {
		if q.Provider != filter.Provider || q.Certification != filter.Certification {
			continue
		}
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		if slices.Contains(filter.ExcludeIDs, q.ID) {
			continue
		}
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func (f *fakeQuestions) GetCertification(_ context.Context, provider, code string) (*model.Certification, error) {
	if c, ok := f.certs[provider+"/"+code]; ok {
		return c, nil
	}
	return nil, repository.ErrCertificationNotFound
}

// ─── Exam store ─────────────────────────────────────────────────────────────

// fakeStore keeps committed sessions in memory. Each transaction works on
// copies and only publishes them when fn succeeds.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*exam.Session
	answers  map[uuid.UUID]int
	failOn   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*exam.Session),
		answers:  make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx repository.ExamTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{store: f, staged: make(map[uuid.UUID]*exam.Session), deleted: make(map[uuid.UUID]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	for id := range tx.deleted {
		delete(f.sessions, id)
	}
	for id, s := range tx.staged {
		f.sessions[id] = s
	}
	for id, n := range tx.answers {
		f.answers[id] += n
	}
	return nil
}

func (f *fakeStore) ListByOwner(_ context.Context, owner model.Identity, limit, offset int) ([]model.ExamSummary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var owned []*exam.Session
	for _, s := range f.sessions {
		if s.BelongsTo(owner) {
			owned = append(owned, s)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	total := len(owned)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)

	out := make([]model.ExamSummary, 0, end-offset)
	for _, s := range owned[offset:end] {
		out = append(out, model.ExamSummary{ID: s.ID, Status: string(s.Status), CreatedAt: s.CreatedAt})
	}
	return out, total, nil
}

func (f *fakeStore) get(id uuid.UUID) (*exam.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, false
	}
	return cloneSession(s), true
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeTx struct {
	store   *fakeStore
	staged  map[uuid.UUID]*exam.Session
	deleted map[uuid.UUID]bool
	answers map[uuid.UUID]int
}

var errStoreDown = errors.New("store unavailable")

func (t *fakeTx) fail(op string) error {
	if t.store.failOn == op {
		return errStoreDown
	}
	return nil
}

func (t *fakeTx) InsertSession(_ context.Context, s *exam.Session) error {
	if err := t.fail("insert"); err != nil {
		return err
	}
	t.staged[s.ID] = cloneSession(s)
	return nil
}

func (t *fakeTx) LockSession(ctx context.Context, id uuid.UUID) (*exam.Session, error) {
	return t.GetSession(ctx, id)
}

func (t *fakeTx) GetSession(_ context.Context, id uuid.UUID) (*exam.Session, error) {
	if t.deleted[id] {
		return nil, exam.ErrNotFound
	}
	if s, ok := t.staged[id]; ok {
		return cloneSession(s), nil
	}
	if s, ok := t.store.sessions[id]; ok {
		return cloneSession(s), nil
	}
	return nil, exam.ErrNotFound
}

func (t *fakeTx) SaveState(_ context.Context, s *exam.Session) error {
	if err := t.fail("save"); err != nil {
		return err
	}
	t.staged[s.ID] = cloneSession(s)
	return nil
}

func (t *fakeTx) UpsertAnswer(_ context.Context, examID, _ uuid.UUID, _ exam.Answer, _ bool, _ float64) error {
	if err := t.fail("answer"); err != nil {
		return err
	}
	if t.answers == nil {
		t.answers = make(map[uuid.UUID]int)
	}
	t.answers[examID]++
	return nil
}

func (t *fakeTx) DeleteSession(_ context.Context, id uuid.UUID) error {
	if err := t.fail("delete"); err != nil {
		return err
	}
	t.deleted[id] = true
	delete(t.staged, id)
	return nil
}

func cloneSession(s *exam.Session) *exam.Session {
	out := *s
	out.Questions = slices.Clone(s.Questions)
	out.Answers = maps.Clone(s.Answers)
	return &out
}

// ─── Stats publisher ────────────────────────────────────────────────────────

type fakePublisher struct {
	mu       sync.Mutex
	outcomes []model.QuestionOutcome
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, outcomes []model.QuestionOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.outcomes = append(p.outcomes, outcomes...)
	return nil
}

// ─── Clock ──────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
