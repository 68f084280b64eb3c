package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/model"
)

type fakeWriter struct {
	mu       sync.Mutex
	bulkErr  error
	failOne  map[uuid.UUID]bool
	bulk     [][]model.QuestionOutcome
	recorded []model.QuestionOutcome
}

func (f *fakeWriter) BulkRecord(_ context.Context, batch []model.QuestionOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulk = append(f.bulk, append([]model.QuestionOutcome(nil), batch...))
	f.recorded = append(f.recorded, batch...)
	return nil
}

func (f *fakeWriter) RecordOne(_ context.Context, o model.QuestionOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOne[o.QuestionID] {
		return errors.New("row write failed")
	}
	f.recorded = append(f.recorded, o)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded)
}

func newTestWorker(t *testing.T, w StatsWriter) (*StatsWorker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	worker := NewStatsWorker(w, rdb, zerolog.Nop())
	worker.batchTimeout = 20 * time.Millisecond
	worker.pollTimeout = 20 * time.Millisecond
	return worker, mr, rdb
}

func outcome(correct bool) model.QuestionOutcome {
	return model.QuestionOutcome{
		ExamID:       uuid.New(),
		QuestionID:   uuid.New(),
		Answered:     true,
		Correct:      correct,
		SecondsSpent: 45,
		AttemptedAt:  time.Now().UTC(),
	}
}

func TestStatsWorkerDrainsQueue(t *testing.T) {
	writer := &fakeWriter{}
	w, _, rdb := newTestWorker(t, writer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		raw, _ := json.Marshal(outcome(i%2 == 0))
		if err := rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, raw).Err(); err != nil {
			t.Fatalf("rpush: %v", err)
		}
	}
	if err := rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, "not json").Err(); err != nil {
		t.Fatalf("rpush: %v", err)
	}

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for writer.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("recorded %d outcomes, want 3", writer.count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	if n := writer.count(); n != 3 {
		t.Fatalf("recorded %d outcomes, want 3", n)
	}
}

func TestStatsWorkerFallbackRequeues(t *testing.T) {
	good, bad := outcome(true), outcome(false)
	writer := &fakeWriter{
		bulkErr: errors.New("bulk failed"),
		failOne: map[uuid.UUID]bool{bad.QuestionID: true},
	}
	w, mr, _ := newTestWorker(t, writer)

	w.flushSafe(context.Background(), []model.QuestionOutcome{good, bad})

	if len(writer.recorded) != 1 || writer.recorded[0].QuestionID != good.QuestionID {
		t.Fatalf("recorded = %+v, want only the good outcome", writer.recorded)
	}

	queued, err := mr.List(config.WorkerKey.PersistQuestionStatsQueue)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}
	var back model.QuestionOutcome
	if err := json.Unmarshal([]byte(queued[0]), &back); err != nil {
		t.Fatalf("decode requeued: %v", err)
	}
	if back.QuestionID != bad.QuestionID {
		t.Fatalf("requeued %s, want %s", back.QuestionID, bad.QuestionID)
	}
	if back.Retries != 1 {
		t.Fatalf("requeued retries = %d, want 1", back.Retries)
	}
}

func TestStatsWorkerDropsOutcomeAfterMaxRetries(t *testing.T) {
	bad := outcome(false)
	writer := &fakeWriter{
		bulkErr: errors.New("bulk failed"),
		failOne: map[uuid.UUID]bool{bad.QuestionID: true},
	}
	w, mr, _ := newTestWorker(t, writer)

	// Each round flushes whatever the previous round put back.
	pending := []model.QuestionOutcome{bad}
	rounds := 0
	for len(pending) > 0 {
		rounds++
		if rounds > StatsMaxRetries+2 {
			t.Fatalf("outcome still queued after %d rounds", rounds)
		}
		w.flushSafe(context.Background(), pending)

		queued, err := mr.List(config.WorkerKey.PersistQuestionStatsQueue)
		if err != nil && !errors.Is(err, miniredis.ErrKeyNotFound) {
			t.Fatalf("list: %v", err)
		}
		pending = pending[:0]
		for _, raw := range queued {
			var o model.QuestionOutcome
			if err := json.Unmarshal([]byte(raw), &o); err != nil {
				t.Fatalf("decode requeued: %v", err)
			}
			if o.Retries != rounds {
				t.Fatalf("round %d: retries = %d", rounds, o.Retries)
			}
			pending = append(pending, o)
		}
		mr.Del(config.WorkerKey.PersistQuestionStatsQueue)
	}

	if rounds != StatsMaxRetries+1 {
		t.Fatalf("outcome written %d times, want %d", rounds, StatsMaxRetries+1)
	}
	if writer.count() != 0 {
		t.Fatalf("failing outcome was recorded")
	}
}

func TestStatsWorkerFlushesOnShutdown(t *testing.T) {
	writer := &fakeWriter{}
	w, _, rdb := newTestWorker(t, writer)
	w.batchTimeout = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	raw, _ := json.Marshal(outcome(true))
	if err := rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, raw).Err(); err != nil {
		t.Fatalf("rpush: %v", err)
	}

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		n, err := rdb.LLen(context.Background(), config.WorkerKey.PersistQuestionStatsQueue).Result()
		if err != nil {
			t.Fatalf("llen: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never popped the outcome")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if writer.count() != 0 {
		t.Fatal("batch flushed before timeout or shutdown")
	}

	cancel()
	<-done
	if writer.count() != 1 {
		t.Fatalf("recorded %d outcomes after shutdown, want 1", writer.count())
	}
}
