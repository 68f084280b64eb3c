package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/model"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second
	StatsMaxRetries   = 3
)

// StatsWriter persists question outcomes. *repository.QuestionStatsRepository
// satisfies it.
type StatsWriter interface {
	BulkRecord(ctx context.Context, batch []model.QuestionOutcome) error
	RecordOne(ctx context.Context, o model.QuestionOutcome) error
}

// StatsWorker drains the question outcome queue into question_stats.
type StatsWorker struct {
	writer StatsWriter
	rdb    *redis.Client
	log    zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
	maxRetries   int
}

func NewStatsWorker(writer StatsWriter, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		writer:       writer,
		rdb:          rdb,
		log:          log.With().Str("component", "stats_worker").Logger(),
		batchSize:    StatsBatchSize,
		batchTimeout: StatsBatchTimeout,
		pollTimeout:  StatsPollTimeout,
		maxRetries:   StatsMaxRetries,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	batch := make([]model.QuestionOutcome, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistQuestionStatsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					// Back off so a dead Redis does not spin the loop.
					sleepCtx(ctx, w.pollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var o model.QuestionOutcome
			if err := json.Unmarshal([]byte(item[1]), &o); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, o)
		}
	}
}

// ----------------------------------------------------------------
// Batch write with per-item fallback
// ----------------------------------------------------------------

func (w *StatsWorker) flushSafe(ctx context.Context, batch []model.QuestionOutcome) {
	if len(batch) == 0 {
		return
	}

	if err := w.writer.BulkRecord(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("batch", len(batch)).Msg("Bulk stats update failed, using fallback")

		for _, o := range batch {
			if err := w.writer.RecordOne(ctx, o); err != nil {
				w.requeue(ctx, o, err)
			}
		}
		return
	}

	w.log.Debug().Int("batch", len(batch)).Msg("Question stats flushed")
}

// requeue pushes a failed outcome back onto the queue until it has used up
// its retries, then drops it.
func (w *StatsWorker) requeue(ctx context.Context, o model.QuestionOutcome, cause error) {
	o.Retries++
	logger := w.log.With().
		Str("question_id", o.QuestionID.String()).
		Str("exam_id", o.ExamID.String()).
		Int("retries", o.Retries).
		Logger()

	if o.Retries > w.maxRetries {
		logger.Error().Err(cause).Msg("RecordOne failed, retries exhausted, outcome dropped")
		return
	}

	logger.Warn().Err(cause).Msg("RecordOne failed, requeueing")
	raw, err := json.Marshal(o)
	if err != nil {
		logger.Error().Err(err).Msg("Encode failed, outcome dropped")
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, raw).Err(); err != nil {
		logger.Error().Err(err).Msg("Requeue failed, outcome dropped")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
