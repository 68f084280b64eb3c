package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/model"
)

// RedisStatsPublisher queues question outcomes for the statistics worker.
type RedisStatsPublisher struct {
	rdb *redis.Client
}

// NewRedisStatsPublisher creates a new RedisStatsPublisher.
func NewRedisStatsPublisher(rdb *redis.Client) *RedisStatsPublisher {
	return &RedisStatsPublisher{rdb: rdb}
}

// Publish appends every outcome to the stats queue in one round trip.
func (p *RedisStatsPublisher) Publish(ctx context.Context, outcomes []model.QuestionOutcome) error {
	values := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		raw, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		values = append(values, raw)
	}
	if len(values) == 0 {
		return nil
	}
	if err := p.rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, values...).Err(); err != nil {
		return fmt.Errorf("push question outcomes: %w", err)
	}
	return nil
}
