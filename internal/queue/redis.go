package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

const defaultPollTimeout = 5 * time.Second

// redisCommands is the subset of the go-redis client used by RedisQueue.
type redisCommands interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// RedisQueue is a FIFO list shared by the dispatcher and worker processes.
type RedisQueue struct {
	rdb         redisCommands
	key         string
	pollTimeout time.Duration
}

// NewRedisQueue connects to url and verifies the connection.
func NewRedisQueue(url string, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisQueue(rdb, key), nil
}

func newRedisQueue(rdb redisCommands, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, pollTimeout: defaultPollTimeout}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job, err)
	}
	return nil
}

// Dequeue polls with BRPOP until a job arrives or ctx is done.
func (q *RedisQueue) Dequeue(ctx context.Context) (models.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.Job{}, err
		}
		res, err := q.rdb.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return models.Job{}, ctx.Err()
			}
			return models.Job{}, fmt.Errorf("failed to dequeue: %w", err)
		}
		// BRPOP replies with [key, value].
		if len(res) != 2 {
			return models.Job{}, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
		}
		var job models.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return models.Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		return job, nil
	}
}

// Len returns the number of pending jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
