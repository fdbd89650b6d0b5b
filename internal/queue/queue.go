package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// ErrClosed is returned by Dequeue once a closed queue is drained.
var ErrClosed = errors.New("queue closed")

// ChannelQueue is an in-process queue used when sync-all and the workers
// share one process.
type ChannelQueue struct {
	jobs      chan models.Job
	closeOnce sync.Once
}

// NewChannelQueue creates an in-process queue holding up to buffer jobs.
func NewChannelQueue(buffer int) *ChannelQueue {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelQueue{jobs: make(chan models.Job, buffer)}
}

// Enqueue blocks while the buffer is full.
func (q *ChannelQueue) Enqueue(ctx context.Context, job models.Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (models.Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return models.Job{}, ErrClosed
		}
		return job, nil
	case <-ctx.Done():
		return models.Job{}, ctx.Err()
	}
}

// Close lets consumers drain the remaining jobs and then stop.
func (q *ChannelQueue) Close() error {
	q.closeOnce.Do(func() { close(q.jobs) })
	return nil
}

// Len returns the number of buffered jobs.
func (q *ChannelQueue) Len() int {
	return len(q.jobs)
}

// New builds the queue configured by cfg.
func New(cfg config.QueueConfig) (interfaces.JobQueue, error) {
	switch cfg.Backend {
	case "", config.QueueMemory:
		return NewChannelQueue(cfg.Buffer), nil
	case config.QueueRedis:
		q, err := NewRedisQueue(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
