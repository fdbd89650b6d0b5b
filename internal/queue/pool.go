package queue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

const dequeueRetryDelay = time.Second

// Handler processes one job. It reports its own failures; a failing job
// never stops the pool.
type Handler func(ctx context.Context, job models.Job)

// Consume dequeues jobs and runs handle on at most workers of them at a time.
// It returns nil once a closed queue is drained, or ctx.Err() after
// cancellation. In both cases running handlers are waited for.
func Consume(ctx context.Context, q interfaces.JobQueue, workers int, handle Handler) error {
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	var stopErr error
	for {
		job, err := q.Dequeue(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				stopErr = ctx.Err()
				break
			}
			// Malformed payloads and transient broker errors are skipped.
			logrus.WithError(err).Warn("⚠ Failed to dequeue job")
			select {
			case <-ctx.Done():
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}

		g.Go(func() error {
			handle(ctx, job)
			return nil
		})
	}

	_ = g.Wait()
	return stopErr
}
