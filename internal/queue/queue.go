// Package queue layers retry and backoff policy over the store's task
// operations. The store enforces the hard invariants (one active task per
// person and channel, exclusive claims, lease fencing); this package decides
// where a failing task goes next.
package queue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/resilience"
	"github.com/sells-group/makerhunt/internal/store"
)

// Queue coordinates enrichment task scheduling.
type Queue struct {
	store store.Store
	cfg   config.QueueConfig
	now   func() time.Time
}

// New creates a queue with the given policy knobs.
func New(s store.Store, cfg config.QueueConfig) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LeaseMinutes <= 0 {
		cfg.LeaseMinutes = 10
	}
	if cfg.BackoffBaseMS <= 0 {
		cfg.BackoffBaseMS = 2000
	}
	if cfg.BackoffCapMS <= 0 {
		cfg.BackoffCapMS = 300000
	}
	return &Queue{store: s, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue adds a task for (person, channel). A pending or processing task for
// the same pair already existing is a no-op, not an error; the bool reports
// whether a new task was created.
func (q *Queue) Enqueue(ctx context.Context, personID string, channel model.Channel, priority int, searchAfter time.Time) (*model.Task, bool, error) {
	task := &model.Task{
		PersonID:    personID,
		Channel:     channel,
		Priority:    priority,
		SearchAfter: searchAfter,
	}
	err := q.store.EnqueueTask(ctx, task)
	if eris.Is(err, resilience.ErrDuplicateActiveTask) {
		zap.L().Debug("queue: task already active",
			zap.String("person_id", personID),
			zap.String("channel", string(channel)),
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// Claim atomically takes the highest-priority claimable task for workerID, or
// returns nil when the queue is empty.
func (q *Queue) Claim(ctx context.Context, workerID string) (*model.Task, error) {
	return q.store.ClaimTask(ctx, workerID, time.Duration(q.cfg.LeaseMinutes)*time.Minute)
}

// Complete marks the task done. Fails with ErrLeaseLost if the lease was
// reclaimed while the worker held it.
func (q *Queue) Complete(ctx context.Context, task *model.Task) error {
	return q.store.CompleteTask(ctx, task.ID, task.LeaseToken)
}

// Fail routes a failed task by cause:
//
//   - rate limit: released back to pending after the source's advised delay
//     without consuming an attempt, since the task itself is fine;
//   - anything else: consumes an attempt, then pending with exponential
//     backoff while attempts remain, dead-lettered once they run out.
func (q *Queue) Fail(ctx context.Context, task *model.Task, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	var rl *resilience.RateLimitError
	if eris.As(cause, &rl) {
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = q.backoffDelay(task.Attempts)
		}
		zap.L().Warn("queue: releasing rate-limited task",
			zap.String("task_id", task.ID),
			zap.String("source", rl.Source),
			zap.Duration("delay", delay),
		)
		return q.store.TransitionTask(ctx, task.ID, task.LeaseToken, model.TaskPending, msg, q.now().Add(delay), false)
	}

	if task.Attempts+1 >= q.cfg.MaxAttempts {
		zap.L().Error("queue: task dead-lettered",
			zap.String("task_id", task.ID),
			zap.String("person_id", task.PersonID),
			zap.String("channel", string(task.Channel)),
			zap.Int("attempts", task.Attempts+1),
			zap.String("error", msg),
		)
		return q.store.TransitionTask(ctx, task.ID, task.LeaseToken, model.TaskDeadLettered, msg, time.Time{}, true)
	}

	delay := q.backoffDelay(task.Attempts)
	zap.L().Warn("queue: retrying task",
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.Attempts+1),
		zap.Duration("delay", delay),
		zap.String("error", msg),
	)
	return q.store.TransitionTask(ctx, task.ID, task.LeaseToken, model.TaskPending, msg, q.now().Add(delay), true)
}

// ReclaimExpired returns crashed workers' tasks to pending. Run this
// periodically from any process; it is safe to run concurrently.
func (q *Queue) ReclaimExpired(ctx context.Context) (int, error) {
	n, err := q.store.ReclaimExpiredTasks(ctx, q.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zap.L().Info("queue: reclaimed expired leases", zap.Int("count", n))
	}
	return n, nil
}

// Stats returns task counts by status.
func (q *Queue) Stats(ctx context.Context) (*model.QueueStats, error) {
	return q.store.QueueStats(ctx)
}

// backoffDelay doubles from the configured base per prior attempt, capped.
func (q *Queue) backoffDelay(attempts int) time.Duration {
	base := time.Duration(q.cfg.BackoffBaseMS) * time.Millisecond
	ceiling := time.Duration(q.cfg.BackoffCapMS) * time.Millisecond

	delay := base << attempts
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	return delay
}
