package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/person"
	"github.com/sells-group/makerhunt/internal/queue"
	"github.com/sells-group/makerhunt/internal/ratelimit"
	"github.com/sells-group/makerhunt/internal/resilience"
	"github.com/sells-group/makerhunt/internal/store"
)

// Worker claims queued tasks and runs them through the channel searchers.
// All result writes are fenced by the task's lease token; a worker that lost
// its lease mid-flight can still write fragments (they deduplicate) and
// advance the watermark (it only moves forward), but cannot complete the task.
type Worker struct {
	id       string
	store    store.Store
	queue    *queue.Queue
	registry *Registry
	orch     *Orchestrator
	limits   *ratelimit.Registry
	breakers *resilience.BreakerSet
	now      func() time.Time
}

// NewWorker creates a worker with the given id.
func NewWorker(id string, s store.Store, q *queue.Queue, r *Registry, o *Orchestrator, limits *ratelimit.Registry) *Worker {
	return &Worker{
		id:       id,
		store:    s,
		queue:    q,
		registry: r,
		orch:     o,
		limits:   limits,
		breakers: resilience.NewBreakerSet(resilience.DefaultBreakerThreshold),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOne claims and processes a single task. Returns false when the queue had
// nothing claimable. Task-level failures are routed through the queue's retry
// policy and do not surface as errors; only infrastructure failures do.
func (w *Worker) RunOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Claim(ctx, w.id)
	if err != nil {
		return false, eris.Wrap(err, "enrich: claim")
	}
	if task == nil {
		return false, nil
	}
	return true, w.process(ctx, task)
}

func (w *Worker) process(ctx context.Context, task *model.Task) error {
	taskStart := w.now()

	p, err := w.store.GetPerson(ctx, task.PersonID)
	if err != nil {
		return eris.Wrapf(err, "enrich: load person %s", task.PersonID)
	}
	if p == nil {
		return w.queue.Fail(ctx, task, eris.Errorf("person %s not found", task.PersonID))
	}

	searcher := w.registry.Get(task.Channel)
	if searcher == nil {
		return w.queue.Fail(ctx, task, eris.Errorf("channel %s disabled", task.Channel))
	}

	if err := w.limits.Wait(ctx, searcher.Source()); err != nil {
		return eris.Wrap(err, "enrich: rate limit wait")
	}

	result, err := searcher.Search(ctx, p, task.SearchAfter)
	if err != nil {
		switch {
		case resilience.IsAuth(err):
			// The credential is bad for every task on this channel,
			// not just this one. Stop claiming them.
			zap.L().Error("enrich: disabling channel after auth failure",
				zap.String("channel", string(task.Channel)),
				zap.Error(err),
			)
			w.registry.Disable(task.Channel)
		case resilience.IsRateLimit(err):
			// Backoff handles this; a crowded rate window says nothing
			// about the channel's health.
			w.limits.Backoff(searcher.Source())
		default:
			if w.breakers.For(string(task.Channel)).Record(err) {
				// A run of failures with no success in between
				// means the channel itself is broken, not the
				// individual tasks.
				zap.L().Error("enrich: disabling channel after repeated failures",
					zap.String("channel", string(task.Channel)),
					zap.Error(err),
				)
				w.registry.Disable(task.Channel)
			}
		}
		return w.queue.Fail(ctx, task, err)
	}
	w.breakers.For(string(task.Channel)).Record(nil)

	if result.Contact != nil && person.Merge(p, *result.Contact, person.PolicyKeepExisting) {
		if err := w.store.UpdatePerson(ctx, p); err != nil {
			if eris.Is(err, store.ErrIdentityConflict) {
				// The handle the channel reported already belongs to
				// another person. Keep the fragments, drop the merge.
				zap.L().Warn("enrich: contact merge hit identity conflict",
					zap.String("person_id", p.ID),
					zap.String("channel", string(task.Channel)),
				)
			} else {
				return w.queue.Fail(ctx, task, eris.Wrap(err, "merge contact"))
			}
		}
	}

	inserted := 0
	for i := range result.Fragments {
		ok, err := w.store.InsertFragment(ctx, &result.Fragments[i])
		if err != nil {
			return w.queue.Fail(ctx, task, eris.Wrap(err, "store fragment"))
		}
		if ok {
			inserted++
		}
	}

	if err := w.orch.advanceWatermark(ctx, p.ID, task.Channel, result.Latest, taskStart); err != nil {
		return w.queue.Fail(ctx, task, eris.Wrap(err, "advance watermark"))
	}

	if err := w.queue.Complete(ctx, task); err != nil {
		if eris.Is(err, resilience.ErrLeaseLost) {
			// Another worker will redo the task; everything this one
			// wrote is idempotent, so just log and move on.
			zap.L().Warn("enrich: lease lost at completion",
				zap.String("worker_id", w.id),
				zap.String("task_id", task.ID),
			)
			return nil
		}
		return eris.Wrapf(err, "enrich: complete task %s", task.ID)
	}

	zap.L().Info("enrich: task complete",
		zap.String("worker_id", w.id),
		zap.String("person_id", p.ID),
		zap.String("channel", string(task.Channel)),
		zap.Int("fragments", len(result.Fragments)),
		zap.Int("inserted", inserted),
	)
	return nil
}

// Pool runs a fixed set of workers that drain the queue concurrently, with a
// periodic lease-reclaim sweep alongside them.
type Pool struct {
	workers []*Worker
	queue   *queue.Queue

	// SweepInterval controls how often expired leases are reclaimed.
	SweepInterval time.Duration

	// Limit stops the drain after this many tasks. Zero means drain until
	// the queue is empty.
	Limit int
}

// NewPool creates n workers sharing the given dependencies.
func NewPool(n int, s store.Store, q *queue.Queue, r *Registry, o *Orchestrator, limits *ratelimit.Registry) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{queue: q, SweepInterval: time.Minute}
	// A shared breaker set means five failures across the pool trip a
	// channel, not five per worker.
	breakers := resilience.NewBreakerSet(resilience.DefaultBreakerThreshold)
	for i := 0; i < n; i++ {
		w := NewWorker(fmt.Sprintf("worker-%d", i), s, q, r, o, limits)
		w.breakers = breakers
		p.workers = append(p.workers, w)
	}
	return p
}

// Drain processes tasks until the queue is empty or ctx is canceled. Returns
// the number of tasks processed.
func (p *Pool) Drain(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The reclaim sweep runs beside the workers and stops with them.
	go func() {
		ticker := time.NewTicker(p.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.queue.ReclaimExpired(ctx); err != nil {
					zap.L().Warn("enrich: reclaim sweep failed", zap.Error(err))
				}
			}
		}
	}()

	var (
		mu    sync.Mutex
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			for {
				mu.Lock()
				capped := p.Limit > 0 && total >= p.Limit
				mu.Unlock()
				if capped {
					return nil
				}
				ok, err := w.RunOne(gctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				mu.Lock()
				total++
				mu.Unlock()
			}
		})
	}

	err := g.Wait()
	return total, err
}
