package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/queue"
	"github.com/sells-group/makerhunt/internal/store"
)

// Orchestrator decides which channels need work for which persons and
// enqueues tasks. Watermarks gate planning only; a person's score orders the
// queue but never blocks enqueueing.
type Orchestrator struct {
	store    store.Store
	queue    *queue.Queue
	registry *Registry
	cfg      config.EnrichConfig
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(s store.Store, q *queue.Queue, r *Registry, cfg config.EnrichConfig) *Orchestrator {
	if cfg.StalenessDays <= 0 {
		cfg.StalenessDays = 7
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10000
	}
	return &Orchestrator{
		store:    s,
		queue:    q,
		registry: r,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Plan returns the enabled channels needing work for p: those never searched
// or whose watermark is older than the staleness interval.
func (o *Orchestrator) Plan(p *model.Person) []model.Channel {
	cutoff := o.now().Add(-time.Duration(o.cfg.StalenessDays) * 24 * time.Hour)

	var channels []model.Channel
	for _, c := range model.AllChannels {
		if !o.registry.Enabled(c) {
			continue
		}
		wm, ok := p.Watermark(c)
		if !ok || wm.Before(cutoff) {
			channels = append(channels, c)
		}
	}
	return channels
}

// EnqueueFor plans and enqueues tasks for one person. Each task carries
// search_after = the channel's current watermark (zero for a full search) and
// priority = the person's importance score. Returns the number of tasks newly
// enqueued; already-active duplicates count as planned but not created.
func (o *Orchestrator) EnqueueFor(ctx context.Context, p *model.Person) (int, error) {
	created := 0
	for _, c := range o.Plan(p) {
		ok, err := o.EnqueueChannel(ctx, p, c)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// EnqueueChannel enqueues one channel for p regardless of staleness. The
// task carries the channel's watermark as its search cutoff unless a full
// search is configured.
func (o *Orchestrator) EnqueueChannel(ctx context.Context, p *model.Person, c model.Channel) (bool, error) {
	if !o.registry.Enabled(c) {
		return false, eris.Errorf("enrich: channel %s disabled", c)
	}
	var wm time.Time
	if !o.cfg.FullSearch {
		wm, _ = p.Watermark(c)
	}
	_, ok, err := o.queue.Enqueue(ctx, p.ID, c, p.ImportanceScore, wm)
	if err != nil {
		return false, eris.Wrapf(err, "enrich: enqueue %s/%s", p.ID, c)
	}
	return ok, nil
}

// EnqueueAll plans work for every person at or above the configured minimum
// score. Returns persons considered and tasks created.
func (o *Orchestrator) EnqueueAll(ctx context.Context) (int, int, error) {
	persons, err := o.store.ListPersons(ctx, store.PersonFilter{MinScore: o.cfg.MinScore, Limit: o.cfg.Limit})
	if err != nil {
		return 0, 0, eris.Wrap(err, "enrich: list persons")
	}

	total := 0
	for i := range persons {
		n, err := o.EnqueueFor(ctx, &persons[i])
		if err != nil {
			return len(persons), total, err
		}
		total += n
	}
	zap.L().Info("enrich: planned work",
		zap.Int("persons", len(persons)),
		zap.Int("tasks", total),
	)
	return len(persons), total, nil
}

// advanceWatermark moves the channel watermark to the max of its current
// value, the newest content timestamp observed, and the task start time. The
// start-time floor means a channel with zero new results still advances, so a
// quiet channel is not re-searched forever; the max rule means late or
// out-of-order completions never regress it.
func (o *Orchestrator) advanceWatermark(ctx context.Context, personID string, channel model.Channel, latest, taskStart time.Time) error {
	ts := taskStart
	if latest.After(ts) {
		ts = latest
	}
	return o.store.AdvanceWatermark(ctx, personID, channel, ts)
}
