package enrich

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/queue"
	"github.com/sells-group/makerhunt/internal/store"
)

var orchNow = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

// stubSearcher satisfies Searcher with canned results.
type stubSearcher struct {
	channel model.Channel
	result  *Result
	err     error
	calls   atomic.Int32
}

func (s *stubSearcher) Channel() model.Channel { return s.channel }
func (s *stubSearcher) Source() string         { return "stub-" + string(s.channel) }
func (s *stubSearcher) Search(_ context.Context, _ *model.Person, _ time.Time) (*Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &Result{}, nil
	}
	return s.result, nil
}

func allStubSearchers() []Searcher {
	out := make([]Searcher, 0, len(model.AllChannels))
	for _, c := range model.AllChannels {
		out = append(out, &stubSearcher{channel: c})
	}
	return out
}

func newTestOrchestrator(t *testing.T, reg *Registry, cfg config.EnrichConfig) (*Orchestrator, *queue.Queue, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	q := queue.New(s, config.QueueConfig{})
	o := NewOrchestrator(s, q, reg, cfg)
	o.now = func() time.Time { return orchNow }
	return o, q, s
}

func TestPlanStaleness(t *testing.T) {
	reg := NewRegistryFromSearchers(allStubSearchers()...)
	o, _, _ := newTestOrchestrator(t, reg, config.EnrichConfig{StalenessDays: 7})

	p := &model.Person{
		ID: "p1",
		Watermarks: map[model.Channel]time.Time{
			model.ChannelSocial: orchNow.Add(-time.Hour),           // fresh
			model.ChannelCode:   orchNow.Add(-30 * 24 * time.Hour), // stale
			// papers and general never searched
		},
	}

	got := o.Plan(p)
	assert.ElementsMatch(t,
		[]model.Channel{model.ChannelCode, model.ChannelPapers, model.ChannelGeneral},
		got)
}

func TestPlanSkipsDisabledChannels(t *testing.T) {
	reg := NewRegistryFromSearchers(&stubSearcher{channel: model.ChannelPapers})
	o, _, _ := newTestOrchestrator(t, reg, config.EnrichConfig{})

	got := o.Plan(&model.Person{ID: "p1"})
	assert.Equal(t, []model.Channel{model.ChannelPapers}, got)
}

func TestEnqueueForCarriesWatermarkAndPriority(t *testing.T) {
	reg := NewRegistryFromSearchers(allStubSearchers()...)
	o, _, s := newTestOrchestrator(t, reg, config.EnrichConfig{StalenessDays: 7})
	ctx := context.Background()

	p := &model.Person{Name: "Ada", PlatformID: "ph-1", ImportanceScore: 42}
	require.NoError(t, s.CreatePerson(ctx, p))

	stale := orchNow.Add(-30 * 24 * time.Hour)
	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, model.ChannelSocial, stale))
	p, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)

	n, err := o.EnqueueFor(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Re-planning is a no-op while those tasks are active.
	n, err = o.EnqueueFor(ctx, p)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The stale channel's task carries its old watermark as search_after.
	q := queue.New(s, config.QueueConfig{})
	for {
		task, err := q.Claim(ctx, "w1")
		require.NoError(t, err)
		if task == nil {
			break
		}
		assert.Equal(t, 42, task.Priority)
		if task.Channel == model.ChannelSocial {
			assert.True(t, task.SearchAfter.Equal(stale))
		} else {
			assert.True(t, task.SearchAfter.IsZero())
		}
	}
}

func TestEnqueueAllSkipsFreshWatermarks(t *testing.T) {
	reg := NewRegistryFromSearchers(allStubSearchers()...)
	o, q, s := newTestOrchestrator(t, reg, config.EnrichConfig{StalenessDays: 7})
	ctx := context.Background()

	fresh := orchNow.Add(-time.Hour)
	stale := orchNow.Add(-30 * 24 * time.Hour)

	ada := &model.Person{Name: "Ada", PlatformID: "ph-1"}
	require.NoError(t, s.CreatePerson(ctx, ada))
	for _, c := range model.AllChannels {
		require.NoError(t, s.AdvanceWatermark(ctx, ada.ID, c, fresh))
	}

	grace := &model.Person{Name: "Grace", PlatformID: "ph-2"}
	require.NoError(t, s.CreatePerson(ctx, grace))
	for _, c := range model.AllChannels {
		wm := fresh
		if c == model.ChannelCode {
			wm = stale
		}
		require.NoError(t, s.AdvanceWatermark(ctx, grace.ID, c, wm))
	}

	// Only Grace's one stale channel needs work; everything searched within
	// the staleness interval stays untouched.
	persons, created, err := o.EnqueueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, persons)
	assert.Equal(t, 1, created)

	task, err := q.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, grace.ID, task.PersonID)
	assert.Equal(t, model.ChannelCode, task.Channel)
	assert.True(t, task.SearchAfter.Equal(stale))

	task, err = q.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestAdvanceWatermarkMaxRule(t *testing.T) {
	reg := NewRegistryFromSearchers(allStubSearchers()...)
	o, _, s := newTestOrchestrator(t, reg, config.EnrichConfig{})
	ctx := context.Background()

	p := &model.Person{Name: "Ada", PlatformID: "ph-1"}
	require.NoError(t, s.CreatePerson(ctx, p))

	taskStart := orchNow
	content := orchNow.Add(2 * time.Hour)

	// Content newer than the task start wins.
	require.NoError(t, o.advanceWatermark(ctx, p.ID, model.ChannelSocial, content, taskStart))
	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Watermarks[model.ChannelSocial].Equal(content))

	// A quiet channel still advances to the task start time.
	require.NoError(t, o.advanceWatermark(ctx, p.ID, model.ChannelCode, time.Time{}, taskStart))
	got, err = s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Watermarks[model.ChannelCode].Equal(taskStart))

	// An out-of-order completion with an older start never regresses.
	require.NoError(t, o.advanceWatermark(ctx, p.ID, model.ChannelSocial, time.Time{}, taskStart.Add(-time.Hour)))
	got, err = s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Watermarks[model.ChannelSocial].Equal(content))
}
