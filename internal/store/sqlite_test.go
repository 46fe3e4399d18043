package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/resilience"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPerson(t *testing.T, s *SQLiteStore, name string) *model.Person {
	t.Helper()
	p := &model.Person{Name: name, PlatformID: "ph-" + name}
	require.NoError(t, s.CreatePerson(context.Background(), p))
	return p
}

func TestPersonRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.Person{
		Name:       "Ada Builder",
		Headline:   "Builds things",
		PlatformID: "ph-123",
		Twitter:    "adabuilds",
		GitHub:     "ada",
	}
	require.NoError(t, s.CreatePerson(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada Builder", got.Name)
	assert.Equal(t, "ph-123", got.PlatformID)
	assert.Equal(t, "adabuilds", got.Twitter)

	got.Headline = "Ships things"
	require.NoError(t, s.UpdatePerson(ctx, got))

	got, err = s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ships things", got.Headline)
}

func TestGetPersonMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetPerson(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindPersonByIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.Person{Name: "Ada", PlatformID: "ph-1", GitHub: "ada"}
	require.NoError(t, s.CreatePerson(ctx, p))

	got, err := s.FindPersonByIdentity(ctx, model.SystemGitHub, "ada")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)

	// Empty identity keys never match anything.
	got, err = s.FindPersonByIdentity(ctx, model.SystemTwitter, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.FindPersonByIdentity(ctx, model.SystemGitHub, "someone-else")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreatePersonIdentityConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePerson(ctx, &model.Person{Name: "A", GitHub: "same"}))
	err := s.CreatePerson(ctx, &model.Person{Name: "B", GitHub: "same"})
	require.ErrorIs(t, err, ErrIdentityConflict)

	// Empty identity columns do not collide.
	require.NoError(t, s.CreatePerson(ctx, &model.Person{Name: "C"}))
	require.NoError(t, s.CreatePerson(ctx, &model.Person{Name: "D"}))
}

func TestListPersonsOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := seedPerson(t, s, "low")
	high := seedPerson(t, s, "high")
	require.NoError(t, s.UpdateImportanceScore(ctx, low.ID, 5))
	require.NoError(t, s.UpdateImportanceScore(ctx, high.ID, 50))

	all, err := s.ListPersons(ctx, PersonFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)

	top, err := s.ListPersons(ctx, PersonFilter{MinScore: 10})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, high.ID, top[0].ID)
}

func TestListPersonsLoadsWatermarks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedPerson(t, s, "a")
	b := seedPerson(t, s, "b")
	wm := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AdvanceWatermark(ctx, a.ID, model.ChannelCode, wm))

	persons, err := s.ListPersons(ctx, PersonFilter{})
	require.NoError(t, err)
	require.Len(t, persons, 2)

	byID := make(map[string]model.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}
	pa := byID[a.ID]
	got, ok := pa.Watermark(model.ChannelCode)
	require.True(t, ok)
	assert.Equal(t, wm, got)
	pb := byID[b.ID]
	_, ok = pb.Watermark(model.ChannelCode)
	assert.False(t, ok)
}

func TestAdvanceWatermarkMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "wm")

	t1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, model.ChannelSocial, t1))
	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, model.ChannelSocial, t2))
	// An out-of-order advance with an older timestamp is a no-op.
	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, model.ChannelSocial, t1))

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Watermarks[model.ChannelSocial].Equal(t2))

	// Channels advance independently.
	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, model.ChannelCode, t1))
	got, err = s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Watermarks[model.ChannelCode].Equal(t1))
	assert.True(t, got.Watermarks[model.ChannelSocial].Equal(t2))
}

func TestCrawlStateLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetCrawlState(ctx, "product_hunt")
	require.NoError(t, err)
	assert.Nil(t, got)

	cs, err := s.InitCrawlState(ctx, "product_hunt")
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, model.CrawlActive, cs.Status)
	assert.True(t, cs.OldestSeen.IsZero())

	// Init is idempotent.
	again, err := s.InitCrawlState(ctx, "product_hunt")
	require.NoError(t, err)
	assert.Equal(t, cs.Source, again.Source)

	require.NoError(t, s.SetCrawlStatus(ctx, "product_hunt", model.CrawlPaused))
	got, err = s.GetCrawlState(ctx, "product_hunt")
	require.NoError(t, err)
	assert.Equal(t, model.CrawlPaused, got.Status)
}

func TestCommitCrawlPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "maker")

	_, err := s.InitCrawlState(ctx, "product_hunt")
	require.NoError(t, err)

	launch := model.Launch{
		ID:         "post-1",
		Name:       "Widget",
		Slug:       "widget",
		VotesCount: 42,
		Topics:     []string{"ai", "dev-tools"},
		CreatedAt:  time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	state := model.CrawlState{
		Source:     "product_hunt",
		OldestSeen: launch.CreatedAt,
		NewestSeen: launch.CreatedAt,
		Cursor:     "abc",
		Status:     model.CrawlActive,
	}
	assocs := []model.LaunchAssociation{{PersonID: p.ID, LaunchID: "post-1", Role: "maker"}}

	require.NoError(t, s.CommitCrawlPage(ctx, state, []model.Launch{launch}, assocs))

	got, err := s.GetCrawlState(ctx, "product_hunt")
	require.NoError(t, err)
	assert.True(t, got.OldestSeen.Equal(launch.CreatedAt))
	assert.Equal(t, "abc", got.Cursor)

	// Re-committing the same page after a crash changes nothing.
	require.NoError(t, s.CommitCrawlPage(ctx, state, []model.Launch{launch}, assocs))

	n, err := s.CountLaunches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.PersonLaunchStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LaunchCount)
	assert.Equal(t, 42, stats.TotalVotes)
	assert.True(t, stats.LastLaunch.Equal(launch.CreatedAt))
}

func TestPersonLaunchStatsPicksNewestLaunch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "maker")

	_, err := s.InitCrawlState(ctx, "product_hunt")
	require.NoError(t, err)

	older := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 7, 20, 18, 30, 0, 0, time.UTC)
	launches := []model.Launch{
		{ID: "post-1", Name: "First", Slug: "first", VotesCount: 10, CreatedAt: older},
		{ID: "post-2", Name: "Second", Slug: "second", VotesCount: 5, CreatedAt: newer},
	}
	assocs := []model.LaunchAssociation{
		{PersonID: p.ID, LaunchID: "post-1", Role: "maker"},
		{PersonID: p.ID, LaunchID: "post-2", Role: "maker"},
	}
	state := model.CrawlState{Source: "product_hunt", Status: model.CrawlActive}
	require.NoError(t, s.CommitCrawlPage(ctx, state, launches, assocs))

	stats, err := s.PersonLaunchStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.LaunchCount)
	assert.Equal(t, 15, stats.TotalVotes)
	assert.True(t, stats.LastLaunch.Equal(newer))

	// No maker rows means zero stats, not an error.
	other := seedPerson(t, s, "bystander")
	stats, err = s.PersonLaunchStats(ctx, other.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.LaunchCount)
	assert.True(t, stats.LastLaunch.IsZero())
}

func TestEnqueueTaskDuplicateActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "q")

	first := &model.Task{PersonID: p.ID, Channel: model.ChannelSocial}
	require.NoError(t, s.EnqueueTask(ctx, first))

	dup := &model.Task{PersonID: p.ID, Channel: model.ChannelSocial}
	require.ErrorIs(t, s.EnqueueTask(ctx, dup), resilience.ErrDuplicateActiveTask)

	// A different channel for the same person is fine.
	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p.ID, Channel: model.ChannelCode}))

	// Once the first task reaches a terminal state a new one is allowed.
	claimed, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, s.CompleteTask(ctx, claimed.ID, claimed.LeaseToken))

	if claimed.Channel == model.ChannelSocial {
		require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p.ID, Channel: model.ChannelSocial}))
	}
}

func TestClaimTaskOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p1 := seedPerson(t, s, "p1")
	p2 := seedPerson(t, s, "p2")

	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p1.ID, Channel: model.ChannelSocial, Priority: 1}))
	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p2.ID, Channel: model.ChannelSocial, Priority: 9}))

	got, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p2.ID, got.PersonID)
	assert.Equal(t, model.TaskProcessing, got.Status)
	assert.NotEmpty(t, got.LeaseToken)
	assert.False(t, got.LeaseExpiresAt.IsZero())

	got, err = s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p1.ID, got.PersonID)

	// Queue drained.
	got, err = s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimSkipsDelayedTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "delayed")

	task := &model.Task{
		PersonID:    p.ID,
		Channel:     model.ChannelSocial,
		AvailableAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.EnqueueTask(ctx, task))

	got, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLeaseFencing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "fence")

	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p.ID, Channel: model.ChannelSocial}))
	claimed, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// A stale token cannot complete or transition the task.
	require.ErrorIs(t, s.CompleteTask(ctx, claimed.ID, "stale-token"), resilience.ErrLeaseLost)
	require.ErrorIs(t,
		s.TransitionTask(ctx, claimed.ID, "stale-token", model.TaskPending, "x", time.Time{}, true),
		resilience.ErrLeaseLost)

	require.NoError(t, s.CompleteTask(ctx, claimed.ID, claimed.LeaseToken))

	// The real token is one-shot: the task is no longer processing.
	require.ErrorIs(t, s.CompleteTask(ctx, claimed.ID, claimed.LeaseToken), resilience.ErrLeaseLost)
}

func TestTransitionTaskRetryAndDeadLetter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "retry")

	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p.ID, Channel: model.ChannelPapers}))

	claimed, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	delay := time.Now().Add(2 * time.Second)
	require.NoError(t, s.TransitionTask(ctx, claimed.ID, claimed.LeaseToken, model.TaskPending, "boom", delay, true))

	got, err := s.GetTask(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "boom", got.LastError)
	assert.Empty(t, got.LeaseToken)

	// Rate-limit style release: status resets without consuming an attempt.
	got.AvailableAt = time.Now().Add(-time.Second)
	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET available_at = ? WHERE id = ?`, got.AvailableAt, got.ID)
	require.NoError(t, err)
	claimed, err = s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, s.TransitionTask(ctx, claimed.ID, claimed.LeaseToken, model.TaskPending, "rate limited", time.Time{}, false))
	got, err = s.GetTask(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	// Exhausted tasks land in the dead letter state.
	claimed, err = s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, s.TransitionTask(ctx, claimed.ID, claimed.LeaseToken, model.TaskDeadLettered, "gave up", time.Time{}, true))
	got, err = s.GetTask(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskDeadLettered, got.Status)
}

func TestReclaimExpiredTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "expire")

	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p.ID, Channel: model.ChannelSocial}))
	claimed, err := s.ClaimTask(ctx, "w1", 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	n, err := s.ReclaimExpiredTasks(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetTask(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, got.Status)
	assert.Empty(t, got.LeaseToken)

	// The original holder's token is now useless.
	require.ErrorIs(t, s.CompleteTask(ctx, claimed.ID, claimed.LeaseToken), resilience.ErrLeaseLost)
}

func TestQueueStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p1 := seedPerson(t, s, "s1")
	p2 := seedPerson(t, s, "s2")

	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p1.ID, Channel: model.ChannelSocial}))
	require.NoError(t, s.EnqueueTask(ctx, &model.Task{PersonID: p2.ID, Channel: model.ChannelSocial}))

	claimed, err := s.ClaimTask(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(ctx, claimed.ID, claimed.LeaseToken))

	stats, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Processing)
}

func TestInsertFragmentDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPerson(t, s, "frag")

	f := &model.Fragment{
		PersonID:    p.ID,
		Channel:     model.ChannelSocial,
		Content:     "a great interview",
		URL:         "https://example.com/post",
		ContentHash: model.HashContent(model.ChannelSocial, "https://example.com/post", "a great interview"),
	}
	inserted, err := s.InsertFragment(ctx, f)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &model.Fragment{
		PersonID:    p.ID,
		Channel:     model.ChannelSocial,
		Content:     "a great interview",
		URL:         "https://example.com/post",
		ContentHash: f.ContentHash,
	}
	inserted, err = s.InsertFragment(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountFragments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The same content for a different person is a distinct fragment.
	other := seedPerson(t, s, "other")
	inserted, err = s.InsertFragment(ctx, &model.Fragment{
		PersonID:    other.ID,
		Channel:     model.ChannelSocial,
		Content:     "a great interview",
		URL:         "https://example.com/post",
		ContentHash: f.ContentHash,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}
