package person

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewResolver(s, PolicyLastWriteWins), s
}

func TestResolveCreatesNewPerson(t *testing.T) {
	r, _ := newTestResolver(t)

	p, created, err := r.Resolve(context.Background(), model.Candidate{
		Name:       "Ada",
		PlatformID: "ph-1",
		Twitter:    "adabuilds",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "adabuilds", p.Twitter)
}

func TestResolveIsIdempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	c := model.Candidate{Name: "Ada", PlatformID: "ph-1"}
	first, created, err := r.Resolve(ctx, c)
	require.NoError(t, err)
	assert.True(t, created)

	// Re-processing the same page resolves to the same person.
	second, created, err := r.Resolve(ctx, c)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveMatchPriorityOrder(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	byPlatform := &model.Person{Name: "A", PlatformID: "ph-1"}
	require.NoError(t, s.CreatePerson(ctx, byPlatform))
	byGitHub := &model.Person{Name: "B", GitHub: "shared"}
	require.NoError(t, s.CreatePerson(ctx, byGitHub))

	// A candidate carrying both keys matches on platform id first.
	got, created, err := r.Resolve(ctx, model.Candidate{
		Name:       "A",
		PlatformID: "ph-1",
		GitHub:     "shared",
		Twitter:    "newhandle",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, byPlatform.ID, got.ID)

	// The merge filled in the candidate's extra handle.
	assert.Equal(t, "newhandle", got.Twitter)
}

func TestResolveMergesWithoutErasing(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	existing := &model.Person{Name: "Ada", PlatformID: "ph-1", Headline: "Original"}
	require.NoError(t, s.CreatePerson(ctx, existing))

	// Candidate with empty headline does not erase the stored one.
	got, _, err := r.Resolve(ctx, model.Candidate{Name: "Ada", PlatformID: "ph-1"})
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Headline)
}

func TestMergePolicies(t *testing.T) {
	base := func() *model.Person {
		return &model.Person{Name: "Old Name", Twitter: "oldhandle"}
	}

	p := base()
	changed := Merge(p, model.Candidate{Name: "New Name", GitHub: "gh"}, PolicyLastWriteWins)
	assert.True(t, changed)
	assert.Equal(t, "New Name", p.Name)
	assert.Equal(t, "oldhandle", p.Twitter)
	assert.Equal(t, "gh", p.GitHub)

	p = base()
	changed = Merge(p, model.Candidate{Name: "New Name", GitHub: "gh"}, PolicyKeepExisting)
	assert.True(t, changed)
	assert.Equal(t, "Old Name", p.Name)
	assert.Equal(t, "gh", p.GitHub)

	// Identical values are not a change.
	p = base()
	assert.False(t, Merge(p, model.Candidate{Name: "Old Name"}, PolicyLastWriteWins))
}
