package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/makerhunt/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ada", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		w.Write([]byte(`{
			"login": "ada",
			"name": "Ada Lovelace",
			"bio": "first programmer",
			"blog": "https://ada.dev",
			"twitter_username": "ada_makes",
			"public_repos": 12,
			"followers": 400
		}`))
	})

	u, err := c.User(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Login)
	assert.Equal(t, "first programmer", u.Bio)
	assert.Equal(t, "ada_makes", u.Twitter)
	assert.Equal(t, 400, u.Followers)
}

func TestUserNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	})

	_, err := c.User(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/users", r.URL.Path)
		assert.Equal(t, "Ada Lovelace", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))

		w.Write([]byte(`{"total_count": 1, "items": [{"login": "ada"}]}`))
	})

	users, err := c.SearchUsers(context.Background(), "Ada Lovelace", 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Login)
}

func TestRepos(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ada/repos", r.URL.Path)
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))

		w.Write([]byte(`[
			{"name": "engine", "description": "analytical engine", "language": "Go", "stargazers_count": 99, "updated_at": "2025-08-10T00:00:00Z"},
			{"name": "notes", "stargazers_count": 3, "updated_at": "2024-01-01T00:00:00Z"}
		]`))
	})

	repos, err := c.Repos(context.Background(), "ada", 10)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "engine", repos[0].Name)
	assert.Equal(t, 99, repos[0].Stars)
}

func TestEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ada/events/public", r.URL.Path)
		w.Write([]byte(`[{"type": "PushEvent", "created_at": "2025-08-12T09:30:00Z"}]`))
	})

	events, err := c.Events(context.Background(), "ada", 30)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PushEvent", events[0].Type)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"403 is auth", http.StatusForbidden, func(t *testing.T, err error) {
			assert.True(t, resilience.IsAuth(err))
		}},
		{"429 is rate limit", http.StatusTooManyRequests, func(t *testing.T, err error) {
			assert.True(t, resilience.IsRateLimit(err))
		}},
		{"502 is transient", http.StatusBadGateway, func(t *testing.T, err error) {
			assert.True(t, resilience.IsTransient(err))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.User(context.Background(), "ada")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
