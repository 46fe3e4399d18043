package producthunt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestFetchPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cursor-abc", req.Variables["after"])
		assert.Equal(t, "2025-08-14T00:00:00Z", req.Variables["postedAfter"])
		assert.Equal(t, float64(25), req.Variables["first"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"data": {
				"posts": {
					"edges": [{
						"node": {
							"id": "post-1",
							"name": "Widget",
							"tagline": "A widget",
							"slug": "widget",
							"votesCount": 120,
							"featuredAt": "2025-08-14T08:00:00Z",
							"createdAt": "2025-08-14T07:00:00Z",
							"topics": {"edges": [{"node": {"name": "productivity"}}, {"node": {"name": "ai"}}]},
							"makers": [{
								"id": "user-1",
								"name": "Ada",
								"username": "ada",
								"twitterUsername": "ada_makes",
								"websiteUrl": "https://ada.dev"
							}]
						}
					}],
					"pageInfo": {"hasNextPage": true, "endCursor": "cursor-def"}
				}
			}
		}`))
	})

	page, err := c.FetchPage(context.Background(), PageRequest{
		PostedAfter: time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC),
		Cursor:      "cursor-abc",
		First:       25,
	})
	require.NoError(t, err)

	assert.True(t, page.HasMore)
	assert.Equal(t, "cursor-def", page.NextCursor)
	require.Len(t, page.Posts, 1)

	post := page.Posts[0]
	assert.Equal(t, "post-1", post.ID)
	assert.Equal(t, 120, post.VotesCount)
	assert.Equal(t, []string{"productivity", "ai"}, post.Topics)
	require.Len(t, post.Makers, 1)
	assert.Equal(t, "ada_makes", post.Makers[0].Twitter)
}

func TestFetchPageOmitsEmptyVariables(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotContains(t, req.Variables, "after")
		assert.NotContains(t, req.Variables, "postedAfter")
		assert.NotContains(t, req.Variables, "postedBefore")
		assert.Equal(t, float64(20), req.Variables["first"])

		w.Write([]byte(`{"data": {"posts": {"edges": [], "pageInfo": {"hasNextPage": false, "endCursor": ""}}}}`))
	})

	page, err := c.FetchPage(context.Background(), PageRequest{})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Posts)
}

func TestFetchPageGraphQLError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "rate limit budget exhausted"}]}`))
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit budget exhausted")
}

func TestFetchPageStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "429 is a rate limit",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.True(t, resilience.IsRateLimit(err))
			},
		},
		{
			name:   "401 is an auth failure",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, resilience.IsAuth(err))
			},
		},
		{
			name:   "503 is transient",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.True(t, resilience.IsTransient(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.FetchPage(context.Background(), PageRequest{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
