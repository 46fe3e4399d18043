// Package producthunt implements a minimal GraphQL client for the Product
// Hunt v2 API, exposing the pagination contract the crawler depends on.
package producthunt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/resilience"
)

const defaultBaseURL = "https://api.producthunt.com/v2/api/graphql"

// Source is the name used for error classification and rate limiting.
const Source = "product_hunt"

// Client fetches pages of launches from the discovery source.
type Client interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// PageRequest describes one page fetch: a date window plus an opaque cursor
// within that window.
type PageRequest struct {
	PostedAfter  time.Time
	PostedBefore time.Time
	Cursor       string
	First        int
}

// Page is the result of one fetch.
type Page struct {
	Posts      []Post
	NextCursor string
	HasMore    bool
}

// Post is one launch listing with the people referenced on it.
type Post struct {
	ID            string
	Name          string
	Tagline       string
	Description   string
	Slug          string
	URL           string
	Website       string
	VotesCount    int
	CommentsCount int
	ReviewsRating float64
	ReviewsCount  int
	Topics        []string
	Makers        []Maker
	FeaturedAt    time.Time
	CreatedAt     time.Time
}

// Maker is a user node attached to a post.
type Maker struct {
	ID       string
	Name     string
	Username string
	Headline string
	Twitter  string
	Website  string
}

const postsQuery = `
query GetPosts($postedAfter: DateTime, $postedBefore: DateTime, $after: String, $first: Int) {
  posts(postedAfter: $postedAfter, postedBefore: $postedBefore, featured: true, order: VOTES, first: $first, after: $after) {
    edges {
      node {
        id
        name
        tagline
        description
        slug
        url
        website
        votesCount
        commentsCount
        reviewsRating
        reviewsCount
        featuredAt
        createdAt
        topics(first: 10) { edges { node { name } } }
        makers { id name username headline twitterUsername websiteUrl }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Product Hunt API client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type postsResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node postNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type postNode struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Tagline       string    `json:"tagline"`
	Description   string    `json:"description"`
	Slug          string    `json:"slug"`
	URL           string    `json:"url"`
	Website       string    `json:"website"`
	VotesCount    int       `json:"votesCount"`
	CommentsCount int       `json:"commentsCount"`
	ReviewsRating float64   `json:"reviewsRating"`
	ReviewsCount  int       `json:"reviewsCount"`
	FeaturedAt    time.Time `json:"featuredAt"`
	CreatedAt     time.Time `json:"createdAt"`
	Topics        struct {
		Edges []struct {
			Node struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"topics"`
	Makers []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		Headline        string `json:"headline"`
		TwitterUsername string `json:"twitterUsername"`
		WebsiteURL      string `json:"websiteUrl"`
	} `json:"makers"`
}

func (c *httpClient) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	first := req.First
	if first <= 0 {
		first = 20
	}

	vars := map[string]any{"first": first}
	if !req.PostedAfter.IsZero() {
		vars["postedAfter"] = req.PostedAfter.UTC().Format(time.RFC3339)
	}
	if !req.PostedBefore.IsZero() {
		vars["postedBefore"] = req.PostedBefore.UTC().Format(time.RFC3339)
	}
	if req.Cursor != "" {
		vars["after"] = req.Cursor
	}

	body, err := json.Marshal(graphqlRequest{Query: postsQuery, Variables: vars})
	if err != nil {
		return nil, eris.Wrap(err, "producthunt: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "producthunt: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "producthunt: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "producthunt: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("producthunt: unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
		return nil, resilience.ClassifyHTTPStatus(Source, resp.StatusCode, err)
	}

	var result postsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "producthunt: unmarshal response")
	}
	if len(result.Errors) > 0 {
		return nil, eris.Errorf("producthunt: graphql error: %s", result.Errors[0].Message)
	}

	page := &Page{
		HasMore:    result.Data.Posts.PageInfo.HasNextPage,
		NextCursor: result.Data.Posts.PageInfo.EndCursor,
	}
	for _, edge := range result.Data.Posts.Edges {
		page.Posts = append(page.Posts, toPost(edge.Node))
	}
	return page, nil
}

func toPost(n postNode) Post {
	p := Post{
		ID:            n.ID,
		Name:          n.Name,
		Tagline:       n.Tagline,
		Description:   n.Description,
		Slug:          n.Slug,
		URL:           n.URL,
		Website:       n.Website,
		VotesCount:    n.VotesCount,
		CommentsCount: n.CommentsCount,
		ReviewsRating: n.ReviewsRating,
		ReviewsCount:  n.ReviewsCount,
		FeaturedAt:    n.FeaturedAt,
		CreatedAt:     n.CreatedAt,
	}
	for _, t := range n.Topics.Edges {
		p.Topics = append(p.Topics, t.Node.Name)
	}
	for _, m := range n.Makers {
		p.Makers = append(p.Makers, Maker{
			ID:       m.ID,
			Name:     m.Name,
			Username: m.Username,
			Headline: m.Headline,
			Twitter:  m.TwitterUsername,
			Website:  m.WebsiteURL,
		})
	}
	return p
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
