// Package github implements the slice of the GitHub REST API used by the
// code-hosting enrichment channel: user lookup, user search, repositories,
// and public events.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// Source is the name used for error classification and rate limiting.
const Source = "github"

// Client is the subset of the GitHub API the enricher needs.
type Client interface {
	User(ctx context.Context, username string) (*User, error)
	SearchUsers(ctx context.Context, query string, perPage int) ([]User, error)
	Repos(ctx context.Context, username string, perPage int) ([]Repo, error)
	Events(ctx context.Context, username string, perPage int) ([]Event, error)
}

// User is a GitHub account profile.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Email       string `json:"email"`
	Blog        string `json:"blog"`
	Twitter     string `json:"twitter_username"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Repo is a repository summary.
type Repo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event is one public activity event.
type Event struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
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

// NewClient creates a GitHub API client.
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

// ErrNotFound is returned for 404 responses; callers treat a missing user as
// an empty result, not a failure.
var ErrNotFound = eris.New("github: not found")

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "github: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		err := eris.Errorf("github: unexpected status %d for %s", resp.StatusCode, path)
		return resilience.ClassifyHTTPStatus(Source, resp.StatusCode, err)
	}

	return eris.Wrap(json.Unmarshal(body, out), "github: unmarshal response")
}

func (c *httpClient) User(ctx context.Context, username string) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/"+url.PathEscape(username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *httpClient) SearchUsers(ctx context.Context, query string, perPage int) ([]User, error) {
	if perPage <= 0 {
		perPage = 5
	}
	var result struct {
		Items []User `json:"items"`
	}
	path := fmt.Sprintf("/search/users?q=%s&per_page=%d", url.QueryEscape(query), perPage)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *httpClient) Repos(ctx context.Context, username string, perPage int) ([]Repo, error) {
	if perPage <= 0 {
		perPage = 10
	}
	var repos []Repo
	path := fmt.Sprintf("/users/%s/repos?sort=updated&per_page=%d", url.PathEscape(username), perPage)
	if err := c.get(ctx, path, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *httpClient) Events(ctx context.Context, username string, perPage int) ([]Event, error) {
	if perPage <= 0 {
		perPage = 30
	}
	var events []Event
	path := fmt.Sprintf("/users/%s/events/public?per_page=%d", url.PathEscape(username), perPage)
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}
