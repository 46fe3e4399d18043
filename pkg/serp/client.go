// Package serp implements a client for the SerpAPI Google search proxy,
// used by the social and general enrichment channels.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com/search"

// Source is the name used for error classification and rate limiting.
const Source = "serp"

// Client executes search queries.
type Client interface {
	Search(ctx context.Context, q Query) (*Results, error)
}

// Query describes one search.
type Query struct {
	Q   string
	Num int

	// After restricts results to content after the given date using the
	// engine's custom date range filter. Zero means no restriction.
	After time.Time
}

// Results holds the organic results of a search.
type Results struct {
	Organic []OrganicResult `json:"organic_results"`
}

// OrganicResult is one search hit.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
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

func (c *httpClient) Search(ctx context.Context, q Query) (*Results, error) {
	num := q.Num
	if num <= 0 {
		num = 20
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("engine", "google")
	params.Set("q", q.Q)
	params.Set("num", strconv.Itoa(num))
	if !q.After.IsZero() {
		params.Set("tbs", dateFilter(q.After))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serp: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serp: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serp: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serp: unexpected status %d", resp.StatusCode)
		return nil, resilience.ClassifyHTTPStatus(Source, resp.StatusCode, err)
	}

	var results Results
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "serp: unmarshal response")
	}
	return &results, nil
}

// dateFilter formats a time as the engine's custom date range lower bound.
func dateFilter(after time.Time) string {
	return fmt.Sprintf("cdr:1,cd_min:%d/%d/%d", after.Month(), after.Day(), after.Year())
}
