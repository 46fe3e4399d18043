// Package arxiv implements a client for the arXiv Atom query API, used by
// the papers enrichment channel.
package arxiv

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/makerhunt/internal/resilience"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// Source is the name used for error classification and rate limiting.
const Source = "arxiv"

// Client searches the paper index by author.
type Client interface {
	SearchAuthor(ctx context.Context, author string, maxResults int) ([]Paper, error)
}

// Paper is one indexed paper.
type Paper struct {
	ID         string
	Title      string
	Summary    string
	Authors    []string
	Categories []string
	Link       string
	Published  time.Time
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
	baseURL string
	http    *http.Client
}

// NewClient creates an arXiv API client. The endpoint is public and
// unauthenticated.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Atom feed wire types.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []author   `xml:"author"`
	Categories []category `xml:"category"`
	Links      []link     `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

type link struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

func (c *httpClient) SearchAuthor(ctx context.Context, authorName string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("search_query", "au:"+normalizeAuthor(authorName))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("arxiv: unexpected status %d", resp.StatusCode)
		return nil, resilience.ClassifyHTTPStatus(Source, resp.StatusCode, err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, eris.Wrap(err, "arxiv: parse feed")
	}

	papers := make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		if len(papers) >= maxResults {
			break
		}
		papers = append(papers, toPaper(e))
	}
	return papers, nil
}

func toPaper(e entry) Paper {
	p := Paper{
		ID:      e.ID,
		Title:   strings.Join(strings.Fields(e.Title), " "),
		Summary: strings.TrimSpace(e.Summary),
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, a.Name)
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		if l.Type == "text/html" {
			p.Link = l.Href
			break
		}
	}
	if p.Link == "" {
		p.Link = e.ID
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		p.Published = t
	}
	return p
}

// normalizeAuthor converts "John Doe" to "john_doe" for the author query
// field. Diacritics are stripped because the index stores ASCII-folded
// author names.
func normalizeAuthor(name string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}
