package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/pkg/serp"
)

// socialSearcher finds social profile mentions through the SERP proxy,
// scoped to the major social sites.
type socialSearcher struct {
	client serp.Client
	num    int
}

// NewSocialSearcher creates the social channel searcher.
func NewSocialSearcher(client serp.Client) Searcher {
	return &socialSearcher{client: client, num: 10}
}

func (s *socialSearcher) Channel() model.Channel { return model.ChannelSocial }
func (s *socialSearcher) Source() string         { return serp.Source }

func (s *socialSearcher) Search(ctx context.Context, p *model.Person, since time.Time) (*Result, error) {
	q := fmt.Sprintf("%q (site:twitter.com OR site:x.com OR site:linkedin.com)", p.Name)
	if p.Twitter != "" {
		q = fmt.Sprintf("%q OR %q (site:twitter.com OR site:x.com)", p.Name, "@"+p.Twitter)
	}

	results, err := s.client.Search(ctx, serp.Query{Q: q, Num: s.num, After: since})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: social search for %s", p.ID)
	}
	return fromOrganic(p, model.ChannelSocial, q, results.Organic), nil
}

// fromOrganic converts SERP hits into fragments, shared by the social and
// general channels.
func fromOrganic(p *model.Person, channel model.Channel, query string, hits []serp.OrganicResult) *Result {
	res := &Result{}
	for _, hit := range hits {
		content := hit.Snippet
		if content == "" {
			content = hit.Title
		}
		if content == "" {
			continue
		}

		ts := parseResultDate(hit.Date)
		res.Fragments = append(res.Fragments, model.Fragment{
			PersonID:    p.ID,
			Channel:     channel,
			ContentHash: model.HashContent(channel, hit.Link, content),
			Title:       hit.Title,
			Content:     content,
			URL:         hit.Link,
			Query:       query,
			ContentTS:   ts,
		})
		if ts.After(res.Latest) {
			res.Latest = ts
		}
	}
	return res
}

// resultDateFormats covers the date strings the SERP proxy emits.
var resultDateFormats = []string{
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02",
}

func parseResultDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range resultDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
