package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/pkg/serp"
)

// generalSearcher runs an open web search for interviews, writeups, and
// anything the scoped channels miss.
type generalSearcher struct {
	client serp.Client
	num    int
}

// NewGeneralSearcher creates the general web channel searcher.
func NewGeneralSearcher(client serp.Client) Searcher {
	return &generalSearcher{client: client, num: 10}
}

func (s *generalSearcher) Channel() model.Channel { return model.ChannelGeneral }
func (s *generalSearcher) Source() string         { return serp.Source }

func (s *generalSearcher) Search(ctx context.Context, p *model.Person, since time.Time) (*Result, error) {
	q := fmt.Sprintf("%q maker OR founder OR indie", p.Name)
	if p.Headline != "" {
		q = fmt.Sprintf("%q %q", p.Name, p.Headline)
	}

	results, err := s.client.Search(ctx, serp.Query{Q: q, Num: s.num, After: since})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: general search for %s", p.ID)
	}
	return fromOrganic(p, model.ChannelGeneral, q, results.Organic), nil
}
