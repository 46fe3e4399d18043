package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/pkg/arxiv"
)

// papersSearcher finds a person's academic publications in the paper index.
type papersSearcher struct {
	client     arxiv.Client
	maxResults int
}

// NewPapersSearcher creates the papers channel searcher.
func NewPapersSearcher(client arxiv.Client) Searcher {
	return &papersSearcher{client: client, maxResults: 20}
}

func (s *papersSearcher) Channel() model.Channel { return model.ChannelPapers }
func (s *papersSearcher) Source() string         { return arxiv.Source }

func (s *papersSearcher) Search(ctx context.Context, p *model.Person, since time.Time) (*Result, error) {
	papers, err := s.client.SearchAuthor(ctx, p.Name, s.maxResults)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: paper search for %s", p.ID)
	}

	res := &Result{}
	for _, paper := range papers {
		if !since.IsZero() && !paper.Published.After(since) {
			continue
		}
		content := strings.TrimSpace(paper.Summary)
		if content == "" {
			content = paper.Title
		}
		res.Fragments = append(res.Fragments, model.Fragment{
			PersonID:    p.ID,
			Channel:     model.ChannelPapers,
			ContentHash: model.HashContent(model.ChannelPapers, paper.Link, content),
			Title:       paper.Title,
			Content:     content,
			URL:         paper.Link,
			Query:       p.Name,
			ContentTS:   paper.Published.UTC(),
		})
		if paper.Published.After(res.Latest) {
			res.Latest = paper.Published.UTC()
		}
	}
	return res, nil
}
