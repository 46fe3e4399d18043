package crawl

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/ratelimit"
	"github.com/sells-group/makerhunt/internal/resilience"
	"github.com/sells-group/makerhunt/pkg/producthunt"
)

// Crawler runs one crawl invocation: page fetches through the discovery
// client, ingestion, and durable commits, until the mode is exhausted or the
// post budget runs out.
type Crawler struct {
	manager  *Manager
	ingestor *Ingestor
	client   producthunt.Client
	limits   *ratelimit.Registry
	cfg      config.CrawlConfig
}

// NewCrawler assembles a crawler.
func NewCrawler(m *Manager, in *Ingestor, client producthunt.Client, limits *ratelimit.Registry, cfg config.CrawlConfig) *Crawler {
	return &Crawler{manager: m, ingestor: in, client: client, limits: limits, cfg: cfg}
}

// RunStats summarizes one crawl invocation.
type RunStats struct {
	Pages          int
	Posts          int
	PersonsCreated int
	PersonsMatched int
	Skipped        int
	Exhausted      bool
}

// Run crawls until the mode reports no more windows, the configured post
// budget is reached, or the context is canceled. Progress committed before an
// error or cancellation survives: the next invocation resumes from the last
// committed page.
func (c *Crawler) Run(ctx context.Context, mode model.CrawlMode) (*RunStats, error) {
	stats := &RunStats{}

	for {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "crawl: canceled")
		}

		window, state, err := c.manager.Next(ctx, mode)
		if err != nil {
			return stats, err
		}
		if window == nil {
			stats.Exhausted = true
			zap.L().Info("crawl: exhausted",
				zap.String("source", c.cfg.Source),
				zap.String("mode", string(mode)),
			)
			return stats, nil
		}

		if err := c.limits.Wait(ctx, producthunt.Source); err != nil {
			return stats, eris.Wrap(err, "crawl: rate limit wait")
		}

		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.OnRetry = resilience.RetryLogger(producthunt.Source, "fetch page")
		page, err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) (*producthunt.Page, error) {
			return c.client.FetchPage(ctx, producthunt.PageRequest{
				PostedAfter:  window.PostedAfter,
				PostedBefore: window.PostedBefore,
				Cursor:       window.Cursor,
				First:        c.cfg.PageSize,
			})
		})
		if err != nil {
			if resilience.IsRateLimit(err) {
				c.limits.Backoff(producthunt.Source)
			}
			return stats, eris.Wrap(err, "crawl: fetch page")
		}

		launches, assocs, ingestStats, err := c.ingestor.Ingest(ctx, page.Posts)
		if err != nil {
			return stats, err
		}

		if _, err := c.manager.Commit(ctx, mode, window, state, PageResult{
			Launches:   launches,
			Assocs:     assocs,
			NextCursor: page.NextCursor,
			HasMore:    page.HasMore,
		}); err != nil {
			return stats, err
		}

		stats.Pages++
		stats.Posts += len(page.Posts)
		stats.PersonsCreated += ingestStats.PersonsCreated
		stats.PersonsMatched += ingestStats.PersonsMatched
		stats.Skipped += ingestStats.Skipped

		if c.cfg.MaxPosts > 0 && stats.Posts >= c.cfg.MaxPosts {
			zap.L().Info("crawl: post budget reached", zap.Int("posts", stats.Posts))
			return stats, nil
		}

		// Incremental mode covers a single forward window; once the
		// source has no more pages in it, the run is done.
		if mode == model.ModeIncremental && !page.HasMore {
			stats.Exhausted = true
			return stats, nil
		}
	}
}
