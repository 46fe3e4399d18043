package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/crawl"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/person"
	"github.com/sells-group/makerhunt/internal/ratelimit"
	"github.com/sells-group/makerhunt/pkg/producthunt"
)

var (
	crawlMode     string
	crawlMaxPosts int
	crawlDays     int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walk the launch listing and resolve makers into person records",
	Long: `Pages through the launch listing in one of two modes and stores launches,
maker associations, and the resolved person records.

Backfill walks day-sized windows backward from the oldest point already seen
until it reaches the configured floor. Incremental fetches everything newer
than the last run. Both modes commit a cursor with every page, so an
interrupted run resumes where it stopped.

Examples:
  makerhunt crawl --mode backfill
  makerhunt crawl --mode incremental --max-posts 200`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := model.CrawlMode(crawlMode)
		if !mode.Valid() {
			return eris.Errorf("crawl: unknown mode %q", crawlMode)
		}

		if cfg.ProductHunt.Token == "" {
			return eris.New("crawl: product hunt token not configured")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		limits := ratelimit.NewRegistry()
		limits.Register(producthunt.Source, cfg.ProductHunt.RPS, cfg.ProductHunt.Burst)

		crawlCfg := cfg.Crawl
		if crawlMaxPosts > 0 {
			crawlCfg.MaxPosts = crawlMaxPosts
		}
		if crawlDays > 0 {
			crawlCfg.FloorDays = crawlDays
		}

		client := producthunt.NewClient(cfg.ProductHunt.Token, producthunt.WithBaseURL(cfg.ProductHunt.BaseURL))
		resolver := person.NewResolver(st, person.PolicyLastWriteWins)
		crawler := crawl.NewCrawler(
			crawl.NewManager(st, crawlCfg),
			crawl.NewIngestor(resolver),
			client,
			limits,
			crawlCfg,
		)

		stats, err := crawler.Run(ctx, mode)
		if stats != nil {
			zap.L().Info("crawl finished",
				zap.String("mode", string(mode)),
				zap.Int("pages", stats.Pages),
				zap.Int("posts", stats.Posts),
				zap.Int("persons_created", stats.PersonsCreated),
				zap.Int("persons_matched", stats.PersonsMatched),
				zap.Int("skipped", stats.Skipped),
				zap.Bool("exhausted", stats.Exhausted),
			)
			fmt.Printf("pages=%d posts=%d created=%d matched=%d skipped=%d exhausted=%t\n",
				stats.Pages, stats.Posts, stats.PersonsCreated, stats.PersonsMatched, stats.Skipped, stats.Exhausted)
		}
		return err
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlMode, "mode", "incremental", "crawl mode: backfill or incremental")
	crawlCmd.Flags().IntVar(&crawlMaxPosts, "max-posts", 0, "stop after this many posts (0 = no limit)")
	crawlCmd.Flags().IntVar(&crawlDays, "days", 0, "backfill floor in days back from now (overrides config)")
	rootCmd.AddCommand(crawlCmd)
}
