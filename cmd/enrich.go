package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/enrich"
	"github.com/sells-group/makerhunt/internal/model"
	"github.com/sells-group/makerhunt/internal/queue"
	"github.com/sells-group/makerhunt/internal/ratelimit"
)

var (
	enrichPersonID    string
	enrichChannel     string
	enrichMinScore    int
	enrichLimit       int
	enrichIncremental bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Plan and enqueue enrichment tasks for stale channels",
	Long: `Walks stored persons and enqueues one task per enabled channel whose
watermark is older than the staleness cutoff. Enqueueing is idempotent: a
person/channel pair with a task already pending or processing is skipped.
With --person-id, plans a single person; adding --channel forces that one
channel regardless of staleness. With --incremental=false, tasks carry no
watermark and the channels are searched from scratch.

Run "makerhunt queue --process" afterward to work the queue.

Examples:
  makerhunt enrich
  makerhunt enrich --min-score 20 --limit 500
  makerhunt enrich --person-id 6b4f... --channel code --incremental=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enrichCfg := cfg.Enrich
		if cmd.Flags().Changed("min-score") {
			enrichCfg.MinScore = enrichMinScore
		}
		if enrichLimit > 0 {
			enrichCfg.Limit = enrichLimit
		}
		enrichCfg.FullSearch = !enrichIncremental

		limits := ratelimit.NewRegistry()
		registry := enrich.NewRegistry(cfg, limits)
		q := queue.New(st, cfg.Queue)
		orch := enrich.NewOrchestrator(st, q, registry, enrichCfg)

		if enrichPersonID != "" {
			p, err := st.GetPerson(ctx, enrichPersonID)
			if err != nil {
				return err
			}
			if p == nil {
				return eris.Errorf("enrich: person %s not found", enrichPersonID)
			}

			created := 0
			if enrichChannel != "" {
				ok, err := orch.EnqueueChannel(ctx, p, model.Channel(enrichChannel))
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			} else {
				if created, err = orch.EnqueueFor(ctx, p); err != nil {
					return err
				}
			}
			fmt.Printf("persons=1 enqueued=%d\n", created)
			return nil
		}
		if enrichChannel != "" {
			return eris.New("enrich: --channel requires --person-id")
		}

		persons, created, err := orch.EnqueueAll(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("enrichment planned", zap.Int("persons", persons), zap.Int("enqueued", created))
		fmt.Printf("persons=%d enqueued=%d\n", persons, created)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichPersonID, "person-id", "", "plan a single person")
	enrichCmd.Flags().StringVar(&enrichChannel, "channel", "", "with --person-id, force one channel: social, code, papers, general")
	enrichCmd.Flags().IntVar(&enrichMinScore, "min-score", 0, "skip persons below this score (overrides config)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max persons planned (overrides config)")
	enrichCmd.Flags().BoolVar(&enrichIncremental, "incremental", true, "carry watermarks so channels are searched incrementally")
	rootCmd.AddCommand(enrichCmd)
}
