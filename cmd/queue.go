package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/enrich"
	"github.com/sells-group/makerhunt/internal/queue"
	"github.com/sells-group/makerhunt/internal/ratelimit"
)

var (
	queueStatus  bool
	queueProcess bool
	queueWorkers int
	queueLimit   int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or process the enrichment task queue",
	Long: `Without flags, prints the per-status task counts. With --process, runs a
worker pool that claims tasks, executes the channel searches, and drains the
queue until no claimable work remains. Expired leases are reclaimed as the
pool runs, so tasks abandoned by a crashed worker are picked up again.

Examples:
  makerhunt queue --status
  makerhunt queue --process --workers 8 --limit 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		q := queue.New(st, cfg.Queue)

		if !queueProcess {
			stats, err := q.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pending=%d processing=%d completed=%d failed=%d dead_lettered=%d\n",
				stats.Pending, stats.Processing, stats.Completed, stats.Failed, stats.DeadLettered)
			return nil
		}

		workers := cfg.Queue.Workers
		if queueWorkers > 0 {
			workers = queueWorkers
		}
		if workers <= 0 {
			workers = 4
		}

		before, err := q.Stats(ctx)
		if err != nil {
			return err
		}

		limits := ratelimit.NewRegistry()
		registry := enrich.NewRegistry(cfg, limits)
		orch := enrich.NewOrchestrator(st, q, registry, cfg.Enrich)
		pool := enrich.NewPool(workers, st, q, registry, orch, limits)
		pool.Limit = queueLimit

		processed, drainErr := pool.Drain(ctx)

		after, err := q.Stats(ctx)
		if err != nil {
			return err
		}
		succeeded := after.Completed - before.Completed
		deadLettered := after.DeadLettered - before.DeadLettered
		retried := processed - succeeded - deadLettered

		zap.L().Info("queue drained",
			zap.Int("workers", workers),
			zap.Int("processed", processed),
			zap.Int("succeeded", succeeded),
			zap.Int("retried", retried),
			zap.Int("dead_lettered", deadLettered),
		)
		fmt.Printf("processed=%d succeeded=%d retried=%d dead_lettered=%d\n",
			processed, succeeded, retried, deadLettered)
		return drainErr
	},
}

func init() {
	queueCmd.Flags().BoolVar(&queueStatus, "status", false, "print per-status task counts (the default)")
	queueCmd.Flags().BoolVar(&queueProcess, "process", false, "run workers until the queue is drained")
	queueCmd.Flags().IntVar(&queueWorkers, "workers", 0, "worker count (overrides config)")
	queueCmd.Flags().IntVar(&queueLimit, "limit", 0, "stop after this many tasks (0 = drain fully)")
	rootCmd.AddCommand(queueCmd)
}
