package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/person"
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Recompute importance scores for every stored person",
	Long: `Recomputes each person's importance score from their launch history,
identity coverage, and accumulated knowledge fragments, and persists any
score that changed. Scores feed task priority, so run this before a large
enqueue to process the most notable makers first.

Example:
  makerhunt scores`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		changed, err := person.NewScorer(st).RescoreAll(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("rescore finished", zap.Int("changed", changed))
		fmt.Printf("changed=%d\n", changed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoresCmd)
}
