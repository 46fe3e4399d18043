package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store and queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		persons, err := st.CountPersons(ctx)
		if err != nil {
			return err
		}
		launches, err := st.CountLaunches(ctx)
		if err != nil {
			return err
		}
		fragments, err := st.CountFragments(ctx, "")
		if err != nil {
			return err
		}
		qs, err := st.QueueStats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("persons=%d launches=%d fragments=%d\n", persons, launches, fragments)
		fmt.Printf("tasks: pending=%d processing=%d completed=%d failed=%d dead_lettered=%d\n",
			qs.Pending, qs.Processing, qs.Completed, qs.Failed, qs.DeadLettered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
