package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/makerhunt/internal/store"
)

var (
	personsLimit    int
	personsMinScore int
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "List stored persons ordered by importance score",
	Long: `Prints stored person records, highest importance score first.

Examples:
  makerhunt persons --limit 20
  makerhunt persons --min-score 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		persons, err := st.ListPersons(ctx, store.PersonFilter{
			MinScore: personsMinScore,
			Limit:    personsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tNAME\tTWITTER\tGITHUB\tID")
		for _, p := range persons {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ImportanceScore, p.Name, p.Twitter, p.GitHub, p.ID)
		}
		return w.Flush()
	},
}

func init() {
	personsCmd.Flags().IntVar(&personsLimit, "limit", 50, "maximum rows to print")
	personsCmd.Flags().IntVar(&personsMinScore, "min-score", 0, "hide persons below this score")
	rootCmd.AddCommand(personsCmd)
}
