package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/config"
	"github.com/sells-group/makerhunt/internal/resilience"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "makerhunt",
	Short: "Maker discovery and enrichment pipeline",
	Long:  "Crawls product launch listings, resolves the makers behind them into person records, and enriches each person from social, code, paper, and web channels on a resumable task queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// Exit codes: 0 success, 1 generic failure, 2 configuration or credential
// failure (retrying cannot help), 3 transient failure with no progress made
// (a supervisor should retry later).
const (
	exitOK        = 0
	exitFailure   = 1
	exitFatal     = 2
	exitTransient = 3
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case resilience.IsAuth(err):
		return exitFatal
	case resilience.IsRateLimit(err), resilience.IsTransient(err):
		return exitTransient
	default:
		return exitFailure
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
