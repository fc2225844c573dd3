package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suykerbuyk/verve/internal/config"
	"github.com/suykerbuyk/verve/internal/logging"
	"github.com/suykerbuyk/verve/internal/profile"
)

const version = "0.1.0"

var (
	verbose bool
	learner string

	cfg    config.Config
	logger *zap.Logger
)

// exitError carries a non-zero exit status without an error message, e.g.
// when check has already printed its report.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:   "verve",
	Short: "verve - stress-aware adaptive practice",
	Long: `verve watches interaction telemetry for signs of frustration, moves the
learner between VERVE, AURA and FORGE modes, and serves practice problems from
a static bank, an LLM generator, or built-in templates.

Configuration: ~/.config/verve/config.toml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&learner, "learner", profile.DefaultLearner, "learner profile to use")

	rootCmd.AddCommand(
		initCmd,
		checkCmd,
		replayCmd,
		nextCmd,
		practiceCmd,
		statsCmd,
		versionCmd,
		manCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "verve: %v\n", err)
		os.Exit(1)
	}
}
