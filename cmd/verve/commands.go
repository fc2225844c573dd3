package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/verve/internal/check"
	"github.com/suykerbuyk/verve/internal/config"
	"github.com/suykerbuyk/verve/internal/manpage"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/profile"
	"github.com/suykerbuyk/verve/internal/signal"
	"github.com/suykerbuyk/verve/internal/stress"
)

var initDataDir string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and create the data directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := initDataDir
		if dataDir == "" {
			dataDir = cfg.DataDir
		}
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return err
		}

		path, action, err := config.WriteDefault(abs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action, path)

		for _, dir := range []string{abs, filepath.Join(abs, "bank"), filepath.Join(abs, "journal")} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "data: %s\n", config.CompressHome(abs))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate config, data directories and content sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := check.Run(cfg)
		fmt.Fprint(cmd.OutOrStdout(), report.Format())
		if report.HasFailures() {
			return exitError{code: 1}
		}
		return nil
	},
}

var replayMode string

var replayCmd = &cobra.Command{
	Use:   "replay <trace.jsonl>",
	Short: "Feed a recorded telemetry trace through a session",
	Long: `Replay classifies a JSONL telemetry trace in virtual time and prints every
stress change and mode transition. Trace lines look like

  {"t":0,"kind":"move","x":10,"y":20}
  {"t":120,"kind":"click"}

where t is milliseconds since the start of the trace. A final
{"t":N,"kind":"end"} line marks when the recording stopped so a quiet
stretch at the end still counts as a stall.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var start mode.Mode
		if replayMode != "" {
			if start, err = mode.ParseMode(replayMode); err != nil {
				return err
			}
		}

		base := time.Unix(0, 0).UTC()
		rt, err := newRuntime(cmd.Context(), runtimeOptions{
			offline: true,
			replay:  true,
			clock:   func() time.Time { return base },
			mode:    start,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		st := rt.sess.State()
		fmt.Fprintf(out, "%9s  mode %s level %d\n", offset(0), st.Mode, st.Level)

		rt.sess.OnTransition(func(ch mode.Change) {
			if !ch.ModeChanged() && ch.From.Level == ch.To.Level {
				return
			}
			at := rt.sess.Stress().ComputedAt.Sub(base)
			fmt.Fprintf(out, "%9s  mode %s -> %s level %d (%s)\n",
				offset(at), ch.From.Mode, ch.To.Mode, ch.To.Level, ch.Reason)
		})
		rt.sess.OnStressChange(func(r stress.Reading) {
			fmt.Fprintf(out, "%9s  %s\n", offset(r.ComputedAt.Sub(base)), r)
		})

		if err := rt.sess.Replay(cmd.Context(), signal.NewReplaySource(f, base)); err != nil {
			return fmt.Errorf("replay %s: %w", args[0], err)
		}
		st = rt.sess.State()
		fmt.Fprintf(out, "final: mode %s level %d\n", st.Mode, st.Level)
		return nil
	},
}

func offset(d time.Duration) string {
	return fmt.Sprintf("+%.3fs", d.Seconds())
}

var (
	nextMode    string
	nextOffline bool
)

var nextCmd = &cobra.Command{
	Use:   "next <node>",
	Short: "Resolve one problem for a curriculum node and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var start mode.Mode
		if nextMode != "" {
			m, err := mode.ParseMode(nextMode)
			if err != nil {
				return err
			}
			start = m
		}

		rt, err := newRuntime(cmd.Context(), runtimeOptions{
			hydrate: true,
			offline: nextOffline,
			mode:    start,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		spec, err := rt.sess.NextProblem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the learner profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if _, err := os.Stat(cfg.Profile.Path); err != nil {
			fmt.Fprintf(out, "no profile at %s\n", config.CompressHome(cfg.Profile.Path))
			return nil
		}
		store, err := profile.Open(cfg.Profile.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		sum, err := store.Summary(cmd.Context(), learner)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "learner:   %s\n", sum.Learner)
		fmt.Fprintf(out, "mode:      %s level %d\n", sum.Mode, sum.Level)
		fmt.Fprintf(out, "attempts:  %d\n", sum.Attempts)
		fmt.Fprintf(out, "correct:   %d (%.0f%%)\n", sum.Correct, sum.Accuracy()*100)
		for _, p := range provenances {
			if n := sum.ByProvenance[p]; n > 0 {
				fmt.Fprintf(out, "  %-9s %d\n", p, n)
			}
		}
		if !sum.LastAnswered.IsZero() {
			fmt.Fprintf(out, "last:      %s\n", sum.LastAnswered.Local().Format(time.RFC3339))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "verve v%s\n", version)
	},
}

var manCmd = &cobra.Command{
	Use:    "man [dir]",
	Short:  "Write man pages for every command",
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "man"
		if len(args) > 0 {
			dir = args[0]
		}
		paths, err := manpage.WriteDir(cmd.Root(), dir, "", version)
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
		}
		return err
	},
}

var provenances = []problem.Provenance{
	problem.ProvenanceStatic,
	problem.ProvenanceAI,
	problem.ProvenanceTemplate,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "", "data directory (default from config)")
	replayCmd.Flags().StringVar(&replayMode, "mode", "", "starting mode (VERVE, AURA or FORGE)")
	nextCmd.Flags().StringVar(&nextMode, "mode", "", "starting mode (VERVE, AURA or FORGE)")
	nextCmd.Flags().BoolVar(&nextOffline, "offline", false, "skip the LLM generator")
}
