package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/verve/internal/content"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/signal"
)

var (
	practiceCount   int
	practiceOffline bool
)

var practiceCmd = &cobra.Command{
	Use:   "practice <node>",
	Short: "Work through problems for a curriculum node",
	Long: `Practice shows one problem at a time and grades the answer typed on
stdin. Progress is saved to the learner profile and the session journal.
Type "q" or send EOF to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx, runtimeOptions{
			persist: true,
			offline: practiceOffline,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())

		rt.sess.OnModeChange(func(m mode.Mode, lvl mode.Level) {
			fmt.Fprintf(out, "-- now in %s, support level %d\n", m, lvl)
		})

		st := rt.sess.State()
		fmt.Fprintf(out, "learner %s: %s, support level %d\n", learner, st.Mode, st.Level)

		answered, correct := 0, 0
		for practiceCount <= 0 || answered < practiceCount {
			spec, err := rt.sess.NextProblem(ctx, args[0])
			if errors.Is(err, content.ErrSuperseded) {
				continue
			}
			if err != nil {
				return err
			}
			showProblem(out, answered+1, spec)

			answer, ok := readAnswer(in, out)
			if !ok {
				break
			}
			rt.sess.Ingest(signal.Sample{Kind: signal.KindKey})
			answer = chooseOption(spec, answer)

			res, err := rt.sess.ReportAnswer(spec.ID, answer)
			if err != nil {
				return err
			}
			answered++
			if res.Correct {
				correct++
				fmt.Fprintf(out, "correct (streak %d)\n", res.Streak)
			} else {
				fmt.Fprintf(out, "not quite: the answer is %s\n", spec.AnswerKey)
				if spec.Explanation != "" {
					fmt.Fprintf(out, "  %s\n", spec.Explanation)
				}
				for _, step := range spec.SolutionSteps {
					fmt.Fprintf(out, "  - %s\n", step)
				}
			}
		}

		fmt.Fprintf(out, "\n%d/%d correct\n", correct, answered)
		if rt.journal != nil {
			fmt.Fprintf(out, "journal: %s\n", rt.journal.Path())
		}
		return nil
	},
}

func showProblem(w io.Writer, n int, spec problem.Spec) {
	fmt.Fprintf(w, "\n[%d] %s (difficulty %d, %s)\n", n, spec.Prompt, spec.Difficulty, spec.Provenance)
	if spec.RequiresTool {
		fmt.Fprintln(w, "    scratch paper recommended")
	}
	for i, opt := range spec.Options {
		fmt.Fprintf(w, "    %c) %s\n", 'a'+i, opt)
	}
}

// readAnswer prompts for one line. It reports false on EOF or "q".
func readAnswer(in *bufio.Scanner, out io.Writer) (string, bool) {
	fmt.Fprint(out, "> ")
	if !in.Scan() {
		return "", false
	}
	answer := strings.TrimSpace(in.Text())
	if strings.EqualFold(answer, "q") {
		return "", false
	}
	return answer, true
}

// chooseOption maps an option letter to its text for multiple choice.
func chooseOption(spec problem.Spec, answer string) string {
	if len(answer) != 1 || !spec.MultipleChoice() {
		return answer
	}
	i := int(strings.ToLower(answer)[0] - 'a')
	if i < 0 || i >= len(spec.Options) {
		return answer
	}
	return spec.Options[i]
}

func init() {
	practiceCmd.Flags().IntVarP(&practiceCount, "count", "n", 0, "stop after this many answers (0 means until EOF)")
	practiceCmd.Flags().BoolVar(&practiceOffline, "offline", false, "skip the LLM generator")
}
