package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Feed a recorded session through the gesture pipeline",
	Long: `Replay a session recorded with 'mudra run --record FILE'.

Each line of FILE is one detector result. The lines go through the same
feature, stabilizer and dispatch stages as live frames, using the
bindings from the config file. Plugin actions are logged, not run,
unless --execute is given. Use - to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().String("mode", "", "start in this binding mode")
	replayCmd.Flags().Bool("execute", false, "run plugin actions")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	execute, _ := cmd.Flags().GetBool("execute")

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening session: %w", err)
		}
		defer f.Close()
		in = f
	}

	quietLogs(io.Discard)

	a, err := app.New(app.Config{
		Settings: cfg,
		Detector: detector.NewMockDetector(),
		DryRun:   !execute,
	})
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer a.Close()

	if execute {
		if err := a.DiscoverPlugins(); err != nil {
			return fmt.Errorf("discovering plugins: %w", err)
		}
	}
	if err := a.LoadBindings(); err != nil {
		return err
	}
	if mode != "" {
		a.SetMode(mode)
	}

	out := cmd.OutOrStdout()
	a.OnFrame(func(res app.FrameResult) {
		if res.Change == nil {
			return
		}
		fmt.Fprintf(out, "frame %5d  %-9s -> %-9s  %-8s %s\n",
			res.Frame, res.Change.From, res.Change.To, res.Dispatch.Status, describe(res))
	})

	stats, err := a.Replay(in)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d frames, %d changes, %d fired", stats.Frames, stats.Changes, stats.Fired)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, ", %d unreadable lines skipped", stats.Skipped)
	}
	fmt.Fprintln(out)
	return nil
}

func describe(res app.FrameResult) string {
	s := res.Dispatch.Action
	if res.Dispatch.Switch != "" {
		s += " (mode " + res.Dispatch.Switch + ")"
	}
	return s
}
