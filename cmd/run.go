package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podforge/digest-api/internal/logging"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/pipeline"
	"github.com/podforge/digest-api/pkg/config"
)

var (
	runPodcasts []string
	runDaysBack int
	runModeFlag string
	runDryRun   bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process recent episodes once and print the report",
	Long: `Fetch the recent episode window, process it through the digest
pipeline, and print the run report.

Without --podcasts the whole catalog is processed. --dry-run stops
after the fetch and prints the batch instead of processing it.

Example:
  digest-api run
  digest-api run --podcasts "Founders Weekly" --days-back 3
  digest-api run --mode test --dry-run`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runPodcasts, "podcasts", nil, "podcast names to process (default: whole catalog)")
	runCmd.Flags().IntVar(&runDaysBack, "days-back", 0, "fetch window in days (overrides config)")
	runCmd.Flags().StringVar(&runModeFlag, "mode", "", "processing mode: test or full (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "fetch and print the batch without processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Configure(cfg.Logging)

	modeStr := runModeFlag
	if modeStr == "" {
		modeStr = config.DefaultMode()
	}
	mode, err := models.ParseMode(modeStr)
	if err != nil {
		return err
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reapStaleRun(ctx, app.Runs)

	daysBack := runDaysBack
	if daysBack <= 0 {
		daysBack = cfg.Fetch.DaysBack
	}

	out := cmd.OutOrStdout()

	eps, err := app.Pipeline.ListRecentEpisodes(ctx, runPodcasts, daysBack, func(podcast string, index, total int) {
		fmt.Fprintf(out, "[%d/%d] %s\n", index, total, podcast)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d episodes published in the last %d days\n", len(eps), daysBack)

	if runDryRun {
		for _, ep := range eps {
			fmt.Fprintf(out, "  %s / %s (%s)\n", ep.Podcast, ep.Title, ep.Published.Format("2006-01-02"))
		}
		return nil
	}

	result, err := app.Pipeline.ProcessEpisodes(ctx, eps, mode, eventPrinter(out))
	if err != nil {
		return err
	}

	// The one-shot has no background sweeper; sweep once before exit.
	app.Cleanup.Sweep(context.Background())

	printRunReport(out, result, mode)
	return nil
}

// eventPrinter prints stage transitions compactly. It runs on pipeline
// worker goroutines, so each event is a single write.
func eventPrinter(w io.Writer) pipeline.ProgressFunc {
	return func(ev pipeline.Event) {
		switch ev.State {
		case pipeline.StateStarted:
			fmt.Fprintf(w, "  %-10s %s\n", ev.Stage, ev.Title)
		case pipeline.StateCached:
			fmt.Fprintf(w, "  %-10s %s (cached)\n", ev.Stage, ev.Title)
		case pipeline.StateFailed:
			fmt.Fprintf(w, "  %-10s %s: %s\n", ev.Stage, ev.Title, ev.Error)
		}
	}
}

func printRunReport(w io.Writer, result *pipeline.RunResult, mode models.Mode) {
	fmt.Fprintf(w, "\nRun %d finished in %s mode: %d processed, %d failed\n",
		result.RunID, mode, result.Processed, result.Failed)
	if result.Cancelled {
		fmt.Fprintln(w, "The run was cancelled before completing.")
	}

	podcasts := make([]string, 0, len(result.Summaries))
	for name := range result.Summaries {
		podcasts = append(podcasts, name)
	}
	sort.Strings(podcasts)

	for _, name := range podcasts {
		fmt.Fprintf(w, "\n%s\n", name)
		for _, summary := range result.Summaries[name] {
			fmt.Fprintf(w, "  %s\n    %s\n", summary.Title, summary.Paragraph)
		}
	}
}
