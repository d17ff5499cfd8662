package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appsync "github.com/nhle/fossilsync/internal/sync"
	"github.com/nhle/fossilsync/internal/theme"
)

// PullCmd synchronizes targets into the task store.
var PullCmd = &cobra.Command{
	Use:   "pull [target...]",
	Short: "Synchronize open tickets into the task store",
	Long: `Fetch the open tickets of each target and reconcile them with the stored
tasks: new tickets are added, changed ones updated and tickets that are no
longer open are completed. Targets default to general.targets.`,
	RunE: runPull,
}

var pullEvery time.Duration

func init() {
	PullCmd.Flags().DurationVar(&pullEvery, "every", 0, "repeat the pull at this interval until interrupted")
}

func runPull(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.Targets(args...)
	if err != nil {
		return err
	}

	s, err := a.Store()
	if err != nil {
		return err
	}
	engine := appsync.New(s, a.Deps())

	out := cmd.OutOrStdout()
	if pullEvery <= 0 {
		report, err := engine.Pull(commandContext(cmd), targets)
		printReport(out, report)
		if err != nil {
			return fmt.Errorf("%d of %d targets failed", len(report.Failed()), len(targets))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Watch(ctx, targets, pullEvery, func(report appsync.Report, _ error) {
		printReport(out, report)
	})
	return nil
}

func printReport(w io.Writer, report appsync.Report) {
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", theme.ErrorStyle.Render("✗"), res.Target, res.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %d open, %d added, %d updated, %d completed (%s)\n",
			theme.SuccessStyle.Render("✓"), res.Target, res.Issues,
			res.Sync.Added, res.Sync.Updated, res.Sync.Completed,
			res.Duration.Round(time.Millisecond),
		)
	}
}

// commandContext returns the command context, or Background before
// Execute has set one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
