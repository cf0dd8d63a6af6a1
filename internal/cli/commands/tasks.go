package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/format"
	"github.com/gridsight-dev/gridsight/internal/cli/portal"
)

type progressOptions struct {
	watch    bool
	interval time.Duration
}

// NewTasksCmd creates the tasks command group
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Follow or cancel batch recognition tasks",
	}

	var opts progressOptions
	progressCmd := &cobra.Command{
		Use:   "progress <task-id>",
		Short: "Show the progress of a batch task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskProgress(cmd.Context(), args[0], opts, WithServer(serverFlag(cmd)))
		},
	}
	progressCmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep polling until the task finishes")
	progressCmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Polling interval with --watch")

	cmd.AddCommand(progressCmd, &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a running batch task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskCancel(cmd.Context(), args[0], WithServer(serverFlag(cmd)))
		},
	})

	return cmd
}

func runTaskProgress(ctx context.Context, taskID string, opts progressOptions, extra ...Option) error {
	if opts.watch && opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}

	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if !opts.watch {
		p, err := s.portal.Progress(ctx, taskID)
		if err != nil {
			return err
		}
		s.printProgress(*p)
		return nil
	}

	_, err = s.portal.WatchProgress(ctx, taskID, opts.interval, s.printProgress)
	return err
}

func (r *stack) printProgress(p portal.TaskProgress) {
	r.printf("[%s] file %d/%d %s  %.1f%% overall, started %s\n",
		p.Stage, p.CurrentFileIndex, p.TotalFiles, p.CurrentFileName, p.OverallProgress, format.Ago(p.StartTime))
}

func runTaskCancel(ctx context.Context, taskID string, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	msg, err := s.portal.Cancel(ctx, taskID)
	if err != nil {
		return err
	}
	s.printf("✓ %s\n", msg)
	return nil
}
