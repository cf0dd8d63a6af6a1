package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/format"
	"github.com/gridsight-dev/gridsight/internal/cli/portal"
)

type listOptions struct {
	page  int
	limit int
	csv   bool
}

func (o listOptions) query() portal.PageQuery {
	return portal.PageQuery{Page: o.page, Limit: o.limit}
}

func addListFlags(cmd *cobra.Command, opts *listOptions) {
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Items per page")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "Write CSV instead of a table")
}

// NewUserCmd creates the user command group
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect your own account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show quotas and usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserInfo(cmd.Context(), WithServer(serverFlag(cmd)))
		},
	})

	var logOpts listOptions
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List your recognition history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserLogs(cmd.Context(), logOpts, WithServer(serverFlag(cmd)))
		},
	}
	addListFlags(logsCmd, &logOpts)
	cmd.AddCommand(logsCmd)

	return cmd
}

func runUserInfo(ctx context.Context, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	info, err := s.portal.Info(ctx)
	if err != nil {
		return err
	}

	perms, err := s.portal.CheckPermissions(ctx)
	if err != nil {
		return err
	}

	s.printf("User:     %s (id %d)\n", info.Username, info.ID)
	s.printf("Images:   %s remaining, %d used (%d%% left, %s)\n",
		format.Quota(info.ImageLimit), info.ImageUsed,
		format.UsagePercentage(info.ImageLimit, info.ImageUsed),
		format.ProgressLevel(info.ImageLimit, info.ImageUsed))
	s.printf("Batches:  %s remaining, %d used (%d%% left, %s)\n",
		format.Quota(info.BatchLimit), info.BatchUsed,
		format.UsagePercentage(info.BatchLimit, info.BatchUsed),
		format.ProgressLevel(info.BatchLimit, info.BatchUsed))
	s.printf("Realtime: %s\n", yesNo(perms.RealtimePermission == 1))
	s.printf("Banned:   %s\n", yesNo(perms.IsBanned == 1))
	s.printf("Updated:  %s\n", format.FormatTime(info.UpdateTime))
	return nil
}

func runUserLogs(ctx context.Context, opts listOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	page, err := s.portal.Logs(ctx, opts.query())
	if err != nil {
		return err
	}

	return s.printUserLogs(page, opts.csv)
}

func (r *stack) printUserLogs(page *portal.Page[portal.UserLog], asCSV bool) error {
	if asCSV {
		return format.WriteCSV(r.out, []string{"ID", "User", "Time", "Operation", "Quantity", "Remaining"}, page.Items,
			func(l portal.UserLog) []string {
				return []string{
					strconv.Itoa(l.ID), l.Username, format.FormatTime(l.Time),
					format.OperationName(l.Class), strconv.Itoa(l.Quantity), format.Quota(l.Remain),
				}
			})
	}

	if len(page.Items) == 0 {
		r.println("No operations found.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tTIME\tOPERATION\tQUANTITY\tREMAINING")
	fmt.Fprintln(w, "──\t────\t────\t─────────\t────────\t─────────")
	for _, l := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.Username, format.FormatTime(l.Time), format.OperationName(l.Class), l.Quantity, format.Quota(l.Remain))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	r.printf("\nPage %d, %d of %d\n", page.Page, len(page.Items), page.Total)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
