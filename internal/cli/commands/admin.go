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

// NewAdminCmd creates the admin command group
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage portal accounts (admin session required)",
	}

	cmd.AddCommand(
		newAdminUsersCmd(),
		newAdminCreateCmd(),
		newAdminUpdateCmd(),
		newAdminDeleteCmd(),
		newAdminLimitsCmd(),
		newAdminStatusCmd(),
		newAdminLogsCmd(),
		newAdminStatsCmd(),
	)

	return cmd
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func newAdminUsersCmd() *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminUsers(cmd.Context(), opts, WithServer(serverFlag(cmd)))
		},
	}
	addListFlags(cmd, &opts)
	return cmd
}

func runAdminUsers(ctx context.Context, opts listOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	page, err := s.portal.Users(ctx, opts.query())
	if err != nil {
		return err
	}

	if opts.csv {
		return format.WriteCSV(s.out, []string{"ID", "Username", "Image limit", "Batch limit", "Realtime", "Banned", "Updated"}, page.Items,
			func(u portal.User) []string {
				return []string{
					strconv.Itoa(u.ID), u.Username, format.Quota(u.ImageLimit), format.Quota(u.BatchLimit),
					yesNo(u.RealtimePermission == 1), yesNo(u.IsBanned == 1), format.FormatTime(u.UpdateTime),
				}
			})
	}

	if len(page.Items) == 0 {
		s.println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tIMAGES\tBATCHES\tREALTIME\tBANNED")
	fmt.Fprintln(w, "──\t────────\t──────\t───────\t────────\t──────")
	for _, u := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, format.Quota(u.ImageLimit), format.Quota(u.BatchLimit),
			yesNo(u.RealtimePermission == 1), yesNo(u.IsBanned == 1))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s.printf("\nPage %d, %d of %d\n", page.Page, len(page.Items), page.Total)
	return nil
}

func newAdminCreateCmd() *cobra.Command {
	var u portal.NewUser
	var realtime bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if realtime {
				u.RealtimePermission = 1
			}
			return runAdminCreate(cmd.Context(), u, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().StringVar(&u.Username, "username", "", "Username")
	cmd.Flags().StringVar(&u.Password, "password", "", "Initial password")
	cmd.Flags().IntVar(&u.ImageLimit, "image-limit", 10, "Image recognition quota, -1 for unlimited")
	cmd.Flags().IntVar(&u.BatchLimit, "batch-limit", 5, "Batch processing quota, -1 for unlimited")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Allow realtime detection")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runAdminCreate(ctx context.Context, u portal.NewUser, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	id, err := s.portal.CreateUser(ctx, u)
	if err != nil {
		return err
	}

	s.printf("✓ Created user %s (id %d)\n", u.Username, id)
	return nil
}

func newAdminUpdateCmd() *cobra.Command {
	var imageLimit, batchLimit int
	var realtime bool

	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Set quotas or realtime permission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var u portal.UserUpdate
			if cmd.Flags().Changed("image-limit") {
				u.ImageLimit = &imageLimit
			}
			if cmd.Flags().Changed("batch-limit") {
				u.BatchLimit = &batchLimit
			}
			if cmd.Flags().Changed("realtime") {
				v := 0
				if realtime {
					v = 1
				}
				u.RealtimePermission = &v
			}
			return runAdminUpdate(cmd.Context(), id, u, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().IntVar(&imageLimit, "image-limit", 0, "Image recognition quota, -1 for unlimited")
	cmd.Flags().IntVar(&batchLimit, "batch-limit", 0, "Batch processing quota, -1 for unlimited")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Allow realtime detection")

	return cmd
}

func runAdminUpdate(ctx context.Context, id int, u portal.UserUpdate, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	msg, err := s.portal.UpdateUser(ctx, id, u)
	if err != nil {
		return err
	}
	s.printf("✓ %s\n", msg)
	return nil
}

func newAdminDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user account and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAdminMessage(cmd.Context(), func(ctx context.Context, p *portal.Service) (string, error) {
				return p.DeleteUser(ctx, id)
			}, WithServer(serverFlag(cmd)))
		},
	}
}

func newAdminLimitsCmd() *cobra.Command {
	var imageDelta, batchDelta int

	cmd := &cobra.Command{
		Use:   "limits <user-id>",
		Short: "Add to or subtract from remaining quotas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var d portal.LimitDelta
			if cmd.Flags().Changed("image") {
				d.ImageDelta = &imageDelta
			}
			if cmd.Flags().Changed("batch") {
				d.BatchDelta = &batchDelta
			}
			return runAdminMessage(cmd.Context(), func(ctx context.Context, p *portal.Service) (string, error) {
				return p.AdjustLimits(ctx, id, d)
			}, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().IntVar(&imageDelta, "image", 0, "Change to the image quota, e.g. 10 or -5")
	cmd.Flags().IntVar(&batchDelta, "batch", 0, "Change to the batch quota")

	return cmd
}

func newAdminStatusCmd() *cobra.Command {
	var unban bool

	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Ban a user, or unban with --unban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAdminMessage(cmd.Context(), func(ctx context.Context, p *portal.Service) (string, error) {
				return p.SetBanned(ctx, id, !unban)
			}, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().BoolVar(&unban, "unban", false, "Lift the ban instead")

	return cmd
}

// runAdminMessage runs a write call and prints the portal's confirmation
func runAdminMessage(ctx context.Context, call func(context.Context, *portal.Service) (string, error), extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	msg, err := call(ctx, s.portal)
	if err != nil {
		return err
	}
	s.printf("✓ %s\n", msg)
	return nil
}

type adminLogsOptions struct {
	listOptions
	userID   int
	allUsers bool
}

func newAdminLogsCmd() *cobra.Command {
	var opts adminLogsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List admin actions, or user operations with --user / --all-users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminLogs(cmd.Context(), opts, WithServer(serverFlag(cmd)))
		},
	}

	addListFlags(cmd, &opts.listOptions)
	cmd.Flags().IntVar(&opts.userID, "user", 0, "Show operations of this user id")
	cmd.Flags().BoolVar(&opts.allUsers, "all-users", false, "Show operations of every user")
	cmd.MarkFlagsMutuallyExclusive("user", "all-users")

	return cmd
}

func runAdminLogs(ctx context.Context, opts adminLogsOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	switch {
	case opts.allUsers:
		page, err := s.portal.AllUserLogs(ctx, opts.query())
		if err != nil {
			return err
		}
		return s.printUserLogs(page, opts.csv)
	case opts.userID > 0:
		page, err := s.portal.UserLogs(ctx, opts.userID, opts.query())
		if err != nil {
			return err
		}
		return s.printUserLogs(page, opts.csv)
	}

	page, err := s.portal.AdminLogs(ctx, opts.query())
	if err != nil {
		return err
	}

	if opts.csv {
		return format.WriteCSV(s.out, []string{"ID", "Admin", "Time", "Action", "Log"}, page.Items,
			func(l portal.AdminLog) []string {
				return []string{strconv.Itoa(l.ID), l.AdminUsername, format.FormatTime(l.Time), format.LogAction(l.Log), l.Log}
			})
	}

	if len(page.Items) == 0 {
		s.println("No admin actions found.")
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADMIN\tTIME\tACTION\tLOG")
	fmt.Fprintln(w, "──\t─────\t────\t──────\t───")
	for _, l := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", l.ID, l.AdminUsername, format.FormatTime(l.Time), format.LogAction(l.Log), l.Log)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s.printf("\nPage %d, %d of %d\n", page.Page, len(page.Items), page.Total)
	return nil
}

func newAdminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's usage summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminStats(cmd.Context(), WithServer(serverFlag(cmd)))
		},
	}
}

func runAdminStats(ctx context.Context, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	stats, err := s.portal.Statistics(ctx)
	if err != nil {
		return err
	}

	s.printf("Users:               %d (%d active today)\n", stats.UserCount, stats.ActiveUsersToday)
	s.printf("Image recognition:   %d\n", stats.TodayOperations.ImageRecognition)
	s.printf("Batch processing:    %d\n", stats.TodayOperations.BatchProcessing)
	s.printf("Realtime detection:  %d\n", stats.TodayOperations.RealtimeDetection)
	s.printf("Total today:         %d\n", stats.TodayOperations.TotalTraffic)
	s.printf("Unlimited image:     %d users\n", stats.PermissionStats.UnlimitedImageUsers)
	s.printf("Unlimited batch:     %d users\n", stats.PermissionStats.UnlimitedBatchUsers)
	s.printf("Realtime enabled:    %d users\n", stats.PermissionStats.RealtimeEnabledUsers)

	if len(stats.TrendData) > 0 {
		s.println("\nLast 7 days:")
		w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		for _, t := range stats.TrendData {
			fmt.Fprintf(w, "  %s\t%s\t%d\n", format.FormatDate(t.Date), format.OperationName(t.Class), t.Count)
		}
		return w.Flush()
	}
	return nil
}
