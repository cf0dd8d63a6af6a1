package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/router"
)

type openOptions struct {
	list   bool
	noOpen bool
}

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	var opts openOptions

	cmd := &cobra.Command{
		Use:   "open [route]",
		Short: "Open a portal page, applying the same access rules as the web app",
		Long: `Open a portal page in the browser.

The route is checked against the stored session first: protected pages
without a session open the login page, and pages for the other role open
your own home page instead.

Examples:
  $ gridsight open /user/batch
  $ gridsight open --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				return runListRoutes(WithServer(serverFlag(cmd)))
			}
			route := "/"
			if len(args) > 0 {
				route = args[0]
			}
			return runOpen(cmd.Context(), route, opts, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().BoolVar(&opts.list, "list", false, "List the portal routes")
	cmd.Flags().BoolVar(&opts.noOpen, "print", false, "Print the resolved URL instead of opening it")

	return cmd
}

func runOpen(ctx context.Context, route string, opts openOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	decision, err := s.navigator.Navigate(ctx, route)
	if err != nil {
		return err
	}

	switch decision.Outcome {
	case router.RedirectLogin:
		s.printf("%s requires a session, opening the login page. Run 'gridsight login' to sign in.\n", route)
	case router.RedirectHome:
		s.printf("%s is not available to %s accounts, opening %s\n", route, decision.Role, decision.Target)
	}

	target := s.server.URL + s.navigator.Current()
	if opts.noOpen {
		s.println(target)
		return nil
	}

	s.printf("Opening %s...\n", target)
	if err := s.browser(target); err != nil {
		s.printf("⚠ Could not open browser automatically: %v\n", err)
		s.printf("Please visit: %s\n", target)
	}
	return nil
}

func runListRoutes(extra ...Option) error {
	o := newOptions(extra)

	w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTITLE\tAUTH\tROLE")
	fmt.Fprintln(w, "────\t─────\t────\t────")

	for _, r := range router.DefaultTable().Routes() {
		auth := "no"
		if r.RequiresAuth {
			auth = "yes"
		}
		role := string(r.UserType)
		if role == "" {
			role = "any"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Path, r.Title, auth, role)
	}

	return w.Flush()
}
