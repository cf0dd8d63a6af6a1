package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/portal"
	"github.com/gridsight-dev/gridsight/internal/cli/router"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

type loginOptions struct {
	username string
	password string
	admin    bool
}

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a recognition portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), opts, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "Username (or set GRIDSIGHT_USERNAME)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (or set GRIDSIGHT_PASSWORD, will prompt if not provided)")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "Log in to the admin console")

	return cmd
}

func runLogin(ctx context.Context, opts loginOptions, extra ...Option) error {
	// Check for environment variables (useful for CI/CD)
	if opts.username == "" {
		opts.username = os.Getenv("GRIDSIGHT_USERNAME")
	}
	if opts.password == "" {
		opts.password = os.Getenv("GRIDSIGHT_PASSWORD")
	}

	if opts.username == "" {
		return fmt.Errorf("username is required (use --username flag or GRIDSIGHT_USERNAME env var)")
	}

	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	// Prompt for password if not provided via flag or env var
	if opts.password == "" {
		opts.password, err = readSecret("Password", "use --password flag or GRIDSIGHT_PASSWORD env var")
		if err != nil {
			return err
		}
	}

	role := session.UserTypeUser
	if opts.admin {
		role = session.UserTypeAdmin
	}

	s.printf("Logging in to %s (%s)...\n", s.server.Label(), s.server.URL)

	result, err := s.portal.Login(ctx, portal.Credentials{
		Username: opts.username,
		Password: opts.password,
		UserType: role,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	decision, err := s.navigator.Navigate(ctx, router.LoginPath)
	if err != nil {
		return err
	}

	s.println("✓ Login successful!")
	s.printf("  User: %s (id %d)\n", result.Username, result.UserID)
	if decision.Role == session.UserTypeAdmin {
		s.println("  Role: Admin")
	}
	s.printf("  Home: %s\n", s.navigator.Current())

	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session for the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), WithServer(serverFlag(cmd)))
		},
	}
}

func runLogout(ctx context.Context, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.portal.Logout(ctx); err != nil {
		return err
	}

	s.printf("✓ Logged out of %s\n", s.server.Label())
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session for the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), WithServer(serverFlag(cmd)))
		},
	}
}

func runWhoami(ctx context.Context, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	sess, err := s.sessions.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Authenticated() {
		s.printf("Not logged in to %s. Run 'gridsight login' first.\n", s.server.Label())
		return nil
	}

	s.printf("Server: %s (%s)\n", s.server.Label(), s.server.URL)
	s.printf("Role:   %s\n", sess.UserType)

	// Only plain users have an info endpoint; a 401 here clears the stale session
	if sess.UserType == session.UserTypeUser {
		info, err := s.portal.Info(ctx)
		if err != nil {
			return err
		}
		s.printf("User:   %s (id %d)\n", info.Username, info.ID)
	}
	return nil
}

type registerOptions struct {
	username string
	password string
}

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var opts registerOptions

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user account on the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), opts, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "Username, 3 to 50 characters")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password, at least 6 characters (will prompt if not provided)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runRegister(ctx context.Context, opts registerOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if opts.password == "" {
		opts.password, err = readSecret("Password", "use --password flag")
		if err != nil {
			return err
		}
	}

	msg, err := s.portal.Register(ctx, portal.Registration{Username: opts.username, Password: opts.password})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	s.printf("✓ %s\n", msg)
	s.println("Run 'gridsight login' to sign in.")
	return nil
}

type passwdOptions struct {
	oldPassword string
	newPassword string
}

// NewPasswdCmd creates the passwd command
func NewPasswdCmd() *cobra.Command {
	var opts passwdOptions

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswd(cmd.Context(), opts, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().StringVar(&opts.oldPassword, "old", "", "Current password (will prompt if not provided)")
	cmd.Flags().StringVar(&opts.newPassword, "new", "", "New password (will prompt if not provided)")

	return cmd
}

func runPasswd(ctx context.Context, opts passwdOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	sess, err := s.sessions.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Authenticated() {
		return fmt.Errorf("not logged in to %s. Run 'gridsight login' first", s.server.Label())
	}

	if opts.oldPassword == "" {
		if opts.oldPassword, err = readSecret("Current password", "use --old flag"); err != nil {
			return err
		}
	}
	if opts.newPassword == "" {
		if opts.newPassword, err = readSecret("New password", "use --new flag"); err != nil {
			return err
		}
	}

	msg, err := s.portal.ChangePassword(ctx, portal.PasswordChange{
		OldPassword: opts.oldPassword,
		NewPassword: opts.newPassword,
		UserType:    sess.UserType,
	})
	if err != nil {
		return fmt.Errorf("password change failed: %w", err)
	}

	s.printf("✓ %s\n", msg)
	return nil
}
