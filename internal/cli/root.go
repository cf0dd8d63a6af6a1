package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/commands"
	"github.com/gridsight-dev/gridsight/internal/config"
	"github.com/gridsight-dev/gridsight/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gridsight",
		Short: "Gridsight - command line client for the defect recognition portal",
		Long: `Gridsight CLI - Sign in to a defect recognition portal and work with its API.

Sessions are stored per server (keyring by default, see GRIDSIGHT_SESSION_DRIVER).
An expired session is cleared automatically and the next command asks you to log in again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("server", "", "Server alias or URL (defaults to the selected server)")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gridsight version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewPasswdCmd())
	rootCmd.AddCommand(commands.NewAPICmd())
	rootCmd.AddCommand(commands.NewOpenCmd())
	rootCmd.AddCommand(commands.NewUserCmd())
	rootCmd.AddCommand(commands.NewAdminCmd())
	rootCmd.AddCommand(commands.NewRecognizeCmd())
	rootCmd.AddCommand(commands.NewBatchCmd())
	rootCmd.AddCommand(commands.NewRealtimeCmd())
	rootCmd.AddCommand(commands.NewTasksCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
