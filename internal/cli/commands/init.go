package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/config"
	"github.com/gridsight-dev/gridsight/internal/cli/router"
)

type initOptions struct {
	skipBrowser bool
	out         io.Writer
	browser     func(url string) error
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init <portal-url>",
		Short: "Add a recognition portal to ./gridsight.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWithOptions(args, &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipBrowser, "no-browser", false, "Do not open the portal login page")

	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	out := opts.out
	if out == nil {
		out = os.Stdout
	}
	browser := opts.browser
	if browser == nil {
		browser = openBrowser
	}

	serverURL, err := config.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	if existing, err := cfg.GetServerByURL(serverURL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in %s (%s)\n", serverURL, config.ConfigFileName, existing.Label())
	} else {
		alias := fmt.Sprintf("server-%d", len(cfg.Servers)+1)

		cfg.Servers = append(cfg.Servers, config.Server{
			URL:   serverURL,
			Alias: alias,
		})

		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		if isNewConfig {
			fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, serverURL, alias)
		} else {
			fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", serverURL, alias, config.ConfigFileName)
		}
	}

	if !opts.skipBrowser {
		loginURL := serverURL + router.LoginPath
		fmt.Fprintf(out, "\nOpening %s...\n", loginURL)
		if err := browser(loginURL); err != nil {
			fmt.Fprintf(out, "⚠ Could not open browser automatically: %v\n", err)
			fmt.Fprintf(out, "Please visit: %s\n", loginURL)
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'gridsight register' if you do not have an account yet")
	fmt.Fprintln(out, "  2. Run 'gridsight login' to authenticate")

	return nil
}
