package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/api"
	"github.com/gridsight-dev/gridsight/internal/cli/client"
	"github.com/gridsight-dev/gridsight/internal/cli/config"
	"github.com/gridsight-dev/gridsight/internal/cli/events"
	"github.com/gridsight-dev/gridsight/internal/cli/portal"
	"github.com/gridsight-dev/gridsight/internal/cli/router"
	"github.com/gridsight-dev/gridsight/internal/cli/serverselect"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
	"github.com/gridsight-dev/gridsight/internal/cli/userconfig"
	appconfig "github.com/gridsight-dev/gridsight/internal/config"
	"github.com/gridsight-dev/gridsight/internal/logger"
)

const initHint = "\nRun 'gridsight init <url>' to create a configuration file"

// options carries the dependencies a command can have replaced in tests
type options struct {
	server   string
	sessions session.Store
	settings *appconfig.Config
	out      io.Writer
	browser  func(url string) error
	log      *zerolog.Logger
}

// Option configures how a command connects and where it writes
type Option func(*options)

// WithServer selects a server by alias or URL instead of the remembered one
func WithServer(urlOrAlias string) Option {
	return func(o *options) { o.server = urlOrAlias }
}

// WithSessionStore replaces the configured session driver
func WithSessionStore(store session.Store) Option {
	return func(o *options) { o.sessions = store }
}

// WithSettings replaces the settings read from the environment
func WithSettings(cfg *appconfig.Config) Option {
	return func(o *options) { o.settings = cfg }
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithBrowser replaces the function that opens URLs
func WithBrowser(fn func(url string) error) Option {
	return func(o *options) { o.browser = fn }
}

// WithLogger replaces the application logger
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = &log }
}

func newOptions(opts []Option) *options {
	o := &options{
		out:     os.Stdout,
		browser: openBrowser,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		l := logger.GetLogger()
		o.log = &l
	}
	return o
}

// stack is the wired client stack for one server
type stack struct {
	server    *config.Server
	sessions  session.Store
	bus       *events.Bus
	client    *client.Client
	api       *api.Facade
	portal    *portal.Service
	navigator *router.Navigator
	out       io.Writer
	browser   func(url string) error
	log       zerolog.Logger
}

// getSelectedServer loads the config and returns the selected server.
// This is common logic used by most commands.
func getSelectedServer(urlOrAlias string) (*config.Server, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w%s", err, initHint)
	}

	server, err := serverselect.ResolveServer(cfg, urlOrAlias)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return server, nil
}

// connect resolves the server and wires sessions, client, facade, portal and navigator
func connect(opts []Option) (*stack, error) {
	o := newOptions(opts)

	server, err := getSelectedServer(o.server)
	if err != nil {
		return nil, err
	}

	settings := o.settings
	if settings == nil {
		settings, err = appconfig.Load()
		if err != nil {
			return nil, err
		}
	}

	sessions := o.sessions
	if sessions == nil {
		sessions, err = session.New(settings.Session, server.URL)
		if err != nil {
			return nil, err
		}
	}

	timeout, err := server.RequestTimeout()
	if err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = settings.HTTP.Timeout
	}

	log := o.log.With().Str("server", server.URL).Logger()
	bus := events.New()

	apiClient, err := client.New(client.Options{
		BaseURL:   server.URL,
		Timeout:   timeout,
		Sessions:  sessions,
		Bus:       bus,
		RateLimit: settings.HTTP.RateLimit,
		Insecure:  server.Insecure,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	facade := api.New(apiClient, api.WithLogger(log))

	// resume where the last command left off
	start := router.LoginPath
	if last, err := userconfig.GetLastRoute(server.URL); err == nil && last != "" {
		start = last
	}

	guard := router.NewGuard(router.DefaultTable(), sessions)
	nav := router.NewNavigator(guard, start, log)
	if err := nav.Listen(bus); err != nil {
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}
	nav.OnCommit(func(path string) {
		if err := userconfig.SetLastRoute(server.URL, path); err != nil {
			log.Debug().Err(err).Msg("failed to remember route")
		}
	})

	return &stack{
		server:    server,
		sessions:  sessions,
		bus:       bus,
		client:    apiClient,
		api:       facade,
		portal:    portal.New(facade, sessions),
		navigator: nav,
		out:       o.out,
		browser:   o.browser,
		log:       log,
	}, nil
}

// close releases the session store connection, if it holds one
func (r *stack) close() {
	if c, ok := r.sessions.(io.Closer); ok {
		if err := c.Close(); err != nil {
			r.log.Debug().Err(err).Msg("failed to close session store")
		}
	}
}

// serverFlag reads the persistent --server flag, empty when the command runs detached from root
func serverFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("server")
	return v
}

func (r *stack) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *stack) println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
