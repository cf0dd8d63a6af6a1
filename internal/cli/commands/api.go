package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/api"
	"github.com/gridsight-dev/gridsight/internal/cli/format"
)

type apiOptions struct {
	headers []string
}

// NewAPICmd creates the api command, a raw passthrough to the portal facade
func NewAPICmd() *cobra.Command {
	var opts apiOptions

	cmd := &cobra.Command{
		Use:   "api <METHOD> <path> [key=value | key:=json]...",
		Short: "Call a portal endpoint with the stored session",
		Long: `Call a portal endpoint with the stored session and print the response envelope.

Fields become query parameters for GET and a JSON body for POST and PUT.
DELETE ignores them. key=value sends a string, key:=value sends raw JSON.

Examples:
  $ gridsight api GET /api/user/logs page=2 limit=20
  $ gridsight api POST /api/admin/user username=bob password=secret1 imagelimit:=10
  $ gridsight api GET /api/user/info -H "Accept-Language: en"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPI(cmd.Context(), args, opts, WithServer(serverFlag(cmd)))
		},
	}

	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, "Extra header as 'Name: value', overrides Authorization")

	return cmd
}

func runAPI(ctx context.Context, args []string, opts apiOptions, extra ...Option) error {
	method, path := args[0], args[1]

	data, err := parseFields(args[2:])
	if err != nil {
		return err
	}

	var cfg *api.Config
	if len(opts.headers) > 0 {
		cfg = &api.Config{Header: http.Header{}}
		for _, h := range opts.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return fmt.Errorf("invalid header %q, expected 'Name: value'", h)
			}
			cfg.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		}
	}

	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	var payload any
	if len(data) > 0 {
		payload = data
	}

	env, err := s.api.Request(ctx, method, path, payload, cfg)
	if err != nil {
		return err
	}

	s.log.Debug().Str("size", format.FileSize(uint64(len(env.Raw)))).Msg("response received")

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	s.println(pretty.String())
	return nil
}

// parseFields turns key=value and key:=json arguments into a map
func parseFields(fields []string) (map[string]any, error) {
	data := make(map[string]any, len(fields))
	for _, f := range fields {
		if key, raw, ok := strings.Cut(f, ":="); ok && key != "" && !strings.Contains(key, "=") {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("invalid JSON for field %s: %w", key, err)
			}
			data[key] = v
			continue
		}
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value or key:=json", f)
		}
		data[key] = value
	}
	return data, nil
}
