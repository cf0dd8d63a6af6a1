package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileNames are searched in order in each directory
var ConfigFileNames = []string{"gridsight.json", "gridsight.yaml", "gridsight.yml"}

// ConfigFileName is the name written by `gridsight init`
const ConfigFileName = "gridsight.json"

// Server represents a portal the CLI can talk to
type Server struct {
	URL   string `json:"url" yaml:"url"`
	Alias string `json:"alias" yaml:"alias"`
	// Timeout overrides the client timeout for this server, e.g. "60s"
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Insecure skips TLS verification for self-signed portals
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Label is the alias if set, otherwise the URL
func (s Server) Label() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.URL
}

// RequestTimeout parses Timeout; zero means use the default
func (s Server) RequestTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q for server %s", s.Timeout, s.Label())
	}
	return d, nil
}

// NormalizeURL validates a portal address and strips trailing slashes
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Config represents the CLI configuration file
type Config struct {
	Servers []Server `json:"servers" yaml:"servers"`
}

// DefaultConfig returns a default configuration with one example server
func DefaultConfig() *Config {
	return &Config{
		Servers: []Server{
			{
				URL:   "",
				Alias: "e.g. factory-line-1",
			},
		},
	}
}

// Validate checks every server URL and that aliases are unique
func (c *Config) Validate() error {
	aliases := make(map[string]bool)
	for i := range c.Servers {
		s := &c.Servers[i]
		normalized, err := NormalizeURL(s.URL)
		if err != nil {
			return err
		}
		s.URL = normalized
		if _, err := s.RequestTimeout(); err != nil {
			return err
		}
		if s.Alias != "" {
			if aliases[s.Alias] {
				return fmt.Errorf("duplicate server alias '%s'", s.Alias)
			}
			aliases[s.Alias] = true
		}
	}
	return nil
}

// FindConfigFile searches for a gridsight config in the current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find a config or reach root
	dir := currentDir
	for {
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the configuration file, JSON or YAML by extension
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetServerByURL returns a server by its address
func (c *Config) GetServerByURL(raw string) (*Server, error) {
	want, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}
	for i := range c.Servers {
		if got, err := NormalizeURL(c.Servers[i].URL); err == nil && got == want {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with URL '%s' not found in project config", raw)
}

// GetServerByURLOrAlias finds a server by URL or alias
func (c *Config) GetServerByURLOrAlias(urlOrAlias string) (*Server, error) {
	if server, err := c.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := c.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with URL or alias '%s' not found", urlOrAlias)
}

// GetDefaultServer returns the first server in the list
func (c *Config) GetDefaultServer() (*Server, error) {
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", ConfigFileName)
	}
	return &c.Servers[0], nil
}
