package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
	}{
		{name: "https", input: "https://portal.example.com", expected: "https://portal.example.com"},
		{name: "trailing slash", input: "http://10.0.0.1:8090/", expected: "http://10.0.0.1:8090"},
		{name: "bare host gets https", input: "portal.example.com", expected: "https://portal.example.com"},
		{name: "whitespace", input: "  https://portal.example.com  ", expected: "https://portal.example.com"},
		{name: "empty", input: "", shouldError: true},
		{name: "ftp", input: "ftp://portal.example.com", shouldError: true},
		{name: "no host", input: "https://", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if tt.shouldError {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestServer_RequestTimeout(t *testing.T) {
	d, err := Server{URL: "https://a"}.RequestTimeout()
	if err != nil || d != 0 {
		t.Errorf("empty timeout = %v, %v; want 0, nil", d, err)
	}

	d, err = Server{URL: "https://a", Timeout: "90s"}.RequestTimeout()
	if err != nil || d != 90*time.Second {
		t.Errorf("90s timeout = %v, %v", d, err)
	}

	if _, err := (Server{URL: "https://a", Timeout: "later"}).RequestTimeout(); err == nil {
		t.Error("expected error for unparseable timeout")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Servers: []Server{
		{URL: "https://a.example.com/", Alias: "a"},
		{URL: "b.example.com", Alias: "b"},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Servers[0].URL != "https://a.example.com" || cfg.Servers[1].URL != "https://b.example.com" {
		t.Errorf("URLs not normalized: %+v", cfg.Servers)
	}

	dup := &Config{Servers: []Server{
		{URL: "https://a.example.com", Alias: "line"},
		{URL: "https://b.example.com", Alias: "line"},
	}}
	if err := dup.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate alias error, got %v", err)
	}

	placeholder := DefaultConfig()
	if err := placeholder.Validate(); err == nil {
		t.Error("expected default config to need a URL")
	}
}

func TestLoadSave_RoundTripFormats(t *testing.T) {
	cfg := &Config{Servers: []Server{
		{URL: "https://portal.example.com", Alias: "prod", Timeout: "60s", Insecure: true},
	}}

	for _, name := range ConfigFileNames {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Save(path, cfg); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(loaded.Servers) != 1 || loaded.Servers[0] != cfg.Servers[0] {
				t.Errorf("loaded %+v, want %+v", loaded.Servers, cfg.Servers)
			}
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridsight.yaml")
	content := `servers:
  - url: http://10.0.0.5:8090
    alias: line-2
    insecure: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Servers[0].Alias != "line-2" || !cfg.Servers[0].Insecure {
		t.Errorf("unexpected server: %+v", cfg.Servers[0])
	}
}

func TestFindConfigFile_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := Save(filepath.Join(root, "gridsight.yml"), &Config{Servers: []Server{{URL: "https://x"}}}); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	path, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile: %v", err)
	}
	if filepath.Base(path) != "gridsight.yml" {
		t.Errorf("found %s", path)
	}

	cfg, err := LoadFromCurrentDir()
	if err != nil {
		t.Fatalf("LoadFromCurrentDir: %v", err)
	}
	if cfg.Servers[0].URL != "https://x" {
		t.Errorf("URL = %q", cfg.Servers[0].URL)
	}
}

func TestFindConfigFile_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := FindConfigFile(); err == nil {
		t.Error("expected error when no config exists")
	}
}

func TestConfig_Lookup(t *testing.T) {
	cfg := &Config{Servers: []Server{
		{URL: "https://a.example.com", Alias: "a"},
		{URL: "http://10.0.0.1:8090", Alias: "lab"},
	}}

	if s, err := cfg.GetServerByAlias("lab"); err != nil || s.URL != "http://10.0.0.1:8090" {
		t.Errorf("GetServerByAlias = %+v, %v", s, err)
	}
	if s, err := cfg.GetServerByURL("http://10.0.0.1:8090/"); err != nil || s.Alias != "lab" {
		t.Errorf("GetServerByURL = %+v, %v", s, err)
	}
	if s, err := cfg.GetServerByURLOrAlias("a.example.com"); err != nil || s.Alias != "a" {
		t.Errorf("GetServerByURLOrAlias = %+v, %v", s, err)
	}
	if _, err := cfg.GetServerByURLOrAlias("nope"); err == nil {
		t.Error("expected error for unknown server")
	}
	if s, err := cfg.GetDefaultServer(); err != nil || s.Alias != "a" {
		t.Errorf("GetDefaultServer = %+v, %v", s, err)
	}
	if _, err := (&Config{}).GetDefaultServer(); err == nil {
		t.Error("expected error for empty config")
	}
}
