package session

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Driver identifiers for session storage
const (
	DriverKeyring = "keyring"
	DriverFile    = "file"
	DriverMemory  = "memory"
	DriverRedis   = "redis"
)

// Config selects and tunes the session driver
type Config struct {
	Driver string
	// FileDir holds one session file per server for the file driver
	FileDir string
	Redis   RedisConfig
}

// RedisConfig captures connection options for the redis driver
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// New creates the session store for the given server based on the configured driver
func New(cfg Config, server string) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverKeyring
	}

	switch driver {
	case DriverKeyring:
		return NewKeyring(server), nil
	case DriverFile:
		if cfg.FileDir == "" {
			return nil, fmt.Errorf("file driver requires a session directory")
		}
		return NewFile(filePath(cfg.FileDir, server)), nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return NewRedis(server, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", driver)
	}
}

// filePath maps a server URL to a file name that is safe on every platform
func filePath(dir, server string) string {
	name := server
	if u, err := url.Parse(server); err == nil && u.Host != "" {
		name = u.Host
	}
	name = strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(name)
	return filepath.Join(dir, name+".json")
}
