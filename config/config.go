// Package config reads the runtime settings from LIBRARY_* environment
// variables. Command-line flags override them in main.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"librarydesk/library"
)

// Backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds every setting of one run.
type Config struct {
	// DataDir holds the flat files.
	DataDir string `env:"LIBRARY_DATA_DIR" envDefault:"."`
	Backend string `env:"LIBRARY_BACKEND"  envDefault:"file"`
	// DBPath is the SQLite database, relative to DataDir unless absolute.
	DBPath string `env:"LIBRARY_DB" envDefault:"library.db"`

	LoanPeriod time.Duration `env:"LIBRARY_LOAN_PERIOD" envDefault:"336h"`
	Passwords  string        `env:"LIBRARY_PASSWORDS"   envDefault:"plain"`
	// Strict fails on malformed rows instead of skipping them.
	Strict bool `env:"LIBRARY_STRICT" envDefault:"false"`

	LogLevel string `env:"LIBRARY_LOG_LEVEL" envDefault:"warn"`
	LogFile  string `env:"LIBRARY_LOG_FILE"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects unknown values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q (want file, sqlite or memory)", c.Backend)
	}
	switch library.PasswordScheme(c.Passwords) {
	case library.PasswordsPlain, library.PasswordsBcrypt:
	default:
		return fmt.Errorf("config: unknown password scheme %q (want plain or bcrypt)", c.Passwords)
	}
	if c.LoanPeriod <= 0 {
		return fmt.Errorf("config: loan period must be positive, got %s", c.LoanPeriod)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: data dir cannot be empty")
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return lvl, nil
}

// PasswordScheme returns Passwords as a library.PasswordScheme.
func (c *Config) PasswordScheme() library.PasswordScheme {
	return library.PasswordScheme(c.Passwords)
}
