package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"librarydesk/config"
	"librarydesk/library"
	"librarydesk/session"
	"librarydesk/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataDir  string
		backend  string
		dbPath   string
		strict   bool
		logLevel string
		logFile  string
	)

	cmd := &cobra.Command{
		Use:          "library",
		Short:        "Text-menu library management for readers and librarians",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("backend") {
				cfg.Backend = backend
			}
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("strict") {
				cfg.Strict = strict
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-file") {
				cfg.LogFile = logFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&dataDir, "data-dir", ".", "directory holding the library files")
	flags.StringVar(&backend, "backend", config.BackendFile, "storage backend: file, sqlite or memory")
	flags.StringVar(&dbPath, "db", "library.db", "SQLite database path for the sqlite backend")
	flags.BoolVar(&strict, "strict", false, "fail on malformed rows instead of skipping them")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.StringVar(&logFile, "log-file", "", "write JSON logs to this file instead of stderr")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := storage.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	manager, err := library.NewManager(ctx, store, library.Options{
		Logger:     log,
		LoanPeriod: cfg.LoanPeriod,
		Passwords:  cfg.PasswordScheme(),
	})
	if err != nil {
		store.Close()
		return err
	}
	defer manager.Close()

	return session.New(manager, session.NewConsole(in, out), log).Run(ctx)
}

// newLogger writes text to stderr, or JSON to cfg.LogFile when set. Stdout is
// left to the menus.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}
