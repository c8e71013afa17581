// Package storage picks the backend named in the configuration.
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"librarydesk/config"
	"librarydesk/library"
	"librarydesk/storage/flatfile"
	"librarydesk/storage/memory"
	"librarydesk/storage/sqlite"
)

// Open returns the store for cfg.Backend.
func Open(cfg *config.Config, log *slog.Logger) (library.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return flatfile.New(cfg.DataDir, flatfile.Options{Strict: cfg.Strict, Logger: log})
	case config.BackendSQLite:
		path := cfg.DBPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		return sqlite.Open(path)
	case config.BackendMemory:
		return memory.New(library.State{}), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}
