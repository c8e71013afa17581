// Command import_books adds the books listed in a manifest file to the
// library catalog. The manifest is comma-delimited with a header row:
//
//	title,author,isbn
//	1984,George Orwell,10001
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"librarydesk/config"
	"librarydesk/library"
	"librarydesk/records"
	"librarydesk/session"
	"librarydesk/storage"
)

var manifestLayout = records.Layout{
	Header:     []string{"title", "author", "isbn"},
	MinColumns: 3,
}

func main() {
	if err := newImportCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		dataDir string
		backend string
	)
	cmd := &cobra.Command{
		Use:          "import_books MANIFEST",
		Short:        "Import books from a title,author,isbn manifest",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			_, err = importManifest(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "directory holding the library files")
	cmd.Flags().StringVar(&backend, "backend", config.BackendFile, "storage backend: file or sqlite")
	return cmd
}

type result struct {
	imported int
	skipped  int
	errors   int
}

func importManifest(ctx context.Context, cfg *config.Config, manifest string, out io.Writer) (result, error) {
	var res result
	if _, err := os.Stat(manifest); err != nil {
		return res, fmt.Errorf("manifest: %w", err)
	}
	table, err := records.LoadAll(manifest, manifestLayout)
	if err != nil {
		return res, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := storage.Open(cfg, log)
	if err != nil {
		return res, err
	}
	manager, err := library.NewManager(ctx, store, library.Options{Logger: log})
	if err != nil {
		store.Close()
		return res, err
	}
	defer manager.Close()

	fmt.Fprintf(out, "Importing books from %s...\n", manifest)
	for _, row := range table.Rows {
		title, author, isbn := strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), strings.TrimSpace(row[2])
		fmt.Fprintf(out, "Importing: %s by %s... ", title, author)

		book, err := manager.AddBook(ctx, title, author, isbn)
		switch {
		case errors.Is(err, library.ErrDuplicateISBN):
			fmt.Fprintln(out, "SKIPPED - already in catalog")
			res.skipped++
		case err != nil:
			fmt.Fprintf(out, "ERROR - %v\n", err)
			res.errors++
		default:
			fmt.Fprintf(out, "SUCCESS (ISBN: %s)\n", book.ISBN)
			res.imported++
		}
	}
	res.errors += table.Skipped

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", res.imported)
	fmt.Fprintf(out, "Already present: %d\n", res.skipped)
	fmt.Fprintf(out, "Errors: %d\n", res.errors)

	// Display summary of imported books
	if res.imported > 0 {
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-20s %-50s %-30s\n", "ISBN", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 102))
		for _, b := range manager.Books() {
			fmt.Fprintf(out, "%-20s %-50s %-30s\n", b.ISBN, session.TruncateString(b.Title, 50), session.TruncateString(b.Author, 30))
		}
	}
	return res, nil
}
