package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/config"
	"librarydesk/storage/flatfile"
)

func TestImportManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.csv")
	require.NoError(t, os.WriteFile(manifest, []byte(
		"title,author,isbn\n"+
			"1984,George Orwell,10001\n"+
			"Animal Farm,George Orwell,10002\n"+
			"Again,George Orwell,978-10001\n"+
			"Bad,Nobody,12\n"+
			"short row\n"), 0o644))

	cfg := &config.Config{DataDir: dir, Backend: config.BackendFile}
	var out bytes.Buffer
	res, err := importManifest(context.Background(), cfg, manifest, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, res.imported)
	assert.Equal(t, 1, res.skipped)
	assert.Equal(t, 2, res.errors)
	assert.Contains(t, out.String(), "Successfully imported: 2 books")

	s, err := flatfile.New(dir, flatfile.Options{})
	require.NoError(t, err)
	books, err := s.LoadBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "978-10002", books[1].ISBN)
}

func TestImportMissingManifest(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Backend: config.BackendFile}
	_, err := importManifest(context.Background(), cfg, "does-not-exist.csv", &bytes.Buffer{})
	assert.Error(t, err)
}
