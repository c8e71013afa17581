package records_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/records"
)

var borrowedLayout = records.Layout{
	Header:     []string{"username", "title", "author", "isbn", "timestamp"},
	MinColumns: 5,
}

func TestRewriteThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library-data", "borrowed_books.csv")
	rows := [][]string{
		{"alice", "Dune", "Frank Herbert", "978-12345", "2026-01-02T10:00:00Z"},
		{"bob", "Emma", "Jane Austen", "978-67890", "2026-01-03T10:00:00Z"},
		{"alice", "Ulysses", "James Joyce", "978-11111", "2026-01-04T10:00:00Z"},
	}

	require.NoError(t, records.RewriteAll(path, borrowedLayout, rows))

	table, err := records.LoadAll(path, borrowedLayout)
	require.NoError(t, err)
	assert.Equal(t, rows, table.Rows)
	assert.Zero(t, table.Skipped)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "username,title,author,isbn,timestamp\n", string(raw[:37]))
}

func TestLoadAllMissingFileIsEmpty(t *testing.T) {
	table, err := records.LoadAll(filepath.Join(t.TempDir(), "nope.csv"), borrowedLayout)
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestLoadAllSkipsShortRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.csv")
	content := "username,password,numberOfBooksRead\n" +
		"alice,p1,3\n" +
		"broken\n" +
		"\n" +
		"bob,p2,0\r\n" +
		"half,row\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	layout := records.Layout{Header: []string{"username", "password", "numberOfBooksRead"}, MinColumns: 3}
	table, err := records.LoadAll(path, layout)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alice", "p1", "3"}, {"bob", "p2", "0"}}, table.Rows)
	assert.Equal(t, 2, table.Skipped)

	layout.Strict = true
	_, err = records.LoadAll(path, layout)
	assert.ErrorIs(t, err, records.ErrMalformedRow)
}

func TestGreedyLastColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	layout := records.Layout{Header: []string{"username", "isbn", "review_text"}, MinColumns: 3, Greedy: true}

	require.NoError(t, records.AppendRow(path, layout, []string{"alice", "978-12345", "long, slow, worth it"}))

	table, err := records.LoadAll(path, layout)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "long, slow, worth it", table.Rows[0][2])

	err = records.AppendRow(path, layout, []string{"al,ice", "978-12345", "x"})
	assert.ErrorIs(t, err, records.ErrEmbeddedDelimiter)
}

func TestAppendRowCreatesHeaderAndFixesNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "library-data", "ratings.csv")
	layout := records.Layout{Header: []string{"username", "isbn", "rating"}, MinColumns: 3}

	require.NoError(t, records.AppendRow(path, layout, []string{"alice", "978-1", "5"}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "username,isbn,rating\nalice,978-1,5\n", string(raw))

	// A hand-edited file without a trailing newline.
	require.NoError(t, os.WriteFile(path, []byte("username,isbn,rating\nalice,978-1,5"), 0o644))
	require.NoError(t, records.AppendRow(path, layout, []string{"bob", "978-2", "4"}))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "username,isbn,rating\nalice,978-1,5\nbob,978-2,4\n", string(raw))
}

func TestBatchDiscardLeavesTargetsUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.csv")
	layout := records.Layout{Header: []string{"title", "author", "isbn", "available"}, MinColumns: 4}
	require.NoError(t, records.RewriteAll(path, layout, [][]string{{"Dune", "Herbert", "978-1", "TRUE"}}))

	var b records.Batch
	require.NoError(t, b.Rewrite(path, layout, [][]string{{"Emma", "Austen", "978-2", "TRUE"}}))

	// Second file contains a bad field, so the whole batch is abandoned.
	err := b.Rewrite(filepath.Join(dir, "user.csv"), layout, [][]string{{"a,b", "c", "d", "e"}})
	require.ErrorIs(t, err, records.ErrEmbeddedDelimiter)
	assert.Equal(t, 1, b.Len())
	b.Discard()

	table, err := records.LoadAll(path, layout)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Dune", "Herbert", "978-1", "TRUE"}}, table.Rows)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staged temp files must be removed")
}

func TestBatchCommitReportsPartialFailure(t *testing.T) {
	dir := t.TempDir()
	layout := records.Layout{Header: []string{"k"}, MinColumns: 1}
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "sub", "b.csv")

	var b records.Batch
	require.NoError(t, b.Rewrite(first, layout, [][]string{{"1"}}))
	require.NoError(t, b.Rewrite(second, layout, [][]string{{"2"}}))

	// Replace the target directory with a file so the second rename fails.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "sub")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub"), nil, 0o644))

	err := b.Commit()
	var ce *records.CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{first}, ce.Committed)
	assert.Equal(t, []string{second}, ce.Pending)
	assert.True(t, records.IsPartialCommit(err))
}
