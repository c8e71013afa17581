package flatfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/library"
	"librarydesk/storage/flatfile"
)

func newStore(t *testing.T) (*flatfile.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := flatfile.New(dir, flatfile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestLoadOriginalFiles(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "books.csv"),
		"title,author,isbn,available\n"+
			"Dune,Frank Herbert,978-12345,TRUE\n"+
			"Emma,Jane Austen,978-67890,FALSE\n"+
			"broken,row\n")
	writeFile(t, filepath.Join(dir, "user.csv"),
		"username,password,numberOfBooksRead\nalice,secret,3\nbob,pw,x\n")
	writeFile(t, filepath.Join(dir, "library-data", "reviews.csv"),
		"username,isbn,review_text\nalice,978-12345,Long, slow, and worth it\n")
	writeFile(t, filepath.Join(dir, "library-data", "reading_history.csv"),
		"username,title,author,isbn\nalice,Dune,Frank Herbert,978-12345\n")

	ctx := context.Background()
	books, err := s.LoadBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[0].Title)
	assert.True(t, books[0].Available)
	assert.False(t, books[1].Available)

	readers, err := s.LoadReaders(ctx)
	require.NoError(t, err)
	require.Len(t, readers, 2)
	assert.Equal(t, 3, readers[0].BooksRead)
	assert.Zero(t, readers[1].BooksRead)

	reviews, err := s.LoadReviews(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Long, slow, and worth it", reviews[0].Text)

	history, err := s.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].At.IsZero())

	assert.Equal(t, 1, s.SkippedRows()[library.Books])
}

func TestStrictLoadRejectsShortRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "librarian.csv"), "username,password\nroot\n")
	s, err := flatfile.New(dir, flatfile.Options{Strict: true})
	require.NoError(t, err)

	_, err = s.LoadLibrarians(context.Background())
	assert.Error(t, err)
}

func TestApplySingleAppendCreatesFileWithHeader(t *testing.T) {
	s, _ := newStore(t)
	cs := &library.Changeset{}
	cs.Readers.Add(library.Account{Username: "alice", Password: "pw"})
	require.NoError(t, s.Apply(context.Background(), cs))

	assert.Equal(t, "username,password,numberOfBooksRead\nalice,pw,0\n", readFile(t, s.Path(library.Readers)))
}

func TestApplyCascadePreservesOtherRows(t *testing.T) {
	s, dir := newStore(t)
	favorites := filepath.Join(dir, "library-data", "favorites.csv")
	writeFile(t, favorites,
		"username,title,author,isbn\n"+
			"bob,Emma,Jane Austen,978-67890\n"+
			"alice,Dune,Frank Herbert,978-12345\n"+
			"carol,Ulysses,James Joyce,978-11111\n")
	writeFile(t, filepath.Join(dir, "user.csv"),
		"username,password,numberOfBooksRead\nbob,a,1\nalice,b,2\ncarol,c,3\n")

	ctx := context.Background()
	readers, err := s.LoadReaders(ctx)
	require.NoError(t, err)
	favs, err := s.LoadFavorites(ctx)
	require.NoError(t, err)

	cs := &library.Changeset{}
	cs.Readers.Set([]library.Account{readers[0], readers[2]})
	cs.Favorites.Set([]library.Favorite{favs[0], favs[2]})
	require.NoError(t, s.Apply(ctx, cs))

	assert.Equal(t,
		"username,title,author,isbn\n"+
			"bob,Emma,Jane Austen,978-67890\n"+
			"carol,Ulysses,James Joyce,978-11111\n",
		readFile(t, favorites))
	assert.Equal(t, "username,password,numberOfBooksRead\nbob,a,1\ncarol,c,3\n", readFile(t, s.Path(library.Readers)))
}

func TestApplyMixedAppendKeepsMalformedLines(t *testing.T) {
	s, dir := newStore(t)
	borrowed := filepath.Join(dir, "library-data", "borrowed_books.csv")
	writeFile(t, borrowed, "username,title,author,isbn,timestamp\nghost,row\n")

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cs := &library.Changeset{}
	cs.Borrows.Add(library.BorrowRecord{Username: "alice", Title: "Dune", Author: "Frank Herbert", ISBN: "978-12345", BorrowedAt: at})
	cs.History.Add(library.HistoryEntry{Username: "alice", Title: "Dune", Author: "Frank Herbert", ISBN: "978-12345", At: at})
	require.NoError(t, s.Apply(context.Background(), cs))

	assert.Equal(t,
		"username,title,author,isbn,timestamp\n"+
			"ghost,row\n"+
			"alice,Dune,Frank Herbert,978-12345,2026-03-01T09:30:00Z\n",
		readFile(t, borrowed))

	history, err := s.LoadHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].At.Equal(at))
}

func TestApplyStagingFailureChangesNothing(t *testing.T) {
	s, dir := newStore(t)
	users := filepath.Join(dir, "user.csv")
	writeFile(t, users, "username,password,numberOfBooksRead\nalice,pw,0\n")

	cs := &library.Changeset{}
	cs.Readers.Set(nil)
	// A comma cannot be written to a non-greedy column.
	cs.Favorites.Add(library.Favorite{Username: "alice", Title: "Dune, Messiah", Author: "Frank Herbert", ISBN: "978-12345"})
	err := s.Apply(context.Background(), cs)
	require.Error(t, err)

	assert.Equal(t, "username,password,numberOfBooksRead\nalice,pw,0\n", readFile(t, users))
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestApplyHonoursCancelledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs := &library.Changeset{}
	cs.Readers.Add(library.Account{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, s.Apply(ctx, cs), context.Canceled)
	assert.NoFileExists(t, s.Path(library.Readers))
}

func TestManagerOverFlatFiles(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "books.csv"), "title,author,isbn,available\nDune,Frank Herbert,978-12345,TRUE\n")

	ctx := context.Background()
	m, err := library.NewManager(ctx, s, library.Options{})
	require.NoError(t, err)

	_, err = m.Readers().Register(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)

	reopened, err := library.NewManager(ctx, s, library.Options{})
	require.NoError(t, err)
	assert.False(t, reopened.IsAvailable("978-12345"))
	books := reopened.Books()
	require.Len(t, books, 1)
	assert.Equal(t, "alice", books[0].BorrowedBy)

	reader, ok := reopened.Readers().Get("alice")
	require.True(t, ok)
	assert.Equal(t, 1, reader.BooksRead)
}

func writeUserLogs(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "books.csv"),
		"title,author,isbn,available\nDune,Frank Herbert,978-12345,FALSE\nEmma,Jane Austen,978-67890,FALSE\n")
	writeFile(t, filepath.Join(dir, "user.csv"),
		"username,password,numberOfBooksRead\nbob,pw,1\ndave,pw,2\n")
	writeFile(t, filepath.Join(dir, "library-data", "borrowed_books.csv"),
		"username,title,author,isbn,timestamp\n"+
			"bob,Dune,Frank Herbert,978-12345,2024-05-01T09:00:00Z\n"+
			"dave,Emma,Jane Austen,978-67890,2024-05-01T10:00:00.120Z\n")
	writeFile(t, filepath.Join(dir, "library-data", "reading_history.csv"),
		"username,title,author,isbn,timestamp\n"+
			"bob,Dune,Frank Herbert,978-12345,2024-05-01T09:00:00Z\n"+
			"dave,Emma,Jane Austen,978-67890\n")
	writeFile(t, filepath.Join(dir, "library-data", "ratings.csv"),
		"username,isbn,rating\n"+
			"bob,978-12345,5\n"+
			"dave,978-67890,five\n"+
			"dave,978-67890,4\n")
	writeFile(t, filepath.Join(dir, "library-data", "reviews.csv"),
		"username,isbn,review_text\n"+
			"bob,978-12345,Sand, spice\n"+
			"dave,978-67890,Slow,  but fine \n")
}

func TestDeleteReaderLeavesOtherRowsVerbatim(t *testing.T) {
	s, dir := newStore(t)
	writeUserLogs(t, dir)

	ctx := context.Background()
	m, err := library.NewManager(ctx, s, library.Options{})
	require.NoError(t, err)
	require.NoError(t, m.Readers().Delete(ctx, "bob", "DELETE"))

	assert.Equal(t,
		"username,title,author,isbn,timestamp\n"+
			"dave,Emma,Jane Austen,978-67890,2024-05-01T10:00:00.120Z\n",
		readFile(t, s.Path(library.Borrows)))
	assert.Equal(t,
		"username,title,author,isbn,timestamp\n"+
			"dave,Emma,Jane Austen,978-67890\n",
		readFile(t, s.Path(library.History)))
	assert.Equal(t,
		"username,isbn,rating\n"+
			"dave,978-67890,five\n"+
			"dave,978-67890,4\n",
		readFile(t, s.Path(library.Ratings)))
	assert.Equal(t,
		"username,isbn,review_text\n"+
			"dave,978-67890,Slow,  but fine \n",
		readFile(t, s.Path(library.Reviews)))
	assert.Equal(t, "username,password,numberOfBooksRead\ndave,pw,2\n", readFile(t, s.Path(library.Readers)))
}

func TestRenameReaderEditsOnlyOwnerColumn(t *testing.T) {
	s, dir := newStore(t)
	writeUserLogs(t, dir)

	ctx := context.Background()
	m, err := library.NewManager(ctx, s, library.Options{})
	require.NoError(t, err)
	_, err = m.Readers().ChangeUsername(ctx, "dave", "david")
	require.NoError(t, err)

	assert.Equal(t,
		"username,title,author,isbn,timestamp\n"+
			"bob,Dune,Frank Herbert,978-12345,2024-05-01T09:00:00Z\n"+
			"david,Emma,Jane Austen,978-67890,2024-05-01T10:00:00.120Z\n",
		readFile(t, s.Path(library.Borrows)))
	assert.Equal(t,
		"username,title,author,isbn,timestamp\n"+
			"bob,Dune,Frank Herbert,978-12345,2024-05-01T09:00:00Z\n"+
			"david,Emma,Jane Austen,978-67890\n",
		readFile(t, s.Path(library.History)))
	assert.Equal(t,
		"username,isbn,rating\n"+
			"bob,978-12345,5\n"+
			"david,978-67890,five\n"+
			"david,978-67890,4\n",
		readFile(t, s.Path(library.Ratings)))

	reopened, err := library.NewManager(ctx, s, library.Options{})
	require.NoError(t, err)
	assert.Len(t, reopened.BorrowedBooksOf("david"), 1)
	assert.Empty(t, reopened.BorrowedBooksOf("dave"))
}

func TestLoadSkipsOutOfRangeRatings(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, filepath.Join(dir, "library-data", "ratings.csv"),
		"username,isbn,rating\nalice,978-12345,9\nalice,978-67890,0\nbob,978-12345,3\n")

	ratings, err := s.LoadRatings(context.Background())
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 3, ratings[0].Stars)
	assert.Equal(t, 2, s.SkippedRows()[library.Ratings])
}
