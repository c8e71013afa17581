// Package sqlite is a library.Store backed by a single SQLite database.
//
// Every collection is a table whose autoincrement id preserves row order.
// Apply runs the whole changeset in one transaction, so unlike the flat
// files it never leaves a partial commit behind.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"librarydesk/library"
)

// Store holds the SQLite connection.
type Store struct {
	db *sql.DB
}

var _ library.Store = (*Store)(nil)

// Open opens (or creates) the database at dbPath and applies schema
// migrations.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared between queries.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1,
            borrowed_by TEXT NOT NULL DEFAULT '',
            due_date TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS readers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            password TEXT NOT NULL,
            books_read INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS librarians (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            password TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS borrowed_books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            borrowed_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS reading_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            at TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS ratings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            isbn TEXT NOT NULL,
            stars INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS reviews (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            isbn TEXT NOT NULL,
            review_text TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS favorites (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS submissions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            submission_id TEXT NOT NULL UNIQUE,
            username TEXT NOT NULL,
            title TEXT NOT NULL,
            isbn TEXT NOT NULL,
            submitted_at TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrowed_books_isbn ON borrowed_books(isbn);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		var args []any
		if strings.Contains(stmt, "?") {
			args = []any{schemaVersion}
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

// table maps one collection onto its SQL table.
type table[T any] struct {
	name    string
	columns []string
	values  func(T) []any
	scan    func(scanner) (T, error)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var books = table[library.Book]{
	name:    "books",
	columns: []string{"title", "author", "isbn", "available", "borrowed_by", "due_date"},
	values: func(b library.Book) []any {
		due := ""
		if b.DueDate != nil {
			due = formatTime(*b.DueDate)
		}
		return []any{b.Title, b.Author, b.ISBN, b.Available, b.BorrowedBy, due}
	},
	scan: func(sc scanner) (library.Book, error) {
		var b library.Book
		var due string
		err := sc.Scan(&b.Title, &b.Author, &b.ISBN, &b.Available, &b.BorrowedBy, &due)
		if t := parseTime(due); !t.IsZero() {
			b.DueDate = &t
		}
		return b, err
	},
}

var readers = table[library.Account]{
	name:    "readers",
	columns: []string{"username", "password", "books_read"},
	values:  func(a library.Account) []any { return []any{a.Username, a.Password, a.BooksRead} },
	scan: func(sc scanner) (library.Account, error) {
		var a library.Account
		err := sc.Scan(&a.Username, &a.Password, &a.BooksRead)
		return a, err
	},
}

var librarians = table[library.Account]{
	name:    "librarians",
	columns: []string{"username", "password"},
	values:  func(a library.Account) []any { return []any{a.Username, a.Password} },
	scan: func(sc scanner) (library.Account, error) {
		var a library.Account
		err := sc.Scan(&a.Username, &a.Password)
		return a, err
	},
}

var borrows = table[library.BorrowRecord]{
	name:    "borrowed_books",
	columns: []string{"username", "title", "author", "isbn", "borrowed_at"},
	values: func(r library.BorrowRecord) []any {
		return []any{r.Username, r.Title, r.Author, r.ISBN, formatTime(r.BorrowedAt)}
	},
	scan: func(sc scanner) (library.BorrowRecord, error) {
		var r library.BorrowRecord
		var at string
		err := sc.Scan(&r.Username, &r.Title, &r.Author, &r.ISBN, &at)
		r.BorrowedAt = parseTime(at)
		return r, err
	},
}

var history = table[library.HistoryEntry]{
	name:    "reading_history",
	columns: []string{"username", "title", "author", "isbn", "at"},
	values: func(e library.HistoryEntry) []any {
		return []any{e.Username, e.Title, e.Author, e.ISBN, formatTime(e.At)}
	},
	scan: func(sc scanner) (library.HistoryEntry, error) {
		var e library.HistoryEntry
		var at string
		err := sc.Scan(&e.Username, &e.Title, &e.Author, &e.ISBN, &at)
		e.At = parseTime(at)
		return e, err
	},
}

var ratings = table[library.Rating]{
	name:    "ratings",
	columns: []string{"username", "isbn", "stars"},
	values:  func(r library.Rating) []any { return []any{r.Username, r.ISBN, r.Stars} },
	scan: func(sc scanner) (library.Rating, error) {
		var r library.Rating
		err := sc.Scan(&r.Username, &r.ISBN, &r.Stars)
		return r, err
	},
}

var reviews = table[library.Review]{
	name:    "reviews",
	columns: []string{"username", "isbn", "review_text"},
	values:  func(r library.Review) []any { return []any{r.Username, r.ISBN, r.Text} },
	scan: func(sc scanner) (library.Review, error) {
		var r library.Review
		err := sc.Scan(&r.Username, &r.ISBN, &r.Text)
		return r, err
	},
}

var favorites = table[library.Favorite]{
	name:    "favorites",
	columns: []string{"username", "title", "author", "isbn"},
	values:  func(f library.Favorite) []any { return []any{f.Username, f.Title, f.Author, f.ISBN} },
	scan: func(sc scanner) (library.Favorite, error) {
		var f library.Favorite
		err := sc.Scan(&f.Username, &f.Title, &f.Author, &f.ISBN)
		return f, err
	},
}

var submissions = table[library.Submission]{
	name:    "submissions",
	columns: []string{"submission_id", "username", "title", "isbn", "submitted_at"},
	values: func(s library.Submission) []any {
		return []any{s.ID, s.Username, s.Title, s.ISBN, formatTime(s.SubmittedAt)}
	},
	scan: func(sc scanner) (library.Submission, error) {
		var s library.Submission
		var at string
		err := sc.Scan(&s.ID, &s.Username, &s.Title, &s.ISBN, &at)
		s.SubmittedAt = parseTime(at)
		return s, err
	},
}

// ---------------------------------------------------------------------------
// Loads
// ---------------------------------------------------------------------------

func loadAll[T any](ctx context.Context, db *sql.DB, t table[T]) ([]T, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, strings.Join(t.columns, ","), t.name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) LoadBooks(ctx context.Context) ([]library.Book, error) {
	return loadAll(ctx, s.db, books)
}

func (s *Store) LoadReaders(ctx context.Context) ([]library.Account, error) {
	return loadAll(ctx, s.db, readers)
}

func (s *Store) LoadLibrarians(ctx context.Context) ([]library.Account, error) {
	return loadAll(ctx, s.db, librarians)
}

func (s *Store) LoadBorrows(ctx context.Context) ([]library.BorrowRecord, error) {
	return loadAll(ctx, s.db, borrows)
}

func (s *Store) LoadHistory(ctx context.Context) ([]library.HistoryEntry, error) {
	return loadAll(ctx, s.db, history)
}

func (s *Store) LoadRatings(ctx context.Context) ([]library.Rating, error) {
	return loadAll(ctx, s.db, ratings)
}

func (s *Store) LoadReviews(ctx context.Context) ([]library.Review, error) {
	return loadAll(ctx, s.db, reviews)
}

func (s *Store) LoadFavorites(ctx context.Context) ([]library.Favorite, error) {
	return loadAll(ctx, s.db, favorites)
}

func (s *Store) LoadSubmissions(ctx context.Context) ([]library.Submission, error) {
	return loadAll(ctx, s.db, submissions)
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Apply writes the changeset in a single transaction.
func (s *Store) Apply(ctx context.Context, cs *library.Changeset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []func() error{
		func() error { return write(ctx, tx, books, &cs.Books) },
		func() error { return write(ctx, tx, readers, &cs.Readers) },
		func() error { return write(ctx, tx, librarians, &cs.Librarians) },
		func() error { return write(ctx, tx, borrows, &cs.Borrows) },
		func() error { return write(ctx, tx, history, &cs.History) },
		func() error { return write(ctx, tx, ratings, &cs.Ratings) },
		func() error { return write(ctx, tx, reviews, &cs.Reviews) },
		func() error { return write(ctx, tx, favorites, &cs.Favorites) },
		func() error { return write(ctx, tx, submissions, &cs.Submissions) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// write replays one change. A replacement clears the table first.
func write[T any](ctx context.Context, tx *sql.Tx, t table[T], ch *library.Change[T]) error {
	if !ch.Touched() {
		return nil
	}
	rows := ch.Appended
	if ch.Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t.name); err != nil {
			return fmt.Errorf("clear %s: %w", t.name, err)
		}
		rows = ch.Rows
	}
	if len(rows) == 0 {
		return nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?,", len(t.columns)), ",")
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(%s) VALUES(%s)`, t.name, strings.Join(t.columns, ","), marks))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.name, err)
	}
	defer stmt.Close()

	for _, v := range rows {
		if _, err := stmt.ExecContext(ctx, t.values(v)...); err != nil {
			return fmt.Errorf("insert %s: %w", t.name, err)
		}
	}
	return nil
}
