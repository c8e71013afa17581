// Package flatfile stores the library in the comma-delimited files of the
// original program:
//
//	books.csv
//	user.csv
//	librarian.csv
//	library-data/borrowed_books.csv
//	library-data/reading_history.csv
//	library-data/ratings.csv
//	library-data/favorites.csv
//	library-data/reviews.csv
//	library-data/submissions.csv
//
// Every file is read in full and rewritten in full. Apply stages all the
// rewrites of a changeset before renaming any of them into place.
package flatfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"librarydesk/library"
	"librarydesk/records"
)

// Options configures a Store.
type Options struct {
	// Strict fails loads on malformed rows instead of skipping them.
	Strict bool
	Logger *slog.Logger
}

// Store is a library.Store over a directory of CSV files.
type Store struct {
	dir    string
	strict bool
	log    *slog.Logger

	mu      sync.Mutex
	skipped map[library.Collection]int
}

var (
	_ library.Store       = (*Store)(nil)
	_ library.Diagnostics = (*Store)(nil)
)

// New returns a store rooted at dir, creating dir and dir/library-data.
func New(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "library-data"), 0o755); err != nil {
		return nil, fmt.Errorf("flatfile: create data dir: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		dir:     dir,
		strict:  opts.Strict,
		log:     log,
		skipped: make(map[library.Collection]int),
	}, nil
}

// Path returns the file backing c.
func (s *Store) Path(c library.Collection) string {
	return filepath.Join(s.dir, filepath.FromSlash(files[c].name))
}

func (s *Store) layout(c library.Collection) records.Layout {
	l := files[c].layout
	l.Strict = s.strict
	return l
}

// rawLayout reads every non-blank line, however short.
func (s *Store) rawLayout(c library.Collection) records.Layout {
	l := files[c].layout
	l.MinColumns, l.Strict = 0, false
	return l
}

// SkippedRows returns the rows dropped by the most recent load of each
// collection, either too short or failing to decode.
func (s *Store) SkippedRows() map[library.Collection]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[library.Collection]int, len(s.skipped))
	for c, n := range s.skipped {
		out[c] = n
	}
	return out
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadBooks(ctx context.Context) ([]library.Book, error) {
	return load(ctx, s, library.Books, decodeBook)
}

func (s *Store) LoadReaders(ctx context.Context) ([]library.Account, error) {
	return load(ctx, s, library.Readers, decodeReader)
}

func (s *Store) LoadLibrarians(ctx context.Context) ([]library.Account, error) {
	return load(ctx, s, library.Librarians, decodeLibrarian)
}

func (s *Store) LoadBorrows(ctx context.Context) ([]library.BorrowRecord, error) {
	return load(ctx, s, library.Borrows, decodeBorrow)
}

func (s *Store) LoadHistory(ctx context.Context) ([]library.HistoryEntry, error) {
	return load(ctx, s, library.History, decodeHistory)
}

func (s *Store) LoadRatings(ctx context.Context) ([]library.Rating, error) {
	return load(ctx, s, library.Ratings, decodeRating)
}

func (s *Store) LoadReviews(ctx context.Context) ([]library.Review, error) {
	return load(ctx, s, library.Reviews, decodeReview)
}

func (s *Store) LoadFavorites(ctx context.Context) ([]library.Favorite, error) {
	return load(ctx, s, library.Favorites, decodeFavorite)
}

func (s *Store) LoadSubmissions(ctx context.Context) ([]library.Submission, error) {
	return load(ctx, s, library.Submissions, decodeSubmission)
}

func load[T any](ctx context.Context, s *Store, c library.Collection, decode func([]string) (T, bool)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := records.LoadAll(s.Path(c), s.layout(c))
	if err != nil {
		return nil, err
	}
	skipped := table.Skipped
	out := make([]T, 0, len(table.Rows))
	for _, row := range table.Rows {
		v, ok := decode(row)
		if !ok {
			if s.strict {
				return nil, fmt.Errorf("%w: %s: %q", records.ErrMalformedRow, s.Path(c), row)
			}
			skipped++
			continue
		}
		out = append(out, v)
	}

	s.mu.Lock()
	s.skipped[c] = skipped
	s.mu.Unlock()
	return out, nil
}

// Apply writes cs. A changeset that only appends to one collection is
// appended in place; anything else goes through a records.Batch so that a
// failure while staging changes nothing.
func (s *Store) Apply(ctx context.Context, cs *library.Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	touched := cs.Touched()
	if len(touched) == 0 {
		return nil
	}
	if cs.AppendOnly() && len(touched) == 1 {
		return s.appendOnly(touched[0], cs)
	}

	var batch records.Batch
	paths := make(map[string]library.Collection, len(touched))
	for _, c := range touched {
		if err := s.stage(&batch, c, cs); err != nil {
			batch.Discard()
			return fmt.Errorf("flatfile: stage %s: %w", c, err)
		}
		paths[s.Path(c)] = c
	}

	err := batch.Commit()
	var ce *records.CommitError
	if errors.As(err, &ce) {
		out := &library.CommitError{Err: ce.Err}
		for _, p := range ce.Committed {
			out.Committed = append(out.Committed, paths[p])
		}
		for _, p := range ce.Pending {
			out.Pending = append(out.Pending, paths[p])
		}
		return out
	}
	if err != nil {
		return err
	}
	s.log.Debug("files rewritten", slog.Int("files", len(touched)))
	return nil
}

func (s *Store) stage(b *records.Batch, c library.Collection, cs *library.Changeset) error {
	if cs.Reassign != nil {
		if col, ok := ownerColumn[c]; ok {
			return s.stageReassign(b, c, col, *cs.Reassign)
		}
	}
	switch c {
	case library.Books:
		return stage(s, b, c, &cs.Books, encodeBook)
	case library.Readers:
		return stage(s, b, c, &cs.Readers, encodeReader)
	case library.Librarians:
		return stage(s, b, c, &cs.Librarians, encodeLibrarian)
	case library.Borrows:
		return stage(s, b, c, &cs.Borrows, encodeBorrow)
	case library.History:
		return stage(s, b, c, &cs.History, encodeHistory)
	case library.Ratings:
		return stage(s, b, c, &cs.Ratings, encodeRating)
	case library.Reviews:
		return stage(s, b, c, &cs.Reviews, encodeReview)
	case library.Favorites:
		return stage(s, b, c, &cs.Favorites, encodeFavorite)
	case library.Submissions:
		return stage(s, b, c, &cs.Submissions, encodeSubmission)
	}
	return fmt.Errorf("unknown collection %s", c)
}

// stage writes the new content of one file to the batch. For appends the
// current raw lines are carried over untouched, malformed ones included.
func stage[T any](s *Store, b *records.Batch, c library.Collection, ch *library.Change[T], encode func(T) []string) error {
	var rows [][]string
	if ch.Replace {
		rows = make([][]string, 0, len(ch.Rows))
		for _, v := range ch.Rows {
			rows = append(rows, encode(v))
		}
	} else {
		table, err := records.LoadAll(s.Path(c), s.rawLayout(c))
		if err != nil {
			return err
		}
		rows = table.Rows
		for _, v := range ch.Appended {
			rows = append(rows, encode(v))
		}
	}
	return b.Rewrite(s.Path(c), s.layout(c), rows)
}

// stageReassign edits the raw lines of a user log. Rows whose owner column
// is r.From are renamed or dropped; every other line, including ones that
// do not decode, is written back as read.
func (s *Store) stageReassign(b *records.Batch, c library.Collection, col int, r library.Reassign) error {
	table, err := records.LoadAll(s.Path(c), s.rawLayout(c))
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if field(row, col) != r.From {
			rows = append(rows, row)
			continue
		}
		if r.To == "" {
			continue
		}
		row[col] = r.To
		rows = append(rows, row)
	}
	return b.Rewrite(s.Path(c), s.layout(c), rows)
}

func (s *Store) appendOnly(c library.Collection, cs *library.Changeset) error {
	switch c {
	case library.Books:
		return appendRows(s, c, cs.Books.Appended, encodeBook)
	case library.Readers:
		return appendRows(s, c, cs.Readers.Appended, encodeReader)
	case library.Librarians:
		return appendRows(s, c, cs.Librarians.Appended, encodeLibrarian)
	case library.Borrows:
		return appendRows(s, c, cs.Borrows.Appended, encodeBorrow)
	case library.History:
		return appendRows(s, c, cs.History.Appended, encodeHistory)
	case library.Ratings:
		return appendRows(s, c, cs.Ratings.Appended, encodeRating)
	case library.Reviews:
		return appendRows(s, c, cs.Reviews.Appended, encodeReview)
	case library.Favorites:
		return appendRows(s, c, cs.Favorites.Appended, encodeFavorite)
	case library.Submissions:
		return appendRows(s, c, cs.Submissions.Appended, encodeSubmission)
	}
	return fmt.Errorf("flatfile: unknown collection %s", c)
}

func appendRows[T any](s *Store, c library.Collection, rows []T, encode func(T) []string) error {
	if len(rows) == 1 {
		if err := records.AppendRow(s.Path(c), s.layout(c), encode(rows[0])); err != nil {
			return fmt.Errorf("flatfile: append %s: %w", c, err)
		}
		return nil
	}
	// Several rows go through a rewrite so they land together or not at all.
	var b records.Batch
	if err := stage(s, &b, c, &library.Change[T]{Appended: rows}, encode); err != nil {
		b.Discard()
		return fmt.Errorf("flatfile: stage %s: %w", c, err)
	}
	return b.Commit()
}
