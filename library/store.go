package library

import (
	"context"
	"fmt"
	"strings"
)

// CatalogStore loads the book collection.
type CatalogStore interface {
	LoadBooks(ctx context.Context) ([]Book, error)
}

// AccountStore loads both account directories.
type AccountStore interface {
	LoadReaders(ctx context.Context) ([]Account, error)
	LoadLibrarians(ctx context.Context) ([]Account, error)
}

// LedgerStore loads the per-user logs.
type LedgerStore interface {
	LoadBorrows(ctx context.Context) ([]BorrowRecord, error)
	LoadHistory(ctx context.Context) ([]HistoryEntry, error)
	LoadRatings(ctx context.Context) ([]Rating, error)
	LoadReviews(ctx context.Context) ([]Review, error)
	LoadFavorites(ctx context.Context) ([]Favorite, error)
	LoadSubmissions(ctx context.Context) ([]Submission, error)
}

// Store is a complete storage backend.
//
// Apply must be all-or-nothing where the backend can guarantee it. When it
// cannot (a flat-file rename failing halfway), it returns a *CommitError
// saying which collections were already written.
type Store interface {
	CatalogStore
	AccountStore
	LedgerStore
	Apply(ctx context.Context, cs *Changeset) error
	Close() error
}

// Diagnostics is implemented by stores that parse leniently. SkippedRows
// reports how many malformed rows each collection dropped on its last load.
type Diagnostics interface {
	SkippedRows() map[Collection]int
}

// Collection names one persisted collection.
type Collection int

const (
	Books Collection = iota
	Readers
	Librarians
	Borrows
	History
	Ratings
	Reviews
	Favorites
	Submissions
)

// AllCollections lists every collection in commit order.
var AllCollections = []Collection{Books, Readers, Librarians, Borrows, History, Ratings, Reviews, Favorites, Submissions}

// UserLogs are the collections whose rows belong to one reader.
var UserLogs = []Collection{Borrows, History, Ratings, Reviews, Favorites, Submissions}

func (c Collection) String() string {
	switch c {
	case Books:
		return "books"
	case Readers:
		return "readers"
	case Librarians:
		return "librarians"
	case Borrows:
		return "borrowed_books"
	case History:
		return "reading_history"
	case Ratings:
		return "ratings"
	case Reviews:
		return "reviews"
	case Favorites:
		return "favorites"
	case Submissions:
		return "submissions"
	}
	return fmt.Sprintf("collection(%d)", int(c))
}

// Change is the pending change to one collection: either a full replacement
// or rows appended to the current content.
type Change[T any] struct {
	Replace  bool
	Rows     []T
	Appended []T
}

// Touched reports whether the change does anything.
func (c *Change[T]) Touched() bool { return c.Replace || len(c.Appended) > 0 }

// Set replaces the whole collection.
func (c *Change[T]) Set(rows []T) {
	c.Replace = true
	c.Rows = rows
	c.Appended = nil
}

// Add appends rows. After Set, the rows are folded into the replacement.
func (c *Change[T]) Add(rows ...T) {
	if c.Replace {
		c.Rows = append(c.Rows, rows...)
		return
	}
	c.Appended = append(c.Appended, rows...)
}

// ApplyTo returns the collection content after the change.
func (c *Change[T]) ApplyTo(current []T) []T {
	switch {
	case c.Replace:
		return append([]T(nil), c.Rows...)
	case len(c.Appended) > 0:
		out := make([]T, 0, len(current)+len(c.Appended))
		out = append(out, current...)
		return append(out, c.Appended...)
	}
	return current
}

// Changeset groups the changes of one operation so a store can write them
// together.
type Changeset struct {
	Books       Change[Book]
	Readers     Change[Account]
	Librarians  Change[Account]
	Borrows     Change[BorrowRecord]
	History     Change[HistoryEntry]
	Ratings     Change[Rating]
	Reviews     Change[Review]
	Favorites   Change[Favorite]
	Submissions Change[Submission]

	// Reassign is set when the user logs are replaced because a reader was
	// renamed or deleted. Stores that keep rows they could not decode use it
	// to edit the owner's rows in place and leave every other row as it was.
	Reassign *Reassign
}

// Reassign moves the user log rows owned by From to To. An empty To drops
// them.
type Reassign struct {
	From string
	To   string
}

// Touched returns the collections this changeset writes, in commit order.
func (cs *Changeset) Touched() []Collection {
	flags := map[Collection]bool{
		Books:       cs.Books.Touched(),
		Readers:     cs.Readers.Touched(),
		Librarians:  cs.Librarians.Touched(),
		Borrows:     cs.Borrows.Touched(),
		History:     cs.History.Touched(),
		Ratings:     cs.Ratings.Touched(),
		Reviews:     cs.Reviews.Touched(),
		Favorites:   cs.Favorites.Touched(),
		Submissions: cs.Submissions.Touched(),
	}
	var out []Collection
	for _, c := range AllCollections {
		if flags[c] {
			out = append(out, c)
		}
	}
	return out
}

// AppendOnly reports whether no collection is replaced.
func (cs *Changeset) AppendOnly() bool {
	return !cs.Books.Replace && !cs.Readers.Replace && !cs.Librarians.Replace &&
		!cs.Borrows.Replace && !cs.History.Replace && !cs.Ratings.Replace &&
		!cs.Reviews.Replace && !cs.Favorites.Replace && !cs.Submissions.Replace
}

// ApplyTo returns a copy of s with the changeset applied.
func (cs *Changeset) ApplyTo(s *State) *State {
	return &State{
		Books:       cs.Books.ApplyTo(s.Books),
		Readers:     cs.Readers.ApplyTo(s.Readers),
		Librarians:  cs.Librarians.ApplyTo(s.Librarians),
		Borrows:     cs.Borrows.ApplyTo(s.Borrows),
		History:     cs.History.ApplyTo(s.History),
		Ratings:     cs.Ratings.ApplyTo(s.Ratings),
		Reviews:     cs.Reviews.ApplyTo(s.Reviews),
		Favorites:   cs.Favorites.ApplyTo(s.Favorites),
		Submissions: cs.Submissions.ApplyTo(s.Submissions),
	}
}

// CommitError is returned by Store.Apply when some collections were written
// and others were not.
type CommitError struct {
	Committed []Collection
	Pending   []Collection
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("partial commit: wrote %s, not written %s: %v",
		joinCollections(e.Committed), joinCollections(e.Pending), e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func joinCollections(cs []Collection) string {
	if len(cs) == 0 {
		return "nothing"
	}
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
