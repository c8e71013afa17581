package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultLoanPeriod is how long a borrow lasts before it counts as overdue.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Options configures a Manager. The zero value is usable.
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	LoanPeriod time.Duration
	Passwords  PasswordScheme
}

// Manager owns the in-memory copy of every collection and is the only
// writer to the Store.
//
// Each mutating call builds a Changeset, hands it to Store.Apply and swaps
// the in-memory state only when the store accepted it, so a failed write
// leaves both memory and storage as they were. Calls are serialised by a
// mutex; the store itself has no cross-process locking.
type Manager struct {
	mu    sync.Mutex
	store Store
	state *State

	// unreadable collections failed to load and must not be overwritten.
	unreadable map[Collection]error

	log        *slog.Logger
	now        func() time.Time
	loanPeriod time.Duration
	passwords  PasswordScheme
}

// NewManager loads every collection from store. A collection that cannot be
// read starts out empty; the error is logged and the collection is protected
// from full rewrites for the rest of the run.
func NewManager(ctx context.Context, store Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("library: nil store")
	}
	m := &Manager{
		store:      store,
		log:        opts.Logger,
		now:        opts.Now,
		loanPeriod: opts.LoanPeriod,
		passwords:  opts.Passwords,
		unreadable: make(map[Collection]error),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.loanPeriod <= 0 {
		m.loanPeriod = DefaultLoanPeriod
	}
	if m.passwords == "" {
		m.passwords = PasswordsPlain
	}

	m.state = m.loadState(ctx)
	m.reportDiagnostics()
	m.checkAvailabilityColumn()
	return m, nil
}

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

// LoanPeriod returns the configured loan length.
func (m *Manager) LoanPeriod() time.Duration { return m.loanPeriod }

// SkippedRows returns the diagnostics of the store, or nil when the store
// does not parse leniently.
func (m *Manager) SkippedRows() map[Collection]int {
	if d, ok := m.store.(Diagnostics); ok {
		return d.SkippedRows()
	}
	return nil
}

// Unreadable returns the collections that failed to load.
func (m *Manager) Unreadable() map[Collection]error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Collection]error, len(m.unreadable))
	for c, err := range m.unreadable {
		out[c] = err
	}
	return out
}

func (m *Manager) loadState(ctx context.Context) *State {
	s := &State{}
	load(m, ctx, Books, m.store.LoadBooks, &s.Books)
	load(m, ctx, Readers, m.store.LoadReaders, &s.Readers)
	load(m, ctx, Librarians, m.store.LoadLibrarians, &s.Librarians)
	load(m, ctx, Borrows, m.store.LoadBorrows, &s.Borrows)
	load(m, ctx, History, m.store.LoadHistory, &s.History)
	load(m, ctx, Ratings, m.store.LoadRatings, &s.Ratings)
	load(m, ctx, Reviews, m.store.LoadReviews, &s.Reviews)
	load(m, ctx, Favorites, m.store.LoadFavorites, &s.Favorites)
	load(m, ctx, Submissions, m.store.LoadSubmissions, &s.Submissions)
	return s
}

func load[T any](m *Manager, ctx context.Context, c Collection, fn func(context.Context) ([]T, error), dst *[]T) {
	rows, err := fn(ctx)
	if err != nil {
		m.log.Warn("collection unreadable, starting empty",
			slog.String("collection", c.String()),
			slog.Any("error", err),
		)
		m.unreadable[c] = err
		*dst = nil
		return
	}
	delete(m.unreadable, c)
	*dst = rows
}

func (m *Manager) reportDiagnostics() {
	for c, n := range m.SkippedRows() {
		if n > 0 {
			m.log.Warn("skipped malformed rows",
				slog.String("collection", c.String()),
				slog.Int("rows", n),
			)
		}
	}
}

// checkAvailabilityColumn logs books whose stored availability disagrees
// with the borrow records. The borrow records win.
func (m *Manager) checkAvailabilityColumn() {
	derived := m.deriveBooks(m.state.Books, m.state.Borrows)
	for i, b := range m.state.Books {
		if b.Available != derived[i].Available {
			m.log.Info("stored availability ignored",
				slog.String("isbn", b.ISBN),
				slog.Bool("stored", b.Available),
				slog.Bool("derived", derived[i].Available),
			)
		}
	}
}

// commit writes cs and, on success, folds it into the in-memory state.
// Callers hold m.mu.
func (m *Manager) commit(ctx context.Context, op string, cs *Changeset) error {
	if cs.Books.Touched() || cs.Borrows.Touched() {
		next := cs.ApplyTo(m.state)
		cs.Books.Set(m.deriveBooks(next.Books, next.Borrows))
	}
	for _, c := range cs.Touched() {
		if err, bad := m.unreadable[c]; bad && replaces(cs, c) {
			return storageError(op, fmt.Errorf("%s could not be loaded earlier, refusing to overwrite it: %w", c, err))
		}
	}

	if err := m.store.Apply(ctx, cs); err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			m.log.Error("partial commit",
				slog.String("op", op),
				slog.String("committed", joinCollections(ce.Committed)),
				slog.String("pending", joinCollections(ce.Pending)),
				slog.Any("error", ce.Err),
			)
			// Storage no longer matches memory; memory follows storage.
			m.state = m.loadState(ctx)
		} else {
			m.log.Warn("write failed", slog.String("op", op), slog.Any("error", err))
		}
		return storageError(op, err)
	}

	m.state = cs.ApplyTo(m.state)
	m.log.Debug("committed", slog.String("op", op), slog.String("collections", joinCollections(cs.Touched())))
	return nil
}

func replaces(cs *Changeset, c Collection) bool {
	switch c {
	case Books:
		return cs.Books.Replace
	case Readers:
		return cs.Readers.Replace
	case Librarians:
		return cs.Librarians.Replace
	case Borrows:
		return cs.Borrows.Replace
	case History:
		return cs.History.Replace
	case Ratings:
		return cs.Ratings.Replace
	case Reviews:
		return cs.Reviews.Replace
	case Favorites:
		return cs.Favorites.Replace
	case Submissions:
		return cs.Submissions.Replace
	}
	return false
}

// deriveBooks fills the availability fields from the borrow records.
func (m *Manager) deriveBooks(books []Book, borrows []BorrowRecord) []Book {
	active := make(map[string]BorrowRecord, len(borrows))
	for _, r := range borrows {
		key := canonicalKey(r.ISBN)
		if _, seen := active[key]; !seen {
			active[key] = r
		}
	}

	out := make([]Book, len(books))
	for i, b := range books {
		b.Available = true
		b.BorrowedBy = ""
		b.DueDate = nil
		if r, ok := active[canonicalKey(b.ISBN)]; ok {
			b.Available = false
			b.BorrowedBy = r.Username
			if !r.BorrowedAt.IsZero() {
				due := r.BorrowedAt.Add(m.loanPeriod)
				b.DueDate = &due
			}
		}
		out[i] = b
	}
	return out
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Second)
}
