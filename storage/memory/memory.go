// Package memory is a library.Store kept entirely in memory.
//
// It backs the tests and the "memory" backend, where nothing outlives the
// process. Fail can be set to make the next writes fail.
package memory

import (
	"context"
	"errors"
	"sync"

	"librarydesk/library"
)

// ErrInjected is the error returned by injected failures.
var ErrInjected = errors.New("memory: injected failure")

// Store holds a library.State.
type Store struct {
	mu    sync.Mutex
	state library.State

	// Fail, when set, is consulted before every Apply. A non-nil result
	// aborts the apply with no change.
	Fail func(cs *library.Changeset) error

	// LoadErr, when set, is returned by the loader of that collection.
	LoadErr map[library.Collection]error

	applies int
}

var _ library.Store = (*Store)(nil)

// New returns a store seeded with a copy of seed.
func New(seed library.State) *Store {
	return &Store{state: clone(seed)}
}

// FailAlways makes every later Apply fail.
func (s *Store) FailAlways() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail = func(*library.Changeset) error { return ErrInjected }
}

// Snapshot returns a copy of the stored state.
func (s *Store) Snapshot() library.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

// Applies counts successful applies.
func (s *Store) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

func (s *Store) Apply(_ context.Context, cs *library.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		if err := s.Fail(cs); err != nil {
			return err
		}
	}
	s.state = clone(*cs.ApplyTo(&s.state))
	s.applies++
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadBooks(context.Context) ([]library.Book, error) {
	return loadCopy(s, library.Books, func(st *library.State) []library.Book { return st.Books })
}

func (s *Store) LoadReaders(context.Context) ([]library.Account, error) {
	return loadCopy(s, library.Readers, func(st *library.State) []library.Account { return st.Readers })
}

func (s *Store) LoadLibrarians(context.Context) ([]library.Account, error) {
	return loadCopy(s, library.Librarians, func(st *library.State) []library.Account { return st.Librarians })
}

func (s *Store) LoadBorrows(context.Context) ([]library.BorrowRecord, error) {
	return loadCopy(s, library.Borrows, func(st *library.State) []library.BorrowRecord { return st.Borrows })
}

func (s *Store) LoadHistory(context.Context) ([]library.HistoryEntry, error) {
	return loadCopy(s, library.History, func(st *library.State) []library.HistoryEntry { return st.History })
}

func (s *Store) LoadRatings(context.Context) ([]library.Rating, error) {
	return loadCopy(s, library.Ratings, func(st *library.State) []library.Rating { return st.Ratings })
}

func (s *Store) LoadReviews(context.Context) ([]library.Review, error) {
	return loadCopy(s, library.Reviews, func(st *library.State) []library.Review { return st.Reviews })
}

func (s *Store) LoadFavorites(context.Context) ([]library.Favorite, error) {
	return loadCopy(s, library.Favorites, func(st *library.State) []library.Favorite { return st.Favorites })
}

func (s *Store) LoadSubmissions(context.Context) ([]library.Submission, error) {
	return loadCopy(s, library.Submissions, func(st *library.State) []library.Submission { return st.Submissions })
}

func loadCopy[T any](s *Store, c library.Collection, pick func(*library.State) []T) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.LoadErr[c]; err != nil {
		return nil, err
	}
	return append([]T(nil), pick(&s.state)...), nil
}

func clone(s library.State) library.State {
	return library.State{
		Books:       append([]library.Book(nil), s.Books...),
		Readers:     append([]library.Account(nil), s.Readers...),
		Librarians:  append([]library.Account(nil), s.Librarians...),
		Borrows:     append([]library.BorrowRecord(nil), s.Borrows...),
		History:     append([]library.HistoryEntry(nil), s.History...),
		Ratings:     append([]library.Rating(nil), s.Ratings...),
		Reviews:     append([]library.Review(nil), s.Reviews...),
		Favorites:   append([]library.Favorite(nil), s.Favorites...),
		Submissions: append([]library.Submission(nil), s.Submissions...),
	}
}
