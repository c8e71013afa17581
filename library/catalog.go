package library

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// ListBooks re-reads the catalog from the store so that edits made by
// another process show up, then returns every book with derived
// availability. If the reload fails the last known catalog is returned.
func (m *Manager) ListBooks(ctx context.Context) []Book {
	m.mu.Lock()
	defer m.mu.Unlock()

	books, err := m.store.LoadBooks(ctx)
	if err != nil {
		m.log.Warn("catalog reload failed, showing cached books", slog.Any("error", err))
	} else {
		m.state.Books = books
		delete(m.unreadable, Books)
	}
	return m.deriveBooks(m.state.Books, m.state.Borrows)
}

// Books returns the cached catalog without touching the store.
func (m *Manager) Books() []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deriveBooks(m.state.Books, m.state.Borrows)
}

// FindBook looks a book up by ISBN. Both "12345" and "978-12345" match.
func (m *Manager) FindBook(isbn string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _, err := m.findBook(isbn)
	return b, err
}

func (m *Manager) findBook(isbn string) (Book, int, error) {
	key := canonicalKey(isbn)
	books := m.deriveBooks(m.state.Books, m.state.Borrows)
	for i, b := range books {
		if canonicalKey(b.ISBN) == key {
			return b, i, nil
		}
	}
	return Book{}, -1, withMessage(ErrBookNotFound, "no book with ISBN %s", strings.TrimSpace(isbn))
}

// IsAvailable reports whether isbn has no active borrow record.
func (m *Manager) IsAvailable(isbn string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeBorrow(isbn) < 0
}

func (m *Manager) activeBorrow(isbn string) int {
	key := canonicalKey(isbn)
	for i, r := range m.state.Borrows {
		if canonicalKey(r.ISBN) == key {
			return i
		}
	}
	return -1
}

// SearchBooks returns the books whose title, author or ISBN contains query,
// ignoring case. A blank query matches nothing.
func (m *Manager) SearchBooks(query string) []Book {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	fold := cases.Fold()
	needle := fold.String(q)

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Book
	for _, b := range m.deriveBooks(m.state.Books, m.state.Borrows) {
		if strings.Contains(fold.String(b.Title), needle) ||
			strings.Contains(fold.String(b.Author), needle) ||
			strings.Contains(fold.String(b.ISBN), needle) {
			out = append(out, b)
		}
	}
	return out
}

// FindExact returns books whose title, author or ISBN equals query ignoring
// case. This is the lookup behind "read a book".
func (m *Manager) FindExact(query string) []Book {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	fold := cases.Fold()
	needle := fold.String(q)
	key := canonicalKey(q)

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Book
	for _, b := range m.deriveBooks(m.state.Books, m.state.Borrows) {
		if fold.String(b.Title) == needle || fold.String(b.Author) == needle || canonicalKey(b.ISBN) == key {
			out = append(out, b)
		}
	}
	return out
}

// AddBook adds a new, available book. The ISBN is stored in canonical form.
func (m *Manager) AddBook(ctx context.Context, title, author, isbn string) (Book, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	v := &validator{}
	v.required("title", title).plain("title", title).maxLen("title", title, 200).
		required("author", author).plain("author", author).maxLen("author", author, 120)
	if err := v.err(); err != nil {
		return Book{}, err
	}
	canonical, err := NormalizeISBN(isbn)
	if err != nil {
		return Book{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addBookLocked(ctx, "add book", title, author, canonical, nil)
}

// addBookLocked appends a book; extra lets callers fold more changes into
// the same commit.
func (m *Manager) addBookLocked(ctx context.Context, op, title, author, canonical string, extra func(*Changeset)) (Book, error) {
	if _, _, err := m.findBook(canonical); err == nil {
		return Book{}, withMessage(ErrDuplicateISBN, "a book with ISBN %s already exists", canonical)
	}

	book := Book{Title: title, Author: author, ISBN: canonical, Available: true}
	cs := &Changeset{}
	cs.Books.Set(append(append([]Book(nil), m.state.Books...), book))
	if extra != nil {
		extra(cs)
	}
	if err := m.commit(ctx, op, cs); err != nil {
		return Book{}, err
	}
	m.log.Info("book added", slog.String("isbn", canonical), slog.String("title", title))
	return book, nil
}

// RemoveBook deletes the first book matching isbn. Borrow records pointing at
// it are kept; they simply no longer resolve to a catalog entry.
func (m *Manager) RemoveBook(ctx context.Context, isbn string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, idx, err := m.findBook(isbn)
	if err != nil {
		return Book{}, err
	}
	books := make([]Book, 0, len(m.state.Books)-1)
	books = append(books, m.state.Books[:idx]...)
	books = append(books, m.state.Books[idx+1:]...)

	cs := &Changeset{}
	cs.Books.Set(books)
	if err := m.commit(ctx, "remove book", cs); err != nil {
		return Book{}, err
	}
	m.log.Info("book removed", slog.String("isbn", book.ISBN))
	return book, nil
}

// UpdateBookInfo changes title and/or author. A blank value keeps the
// current one.
func (m *Manager) UpdateBookInfo(ctx context.Context, isbn, title, author string) (Book, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	v := &validator{}
	v.plain("title", title).maxLen("title", title, 200).
		plain("author", author).maxLen("author", author, 120)
	if err := v.err(); err != nil {
		return Book{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, idx, err := m.findBook(isbn)
	if err != nil {
		return Book{}, err
	}
	books := append([]Book(nil), m.state.Books...)
	if title != "" {
		books[idx].Title = title
	}
	if author != "" {
		books[idx].Author = author
	}

	cs := &Changeset{}
	cs.Books.Set(books)
	if err := m.commit(ctx, "update book", cs); err != nil {
		return Book{}, err
	}
	b, _, _ := m.findBook(books[idx].ISBN)
	return b, nil
}

// Borrow lends the book to username. It fails with ErrBookNotFound or
// ErrNotAvailable; on success the borrow record and a history entry are
// written and the reader's book count goes up by one.
func (m *Manager) Borrow(ctx context.Context, username, isbn string) (BorrowReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, _, err := m.findBook(isbn)
	if err != nil {
		return BorrowReceipt{}, err
	}
	if !book.Available {
		return BorrowReceipt{}, withMessage(ErrNotAvailable, "%q is currently not available", book.Title)
	}
	readers, idx := m.accountIndex(RoleReader, username)
	if idx < 0 {
		return BorrowReceipt{}, withMessage(ErrAccountNotFound, "reader %q not found", username)
	}

	at := m.timestamp()
	record := BorrowRecord{Username: username, Title: book.Title, Author: book.Author, ISBN: book.ISBN, BorrowedAt: at}
	updated := append([]Account(nil), readers...)
	updated[idx].BooksRead++

	cs := &Changeset{}
	cs.Borrows.Add(record)
	cs.History.Add(HistoryEntry{Username: username, Title: book.Title, Author: book.Author, ISBN: book.ISBN, At: at})
	cs.Readers.Set(updated)
	if err := m.commit(ctx, "borrow", cs); err != nil {
		return BorrowReceipt{}, err
	}

	lent, _, _ := m.findBook(book.ISBN)
	m.log.Info("book borrowed", slog.String("isbn", book.ISBN), slog.String("user", username))
	return BorrowReceipt{
		Book:      lent,
		Record:    record,
		DueDate:   at.Add(m.loanPeriod),
		BooksRead: updated[idx].BooksRead,
	}, nil
}

// Return ends username's loan of isbn. Other loans of the same reader are
// left alone. The book does not need to still be in the catalog.
func (m *Manager) Return(ctx context.Context, username, isbn string) (BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := canonicalKey(isbn)
	idx := -1
	for i, r := range m.state.Borrows {
		if r.Username == username && canonicalKey(r.ISBN) == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return BorrowRecord{}, withMessage(ErrNoSuchBorrowRecord, "you don't have ISBN %s borrowed", strings.TrimSpace(isbn))
	}
	record := m.state.Borrows[idx]

	rest := make([]BorrowRecord, 0, len(m.state.Borrows)-1)
	rest = append(rest, m.state.Borrows[:idx]...)
	rest = append(rest, m.state.Borrows[idx+1:]...)

	cs := &Changeset{}
	cs.Borrows.Set(rest)
	if err := m.commit(ctx, "return", cs); err != nil {
		return BorrowRecord{}, err
	}
	m.log.Info("book returned", slog.String("isbn", record.ISBN), slog.String("user", username))
	return record, nil
}

// ReadBook records that username read an available book in the library
// without borrowing it. The reader's count goes up and a history entry is
// written.
func (m *Manager) ReadBook(ctx context.Context, username, isbn string) (Book, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, _, err := m.findBook(isbn)
	if err != nil {
		return Book{}, 0, err
	}
	if !book.Available {
		return Book{}, 0, withMessage(ErrNotAvailable, "sorry, %q is currently not available", book.Title)
	}
	readers, idx := m.accountIndex(RoleReader, username)
	if idx < 0 {
		return Book{}, 0, withMessage(ErrAccountNotFound, "reader %q not found", username)
	}
	updated := append([]Account(nil), readers...)
	updated[idx].BooksRead++

	cs := &Changeset{}
	cs.Readers.Set(updated)
	cs.History.Add(HistoryEntry{Username: username, Title: book.Title, Author: book.Author, ISBN: book.ISBN, At: m.timestamp()})
	if err := m.commit(ctx, "read book", cs); err != nil {
		return Book{}, 0, err
	}
	return book, updated[idx].BooksRead, nil
}
