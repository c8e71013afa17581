package library

import (
	"sort"
	"time"
)

// Summary is the librarian report.
type Summary struct {
	TotalBooks     int
	AvailableBooks int
	BorrowedBooks  int
	OverdueBooks   int
	TotalReaders   int
	BorrowRecords  int
	TotalRatings   int
	TotalReviews   int
	AverageRating  float64

	MostActiveReader  *Account
	MostBorrowedBook  *Book
	MostBorrowedCount int
}

// OverdueLoan is an active borrow past its due date.
type OverdueLoan struct {
	Record  BorrowRecord
	DueDate time.Time
	Overdue time.Duration
}

// Summary aggregates the catalog and ledger.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := m.deriveBooks(m.state.Books, m.state.Borrows)
	s := Summary{
		TotalBooks:    len(books),
		TotalReaders:  len(m.state.Readers),
		BorrowRecords: len(m.state.Borrows),
		TotalRatings:  len(m.state.Ratings),
		TotalReviews:  len(m.state.Reviews),
		OverdueBooks:  len(m.overdueLocked(m.now())),
	}
	for _, b := range books {
		if b.Available {
			s.AvailableBooks++
		} else {
			s.BorrowedBooks++
		}
	}
	if len(m.state.Ratings) > 0 {
		total := 0
		for _, r := range m.state.Ratings {
			total += r.Stars
		}
		s.AverageRating = float64(total) / float64(len(m.state.Ratings))
	}
	if reader, ok := m.mostActiveLocked(); ok {
		s.MostActiveReader = &reader
	}
	s.MostBorrowedBook, s.MostBorrowedCount = m.mostBorrowedLocked(books)
	return s
}

// ReaderOfTheWeek returns the reader with the most books read. Ties go to
// the reader listed first.
func (m *Manager) ReaderOfTheWeek() (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mostActiveLocked()
}

func (m *Manager) mostActiveLocked() (Account, bool) {
	if len(m.state.Readers) == 0 {
		return Account{}, false
	}
	best := m.state.Readers[0]
	for _, r := range m.state.Readers[1:] {
		if r.BooksRead > best.BooksRead {
			best = r
		}
	}
	return best, true
}

// mostBorrowedLocked counts history entries per ISBN. Ties go to the ISBN
// that appeared first. Removed books are reported from the history row.
func (m *Manager) mostBorrowedLocked(books []Book) (*Book, int) {
	counts := make(map[string]int)
	var order []string
	first := make(map[string]HistoryEntry)
	for _, e := range m.state.History {
		key := canonicalKey(e.ISBN)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			first[key] = e
		}
		counts[key]++
	}
	if len(order) == 0 {
		return nil, 0
	}

	top := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[top] {
			top = key
		}
	}
	for _, b := range books {
		if canonicalKey(b.ISBN) == top {
			return &b, counts[top]
		}
	}
	e := first[top]
	return &Book{Title: e.Title, Author: e.Author, ISBN: e.ISBN}, counts[top]
}

// Overdue lists active loans whose due date is before now, most overdue
// first. Loans without a borrow time have no due date and are never overdue.
func (m *Manager) Overdue() []OverdueLoan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overdueLocked(m.now())
}

func (m *Manager) overdueLocked(now time.Time) []OverdueLoan {
	var out []OverdueLoan
	for _, r := range m.state.Borrows {
		if r.BorrowedAt.IsZero() {
			continue
		}
		due := r.BorrowedAt.Add(m.loanPeriod)
		if due.Before(now) {
			out = append(out, OverdueLoan{Record: r, DueDate: due, Overdue: now.Sub(due)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}
