package library

import "time"

// Book is a catalog entry keyed by ISBN.
//
// Available, BorrowedBy and DueDate are derived from the active borrow
// records every time the catalog is read. Stores may persist them, but the
// Manager never trusts a stored value over the ledger.
type Book struct {
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	ISBN       string     `json:"isbn"`
	Available  bool       `json:"available"`
	BorrowedBy string     `json:"borrowed_by,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// Account is a reader or librarian login. BooksRead is only kept for readers.
type Account struct {
	Username  string `json:"username"`
	Password  string `json:"-"`
	BooksRead int    `json:"books_read"`
}

// Role selects one of the two account directories.
type Role int

const (
	RoleReader Role = iota
	RoleLibrarian
)

func (r Role) String() string {
	if r == RoleLibrarian {
		return "librarian"
	}
	return "reader"
}

// BorrowRecord is an active loan. It is removed when the book is returned.
type BorrowRecord struct {
	Username   string    `json:"username"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	ISBN       string    `json:"isbn"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

// HistoryEntry is an audit row written for every borrow or read. Older files
// carry no timestamp, in which case At is zero.
type HistoryEntry struct {
	Username string    `json:"username"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	ISBN     string    `json:"isbn"`
	At       time.Time `json:"at"`
}

// A rating is between MinStars and MaxStars inclusive.
const (
	MinStars = 1
	MaxStars = 5
)

type Rating struct {
	Username string `json:"username"`
	ISBN     string `json:"isbn"`
	Stars    int    `json:"stars"`
}

type Review struct {
	Username string `json:"username"`
	ISBN     string `json:"isbn"`
	Text     string `json:"text"`
}

type Favorite struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
}

// Submission is a book proposed by a reader and waiting for a librarian.
type Submission struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Title       string    `json:"title"`
	ISBN        string    `json:"isbn"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BorrowReceipt is returned by a successful borrow.
type BorrowReceipt struct {
	Book      Book
	Record    BorrowRecord
	DueDate   time.Time
	BooksRead int
}

// State is a full in-memory copy of every collection.
type State struct {
	Books       []Book
	Readers     []Account
	Librarians  []Account
	Borrows     []BorrowRecord
	History     []HistoryEntry
	Ratings     []Rating
	Reviews     []Review
	Favorites   []Favorite
	Submissions []Submission
}

func (s *State) accounts(role Role) []Account {
	if role == RoleLibrarian {
		return s.Librarians
	}
	return s.Readers
}
