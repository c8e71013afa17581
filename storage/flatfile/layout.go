package flatfile

import (
	"strconv"
	"strings"
	"time"

	"librarydesk/library"
	"librarydesk/records"
)

type file struct {
	name   string
	layout records.Layout
}

var files = map[library.Collection]file{
	library.Books: {"books.csv", records.Layout{
		Header:     []string{"title", "author", "isbn", "available", "borrowedBy", "dueDate"},
		MinColumns: 4,
	}},
	library.Readers: {"user.csv", records.Layout{
		Header:     []string{"username", "password", "numberOfBooksRead"},
		MinColumns: 3,
	}},
	library.Librarians: {"librarian.csv", records.Layout{
		Header:     []string{"username", "password"},
		MinColumns: 2,
	}},
	library.Borrows: {"library-data/borrowed_books.csv", records.Layout{
		Header:     []string{"username", "title", "author", "isbn", "timestamp"},
		MinColumns: 5,
	}},
	library.History: {"library-data/reading_history.csv", records.Layout{
		Header:     []string{"username", "title", "author", "isbn", "timestamp"},
		MinColumns: 4,
	}},
	library.Ratings: {"library-data/ratings.csv", records.Layout{
		Header:     []string{"username", "isbn", "rating"},
		MinColumns: 3,
	}},
	library.Favorites: {"library-data/favorites.csv", records.Layout{
		Header:     []string{"username", "title", "author", "isbn"},
		MinColumns: 4,
	}},
	library.Reviews: {"library-data/reviews.csv", records.Layout{
		Header:     []string{"username", "isbn", "review_text"},
		MinColumns: 3,
		Greedy:     true,
	}},
	library.Submissions: {"library-data/submissions.csv", records.Layout{
		Header:     []string{"id", "username", "title", "isbn", "timestamp"},
		MinColumns: 5,
	}},
}

// ownerColumn is the username column of each user log.
var ownerColumn = map[library.Collection]int{
	library.Borrows:     0,
	library.History:     0,
	library.Ratings:     0,
	library.Reviews:     0,
	library.Favorites:   0,
	library.Submissions: 1,
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 with or without fractional seconds. Anything
// else is the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func encodeBook(b library.Book) []string {
	avail := "TRUE"
	if !b.Available {
		avail = "FALSE"
	}
	due := ""
	if b.DueDate != nil {
		due = formatTime(*b.DueDate)
	}
	return []string{b.Title, b.Author, b.ISBN, avail, b.BorrowedBy, due}
}

func decodeBook(row []string) (library.Book, bool) {
	b := library.Book{
		Title:      field(row, 0),
		Author:     field(row, 1),
		ISBN:       field(row, 2),
		Available:  strings.EqualFold(field(row, 3), "TRUE"),
		BorrowedBy: field(row, 4),
	}
	if due := parseTime(field(row, 5)); !due.IsZero() {
		b.DueDate = &due
	}
	return b, b.ISBN != ""
}

func encodeReader(a library.Account) []string {
	return []string{a.Username, a.Password, strconv.Itoa(a.BooksRead)}
}

func decodeReader(row []string) (library.Account, bool) {
	n, err := strconv.Atoi(field(row, 2))
	if err != nil || n < 0 {
		n = 0
	}
	a := library.Account{Username: field(row, 0), Password: field(row, 1), BooksRead: n}
	return a, a.Username != ""
}

func encodeLibrarian(a library.Account) []string {
	return []string{a.Username, a.Password}
}

func decodeLibrarian(row []string) (library.Account, bool) {
	a := library.Account{Username: field(row, 0), Password: field(row, 1)}
	return a, a.Username != ""
}

func encodeBorrow(r library.BorrowRecord) []string {
	return []string{r.Username, r.Title, r.Author, r.ISBN, formatTime(r.BorrowedAt)}
}

// decodeBorrow keeps rows with an unreadable timestamp: dropping them would
// silently make the book available again.
func decodeBorrow(row []string) (library.BorrowRecord, bool) {
	r := library.BorrowRecord{
		Username:   field(row, 0),
		Title:      field(row, 1),
		Author:     field(row, 2),
		ISBN:       field(row, 3),
		BorrowedAt: parseTime(field(row, 4)),
	}
	return r, r.Username != "" && r.ISBN != ""
}

func encodeHistory(e library.HistoryEntry) []string {
	return []string{e.Username, e.Title, e.Author, e.ISBN, formatTime(e.At)}
}

func decodeHistory(row []string) (library.HistoryEntry, bool) {
	e := library.HistoryEntry{
		Username: field(row, 0),
		Title:    field(row, 1),
		Author:   field(row, 2),
		ISBN:     field(row, 3),
		At:       parseTime(field(row, 4)),
	}
	return e, e.Username != ""
}

func encodeRating(r library.Rating) []string {
	return []string{r.Username, r.ISBN, strconv.Itoa(r.Stars)}
}

func decodeRating(row []string) (library.Rating, bool) {
	n, err := strconv.Atoi(field(row, 2))
	if err != nil || n < library.MinStars || n > library.MaxStars {
		return library.Rating{}, false
	}
	return library.Rating{Username: field(row, 0), ISBN: field(row, 1), Stars: n}, true
}

func encodeReview(r library.Review) []string {
	return []string{r.Username, r.ISBN, r.Text}
}

func decodeReview(row []string) (library.Review, bool) {
	r := library.Review{Username: field(row, 0), ISBN: field(row, 1), Text: field(row, 2)}
	return r, r.Username != ""
}

func encodeFavorite(f library.Favorite) []string {
	return []string{f.Username, f.Title, f.Author, f.ISBN}
}

func decodeFavorite(row []string) (library.Favorite, bool) {
	f := library.Favorite{Username: field(row, 0), Title: field(row, 1), Author: field(row, 2), ISBN: field(row, 3)}
	return f, f.Username != ""
}

func encodeSubmission(s library.Submission) []string {
	return []string{s.ID, s.Username, s.Title, s.ISBN, formatTime(s.SubmittedAt)}
}

func decodeSubmission(row []string) (library.Submission, bool) {
	s := library.Submission{
		ID:          field(row, 0),
		Username:    field(row, 1),
		Title:       field(row, 2),
		ISBN:        field(row, 3),
		SubmittedAt: parseTime(field(row, 4)),
	}
	return s, s.ID != ""
}
