package session

import (
	"strings"
	"time"

	"librarydesk/library"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func (s *Session) printBooks(books []library.Book) {
	if len(books) == 0 {
		s.con.Println("No books in library.")
		return
	}
	s.con.Printf("%-30s %-25s %-20s %-10s %-12s\n", "Title", "Author", "ISBN", "Available", "Due")
	s.con.Println(strings.Repeat("-", 100))
	for _, b := range books {
		availStr := "Yes"
		due := ""
		if !b.Available {
			availStr = "No"
			if b.DueDate != nil {
				due = formatDate(*b.DueDate)
			}
		}
		s.con.Printf("%-30s %-25s %-20s %-10s %-12s\n",
			TruncateString(b.Title, 30),
			TruncateString(b.Author, 25),
			TruncateString(b.ISBN, 20),
			availStr,
			due)
	}
}

func (s *Session) printLoans(loans []library.BorrowRecord, withUser bool) {
	if len(loans) == 0 {
		s.con.Println("No borrowed books.")
		return
	}
	if withUser {
		s.con.Printf("%-15s ", "Reader")
	}
	s.con.Printf("%-30s %-25s %-20s %-12s %-12s\n", "Title", "Author", "ISBN", "Borrowed", "Due")
	s.con.Println(strings.Repeat("-", 100))
	for _, r := range loans {
		if withUser {
			s.con.Printf("%-15s ", TruncateString(r.Username, 15))
		}
		due := "-"
		if !r.BorrowedAt.IsZero() {
			due = formatDate(r.BorrowedAt.Add(s.mgr.LoanPeriod()))
		}
		s.con.Printf("%-30s %-25s %-20s %-12s %-12s\n",
			TruncateString(r.Title, 30),
			TruncateString(r.Author, 25),
			TruncateString(r.ISBN, 20),
			formatDate(r.BorrowedAt),
			due)
	}
}

// promptISBN asks until the answer is a valid ISBN. A blank answer cancels.
func (s *Session) promptISBN(prompt string) (string, bool) {
	for {
		answer, ok := s.con.Prompt(prompt)
		if !ok || answer == "" {
			return "", false
		}
		if _, err := library.NormalizeISBN(answer); err != nil {
			s.con.Printf("%v. Try again or press Enter to cancel.\n", err)
			continue
		}
		return answer, true
	}
}

// promptRequired asks until the answer is not blank.
func (s *Session) promptRequired(prompt string) (string, bool) {
	for {
		answer, ok := s.con.Prompt(prompt)
		if !ok {
			return "", false
		}
		if answer != "" {
			return answer, true
		}
		s.con.Println("This field cannot be empty.")
	}
}

// TruncateString shortens s to maxLen runes, ending in "..." when there is
// room for it.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
