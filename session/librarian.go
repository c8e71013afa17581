package session

import (
	"context"
	"strings"
	"time"
)

var librarianMenu = []string{
	"Add a book",
	"Remove a book",
	"Update book information",
	"Display all books",
	"View borrowed books",
	"View overdue books",
	"Manage account",
	"View ratings and reviews",
	"View reports",
	"Review submissions",
	"Log out",
}

func (s *Session) librarianDashboard(ctx context.Context) {
	for s.machine.State() == LibrarianDashboard {
		user := s.machine.ActiveLibrarian()
		choice, ok := s.con.Menu("Librarian Dashboard ("+user+")", librarianMenu...)
		if !ok {
			return
		}
		switch choice {
		case 1:
			s.addBook(ctx)
		case 2:
			s.removeBook(ctx)
		case 3:
			s.updateBook(ctx)
		case 4:
			s.printBooks(s.mgr.ListBooks(ctx))
		case 5:
			s.printLoans(s.mgr.AllBorrows(), true)
		case 6:
			s.showOverdue()
		case 7:
			s.manageAccount(ctx, s.mgr.Librarians(), user)
		case 8:
			s.showFeedback()
		case 9:
			s.showReport()
		case 10:
			s.reviewSubmissions(ctx)
		case 11:
			s.machine.LogOut()
			s.con.Println("Logged out.")
		}
		if s.con.Closed() {
			return
		}
	}
}

func (s *Session) addBook(ctx context.Context) {
	title, ok := s.promptRequired("Title: ")
	if !ok {
		return
	}
	author, ok := s.promptRequired("Author: ")
	if !ok {
		return
	}
	isbn, ok := s.promptISBN("ISBN: ")
	if !ok {
		return
	}
	book, err := s.mgr.AddBook(ctx, title, author, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("Added '%s' with ISBN %s.\n", book.Title, book.ISBN)
}

func (s *Session) removeBook(ctx context.Context) {
	isbn, ok := s.promptRequired("ISBN of the book to remove: ")
	if !ok {
		return
	}
	book, err := s.mgr.RemoveBook(ctx, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("Removed '%s'.\n", book.Title)
}

func (s *Session) updateBook(ctx context.Context) {
	isbn, ok := s.promptRequired("ISBN of the book to update: ")
	if !ok {
		return
	}
	current, err := s.mgr.FindBook(isbn)
	if err != nil {
		s.report(err)
		return
	}
	title, ok := s.con.Prompt("New title (Enter keeps '" + current.Title + "'): ")
	if !ok {
		return
	}
	author, ok := s.con.Prompt("New author (Enter keeps '" + current.Author + "'): ")
	if !ok {
		return
	}
	book, err := s.mgr.UpdateBookInfo(ctx, isbn, title, author)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("Updated: '%s' by %s.\n", book.Title, book.Author)
}

func (s *Session) showOverdue() {
	loans := s.mgr.Overdue()
	if len(loans) == 0 {
		s.con.Println("No overdue books.")
		return
	}
	s.con.Printf("%-15s %-30s %-20s %-12s %s\n", "Reader", "Title", "ISBN", "Due", "Overdue")
	s.con.Println(strings.Repeat("-", 95))
	for _, l := range loans {
		days := int(l.Overdue / (24 * time.Hour))
		s.con.Printf("%-15s %-30s %-20s %-12s %d day(s)\n",
			TruncateString(l.Record.Username, 15),
			TruncateString(l.Record.Title, 30),
			TruncateString(l.Record.ISBN, 20),
			formatDate(l.DueDate),
			days)
	}
}

func (s *Session) showFeedback() {
	ratings := s.mgr.AllRatings()
	reviews := s.mgr.AllReviews()
	if len(ratings) == 0 && len(reviews) == 0 {
		s.con.Println("No ratings or reviews yet.")
		return
	}
	s.con.Println("Ratings:")
	for _, r := range ratings {
		s.con.Printf("  %-15s %-20s %s\n", TruncateString(r.Username, 15), r.ISBN, strings.Repeat("*", r.Stars))
	}
	s.con.Println("Reviews:")
	for _, r := range reviews {
		s.con.Printf("  %-15s %-20s %s\n", TruncateString(r.Username, 15), r.ISBN, r.Text)
	}
}

func (s *Session) showReport() {
	sum := s.mgr.Summary()
	s.con.Println("\n=== Library Report ===")
	s.con.Printf("Total books:        %d\n", sum.TotalBooks)
	s.con.Printf("Available books:    %d\n", sum.AvailableBooks)
	s.con.Printf("Borrowed books:     %d\n", sum.BorrowedBooks)
	s.con.Printf("Overdue books:      %d\n", sum.OverdueBooks)
	s.con.Printf("Total readers:      %d\n", sum.TotalReaders)
	s.con.Printf("Borrow records:     %d\n", sum.BorrowRecords)
	s.con.Printf("Ratings / reviews:  %d / %d\n", sum.TotalRatings, sum.TotalReviews)
	if sum.TotalRatings > 0 {
		s.con.Printf("Average rating:     %.2f\n", sum.AverageRating)
	}
	if sum.MostActiveReader != nil {
		s.con.Printf("Most active reader: %s (%d books read)\n", sum.MostActiveReader.Username, sum.MostActiveReader.BooksRead)
	}
	if sum.MostBorrowedBook != nil {
		s.con.Printf("Most borrowed book: %s (%d times)\n", sum.MostBorrowedBook.Title, sum.MostBorrowedCount)
	}
	for c, n := range s.mgr.SkippedRows() {
		if n > 0 {
			s.con.Printf("Skipped %d malformed row(s) in %s.\n", n, c)
		}
	}
}

func (s *Session) reviewSubmissions(ctx context.Context) {
	for {
		subs := s.mgr.Submissions()
		if len(subs) == 0 {
			s.con.Println("No pending submissions.")
			return
		}
		s.con.Printf("%-4s %-30s %-15s %-8s %-12s\n", "#", "Title", "Reader", "ISBN", "Submitted")
		s.con.Println(strings.Repeat("-", 75))
		for i, sub := range subs {
			s.con.Printf("%-4d %-30s %-15s %-8s %-12s\n",
				i+1, TruncateString(sub.Title, 30), TruncateString(sub.Username, 15), sub.ISBN, formatDate(sub.SubmittedAt))
		}

		choice, ok := s.con.Menu("Submissions", "Approve", "Reject", "Back")
		if !ok || choice == 3 {
			return
		}
		n, ok := s.con.Choice("Submission number: ", len(subs))
		if !ok {
			return
		}
		sub := subs[n-1]
		if choice == 2 {
			if err := s.mgr.RejectSubmission(ctx, sub.ID); err != nil {
				s.report(err)
				continue
			}
			s.con.Printf("Rejected '%s'.\n", sub.Title)
			continue
		}
		author, ok := s.promptRequired("Author to list it under: ")
		if !ok {
			return
		}
		book, err := s.mgr.ApproveSubmission(ctx, sub.ID, author)
		if err != nil {
			s.report(err)
			continue
		}
		s.con.Printf("Approved '%s'. It is now in the catalog as %s.\n", book.Title, book.ISBN)
	}
}
