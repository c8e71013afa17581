package session

import (
	"context"
	"strconv"
	"strings"

	"librarydesk/library"
)

var readerMenu = []string{
	"View library",
	"Publish a book",
	"Borrow a book",
	"Return a book",
	"Rate a book",
	"View borrowed books",
	"View reading history",
	"Add a book to favorites",
	"Leave a review",
	"View favorites",
	"Manage account",
	"Log out",
}

// readerDashboard runs the reader menu until log out, account deletion or
// end of input.
func (s *Session) readerDashboard(ctx context.Context) {
	for s.machine.State() == ReaderDashboard {
		user := s.machine.ActiveReader()
		choice, ok := s.con.Menu("Reader Dashboard ("+user+")", readerMenu...)
		if !ok {
			return
		}
		switch choice {
		case 1:
			s.viewLibrary(ctx, user)
		case 2:
			s.publishBook(ctx, user)
		case 3:
			s.borrowBook(ctx, user)
		case 4:
			s.returnBook(ctx, user)
		case 5:
			s.rateBook(ctx, user)
		case 6:
			s.printLoans(s.mgr.BorrowedBooksOf(user), false)
		case 7:
			s.showHistory(user)
		case 8:
			s.addFavorite(ctx, user)
		case 9:
			s.leaveReview(ctx, user)
		case 10:
			s.showFavorites(user)
		case 11:
			s.manageAccount(ctx, s.mgr.Readers(), user)
		case 12:
			s.machine.LogOut()
			s.con.Println("Logged out.")
		}
		if s.con.Closed() {
			return
		}
	}
}

func (s *Session) viewLibrary(ctx context.Context, user string) {
	for {
		choice, ok := s.con.Menu("Library", "Display all books", "Search books", "Read a book", "Reader of the week", "Back")
		if !ok || choice == 5 {
			return
		}
		switch choice {
		case 1:
			s.printBooks(s.mgr.ListBooks(ctx))
		case 2:
			query, ok := s.con.Prompt("Search by title, author or ISBN: ")
			if !ok {
				return
			}
			found := s.mgr.SearchBooks(query)
			if len(found) == 0 {
				s.con.Printf("No books found matching '%s'.\n", query)
				continue
			}
			s.con.Printf("Found %d book(s) matching '%s':\n", len(found), query)
			s.printBooks(found)
		case 3:
			s.readBook(ctx, user)
		case 4:
			top, ok := s.mgr.ReaderOfTheWeek()
			if !ok {
				s.con.Println("No readers yet.")
				continue
			}
			s.con.Printf("Reader of the week: %s with %d book(s) read!\n", top.Username, top.BooksRead)
		}
	}
}

func (s *Session) readBook(ctx context.Context, user string) {
	query, ok := s.promptRequired("Enter the title, author or ISBN of the book: ")
	if !ok {
		return
	}
	matches := s.mgr.FindExact(query)
	if len(matches) == 0 {
		s.con.Printf("No book matches '%s'.\n", query)
		return
	}
	book := matches[0]
	if len(matches) > 1 {
		s.printBooks(matches)
		n, ok := s.con.Choice("Which one (number in the list): ", len(matches))
		if !ok {
			return
		}
		book = matches[n-1]
	}
	read, count, err := s.mgr.ReadBook(ctx, user, book.ISBN)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("You read '%s' by %s. Books read so far: %d.\n", read.Title, read.Author, count)
}

func (s *Session) publishBook(ctx context.Context, user string) {
	title, ok := s.promptRequired("Title of your book: ")
	if !ok {
		return
	}
	isbn, ok := s.promptRequired("5-digit ISBN: ")
	if !ok {
		return
	}
	sub, err := s.mgr.SubmitBook(ctx, user, title, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("'%s' was submitted for review (reference %s).\n", sub.Title, sub.ID[:8])
}

func (s *Session) borrowBook(ctx context.Context, user string) {
	isbn, ok := s.promptRequired("ISBN of the book to borrow: ")
	if !ok {
		return
	}
	receipt, err := s.mgr.Borrow(ctx, user, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("You borrowed '%s'. Please return it by %s.\n", receipt.Book.Title, formatDate(receipt.DueDate))
}

func (s *Session) returnBook(ctx context.Context, user string) {
	loans := s.mgr.BorrowedBooksOf(user)
	if len(loans) == 0 {
		s.con.Println("You have no borrowed books.")
		return
	}
	s.printLoans(loans, false)
	isbn, ok := s.promptRequired("ISBN of the book to return: ")
	if !ok {
		return
	}
	record, err := s.mgr.Return(ctx, user, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("'%s' returned. Thank you!\n", record.Title)
}

func (s *Session) rateBook(ctx context.Context, user string) {
	isbn, ok := s.promptRequired("ISBN of the book to rate: ")
	if !ok {
		return
	}
	for {
		answer, ok := s.con.Prompt("Rating (1-5): ")
		if !ok {
			return
		}
		stars, err := strconv.Atoi(answer)
		if err != nil {
			s.con.Println("Please enter a whole number.")
			continue
		}
		_, err = s.mgr.AddRating(ctx, user, isbn, stars)
		if library.KindOf(err) == library.KindValidation {
			s.report(err)
			continue
		}
		if err != nil {
			s.report(err)
			return
		}
		s.con.Printf("Thanks! You rated %s %d star(s).\n", isbn, stars)
		return
	}
}

func (s *Session) showHistory(user string) {
	entries := s.mgr.HistoryOf(user)
	if len(entries) == 0 {
		s.con.Println("Your reading history is empty.")
		return
	}
	s.con.Printf("%-30s %-25s %-20s %-12s\n", "Title", "Author", "ISBN", "Date")
	s.con.Println(strings.Repeat("-", 90))
	for _, e := range entries {
		s.con.Printf("%-30s %-25s %-20s %-12s\n",
			TruncateString(e.Title, 30), TruncateString(e.Author, 25), TruncateString(e.ISBN, 20), formatDate(e.At))
	}
}

func (s *Session) addFavorite(ctx context.Context, user string) {
	isbn, ok := s.promptRequired("ISBN of the book to add to favorites: ")
	if !ok {
		return
	}
	fav, err := s.mgr.AddFavorite(ctx, user, isbn)
	if err != nil {
		s.report(err)
		return
	}
	s.con.Printf("'%s' added to your favorites.\n", fav.Title)
}

func (s *Session) leaveReview(ctx context.Context, user string) {
	isbn, ok := s.promptRequired("ISBN of the book to review: ")
	if !ok {
		return
	}
	text, ok := s.promptRequired("Your review: ")
	if !ok {
		return
	}
	if _, err := s.mgr.AddReview(ctx, user, isbn, text); err != nil {
		s.report(err)
		return
	}
	s.con.Println("Review saved.")
}

func (s *Session) showFavorites(user string) {
	favs := s.mgr.FavoritesOf(user)
	if len(favs) == 0 {
		s.con.Println("You have no favorites yet.")
		return
	}
	s.con.Printf("%-30s %-25s %-20s\n", "Title", "Author", "ISBN")
	s.con.Println(strings.Repeat("-", 77))
	for _, f := range favs {
		s.con.Printf("%-30s %-25s %-20s\n", TruncateString(f.Title, 30), TruncateString(f.Author, 25), TruncateString(f.ISBN, 20))
	}
}

// manageAccount is shared by both dashboards. Deleting the account logs out.
func (s *Session) manageAccount(ctx context.Context, dir *library.Directory, user string) {
	choice, ok := s.con.Menu("Manage Account", "Change username", "Change password", "Delete account", "Back")
	if !ok {
		return
	}
	switch choice {
	case 1:
		name, ok := s.promptRequired("New username: ")
		if !ok {
			return
		}
		acc, err := dir.ChangeUsername(ctx, user, name)
		if err != nil {
			s.report(err)
			return
		}
		s.machine.Rename(acc.Username)
		s.con.Printf("Username changed to %s.\n", acc.Username)
	case 2:
		current, ok := s.con.Secret("Current password: ")
		if !ok {
			return
		}
		next, ok := s.con.Secret("New password: ")
		if !ok {
			return
		}
		confirm, ok := s.con.Secret("Confirm new password: ")
		if !ok {
			return
		}
		if err := dir.ChangePassword(ctx, user, current, next, confirm); err != nil {
			s.report(err)
			return
		}
		s.con.Println("Password changed.")
	case 3:
		s.con.Printf("This permanently deletes %s and all of its records.\n", user)
		token, ok := s.con.Prompt("Type " + library.DeleteConfirmation + " to confirm: ")
		if !ok {
			return
		}
		if err := dir.Delete(ctx, user, token); err != nil {
			s.report(err)
			return
		}
		s.con.Println("Account deleted.")
		s.machine.LogOut()
	}
}
