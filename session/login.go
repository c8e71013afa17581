package session

import (
	"context"

	"librarydesk/library"
)

func (s *Session) loginScreen(ctx context.Context) (LoginResult, string) {
	choice, ok := s.con.Menu("Library Management System", "Log in", "Sign up", "Exit")
	if !ok {
		return ExitApp, ""
	}
	if choice == 3 {
		return ExitApp, ""
	}

	dir, ok := s.pickDirectory()
	if !ok {
		return StayOnLogin, ""
	}
	if choice == 1 {
		return s.login(dir)
	}
	return s.signup(ctx, dir)
}

// pickDirectory asks for the account type once; anything else goes back to
// the login screen.
func (s *Session) pickDirectory() (*library.Directory, bool) {
	s.con.Println("1. Reader")
	s.con.Println("2. Librarian")
	answer, ok := s.con.Prompt("Account type: ")
	if !ok {
		return nil, false
	}
	switch answer {
	case "1":
		return s.mgr.Readers(), true
	case "2":
		return s.mgr.Librarians(), true
	}
	s.con.Println("Invalid account type.")
	return nil, false
}

func loggedIn(role library.Role) LoginResult {
	if role == library.RoleLibrarian {
		return LibrarianLoggedIn
	}
	return ReaderLoggedIn
}

func (s *Session) login(dir *library.Directory) (LoginResult, string) {
	username, ok := s.con.Prompt("Username: ")
	if !ok {
		return StayOnLogin, ""
	}
	password, ok := s.con.Secret("Password: ")
	if !ok {
		return StayOnLogin, ""
	}
	acc, err := dir.Login(username, password)
	if err != nil {
		s.report(err)
		return StayOnLogin, ""
	}
	s.con.Printf("Welcome back, %s!\n", acc.Username)
	return loggedIn(dir.Role()), acc.Username
}

func (s *Session) signup(ctx context.Context, dir *library.Directory) (LoginResult, string) {
	username, ok := s.con.Prompt("Choose a username: ")
	if !ok {
		return StayOnLogin, ""
	}
	password, ok := s.con.Secret("Choose a password: ")
	if !ok {
		return StayOnLogin, ""
	}
	acc, err := dir.Register(ctx, username, password)
	if err != nil {
		s.report(err)
		return StayOnLogin, ""
	}
	s.con.Printf("Account created. Welcome, %s!\n", acc.Username)
	return loggedIn(dir.Role()), acc.Username
}
