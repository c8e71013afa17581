package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"librarydesk/library"
)

// Session is one interactive run against a Manager.
type Session struct {
	mgr     *library.Manager
	con     *Console
	machine *Machine
	log     *slog.Logger
	ID      string
}

// New prepares a session. Every log line it writes carries the session id.
func New(mgr *library.Manager, con *Console, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		mgr:     mgr,
		con:     con,
		machine: NewMachine(),
		log:     log.With(slog.String("session", id)),
		ID:      id,
	}
}

func (s *Session) State() State { return s.machine.State() }

// Run shows menus until the user exits or input ends. Operation failures are
// reported on the console and never end the run.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session started")
	s.reportStartup()

	for s.machine.State() != Exit {
		if err := ctx.Err(); err != nil {
			s.machine.Quit()
			break
		}
		switch s.machine.State() {
		case LoginSignup:
			result, username := s.loginScreen(ctx)
			s.machine.Login(result, username)
			if result == ReaderLoggedIn || result == LibrarianLoggedIn {
				s.log.Info("logged in", slog.String("user", username), slog.String("state", s.machine.State().String()))
			}
		case ReaderDashboard:
			s.readerDashboard(ctx)
		case LibrarianDashboard:
			s.librarianDashboard(ctx)
		}
		if s.con.Closed() {
			s.machine.Quit()
		}
	}

	s.con.Println()
	s.con.Println("Thank you for using the Library Management System. Goodbye!")
	s.log.Info("session ended")
	return nil
}

func (s *Session) reportStartup() {
	for c, err := range s.mgr.Unreadable() {
		s.con.Printf("Warning: could not read %s (%v). Starting with an empty list.\n", c, err)
	}
}

// report prints the outcome of a failed operation.
func (s *Session) report(err error) {
	var le *library.Error
	if errors.As(err, &le) && le.Kind == library.KindIO {
		s.log.Warn("operation failed", slog.Any("error", err))
	}
	s.con.Printf("Error: %v\n", err)
}
