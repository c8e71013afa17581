// Package session drives one interactive run: the login screen, the reader
// and librarian dashboards, and the transitions between them.
package session

// State is the screen the session is on.
type State int

const (
	LoginSignup State = iota
	ReaderDashboard
	LibrarianDashboard
	Exit
)

func (s State) String() string {
	switch s {
	case LoginSignup:
		return "login"
	case ReaderDashboard:
		return "reader dashboard"
	case LibrarianDashboard:
		return "librarian dashboard"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// LoginResult is the outcome of one pass through the login screen.
type LoginResult int

const (
	StayOnLogin LoginResult = iota
	ExitApp
	ReaderLoggedIn
	LibrarianLoggedIn
)

// Machine holds the current state and the active account of a dashboard.
// At most one of the reader and librarian slots is set, and only while on
// the matching dashboard.
type Machine struct {
	state     State
	reader    string
	librarian string
}

// NewMachine starts on the login screen.
func NewMachine() *Machine { return &Machine{state: LoginSignup} }

func (m *Machine) State() State { return m.state }

func (m *Machine) ActiveReader() string { return m.reader }

func (m *Machine) ActiveLibrarian() string { return m.librarian }

// Login applies a login screen result. It only has an effect on the login
// screen.
func (m *Machine) Login(result LoginResult, username string) State {
	if m.state != LoginSignup {
		return m.state
	}
	switch result {
	case ExitApp:
		m.state = Exit
	case ReaderLoggedIn:
		m.state, m.reader = ReaderDashboard, username
	case LibrarianLoggedIn:
		m.state, m.librarian = LibrarianDashboard, username
	}
	return m.state
}

// LogOut leaves a dashboard for the login screen. Deleting the active
// account goes through here too.
func (m *Machine) LogOut() State {
	if m.state == ReaderDashboard || m.state == LibrarianDashboard {
		m.state = LoginSignup
		m.reader, m.librarian = "", ""
	}
	return m.state
}

// Rename follows a username change of the active account.
func (m *Machine) Rename(username string) {
	switch m.state {
	case ReaderDashboard:
		m.reader = username
	case LibrarianDashboard:
		m.librarian = username
	}
}

// Quit ends the session from any state.
func (m *Machine) Quit() {
	m.state = Exit
	m.reader, m.librarian = "", ""
}
