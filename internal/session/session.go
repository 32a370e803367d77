// Package session tracks per-browser UI state: who is logged in, which view
// is active and which authentication form is shown.
package session

import (
	"errors"
	"fmt"
	"sync"

	"finwise/internal/core"
)

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// View is a page of the logged-in application.
type View string

const (
	Home             View = "home"
	AddExpense       View = "add_expense"
	Dashboard        View = "dashboard"
	InvestmentAdvice View = "investment_advice"
	Chatbot          View = "chatbot"
)

// Views lists the navigable views in menu order.
var Views = []View{Home, AddExpense, Dashboard, InvestmentAdvice, Chatbot}

func (v View) Valid() bool {
	for _, known := range Views {
		if v == known {
			return true
		}
	}
	return false
}

// AuthFlow is the form shown to a logged-out visitor.
type AuthFlow string

const (
	Login          AuthFlow = "login"
	Register       AuthFlow = "register"
	ForgotPassword AuthFlow = "forgot"
)

func (f AuthFlow) Valid() bool {
	switch f {
	case Login, Register, ForgotPassword:
		return true
	}
	return false
}

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrAlreadyLoggedIn  = errors.New("already logged in")
	ErrUnknownView      = errors.New("unknown view")
	ErrUnknownAuthFlow  = errors.New("unknown authentication flow")
)

// Identity is the logged-in user as seen by the UI.
type Identity struct {
	UserID   int64
	Username string
	Email    string
}

// Session is safe for concurrent use; a browser may issue parallel requests.
type Session struct {
	mu       sync.Mutex
	id       string
	state    State
	identity Identity
	view     View
	flow     AuthFlow
}

// New returns a logged-out session showing the login form.
func New(id string) *Session {
	return &Session{id: id, state: LoggedOut, view: Home, flow: Login}
}

func (s *Session) ID() string { return s.id }

// Snapshot is a consistent copy of a session's fields.
type Snapshot struct {
	ID       string
	State    State
	Identity Identity
	View     View
	Flow     AuthFlow
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.id, State: s.state, Identity: s.identity, View: s.view, Flow: s.flow}
}

func (s Snapshot) LoggedIn() bool { return s.State == LoggedIn }

// LogIn moves the session to LoggedIn and shows the home view.
func (s *Session) LogIn(u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == LoggedIn {
		return ErrAlreadyLoggedIn
	}
	s.state = LoggedIn
	s.identity = Identity{UserID: u.ID, Username: u.Username, Email: u.Email}
	s.view = Home
	return nil
}

// LogOut clears the identity and returns to the login form.
func (s *Session) LogOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != LoggedIn {
		return ErrNotAuthenticated
	}
	s.state = LoggedOut
	s.identity = Identity{}
	s.view = Home
	s.flow = Login
	return nil
}

// Navigate switches the active view. Any view may follow any other.
func (s *Session) Navigate(v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownView, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != LoggedIn {
		return ErrNotAuthenticated
	}
	s.view = v
	return nil
}

// SelectAuthFlow picks the form shown while logged out. Flows are mutually
// exclusive and carry nothing over from one another.
func (s *Session) SelectAuthFlow(f AuthFlow) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAuthFlow, f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == LoggedIn {
		return ErrAlreadyLoggedIn
	}
	s.flow = f
	return nil
}
