package http

import (
	"errors"
	"net/http"
	"net/url"

	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/session"
)

// Shown for every failed reset so the form does not reveal which accounts exist.
const resetFailedMessage = "Could not reset the password. Check the details and try again."

func (s *Server) authLog(r *http.Request) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(r.Context()).WithComponent(log.ComponentAuth))
}

// authFailure renders the auth page for flow with the mapped error.
func (s *Server) authFailure(w http.ResponseWriter, r *http.Request, flow session.AuthFlow, err error) {
	_ = currentSession(r).SelectAuthFlow(flow)
	status, msg, ok := userError(err)
	if !ok {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, status, pageAuth, pageData{Error: msg, Form: r.PostForm})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.Snapshot().LoggedIn() {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	if err := parseForm(w, r); err != nil {
		s.authFailure(w, r, session.Login, err)
		return
	}

	user, err := s.auth.Login(r.Context(), formValue(r, "email"), r.PostFormValue("password"))
	if err != nil {
		s.authLog(r).LogAuthEvent(r.Context(), log.OpLogin, 0, err)
		s.authFailure(w, r, session.Login, err)
		return
	}

	sess = s.sessions.Rotate(r.Context(), sess)
	if err := sess.LogIn(user); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.ID())
	s.authLog(r).LogAuthEvent(r.Context(), log.OpLogin, user.ID, nil)
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.Snapshot().LoggedIn() {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	if err := parseForm(w, r); err != nil {
		s.authFailure(w, r, session.Register, err)
		return
	}

	user, err := s.auth.Register(r.Context(), formValue(r, "username"), formValue(r, "email"), r.PostFormValue("password"))
	if err != nil {
		s.authLog(r).LogAuthEvent(r.Context(), log.OpRegister, 0, err)
		s.authFailure(w, r, session.Register, err)
		return
	}

	s.authLog(r).LogAuthEvent(r.Context(), log.OpRegister, user.ID, nil)
	_ = sess.SelectAuthFlow(session.Login)
	s.render(w, r, http.StatusCreated, pageAuth, pageData{
		Flash: "Registration successful! Please log in.",
		Form:  url.Values{"email": {user.Email}},
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.Snapshot().LoggedIn() {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	if err := parseForm(w, r); err != nil {
		s.authFailure(w, r, session.ForgotPassword, err)
		return
	}

	email := formValue(r, "email")
	err := s.auth.ResetPassword(r.Context(), email, r.PostFormValue("new_password"))
	if err != nil {
		s.authLog(r).LogAuthEvent(r.Context(), log.OpReset, 0, err)
		if errors.Is(err, core.ErrUserNotFound) {
			_ = sess.SelectAuthFlow(session.ForgotPassword)
			s.render(w, r, http.StatusUnprocessableEntity, pageAuth, pageData{Error: resetFailedMessage, Form: r.PostForm})
			return
		}
		s.authFailure(w, r, session.ForgotPassword, err)
		return
	}

	s.authLog(r).LogAuthEvent(r.Context(), log.OpReset, 0, nil)
	_ = sess.SelectAuthFlow(session.Login)
	s.render(w, r, http.StatusOK, pageAuth, pageData{
		Flash: "Password updated. Please log in.",
		Form:  url.Values{"email": {email}},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	snap := sess.Snapshot()
	if snap.LoggedIn() {
		_ = sess.LogOut()
		s.authLog(r).LogAuthEvent(r.Context(), log.OpLogout, snap.Identity.UserID, nil)
	}
	s.sessions.Destroy(r.Context(), snap.ID)
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
