package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"finwise/internal/advice"
	"finwise/internal/auth"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/session"
)

const sessionCookieName = "finwise_session"

const genericServerMessage = "Something went wrong. Please try again."

// withSession attaches the browser's session to the request, creating one
// when the cookie is missing or the session expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/static/") || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}

		id := ""
		if c, err := r.Cookie(sessionCookieName); err == nil {
			id = c.Value
		}
		sess, created := s.sessions.Load(r.Context(), id)
		if created {
			s.setSessionCookie(w, sess.ID())
		}

		ctx := session.WithSession(r.Context(), sess)
		if snap := sess.Snapshot(); snap.LoggedIn() {
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, snap.Identity.UserID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// setSessionCookie issues a browser-session cookie; the server enforces the
// idle timeout.
func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentSession returns the request's session. withSession guarantees one
// exists for every routed request.
func currentSession(r *http.Request) *session.Session {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return session.New("")
	}
	return sess
}

// requireLogin sends logged-out visitors back to the login form.
func (s *Server) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentSession(r).Snapshot().LoggedIn() {
			next(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/data") {
			JSONError(http.StatusUnauthorized, session.ErrNotAuthenticated.Error()).Write(w)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// navigate switches the session to view and renders it.
func (s *Server) navigate(view session.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := currentSession(r).Navigate(view); err != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.renderView(w, r, http.StatusOK, view, pageData{})
	}
}

// renderView renders a logged-in view, filling in the data the page needs
// when the caller did not.
func (s *Server) renderView(w http.ResponseWriter, r *http.Request, status int, view session.View, data pageData) {
	if data.Data == nil {
		switch view {
		case session.AddExpense:
			data.Data = addExpenseData{Today: core.DateOf(s.now()).String()}
		case session.Dashboard:
			dash, err := s.loadDashboard(r.Context(), currentSession(r).Snapshot().Identity.UserID)
			if err != nil {
				s.serverError(w, r, err)
				return
			}
			data.Data = dash
		case session.InvestmentAdvice:
			data.Data = adviceData{Risks: advice.Risks}
		case session.Chatbot:
			data.Data = chatData{}
		}
	}
	s.render(w, r, status, viewPages[view], data)
}

// handleIndex shows the active view, or the authentication form chosen with
// ?flow= when logged out.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	snap := sess.Snapshot()
	if snap.LoggedIn() {
		s.renderView(w, r, http.StatusOK, snap.View, pageData{})
		return
	}

	if flow := r.URL.Query().Get("flow"); flow != "" {
		if err := sess.SelectAuthFlow(session.AuthFlow(flow)); err != nil {
			s.render(w, r, http.StatusBadRequest, pageAuth, pageData{Error: "Unknown page."})
			return
		}
	}
	s.render(w, r, http.StatusOK, pageAuth, pageData{})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	s.render(w, r, http.StatusTooManyRequests, pageAuth, pageData{Error: "Too many attempts. Please wait a minute and try again."})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the database and reports session and limiter state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"sessions":     s.sessions.Count(),
		"rate_limiter": s.limiter.GetMetrics(),
	}

	if s.health == nil {
		checks["database"] = "not_configured"
	} else if err := s.health.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["database"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	NewJSONResponse(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Status(httpStatus).Write(w)
}

// userError maps known errors to a status and an inline message. ok is
// false for errors that should surface as a 500.
func userError(err error) (status int, message string, ok bool) {
	switch {
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest, "Invalid form submission.", true
	case errors.Is(err, core.ErrEmptyField):
		return http.StatusUnprocessableEntity, "Please fill in all required fields.", true
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity, capitalize(err.Error()) + ".", true
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Enter a valid amount, for example 250.00.", true
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Enter a valid date (YYYY-MM-DD).", true
	case errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusUnprocessableEntity, "Description is too long (max 200 characters).", true
	case errors.Is(err, core.ErrDuplicateUser):
		return http.StatusConflict, "Username or email already exists.", true
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password.", true
	case errors.Is(err, services.ErrIncomeRequired):
		return http.StatusUnprocessableEntity, "Monthly income must be greater than zero.", true
	case errors.Is(err, core.ErrNoExpenses):
		return http.StatusUnprocessableEntity, "Add an expense first.", true
	case errors.Is(err, advice.ErrUnknownRisk):
		return http.StatusUnprocessableEntity, "Choose a risk profile: Low, Medium or High.", true
	case errors.Is(err, advice.ErrEmptyPrompt):
		return http.StatusUnprocessableEntity, "Please type a question.", true
	}
	return http.StatusInternalServerError, genericServerMessage, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
