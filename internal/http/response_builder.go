package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/session"
)

// Page template names, one file each under web/templates.
const (
	pageAuth       = "auth"
	pageHome       = "home"
	pageAddExpense = "add_expense"
	pageDashboard  = "dashboard"
	pageAdvice     = "advice"
	pageChat       = "chat"
)

var viewPages = map[session.View]string{
	session.Home:             pageHome,
	session.AddExpense:       pageAddExpense,
	session.Dashboard:        pageDashboard,
	session.InvestmentAdvice: pageAdvice,
	session.Chatbot:          pageChat,
}

var viewPaths = map[session.View]string{
	session.Home:             "/home",
	session.AddExpense:       "/expenses/new",
	session.Dashboard:        "/dashboard",
	session.InvestmentAdvice: "/advice",
	session.Chatbot:          "/chat",
}

var viewLabels = map[session.View]string{
	session.Home:             "Home",
	session.AddExpense:       "Add Expense",
	session.Dashboard:        "Dashboard",
	session.InvestmentAdvice: "Investment Advice",
	session.Chatbot:          "Chatbot",
}

var templateFuncs = template.FuncMap{
	"money": formatRupees,
}

// parsePages builds one template set per page, each layered over base.html.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New("base.html").Funcs(templateFuncs).ParseFS(fsys, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{pageAuth, pageHome, pageAddExpense, pageDashboard, pageAdvice, pageChat} {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base template: %w", err)
		}
		if _, err := t.ParseFS(fsys, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

type navItem struct {
	Label  string
	Path   string
	Active bool
}

// pageData is what every page template receives.
type pageData struct {
	Session session.Snapshot
	Nav     []navItem
	Error   string
	Flash   string
	// Form echoes submitted values back into inputs. Password fields are
	// never echoed.
	Form url.Values
	Data any
}

func newNav(active session.View) []navItem {
	items := make([]navItem, 0, len(session.Views))
	for _, v := range session.Views {
		items = append(items, navItem{Label: viewLabels[v], Path: viewPaths[v], Active: v == active})
	}
	return items
}

// render executes a page into a buffer first so a template failure still
// produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := s.pages[page]
	if !ok {
		s.serverError(w, r, fmt.Errorf("unknown page %q", page))
		return
	}

	if sess, ok := session.FromContext(r.Context()); ok {
		data.Session = sess.Snapshot()
	}
	if data.Session.LoggedIn() {
		data.Nav = newNav(data.Session.View)
	}
	if data.Form == nil {
		data.Form = url.Values{}
	}
	data.Form.Del("password")
	data.Form.Del("new_password")

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", page)
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serverError logs err with the request id and shows a generic message.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeInternal,
		log.FieldPath, r.URL.Path)
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse(body any) *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		body:       body,
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write encodes the body and sends the response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	payload, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// JSONError builds a {"error": message} response.
func JSONError(status int, message string) *JSONResponseBuilder {
	return NewJSONResponse(map[string]string{"error": message}).Status(status)
}

// formatRupees formats an amount for display, e.g. "₹1,234.50".
func formatRupees(m core.Money) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "₹" + b.String() + "." + frac
}
