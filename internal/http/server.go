// Package http serves the FinWise web UI.
package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finwise/internal/advice"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/middleware/ratelimit"
	"finwise/internal/middleware/security"
	"finwise/internal/middleware/trace"
	"finwise/internal/session"
	appweb "finwise/web"
)

// Authenticator registers users, checks credentials and resets passwords.
type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (core.User, error)
	Login(ctx context.Context, email, password string) (core.User, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
}

// ExpenseRecorder stores expenses and reports on them.
type ExpenseRecorder interface {
	AddExpense(ctx context.Context, userID int64, date core.Date, amount core.Money, description string) (core.Expense, error)
	Report(ctx context.Context, userID int64) (core.Report, []core.Expense, error)
}

// Adviser produces savings, investment and chat advice.
type Adviser interface {
	Savings(ctx context.Context, report core.Report, income core.Money) (advice.Result, error)
	Investment(ctx context.Context, income, savings core.Money, risk advice.Risk, goals string) (advice.Result, error)
	Chat(ctx context.Context, question string) (advice.Result, error)
}

// HealthChecker is pinged by /readyz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Auth, Expenses, Advice and Sessions are
// required.
type Options struct {
	Addr     string
	Auth     Authenticator
	Expenses ExpenseRecorder
	Advice   Adviser
	Sessions *session.Manager
	Health   HealthChecker
	Logger   *log.Logger

	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool
	// AuthRateLimit bounds POSTs to the login, register and reset forms per
	// client address.
	AuthRateLimit ratelimit.Config
	// Now overrides the clock used for default form dates.
	Now func() time.Time
}

type Server struct {
	http.Server
	pages    map[string]*template.Template
	auth     Authenticator
	expenses ExpenseRecorder
	adviser  Adviser
	sessions *session.Manager
	health   HealthChecker
	logger   *log.Logger

	limiter       *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware
	secureCookies bool
	now           func() time.Time
	started       time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Expenses == nil || opts.Advice == nil || opts.Sessions == nil {
		return nil, errors.New("http server: auth, expenses, advice and sessions are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Wrap(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		pages:         pages,
		auth:          opts.Auth,
		expenses:      opts.Expenses,
		adviser:       opts.Advice,
		sessions:      opts.Sessions,
		health:        opts.Health,
		logger:        opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:       ratelimit.NewLimiter(opts.AuthRateLimit),
		detector:      security.NewDetector(),
		secureCookies: opts.SecureCookies,
		now:           opts.Now,
		started:       time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.withSession(handler)
	handler = s.detector.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Advice requests block through every gateway retry.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err == nil {
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
			http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)

	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited, http.MethodPost)
	mux.Handle("POST /login", limit(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /register", limit(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /forgot-password", limit(http.HandlerFunc(s.handleForgotPassword)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /home", s.requireLogin(s.navigate(session.Home)))
	mux.HandleFunc("GET /expenses/new", s.requireLogin(s.navigate(session.AddExpense)))
	mux.HandleFunc("GET /dashboard", s.requireLogin(s.navigate(session.Dashboard)))
	mux.HandleFunc("GET /advice", s.requireLogin(s.navigate(session.InvestmentAdvice)))
	mux.HandleFunc("GET /chat", s.requireLogin(s.navigate(session.Chatbot)))

	mux.HandleFunc("POST /expenses", s.requireLogin(s.handleCreateExpense))
	mux.HandleFunc("GET /dashboard/data", s.requireLogin(s.handleDashboardData))
	mux.HandleFunc("POST /dashboard/savings", s.requireLogin(s.handleSavings))
	mux.HandleFunc("POST /advice", s.requireLogin(s.handleInvestmentAdvice))
	mux.HandleFunc("POST /chat", s.requireLogin(s.handleChat))
}

// Shutdown stops the HTTP server and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if err := s.Server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutdown http server: %w", err)
		}
	})
	return shutdownErr
}
