// Package http serves the browser interface. Handlers render htmx
// templates and proxy every resource operation to the remote backend
// through the api client; no business logic lives here.
package http

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"homebudget/internal/api"
	"homebudget/internal/log"
	"homebudget/internal/middleware/ratelimit"
	"homebudget/internal/middleware/security"
	"homebudget/internal/middleware/trace"
	"homebudget/internal/session"
	appweb "homebudget/web"
)

// Options configures the browser-facing server.
type Options struct {
	CookieName         string
	CookieSecure       bool
	LoginRatePerMinute int
}

// Server holds the handler dependencies. HTTP is the underlying
// net/http server, ready for ListenAndServe.
type Server struct {
	HTTP *http.Server

	backend      *api.Client
	sessions     *session.Manager
	templates    *template.Template
	loginLimiter *ratelimit.Limiter
	opts         Options
	logger       *log.Logger
}

// NewServer builds the HTTP server with all routes and middleware
// mounted.
func NewServer(addr string, backend *api.Client, sessions *session.Manager, opts Options, logger *log.Logger) (*Server, error) {
	templates, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		backend:      backend,
		sessions:     sessions,
		templates:    templates,
		loginLimiter: ratelimit.NewLimiter(opts.LoginRatePerMinute),
		opts:         opts,
		logger:       logger.WithComponent(log.ComponentHTTP),
	}

	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// Auth
	r.HandleFunc("/login", s.handleLoginPage).Methods("GET")
	r.Handle("/login", s.loginLimiter.Middleware(http.HandlerFunc(s.handleLogin))).Methods("POST")
	r.HandleFunc("/register", s.handleRegisterPage).Methods("GET")
	r.HandleFunc("/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/logout", s.handleLogout).Methods("POST")

	// Budget section
	r.HandleFunc("/budgets", s.withSession(s.handleBudgetsPage)).Methods("GET")
	r.HandleFunc("/budgets", s.withSession(s.handleBudgetCreate)).Methods("POST")
	r.HandleFunc("/budgets/list", s.withSession(s.handleBudgetsList)).Methods("GET")
	r.HandleFunc("/budgets/new", s.withSession(s.handleBudgetNewForm)).Methods("GET")
	r.HandleFunc("/budgets/{id:[0-9]+}/edit", s.withSession(s.handleBudgetEditForm)).Methods("GET")
	r.HandleFunc("/budgets/{id:[0-9]+}", s.withSession(s.handleBudgetUpdate)).Methods("PUT")
	r.HandleFunc("/budgets/{id:[0-9]+}", s.withSession(s.handleBudgetDelete)).Methods("DELETE")

	// Realization section
	r.HandleFunc("/realizations", s.withSession(s.handleRealizationsPage)).Methods("GET")
	r.HandleFunc("/realizations", s.withSession(s.handleRealizationCreate)).Methods("POST")
	r.HandleFunc("/realizations/list", s.withSession(s.handleRealizationsList)).Methods("GET")
	r.HandleFunc("/realizations/new", s.withSession(s.handleRealizationNewForm)).Methods("GET")
	r.HandleFunc("/realizations/{id:[0-9]+}/edit", s.withSession(s.handleRealizationEditForm)).Methods("GET")
	r.HandleFunc("/realizations/{id:[0-9]+}", s.withSession(s.handleRealizationUpdate)).Methods("PUT")
	r.HandleFunc("/realizations/{id:[0-9]+}", s.withSession(s.handleRealizationDelete)).Methods("DELETE")

	// Static assets
	staticFS, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.HandleFunc("/", s.handleIndex).Methods("GET")

	handler := security.Middleware(security.DefaultHeadersConfig())(
		trace.Middleware(
			log.Middleware(logger)(r)))

	s.HTTP = &http.Server{Addr: addr, Handler: handler}
	return s, nil
}

// Close releases server-owned resources.
func (s *Server) Close() {
	s.loginLimiter.Close()
}

// handleIndex routes to the default view: budgets when a session
// resolves, login otherwise.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.sessions.Resolve(r.Context(), s.sessionID(r)); err == nil {
		http.Redirect(w, r, "/budgets", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
