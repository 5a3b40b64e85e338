// Package web implements the web server for the job portal: public JSON API,
// login/logout and the admin console
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/rs/cors"

	"github.com/umputun/jobportal/app/auth"
	"github.com/umputun/jobportal/app/web/persistence"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	adminPrefix = "/admin"
	loginPath   = "/login"
	pageSize    = 20

	publicBodyLimit = 64 * 1024   // login form and api requests
	adminBodyLimit  = 1024 * 1024 // admin forms carry long job descriptions
)

// Store defines storage operations used by the server
type Store interface {
	ListJobs(ctx context.Context) ([]persistence.Job, error)
	ListNewestJobs(ctx context.Context) ([]persistence.Job, error)
	GetJob(ctx context.Context, id int64) (persistence.Job, error)
	JobsByRole(ctx context.Context, role string) ([]persistence.Job, error)
	JobsByCompany(ctx context.Context, company string) ([]persistence.Job, error)
	JobsPage(ctx context.Context, page, perPage int) (persistence.JobsPage, error)
	SearchJobs(ctx context.Context, query string) ([]persistence.Job, error)
	CountJobs(ctx context.Context) (int, error)
	CreateJob(ctx context.Context, job persistence.Job) (persistence.Job, error)
	UpdateJob(ctx context.Context, job persistence.Job) error
	DeleteJob(ctx context.Context, id int64) error

	ListUsers(ctx context.Context) ([]persistence.User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (persistence.User, error)
	GetUserByUsername(ctx context.Context, username string) (persistence.User, error)
	CreateUser(ctx context.Context, user persistence.User) (persistence.User, error)
	UpdateUser(ctx context.Context, user persistence.User) error
	DeleteUser(ctx context.Context, id int64) error
}

// ModelChange describes a record created or updated through the admin console
type ModelChange struct {
	Entity  string // "job" or "user"
	ID      int64
	Created bool
}

// Server represents the web server
type Server struct {
	store            Store
	sessions         *auth.Sessions
	templates        map[string]*template.Template
	version          string
	csrfProtection   *http.CrossOriginProtection
	loginLimiter     *limiter.Limiter
	corsOrigins      []string
	afterModelChange func(ctx context.Context, change ModelChange)
}

// Config holds server configuration
type Config struct {
	Store         Store
	SessionSecret string
	SessionTTL    time.Duration // defaults to 24h
	Version       string
	LoginRate     float64  // login attempts per second per IP, defaults to 5
	CORSOrigins   []string // allowed origins for cross-site API calls, defaults to any
	// AfterModelChange called after every admin create or update, no-op by default
	AfterModelChange func(ctx context.Context, change ModelChange)
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("web server initialization failed: store is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("web server initialization failed: session secret is required")
	}

	loginRate := cfg.LoginRate
	if loginRate <= 0 {
		loginRate = 5
	}
	loginLimiter := tollbooth.NewLimiter(loginRate, nil)
	loginLimiter.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	afterChange := cfg.AfterModelChange
	if afterChange == nil {
		afterChange = func(context.Context, ModelChange) {}
	}

	s := &Server{
		store:            cfg.Store,
		sessions:         auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		version:          cfg.Version,
		csrfProtection:   http.NewCrossOriginProtection(),
		loginLimiter:     loginLimiter,
		corsOrigins:      corsOrigins,
		afterModelChange: afterChange,
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// LoadUser resolves a session into the current user row, used by the route guard
func (s *Server) LoadUser(ctx context.Context, id int64) (auth.AuthenticatedUser, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return auth.AuthenticatedUser{}, err
	}
	return auth.AuthenticatedUser{ID: user.ID, Username: user.Username}, nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobportal", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
		corsHandler.Handler,
		auth.Guard(s.sessions, s, adminPrefix, loginPath),
	)

	// site root and login, request size limited like the api
	router.Group().Route(func(pub *routegroup.Bundle) {
		pub.Use(rest.SizeLimit(publicBodyLimit))
		pub.HandleFunc("GET /{$}", s.handleGreeting)
		pub.HandleFunc("GET /login", s.handleLoginForm)
		pub.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		pub.HandleFunc("GET /logout", s.handleLogout)
	})

	// public read-only api
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.SizeLimit(publicBodyLimit), rest.NoCache)
		api.HandleFunc("GET /jobs", s.handleListJobs)
		api.HandleFunc("GET /jobs/new", s.handleNewestJobs)
		api.HandleFunc("GET /jobs/search", s.handleSearchJobs)
		api.HandleFunc("GET /jobs/role/{role}", s.handleJobsByRole)
		api.HandleFunc("GET /jobs/company/{company}", s.handleJobsByCompany)
		api.HandleFunc("GET /jobs/page/{page}", s.handleJobsPage)
		api.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	})

	router.HandleFunc("GET "+adminPrefix, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, adminPrefix+"/", http.StatusMovedPermanently)
	})

	// admin console, guarded by auth.Guard and checked again per request
	router.Mount(adminPrefix).Route(func(adm *routegroup.Bundle) {
		adm.Use(rest.SizeLimit(adminBodyLimit), rest.NoCache, s.csrfProtection.Handler, s.adminOnly)
		adm.HandleFunc("GET /{$}", s.handleAdminIndex)

		adm.HandleFunc("GET /jobs", s.handleAdminJobs)
		adm.HandleFunc("GET /jobs/new", s.handleAdminJobNew)
		adm.HandleFunc("POST /jobs", s.handleAdminJobCreate)
		adm.HandleFunc("GET /jobs/{id}/edit", s.handleAdminJobEdit)
		adm.HandleFunc("POST /jobs/{id}", s.handleAdminJobUpdate)
		adm.HandleFunc("POST /jobs/{id}/delete", s.handleAdminJobDelete)

		adm.HandleFunc("GET /users", s.handleAdminUsers)
		adm.HandleFunc("GET /users/new", s.handleAdminUserNew)
		adm.HandleFunc("POST /users", s.handleAdminUserCreate)
		adm.HandleFunc("GET /users/{id}/edit", s.handleAdminUserEdit)
		adm.HandleFunc("POST /users/{id}", s.handleAdminUserUpdate)
		adm.HandleFunc("POST /users/{id}/delete", s.handleAdminUserDelete)
	})

	return router
}

// handleGreeting returns static greeting for the root path
func (s *Server) handleGreeting(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"message": "hello!"})
}

// render renders a page template with the given status
func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		log.Printf("[WARN] failed to execute template %s: %v", page, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses the standalone login page and admin pages, each admin page combined with the layout
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"description": formatDescription,
		"date":        formatDate,
	}

	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	for _, page := range []string{"index", "jobs", "job_form", "users", "user_form"} {
		tmpl, err := template.New(page + ".html").Funcs(funcMap).ParseFS(templatesFS,
			"templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		templates[page] = tmpl
	}

	return templates, nil
}

// formatDescription shortens descriptions of 12 or more words to the first 12 words with ellipsis
func formatDescription(desc string) string {
	const maxWords = 12
	words := strings.Fields(desc)
	if len(words) < maxWords {
		return desc
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
