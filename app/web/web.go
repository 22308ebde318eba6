// Package web implements the web server for jobtrack application
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/expirable-cache/v3"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/enums"
	"github.com/umputun/jobtrack/app/web/persistence"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const cookieMaxAge = 365 * 24 * 60 * 60 // 1 year

// session represents an active user session
type session struct {
	token     string
	createdAt time.Time
}

// Server represents the web server
type Server struct {
	jobs           JobsService
	store          Persistence
	templates      map[string]*template.Template
	eventChan      chan tracker.Event
	baseURL        string // base URL path for reverse proxy (e.g., /jobs), empty for root
	hostname       string // hostname to display in UI
	version        string
	passwordHash   string                      // bcrypt hash for auth
	loginTTL       time.Duration               // session TTL
	csrfProtection *http.CrossOriginProtection // csrf protection for POST/PUT/DELETE endpoints
	loginLimiter   *limiter.Limiter            // rate limiter for login attempts
	sessions       map[string]session          // active user sessions
	sessionsMu     sync.Mutex                  // protects sessions map
	settingsInfo   SettingsInfo                // runtime configuration for settings/about modal
	historyLimit   int                         // max journal records kept per job
	boardsURL      string                      // linked boards list location, http(s) or file url
	boardsCache    cache.Cache[string, []Board]
}

// JobsService defines jobs operations used by handlers, implemented by tracker.Service
type JobsService interface {
	List(ctx context.Context) ([]backend.Job, error)
	Get(ctx context.Context, id string) (backend.Job, error)
	Create(ctx context.Context, form tracker.Form) (backend.Job, error)
	Update(ctx context.Context, id string, form tracker.Form) (backend.Job, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (failed []string, err error)
	ValidationMode() enums.ValidationMode
}

// Persistence defines activity journal storage
type Persistence interface {
	RecordEvent(ev persistence.Event) error
	GetEvents(jobID string, limit int) ([]persistence.Event, error)
	RecentEvents(limit int) ([]persistence.Event, error)
	CleanupOldEvents(jobID string, keep int) error
	Close() error
}

// TemplateData holds data for templates
type TemplateData struct {
	Jobs        []backend.Job
	Stats       tracker.Stats // counts of all jobs, before filtering
	Shown       int           // number of jobs after search and filter
	Search      string
	CurrentYear int
	BaseURL     string // base URL path for reverse proxy (e.g., /jobs)
	Hostname    string // hostname to display in UI
	Theme       enums.Theme
	SortMode    enums.SortMode
	FilterMode  enums.FilterMode
	IsOOB       bool   // for OOB template rendering
	AuthEnabled bool   // whether authentication is enabled
	Version     string // application version (short form)
	FullVersion string // full application version
	LoadError   string // jobs can't be loaded from backend
	Recent      []persistence.Event
	Boards      bool // linked boards menu enabled
}

// newTemplateData creates a TemplateData with common fields populated from request
func (s *Server) newTemplateData(r *http.Request) TemplateData {
	return TemplateData{
		BaseURL:     s.baseURL,
		Hostname:    s.hostname,
		Theme:       s.getTheme(r),
		SortMode:    s.getSortMode(r),
		FilterMode:  s.getFilterMode(r),
		Search:      strings.TrimSpace(r.FormValue("search")),
		AuthEnabled: s.passwordHash != "",
		Version:     shortVersion(s.version),
		FullVersion: s.version,
		CurrentYear: time.Now().Year(),
		Boards:      s.boardsURL != "",
	}
}

// Config holds server configuration
type Config struct {
	DBPath       string
	Jobs         JobsService
	BaseURL      string // base URL path for reverse proxy (e.g., /jobs), empty for root
	Hostname     string // hostname to display in UI
	Version      string
	PasswordHash string        // bcrypt hash for auth (empty to disable)
	LoginTTL     time.Duration // session TTL, defaults to 24h if not set
	HistoryLimit int           // max journal records per job, defaults to 50
	BoardsURL    string        // linked boards list, http(s) or file url, empty to disable
	Settings     SettingsInfo  // runtime configuration for settings/about modal
}

// SettingsInfo holds safe-to-display runtime configuration for settings/about modal
type SettingsInfo struct {
	// version & build info
	Version   string
	StartTime time.Time

	// web settings
	WebAddress  string
	WebHostname string
	AuthEnabled bool
	DBPath      string

	// backend settings
	BackendURL     string
	BackendTimeout time.Duration
	CacheTTL       time.Duration
	ValidationMode string

	// repeater defaults
	RepeaterAttempts int
	RepeaterDuration time.Duration
	RepeaterFactor   float64

	// notification summary (counts, no secrets)
	EmailNotifications  bool
	SlackChannelCount   int
	TelegramDestCount   int
	WebhookCount        int
	DigestSchedule      string
	NotificationTimeout time.Duration

	// logging settings
	DebugMode     bool
	LogFilePath   string
	LogMaxSize    int
	LogMaxAge     int
	LogMaxBackups int
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("web server initialization failed: jobs service is required")
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to create SQLite store at %q: %w", cfg.DBPath, err)
	}

	loginTTL := cfg.LoginTTL
	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}

	// 5 login attempts per minute from a single ip
	lmt := tollbooth.NewLimiter(5.0/60.0, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetBurst(5)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr", IndexFromRight: 0})
	lmt.SetMessage("Too many login attempts, try again later")

	s := &Server{
		jobs:           cfg.Jobs,
		store:          store,
		eventChan:      make(chan tracker.Event, 1000),
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		hostname:       cfg.Hostname,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		loginTTL:       loginTTL,
		csrfProtection: http.NewCrossOriginProtection(),
		loginLimiter:   lmt,
		sessions:       make(map[string]session),
		settingsInfo:   cfg.Settings,
		historyLimit:   historyLimit,
		boardsURL:      cfg.BoardsURL,
		boardsCache:    cache.NewCache[string, []Board]().WithTTL(5 * time.Minute).WithMaxKeys(1),
	}

	templates, err := s.parseTemplates()
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w (also failed to close store: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates

	return s, nil
}

// Run starts the web server, blocks until context canceled
func (s *Server) Run(ctx context.Context, address string) error {
	// start journal writer
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		s.processEvents(ctx)
	}()

	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
		// journal writer is done, requests finished during shutdown may have queued more events
		<-eventsDone
		s.flushEvents()
		if err := s.store.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	<-stopped
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	// base URL without trailing slash redirected to the one with slash
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobtrack", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// auth middleware must be set before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /{$}", s.handleDashboard)

	// HTMX endpoints
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		api.HandleFunc("GET /jobs", s.handleJobsPartial)
		api.HandleFunc("GET /jobs/new", s.handleNewJobModal)
		api.HandleFunc("POST /jobs", s.handleCreateJob)
		api.HandleFunc("POST /jobs/delete-selected", s.handleDeleteSelected)
		api.HandleFunc("GET /jobs/{id}/edit", s.handleEditJobModal)
		api.HandleFunc("PUT /jobs/{id}", s.handleUpdateJob)
		api.HandleFunc("GET /jobs/{id}/delete", s.handleDeleteJobModal)
		api.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
		api.HandleFunc("GET /jobs/{id}/history", s.handleJobHistory)
		api.HandleFunc("POST /theme", s.handleThemeToggle)
		api.HandleFunc("POST /sort-toggle", s.handleSortToggle)
		api.HandleFunc("POST /filter-toggle", s.handleFilterToggle)
		api.HandleFunc("GET /settings/modal", s.handleSettingsModal)
		api.HandleFunc("GET /boards", s.handleBoards)
	})

	// JSON API for CLI/programmatic access
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /jobs", s.handleAPIJobs)
		api.HandleFunc("GET /jobs/{id}/history", s.handleAPIJobHistory)
		api.HandleFunc("GET /export", s.handleAPIExport)
		api.HandleFunc("GET /schema", s.handleAPISchema)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template with status 200
func (s *Server) render(w http.ResponseWriter, page, tmplName string, data any) {
	s.renderStatus(w, http.StatusOK, page, tmplName, data)
}

// renderStatus renders a template with the given status code
func (s *Server) renderStatus(w http.ResponseWriter, status int, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"humanTime": s.humanTime,
		"truncate":  s.truncate,
		"url":       s.url,
		"isClosed":  isClosed,
		"hasError":  hasError,
		"statuses":  func() []string { return enums.JobStatusNames },
	}

	// base template with all partials
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/dashboard.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// partials separately for HTMX requests
	partials, err := template.New("jobs.html").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials/jobs.html"] = partials

	// login template is standalone, doesn't use base
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

func (s *Server) getTheme(r *http.Request) enums.Theme {
	cookie, err := r.Cookie("theme")
	if err != nil {
		return enums.ThemeAuto
	}
	theme, err := enums.ParseTheme(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid theme %q: %v", cookie.Value, err)
		return enums.ThemeAuto
	}
	return theme
}

// getSortMode gets the sort mode from cookie or defaults to "default"
func (s *Server) getSortMode(r *http.Request) enums.SortMode {
	cookie, err := r.Cookie("sort-mode")
	if err != nil || cookie.Value == "" {
		return enums.SortModeDefault
	}
	mode, err := enums.ParseSortMode(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid sort mode cookie %q: %v", cookie.Value, err)
		return enums.SortModeDefault
	}
	return mode
}

// getFilterMode gets the filter mode from cookie or defaults to "all"
func (s *Server) getFilterMode(r *http.Request) enums.FilterMode {
	cookie, err := r.Cookie("filter-mode")
	if err != nil {
		return enums.FilterModeAll
	}
	mode, err := enums.ParseFilterMode(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid filter mode %q: %v", cookie.Value, err)
		return enums.FilterModeAll
	}
	return mode
}

// cycleTheme cycles through themes: auto -> light -> dark -> auto
func (s *Server) cycleTheme(current enums.Theme) enums.Theme {
	switch current {
	case enums.ThemeAuto:
		return enums.ThemeLight
	case enums.ThemeLight:
		return enums.ThemeDark
	default:
		return enums.ThemeAuto
	}
}

// cycleSortMode cycles through sort modes: default -> company -> status -> default
func (s *Server) cycleSortMode(current enums.SortMode) enums.SortMode {
	switch current {
	case enums.SortModeDefault:
		return enums.SortModeCompany
	case enums.SortModeCompany:
		return enums.SortModeStatus
	default:
		return enums.SortModeDefault
	}
}

// cycleFilterMode cycles through filter modes: all -> open -> closed -> all
func (s *Server) cycleFilterMode(current enums.FilterMode) enums.FilterMode {
	switch current {
	case enums.FilterModeAll:
		return enums.FilterModeOpen
	case enums.FilterModeOpen:
		return enums.FilterModeClosed
	default:
		return enums.FilterModeAll
	}
}

// setCookie sets long-living UI state cookie
func (s *Server) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cookiePath(),
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// template helper functions

func (s *Server) humanTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Local().Format("Jan 2, 15:04:05")
}

func (s *Server) truncate(str string, n int) string {
	runes := []rune(str)
	if len(runes) <= n {
		return str
	}
	return string(runes[:n]) + "..."
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

func isClosed(job backend.Job) bool { return tracker.IsClosed(job) }

func hasError(errs tracker.FieldErrors, field string) bool {
	_, ok := errs[field]
	return ok
}

// toast is a transient notification shown by the UI
type toast struct {
	Level   string `json:"level"` // success, error, warning
	Message string `json:"message"`
}

// setTrigger sets HX-Trigger header with the toast and optional extra events, i.e. jobs-changed
func setTrigger(w http.ResponseWriter, t *toast, events ...string) {
	triggers := map[string]any{}
	for _, ev := range events {
		triggers[ev] = true
	}
	if t != nil {
		triggers["toast"] = t
	}
	if len(triggers) == 0 {
		return
	}
	data, err := json.Marshal(triggers)
	if err != nil {
		log.Printf("[WARN] failed to marshal hx-trigger: %v", err)
		return
	}
	w.Header().Set("HX-Trigger", string(data))
}

// shortVersion extracts a short version string from full version
// for version like "v1.7.0-abc1234-20241225", returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
