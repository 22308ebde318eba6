package web

import (
	"net/http"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/jobtrack/app/web/enums"
)

const (
	authCookie    = "jobtrack-auth"
	basicAuthUser = "jobtrack"
)

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, r, http.StatusOK, "")
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLogin(w, r, http.StatusUnauthorized, "Password is required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		s.renderLogin(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}

	token := s.createSession()
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     s.cookiePath(),
		MaxAge:   int(s.loginTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleLogout drops the session and clears the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authCookie); err == nil {
		s.sessionsMu.Lock()
		delete(s.sessions, cookie.Value)
		s.sessionsMu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1, // delete cookie
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	// tell HTMX to perform a full page refresh instead of swapping content
	w.Header().Set("HX-Refresh", "true")
	http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
}

// renderLogin renders the login form with optional error message
func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, errorMsg string) {
	data := struct {
		Error   string
		Theme   enums.Theme
		BaseURL string
	}{
		Error:   errorMsg,
		Theme:   s.getTheme(r),
		BaseURL: s.baseURL,
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.renderStatus(w, status, "login", "login.html", data)
}

// authMiddleware checks for session cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// skip auth for login page and static resources
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookie); err == nil && s.validSession(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		// fallback to basic auth for API clients
		username, password, ok := r.BasicAuth()
		if ok && username == basicAuthUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		switch {
		case r.Header.Get("HX-Request") == "true":
			// htmx request with expired session, reload the page to get to login form
			w.Header().Set("HX-Redirect", s.url("/login"))
			w.WriteHeader(http.StatusUnauthorized)
		case r.Header.Get("Accept") == "" || strings.Contains(r.Header.Get("Accept"), "text/html"):
			http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
		default:
			w.Header().Set("WWW-Authenticate", `Basic realm="Job Tracker"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	})
}

// createSession makes a new session token and drops expired sessions
func (s *Server) createSession() string {
	token := uuid.NewString()
	now := time.Now()

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for k, sess := range s.sessions {
		if now.Sub(sess.createdAt) > s.loginTTL {
			delete(s.sessions, k)
		}
	}
	s.sessions[token] = session{token: token, createdAt: now}
	return token
}

// validSession checks the token belongs to a live session
func (s *Server) validSession(token string) bool {
	if token == "" {
		return false
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Since(sess.createdAt) > s.loginTTL {
		delete(s.sessions, token)
		return false
	}
	return true
}
