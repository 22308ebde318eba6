package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func loginRequest(password, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password="+password))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	return req
}

func TestServer_Authentication(t *testing.T) {
	srv, _ := prepServer(t, Config{PasswordHash: testPasswordHash(t)}, testRecords()...)
	handler := srv.routes()

	t.Run("without auth redirects to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("htmx request without auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", http.NoBody)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
	})

	t.Run("api client with wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth("jobtrack", "wrongpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("api client with basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth("jobtrack", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Acme")
	})

	t.Run("basic auth with wrong user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth("admin", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("static files without auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("login form", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="password"`)
		assert.Contains(t, rec.Body.String(), `action="/login"`)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("wrongpass", "192.0.2.10:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid password")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("login without password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("", "192.0.2.10:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Password is required")
	})

	t.Run("login, use session and logout", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("testpass", "192.0.2.11:1234"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "jobtrack-auth", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, int((24 * time.Hour).Seconds()), cookies[0].MaxAge)
		authCookie := cookies[0]

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.AddCookie(authCookie)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Acme")
		assert.Contains(t, rec.Body.String(), "Logout")

		req = httptest.NewRequest(http.MethodGet, "/logout", http.NoBody)
		req.AddCookie(authCookie)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Equal(t, "true", rec.Header().Get("HX-Refresh"))
		cookies = rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)

		// session is gone after logout
		req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.AddCookie(authCookie)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("secure cookie behind https proxy", func(t *testing.T) {
		req := loginRequest("testpass", "192.0.2.12:1234")
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].Secure)
	})
}

func TestServer_AuthDisabled(t *testing.T) {
	srv, _ := prepServer(t, Config{})
	handler := srv.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no login routes without password")
}

func TestServer_LoginRateLimit(t *testing.T) {
	srv, _ := prepServer(t, Config{PasswordHash: testPasswordHash(t)})
	handler := srv.routes()

	for i := range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("wrongpass", "198.51.100.7:4321"))
		require.Equal(t, http.StatusUnauthorized, rec.Code, fmt.Sprintf("attempt %d", i+1))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("testpass", "198.51.100.7:4321"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many login attempts")

	// other ip is not limited
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("testpass", "198.51.100.8:4321"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestServer_sessions(t *testing.T) {
	srv := &Server{sessions: map[string]session{}, loginTTL: time.Hour}

	token := srv.createSession()
	assert.True(t, srv.validSession(token))
	assert.False(t, srv.validSession(""))
	assert.False(t, srv.validSession("unknown"))

	// expired session dropped on check
	srv.sessions["old"] = session{token: "old", createdAt: time.Now().Add(-2 * time.Hour)}
	assert.False(t, srv.validSession("old"))
	assert.NotContains(t, srv.sessions, "old")

	// expired sessions pruned on new login
	srv.sessions["old2"] = session{token: "old2", createdAt: time.Now().Add(-2 * time.Hour)}
	token2 := srv.createSession()
	assert.NotEqual(t, token, token2)
	assert.NotContains(t, srv.sessions, "old2")
	assert.Len(t, srv.sessions, 2)
}
