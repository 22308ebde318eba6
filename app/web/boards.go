package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

const boardsCacheKey = "boards"

// Board is a linked jobtrack instance, i.e. a tracker of another person or team
type Board struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// handleBoards returns HTML fragment with linked boards for the header menu
func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	if s.boardsURL == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		s.renderBoards(w, "boards-error", "Linked boards not configured", nil)
		return
	}

	if boards, ok := s.boardsCache.Get(boardsCacheKey); ok {
		s.renderBoards(w, "boards-list", "", boards)
		return
	}

	boards, err := s.fetchBoards(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to fetch linked boards from %s: %v", s.boardsURL, err)
		s.renderBoards(w, "boards-error", "Failed to load linked boards", nil)
		return
	}
	s.boardsCache.Set(boardsCacheKey, boards, 0)
	s.renderBoards(w, "boards-list", "", boards)
}

func (s *Server) renderBoards(w http.ResponseWriter, name, errMsg string, boards []Board) {
	tmpl, ok := s.templates["partials/jobs.html"]
	if !ok {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	data := struct {
		Boards []Board
		Error  string
	}{Boards: boards, Error: errMsg}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[ERROR] failed to execute %s template: %v", name, err)
	}
}

// fetchBoards loads boards from http(s) or file url. The list is yaml, json is accepted as well.
// Boards with non-http links are skipped.
func (s *Server) fetchBoards(ctx context.Context) ([]Board, error) {
	u, err := url.Parse(s.boardsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid boards url %q: %w", s.boardsURL, err)
	}

	var body []byte
	switch u.Scheme {
	case "file":
		if body, err = readLimited(u.Path); err != nil {
			return nil, fmt.Errorf("failed to read boards file %s: %w", u.Path, err)
		}
	case "http", "https":
		if body, err = s.fetchBoardsHTTP(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported scheme in boards url: %q", u.Scheme)
	}

	var boards []Board
	if err := yaml.Unmarshal(body, &boards); err != nil {
		return nil, fmt.Errorf("failed to parse boards: %w", err)
	}

	res := make([]Board, 0, len(boards))
	for _, b := range boards {
		bu, err := url.Parse(b.URL)
		if err != nil || (bu.Scheme != "http" && bu.Scheme != "https") {
			log.Printf("[WARN] skipping board %q with invalid url %q", b.Name, b.URL)
			continue
		}
		if strings.TrimSpace(b.Name) == "" {
			b.Name = bu.Host
		}
		res = append(res, b)
	}
	return res, nil
}

func (s *Server) fetchBoardsHTTP(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.boardsURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to make boards request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch boards: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected boards status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read boards response: %w", err)
	}
	return body, nil
}

// readLimited reads up to 1MB of the file
func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close file: %v", closeErr)
		}
	}()
	return io.ReadAll(io.LimitReader(f, 1024*1024))
}
