package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/persistence"
)

// APIJobsResponse is the JSON response for /api/v1/jobs
type APIJobsResponse struct {
	Jobs      []backend.Job `json:"jobs"`
	Stats     tracker.Stats `json:"stats"`
	Timestamp time.Time     `json:"timestamp"`
}

// APIEvent represents a journal record in JSON API response
type APIEvent struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Company   string    `json:"company"`
	Position  string    `json:"position"`
	Status    string    `json:"status"`
	Changes   []string  `json:"changes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// APIHistoryResponse is the JSON response for job history
type APIHistoryResponse struct {
	JobID  string     `json:"job_id"`
	Events []APIEvent `json:"events"`
}

// exportRecord is a job as written to export files
type exportRecord struct {
	ID       string `json:"id" yaml:"id"`
	Company  string `json:"company" yaml:"company"`
	Position string `json:"position" yaml:"position"`
	Salary   string `json:"salary" yaml:"salary"`
	Status   string `json:"status" yaml:"status"`
	Note     string `json:"note" yaml:"note"`
}

// exportFile is the whole export document
type exportFile struct {
	ExportedAt time.Time      `json:"exported_at" yaml:"exported_at"`
	Stats      tracker.Stats  `json:"stats" yaml:"stats"`
	Jobs       []exportRecord `json:"jobs" yaml:"jobs"`
}

func toAPIEvent(e persistence.Event) APIEvent {
	return APIEvent{
		ID:        e.ID,
		Type:      e.Type.String(),
		Company:   e.Company,
		Position:  e.Position,
		Status:    e.Status,
		Changes:   e.ChangesList(),
		CreatedAt: e.CreatedAt,
	}
}

// handleAPIJobs returns JSON list of all jobs with stats, designed for CLI/jq consumption
func (s *Server) handleAPIJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to list jobs: %v", err)
		s.writeJSONError(w, http.StatusBadGateway, "failed to load jobs")
		return
	}
	s.writeJSON(w, http.StatusOK, APIJobsResponse{Jobs: jobs, Stats: tracker.Summarize(jobs), Timestamp: time.Now()})
}

// handleAPIJobHistory returns JSON journal of a job
func (s *Server) handleAPIJobHistory(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	events, err := s.store.GetEvents(jobID, s.historyLimit)
	if err != nil {
		log.Printf("[ERROR] failed to get history for job %s: %v", jobID, err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load job history")
		return
	}

	if len(events) == 0 {
		// no journal, report 404 only if the job is unknown to backend as well
		if _, err := s.jobs.Get(r.Context(), jobID); err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.writeJSONError(w, http.StatusNotFound, "job not found")
				return
			}
			s.writeJSONError(w, http.StatusBadGateway, "failed to load job")
			return
		}
	}

	resp := APIHistoryResponse{JobID: jobID, Events: make([]APIEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toAPIEvent(e))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIExport returns all jobs as downloadable json or yaml file
func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q, use json or yaml", format))
		return
	}

	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to list jobs for export: %v", err)
		s.writeJSONError(w, http.StatusBadGateway, "failed to load jobs")
		return
	}

	doc := exportFile{ExportedAt: time.Now().UTC(), Stats: tracker.Summarize(jobs), Jobs: make([]exportRecord, 0, len(jobs))}
	for _, j := range jobs {
		doc.Jobs = append(doc.Jobs, exportRecord(j))
	}

	fname := fmt.Sprintf("jobs-%s.%s", doc.ExportedAt.Format("20060102"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fname))

	if format == "yaml" {
		data, err := yaml.Marshal(doc)
		if err != nil {
			log.Printf("[ERROR] failed to marshal yaml export: %v", err)
			s.writeJSONError(w, http.StatusInternalServerError, "failed to make export")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			log.Printf("[WARN] failed to write export: %v", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleAPISchema returns JSON schema of the job record
func (s *Server) handleAPISchema(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, tracker.GenerateSchema())
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
