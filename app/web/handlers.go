package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/enums"
	"github.com/umputun/jobtrack/app/web/persistence"
)

// jobFormData is used by add and edit modals
type jobFormData struct {
	Title  string
	Action string // url to submit the form to
	Method string // hx method, post or put
	Submit string // submit button text
	Form   tracker.Form
	Errors tracker.FieldErrors
	Error  string // form-level error, i.e. backend failure
	Strict bool
}

// handleDashboard renders the main dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := s.newTemplateData(r)
	if err := s.jobsView(r, &data); err != nil {
		log.Printf("[WARN] failed to load jobs for dashboard: %v", err)
	}
	recent, err := s.store.RecentEvents(10)
	if err != nil {
		log.Printf("[WARN] failed to load recent activity: %v", err)
	}
	data.Recent = recent
	s.render(w, "base.html", "base", data)
}

// handleJobsPartial returns the jobs table with OOB stats, re-fetched on jobs-changed and search
func (s *Server) handleJobsPartial(w http.ResponseWriter, r *http.Request) {
	data := s.newTemplateData(r)
	if err := s.jobsView(r, &data); err != nil {
		log.Printf("[WARN] failed to load jobs: %v", err)
		setTrigger(w, &toast{Level: "error", Message: "Failed to load jobs"})
	}
	data.IsOOB = true
	if err := s.renderFragments(w, data, "jobs-table", "stats-updates"); err != nil {
		log.Printf("[ERROR] failed to render jobs partial: %v", err)
		http.Error(w, "Failed to render jobs", http.StatusInternalServerError)
	}
}

// renderFragments renders several partial templates into a single response, used for OOB swaps
func (s *Server) renderFragments(w http.ResponseWriter, data TemplateData, names ...string) error {
	tmpl, ok := s.templates["partials/jobs.html"]
	if !ok {
		return fmt.Errorf("partials template not found")
	}

	var buf bytes.Buffer
	for _, name := range names {
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[ERROR] failed to write response: %v", err)
	}
	return nil
}

// handleNewJobModal renders empty add job form
func (s *Server) handleNewJobModal(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "partials/jobs.html", "job-form-modal", s.newJobForm(tracker.Form{}))
}

// handleEditJobModal renders edit form prefilled with the job
func (s *Server) handleEditJobModal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.jobError(w, err, "load")
		return
	}
	s.render(w, "partials/jobs.html", "job-form-modal", s.editJobForm(id, tracker.FormFromJob(job)))
}

// handleDeleteJobModal renders delete confirmation
func (s *Server) handleDeleteJobModal(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.jobError(w, err, "load")
		return
	}
	s.render(w, "partials/jobs.html", "delete-modal", struct{ Job backend.Job }{Job: job})
}

// handleCreateJob adds a new job from the submitted form
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseJobForm(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Create(r.Context(), form)
	if err != nil {
		s.formError(w, s.newJobForm(form), err, "add")
		return
	}
	s.closeModal(w, fmt.Sprintf("Job at %s added", job.Company))
}

// handleUpdateJob saves the edit form
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	form, ok := s.parseJobForm(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Update(r.Context(), id, form)
	if err != nil {
		s.formError(w, s.editJobForm(id, form), err, "update")
		return
	}
	s.closeModal(w, fmt.Sprintf("Job at %s updated", job.Company))
}

// handleDeleteJob removes the job after confirmation
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.jobError(w, err, "delete")
		return
	}
	s.closeModal(w, "Job deleted")
}

// handleDeleteSelected removes all checked jobs
func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	ids := make([]string, 0, len(r.Form["ids"]))
	seen := map[string]bool{}
	for _, id := range r.Form["ids"] {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		setTrigger(w, &toast{Level: "warning", Message: "No jobs selected"})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	failed, err := s.jobs.DeleteMany(r.Context(), ids)
	if err != nil {
		log.Printf("[WARN] bulk delete failed for %d of %d jobs: %v", len(failed), len(ids), err)
		setTrigger(w, &toast{Level: "error", Message: fmt.Sprintf("Failed to delete %d of %d jobs", len(failed), len(ids))},
			"jobs-changed")
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	setTrigger(w, &toast{Level: "success", Message: fmt.Sprintf("Deleted %d jobs", len(ids))}, "jobs-changed")
	w.WriteHeader(http.StatusOK)
}

// handleJobHistory renders journal of the job, works for deleted jobs too
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, err := s.store.GetEvents(id, s.historyLimit)
	if err != nil {
		log.Printf("[ERROR] failed to get history for job %s: %v", id, err)
		http.Error(w, "Failed to load job history", http.StatusInternalServerError)
		return
	}

	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if len(events) == 0 {
			s.jobError(w, err, "load")
			return
		}
		// deleted job, use the last known state from the journal
		job = backend.Job{ID: id, Company: events[0].Company, Position: events[0].Position, Status: events[0].Status}
	}

	data := struct {
		Job    backend.Job
		Events []persistence.Event
	}{Job: job, Events: events}
	s.render(w, "partials/jobs.html", "history-modal", data)
}

// handleThemeToggle cycles the theme and reloads the page
func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	s.setCookie(w, "theme", s.cycleTheme(s.getTheme(r)).String())
	w.Header().Set("HX-Refresh", "true")
	w.WriteHeader(http.StatusOK)
}

// handleSortToggle cycles sort modes, returns sorted table and OOB sort button
func (s *Server) handleSortToggle(w http.ResponseWriter, r *http.Request) {
	nextMode := s.cycleSortMode(s.getSortMode(r))
	s.setCookie(w, "sort-mode", nextMode.String())

	data := s.newTemplateData(r)
	data.SortMode = nextMode
	if err := s.jobsView(r, &data); err != nil {
		log.Printf("[WARN] failed to load jobs: %v", err)
	}
	data.IsOOB = true
	if err := s.renderFragments(w, data, "jobs-table", "sort-button"); err != nil {
		log.Printf("[ERROR] failed to render sorted jobs: %v", err)
		http.Error(w, "Failed to render jobs", http.StatusInternalServerError)
	}
}

// handleFilterToggle cycles filter modes, returns filtered table with OOB filter button and stats
func (s *Server) handleFilterToggle(w http.ResponseWriter, r *http.Request) {
	nextMode := s.cycleFilterMode(s.getFilterMode(r))
	s.setCookie(w, "filter-mode", nextMode.String())

	data := s.newTemplateData(r)
	data.FilterMode = nextMode
	if err := s.jobsView(r, &data); err != nil {
		log.Printf("[WARN] failed to load jobs: %v", err)
	}
	data.IsOOB = true
	if err := s.renderFragments(w, data, "jobs-table", "filter-button", "stats-updates"); err != nil {
		log.Printf("[ERROR] failed to render filtered jobs: %v", err)
		http.Error(w, "Failed to render jobs", http.StatusInternalServerError)
	}
}

// handleSettingsModal renders settings/about modal with host stats
func (s *Server) handleSettingsModal(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Settings SettingsInfo
		Host     hostStats
	}{Settings: s.settingsInfo, Host: collectHostStats(s.settingsInfo.DBPath)}
	s.render(w, "partials/jobs.html", "settings-modal", data)
}

// parseJobForm reads job fields from the request
func (s *Server) parseJobForm(w http.ResponseWriter, r *http.Request) (tracker.Form, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return tracker.Form{}, false
	}
	return tracker.Form{
		Company:  r.FormValue(tracker.FieldCompany),
		Position: r.FormValue(tracker.FieldPosition),
		Salary:   r.FormValue(tracker.FieldSalary),
		Status:   r.FormValue(tracker.FieldStatus),
		Note:     r.FormValue(tracker.FieldNote),
	}, true
}

func (s *Server) newJobForm(form tracker.Form) jobFormData {
	return jobFormData{Title: "Add Job", Action: s.url("/api/jobs"), Method: "post",
		Submit: "Add", Form: form, Strict: s.jobs.ValidationMode() == enums.ValidationModeStrict}
}

func (s *Server) editJobForm(id string, form tracker.Form) jobFormData {
	return jobFormData{Title: "Edit Job", Action: s.url("/api/jobs/" + id), Method: "put",
		Submit: "Save", Form: form, Strict: s.jobs.ValidationMode() == enums.ValidationModeStrict}
}

// closeModal clears the modal, refreshes the table and shows success toast
func (s *Server) closeModal(w http.ResponseWriter, msg string) {
	setTrigger(w, &toast{Level: "success", Message: msg}, "jobs-changed")
	w.Header().Set("HX-Retarget", "#modal")
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(http.StatusOK)
}

// formError keeps the modal open. Invalid fields are flagged, other errors shown as form-level error and toast.
func (s *Server) formError(w http.ResponseWriter, data jobFormData, err error, action string) {
	var ve *tracker.ValidationError
	switch {
	case errors.As(err, &ve):
		data.Errors = ve.Fields
		setTrigger(w, &toast{Level: "warning", Message: "Please fix the highlighted fields"})
	case errors.Is(err, tracker.ErrBusy), errors.Is(err, tracker.ErrNotFound):
		s.jobError(w, err, action)
		return
	default:
		log.Printf("[WARN] failed to %s job: %v", action, err)
		data.Errors = tracker.FieldErrors{}
		data.Error = fmt.Sprintf("Failed to %s job, backend error", action)
		setTrigger(w, &toast{Level: "error", Message: data.Error})
	}
	w.Header().Set("HX-Retarget", "#modal")
	w.Header().Set("HX-Reswap", "innerHTML")
	s.render(w, "partials/jobs.html", "job-form-modal", data)
}

// jobError reports error of a non-form action with a toast and status code
func (s *Server) jobError(w http.ResponseWriter, err error, action string) {
	status, msg := http.StatusBadGateway, fmt.Sprintf("Failed to %s job", action)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		status, msg = http.StatusNotFound, "Job not found"
	case errors.Is(err, tracker.ErrBusy):
		status, msg = http.StatusConflict, "Job is being changed, try again"
	default:
		log.Printf("[WARN] failed to %s job: %v", action, err)
	}
	setTrigger(w, &toast{Level: "error", Message: msg}, "jobs-changed")
	http.Error(w, msg, status)
}
