package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/persistence"
)

// OnJobEvent implements tracker.EventHandler, queues event for the journal
func (s *Server) OnJobEvent(ev tracker.Event) {
	select {
	case s.eventChan <- ev:
	default:
		log.Printf("[WARN] event channel full, dropping event for job %s", ev.Job.ID)
	}
}

// processEvents writes queued events to the journal until context canceled.
// Events queued at cancellation are written before return.
func (s *Server) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flushEvents()
			return
		case ev := <-s.eventChan:
			s.recordEvent(ev)
		}
	}
}

// flushEvents writes all queued events without waiting for new ones
func (s *Server) flushEvents() {
	for {
		select {
		case ev := <-s.eventChan:
			s.recordEvent(ev)
		default:
			return
		}
	}
}

// recordEvent stores event and trims job history to the limit
func (s *Server) recordEvent(ev tracker.Event) {
	rec := persistence.Event{
		JobID:     ev.Job.ID,
		Type:      ev.Type,
		Company:   ev.Job.Company,
		Position:  ev.Job.Position,
		Status:    ev.Job.Status,
		Changes:   strings.Join(ev.Changes(), "\n"),
		CreatedAt: ev.At,
	}
	if err := s.store.RecordEvent(rec); err != nil {
		log.Printf("[WARN] failed to record %s event for job %s: %v", ev.Type, ev.Job.ID, err)
		return
	}
	if err := s.store.CleanupOldEvents(ev.Job.ID, s.historyLimit); err != nil {
		log.Printf("[WARN] failed to cleanup history for job %s: %v", ev.Job.ID, err)
	}
}

// jobsView loads jobs and applies search, filter and sort from the request.
// Stats are counted before filtering.
func (s *Server) jobsView(r *http.Request, data *TemplateData) error {
	all, err := s.jobs.List(r.Context())
	if err != nil {
		data.LoadError = fmt.Sprintf("Failed to load jobs: %v", err)
		data.Jobs = []backend.Job{}
		return err
	}
	data.Stats = tracker.Summarize(all)
	jobs := tracker.Filter(all, data.FilterMode, data.Search)
	tracker.Sort(jobs, data.SortMode)
	data.Jobs = jobs
	data.Shown = len(jobs)
	return nil
}
