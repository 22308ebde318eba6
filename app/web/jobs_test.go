package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/enums"
	"github.com/umputun/jobtrack/app/web/persistence"
)

func TestServer_OnJobEvent(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		srv := &Server{eventChan: make(chan tracker.Event, 1)}
		srv.OnJobEvent(tracker.Event{Type: enums.EventTypeCreated, Job: backend.Job{ID: "1"}})
		require.Len(t, srv.eventChan, 1)
		ev := <-srv.eventChan
		assert.Equal(t, "1", ev.Job.ID)
	})

	t.Run("full channel doesn't block", func(t *testing.T) {
		srv := &Server{eventChan: make(chan tracker.Event, 1)}
		srv.OnJobEvent(tracker.Event{Job: backend.Job{ID: "1"}})
		done := make(chan struct{})
		go func() {
			srv.OnJobEvent(tracker.Event{Job: backend.Job{ID: "2"}})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("OnJobEvent blocked on full channel")
		}
		ev := <-srv.eventChan
		assert.Equal(t, "1", ev.Job.ID, "the second event dropped")
	})
}

func TestServer_processEvents(t *testing.T) {
	srv, _ := prepServer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.processEvents(ctx)
		close(done)
	}()

	srv.OnJobEvent(tracker.Event{Type: enums.EventTypeCreated, At: time.Now(),
		Job: backend.Job{ID: "j1", Company: "Acme", Position: "Go developer", Status: "Open"}})

	assert.Eventually(t, func() bool {
		events, err := srv.store.GetEvents("j1", 10)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processEvents didn't stop")
	}
}

func TestServer_recordEvent(t *testing.T) {
	srv, _ := prepServer(t, Config{HistoryLimit: 3})
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	srv.recordEvent(tracker.Event{Type: enums.EventTypeCreated, At: base,
		Job: backend.Job{ID: "j1", Company: "Acme", Position: "Go developer", Salary: "5000", Status: "Open"}})
	for i := range 4 {
		srv.recordEvent(tracker.Event{Type: enums.EventTypeUpdated, At: base.Add(time.Duration(i+1) * time.Minute),
			Prev: backend.Job{ID: "j1", Company: "Acme", Position: "Go developer", Salary: "5000", Status: "Open"},
			Job:  backend.Job{ID: "j1", Company: "Acme", Position: "Go developer", Salary: "6000", Status: "Close"}})
	}

	events, err := srv.store.GetEvents("j1", 100)
	require.NoError(t, err)
	require.Len(t, events, 3, "history trimmed to the limit")
	for _, e := range events {
		assert.Equal(t, enums.EventTypeUpdated, e.Type)
		assert.Equal(t, []string{"salary: 5000 -> 6000", "status: Open -> Close"}, e.ChangesList())
		assert.Equal(t, "Close", e.Status)
	}
	assert.True(t, base.Add(4*time.Minute).Equal(events[0].CreatedAt), "got %v", events[0].CreatedAt)
}

func TestServer_recordEventStoreFailure(t *testing.T) {
	srv, _ := prepServer(t, Config{})
	srv.store = &failingStore{Persistence: srv.store}
	srv.recordEvent(tracker.Event{Type: enums.EventTypeDeleted, Job: backend.Job{ID: "j1"}}) // logged, not panics
}

// failingStore fails all writes
type failingStore struct{ Persistence }

func (f *failingStore) RecordEvent(persistence.Event) error { return errors.New("disk full") }

func TestServer_jobsView(t *testing.T) {
	srv, fb := prepServer(t, Config{}, testRecords()...)

	t.Run("search and filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?search=engineer", http.NoBody)
		data := srv.newTemplateData(req)
		data.FilterMode = enums.FilterModeOpen
		require.NoError(t, srv.jobsView(req, &data))
		require.Len(t, data.Jobs, 1)
		assert.Equal(t, "Initech", data.Jobs[0].Company)
		assert.Equal(t, 1, data.Shown)
		assert.Equal(t, tracker.Stats{Total: 3, Open: 2, Closed: 1}, data.Stats)
		assert.Empty(t, data.LoadError)
	})

	t.Run("backend failure", func(t *testing.T) {
		fb.Fail(1)
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", http.NoBody)
		data := srv.newTemplateData(req)
		require.Error(t, srv.jobsView(req, &data))
		assert.Contains(t, data.LoadError, "Failed to load jobs")
		assert.NotNil(t, data.Jobs)
		assert.Empty(t, data.Jobs)
	})
}

func TestServer_eventsEndToEnd(t *testing.T) {
	// events from tracker service reach the journal through the running server
	srv, _ := prepServer(t, Config{DBPath: filepath.Join(t.TempDir(), "journal.db")}, testRecords()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.processEvents(ctx)

	require.NoError(t, srv.jobs.Delete(ctx, id1))
	assert.Eventually(t, func() bool {
		events, err := srv.store.RecentEvents(10)
		return err == nil && len(events) == 1 && events[0].Type == enums.EventTypeDeleted && events[0].JobID == id1
	}, time.Second, 10*time.Millisecond)
}
