// Package tracker provides job applications service on top of the backend client.
// It validates submitted forms, keeps a short-lived cache of the jobs list, rejects concurrent
// mutations of the same job and reports every successful mutation to event handlers.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/expirable-cache/v3"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/web/enums"
)

const listKey = "jobs"

var (
	// ErrNotFound returned for unknown job id
	ErrNotFound = errors.New("job not found")
	// ErrBusy returned when another operation on the same job is in progress
	ErrBusy = errors.New("another operation on this job is in progress")
)

// Backend defines jobs storage operations, implemented by backend.Client
type Backend interface {
	List(ctx context.Context) ([]backend.Job, error)
	Create(ctx context.Context, job backend.Job) (backend.Job, error)
	Update(ctx context.Context, id string, job backend.Job) (backend.Job, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler gets notified about successful mutations. Implementations should not block.
type EventHandler interface {
	OnJobEvent(ev Event)
}

// Event describes a single successful mutation
type Event struct {
	Type enums.EventType
	Job  backend.Job // new state, for deleted job the last known state
	Prev backend.Job // previous state, set for updates only
	At   time.Time
}

// Params for the service
type Params struct {
	Backend        Backend
	CacheTTL       time.Duration // jobs list cache ttl, 0 disables caching
	ValidationMode enums.ValidationMode
	Concurrency    int // max parallel backend calls for bulk operations, default 4
	Handlers       []EventHandler
}

// Service is a top-level jobs service used by the web layer
type Service struct {
	backend     Backend
	cache       cache.Cache[string, []backend.Job]
	mode        enums.ValidationMode
	concurrency int
	busy        *inFlight

	cacheMu  sync.Mutex
	cacheGen uint64 // bumped on each invalidation, a list fetched under older generation is not cached

	handlersMu sync.RWMutex
	handlers   []EventHandler
}

// New makes jobs service
func New(p Params) *Service {
	res := &Service{
		backend:     p.Backend,
		mode:        p.ValidationMode,
		concurrency: p.Concurrency,
		busy:        newInFlight(),
		handlers:    p.Handlers,
	}
	if p.CacheTTL > 0 {
		res.cache = cache.NewCache[string, []backend.Job]().WithTTL(p.CacheTTL).WithMaxKeys(1)
	}
	if res.concurrency <= 0 {
		res.concurrency = 4
	}
	return res
}

// AddHandler registers event handler
func (s *Service) AddHandler(h EventHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// ValidationMode returns configured validation mode
func (s *Service) ValidationMode() enums.ValidationMode {
	return s.mode
}

// List returns all jobs in backend order. Served from cache if enabled and not expired.
// The returned slice is a copy and can be modified by caller.
func (s *Service) List(ctx context.Context) ([]backend.Job, error) {
	if s.cache != nil {
		if jobs, ok := s.cache.Get(listKey); ok {
			return append([]backend.Job(nil), jobs...), nil
		}
	}

	gen := s.generation()
	jobs, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cacheMu.Lock()
		if gen == s.cacheGen {
			s.cache.Set(listKey, jobs, 0)
		}
		s.cacheMu.Unlock()
	}
	return append([]backend.Job(nil), jobs...), nil
}

// Get returns a single job by id
func (s *Service) Get(ctx context.Context, id string) (backend.Job, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return backend.Job{}, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return backend.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
}

// Create validates form and adds a new job
func (s *Service) Create(ctx context.Context, form Form) (backend.Job, error) {
	form = form.Normalize(s.mode)
	if errs := form.Validate(s.mode); len(errs) > 0 {
		return backend.Job{}, &ValidationError{Fields: errs}
	}

	key := createKey(form)
	if !s.busy.acquire(key) {
		return backend.Job{}, ErrBusy
	}
	defer s.busy.release(key)

	job, err := s.backend.Create(ctx, form.Job())
	if err != nil {
		return backend.Job{}, err
	}
	s.invalidate()
	log.Printf("[INFO] job created: %s, %q at %q", job.ID, job.Position, job.Company)
	s.emit(Event{Type: enums.EventTypeCreated, Job: job, At: time.Now()})
	return job, nil
}

// Update validates form and replaces job fields
func (s *Service) Update(ctx context.Context, id string, form Form) (backend.Job, error) {
	form = form.Normalize(s.mode)
	if errs := form.Validate(s.mode); len(errs) > 0 {
		return backend.Job{}, &ValidationError{Fields: errs}
	}

	if !s.busy.acquire(jobKey(id)) {
		return backend.Job{}, ErrBusy
	}
	defer s.busy.release(jobKey(id))

	prev, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("[WARN] can't get previous state of job %s, %v", id, err)
	}

	job, err := s.backend.Update(ctx, id, form.Job())
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			s.invalidate()
			return backend.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return backend.Job{}, err
	}
	s.invalidate()
	log.Printf("[INFO] job updated: %s, %q at %q", job.ID, job.Position, job.Company)
	s.emit(Event{Type: enums.EventTypeUpdated, Job: job, Prev: prev, At: time.Now()})
	return job, nil
}

// Delete removes job
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.busy.acquire(jobKey(id)) {
		return ErrBusy
	}
	defer s.busy.release(jobKey(id))

	prev, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("[WARN] can't get state of job %s before delete, %v", id, err)
	}
	return s.remove(ctx, id, prev)
}

// remove calls backend and reports the event with prev as the last known state.
// Caller holds jobKey(id).
func (s *Service) remove(ctx context.Context, id string, prev backend.Job) error {
	if prev.ID == "" {
		prev.ID = id
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			s.invalidate()
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return err
	}
	s.invalidate()
	log.Printf("[INFO] job deleted: %s, %q at %q", id, prev.Position, prev.Company)
	s.emit(Event{Type: enums.EventTypeDeleted, Job: prev, At: time.Now()})
	return nil
}

// DeleteMany removes jobs with limited concurrency. Returns ids failed to delete, sorted.
// Repeated ids deleted once. The list is fetched a single time for the whole batch.
// Error is nil only if all jobs were removed.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (failed []string, err error) {
	ids = uniqueIDs(ids)
	known := map[string]backend.Job{}
	jobs, err := s.List(ctx)
	if err != nil {
		log.Printf("[WARN] can't get state of jobs before bulk delete, %v", err)
	}
	for _, j := range jobs {
		known[j.ID] = j
	}

	var mu sync.Mutex
	var lastErr error
	gr := syncs.NewSizedGroup(s.concurrency)
	for _, id := range ids {
		gr.Go(func(context.Context) {
			e := ErrBusy
			if s.busy.acquire(jobKey(id)) {
				e = s.remove(ctx, id, known[id])
				s.busy.release(jobKey(id))
			}
			if e != nil {
				log.Printf("[WARN] failed to delete job %s, %v", id, e)
				mu.Lock()
				failed = append(failed, id)
				lastErr = e
				mu.Unlock()
			}
		})
	}
	gr.Wait()

	if len(failed) == 0 {
		return nil, nil
	}
	sort.Strings(failed)
	return failed, fmt.Errorf("failed to delete %d of %d jobs, last error: %w", len(failed), len(ids), lastErr)
}

// invalidate drops cached list, next List call refetches from backend
func (s *Service) invalidate() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.cache.Invalidate(listKey)
}

func (s *Service) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

func (s *Service) emit(ev Event) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	for _, h := range s.handlers {
		h.OnJobEvent(ev)
	}
}
