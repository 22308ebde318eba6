// Package fake provides in-memory implementation of the jobs REST service.
// It follows the same contract as the real backend (GET/POST /jobs, PUT/DELETE /jobs/{id})
// and used by tests of the client, web handlers and e2e suite.
package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Record is a job as stored by the fake backend
type Record struct {
	ID       string `json:"_id"`
	Company  string `json:"company"`
	Position string `json:"position"`
	Salary   string `json:"salary"`
	Status   string `json:"status"`
	Note     string `json:"note"`
}

// Backend is an in-memory jobs service, safe for concurrent use
type Backend struct {
	mux *http.ServeMux

	mu      sync.Mutex
	records []Record
	seq     int
	failing int            // number of upcoming requests to fail with 500, -1 for all
	calls   map[string]int // method -> number of requests
}

// New makes fake backend pre-populated with records. Records without ID get one assigned.
func New(records ...Record) *Backend {
	b := &Backend{mux: http.NewServeMux(), calls: map[string]int{}}
	for _, r := range records {
		if r.ID == "" {
			r.ID = b.nextID()
		}
		b.records = append(b.records, r)
	}
	b.mux.HandleFunc("GET /jobs", b.list)
	b.mux.HandleFunc("POST /jobs", b.create)
	b.mux.HandleFunc("PUT /jobs/{id}", b.update)
	b.mux.HandleFunc("DELETE /jobs/{id}", b.delete)
	return b
}

// ServeHTTP implements http.Handler
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.Method]++
	fail := b.failing != 0
	if b.failing > 0 {
		b.failing--
	}
	b.mu.Unlock()

	if fail {
		http.Error(w, "backend failure", http.StatusInternalServerError)
		return
	}
	b.mux.ServeHTTP(w, r)
}

// Records returns a copy of stored records
func (b *Backend) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make([]Record, len(b.records))
	copy(res, b.records)
	return res
}

// Fail makes next n requests fail with 500. Negative n fails all requests, 0 resets.
func (b *Backend) Fail(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = n
	if n < 0 {
		b.failing = -1
	}
}

// Calls returns number of requests received for the http method
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *Backend) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.Records())
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	rec.ID = b.nextID()
	b.records = append(b.records, rec)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.records {
		if b.records[i].ID == id {
			rec.ID = id
			b.records[i] = rec
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.records {
		if b.records[i].ID == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// nextID makes mongo-like 24 hex chars id, caller holds the lock or owns b exclusively
func (b *Backend) nextID() string {
	b.seq++
	return fmt.Sprintf("%024x", b.seq)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
