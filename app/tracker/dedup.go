package tracker

import "sync"

// inFlight holds keys of mutations currently sent to the backend.
// Update and delete of the same job share jobKey, a repeated submit of the add form hits createKey.
type inFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{keys: make(map[string]struct{})}
}

// acquire marks key busy, returns false if another mutation holds it
func (f *inFlight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inFlight) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

// createKey of a new job, the backend assigns no id yet so company and position identify it
func createKey(form Form) string {
	return "create:" + form.Company + "\x00" + form.Position
}

func jobKey(id string) string {
	return "job:" + id
}
