// Package session keeps the per-visitor file registry and the cookies that
// bind a browser to it.
package session

import (
	"sync"
	"time"

	"pdfrenamer/internal/models"
)

// State is the controller state derived from the registry size.
type State int

const (
	Idle State = iota
	Listing
)

func (s State) String() string {
	if s == Listing {
		return "listing"
	}
	return "idle"
}

// Registry maps original file names to processed entries. At most one entry
// exists per name; the first upload wins and later uploads under the same
// name are ignored.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*models.Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*models.Entry)}
}

// Upsert inserts an entry for original if none exists. It reports whether
// the entry was added. content is copied.
func (r *Registry) Upsert(original string, content []byte, proposed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[original]; ok {
		return false
	}
	r.entries[original] = &models.Entry{
		OriginalName: original,
		ProposedName: proposed,
		Size:         len(content),
		Content:      append([]byte(nil), content...),
		CreatedAt:    time.Now().UTC(),
	}
	r.order = append(r.order, original)
	return true
}

// SetProposedName replaces the proposed name of an existing entry. Unknown
// names are left alone and false is returned.
func (r *Registry) SetProposedName(original, proposed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[original]
	if !ok {
		return false
	}
	entry.ProposedName = proposed
	return true
}

// ClearAll drops every entry.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.entries = make(map[string]*models.Entry)
	r.order = nil
	r.mu.Unlock()
}

// Has reports whether original is registered.
func (r *Registry) Has(original string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[original]
	return ok
}

// Get returns a copy of the entry for original.
func (r *Registry) Get(original string) (models.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[original]
	if !ok {
		return models.Entry{}, false
	}
	return copyEntry(entry), true
}

// List returns copies of all entries in upload order.
func (r *Registry) List() []models.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, copyEntry(r.entries[name]))
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// State is Listing while at least one entry is registered.
func (r *Registry) State() State {
	if r.Len() > 0 {
		return Listing
	}
	return Idle
}

func copyEntry(e *models.Entry) models.Entry {
	out := *e
	out.Content = append([]byte(nil), e.Content...)
	return out
}
