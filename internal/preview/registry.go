// Package preview keeps revocable in-memory references to image bytes so they
// can be rendered without persisting them. A Handle is the server side
// counterpart of a browser object URL.
package preview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrRevoked is returned when looking up a handle that was released or never existed.
var ErrRevoked = errors.New("preview handle revoked")

// Handle identifies one live preview.
type Handle string

// URL returns the path the web surface serves the preview under.
func (h Handle) URL() string {
	if h == "" {
		return ""
	}
	return "/preview/" + string(h)
}

// Entry is the content a handle points at.
type Entry struct {
	Data     []byte
	MIMEType string
	Name     string
}

// Registry owns every live handle. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle]Entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]Entry)}
}

// Create allocates a new handle for data.
func (r *Registry) Create(data []byte, mimeType, name string) Handle {
	h := Handle(uuid.NewString())

	r.mu.Lock()
	r.entries[h] = Entry{Data: data, MIMEType: mimeType, Name: name}
	r.mu.Unlock()

	return h
}

// Revoke releases h. Revoking an empty or already released handle is a no-op.
func (r *Registry) Revoke(h Handle) {
	if h == "" {
		return
	}
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
}

// Lookup returns the entry behind h.
func (r *Registry) Lookup(h Handle) (Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrRevoked, h)
	}
	return e, nil
}

// Live returns the number of handles not yet revoked.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
