// Package sessions tracks active interview sessions. The registry is the
// only cross-session shared state in the gateway and is the synchronization
// boundary for concurrent creation, lookup, and teardown.
package sessions

import (
	"errors"
	"sync"

	"github.com/viva-labs/viva/pkg/core/bank"
	"github.com/viva-labs/viva/pkg/core/interview"
	"github.com/viva-labs/viva/pkg/core/session"
)

// ErrSessionNotFound is returned for lookups of unknown or removed sessions.
var ErrSessionNotFound = errors.New("sessions: session not found")

// Interview bundles everything one session owns: its lifecycle clock and
// record, dialogue policy, and question picker. TurnMu serializes turns so
// one utterance is fully processed before the next starts, even if two
// connections address the same session id.
type Interview struct {
	Lifecycle  *session.Session
	Policy     *interview.Policy
	Picker     *bank.Picker
	Topics     []string
	Difficulty int

	TurnMu sync.Mutex
}

// Registry is a mutex-guarded id-to-session table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Interview
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Interview)}
}

// Add registers a session under its lifecycle id.
func (r *Registry) Add(iv *Interview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[iv.Lifecycle.ID()] = iv
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Interview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iv, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return iv, nil
}

// Remove deletes a session from the registry. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
