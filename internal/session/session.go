// Package session tracks which documents are open for editing.
//
// A Manager is owned by its caller and keyed by entity kind and id, so any
// number of documents can be open at once. Workspace keeps the mirror
// files those sessions point at.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/atlasmcp/internal/mirror"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Session is one open document.
type Session struct {
	ID       string      `json:"id"`
	Kind     mirror.Kind `json:"kind"`
	EntityID string      `json:"entity_id"`
	Path     string      `json:"path,omitempty"`
	// Version is the page version the mirror was last written from.
	Version  int       `json:"version,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
	SavedAt  time.Time `json:"saved_at,omitempty"`
}

// Key identifies the entity a session belongs to.
func (s Session) Key() string {
	return key(s.Kind, s.EntityID)
}

func key(kind mirror.Kind, id string) string {
	return string(kind) + "/" + id
}

// Manager is a concurrency-safe registry of open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open registers a session for kind/id, or refreshes the existing one.
// Re-opening keeps the session ID and resets the saved time.
func (m *Manager) Open(kind mirror.Kind, id, path string, version int) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(kind, id)
	if s, ok := m.sessions[k]; ok {
		s.Path = path
		s.Version = version
		s.OpenedAt = timeNow().UTC()
		s.SavedAt = time.Time{}
		return *s
	}
	s := &Session{
		ID:       uuid.NewString(),
		Kind:     kind,
		EntityID: id,
		Path:     path,
		Version:  version,
		OpenedAt: timeNow().UTC(),
	}
	m.sessions[k] = s
	return *s
}

// Get returns the session for kind/id.
func (m *Manager) Get(kind mirror.Kind, id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key(kind, id)]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// MarkSaved records a successful save of kind/id at version.
func (m *Manager) MarkSaved(kind mirror.Kind, id string, version int) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(kind, id)]
	if !ok {
		return Session{}, false
	}
	s.Version = version
	s.SavedAt = timeNow().UTC()
	return *s, true
}

// Close forgets the session for kind/id. It reports whether one existed.
func (m *Manager) Close(kind mirror.Kind, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(kind, id)
	if _, ok := m.sessions[k]; !ok {
		return false
	}
	delete(m.sessions, k)
	return true
}

// List returns all sessions ordered by kind, then entity id.
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
