package portal

import (
	"context"
	"sync"

	"roadside-portal/internal/feed"
)

// Registry keeps one live session per technician
type Registry struct {
	ctx        context.Context
	backend    Backend
	subscriber feed.Subscriber

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry is a session slot. ready closes once Start has returned.
type entry struct {
	ready   chan struct{}
	session *Session
	err     error
}

// NewRegistry creates a registry. Session subscriptions end when ctx is done.
func NewRegistry(ctx context.Context, backend Backend, subscriber feed.Subscriber) *Registry {
	return &Registry{
		ctx:        ctx,
		backend:    backend,
		subscriber: subscriber,
		sessions:   make(map[string]*entry),
	}
}

// Get returns the technician's session, starting one on first use.
// Concurrent first calls for one technician share a single start; other technicians are not blocked by it.
func (r *Registry) Get(technicianID string) (*Session, error) {
	r.mu.Lock()
	if e, ok := r.sessions[technicianID]; ok {
		r.mu.Unlock()
		<-e.ready
		return e.session, e.err
	}
	e := &entry{ready: make(chan struct{})}
	r.sessions[technicianID] = e
	r.mu.Unlock()

	s := NewSession(technicianID, r.backend, r.subscriber)
	err := s.Start(r.ctx)

	r.mu.Lock()
	if err != nil {
		s.Close()
		e.err = err
		if r.sessions[technicianID] == e {
			delete(r.sessions, technicianID)
		}
	} else {
		e.session = s
	}
	r.mu.Unlock()
	close(e.ready)

	return e.session, e.err
}

// Lookup returns the technician's session without starting one
func (r *Registry) Lookup(technicianID string) (*Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[technicianID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case <-e.ready:
		return e.session, e.session != nil
	default:
		return nil, false
	}
}

// Close ends the technician's session, if any. A session still starting is closed once its start returns.
func (r *Registry) Close(technicianID string) bool {
	r.mu.Lock()
	e, ok := r.sessions[technicianID]
	delete(r.sessions, technicianID)
	r.mu.Unlock()

	if ok {
		e.close()
	}
	return ok
}

// CloseAll ends every session
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.close()
	}
}

// Len returns the number of live or starting sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (e *entry) close() {
	<-e.ready
	if e.session != nil {
		e.session.Close()
	}
}
