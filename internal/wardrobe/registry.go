package wardrobe

import (
	"log/slog"
	"sync"

	"github.com/erazemk/omara/internal/auth"
)

// Registry keeps one Closet per signed-in owner.
type Registry struct {
	svc *Service
	log *slog.Logger

	mu      sync.Mutex
	closets map[string]*Closet
}

// NewRegistry returns an empty Registry.
func NewRegistry(svc *Service) *Registry {
	return &Registry{svc: svc, log: svc.logger(), closets: make(map[string]*Closet)}
}

// Get returns the owner's Closet, creating it on first use.
func (r *Registry) Get(ownerID string) *Closet {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.closets[ownerID]
	if !ok {
		c = NewCloset(r.svc, ownerID)
		r.closets[ownerID] = c
	}
	return c
}

// Drop closes and forgets the owner's Closet.
func (r *Registry) Drop(ownerID string) {
	r.mu.Lock()
	c, ok := r.closets[ownerID]
	delete(r.closets, ownerID)
	r.mu.Unlock()

	if ok {
		c.Close()
		r.log.Info("closet dropped", "owner", ownerID)
	}
}

// Len returns the number of open closets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closets)
}

// Close closes every Closet.
func (r *Registry) Close() {
	r.mu.Lock()
	closets := r.closets
	r.closets = make(map[string]*Closet)
	r.mu.Unlock()

	for _, c := range closets {
		c.Close()
	}
}

// HandleAuthEvent drops the owner's Closet when they sign out. It has the
// shape of an auth.Listener.
func (r *Registry) HandleAuthEvent(e auth.Event, s *auth.Session) {
	if e != auth.SignedOut || s == nil || s.User == nil {
		return
	}
	r.Drop(s.User.ID)
}
