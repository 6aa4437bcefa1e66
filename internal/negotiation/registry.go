package negotiation

import (
	"fmt"
	"sync"
)

// Registry routes pair and player identifiers to their session and tracks
// each player's transport handle. It holds non-owning references: sessions
// own their own state.
type Registry struct {
	mu       sync.RWMutex
	byPair   map[string]*Session
	byPlayer map[string]*Session
	handles  map[string]Handle
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byPair:   make(map[string]*Session),
		byPlayer: make(map[string]*Session),
		handles:  make(map[string]Handle),
	}
}

// Register indexes a session under its pair id and both player ids and
// records the players' current handles.
func (r *Registry) Register(sess *Session, handleA, handleB Handle) {
	playerA, playerB := sess.PlayerIDs()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byPair[sess.PairID()] = sess
	r.byPlayer[playerA] = sess
	r.byPlayer[playerB] = sess
	r.handles[playerA] = handleA
	r.handles[playerB] = handleB
}

// LookupByPair returns the session for a pair identifier.
func (r *Registry) LookupByPair(pairID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.byPair[pairID]
	if !ok {
		return nil, fmt.Errorf("pair %s: %w", pairID, ErrNotFound)
	}
	return sess, nil
}

// LookupByPlayer returns the session a player belongs to.
func (r *Registry) LookupByPlayer(playerID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.byPlayer[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return sess, nil
}

// Rebind replaces the stored connection handle for a player inside an active
// session. Game state is untouched; rebinding against a terminal session
// fails with ErrGameEnded (the caller shows the terminal result instead).
func (r *Registry) Rebind(playerID string, h Handle) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byPlayer[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	if sess.Status().Terminal() {
		return sess, fmt.Errorf("pair %s: %w", sess.PairID(), ErrGameEnded)
	}

	r.handles[playerID] = h
	return sess, nil
}

// ClearHandle drops a player's connection handle without touching the
// session, leaving it open for a later Rebind.
func (r *Registry) ClearHandle(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[playerID]; ok {
		r.handles[playerID] = nil
	}
}

// HandleOf returns the player's current handle. The handle is nil while the
// player is disconnected.
func (r *Registry) HandleOf(playerID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[playerID]
	return h, ok
}

// Sessions returns all registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byPair))
	for _, sess := range r.byPair {
		sessions = append(sessions, sess)
	}
	return sessions
}
