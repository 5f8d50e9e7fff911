package core

import "sync"

// Outbox is the per-connection outbound delivery primitive. Implementations
// must be safe for concurrent use and must silently drop messages enqueued
// after the connection is gone.
type Outbox interface {
	Enqueue(kind string, payload any)
}

// PlayerSession is the single routing target for all server-to-client
// messages addressed to one connected player. The Room/Match/Chat references
// are non-owning mirrors updated by the registries; they are only touched
// from the session's own request goroutine or under the owning entity's lock.
type PlayerSession struct {
	Player *Player
	Room   *Room
	Match  *MatchManager
	Chat   ChatAddress

	outbox Outbox
}

// NewSession wraps a resolved profile and its connection outbox.
func NewSession(p *Player, out Outbox) *PlayerSession {
	return &PlayerSession{Player: p, outbox: out}
}

// Enqueue puts one message on the session's outbound queue.
func (s *PlayerSession) Enqueue(kind string, payload any) {
	s.outbox.Enqueue(kind, payload)
}

// Envelope is one outbound message addressed to a snapshot of recipients.
// Registries build envelopes while holding the relevant entity lock; the
// dispatcher performs the actual enqueue afterwards, so a recipient that
// disconnected in between is skipped by its dead outbox rather than
// re-validated.
type Envelope struct {
	Kind    string
	Payload any
	To      []*PlayerSession
}

// Deliver enqueues every envelope onto every addressed session, in order.
func Deliver(envs []Envelope) {
	for _, env := range envs {
		for _, s := range env.To {
			s.Enqueue(env.Kind, env.Payload)
		}
	}
}

// SessionRegistry owns the live sessions keyed by player id. All check and
// insert steps run under one mutex so two concurrent connection attempts
// cannot double-register an identity.
type SessionRegistry struct {
	mu       sync.Mutex
	capacity int
	sessions map[int64]*PlayerSession
}

// NewSessionRegistry builds a registry capped at the given session count.
func NewSessionRegistry(capacity int) *SessionRegistry {
	return &SessionRegistry{
		capacity: capacity,
		sessions: make(map[int64]*PlayerSession),
	}
}

// Register stores a session for the player, rejecting when the server is at
// capacity or the identity is already connected.
func (r *SessionRegistry) Register(p *Player, out Outbox) (*PlayerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions)+1 > r.capacity {
		return nil, ErrServerFull
	}
	if _, exists := r.sessions[p.ID]; exists {
		return nil, ErrAlreadyConnected
	}

	s := NewSession(p, out)
	r.sessions[p.ID] = s
	return s, nil
}

// Unregister removes the session. Callers must have already detached the
// player from any room, channel, and match to avoid dangling broadcast
// targets.
func (r *SessionRegistry) Unregister(playerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
}

// Lookup resolves a player id to its live session.
func (r *SessionRegistry) Lookup(playerID int64) (*PlayerSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[playerID]
	return s, ok
}

// Count reports the number of connected sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
