package server

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/atomic"
)

// Presence is a participant's live, rendering session. Its current appearance
// is shared with whatever renders or reports it.
type Presence struct {
	SessionID uuid.UUID
	UserID    uuid.UUID

	appearance *atomic.Pointer[Appearance]
}

func NewPresence(sessionID, userID uuid.UUID, appearance *Appearance) *Presence {
	return &Presence{
		SessionID:  sessionID,
		UserID:     userID,
		appearance: atomic.NewPointer(appearance.Clone()),
	}
}

// CurrentAppearance returns a copy of the current appearance, or nil if none
// has been published.
func (p *Presence) CurrentAppearance() *Appearance {
	return p.appearance.Load().Clone()
}

// SetCurrentAppearance replaces the current appearance.
func (p *Presence) SetCurrentAppearance(appearance *Appearance) {
	p.appearance.Store(appearance.Clone())
}

// PresenceLookup finds the live presence of a session.
type PresenceLookup interface {
	GetPresence(sessionID uuid.UUID) (*Presence, bool)
}

var _ PresenceLookup = (*LocalPresenceRegistry)(nil)

// LocalPresenceRegistry tracks the presences on this node.
type LocalPresenceRegistry struct {
	sync.RWMutex
	bySession map[uuid.UUID]*Presence
	byUser    map[uuid.UUID]map[uuid.UUID]*Presence
}

func NewLocalPresenceRegistry() *LocalPresenceRegistry {
	return &LocalPresenceRegistry{
		bySession: make(map[uuid.UUID]*Presence),
		byUser:    make(map[uuid.UUID]map[uuid.UUID]*Presence),
	}
}

// Add registers a presence, replacing any presence with the same session ID.
func (r *LocalPresenceRegistry) Add(presence *Presence) {
	r.Lock()
	defer r.Unlock()
	if old, ok := r.bySession[presence.SessionID]; ok {
		r.removeLocked(old)
	}
	r.bySession[presence.SessionID] = presence
	sessions, ok := r.byUser[presence.UserID]
	if !ok {
		sessions = make(map[uuid.UUID]*Presence)
		r.byUser[presence.UserID] = sessions
	}
	sessions[presence.SessionID] = presence
}

func (r *LocalPresenceRegistry) GetPresence(sessionID uuid.UUID) (*Presence, bool) {
	r.RLock()
	defer r.RUnlock()
	p, ok := r.bySession[sessionID]
	return p, ok
}

func (r *LocalPresenceRegistry) Remove(sessionID uuid.UUID) (*Presence, bool) {
	r.Lock()
	defer r.Unlock()
	p, ok := r.bySession[sessionID]
	if !ok {
		return nil, false
	}
	r.removeLocked(p)
	return p, true
}

func (r *LocalPresenceRegistry) removeLocked(p *Presence) {
	delete(r.bySession, p.SessionID)
	if sessions, ok := r.byUser[p.UserID]; ok {
		delete(sessions, p.SessionID)
		if len(sessions) == 0 {
			delete(r.byUser, p.UserID)
		}
	}
}

func (r *LocalPresenceRegistry) ListByUser(userID uuid.UUID) []*Presence {
	r.RLock()
	defer r.RUnlock()
	sessions := r.byUser[userID]
	presences := make([]*Presence, 0, len(sessions))
	for _, p := range sessions {
		presences = append(presences, p)
	}
	return presences
}

func (r *LocalPresenceRegistry) Count() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.bySession)
}
