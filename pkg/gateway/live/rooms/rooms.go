// Package rooms tracks which WebSocket connections are watching each
// interview session and fans server events out to them.
//
// Each session token maps to one room. A room carries the session's cached
// status alongside its member set; the cache is authoritative only for
// fast-path checks and is always rebuilt from the store on join. Broadcasts
// are FIFO per room for any single caller: the room lock is held across
// membership snapshot and enqueue, so two broadcasts from one goroutine
// cannot reorder. A member whose outbound queue is full misses that frame;
// nobody else is affected.
package rooms

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hirewire/interview-gateway/pkg/interview"
)

type room struct {
	mu            sync.Mutex
	members       map[*Client]struct{}
	status        interview.Status
	candidateName string
}

// Registry is the in-memory session room table. A client belongs to at
// most one room at a time; joining a new room leaves the previous one.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	byClient map[*Client]string
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		byClient: make(map[*Client]string),
		logger:   logger,
	}
}

func (r *Registry) get(sessionID string) *room {
	r.mu.RLock()
	rm := r.rooms[sessionID]
	r.mu.RUnlock()
	return rm
}

// Join adds c to the session's room and refreshes the cached session state.
// If c is currently in a different room it leaves that room first; joining
// the same room twice is a no-op for membership.
func (r *Registry) Join(sessionID string, c *Client, status interview.Status, candidateName string) {
	r.mu.Lock()
	if prev, ok := r.byClient[c]; ok && prev != sessionID {
		if pm := r.rooms[prev]; pm != nil {
			pm.mu.Lock()
			delete(pm.members, c)
			pm.mu.Unlock()
		}
	}
	rm := r.rooms[sessionID]
	if rm == nil {
		rm = &room{members: make(map[*Client]struct{})}
		r.rooms[sessionID] = rm
	}
	r.byClient[c] = sessionID
	r.mu.Unlock()

	rm.mu.Lock()
	rm.members[c] = struct{}{}
	rm.status = status
	rm.candidateName = candidateName
	rm.mu.Unlock()
}

// Leave removes c from the session's room. Unknown rooms and non-members
// are ignored.
func (r *Registry) Leave(sessionID string, c *Client) {
	r.mu.Lock()
	rm := r.rooms[sessionID]
	if r.byClient[c] == sessionID {
		delete(r.byClient, c)
	}
	r.mu.Unlock()
	if rm == nil {
		return
	}
	rm.mu.Lock()
	delete(rm.members, c)
	rm.mu.Unlock()
}

// Remove drops the whole room. Called when a session reaches a terminal
// status; remaining members keep their connections but stop receiving
// room events.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	rm := r.rooms[sessionID]
	delete(r.rooms, sessionID)
	if rm != nil {
		rm.mu.Lock()
		for c := range rm.members {
			if r.byClient[c] == sessionID {
				delete(r.byClient, c)
			}
		}
		rm.mu.Unlock()
	}
	r.mu.Unlock()
}

// MemberCount reports the room's current size, 0 for unknown rooms.
func (r *Registry) MemberCount(sessionID string) int {
	rm := r.get(sessionID)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Status returns the cached status for a live room.
func (r *Registry) Status(sessionID string) (interview.Status, bool) {
	rm := r.get(sessionID)
	if rm == nil {
		return "", false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.status, true
}

// SetStatus updates the cached status only. The caller is responsible for
// having committed the transition to the store first.
func (r *Registry) SetStatus(sessionID string, status interview.Status) {
	rm := r.get(sessionID)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	rm.status = status
	rm.mu.Unlock()
}

// Broadcast marshals msg once and queues it to every current member of the
// session's room. Membership is resolved at call time; a full member queue
// drops the frame for that member only.
func (r *Registry) Broadcast(sessionID string, msg any) {
	rm := r.get(sessionID)
	if rm == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("broadcast marshal failed", "session_id", sessionID, "error", err)
		}
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for c := range rm.members {
		if err := c.Enqueue(data); err != nil && r.logger != nil {
			r.logger.Warn("dropping frame for slow client",
				"session_id", sessionID, "client_id", c.ID())
		}
	}
}
