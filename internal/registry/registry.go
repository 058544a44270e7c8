package registry

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/maps"
)

// Member is a participant handle. The registry only looks members up for
// delivery; closing them is up to their owner.
type Member interface {
	ID() string
	Send(frame []byte) error
	Close()
}

type Registry struct {
	rooms  map[string]map[string]Member
	mu     sync.RWMutex
	logger *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Member),
		logger: logger,
	}
}

// Join adds m to the room, creating the room on first join. Joining again with
// the same member id replaces the stored handle. Returns the member count.
func (r *Registry) Join(roomID string, m Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Member)
		r.rooms[roomID] = members
		r.logger.Debug("room created", "room_id", roomID)
	}
	members[m.ID()] = m
	count := len(members)

	r.logger.Debug("member joined", "room_id", roomID, "member_id", m.ID(), "members", count)
	return count
}

// Leave removes m if it is the handle registered under its id. Leaving a room
// twice, or a room never joined, is a no-op. Returns the remaining count.
func (r *Registry) Leave(roomID string, m Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}

	if current, ok := members[m.ID()]; !ok || current != m {
		return len(members)
	}

	delete(members, m.ID())
	count := len(members)
	r.logger.Debug("member left", "room_id", roomID, "member_id", m.ID(), "members", count)

	if count == 0 {
		delete(r.rooms, roomID)
		r.logger.Debug("room removed", "room_id", roomID)
	}

	return count
}

// MembersOf returns a snapshot; it is safe to send to members without holding the lock.
func (r *Registry) MembersOf(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	return maps.Values(members)
}

func (r *Registry) Len(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

func (r *Registry) Stats() (rooms, members int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms = len(r.rooms)
	for _, m := range r.rooms {
		members += len(m)
	}

	return rooms, members
}
