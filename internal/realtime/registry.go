package realtime

import (
	"sync"
)

// Registry tracks live connections by room. It is the only mutable state
// shared across connection goroutines; every method holds the registry
// lock for map access only, never across I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[Room][]*Conn
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[Room][]*Conn),
	}
}

// Join adds the connection to the room, creating the room entry if
// absent. Adding a connection already present is a no-op.
func (r *Registry) Join(room Room, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.rooms[room] {
		if c == conn {
			return
		}
	}
	r.rooms[room] = append(r.rooms[room], conn)
}

// Leave removes the connection from the room. The room entry is deleted
// when its last member leaves. Removing an absent connection is a no-op,
// so duplicate-close paths and broadcast self-healing may both call it.
func (r *Registry) Leave(room Room, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	for i, c := range members {
		if c == conn {
			r.rooms[room] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns a snapshot of the room's current members, safe to
// iterate while other goroutines join and leave.
func (r *Registry) Members(room Room) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	if len(members) == 0 {
		return nil
	}
	snapshot := make([]*Conn, len(members))
	copy(snapshot, members)
	return snapshot
}

// Count returns the number of members in a room
func (r *Registry) Count(room Room) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// RoomCount returns the number of rooms with at least one member
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
