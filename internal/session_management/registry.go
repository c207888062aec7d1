package session_management

import "sort"

// RoomRegistry maps room IDs to the set of usernames currently present.
// A room exists iff its member set is non-empty; removing the last member
// deletes the room entry.
//
// The registry is not safe for concurrent use on its own. Callers hold the
// SessionManager mutex around every operation.
type RoomRegistry struct {
	rooms map[string]map[string]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]map[string]struct{})}
}

func (r *RoomRegistry) AddMember(roomID, username string) {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[username] = struct{}{}
}

func (r *RoomRegistry) RemoveMember(roomID, username string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, username)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *RoomRegistry) Exists(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Members returns the usernames in a room, sorted for stable roster output.
func (r *RoomRegistry) Members(roomID string) []string {
	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for name := range members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *RoomRegistry) RoomCount() int {
	return len(r.rooms)
}
