package voicecall

import "sync"

// roomRegistry prevents two live sessions for the same room within this
// process. The agent side enforces the distributed variant; this is the
// client-local guard against double-join from racing UI actions.
type roomRegistry struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

var liveRooms = &roomRegistry{rooms: make(map[string]struct{})}

// acquire claims the room. Returns ErrRoomBusy if it is already claimed.
func (r *roomRegistry) acquire(room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room]; ok {
		return ErrRoomBusy
	}
	r.rooms[room] = struct{}{}
	return nil
}

// release frees the room. No-op if it was not claimed.
func (r *roomRegistry) release(room string) {
	r.mu.Lock()
	delete(r.rooms, room)
	r.mu.Unlock()
}
