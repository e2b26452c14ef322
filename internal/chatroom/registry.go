package chatroom

import (
	"sync"

	"github.com/ephemeral/chatroom/internal/identifier"
	"github.com/ephemeral/chatroom/internal/logx"
)

// Registry is the process-wide map of live room_name -> Room. A room is
// created lazily by whichever connection handler first asks for it, and
// removed by its own fan-out worker once its membership reaches zero
// (spec.md §4.4, §9: "a room is pruned lazily, not proactively").
type Registry struct {
	metrics Recorder

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry returns an empty Registry. metrics may be nil, in which case
// lifecycle events are discarded.
func NewRegistry(metrics Recorder) *Registry {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Registry{
		metrics: metrics,
		rooms:   make(map[string]*Room),
	}
}

// GetOrCreate validates room_name, then returns the existing Room for that
// name or atomically creates, starts, and registers a new one. The
// returned bool reports whether a new Room was created.
func (reg *Registry) GetOrCreate(name string) (*Room, bool, error) {
	if err := identifier.Validate([]byte(name)); err != nil {
		return nil, false, err
	}

	reg.mu.Lock()
	if rm, ok := reg.rooms[name]; ok && rm.isRunning() {
		reg.mu.Unlock()
		return rm, false, nil
	}
	// A map entry whose Room has already left Running (Draining or
	// Terminated) is a room pruned lazily rather than proactively: its
	// own fan-out worker hasn't called remove yet, but nothing further
	// may join it, so a lookup finding one replaces it in place.
	rm := newRoom(name, reg, reg.metrics)
	reg.rooms[name] = rm
	reg.mu.Unlock()

	rm.start()
	reg.metrics.RoomCreated()
	logx.Info("room created", "room", name)
	return rm, true, nil
}

// remove deregisters rm. Called exactly once, by rm's own fan-out worker
// during teardown. A room found Terminated by a concurrent GetOrCreate
// lookup before this runs is replaced transparently: the stale entry is
// simply overwritten the next time a room by that name is created, since
// remove only deletes the map entry if it still points at rm.
func (reg *Registry) remove(rm *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[rm.name] == rm {
		delete(reg.rooms, rm.name)
	}
}

// Len reports the number of currently live rooms. Test helper.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
