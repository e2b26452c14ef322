// Package chatroom implements the core of the chat server: the per-room
// fan-out worker over a bounded SendBuffer mailbox, the membership list,
// the client reader's line-framing, and the process-wide room registry.
package chatroom

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/ephemeral/chatroom/internal/chaterr"
	"github.com/ephemeral/chatroom/internal/identifier"
	"github.com/ephemeral/chatroom/internal/logx"
	"github.com/ephemeral/chatroom/internal/mailbox"
)

// MaxMsgSize bounds any single wire message, including name prefix and
// trailing newline.
const MaxMsgSize = 20000

var errorWire = []byte("ERROR\n")

type roomState int32

const (
	stateRunning roomState = iota
	stateDraining
	stateTerminated
)

// Room owns its SendBuffer and its Clients. Only the Registry constructs
// a Room (via Registry.GetOrCreate), and only the Room's own fan-out
// worker goroutine tears it down.
type Room struct {
	name     string
	buf      *mailbox.SendBuffer
	registry *Registry
	metrics  Recorder

	mu      sync.Mutex
	members []*Client

	state atomic.Int32
}

func newRoom(name string, reg *Registry, metrics Recorder) *Room {
	rm := &Room{
		name:     name,
		buf:      mailbox.New(),
		registry: reg,
		metrics:  metrics,
	}
	rm.state.Store(int32(stateRunning))
	return rm
}

// Name returns the room's Identifier.
func (rm *Room) Name() string { return rm.name }

func (rm *Room) isRunning() bool {
	return roomState(rm.state.Load()) == stateRunning
}

// start launches the fan-out worker. Called exactly once, by the
// Registry, immediately after a Room is constructed.
func (rm *Room) start() {
	go rm.run()
}

// AddMember validates client_name, atomically appends a new Client to the
// membership list, and spawns its reader task. Spec.md §4.2.
func (rm *Room) AddMember(clientName string, conn net.Conn) (*Client, error) {
	if err := identifier.Validate([]byte(clientName)); err != nil {
		return nil, chaterr.New(chaterr.ProtocolViolation, err)
	}

	rm.mu.Lock()
	if roomState(rm.state.Load()) != stateRunning {
		rm.mu.Unlock()
		return nil, chaterr.New(chaterr.InternalFault, errRoomNotRunning)
	}
	c := newClient(clientName, conn, rm)
	rm.members = append(rm.members, c)
	rm.mu.Unlock()

	go rm.runReader(c)
	return c, nil
}

// Abort tears the room down immediately, but only if it never gained a
// member. Used by the connection handler when the first AddMember call
// on a freshly created room fails: with no member ever added, no reader
// will ever enqueue an item, so the fan-out worker would otherwise block
// on Dequeue forever and the room would leak.
func (rm *Room) Abort() {
	rm.mu.Lock()
	if len(rm.members) != 0 {
		rm.mu.Unlock()
		return
	}
	rm.state.Store(int32(stateDraining))
	rm.mu.Unlock()
	rm.buf.Close()
}

// BroadcastFrom enqueues a Broadcast item. When includeNamePrefix is true
// the wire form is "<name>:<payload>"; otherwise payload is sent
// verbatim. A trailing '\n' is appended if payload doesn't already end
// in one.
func (rm *Room) BroadcastFrom(c *Client, payload []byte, includeNamePrefix bool) error {
	wire := buildWire(c.name, payload, includeNamePrefix)
	if len(wire) > MaxMsgSize {
		return chaterr.New(chaterr.ProtocolViolation, errMessageTooLarge)
	}
	return rm.buf.Enqueue(mailbox.Item{Broadcast: true, Payload: wire, Peer: includeNamePrefix})
}

func buildWire(name string, payload []byte, includeNamePrefix bool) []byte {
	var wire []byte
	if includeNamePrefix {
		wire = make([]byte, 0, len(name)+1+len(payload)+1)
		wire = append(wire, name...)
		wire = append(wire, ':')
		wire = append(wire, payload...)
	} else {
		wire = make([]byte, 0, len(payload)+1)
		wire = append(wire, payload...)
	}
	if len(wire) == 0 || wire[len(wire)-1] != '\n' {
		wire = append(wire, '\n')
	}
	return wire
}

// ErrorTo enqueues an Error item targeting c with the literal ERROR\n
// response to a protocol violation.
func (rm *Room) ErrorTo(c *Client, payload []byte) error {
	return rm.buf.Enqueue(mailbox.Item{Target: c, Payload: payload})
}

// run is the fan-out worker: it drains the SendBuffer until membership is
// empty, then tears the room down. Spec.md §4.2.
func (rm *Room) run() {
	for {
		item, err := rm.buf.Dequeue()
		if err != nil {
			logx.Error(err, "room send buffer closed", "room", rm.name)
			break
		}
		if item.Target != nil {
			rm.processError(item.Target, item.Payload)
		} else {
			rm.processBroadcast(item.Payload)
			if item.Peer {
				rm.metrics.MessageFannedOut()
			}
		}
		if rm.isEmpty() {
			break
		}
	}
	rm.teardown()
}

// processError delivers an Error item. Per spec.md §3, the target is
// removed from the room after the delivery attempt regardless of whether
// the write succeeded — this mirrors the wire protocol's own contract
// (spec.md §6: the literal ERROR\n is followed by the server closing the
// connection), so a successful write still ends in the same cancel and
// detach as a failed one.
func (rm *Room) processError(t mailbox.Target, payload []byte) {
	if t.Active() {
		_ = t.Write(payload)
	}
	t.Cancel()
	t.Detach()
}

// processBroadcast delivers a Broadcast item to every active member, in
// insertion order, holding the membership lock for the whole pass per
// spec.md §4.2's stated tradeoff (joins queued during a broadcast proceed
// once it completes).
func (rm *Room) processBroadcast(payload []byte) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	i := 0
	for i < len(rm.members) {
		c := rm.members[i]
		if !c.Active() {
			rm.detachLocked(c)
			continue
		}
		if err := c.Write(payload); err != nil {
			c.Cancel()
			rm.detachLocked(c)
			continue
		}
		i++
	}
}

func (rm *Room) isEmpty() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members) == 0
}

// detach removes c from membership if present; idempotent.
func (rm *Room) detach(c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.detachLocked(c)
}

// detachLocked assumes rm.mu is already held by the caller (the broadcast
// fan-out pass holds it across the whole membership scan).
func (rm *Room) detachLocked(c *Client) {
	idx := -1
	for i, m := range rm.members {
		if m == c {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	c.active.Store(false)

	if len(rm.members) == 0 {
		rm.state.Store(int32(stateDraining))
	} else {
		// Best-effort: if the mailbox is momentarily saturated, the
		// fan-out worker (its sole consumer) is the one calling
		// detach, so a blocking Enqueue here would deadlock against
		// itself. Dropping a "has left" under that pressure still
		// satisfies "at most one has-left per leave" (spec.md §8.3).
		wire := []byte(c.name + " has left\n")
		rm.buf.TryEnqueue(mailbox.Item{Broadcast: true, Payload: wire})
	}
	rm.metrics.PeerGoneDetach()
}

// teardown finalizes the room: Terminated state, SendBuffer released,
// deregistered. Called exactly once, from the fan-out worker goroutine.
func (rm *Room) teardown() {
	rm.state.Store(int32(stateTerminated))
	rm.buf.Close()
	rm.registry.remove(rm)
	rm.metrics.RoomDestroyed()
	logx.Info("room destroyed", "room", rm.name)
}

type roomNotRunningErr struct{}

func (roomNotRunningErr) Error() string { return "chatroom: room is not running" }

type messageTooLargeErr struct{}

func (messageTooLargeErr) Error() string { return "chatroom: message exceeds MAX_MSG_SIZE" }

var (
	errRoomNotRunning  = roomNotRunningErr{}
	errMessageTooLarge = messageTooLargeErr{}
)
