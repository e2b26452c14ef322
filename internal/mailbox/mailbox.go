// Package mailbox implements the bounded SendBuffer described in
// spec.md §4.1: a fixed-capacity, FIFO, single-consumer mailbox of
// outbound items that multiple producers may enqueue into concurrently.
//
// A buffered channel already gives the required semantics natively: a
// bounded slot count, blocking enqueue when full (the system's sole
// backpressure mechanism), blocking dequeue when empty, and FIFO
// ordering across concurrent senders. This generalizes the teacher's
// untyped per-client `chan []byte` into a typed queue of SendItem.
package mailbox

import (
	"sync/atomic"

	"github.com/ephemeral/chatroom/internal/chaterr"
)

// Capacity is the fixed number of slots in every SendBuffer, per spec.
const Capacity = 32

// Target identifies the recipient of an Error item.
type Target interface {
	// Detach removes the target from its owning room's membership, if
	// still present. Detach is idempotent.
	Detach()
	// Active reports whether the target is still a live member.
	Active() bool
	// Write attempts delivery of payload to the target, returning an
	// error on any write failure.
	Write(payload []byte) error
	// Cancel unblocks the target's reader at its next suspension point.
	Cancel()
}

// Item is a tagged union of the two SendItem variants from spec.md §3.
type Item struct {
	// Broadcast is true for a Broadcast item, false for an Error item.
	Broadcast bool
	// Payload is the wire bytes to deliver.
	Payload []byte
	// Target is set only for Error items: the sole recipient.
	Target Target
	// Peer is true for a Broadcast item carrying an actual line a member
	// sent, false for a synthetic join/leave notice. Used only to keep
	// throughput metrics scoped to real chat traffic.
	Peer bool
}

// SendBuffer is a fixed-capacity ring of Items: multiple producers may
// enqueue concurrently, a single consumer dequeues.
type SendBuffer struct {
	ch     chan Item
	closed atomic.Bool
}

// New allocates a SendBuffer at the fixed spec capacity.
func New() *SendBuffer {
	return &SendBuffer{ch: make(chan Item, Capacity)}
}

// Enqueue blocks until a free slot is available, then claims it. Multiple
// concurrent producers are serialized by the channel itself; each
// successful call occupies exactly one slot.
//
// A producer may still be blocked here the instant the room's fan-out
// worker decides membership is empty and calls Close: checking closed
// first narrows but doesn't eliminate that window, so the send itself is
// guarded by recover to turn the rare send-on-closed-channel panic into
// an ordinary InternalFault.
func (b *SendBuffer) Enqueue(item Item) (err error) {
	if b.closed.Load() {
		return chaterr.New(chaterr.InternalFault, errClosed)
	}
	defer func() {
		if recover() != nil {
			err = chaterr.New(chaterr.InternalFault, errClosed)
		}
	}()
	b.ch <- item
	return nil
}

// TryEnqueue attempts a non-blocking enqueue, reporting false if the
// buffer is currently full. Not used on the hot path (spec.md §4.1
// requires producers to block), but kept for teardown paths that must
// never block on a room already being drained.
func (b *SendBuffer) TryEnqueue(item Item) (ok bool) {
	if b.closed.Load() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case b.ch <- item:
		return true
	default:
		return false
	}
}

// Dequeue blocks until at least one item is present, then returns it.
// Only the owning room's fan-out worker may call Dequeue.
func (b *SendBuffer) Dequeue() (Item, error) {
	item, ok := <-b.ch
	if !ok {
		return Item{}, chaterr.New(chaterr.InternalFault, errClosed)
	}
	return item, nil
}

// Close releases the buffer. Idempotent: a room may be closed both by
// Abort (never gained a member) and by its own teardown, and only the
// first call may actually close the channel.
func (b *SendBuffer) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.ch)
}

var errClosed = sendBufferClosed{}

type sendBufferClosed struct{}

func (sendBufferClosed) Error() string { return "mailbox: send buffer closed" }
