package chatroom

import (
	"bytes"
	"errors"

	"github.com/ephemeral/chatroom/internal/chaterr"
)

// readBufSize matches MaxMsgSize: spec.md §4.3 step 2 sizes the read
// buffer at MAX_MSG_SIZE exactly (Go's slices need no null-terminator
// slack the way the original's C buffer did).
const readBufSize = MaxMsgSize

// runReader is the Client Reader task: spec.md §4.3's per-connection loop
// that turns a raw byte stream into newline-delimited lines and hands each
// one to the room as a Broadcast item. One instance runs per Client, for
// the Client's entire membership.
func (rm *Room) runReader(c *Client) {
	// Spec.md §4.3 step 1: the reader's first action, before it ever
	// reads from the socket, is to announce the new member to the rest
	// of the room.
	_ = rm.BroadcastFrom(c, []byte(c.name+" has joined"), false)

	buf := make([]byte, readBufSize)
	leftover := 0

	for {
		n, err := c.conn.Read(buf[leftover:])
		if n > 0 {
			end := leftover + n
			consumed := 0

			for {
				idx := bytes.IndexByte(buf[consumed:end], '\n')
				if idx < 0 {
					break
				}
				line := buf[consumed : consumed+idx]
				line = bytes.TrimSuffix(line, []byte("\r"))
				consumed += idx + 1

				if !c.Active() {
					return
				}
				if broadcastErr := rm.BroadcastFrom(c, line, true); broadcastErr != nil {
					rm.rejectAndClose(c, broadcastErr)
					return
				}
			}

			remaining := end - consumed
			copy(buf, buf[consumed:end])
			leftover = remaining

			if leftover == len(buf) {
				// No newline anywhere in a full buffer: the line itself
				// exceeds what any legal message could carry.
				rm.rejectAndClose(c, chaterr.New(chaterr.ProtocolViolation, errLineTooLong))
				return
			}
		}

		if err != nil {
			if !c.Active() {
				return
			}
			// Spec.md §4.3 step 3: EOF or any other read error marks the
			// client inactive and submits the same ERROR\n Error item as
			// a detected protocol violation. The write will typically
			// fail silently against an already-gone peer; what matters
			// is the Error item's guaranteed cancel-and-detach.
			rm.rejectAndClose(c, chaterr.New(chaterr.PeerGone, err))
			return
		}
	}
}

// rejectAndClose queues a terminal ERROR\n for c, after which the room's
// fan-out worker cancels and detaches it (processError): a protocol
// violation (oversize line, a message BroadcastFrom rejects) or the
// client's socket going away either way end the reader the same way.
func (rm *Room) rejectAndClose(c *Client, cause error) {
	if c.Active() {
		_ = rm.ErrorTo(c, errorWire)
	}
	var ce *chaterr.Error
	if errors.As(cause, &ce) && ce.Kind == chaterr.ProtocolViolation {
		rm.metrics.ProtocolViolation()
	}
}

type lineTooLongErr struct{}

func (lineTooLongErr) Error() string { return "chatroom: line exceeds MAX_MSG_SIZE with no terminator" }

var errLineTooLong = lineTooLongErr{}
