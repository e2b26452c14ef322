package chatroom

import (
	"net"
	"sync/atomic"
)

// Client is a member of a Room: a name, its socket, an active flag, and a
// non-owning back-reference to its Room used only by Detach. Clients are
// stored as *Client entries in the Room's membership slice; a broadcast
// pass addresses them directly during iteration, while an Error item's
// target is detached through this back-reference.
type Client struct {
	name   string
	conn   net.Conn
	room   *Room
	active atomic.Bool
}

func newClient(name string, conn net.Conn, room *Room) *Client {
	c := &Client{name: name, conn: conn, room: room}
	c.active.Store(true)
	return c
}

// Name returns the client's Identifier.
func (c *Client) Name() string { return c.name }

// Active reports whether the client is still a live member.
func (c *Client) Active() bool { return c.active.Load() }

// Write attempts delivery of payload over the client's socket.
func (c *Client) Write(payload []byte) error {
	_, err := c.conn.Write(payload)
	return err
}

// Cancel unblocks the client's reader at its next suspension point by
// closing the underlying socket. This is the cooperative-cancellation
// mechanism from spec.md §9: setting active false and closing the socket
// causes the reader's next Read to observe closure rather than being
// asynchronously interrupted mid-stack.
func (c *Client) Cancel() {
	c.active.Store(false)
	c.conn.Close()
}

// Detach asks the owning Room to remove this client from membership.
// Idempotent: detaching an already-detached client is a no-op.
func (c *Client) Detach() {
	c.room.detach(c)
}
