// Package server implements the TCP listener bootstrap and the
// Connection Handler: the JOIN handshake performed on each newly
// accepted socket before it is handed off to a Room as a Client.
package server

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ephemeral/chatroom/internal/chaterr"
	"github.com/ephemeral/chatroom/internal/chatroom"
	"github.com/ephemeral/chatroom/internal/identifier"
	"github.com/ephemeral/chatroom/internal/logx"
)

// joinTimeout is the receive deadline applied only to the JOIN handshake;
// spec.md §4.4 step 6 removes it before the reader loop begins.
const joinTimeout = 30 * time.Second

// maxJoinLine is the maximum byte length of the JOIN line, spec.md §6.
const maxJoinLine = 99

// minJoinLine is the shortest possible well-formed JOIN line ("JOIN a b").
const minJoinLine = 8

var errorWire = []byte("ERROR\n")

// Recorder receives connection-lifecycle counts; satisfied by
// internal/metrics.Registry.
type Recorder interface {
	ConnectionAccepted()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionAccepted() {}

// Server owns the TCP listener and the Registry Connection Handlers
// register new Clients into.
type Server struct {
	registry *chatroom.Registry
	metrics  Recorder
	listener net.Listener
}

// New constructs a Server bound to registry. metrics may be nil.
func New(registry *chatroom.Registry, metrics Recorder) *Server {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Server{registry: registry, metrics: metrics}
}

// ListenAndServe binds an IPv4 TCP listener on the given port across all
// interfaces and runs the accept loop forever. It returns only on a
// listener-level error.
//
// Spec.md §6 asks for backlog 20; the standard library's net.Listen gives
// the platform no way to request a specific backlog; the kernel's own
// default (net.core.somaxconn on Linux) applies regardless of what this
// process asks for, so there is nothing further to configure here.
func (s *Server) ListenAndServe(port int) error {
	return s.ListenAndServeAddr(fmt.Sprintf(":%d", port))
}

// ListenAndServeAddr is ListenAndServe generalized to an arbitrary bind
// address, mainly so tests can bind an ephemeral loopback port.
func (s *Server) ListenAndServeAddr(addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	logx.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		s.metrics.ConnectionAccepted()
		go s.handleConnection(conn)
	}
}

// handleConnection is the Connection Handler: spec.md §4.4's JOIN
// handshake sequence run on every newly accepted socket.
func (s *Server) handleConnection(conn net.Conn) {
	connID := uuid.NewString()
	log := logx.Logger().With().Str("conn", connID).Logger()

	if err := conn.SetReadDeadline(time.Now().Add(joinTimeout)); err != nil {
		log.Warn().Err(err).Msg("set join deadline")
	}

	name, room, err := readJoinLine(conn)
	if err != nil {
		log.Debug().Err(err).Msg("join handshake failed")
		_, _ = conn.Write(errorWire)
		conn.Close()
		return
	}

	rm, created, err := s.registry.GetOrCreate(room)
	if err != nil {
		log.Debug().Err(err).Str("room", room).Msg("invalid room name")
		_, _ = conn.Write(errorWire)
		conn.Close()
		return
	}

	if _, err := rm.AddMember(name, conn); err != nil {
		log.Debug().Err(err).Str("room", room).Str("client", name).Msg("add_member failed")
		_, _ = conn.Write(errorWire)
		conn.Close()
		if created {
			rm.Abort()
		}
		return
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		log.Warn().Err(err).Msg("clear join deadline")
	}
	log.Info().Str("room", room).Str("client", name).Msg("joined")
}

// readJoinLine performs spec.md §4.4 steps 2-3: read up to maxJoinLine
// bytes for the JOIN line and parse it into (client_name, room_name).
func readJoinLine(conn net.Conn) (clientName, roomName string, err error) {
	buf := make([]byte, maxJoinLine)
	total := 0

	for total < maxJoinLine {
		n, readErr := conn.Read(buf[total:])
		total += n
		if idx := bytes.IndexByte(buf[:total], '\n'); idx >= 0 {
			return parseJoinLine(buf[:idx])
		}
		if readErr != nil {
			return "", "", chaterr.New(chaterr.ProtocolViolation, errJoinIncomplete)
		}
	}
	return "", "", chaterr.New(chaterr.ProtocolViolation, errJoinTooLong)
}

// parseJoinLine parses "JOIN <client_name> <room_name>" (tokens separated
// by one or more space/CR bytes, no trailing token) per spec.md §4.4
// step 3. The caller passes everything before the newline, so a trailing
// '\r', if present, is still in line and is stripped here.
func parseJoinLine(line []byte) (clientName, roomName string, err error) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) < minJoinLine {
		return "", "", chaterr.New(chaterr.ProtocolViolation, errJoinMalformed)
	}

	fields := bytes.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\r'
	})
	if len(fields) != 3 || string(fields[0]) != "JOIN" {
		return "", "", chaterr.New(chaterr.ProtocolViolation, errJoinMalformed)
	}

	client, room := string(fields[1]), string(fields[2])
	if err := identifier.Validate(fields[1]); err != nil {
		return "", "", chaterr.New(chaterr.ProtocolViolation, err)
	}
	if err := identifier.Validate(fields[2]); err != nil {
		return "", "", chaterr.New(chaterr.ProtocolViolation, err)
	}
	return client, room, nil
}

type joinErr struct{ msg string }

func (e joinErr) Error() string { return e.msg }

var (
	errJoinMalformed  = joinErr{"server: malformed JOIN line"}
	errJoinTooLong    = joinErr{"server: JOIN line exceeds 99 bytes"}
	errJoinIncomplete = joinErr{"server: connection closed before JOIN completed"}
)
