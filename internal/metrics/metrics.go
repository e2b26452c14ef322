// Package metrics exposes the server's lifecycle counters as Prometheus
// collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors for this process. It satisfies
// chatroom.Recorder by method shape, without chatroom importing this
// package.
type Registry struct {
	roomsActive  prometheus.Gauge
	connections  prometheus.Counter
	messages     prometheus.Counter
	violations   prometheus.Counter
	peerDetaches prometheus.Counter
}

// NewRegistry creates and registers the process's Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chatroomd_rooms_active",
			Help: "Current number of live rooms.",
		}),
		connections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatroomd_connections_accepted_total",
			Help: "Total TCP connections accepted.",
		}),
		messages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatroomd_messages_fanned_out_total",
			Help: "Total peer chat lines delivered by a room's fan-out worker (join/leave notices excluded).",
		}),
		violations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatroomd_protocol_violations_total",
			Help: "Total room members terminated for a protocol violation (JOIN-handshake rejections are not counted).",
		}),
		peerDetaches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatroomd_peer_gone_total",
			Help: "Total members detached from a room, for any reason (peer gone, failed send, or closed after ERROR).",
		}),
	}
}

// Handler returns an HTTP handler exposing the registered metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RoomCreated records a room transitioning to Running.
func (r *Registry) RoomCreated() { r.roomsActive.Inc() }

// RoomDestroyed records a room reaching Terminated.
func (r *Registry) RoomDestroyed() { r.roomsActive.Dec() }

// ConnectionAccepted records a newly accepted TCP connection.
func (r *Registry) ConnectionAccepted() { r.connections.Inc() }

// MessageFannedOut records one peer chat line delivered by a fan-out pass;
// synthetic join/leave notices don't count.
func (r *Registry) MessageFannedOut() { r.messages.Inc() }

// ProtocolViolation records a room member rejected for violating the wire
// protocol. Rejections during the JOIN handshake are not recorded here.
func (r *Registry) ProtocolViolation() { r.violations.Inc() }

// PeerGoneDetach records a member removed from a room's membership, for
// any reason: its peer disconnected, a send to it failed, or it was closed
// after an ERROR.
func (r *Registry) PeerGoneDetach() { r.peerDetaches.Inc() }
