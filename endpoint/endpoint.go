// Package endpoint owns the stream connection between an application and
// the local routing daemon: connect/reconnect pacing, tag framing, bounded
// outbound queueing and delivery of inbound commands to the routing host.
package endpoint

import (
	"time"

	"github.com/ecukit/localsip/logging"
)

// State of a client endpoint. An endpoint is created Closed, becomes
// Established through Start, and ends Terminal through Stop; a Terminal
// endpoint is not reused.
type State int32

const (
	Closed State = iota
	Connecting
	Established
	Draining
	Terminal
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Draining:
		return "draining"
	case Terminal:
		return "terminal"
	}
	return "invalid"
}

// RoutingHost receives inbound command payloads, already stripped of the
// frame tags. The endpoint holds the host as a non-owning handle and checks
// it at each delivery.
type RoutingHost interface {
	OnMessage(data []byte, from *Client)
}

// Host observes endpoint lifecycle events.
type Host interface {
	OnConnect(*Client)
	OnDisconnect(*Client)
}

// ErrorHandler is the user callback fired on non-recoverable transport
// errors.
type ErrorHandler func()

const (
	// MaxReconnectsUnlimited disables the reconnect budget.
	MaxReconnectsUnlimited = ^uint32(0)

	// DefaultConnectTimeout is the initial reconnect backoff.
	DefaultConnectTimeout = 100 * time.Millisecond

	// MaxConnectTimeout caps the reconnect backoff.
	MaxConnectTimeout = 1600 * time.Millisecond

	// DefaultConnectingTimeout bounds a single outstanding connect.
	DefaultConnectingTimeout = 3 * time.Second

	drainPolls    = 50
	drainInterval = 10 * time.Millisecond
)

// Options configures a client endpoint. Local may be empty to let the
// kernel choose the source address.
type Options struct {
	Local  string
	Remote string

	MaxMessageSize uint32
	QueueLimit     uint32

	// ConnectTimeout is the initial reconnect backoff; doubled on every
	// failed attempt up to MaxConnectTimeout.
	ConnectTimeout time.Duration
	// ConnectingTimeout is the deadline on one asynchronous connect.
	ConnectingTimeout time.Duration
	// MaxReconnects bounds consecutive failed connect attempts.
	MaxReconnects uint32

	Routing RoutingHost
	Host    Host
	Log     logging.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = DefaultConnectTimeout
	}
	if out.ConnectingTimeout <= 0 {
		out.ConnectingTimeout = DefaultConnectingTimeout
	}
	if out.MaxReconnects == 0 {
		out.MaxReconnects = MaxReconnectsUnlimited
	}
	if out.Log == nil {
		out.Log = logging.Discard
	}
	return out
}
