// Package transport receives DNS datagrams, hands decoded queries to a
// resolver.DNSResponder and writes the encoded replies back. Each handled
// datagram produces one query log entry.
package transport

import (
	"errors"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

var (
	// ErrAlreadyRunning is returned by Start on a transport that is listening.
	ErrAlreadyRunning = errors.New("transport already running")
	// ErrStopTimeout is returned by Stop when the receive loop did not exit in
	// time. The socket has been closed anyway.
	ErrStopTimeout = errors.New("transport did not stop in time")
)

// QueryRecorder receives one entry per handled datagram. Implementations must
// not block or fail the reply.
type QueryRecorder interface {
	Record(entry domain.QueryLogEntry)
}

// TransportType names a DNS transport protocol.
type TransportType string

const (
	// TransportUDP is DNS over UDP (RFC 1035).
	TransportUDP TransportType = "udp"
)

type noopRecorder struct{}

func (noopRecorder) Record(domain.QueryLogEntry) {}
