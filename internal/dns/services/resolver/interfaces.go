package resolver

import (
	"context"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// ZoneStore is the read side of the zone store used to answer queries.
type ZoneStore interface {
	// FindZoneForName returns the zone whose name is the longest label-wise
	// suffix of name.
	FindZoneForName(name string) (domain.Zone, bool, error)
	RecordsByOwnerAndType(zoneID uint64, owner string, t domain.RRType) ([]domain.Record, error)
	RecordsByOwner(zoneID uint64, owner string) ([]domain.Record, error)
}

// UpstreamClient relays a query to the configured upstream server.
type UpstreamClient interface {
	Forward(ctx context.Context, query domain.Question, raw []byte) (domain.DNSResponse, error)
}

// DNSResponder answers one decoded query. raw is the datagram as received,
// used when the query is relayed upstream.
type DNSResponder interface {
	HandleQuery(ctx context.Context, query domain.Question, raw []byte) domain.DNSResponse
}

// ServerTransport is a listener that feeds datagrams to a DNSResponder.
type ServerTransport interface {
	// Start binds the socket and starts the receive loop.
	Start(ctx context.Context, handler DNSResponder) error
	// Stop asks the receive loop to exit and waits at most timeout for it.
	Stop(timeout time.Duration) error
	// Done is closed once the receive loop has exited.
	Done() <-chan struct{}
	// Address returns the bound address.
	Address() string
}
