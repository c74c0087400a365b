// Package upstream relays queries that no local zone answers to a single
// upstream DNS server over UDP.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/gateways/wire"
)

// DefaultTimeout bounds one forwarded exchange. There is no retry.
const DefaultTimeout = 2500 * time.Millisecond

// maxMessageSize is the largest UDP payload accepted from upstream.
const maxMessageSize = 65535

// ErrNoUpstream is returned when no upstream server is configured.
var ErrNoUpstream = errors.New("no upstream DNS server configured")

const (
	errCodecRequired   = "DNS codec is required"
	errFailedToConnect = "failed to connect to %s: %w"
	errWriteFailed     = "write failed: %w"
	errReadFailed      = "read failed: %w"
	errDecodeFailed    = "decode failed: %w"
	errIDMismatch      = "reply id %d does not match query id %d"
)

// DialFunc establishes a network connection; replaceable in tests.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Options struct {
	// Server is the upstream "host:port".
	Server string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	Codec   wire.DNSCodec
	Dial    DialFunc
	Logger  log.Logger
}

// Forwarder sends the client's original query bytes upstream and returns the
// reply, keeping its bytes for a verbatim relay.
type Forwarder struct {
	server  string
	timeout time.Duration
	codec   wire.DNSCodec
	dial    DialFunc
	logger  log.Logger
}

// NewForwarder validates opts and applies defaults.
func NewForwarder(opts Options) (*Forwarder, error) {
	if opts.Server == "" {
		return nil, ErrNoUpstream
	}
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Forwarder{
		server:  opts.Server,
		timeout: opts.Timeout,
		codec:   opts.Codec,
		dial:    opts.Dial,
		logger:  opts.Logger,
	}, nil
}

// Server returns the configured upstream address.
func (f *Forwarder) Server() string { return f.server }

// Forward relays raw, the query exactly as received from the client, and
// waits at most the forwarder timeout for one reply.
func (f *Forwarder) Forward(ctx context.Context, query domain.Question, raw []byte) (domain.DNSResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if len(raw) == 0 {
		encoded, err := f.codec.EncodeQuery(query)
		if err != nil {
			return domain.DNSResponse{}, fmt.Errorf("encode query: %w", err)
		}
		raw = encoded
	}

	conn, err := f.dial(ctx, "udp", f.server)
	if err != nil {
		return domain.DNSResponse{}, fmt.Errorf(errFailedToConnect, f.server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return domain.DNSResponse{}, fmt.Errorf("set deadline: %w", err)
		}
	}

	type result struct {
		response domain.DNSResponse
		err      error
	}
	resultChan := make(chan result, 1)

	go func() {
		if _, err := conn.Write(raw); err != nil {
			resultChan <- result{err: fmt.Errorf(errWriteFailed, err)}
			return
		}
		buffer := make([]byte, maxMessageSize)
		n, err := conn.Read(buffer)
		if err != nil {
			resultChan <- result{err: fmt.Errorf(errReadFailed, err)}
			return
		}
		reply := make([]byte, n)
		copy(reply, buffer[:n])
		response, err := f.codec.DecodeResponse(reply)
		if err != nil {
			resultChan <- result{err: fmt.Errorf(errDecodeFailed, err)}
			return
		}
		if response.ID != query.ID {
			resultChan <- result{err: fmt.Errorf(errIDMismatch, response.ID, query.ID)}
			return
		}
		resultChan <- result{response: response}
	}()

	select {
	case res := <-resultChan:
		if res.err == nil {
			f.logger.Debug(map[string]any{
				"upstream": f.server,
				"query_id": query.ID,
				"rcode":    res.response.RCode.String(),
				"answers":  len(res.response.Answers),
			}, "upstream replied")
		}
		return res.response, res.err
	case <-ctx.Done():
		return domain.DNSResponse{}, fmt.Errorf("upstream %s: %w", f.server, ctx.Err())
	}
}
