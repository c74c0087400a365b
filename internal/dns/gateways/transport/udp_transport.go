package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/common/clock"
	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/gateways/wire"
	"github.com/haukened/rr-zoned/internal/dns/services/resolver"
)

// maxDatagram is the largest UDP payload read from the socket.
const maxDatagram = 65535

var _ resolver.ServerTransport = (*UDPTransport)(nil)

type Options struct {
	// Addr is the host:port to bind.
	Addr     string
	Codec    wire.DNSCodec
	Recorder QueryRecorder
	Clock    clock.Clock
	Logger   log.Logger
}

// UDPTransport implements resolver.ServerTransport for DNS over UDP. The
// receive loop runs on its own goroutine and dispatches every datagram to a
// goroutine of its own.
//
// Stop sets a flag and wakes the blocked read by sending a sentinel datagram
// to the bound address. The loop checks the flag after every receive, so the
// sentinel is never answered.
type UDPTransport struct {
	addr     string
	codec    wire.DNSCodec
	recorder QueryRecorder
	clock    clock.Clock
	logger   log.Logger

	mu       sync.RWMutex
	conn     *net.UDPConn
	running  bool
	done     chan struct{}
	stopping atomic.Bool

	// sentinelTarget picks where the wake-up datagram is sent.
	sentinelTarget func(bound *net.UDPAddr) *net.UDPAddr
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts Options) *UDPTransport {
	if opts.Codec == nil {
		opts.Codec = wire.NewCodec(opts.Logger)
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	done := make(chan struct{})
	close(done)
	return &UDPTransport{
		addr:           opts.Addr,
		codec:          opts.Codec,
		recorder:       opts.Recorder,
		clock:          opts.Clock,
		logger:         opts.Logger,
		done:           done,
		sentinelTarget: loopbackFor,
	}
}

// Start binds the socket and starts the receive loop. ctx is the parent of
// every per-query context; cancelling it does not stop the loop.
func (t *UDPTransport) Start(ctx context.Context, handler resolver.DNSResponder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true
	t.stopping.Store(false)
	t.done = make(chan struct{})

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	go t.listenLoop(ctx, conn, handler, t.done)
	return nil
}

// Stop signals the receive loop and waits up to timeout for it to exit. On
// timeout the socket is closed and ErrStopTimeout is returned.
func (t *UDPTransport) Stop(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.stopping.Store(true)

	bound := t.conn.LocalAddr().(*net.UDPAddr)
	if err := sendSentinel(t.sentinelTarget(bound)); err != nil {
		t.logger.Warn(map[string]any{
			"address": bound.String(),
			"error":   err.Error(),
		}, "Failed to send stop sentinel")
	}

	var stopErr error
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		stopErr = fmt.Errorf("%w: %s after %s", ErrStopTimeout, bound, timeout)
		t.logger.Error(map[string]any{
			"address": bound.String(),
			"timeout": timeout.String(),
		}, "DNS transport did not stop in time, closing socket")
	}

	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.logger.Warn(map[string]any{"error": err.Error()}, "Error closing UDP connection")
	}
	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   bound.String(),
	}, "DNS transport stopped")
	return stopErr
}

// Done is closed when the receive loop has exited. It is closed before the
// first Start.
func (t *UDPTransport) Done() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done
}

// Address returns the bound address while running, the configured one
// otherwise.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) listenLoop(ctx context.Context, conn *net.UDPConn, handler resolver.DNSResponder, done chan struct{}) {
	defer close(done)
	buffer := make([]byte, maxDatagram)

	for {
		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if t.stopping.Load() {
			t.logger.Debug(nil, "UDP transport stopping due to stop signal")
			return
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to read UDP packet")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		go t.handlePacket(ctx, conn, packet, clientAddr, handler)
	}
}

// handlePacket answers one datagram and records the outcome.
func (t *UDPTransport) handlePacket(ctx context.Context, conn *net.UDPConn, data []byte, clientAddr *net.UDPAddr, handler resolver.DNSResponder) {
	start := t.clock.Now()
	entry := domain.QueryLogEntry{Time: start, Client: clientAddr.IP.String()}

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(data),
		"raw":    fmt.Sprintf("%x", data),
	}, "Received raw DNS query data")

	query, err := t.codec.DecodeQuery(data)
	if err != nil {
		if t.stopping.Load() {
			return
		}
		t.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
			"size":   len(data),
		}, "Failed to decode DNS query")
		entry.RCode = domain.SERVFAIL.String()
		entry.Answer = err.Error()
		if reply, encErr := t.codec.EncodeError(data, domain.SERVFAIL); encErr == nil {
			t.send(conn, reply, clientAddr)
		}
		t.finish(entry, start)
		return
	}

	entry.QName = query.Name
	entry.QType = query.Type.String()
	t.logger.Debug(map[string]any{
		"client":   clientAddr.String(),
		"query_id": query.ID,
		"name":     query.Name,
		"type":     query.Type.String(),
	}, "Received DNS query")

	response := handler.HandleQuery(ctx, query, data)

	responseData, err := t.codec.EncodeResponse(response)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.ID,
			"error":    err.Error(),
		}, "Failed to encode DNS response")
		response = domain.NewDNSErrorResponse(query, domain.SERVFAIL)
		responseData, err = t.codec.EncodeResponse(response)
		if err != nil {
			entry.RCode = domain.SERVFAIL.String()
			t.finish(entry, start)
			return
		}
	}

	t.send(conn, responseData, clientAddr)
	t.logger.Debug(map[string]any{
		"client":   clientAddr.String(),
		"query_id": response.ID,
		"rcode":    response.RCode.String(),
		"answers":  len(response.Answers),
		"relayed":  response.Relayed(),
		"size":     len(responseData),
	}, "Sent DNS response")

	entry.RCode = response.RCode.String()
	entry.Answer = response.Summary()
	t.finish(entry, start)
}

func (t *UDPTransport) send(conn *net.UDPConn, data []byte, clientAddr *net.UDPAddr) {
	if _, err := conn.WriteToUDP(data, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to send DNS response")
	}
}

func (t *UDPTransport) finish(entry domain.QueryLogEntry, start time.Time) {
	entry.DurationMS = float64(t.clock.Now().Sub(start).Microseconds()) / 1000
	t.recorder.Record(entry)
}

// loopbackFor maps a wildcard bind address to the loopback address of the same
// family so the sentinel can reach the socket.
func loopbackFor(bound *net.UDPAddr) *net.UDPAddr {
	target := *bound
	if bound.IP == nil || bound.IP.IsUnspecified() {
		if bound.IP != nil && bound.IP.To4() == nil {
			target.IP = net.IPv6loopback
		} else {
			target.IP = net.IPv4(127, 0, 0, 1)
		}
	}
	return &target
}

func sendSentinel(target *net.UDPAddr) error {
	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte{0})
	return err
}
