// Package supervisor owns the DNS listener and rebuilds it from the stored
// settings whenever the configuration changes.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/common/clock"
	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/gateways/transport"
	"github.com/haukened/rr-zoned/internal/dns/gateways/upstream"
	"github.com/haukened/rr-zoned/internal/dns/gateways/wire"
	"github.com/haukened/rr-zoned/internal/dns/services/resolver"
)

// DefaultStopTimeout bounds how long Stop waits for the receive loop.
const DefaultStopTimeout = 2 * time.Second

var (
	// ErrListenerStillRunning is returned by Start when the receive loop of a
	// listener that failed to stop in time has not exited yet.
	ErrListenerStillRunning = errors.New("previous DNS listener is still running")
	// ErrRestartFailed wraps any failure of Restart.
	ErrRestartFailed = errors.New("DNS listener restart failed")
	// ErrNotStopped is returned by Start when a listener is already active.
	ErrNotStopped = errors.New("DNS listener is not stopped")
)

// SettingsSource provides the persisted settings, read on every start.
type SettingsSource interface {
	Settings() (domain.Settings, error)
}

// TransportFactory builds a listener bound to addr.
type TransportFactory func(addr string) (resolver.ServerTransport, error)

type Options struct {
	Settings SettingsSource
	Zones    resolver.ZoneStore
	Recorder transport.QueryRecorder
	Codec    wire.DNSCodec
	// StopTimeout defaults to DefaultStopTimeout.
	StopTimeout time.Duration
	// UpstreamTimeout defaults to upstream.DefaultTimeout.
	UpstreamTimeout time.Duration
	// NewTransport defaults to a UDP transport.
	NewTransport TransportFactory
	Clock        clock.Clock
	Logger       log.Logger
}

// Supervisor runs at most one listener. Start, Stop and Restart are
// serialized; State may be read at any time.
type Supervisor struct {
	settings        SettingsSource
	zones           resolver.ZoneStore
	codec           wire.DNSCodec
	stopTimeout     time.Duration
	upstreamTimeout time.Duration
	newTransport    TransportFactory
	logger          log.Logger

	mu        sync.Mutex
	state     atomic.Int32
	baseCtx   context.Context
	transport resolver.ServerTransport
	active    domain.Settings
}

func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Codec == nil {
		opts.Codec = wire.NewCodec(opts.Logger)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = upstream.DefaultTimeout
	}
	if opts.NewTransport == nil {
		opts.NewTransport = func(addr string) (resolver.ServerTransport, error) {
			return transport.NewTransport(transport.TransportUDP, transport.Options{
				Addr:     addr,
				Codec:    opts.Codec,
				Recorder: opts.Recorder,
				Clock:    opts.Clock,
				Logger:   opts.Logger,
			})
		}
	}
	return &Supervisor{
		settings:        opts.Settings,
		zones:           opts.Zones,
		codec:           opts.Codec,
		stopTimeout:     opts.StopTimeout,
		upstreamTimeout: opts.UpstreamTimeout,
		newTransport:    opts.NewTransport,
		logger:          opts.Logger,
		baseCtx:         context.Background(),
	}
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Address returns the address of the running listener, or "" when stopped.
func (s *Supervisor) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateRunning || s.transport == nil {
		return ""
	}
	return s.transport.Address()
}

// ActiveSettings returns the settings the running listener was built from.
func (s *Supervisor) ActiveSettings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start reads the current settings and starts a listener. ctx becomes the
// parent context of every query, including those served after a Restart.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx != nil {
		s.baseCtx = ctx
	}
	return s.start()
}

// Stop stops the running listener. A listener that does not exit within the
// stop timeout is reported through the returned error.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop()
}

// Restart stops the listener and starts a new one from freshly read settings.
// If the old listener fails to stop, no new listener is started.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stop(); err != nil {
		return fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	if err := s.start(); err != nil {
		return fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	s.logger.Info(map[string]any{"address": s.transport.Address()}, "DNS listener restarted")
	return nil
}

// Run starts the listener and stops it when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Supervisor) start() error {
	if st := s.State(); st != StateStopped {
		return fmt.Errorf("%w: %s", ErrNotStopped, st)
	}
	if s.transport != nil {
		select {
		case <-s.transport.Done():
		default:
			s.logger.Error(map[string]any{"address": s.transport.Address()}, "previous DNS listener has not exited")
			return ErrListenerStillRunning
		}
	}

	s.setState(StateStarting)
	t, settings, err := s.build()
	if err == nil {
		err = t.Start(s.baseCtx, s.responder(settings))
	}
	if err != nil {
		s.setState(StateStopped)
		s.logger.Error(map[string]any{"error": err.Error()}, "DNS listener failed to start")
		return err
	}

	s.transport = t
	s.active = settings
	s.setState(StateRunning)
	s.logger.Info(map[string]any{
		"address":  t.Address(),
		"upstream": settings.Upstream,
	}, "DNS listener running")
	return nil
}

func (s *Supervisor) build() (resolver.ServerTransport, domain.Settings, error) {
	settings, err := s.settings.Settings()
	if err != nil {
		return nil, domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	t, err := s.newTransport(settings.Address())
	if err != nil {
		return nil, domain.Settings{}, err
	}
	return t, settings, nil
}

// responder builds a resolver for settings. Forwarding is disabled when no
// upstream is configured.
func (s *Supervisor) responder(settings domain.Settings) resolver.DNSResponder {
	opts := resolver.ResolverOptions{Zones: s.zones, Logger: s.logger}
	if settings.Upstream != "" {
		fwd, err := upstream.NewForwarder(upstream.Options{
			Server:  settings.Upstream,
			Timeout: s.upstreamTimeout,
			Codec:   s.codec,
			Logger:  s.logger,
		})
		if err != nil {
			s.logger.Warn(map[string]any{"upstream": settings.Upstream, "error": err.Error()}, "upstream forwarding disabled")
		} else {
			opts.Upstream = fwd
		}
	}
	return resolver.NewResolver(opts)
}

func (s *Supervisor) stop() error {
	if s.State() != StateRunning {
		return nil
	}
	s.setState(StateStopping)
	err := s.transport.Stop(s.stopTimeout)
	s.setState(StateStopped)
	if err != nil {
		s.logger.Error(map[string]any{"error": err.Error()}, "DNS listener stop timed out")
		return err
	}
	s.logger.Info(nil, "DNS listener stopped")
	return nil
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug(map[string]any{"state": st.String()}, "DNS listener state changed")
}
