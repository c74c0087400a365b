package supervisor

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-zoned/internal/dns/domain"
	"github.com/haukened/rr-zoned/internal/dns/gateways/transport"
	"github.com/haukened/rr-zoned/internal/dns/repos/zonestore"
	"github.com/haukened/rr-zoned/internal/dns/services/resolver"
)

func loopbackSettings() domain.Settings {
	return domain.Settings{ListenAddr: "127.0.0.1", ListenPort: 0, DefaultTTL: 300}
}

func tempStore(t *testing.T) *zonestore.Store {
	t.Helper()
	s, err := zonestore.Open(zonestore.Options{
		Path: filepath.Join(t.TempDir(), "zones.db"),
		Seed: loopbackSettings(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedExample(t *testing.T, s *zonestore.Store) {
	t.Helper()
	z, err := s.UpsertZone(domain.Zone{Name: "example.com.", TTL: 300, PrimaryNS: "ns1.example.com.", AdminEmail: "admin.example.com."})
	require.NoError(t, err)
	_, err = s.UpsertRecord(domain.Record{ZoneID: z.ID, Name: "www", Type: domain.RRTypeA, Content: "10.0.0.1"})
	require.NoError(t, err)
}

func query(t *testing.T, addr, name string, qtype uint16) *dns.Msg {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	resp, _, err := (&dns.Client{Timeout: 4 * time.Second}).Exchange(m, addr)
	require.NoError(t, err)
	return resp
}

// fakeUpstream answers every query with 192.0.2.53.
func fakeUpstream(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.RecursionAvailable = true
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP("192.0.2.53"),
		})
		_ = w.WriteMsg(m)
	})}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestSupervisor_StartServeStop(t *testing.T) {
	store := tempStore(t)
	seedExample(t, store)
	sup := New(Options{Settings: store, Zones: store})
	assert.Equal(t, StateStopped, sup.State())
	assert.Empty(t, sup.Address())

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, StateRunning, sup.State())
	addr := sup.Address()
	require.NotEmpty(t, addr)
	assert.Equal(t, "127.0.0.1", sup.ActiveSettings().ListenAddr)

	resp := query(t, addr, "www.example.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.True(t, resp.Authoritative)
	require.Len(t, resp.Answer, 1)

	assert.ErrorIs(t, sup.Start(context.Background()), ErrNotStopped)

	require.NoError(t, sup.Stop())
	assert.Equal(t, StateStopped, sup.State())
	require.NoError(t, sup.Stop(), "stop is idempotent")
}

func TestSupervisor_RestartReadsFreshSettings(t *testing.T) {
	store := tempStore(t)
	sup := New(Options{Settings: store, Zones: store})
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Stop() })

	resp := query(t, sup.Address(), "www.example.org.", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode, "no upstream configured")

	settings := loopbackSettings()
	settings.Upstream = fakeUpstream(t)
	require.NoError(t, store.PutSettings(settings))

	// Settings only apply after a restart.
	assert.Empty(t, sup.ActiveSettings().Upstream)
	require.NoError(t, sup.Restart())
	assert.Equal(t, StateRunning, sup.State())
	assert.Equal(t, settings.Upstream, sup.ActiveSettings().Upstream)

	resp = query(t, sup.Address(), "www.example.org.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.False(t, resp.Authoritative)
	assert.True(t, resp.RecursionAvailable)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "192.0.2.53", resp.Answer[0].(*dns.A).A.String())
}

func TestSupervisor_RestartFromStoppedStarts(t *testing.T) {
	store := tempStore(t)
	sup := New(Options{Settings: store, Zones: store})
	require.NoError(t, sup.Restart())
	assert.Equal(t, StateRunning, sup.State())
	require.NoError(t, sup.Stop())
}

func TestSupervisor_UnreachableUpstreamIsBounded(t *testing.T) {
	store := tempStore(t)
	sink, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()

	settings := loopbackSettings()
	settings.Upstream = sink.LocalAddr().String()
	require.NoError(t, store.PutSettings(settings))

	sup := New(Options{Settings: store, Zones: store, UpstreamTimeout: 200 * time.Millisecond})
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Stop() })

	start := time.Now()
	resp := query(t, sup.Address(), "www.example.org.", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	assert.Empty(t, resp.Answer)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// stuckTransport never lets its receive loop exit.
type stuckTransport struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	started  int
	done     chan struct{}
}

func (s *stuckTransport) Start(context.Context, resolver.DNSResponder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.startErr
}

func (s *stuckTransport) Stop(time.Duration) error { return s.stopErr }
func (s *stuckTransport) Done() <-chan struct{}    { return s.done }
func (s *stuckTransport) Address() string          { return "127.0.0.1:5353" }

func TestSupervisor_StopTimeoutBlocksRestart(t *testing.T) {
	store := tempStore(t)
	stuck := &stuckTransport{stopErr: transport.ErrStopTimeout, done: make(chan struct{})}
	sup := New(Options{
		Settings:     store,
		Zones:        store,
		NewTransport: func(string) (resolver.ServerTransport, error) { return stuck, nil },
	})
	require.NoError(t, sup.Start(context.Background()))

	err := sup.Restart()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestartFailed)
	assert.ErrorIs(t, err, transport.ErrStopTimeout)
	assert.Equal(t, StateStopped, sup.State())
	assert.Equal(t, 1, stuck.started, "no second listener after a failed stop")

	assert.ErrorIs(t, sup.Start(context.Background()), ErrListenerStillRunning)

	close(stuck.done)
	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, 2, stuck.started)
}

func TestSupervisor_StartFailure(t *testing.T) {
	store := tempStore(t)
	bindErr := errors.New("address in use")
	done := make(chan struct{})
	close(done)
	sup := New(Options{
		Settings: store,
		Zones:    store,
		NewTransport: func(string) (resolver.ServerTransport, error) {
			return &stuckTransport{startErr: bindErr, done: done}, nil
		},
	})

	assert.ErrorIs(t, sup.Start(context.Background()), bindErr)
	assert.Equal(t, StateStopped, sup.State())

	err := sup.Restart()
	assert.ErrorIs(t, err, ErrRestartFailed)
	assert.ErrorIs(t, err, bindErr)
}

type brokenSettings struct{}

func (brokenSettings) Settings() (domain.Settings, error) {
	return domain.Settings{}, errors.New("settings unavailable")
}

func TestSupervisor_SettingsError(t *testing.T) {
	sup := New(Options{Settings: brokenSettings{}})
	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings unavailable")
	assert.Equal(t, StateStopped, sup.State())
}

func TestSupervisor_Run(t *testing.T) {
	store := tempStore(t)
	sup := New(Options{Settings: store, Zones: store})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	require.Eventually(t, func() bool { return sup.State() == StateRunning }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateStopped, sup.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "state(9)", State(9).String())
}
