package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

type mutation[T any] struct {
	Result       T      `json:"result"`
	RestartError string `json:"restart_error"`
}

func adminDo(t *testing.T, ra *runningApp, method, path, contentType string, body []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, "http://"+ra.app.AdminAddr()+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func adminJSON[T any](t *testing.T, ra *runningApp, method, path string, in any, wantStatus int) T {
	t.Helper()
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		require.NoError(t, err)
	}
	status, out := adminDo(t, ra, method, path, "application/json", body)
	require.Equal(t, wantStatus, status, string(out))
	var v T
	require.NoError(t, json.Unmarshal(out, &v))
	return v
}

// startUpstream serves a fixed A answer for every question.
func startUpstream(t *testing.T, ip string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			rr, _ := dns.NewRR(req.Question[0].Name + " 60 IN A " + ip)
			m.Answer = append(m.Answer, rr)
			_ = w.WriteMsg(m)
		}),
	}
	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

const exampleZoneFile = `$ORIGIN example.com.
$TTL 300
@ IN SOA ns1.example.com. admin.example.com. (
        1       ; serial
        3600    ; refresh
        600     ; retry
        86400   ; expire
        300 )   ; minimum
www IN A 10.0.0.1
`

func TestEndToEnd_ZoneLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}
	setTestEnv(t)
	ra := startApp(t, loadTestConfig(t))

	status, out := adminDo(t, ra, http.MethodPost, "/api/zones/import", "text/plain", []byte(exampleZoneFile))
	require.Equal(t, http.StatusCreated, status, string(out))
	var imported mutation[domain.Zone]
	require.NoError(t, json.Unmarshal(out, &imported))
	require.Empty(t, imported.RestartError)
	zone := imported.Result
	assert.Equal(t, "example.com.", zone.Name)
	assert.Equal(t, uint32(1), zone.Serial)

	t.Run("A answer carries the zone TTL", func(t *testing.T) {
		resp := ra.query(t, "www.example.com", dns.TypeA)
		require.Equal(t, dns.RcodeSuccess, resp.Rcode)
		assert.True(t, resp.Authoritative)
		require.Len(t, resp.Answer, 1)
		a, ok := resp.Answer[0].(*dns.A)
		require.True(t, ok)
		assert.Equal(t, "10.0.0.1", a.A.String())
		assert.Equal(t, uint32(300), a.Hdr.Ttl)
	})

	t.Run("missing type is NXDOMAIN", func(t *testing.T) {
		resp := ra.query(t, "www.example.com", dns.TypeAAAA)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
		assert.Empty(t, resp.Answer)
	})

	t.Run("apex SOA reports the imported serial", func(t *testing.T) {
		resp := ra.query(t, "example.com", dns.TypeSOA)
		require.Equal(t, dns.RcodeSuccess, resp.Rcode)
		require.Len(t, resp.Answer, 1)
		soa, ok := resp.Answer[0].(*dns.SOA)
		require.True(t, ok)
		assert.Equal(t, uint32(1), soa.Serial)
		assert.Equal(t, "ns1.example.com.", soa.Ns)
	})

	created := adminJSON[mutation[domain.Record]](t, ra, http.MethodPost,
		"/api/zones/"+itoa(zone.ID)+"/records",
		domain.Record{Name: "alias", Type: domain.RRTypeCNAME, Content: "www.example.com"},
		http.StatusCreated)
	require.Empty(t, created.RestartError)
	assert.NotZero(t, created.Result.ID)

	t.Run("alias answers with its CNAME", func(t *testing.T) {
		resp := ra.query(t, "alias.example.com", dns.TypeA)
		require.Equal(t, dns.RcodeSuccess, resp.Rcode)
		require.Len(t, resp.Answer, 1)
		cname, ok := resp.Answer[0].(*dns.CNAME)
		require.True(t, ok)
		assert.Equal(t, "www.example.com.", cname.Target)
	})

	t.Run("record change bumps the serial", func(t *testing.T) {
		resp := ra.query(t, "example.com", dns.TypeSOA)
		require.Len(t, resp.Answer, 1)
		assert.Equal(t, uint32(2), resp.Answer[0].(*dns.SOA).Serial)
	})

	t.Run("export reflects the change", func(t *testing.T) {
		status, out := adminDo(t, ra, http.MethodGet, "/api/zones/"+itoa(zone.ID)+"/export", "", nil)
		require.Equal(t, http.StatusOK, status)
		text := string(out)
		assert.Contains(t, text, "$ORIGIN example.com.")
		assert.Contains(t, text, "alias.example.com. 300 IN CNAME www.example.com")
		assert.Contains(t, text, "www.example.com. 300 IN A 10.0.0.1")
	})

	t.Run("queries are logged", func(t *testing.T) {
		var entries []domain.QueryLogEntry
		require.Eventually(t, func() bool {
			entries = adminJSON[[]domain.QueryLogEntry](t, ra, http.MethodGet, "/api/queries?limit=50", nil, http.StatusOK)
			return len(entries) >= 5
		}, 2*time.Second, 20*time.Millisecond)
		assert.Equal(t, "example.com", strings.TrimSuffix(entries[0].QName, "."))
		assert.Equal(t, "SOA", entries[0].QType)
		assert.Equal(t, "NOERROR", entries[0].RCode)
	})

	t.Run("delete zone falls back to NXDOMAIN", func(t *testing.T) {
		adminJSON[mutation[any]](t, ra, http.MethodDelete, "/api/zones/"+itoa(zone.ID), nil, http.StatusOK)
		resp := ra.query(t, "www.example.com", dns.TypeA)
		assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	})
}

func TestEndToEnd_SettingsChangeRestartsListener(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}
	setTestEnv(t)
	ra := startApp(t, loadTestConfig(t))

	resp := ra.query(t, "relay.test", dns.TypeA)
	require.Equal(t, dns.RcodeNameError, resp.Rcode)

	upstream := startUpstream(t, "192.0.2.7")
	saved := adminJSON[mutation[domain.Settings]](t, ra, http.MethodPut, "/api/settings",
		map[string]any{"upstream": upstream}, http.StatusOK)
	require.Empty(t, saved.RestartError)
	assert.Equal(t, upstream, saved.Result.Upstream)
	assert.Equal(t, "127.0.0.1", saved.Result.ListenAddr)

	resp = ra.query(t, "relay.test", dns.TypeA)
	require.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "192.0.2.7", resp.Answer[0].(*dns.A).A.String())
	assert.Equal(t, upstream, ra.app.supervisor.ActiveSettings().Upstream)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
