package sources

import (
	"cldpip/common"
	"cldpip/config"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSource(t *testing.T, c config.IPSource) Interface {
	t.Helper()
	create, ok := Sources[c.Type]
	require.True(t, ok, "unknown source type %s", c.Type)
	s, err := create(context.Background(), c)
	require.NoError(t, err)
	return s
}

func TestSimpleLookup(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", "1.2.3.4\n", "1.2.3.4"},
		{"embedded", "<html><body>Current IP Address: 203.0.113.7</body></html>", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := textServer(t, tt.body)
			s := newSource(t, config.IPSource{Type: "simple", Source: srv.URL})

			addr, err := s.Lookup(context.Background())
			require.NoError(t, err)
			assert.Equal(t, netip.MustParseAddr(tt.want), addr)
			assert.Equal(t, "simple", s.Typename())
		})
	}
}

func TestSimpleLookupNoAddress(t *testing.T) {
	srv := textServer(t, "2001:db8::1\n")
	s := newSource(t, config.IPSource{Type: "simple", Source: srv.URL})

	_, err := s.Lookup(context.Background())
	assert.Error(t, err)
}

func TestSimpleLookupBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "1.2.3.4", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newSource(t, config.IPSource{Type: "simple", Source: srv.URL})
	_, err := s.Lookup(context.Background())
	assert.Error(t, err)
}

func TestSimpleLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		io.WriteString(w, "1.2.3.4")
	}))
	defer srv.Close()

	s := newSource(t, config.IPSource{
		Type:   "simple",
		Source: srv.URL,
		Config: map[string]any{"timeout": "50ms"},
	})

	start := time.Now()
	_, err := s.Lookup(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestSimpleRequiresURL(t *testing.T) {
	_, err := newSimple(context.Background(), config.IPSource{Type: "simple"})
	assert.Error(t, err)
}

func TestCloudflareTraceLookup(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cdn-cgi/trace", r.URL.Path)
		io.WriteString(w, "fl=123\nh=www.cloudflare.com\nip=198.51.100.23\nts=1700000000.1\nvisit_scheme=https\n")
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	s := newSource(t, config.IPSource{Type: "cf_trace", Source: host})

	ctx := context.WithValue(context.Background(), common.HttpClientKey, srv.Client())
	addr, err := s.Lookup(ctx)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("198.51.100.23"), addr)
}

func TestCloudflareTraceMissingIP(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "fl=123\nh=www.cloudflare.com\n")
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	s := newSource(t, config.IPSource{Type: "cf_trace", Source: host})

	ctx := context.WithValue(context.Background(), common.HttpClientKey, srv.Client())
	_, err := s.Lookup(ctx)
	assert.Error(t, err)
}

func TestCloudflareTraceForcedAddress(t *testing.T) {
	s, err := newCloudflareTrace(context.Background(), config.IPSource{Type: "cf_trace", Source: "1.1.1.1"})
	require.NoError(t, err)

	trace := s.(*cloudflareTrace)
	assert.Equal(t, defaultCloudflareDomain, trace.host)
	assert.Equal(t, "1.1.1.1", trace.ForceAddress)
}

func TestQuorumAgreement(t *testing.T) {
	srv := textServer(t, "192.0.2.10\n")
	s := newSource(t, config.IPSource{Type: "quorum", Source: srv.URL})

	addr, err := s.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), addr)
}

func TestQuorumOneFailure(t *testing.T) {
	a := textServer(t, "192.0.2.10")
	b := textServer(t, "invalid ip")
	c := textServer(t, "192.0.2.10")

	s := newSource(t, config.IPSource{
		Type:   "quorum",
		Config: map[string]any{"urls": []any{a.URL, b.URL, c.URL}},
	})

	addr, err := s.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), addr)
}

func TestQuorumMismatch(t *testing.T) {
	a := textServer(t, "192.0.2.10")
	b := textServer(t, "10.0.0.10")
	c := textServer(t, "127.0.0.1")

	s := newSource(t, config.IPSource{
		Type:   "quorum",
		Config: map[string]any{"urls": []any{a.URL, b.URL, c.URL}},
	})

	_, err := s.Lookup(context.Background())
	assert.Error(t, err)
}

func TestQuorumTwoFailures(t *testing.T) {
	a := textServer(t, "192.0.2.10")
	b := textServer(t, "a")
	c := textServer(t, "b")

	s := newSource(t, config.IPSource{
		Type:   "quorum",
		Config: map[string]any{"urls": []any{a.URL, b.URL, c.URL}},
	})

	_, err := s.Lookup(context.Background())
	assert.Error(t, err)
}

func TestQuorumHitCount(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		io.WriteString(w, "invalid ip")
	}))
	defer srv.Close()

	s := newSource(t, config.IPSource{
		Type:   "quorum",
		Config: map[string]any{"urls": []any{srv.URL, srv.URL, srv.URL, srv.URL, srv.URL}},
	})

	_, err := s.Lookup(context.Background())
	assert.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, quorumRequests, hits)
}

func TestQuorumNeedsURL(t *testing.T) {
	_, err := newQuorum(context.Background(), config.IPSource{Type: "quorum"})
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := newSource(t, config.IPSource{Type: "static", Source: "203.0.113.1"})
	addr, err := s.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.1"), addr)

	_, err = newStatic(context.Background(), config.IPSource{Type: "static", Source: "2001:db8::1"})
	assert.Error(t, err)
}
