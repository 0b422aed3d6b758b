package cldpip

import (
	"cldpip/config"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverFirstValidWins(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "203.0.113.9\n")
	}))
	defer good.Close()

	r, err := NewResolver(context.Background(), []config.IPSource{
		{Type: "simple", Source: broken.URL},
		{Type: "simple", Source: good.URL},
		{Type: "static", Source: "192.0.2.1"},
	})
	require.NoError(t, err)

	addr, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), addr)
}

func TestResolverAllFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "no address here")
	}))
	defer broken.Close()

	r, err := NewResolver(context.Background(), []config.IPSource{
		{Type: "simple", Source: broken.URL},
		{Type: "simple", Source: broken.URL},
	})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background())
	assert.Error(t, err)
}

func TestNewResolverErrors(t *testing.T) {
	_, err := NewResolver(context.Background(), []config.IPSource{{Type: "carrier_pigeon"}})
	assert.Error(t, err)

	_, err = NewResolver(context.Background(), nil)
	assert.Error(t, err)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "address_changed 1.2.3.4 -> 5.6.7.8", changed("1.2.3.4", "5.6.7.8").String())
	assert.Equal(t, "unchanged 1.2.3.4", Event{Kind: Unchanged, New: addrA}.String())
	assert.Equal(t, "lookup_failed: unreachable", Event{Kind: LookupFailed, Err: errUnreachable}.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
