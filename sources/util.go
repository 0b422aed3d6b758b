package sources

import (
	"cldpip/common"
	"cldpip/log"
	"context"
	"fmt"
	"net"
	"net/http"
	"reflect"
)

type transportDialer func(ctx context.Context, network, addr string) (net.Conn, error)

// httpClient returns the client carried by ctx, or http.DefaultClient.
func httpClient(ctx context.Context) *http.Client {
	if ctxClient, ok := ctx.Value(common.HttpClientKey).(*http.Client); ok && ctxClient != nil {
		return ctxClient
	}
	return http.DefaultClient
}

// ipv4Only forces every connection of the wrapped dialer onto IPv4, so the
// lookup service sees the address we want to publish.
func ipv4Only(upstream transportDialer) transportDialer {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		switch network {
		case "tcp", "udp":
			network += "4"
		}

		return upstream(ctx, network, addr)
	}
}

func wrapClientDialer(ctx context.Context, client *http.Client, wrapperBuilder func(upstream transportDialer) transportDialer) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	transport := http.DefaultTransport.(*http.Transport)
	if client.Transport != nil {
		t, ok := client.Transport.(*http.Transport)
		if !ok {
			log.S(ctx).Errorw("found unknown custom http.Client.Transport",
				"transport_type", reflect.TypeOf(client.Transport).String())
			return nil, fmt.Errorf("unknown custom http.Client.Transport")
		}

		transport = t
	}

	transport = transport.Clone()
	dial := transport.DialContext
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	transport.DialContext = wrapperBuilder(dial)

	if transport.DialTLSContext != nil {
		transport.DialTLSContext = wrapperBuilder(transport.DialTLSContext)
	}

	clientCopy := *client
	clientCopy.Transport = transport
	return &clientCopy, nil
}
