package sources

import (
	"cldpip/config"
	"context"
	"net/netip"
)

// Interface looks up the host's public IPv4 address.
type Interface interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	Typename() string
}

var Sources = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"simple":   newSimple,
	"cf_trace": newCloudflareTrace,
	"quorum":   newQuorum,
	"static":   newStatic,
}
