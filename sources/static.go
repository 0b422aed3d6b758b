package sources

import (
	"cldpip/common"
	"cldpip/config"
	"context"
	"fmt"
	"net/netip"
)

// static always reports the configured address.
type static netip.Addr

func (s static) Typename() string {
	return "static"
}

func (s static) Lookup(context.Context) (netip.Addr, error) {
	return netip.Addr(s), nil
}

func newStatic(_ context.Context, config config.IPSource) (Interface, error) {
	addr, err := common.ParseIPv4(config.Source)
	if err != nil {
		return nil, fmt.Errorf("bad static address %q: %w", config.Source, err)
	}
	return static(addr), nil
}
