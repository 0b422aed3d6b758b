package cldpip

import (
	"cldpip/common"
	"cldpip/config"
	"cldpip/log"
	"cldpip/sources"
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"
)

// AddressResolver returns the current public IPv4 address.
type AddressResolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// Resolver tries its sources in order and returns the first valid answer.
type Resolver struct {
	sources []sources.Interface
}

func (r *Resolver) Resolve(ctx context.Context) (addr netip.Addr, err error) {
	ctx = log.SWith(ctx, log.Stage("resolve"))

	var errs []error
	for i, source := range r.sources {
		ctx := log.SWith(ctx, "source_type", source.Typename(), "source_index", i)

		addr, err = source.Lookup(ctx)
		if err == nil {
			addr, err = common.AsIPv4(addr)
		}
		if err != nil {
			log.S(ctx).Debugw("source failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", source.Typename(), err))
			continue
		}

		log.S(ctx).Debugw("resolved ip", log.IP(addr))
		return addr, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no source configured"))
	}

	log.S(ctx).Warnw("all source failed, unable to get ip", "count", len(r.sources))
	return netip.Addr{}, fmt.Errorf("all source failed: %w", errors.Join(errs...))
}

// NewResolver builds a Resolver out of the configured sources.
func NewResolver(ctx context.Context, c []config.IPSource) (*Resolver, error) {
	r := &Resolver{}

	for _, s := range c {
		ctx := log.SWith(ctx, log.Stage("init:source"), "type", s.Type, "source", s.Source)
		create, ok := sources.Sources[s.Type]
		if !ok {
			log.S(ctx).Errorw("unknown source type")
			return nil, fmt.Errorf("unknown source type %q", s.Type)
		}

		source, err := create(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("failed creating source: %w", err)
		}

		r.sources = append(r.sources, source)
	}

	if len(r.sources) == 0 {
		log.S(ctx).Errorw("no source configured")
		return nil, fmt.Errorf("no source configured")
	}

	return r, nil
}
