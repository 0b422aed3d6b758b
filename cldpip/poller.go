package cldpip

import (
	"cldpip/config"
	"cldpip/log"
	"cldpip/metrics"
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// Poller owns the last known address and turns each lookup into an Event.
type Poller struct {
	resolver AddressResolver
	interval time.Duration
	metrics  *metrics.Metrics

	last netip.Addr
	now  func() time.Time
}

func NewPoller(resolver AddressResolver, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = config.DefaultCheckInterval
	}

	return &Poller{
		resolver: resolver,
		interval: interval,
		now:      time.Now,
	}
}

func (p *Poller) WithMetrics(m *metrics.Metrics) *Poller {
	p.metrics = m
	return p
}

// Last returns the last known address, invalid before Seed.
func (p *Poller) Last() netip.Addr {
	return p.last
}

// Seed performs the initial lookup.
func (p *Poller) Seed(ctx context.Context) (netip.Addr, error) {
	ctx = log.SWith(ctx, log.Stage("seed"))

	addr, err := p.resolver.Resolve(ctx)
	if err != nil {
		log.S(ctx).Errorw("failed resolving initial address", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("failed resolving initial address: %w", err)
	}

	p.last = addr
	log.S(ctx).Infow("initial address", log.IP(addr))

	return addr, nil
}

// Tick runs one poll and reports its outcome. An unseeded poller is seeded
// and reports Unchanged.
func (p *Poller) Tick(ctx context.Context) Event {
	at := p.now()

	addr, err := p.resolver.Resolve(ctx)
	if err != nil {
		p.metrics.Poll(metrics.Failure)
		return Event{Kind: LookupFailed, Old: p.last, Err: err, At: at}
	}

	if !p.last.IsValid() || addr == p.last {
		p.last = addr
		p.metrics.Poll(metrics.Same)
		return Event{Kind: Unchanged, Old: addr, New: addr, At: at}
	}

	old := p.last
	p.last = addr
	p.metrics.Poll(metrics.Changed)
	p.metrics.Changed(at)

	return Event{Kind: AddressChanged, Old: old, New: addr, At: at}
}

// Run polls every interval and emits each outcome until ctx is done.
func (p *Poller) Run(ctx context.Context, d *Dispatcher) error {
	ctx = log.SWith(ctx, log.Stage("poll"), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.S(ctx).Infow("polling started", log.IP(p.last))

	for {
		select {
		case <-ctx.Done():
			log.S(ctx).Infow("polling stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Emit(p.Tick(ctx))
		}
	}
}
