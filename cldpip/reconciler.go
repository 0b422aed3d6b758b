package cldpip

import (
	"cldpip/config"
	"cldpip/ddns"
	"cldpip/log"
	"cldpip/metrics"
	"cldpip/notify"
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Backoff is the wait between failed attempts. Factor 1 keeps it fixed.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait after the n-th failed attempt, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	d := b.Initial
	if d <= 0 {
		d = config.DefaultRetryBackoff
	}

	if b.Factor > 1 && n > 1 {
		grown := float64(d) * math.Pow(b.Factor, float64(n-1))
		if grown >= float64(math.MaxInt64) {
			d = time.Duration(math.MaxInt64)
		} else {
			d = time.Duration(grown)
		}
	}

	if b.Max > 0 && d > b.Max {
		d = b.Max
	}

	return d
}

// Reconciler rewrites the records pointing at an old address until every
// one of them points at the new address.
type Reconciler struct {
	store         ddns.Interface
	notifier      notify.Interface
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	backoff       Backoff
	supersede     bool

	wait          func(ctx context.Context, d time.Duration) error
	notifications sync.WaitGroup
}

type Option func(r *Reconciler)

func WithNotifier(n notify.Interface, timeout time.Duration) Option {
	return func(r *Reconciler) {
		r.notifier = n
		r.notifyTimeout = timeout
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithBackoff(b Backoff) Option {
	return func(r *Reconciler) {
		r.backoff = b
	}
}

// WithSupersede lets queued address changes replace the target of a
// reconciliation that is still retrying.
func WithSupersede(enabled bool) Option {
	return func(r *Reconciler) {
		r.supersede = enabled
	}
}

func NewReconciler(store ddns.Interface, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:         store,
		notifyTimeout: config.DefaultNotifyTimeout,
		backoff:       Backoff{Initial: config.DefaultRetryBackoff, Factor: 1},
		wait:          sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.notifyTimeout <= 0 {
		r.notifyTimeout = config.DefaultNotifyTimeout
	}

	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run handles events from d one at a time until ctx is done or d is closed
// and drained.
func (r *Reconciler) Run(ctx context.Context, d *Dispatcher) error {
	ctx = log.SWith(ctx, log.Stage("reconcile"))
	defer r.Wait()

	for {
		e, err := d.Next(ctx)
		if errors.Is(err, ErrDispatcherClosed) {
			log.S(ctx).Infow("dispatcher closed")
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.Handle(ctx, d, e); err != nil {
			return err
		}
	}
}

// Wait blocks until pending notifications finish.
func (r *Reconciler) Wait() {
	r.notifications.Wait()
}

// Handle processes one event. d is consulted only when superseding is
// enabled and may be nil. The only error returned is ctx's.
func (r *Reconciler) Handle(ctx context.Context, d *Dispatcher, e Event) error {
	switch e.Kind {
	case Unchanged:
		log.S(ctx).Debugw("address unchanged", log.IP(e.New))
		return nil
	case LookupFailed:
		log.S(ctx).Warnw("address lookup failed", "last", e.Old.String(), zap.Error(e.Err))
		return nil
	case AddressChanged:
		log.S(ctx).Infow("address changed", log.Addr("old", e.Old), log.Addr("new", e.New))
		r.notify(ctx, e.Old, e.New)
		return r.Reconcile(ctx, d, e.Old, e.New)
	default:
		log.S(ctx).Errorw("unknown event kind", "kind", e.Kind, log.Internal)
		return nil
	}
}

func (r *Reconciler) notify(ctx context.Context, old, new netip.Addr) {
	if r.notifier == nil {
		return
	}

	r.notifications.Add(1)
	go func() {
		defer r.notifications.Done()

		nCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
		defer cancel()

		if err := r.notifier.Notify(nCtx, old, new); err != nil {
			r.metrics.Notification(metrics.Failure)
			log.S(ctx).Warnw("failed notify address change", zap.Error(err))
			return
		}

		r.metrics.Notification(metrics.Success)
		log.S(ctx).Debugw("address change notified")
	}()
}

// Reconcile rewrites every record whose content is old to new, retrying
// with backoff until an attempt completes without a failure.
func (r *Reconciler) Reconcile(ctx context.Context, d *Dispatcher, old, new netip.Addr) error {
	start := time.Now()
	elapsed := log.Elapsed("elapsed")
	stale := []netip.Addr{old}
	target := new

	for n := 1; ; n++ {
		ctx := log.SWith(ctx, log.Attempt(n), log.Addr("target", target))

		updated, err := r.attempt(ctx, stale, target)
		if err == nil {
			r.metrics.Attempt(metrics.Success)
			r.metrics.RecordsUpdated(updated)
			r.metrics.Converged(time.Since(start))
			log.S(ctx).Infow("records converged", "updated", updated, elapsed)
			return nil
		}

		if ddns.IsRejection(err) {
			r.metrics.Attempt(metrics.Rejected)
		} else {
			r.metrics.Attempt(metrics.Failure)
		}

		if r.supersede && d != nil {
			if e, ok := d.Supersede(); ok {
				log.S(ctx).Infow("target superseded", log.Addr("old", e.Old), log.Addr("new", e.New))
				r.notify(ctx, e.Old, e.New)
				stale = retarget(stale, target, e)
				target = e.New
			}
		}

		delay := r.backoff.Delay(n)
		log.S(ctx).Warnw("attempt failed, retrying", "backoff", delay, "updated", updated, errorClass(err), zap.Error(err))

		if err := r.wait(ctx, delay); err != nil {
			log.S(ctx).Infow("reconciliation abandoned", zap.Error(err))
			return err
		}
	}
}

// retarget returns the stale set after target is replaced by e.New.
func retarget(stale []netip.Addr, target netip.Addr, e Event) []netip.Addr {
	for _, addr := range []netip.Addr{target, e.Old} {
		if addr.IsValid() && !slices.Contains(stale, addr) {
			stale = append(stale, addr)
		}
	}

	return slices.DeleteFunc(stale, func(addr netip.Addr) bool {
		return addr == e.New
	})
}

func (r *Reconciler) attempt(ctx context.Context, stale []netip.Addr, target netip.Addr) (updated int, err error) {
	for _, addr := range stale {
		records, err := r.store.ListRecordsByContent(ctx, addr)
		if err != nil {
			return updated, fmt.Errorf("failed fetching records of %s: %w", addr, err)
		}

		if len(records) == 0 {
			log.S(ctx).Debugw("no record left", log.Addr("content", addr))
			continue
		}

		for _, record := range records {
			ctx := log.SWith(ctx, "record_id", record.ID, "domain", record.Name, "ns_type", record.Type)

			if err := r.store.UpdateRecord(ctx, record.Retarget(target)); err != nil {
				log.S(ctx).Warnw("failed update record", errorClass(err), zap.Error(err))
				return updated, fmt.Errorf("failed updating %s (%s): %w", record.Name, record.ID, err)
			}

			updated++
			log.S(ctx).Infow("record updated", log.Addr("old_ip", addr), log.IP(target))
		}
	}

	return updated, nil
}

func errorClass(err error) zap.Field {
	if ddns.IsRejection(err) {
		return log.Rejected
	}
	return log.Transport
}
