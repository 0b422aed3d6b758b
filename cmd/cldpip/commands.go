package main

import (
	"cldpip/cldpip"
	"cldpip/common"
	"cldpip/config"
	"cldpip/ddns"
	"cldpip/log"
	"cldpip/metrics"
	"cldpip/notify"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type command struct {
	summary  string
	flags    func(fs *flag.FlagSet)
	override func(conf *config.Config)
	run      func(ctx context.Context, conf config.Config) int
}

var commandOrder = []string{"current", "info", "monitor"}

var commands = map[string]command{
	"current": {
		summary: "print the current public address",
		run:     runCurrent,
	},
	"info": {
		summary: "list the DNS records pointing at the current address",
		run:     runInfo,
	},
	"monitor": {
		summary:  "keep DNS records pointed at the current address",
		flags:    monitorFlags,
		override: monitorOverride,
		run:      runMonitor,
	},
}

var (
	checkDelay uint
	retryDelay uint
)

func monitorFlags(fs *flag.FlagSet) {
	fs.UintVar(&checkDelay, "check-delay", 0, "seconds between address checks (default from config, 300)")
	fs.UintVar(&retryDelay, "retry-delay", 0, "seconds between failed update attempts (default from config, 120)")
}

func monitorOverride(conf *config.Config) {
	if checkDelay > 0 {
		conf.Service.CheckInterval = common.Duration(time.Duration(checkDelay) * time.Second)
	}
	if retryDelay > 0 {
		conf.Service.RetryBackoff = common.Duration(time.Duration(retryDelay) * time.Second)
		if conf.Service.MaxBackoff < conf.Service.RetryBackoff {
			conf.Service.MaxBackoff = conf.Service.RetryBackoff
		}
	}
}

func newStore(ctx context.Context, conf config.Config) (ddns.Interface, error) {
	if err := conf.Validate(); err != nil {
		log.S(ctx).Errorw("invalid config", zap.Error(err))
		return nil, err
	}

	store, err := ddns.Providers["cloudflare"](ctx, conf.Provider)
	if err != nil {
		log.S(ctx).Errorw("cannot init record store", zap.Error(err))
		return nil, err
	}

	return store, nil
}

func resolve(ctx context.Context, conf config.Config) (*cldpip.Resolver, error) {
	resolver, err := cldpip.NewResolver(ctx, conf.Sources)
	if err != nil {
		log.S(ctx).Errorw("cannot init resolver", zap.Error(err))
		return nil, err
	}
	return resolver, nil
}

func runCurrent(ctx context.Context, conf config.Config) int {
	resolver, err := resolve(ctx, conf)
	if err != nil {
		return exitFailure
	}

	addr, err := resolver.Resolve(ctx)
	if err != nil {
		log.S(ctx).Errorw("cannot resolve current address", zap.Error(err))
		return exitFailure
	}

	fmt.Println(addr)
	return exitOK
}

func runInfo(ctx context.Context, conf config.Config) int {
	store, err := newStore(ctx, conf)
	if err != nil {
		return exitFailure
	}

	resolver, err := resolve(ctx, conf)
	if err != nil {
		return exitFailure
	}

	addr, err := resolver.Resolve(ctx)
	if err != nil {
		log.S(ctx).Errorw("cannot resolve current address", zap.Error(err))
		return exitFailure
	}

	records, err := store.ListRecordsByContent(ctx, addr)
	if err != nil {
		log.S(ctx).Errorw("cannot list records", zap.Error(err))
		return exitFailure
	}

	fmt.Printf("current address: %s\n", addr)
	if len(records) == 0 {
		fmt.Println("no record points at the current address")
		return exitOK
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tCONTENT\tPROXIED\tTTL\tID")
	for _, r := range records {
		proxied := "-"
		if r.Proxied != nil {
			proxied = strconv.FormatBool(*r.Proxied)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Name, r.Type, r.Content, proxied, r.TTL, r.ID)
	}
	if err := w.Flush(); err != nil {
		log.S(ctx).Errorw("failed writing output", zap.Error(err))
		return exitFailure
	}

	return exitOK
}

func runMonitor(ctx context.Context, conf config.Config) int {
	store, err := newStore(ctx, conf)
	if err != nil {
		return exitFailure
	}

	resolver, err := resolve(ctx, conf)
	if err != nil {
		return exitFailure
	}

	notifier, err := notify.New(ctx, conf.Notifier)
	if err != nil {
		log.S(ctx).Errorw("cannot init notifier", zap.Error(err))
		return exitFailure
	}

	var m *metrics.Metrics
	if conf.Metrics.Listen != "" {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := cldpip.NewPoller(resolver, time.Duration(conf.Service.CheckInterval)).WithMetrics(m)
	if _, err := poller.Seed(ctx); err != nil {
		return exitFailure
	}

	dispatcher := cldpip.NewDispatcher(m)
	reconciler := cldpip.NewReconciler(store,
		cldpip.WithNotifier(notifier, time.Duration(conf.Notifier.Timeout)),
		cldpip.WithMetrics(m),
		cldpip.WithBackoff(cldpip.Backoff{
			Initial: time.Duration(conf.Service.RetryBackoff),
			Max:     time.Duration(conf.Service.MaxBackoff),
			Factor:  conf.Service.BackoffFactor,
		}),
		cldpip.WithSupersede(conf.Service.Supersede),
	)

	log.S(ctx).Infow("monitoring",
		"check_interval", time.Duration(conf.Service.CheckInterval),
		"retry_backoff", time.Duration(conf.Service.RetryBackoff),
		"supersede", conf.Service.Supersede,
		"notify", notifier != nil)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gCtx, dispatcher)
	})
	g.Go(func() error {
		return reconciler.Run(gCtx, dispatcher)
	})
	if m != nil {
		g.Go(func() error {
			return m.Serve(gCtx, conf.Metrics.Listen)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.S(ctx).Errorw("monitor stopped", zap.Error(err))
		return exitFailure
	}

	log.S(ctx).Infow("shutting down")
	return exitOK
}
