package metrics

import (
	"cldpip/log"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Handler serves the collectors of m in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes m on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ctx = log.SWith(ctx, log.Stage("metrics"), "listen", addr)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.S(ctx).Errorw("failed listen", zap.Error(err))
		return fmt.Errorf("failed listen on %s: %w", addr, err)
	}

	return m.serve(ctx, l)
}

func (m *Metrics) serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sCtx); err != nil {
			log.S(ctx).Warnw("failed shutdown", zap.Error(err))
		}
	}()

	log.S(ctx).Infow("serving metrics", "addr", l.Addr().String())

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.S(ctx).Errorw("metrics server failed", zap.Error(err))
		return fmt.Errorf("metrics server failed: %w", err)
	}

	return nil
}
