package sources

import (
	"cldpip/common"
	"cldpip/config"
	"cldpip/log"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"regexp"

	"go.uber.org/zap"
)

const maxReadSimple = 4 * 1024

var ipv4Regex = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\b`)

type simple struct {
	config.IPSourceSimpleConfig `mapstructure:",squash"`

	url string
}

func (s *simple) Typename() string {
	return "simple"
}

func (s *simple) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := s.Timeout.Or(config.DefaultSourceTimeout)

	client, err := wrapClientDialer(ctx, httpClient(ctx), ipv4Only)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.url, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tCtx, http.MethodGet, s.url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("new request failed: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`connection failed: %w`, err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.S(ctx).Warnw("unexpected status", "status", resp.Status)
		return netip.Addr{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadSimple))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`failed receiving response: %w`, err)
	}

	ipData := ipv4Regex.Find(data)
	if ipData == nil {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("no IP found in response")
	}

	addr, err := common.ParseIPv4(string(ipData))
	if err != nil {
		log.S(ctx).Errorw("found bad IP", "ip", string(ipData), zap.Error(err), log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: found bad IP: %w`, err)
	}

	return addr, nil
}

func newSimple(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "simple")

	if config.Source == "" {
		log.S(ctx).Errorw("missing url")
		return nil, fmt.Errorf("simple source needs an url")
	}

	s := &simple{url: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	return s, nil
}
