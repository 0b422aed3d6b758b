package sources

import (
	"cldpip/common"
	"cldpip/config"
	"cldpip/log"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

const maxReadCloudflareTrace = 1024
const defaultCloudflareDomain = "www.cloudflare.com"

type cloudflareTrace struct {
	config.IPSourceCloudflareTraceConfig `mapstructure:",squash"`

	host string
}

func (s *cloudflareTrace) Typename() string {
	return "cf_trace"
}

func (s *cloudflareTrace) wrapDialer(upstream transportDialer) transportDialer {
	upstream = ipv4Only(upstream)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if s.ForceAddress != "" {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			addr = net.JoinHostPort(s.ForceAddress, port)
		}

		return upstream(ctx, network, addr)
	}
}

func (s *cloudflareTrace) Lookup(ctx context.Context) (result netip.Addr, err error) {
	timeout := s.Timeout.Or(config.DefaultSourceTimeout)

	ctx = log.SWith(ctx,
		"host", s.host,
		"force_addr", s.ForceAddress,
		"timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	client, err := wrapClientDialer(ctx, httpClient(ctx), s.wrapDialer)
	if err != nil {
		return netip.Addr{}, err
	}

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("https://%s/cdn-cgi/trace", s.host)

	req, err := http.NewRequestWithContext(tCtx, http.MethodGet, url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("new request failed: %w", err)
	}

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

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadCloudflareTrace))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`failed receiving response: %w`, err)
	}

	ipString := ""
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "ip=") {
			ipString = strings.TrimSpace(strings.TrimPrefix(line, "ip="))
			break
		}
	}

	if ipString == "" {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("no IP found in response")
	}

	addr, err := common.ParseIPv4(ipString)
	if err != nil {
		log.S(ctx).Warnw("found bad IP", "ip", ipString, zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`found bad IP: %w`, err)
	}

	return addr, nil
}

func newCloudflareTrace(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "cf_trace")

	source := config.Source
	if source == "" {
		source = defaultCloudflareDomain
	}

	host, isIP := common.DetectNormalizeAddr(source)
	s := &cloudflareTrace{host: host}

	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if !s.IPHost && isIP {
		s.ForceAddress = s.host
		s.host = defaultCloudflareDomain
	}

	if strings.Contains(s.host, ":") && !strings.Contains(s.host, "]") {
		if _, _, err := net.SplitHostPort(s.host); err != nil {
			s.host = fmt.Sprintf("[%s]", s.host)
		}
	}

	return s, nil
}
