package sources

import (
	"bufio"
	"cldpip/common"
	"cldpip/config"
	"cldpip/log"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"sync"

	"go.uber.org/zap"
)

const quorumRequests = 3

// quorum asks up to three lookup services at once and only trusts an address
// that two of them agree on.
type quorum struct {
	config.IPSourceQuorumConfig `mapstructure:",squash"`

	urls []*url.URL
}

func (s *quorum) Typename() string {
	return "quorum"
}

func (s *quorum) Lookup(ctx context.Context) (netip.Addr, error) {
	timeout := s.Timeout.Or(config.DefaultSourceTimeout)
	ctx = log.SWith(ctx, "services", len(s.urls), "timeout", timeout)

	client, err := wrapClientDialer(ctx, httpClient(ctx), ipv4Only)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	results := make(chan result, quorumRequests)

	var wg sync.WaitGroup
	wg.Add(quorumRequests)
	for i := 0; i < quorumRequests; i++ {
		u := s.urls[i%len(s.urls)]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = s.fetch(ctx, client, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	answered := 0
	var errs []error
	var first netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		answered++
		if !first.IsValid() {
			first = r.addr
			continue
		}
		if first == r.addr {
			log.S(ctx).Debugw("got ip", log.IP(first))
			return first, nil
		}
	}

	if answered < 2 {
		log.S(ctx).Warnw("not enough services responded", "answered", answered)
		return netip.Addr{}, fmt.Errorf("not enough services responded without errors: %w", errors.Join(errs...))
	}

	log.S(ctx).Warnw("services did not agree on the address")
	return netip.Addr{}, errors.New("lookup services did not agree on the address")
}

func (s *quorum) fetch(ctx context.Context, client *http.Client, u *url.URL) (netip.Addr, error) {
	ctx = log.SWith(ctx, "url", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Debugw("connection failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	addr, err := common.ParseIPv4(line)
	if err != nil {
		log.S(ctx).Debugw("bad response", "line", line, zap.Error(err))
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}

	return addr, nil
}

func newQuorum(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "quorum")

	s := &quorum{}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	raw := s.URLs
	if config.Source != "" {
		raw = append([]string{config.Source}, raw...)
	}

	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			log.S(ctx).Errorw("bad url", "url", r, zap.Error(err))
			return nil, fmt.Errorf("bad url %q: %w", r, err)
		}
		s.urls = append(s.urls, u)
	}

	if len(s.urls) == 0 {
		log.S(ctx).Errorw("no lookup services configured")
		return nil, fmt.Errorf("quorum source needs at least one url")
	}

	return s, nil
}
