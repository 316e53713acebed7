package sources

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"time"

	"dpddns/common"
	"dpddns/config"
	"dpddns/log"

	"go.uber.org/zap"
)

const maxReadSimple = 4 * 1024

var ipRegex = []*regexp.Regexp{
	common.IPv4: regexp.MustCompile(`(?:[0-9]{1,3}\.){3}[0-9]{1,3}`),
	common.IPv6: regexp.MustCompile(`[0-9A-Fa-f]{0,4}(?::[0-9A-Fa-f]{0,4}){2,7}(?:(?:[0-9]{1,3}\.){3}[0-9]{1,3})?`),
}

// simple fetches a web page that prints the caller's address, e.g.
// https://ip.3322.net, and takes the first address of the configured family.
type simple struct {
	config.IPSourceSimpleConfig `mapstructure:",squash"`

	url string
}

func (s *simple) Typename() string {
	return "simple"
}

func (s *simple) fail(err error) error {
	return &NetworkError{Source: s.Typename(), Addr: s.url, Err: err}
}

func (s *simple) wrapDialer(upstream transportDialer) transportDialer {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return upstream(ctx, s.Type.Network(network), addr)
	}
}

func (s *simple) Lookup(ctx context.Context) (result net.IP, err error) {
	timeout := time.Duration(s.Timeout)
	ctx = log.SWith(ctx, "url", s.url, "family", s.Type, "timeout", timeout)

	client, err := wrapClientDialer(ctx, common.HTTPClient(ctx), s.wrapDialer)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	if s.Timeout > 0 {
		tCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx = tCtx
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return nil, s.fail(fmt.Errorf("new request failed: %w", err))
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return nil, s.fail(fmt.Errorf(`connection failed: %w`, err))
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.S(ctx).Warnw("unexpected status", "status", resp.Status)
		return nil, s.fail(fmt.Errorf("http request returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadSimple))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return nil, s.fail(fmt.Errorf(`failed receiving response: %w`, err))
	}

	for _, candidate := range ipRegex[s.Type].FindAll(data, -1) {
		nip, err := netip.ParseAddr(string(candidate))
		if err != nil || nip.Zone() != "" {
			continue
		}

		switch {
		case s.Type == common.IPv4 && (nip.Is4() || nip.Is4In6()):
			return nip.Unmap().AsSlice(), nil
		case s.Type == common.IPv6 && nip.Is6() && !nip.Is4In6():
			return nip.AsSlice(), nil
		}
	}

	log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
	return nil, s.fail(fmt.Errorf("no IP found in response"))
}

func newSimple(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "simple")

	s := &simple{url: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	return s, nil
}
