package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	"dpddns/common"
	"dpddns/config"
	"dpddns/log"

	"go.uber.org/zap"
)

const defaultEchoSize = 16

// echo reads the caller's address from a raw TCP echo service such as
// ns1.dnspod.net:6666, which writes the peer address and closes.
type echo struct {
	config.IPSourceEchoConfig `mapstructure:",squash"`

	addr string
}

func (s *echo) Typename() string {
	return "echo"
}

func (s *echo) fail(err error) error {
	return &NetworkError{Source: s.Typename(), Addr: s.addr, Err: err}
}

func (s *echo) Lookup(ctx context.Context) (result net.IP, err error) {
	timeout := time.Duration(s.Timeout)
	ctx = log.SWith(ctx, "addr", s.addr, "timeout", timeout)

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

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return nil, s.fail(fmt.Errorf("connection failed: %w", err))
	}

	defer func() {
		if err := conn.Close(); err != nil {
			log.S(ctx).Debugw("close connection failed", zap.Error(err))
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	// the reply may span several segments: read until EOF or Size bytes
	buf := make([]byte, s.Size)
	n, err := io.ReadFull(conn, buf)
	if err != nil && !(n > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF))) {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return nil, s.fail(fmt.Errorf("failed receiving response: %w", err))
	}

	data := buf[:n]
	ipString := strings.TrimSpace(string(data))
	nip, err := netip.ParseAddr(ipString)
	if err != nil {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data), zap.Error(err))
		return nil, s.fail(fmt.Errorf("no IP found in response: %w", err))
	}

	return nip.Unmap().AsSlice(), nil
}

func newEcho(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "echo")

	s := &echo{addr: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if _, _, err := net.SplitHostPort(s.addr); err != nil {
		log.S(ctx).Errorw("bad echo address", "addr", s.addr, zap.Error(err))
		return nil, fmt.Errorf(`bad echo address: %w`, err)
	}

	if s.Size <= 0 {
		s.Size = defaultEchoSize
	}

	return s, nil
}
