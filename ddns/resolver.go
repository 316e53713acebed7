package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"

	"dpddns/config"
	"dpddns/log"
	"dpddns/sources"

	"go.uber.org/zap"
)

// Resolver finds the public IPv4 address by asking the configured sources in
// order. Each source is asked at most once per call.
type Resolver struct {
	sources []sources.Interface
}

func (r *Resolver) Resolve(ctx context.Context) (ip net.IP, err error) {
	ctx = log.SWith(ctx, log.Stage("resolve"))

	sourceType := ""
	for _, source := range r.sources {
		var found net.IP
		found, err = source.Lookup(ctx)
		if err != nil {
			continue
		}

		if found.To4() == nil {
			log.S(ctx).Warnw("source returned non IPv4 address", log.IP(found), "source_type", source.Typename())
			err = fmt.Errorf("%s source returned non IPv4 address %s", source.Typename(), found)
			continue
		}

		ip = found.To4()
		sourceType = source.Typename()
		break
	}

	if ip == nil {
		if err == nil {
			err = errors.New("no address source configured")
		}
		log.S(ctx).Errorw("all source failed, unable to get ip", zap.Error(err))
		return nil, err
	}

	log.S(ctx).Infow("resolved ip", log.IP(ip), "source_type", sourceType)
	return ip, nil
}

func NewResolver(ctx context.Context, c config.IPAddress) (*Resolver, error) {
	r := &Resolver{}

	for _, s := range c.Sources {
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

	return r, nil
}
