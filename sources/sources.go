// Package sources looks up the caller's public address. Each source type is
// registered in Sources and built from a config.IPSource entry.
package sources

import (
	"context"
	"fmt"
	"net"

	"dpddns/config"
)

type Interface interface {
	Lookup(ctx context.Context) (net.IP, error)
	Typename() string
}

var Sources = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"echo":   newEcho,
	"simple": newSimple,
}

// NetworkError means an address source could not be reached, or answered
// with something that is not an address.
type NetworkError struct {
	Source string
	Addr   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s source %s: %v", e.Source, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
