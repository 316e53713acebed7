package common

import (
	"context"
	"net/http"
)

type httpClientKeyType struct{}

// HttpClientKey carries a *http.Client override, used by tests and by callers
// that need a proxy or custom transport.
var HttpClientKey httpClientKeyType

func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, HttpClientKey, client)
}

// HTTPClient returns the client stored in ctx, or http.DefaultClient.
func HTTPClient(ctx context.Context) *http.Client {
	if client, _ := ctx.Value(HttpClientKey).(*http.Client); client != nil {
		return client
	}

	return http.DefaultClient
}
