package common

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestWeakDecodeMap(t *testing.T) {
	var out struct {
		ID      string   `mapstructure:"id"`
		Count   int      `mapstructure:"count"`
		Family  Family   `mapstructure:"type"`
		Timeout Duration `mapstructure:"timeout"`
	}

	in := map[string]any{"id": 123, "count": "7", "type": "v6", "timeout": "1m30s", "extra": true}
	if err := WeakDecodeMap(in, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.ID != "123" || out.Count != 7 || out.Family != IPv6 || time.Duration(out.Timeout) != 90*time.Second {
		t.Fatalf("unexpected result %+v", out)
	}

	if err := WeakDecodeMap(map[string]any{"timeout": "-1s"}, &out); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if err := WeakDecodeMap(map[string]any{"type": "ipx"}, &out); err == nil {
		t.Fatal("expected error for bad family")
	}
}

func TestFamilyNetwork(t *testing.T) {
	if IPv4.Network("tcp") != "tcp4" || IPv6.Network("tcp") != "tcp6" || Family(9).Network("tcp") != "tcp" {
		t.Fatal("unexpected network names")
	}
}

func TestHTTPClient(t *testing.T) {
	if HTTPClient(context.Background()) != http.DefaultClient {
		t.Fatal("expected default client")
	}

	custom := &http.Client{Timeout: time.Second}
	if HTTPClient(WithHTTPClient(context.Background(), custom)) != custom {
		t.Fatal("expected client from context")
	}
}
