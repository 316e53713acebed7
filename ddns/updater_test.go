package ddns

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"dpddns/config"
	"dpddns/dnspod"
	"dpddns/dnspod/dnspodtest"
	"dpddns/session"
	"dpddns/sources"
)

type staticIP string

func (s staticIP) Resolve(context.Context) (net.IP, error) {
	return net.ParseIP(string(s)).To4(), nil
}

type failingIP struct{}

func (failingIP) Resolve(context.Context) (net.IP, error) {
	return nil, &sources.NetworkError{Source: "echo", Addr: "ns1.dnspod.net:6666", Err: errors.New("connection refused")}
}

var managed = config.Domain{Domain: "example.com", Subdomain: "home"}

// newScenario serves domain 123 with a single A record home -> 1.2.3.4 on
// line 默认, and returns an updater whose client holds a valid session.
func newScenario(t *testing.T, ip IPResolver) (*Updater, *dnspodtest.Server) {
	t.Helper()

	srv := dnspodtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddDomain("example.com", "123")
	srv.SetRecords("123", map[string]string{"id": "r1", "type": "A", "name": "home", "value": "1.2.3.4", "line": "默认"})

	store := session.NewStore(filepath.Join(t.TempDir(), "ddns.cookies"))
	sess := session.New(map[string]string{"t_uid": "42"}, time.Now())
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	client := dnspod.New(dnspod.Options{
		Account:  config.Account{Email: "joker@example.com", Password: "hunter2", OTP: true},
		Provider: config.Provider{Endpoint: srv.Endpoint()},
		Store:    store,
		Prompt: func(context.Context) (string, error) {
			t.Fatal("unexpected one-time code prompt")
			return "", nil
		},
	})

	return NewUpdater(ip, dnspod.NewRecords(client), managed), srv
}

func TestUpdateChangedIP(t *testing.T) {
	u, srv := newScenario(t, staticIP("5.6.7.8"))

	state, err := u.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state != Done || u.State() != Done {
		t.Fatalf("state = %s", state)
	}

	updates := srv.CallsTo(dnspod.OpRecordDdns)
	if len(updates) != 1 {
		t.Fatalf("got %d update calls, want 1", len(updates))
	}
	want := map[string]string{
		"domain_id":   "123",
		"record_id":   "r1",
		"sub_domain":  "home",
		"record_line": "默认",
		"value":       "5.6.7.8",
	}
	for k, v := range want {
		if got := updates[0].Form.Get(k); got != v {
			t.Errorf("update %s = %q, want %q", k, got, v)
		}
	}
}

func TestUpdateUnchangedIP(t *testing.T) {
	u, srv := newScenario(t, staticIP("1.2.3.4"))

	state, err := u.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state != Done {
		t.Fatalf("state = %s", state)
	}
	if n := len(srv.CallsTo(dnspod.OpRecordDdns)); n != 0 {
		t.Fatalf("got %d update calls, want 0", n)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	u, srv := newScenario(t, staticIP("5.6.7.8"))

	for i := 0; i < 3; i++ {
		if state, err := u.Run(context.Background()); err != nil || state != Done {
			t.Fatalf("run %d: %s, %v", i, state, err)
		}
		if n := len(srv.CallsTo(dnspod.OpRecordDdns)); n != 1 {
			t.Fatalf("after run %d: %d update calls, want 1", i, n)
		}
	}

	if n := len(srv.CallsTo(dnspod.OpDomainInfo)); n != 3 {
		t.Fatalf("domain looked up %d times, want once per run", n)
	}
}

func TestUpdateRecordMissing(t *testing.T) {
	u, srv := newScenario(t, staticIP("5.6.7.8"))
	srv.SetRecords("123", map[string]string{"id": "r2", "type": "A", "name": "www", "value": "1.2.3.4", "line": "默认"})

	state, err := u.Run(context.Background())
	var nf *dnspod.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if state != Failed || u.State() != Failed {
		t.Fatalf("state = %s", state)
	}
	if n := len(srv.CallsTo(dnspod.OpRecordDdns)); n != 0 {
		t.Fatalf("got %d update calls", n)
	}
}

func TestUpdateProviderError(t *testing.T) {
	u, srv := newScenario(t, staticIP("5.6.7.8"))
	srv.SetStatus("7")

	state, err := u.Run(context.Background())
	var perr *dnspod.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if perr.Code != "7" {
		t.Fatalf("code = %q", perr.Code)
	}
	if state != Failed {
		t.Fatalf("state = %s", state)
	}
}

func TestUpdateIPFailure(t *testing.T) {
	u, srv := newScenario(t, failingIP{})

	state, err := u.Run(context.Background())
	var nerr *sources.NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if state != Failed {
		t.Fatalf("state = %s", state)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Fatalf("provider called %d times after ip failure", n)
	}
}

type fakeSource struct {
	name string
	ip   net.IP
	err  error
	hits int
}

func (s *fakeSource) Typename() string { return s.name }

func (s *fakeSource) Lookup(context.Context) (net.IP, error) {
	s.hits++
	return s.ip, s.err
}

func TestResolverFallback(t *testing.T) {
	broken := &fakeSource{name: "echo", err: &sources.NetworkError{Source: "echo", Err: errors.New("refused")}}
	v6 := &fakeSource{name: "simple", ip: net.ParseIP("2001:db8::1")}
	good := &fakeSource{name: "simple", ip: net.ParseIP("5.6.7.8")}
	unused := &fakeSource{name: "simple", ip: net.ParseIP("9.9.9.9")}

	r := &Resolver{sources: []sources.Interface{broken, v6, good, unused}}
	ip, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ip.String() != "5.6.7.8" || len(ip) != net.IPv4len {
		t.Fatalf("ip = %v", ip)
	}
	if broken.hits != 1 || good.hits != 1 || unused.hits != 0 {
		t.Fatalf("hits = %d/%d/%d", broken.hits, good.hits, unused.hits)
	}
}

func TestResolverAllFail(t *testing.T) {
	last := &sources.NetworkError{Source: "echo", Err: errors.New("timeout")}
	r := &Resolver{sources: []sources.Interface{
		&fakeSource{name: "simple", err: errors.New("first")},
		&fakeSource{name: "echo", err: last},
	}}

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, last) {
		t.Fatalf("err = %v, want last source error", err)
	}

	if _, err := (&Resolver{}).Resolve(context.Background()); err == nil {
		t.Fatal("expected error without sources")
	}
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(context.Background(), config.IPAddress{Sources: []config.IPSource{
		{Type: "echo", Source: config.DefaultEchoAddress},
		{Type: "simple", Source: "https://ip.example.com", Config: map[string]any{"type": "ipv4"}},
	}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if len(r.sources) != 2 || r.sources[0].Typename() != "echo" || r.sources[1].Typename() != "simple" {
		t.Fatalf("sources = %v", r.sources)
	}

	if _, err := NewResolver(context.Background(), config.IPAddress{Sources: []config.IPSource{{Type: "carrier-pigeon"}}}); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestStateString(t *testing.T) {
	if Done.String() != "done" || Failed.String() != "failed" || State(42).String() != "unknown<42>" {
		t.Fatal("unexpected state names")
	}
}
