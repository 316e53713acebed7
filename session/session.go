// Package session persists the DNSPod login cookies between runs so the
// one-time code is only needed once per validity period.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dpddns/log"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// CookiePrefix selects the provider cookies that make up a session.
const CookiePrefix = "t_"

// Lifetime is the nominal validity of a remembered login.
const Lifetime = 30 * 24 * time.Hour

const expireKey = "expire_at"

// maxExpireAt is 9999-12-31T23:59:59Z in Unix seconds.
const maxExpireAt = 253402300799

type Session struct {
	Cookies  map[string]string
	ExpireAt time.Time
}

// New bundles session cookies with an expiry of now + Lifetime, truncated to
// the second precision of the session file.
func New(cookies map[string]string, now time.Time) *Session {
	return &Session{
		Cookies:  cookies,
		ExpireAt: now.Add(Lifetime).Truncate(time.Second),
	}
}

// IsValid reports whether s exists and has not expired at now.
func IsValid(s *Session, now time.Time) bool {
	return s != nil && now.Before(s.ExpireAt)
}

// MarshalJSON writes the flat file layout: cookie names mapped to values,
// plus expire_at as Unix seconds.
func (s *Session) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Cookies)+1)
	for k, v := range s.Cookies {
		m[k] = v
	}
	m[expireKey] = s.ExpireAt.Unix()
	return json.Marshal(m)
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&raw); err != nil {
		return err
	}

	exp, ok := raw[expireKey].(json.Number)
	if !ok {
		return fmt.Errorf("missing or non-numeric %s", expireKey)
	}
	expF, err := exp.Float64()
	if err != nil {
		return fmt.Errorf("bad %s: %w", expireKey, err)
	}
	if expF < 0 || expF > maxExpireAt {
		return fmt.Errorf("%s %v out of range", expireKey, exp)
	}
	delete(raw, expireKey)

	cookies := make(map[string]string, len(raw))
	for k, v := range raw {
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("cookie %q is not a string", k)
		}
		cookies[k] = str
	}

	if len(cookies) == 0 {
		return errors.New("no cookies")
	}

	s.Cookies = cookies
	// older files store fractional seconds
	s.ExpireAt = time.Unix(int64(expF), 0)
	return nil
}

// Filter returns the cookies whose name carries CookiePrefix.
func Filter(cookies map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range cookies {
		if strings.HasPrefix(k, CookiePrefix) {
			out[k] = v
		}
	}
	return out
}

// Store is a file-backed session store.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted session. A missing or malformed file yields a
// nil session and no error; only an unreadable file is reported.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	ctx = log.SWith(ctx, "path", s.path)

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.S(ctx).Debugw("no session persisted")
		return nil, nil
	}
	if err != nil {
		log.S(ctx).Warnw("failed reading session", zap.Error(err))
		return nil, fmt.Errorf("failed reading session: %w", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(b, sess); err != nil {
		log.S(ctx).Warnw("ignore malformed session", zap.Error(err))
		return nil, nil
	}

	log.S(ctx).Debugw("loaded session", "expire_at", sess.ExpireAt, "cookies", len(sess.Cookies))
	return sess, nil
}

// Save replaces the persisted session atomically: the data goes to a temp file
// in the same directory which is renamed over the old one, so a failed write
// leaves the previous session readable.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ctx = log.SWith(ctx, "path", s.path)

	b, err := json.Marshal(sess)
	if err != nil {
		log.S(ctx).Errorw("failed encoding session", zap.Error(err), log.Internal)
		return fmt.Errorf("failed encoding session: %w", err)
	}

	if err := writeFile(s.path, b, 0o600); err != nil {
		log.S(ctx).Warnw("failed writing session", zap.Error(err))
		return fmt.Errorf("failed writing session: %w", err)
	}

	log.S(ctx).Debugw("session saved", "expire_at", sess.ExpireAt)
	return nil
}

func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// no-op once the rename succeeded
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
