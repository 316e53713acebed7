// Package dnspod talks to the DNSPod API: authenticated calls with session
// reuse, domain and record lookup, and record updates.
package dnspod

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dpddns/common"
	"dpddns/config"
	"dpddns/log"
	"dpddns/session"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	successCode      = "1"
	maxResponse      = 1 << 20
	defaultUserAgent = "dpddns/1"
)

// Params are per-call API parameters. Empty values are treated as absent.
type Params map[string]string

// Payload is a decoded API response.
type Payload map[string]any

// Decode weakly decodes the object under key into out.
func (p Payload) Decode(key string, out any) error {
	v, ok := p[key]
	if !ok || v == nil {
		return fmt.Errorf("missing %q", key)
	}
	return common.WeakDecodeMap(v, out)
}

// CodePrompt supplies the one-time code for a fresh login.
type CodePrompt func(ctx context.Context) (string, error)

// SessionStore persists the login session between runs.
type SessionStore interface {
	Load(ctx context.Context) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
}

type Options struct {
	Account  config.Account
	Provider config.Provider
	// Store may be nil, then every call logs in fresh.
	Store  SessionStore
	Prompt CodePrompt
	Now    func() time.Time
}

type Client struct {
	account   config.Account
	endpoint  string
	lang      string
	userAgent string
	timeout   time.Duration

	store  SessionStore
	prompt CodePrompt
	now    func() time.Time

	loaded  bool
	session *session.Session
}

func New(opts Options) *Client {
	c := &Client{
		account:   opts.Account,
		endpoint:  opts.Provider.Endpoint,
		lang:      opts.Provider.Lang,
		userAgent: opts.Provider.UserAgent,
		timeout:   time.Duration(opts.Provider.Timeout),
		store:     opts.Store,
		prompt:    opts.Prompt,
		now:       opts.Now,
	}

	if c.endpoint == "" {
		c.endpoint = config.DefaultEndpoint
	}
	if !strings.HasSuffix(c.endpoint, "/") {
		c.endpoint += "/"
	}
	if c.lang == "" {
		c.lang = config.DefaultLang
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c
}

func compact(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func (c *Client) form(params Params) url.Values {
	form := url.Values{}
	for k, v := range compact(params) {
		form.Set(k, v)
	}

	form.Set("login_email", c.account.Email)
	form.Set("login_password", c.account.Password)
	form.Set("format", "json")
	form.Set("lang", c.lang)
	form.Set("error_on_empty", "no")
	return form
}

// currentSession loads the persisted session on first use.
func (c *Client) currentSession(ctx context.Context) *session.Session {
	if c.loaded || c.store == nil {
		return c.session
	}
	c.loaded = true

	sess, err := c.store.Load(ctx)
	if err != nil {
		log.S(ctx).Warnw("cannot load session, login required", zap.Error(err))
		return nil
	}

	c.session = sess
	return sess
}

func (c *Client) code(ctx context.Context) (string, error) {
	if c.prompt == nil {
		log.S(ctx).Errorw("login needs a one-time code but no prompt is available")
		return "", ErrCodeRequired
	}

	code, err := c.prompt(ctx)
	if err != nil {
		log.S(ctx).Warnw("failed reading one-time code", zap.Error(err))
		return "", fmt.Errorf("failed reading one-time code: %w", err)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		log.S(ctx).Warnw("empty one-time code")
		return "", ErrCodeRequired
	}

	return code, nil
}

// remember persists the session cookies issued for a fresh login. Failures
// only cost a new login next time, so they are logged and dropped.
func (c *Client) remember(ctx context.Context, cookies []*http.Cookie, now time.Time) {
	all := make(map[string]string, len(cookies))
	for _, cookie := range cookies {
		all[cookie.Name] = cookie.Value
	}

	tokens := session.Filter(all)
	if len(tokens) == 0 {
		log.S(ctx).Debugw("no session cookie issued")
		return
	}

	sess := session.New(tokens, now)
	c.session = sess
	c.loaded = true

	if c.store == nil {
		return
	}

	if err := c.store.Save(ctx, sess); err != nil {
		log.S(ctx).Warnw("failed persisting session, will login again next run", zap.Error(err))
		return
	}

	log.S(ctx).Infow("session remembered", "expire_at", sess.ExpireAt)
}

// Call performs the API operation op. It reuses the stored session when it is
// still valid, otherwise logs in with a one-time code (for OTP accounts) and
// remembers the issued session.
func (c *Client) Call(ctx context.Context, op string, params Params) (Payload, error) {
	ctx = log.With(ctx, log.Op(op))

	now := c.now()
	sess := c.currentSession(ctx)
	fresh := !session.IsValid(sess, now)

	form := c.form(params)
	if fresh && c.account.OTP {
		code, err := c.code(ctx)
		if err != nil {
			return nil, err
		}
		form.Set("login_code", code)
		form.Set("login_remember", "yes")
	}

	if c.timeout > 0 {
		tCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		ctx = tCtx
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+op, strings.NewReader(form.Encode()))
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	if !fresh {
		for name, value := range sess.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	log.S(ctx).Debugw("calling api", "fresh_login", fresh, log.Redacted("login_password"))

	resp, err := common.HTTPClient(ctx).Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}

	if fresh {
		c.remember(ctx, resp.Cookies(), now)
	}

	return decode(ctx, op, resp.StatusCode, body)
}

func decode(ctx context.Context, op string, httpStatus int, body []byte) (Payload, error) {
	var payload Payload
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	if err := d.Decode(&payload); err != nil {
		log.S(ctx).Warnw("unreadable response", "http_status", httpStatus, log.ByteField("body", body), zap.Error(err))
		return nil, &ProviderError{Op: op, Body: body}
	}

	var status struct {
		Code    string `mapstructure:"code"`
		Message string `mapstructure:"message"`
	}
	if err := payload.Decode("status", &status); err != nil || status.Code == "" {
		log.S(ctx).Warnw("response without status", "http_status", httpStatus, log.ByteField("body", body), zap.Error(err))
		return nil, &ProviderError{Op: op, Body: body}
	}

	if status.Code != successCode {
		log.S(ctx).Warnw("unsuccessful call", "code", status.Code, "message", status.Message, log.ByteField("body", body))
		return nil, &ProviderError{Op: op, Code: status.Code, Message: status.Message, Body: body}
	}

	return payload, nil
}
