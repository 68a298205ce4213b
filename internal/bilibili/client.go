package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/shirayuki/bilisync/internal/httpclient"
)

// Client wraps the ambient resilient httpclient.Client with bilibili-specific
// concerns: credential cookie injection, the Referer header bilibili's
// anti-scraping layer expects, JSON envelope validation, and a
// leaky-bucket rate limiter shared across every outgoing request.
type Client struct {
	inner   *httpclient.Client
	limiter *RateLimiter
	logger  *slog.Logger
}

// Config configures Client construction.
type Config struct {
	// ProxyURL, if set, routes every outgoing request through a SOCKS5 or
	// HTTP(S) proxy (SPEC_FULL.md Part D.5).
	ProxyURL string
	// RateLimit bounds outgoing requests; zero disables limiting.
	RateLimit RateLimitConfig
	Logger    *slog.Logger
}

// NewClient builds a Client. An invalid ProxyURL is a configuration error
// surfaced at startup rather than silently ignored.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Logger = cfg.Logger
	httpCfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	if cfg.ProxyURL != "" {
		transport, err := transportForProxy(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("bilibili: configure proxy: %w", err)
		}
		httpCfg.BaseClient = &http.Client{Timeout: httpCfg.Timeout, Transport: transport}
	}

	return &Client{
		inner:   httpclient.New(httpCfg),
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  cfg.Logger,
	}, nil
}

// transportForProxy builds an http.Transport that dials through a SOCKS5 or
// HTTP(S) proxy URL, using golang.org/x/net/proxy so SOCKS5 is supported
// alongside the stdlib's native HTTP(S) CONNECT proxying.
func transportForProxy(rawURL string) (*http.Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return &http.Transport{Proxy: http.ProxyURL(u)}, nil
	}
	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("build proxy dialer: %w", err)
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}, nil
}

// envelope is the {code, message, data} shape every bilibili JSON endpoint
// returns.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRaw issues req with credential cookies attached and returns the raw
// response body, bypassing envelope validation (used for the correspond
// page, which returns HTML, not JSON).
func (c *Client) doRaw(req *http.Request, cred Credential) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	attachCredential(req, cred)

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	return body, nil
}

// doEnvelope issues req, attaches cred, decodes the bilibili JSON envelope,
// and classifies a non-zero code into the appropriate sentinel error. On
// success it returns the response (headers only remain valid; body is
// already drained) and the decoded envelope as a generic map for callers
// that need to pull specific fields (e.g. Set-Cookie + data.refresh_token).
func (c *Client) doEnvelope(req *http.Request, cred Credential) (*http.Response, map[string]any, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, err
	}
	attachCredential(req, cred)

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if env.Code != 0 {
		return nil, nil, newAPIError(env.Code, env.Message)
	}

	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return resp, generic, nil
}

// GetJSON issues a signed GET request against a WBI-protected endpoint and
// decodes its data field into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params []KV, cred Credential, mixinKey string, out any) error {
	signed := SignQuery(params, mixinKey, time.Now())
	q := url.Values{}
	for _, kv := range signed {
		q.Set(kv.Key, kv.Value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	_, generic, err := c.doEnvelope(req, cred)
	if err != nil {
		return err
	}
	data, err := json.Marshal(generic["data"])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// Get issues an unsigned GET request (most bilibili endpoints besides the
// WBI-protected ones listed in spec §4.2) and decodes its data field into
// out. A nil out discards the data field, used when only an error/not-found
// signal matters.
func (c *Client) Get(ctx context.Context, endpoint string, params []KV, cred Credential, out any) error {
	q := url.Values{}
	for _, kv := range params {
		q.Set(kv.Key, kv.Value)
	}
	full := endpoint
	if len(params) > 0 {
		full += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return err
	}

	_, generic, err := c.doEnvelope(req, cred)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(generic["data"])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// MixinKeyFunc supplies the current WBI mixin key for GetWBI, resolved lazily
// so callers don't need to thread key refresh through every adapter.
type MixinKeyFunc func(ctx context.Context) (string, error)

// GetWBI is GetJSON with the mixin key resolved through fn, used by
// adapters (Submission) that hit WBI-signed endpoints outside of the
// login/nav flow used to establish the mixin key.
func (c *Client) GetWBI(ctx context.Context, endpoint string, params []KV, cred Credential, fn MixinKeyFunc, out any) error {
	key, err := fn(ctx)
	if err != nil {
		return err
	}
	return c.GetJSON(ctx, endpoint, params, cred, key, out)
}

// OpenStream issues a plain GET against a CDN stream/media URL and returns
// its body for the caller to copy, without decoding a JSON envelope. Stream
// URLs need the Referer header to avoid a 403 but, unlike every other
// endpoint this client talks to, no credential cookie. The caller must close
// the returned body.
func (c *Client) OpenStream(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://www.bilibili.com")

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d fetching %s", ErrTransport, resp.StatusCode, url)
	}
	return resp.Body, nil
}

const navURL = "https://api.bilibili.com/x/web-interface/nav"

// RefreshMixinKey fetches the nav endpoint's wbi_img pair and, on success,
// derives and stores the new mixin key in cache (spec §4.8 per-cycle
// housekeeping "refresh the global WBI mixin key").
func (c *Client) RefreshMixinKey(ctx context.Context, cred Credential, cache *MixinKeyCache) error {
	var nav struct {
		WbiImg WbiImg `json:"wbi_img"`
	}
	if err := c.Get(ctx, navURL, nil, cred, &nav); err != nil {
		return fmt.Errorf("bilibili: fetch nav for mixin key: %w", err)
	}
	key, ok := MixinKey(nav.WbiImg)
	if !ok {
		return fmt.Errorf("bilibili: derive mixin key: malformed wbi_img %+v", nav.WbiImg)
	}
	cache.Refresh(key)
	return nil
}

func attachCredential(req *http.Request, cred Credential) {
	if !cred.Empty() {
		req.Header.Set("Cookie", cred.Cookie())
	}
	req.Header.Set("Referer", "https://www.bilibili.com")
}
