package bilibili

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Credential is the set of cookies and tokens that authenticate requests
// against bilibili's web API. It is persisted verbatim in the Configuration
// singleton and refreshed in place (SPEC_FULL.md Part D.1).
type Credential struct {
	SESSDATA    string `json:"sessdata" yaml:"sessdata"`
	BiliJCT     string `json:"bili_jct" yaml:"bili_jct"`
	Buvid3      string `json:"buvid3" yaml:"buvid3"`
	DedeUserID  string `json:"dedeuserid" yaml:"dedeuserid"`
	ACTimeValue string `json:"ac_time_value" yaml:"ac_time_value"`
}

// correspondPubKeyPEM is bilibili's well-known RSA public key used to
// encrypt the correspond_path refresh nonce. It rotates rarely enough that
// embedding it is the same approach the upstream client takes.
const correspondPubKeyPEM = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDLgd2OAkcGVtoE3ThUREbio0Eg
Uc/prcajMKXvkCKFCWhJYJcLkcM2DKKcSeFpD/j6Boy538YXnR6VhcuUJOhH2x71
nzPjfdTcqMz7djHum0qSZA0AyCBDABUqCrfNgCiJ00Ra7GmRj+YCK1NJEuewlb40
JNrRuoEUXpabUzGB8QIDAQAB
-----END PUBLIC KEY-----`

var csrfPattern = regexp.MustCompile(`<div id="1-name">(.+?)</div>`)

// Cookie renders the credential as a Cookie header value.
func (c Credential) Cookie() string {
	return fmt.Sprintf("SESSDATA=%s; bili_jct=%s; buvid3=%s; DedeUserID=%s",
		c.SESSDATA, c.BiliJCT, c.Buvid3, c.DedeUserID)
}

// Empty reports whether the credential has no SESSDATA, i.e. is unauthenticated.
func (c Credential) Empty() bool {
	return c.SESSDATA == ""
}

// navInfo is the subset of the cookie/info envelope the refresh check needs.
type navInfo struct {
	Refresh bool `json:"refresh"`
}

const cookieInfoURL = "https://passport.bilibili.com/x/passport-login/web/cookie/info"

// NeedsRefresh performs the protocol's first step: GET cookie/info and
// report whether bilibili has flagged this credential for refresh (spec
// §4.1 "Credential refresh protocol", step 0).
func (c Credential) NeedsRefresh(ctx context.Context, client *Client) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cookieInfoURL, nil)
	if err != nil {
		return false, err
	}
	req.URL.RawQuery = url.Values{"csrf": {c.BiliJCT}}.Encode()

	_, data, err := client.doEnvelope(req, c)
	if err != nil {
		return false, err
	}
	inner, _ := data["data"].(map[string]any)
	refresh, _ := inner["refresh"].(bool)
	return refresh, nil
}

// CredentialStore holds the process-wide active Credential, read via atomic
// snapshot and swapped wholesale by the scheduler's daily refresh check
// (spec §5 "Credential ... process-wide, read via atomic-pointer snapshot").
type CredentialStore struct {
	current atomic.Pointer[Credential]
}

// NewCredentialStore seeds the store with an initial credential (possibly
// the zero value, for unauthenticated access to public endpoints).
func NewCredentialStore(initial Credential) *CredentialStore {
	s := &CredentialStore{}
	s.current.Store(&initial)
	return s
}

// Snapshot returns the currently active credential.
func (s *CredentialStore) Snapshot() Credential {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Credential{}
}

// Store replaces the active credential.
func (s *CredentialStore) Store(c Credential) {
	s.current.Store(&c)
}

// Refresh runs the full three-step atomic refresh protocol: obtain a
// correspond_path-derived CSRF token, exchange it plus the refresh token for
// a new credential, then confirm the exchange so bilibili invalidates the
// old refresh token. The Client passed in must attach credential cookies and
// validate bilibili's JSON envelope (code/message) on every response.
func (c Credential) Refresh(ctx context.Context, client *Client) (Credential, error) {
	correspondPath, err := correspondPath(time.Now())
	if err != nil {
		return Credential{}, fmt.Errorf("bilibili: build correspond path: %w", err)
	}

	csrf, err := c.refreshCSRF(ctx, client, correspondPath)
	if err != nil {
		return Credential{}, fmt.Errorf("bilibili: get refresh csrf: %w", err)
	}

	newCred, err := c.newCredential(ctx, client, csrf)
	if err != nil {
		return Credential{}, fmt.Errorf("bilibili: exchange refresh token: %w", err)
	}

	if err := c.confirmRefresh(ctx, client, newCred); err != nil {
		return Credential{}, fmt.Errorf("bilibili: confirm refresh: %w", err)
	}

	return newCred, nil
}

func correspondPath(now time.Time) (string, error) {
	block, _ := pem.Decode([]byte(correspondPubKeyPEM))
	if block == nil {
		return "", fmt.Errorf("decode embedded public key: no PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse embedded public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("embedded public key is not RSA")
	}

	data := []byte(fmt.Sprintf("refresh_%d", now.UnixMilli()))
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaPub, data, nil)
	if err != nil {
		return "", fmt.Errorf("rsa-oaep encrypt: %w", err)
	}
	return hex.EncodeToString(ciphertext), nil
}

func (c Credential) refreshCSRF(ctx context.Context, client *Client, correspondPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.bilibili.com/correspond/1/"+correspondPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", "Domain=.bilibili.com")

	body, err := client.doRaw(req, c)
	if err != nil {
		return "", err
	}

	m := csrfPattern.FindStringSubmatch(string(body))
	if m == nil {
		return "", fmt.Errorf("csrf marker not found in correspond page")
	}
	return m[1], nil
}

func (c Credential) newCredential(ctx context.Context, client *Client, csrf string) (Credential, error) {
	form := url.Values{
		"csrf":          {c.BiliJCT},
		"refresh_csrf":  {csrf},
		"refresh_token": {c.ACTimeValue},
		"source":        {"main_web"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://passport.bilibili.com/x/passport-login/web/cookie/refresh",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", "Domain=.bilibili.com")

	resp, data, err := client.doEnvelope(req, c)
	if err != nil {
		return Credential{}, err
	}

	required := map[string]*string{}
	newCred := Credential{Buvid3: c.Buvid3}
	required["SESSDATA"] = &newCred.SESSDATA
	required["bili_jct"] = &newCred.BiliJCT
	required["DedeUserID"] = &newCred.DedeUserID

	found := 0
	for _, sc := range resp.Header.Values("Set-Cookie") {
		name, value, ok := parseSetCookie(sc)
		if !ok {
			continue
		}
		if dst, want := required[name]; want {
			*dst = value
			found++
		}
	}
	if found != len(required) {
		return Credential{}, fmt.Errorf("not all required cookies found in refresh response")
	}

	refreshToken, ok := data["data"].(map[string]any)["refresh_token"].(string)
	if !ok || refreshToken == "" {
		return Credential{}, fmt.Errorf("refresh_token not found in refresh response")
	}
	newCred.ACTimeValue = refreshToken

	return newCred, nil
}

func (c Credential) confirmRefresh(ctx context.Context, client *Client, newCred Credential) error {
	form := url.Values{
		"csrf":          {newCred.BiliJCT},
		"refresh_token": {c.ACTimeValue},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://passport.bilibili.com/x/passport-login/web/confirm/refresh",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, _, err = client.doEnvelope(req, newCred)
	return err
}

// parseSetCookie extracts the name/value pair from a single Set-Cookie
// header line, ignoring attributes (Domain=, Path=, etc).
func parseSetCookie(raw string) (name, value string, ok bool) {
	first := raw
	if idx := strings.Index(raw, ";"); idx >= 0 {
		first = raw[:idx]
	}
	parts := strings.SplitN(strings.TrimSpace(first), "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// readAll is a tiny helper kept local so callers don't need io imported
// twice across this small package's files.
func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// timestampNow renders the current unix second timestamp as bilibili's wts
// parameter expects it. wbi.go formats its own wts from the time passed to
// SignQuery and does not call this helper.
func timestampNow() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
