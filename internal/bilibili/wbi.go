package bilibili

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// mixinKeyEncTab permutes the 64-character img_key+sub_key basename
// concatenation into the 32-byte mixin key used for WBI signing.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35, 27, 43, 5, 49, 33, 9, 42, 19, 29, 28, 14, 39, 12, 38,
	41, 13, 37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4, 22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11, 36,
	20, 34, 44, 52,
}

// WbiImg is the {img_url, sub_url} pair returned by the nav endpoint, whose
// basenames seed the mixin key.
type WbiImg struct {
	ImgURL string `json:"img_url"`
	SubURL string `json:"sub_url"`
}

func basename(rawURL string) string {
	idx := strings.LastIndex(rawURL, "/")
	file := rawURL
	if idx >= 0 {
		file = rawURL[idx+1:]
	}
	if dot := strings.LastIndex(file, "."); dot >= 0 {
		file = file[:dot]
	}
	return file
}

// MixinKey derives the 32-byte WBI mixin key from a WbiImg pair.
func MixinKey(img WbiImg) (string, bool) {
	imgKey := basename(img.ImgURL)
	subKey := basename(img.SubURL)
	if imgKey == "" || subKey == "" {
		return "", false
	}
	combined := imgKey + subKey
	if len(combined) < 64 {
		return "", false
	}
	key := make([]byte, 0, 32)
	for _, idx := range mixinKeyEncTab[:32] {
		key = append(key, combined[idx])
	}
	return string(key), true
}

// SignQuery signs a WBI query: strips the characters "!'()*" from every
// value, appends wts=<unix seconds>, sorts ascending by key, url-encodes
// with '+' rewritten to "%20", then appends w_rid=md5(query+mixinKey).
// Returns the final ordered parameter list, including wts and w_rid.
func SignQuery(params []KV, mixinKey string, now time.Time) []KV {
	return signQueryAt(params, mixinKey, strconv.FormatInt(now.Unix(), 10))
}

// KV is an ordered query parameter.
type KV struct {
	Key   string
	Value string
}

const stripChars = "!'()*"

func signQueryAt(params []KV, mixinKey string, wts string) []KV {
	cleaned := make([]KV, len(params))
	for i, p := range params {
		cleaned[i] = KV{Key: p.Key, Value: stripRunes(p.Value, stripChars)}
	}
	cleaned = append(cleaned, KV{Key: "wts", Value: wts})

	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Key < cleaned[j].Key })

	query := encodeQuery(cleaned)
	sum := md5.Sum([]byte(query + mixinKey))
	wRid := hex.EncodeToString(sum[:])

	return append(cleaned, KV{Key: "w_rid", Value: wRid})
}

func stripRunes(s, cutset string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(cutset, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeQuery renders an already-sorted KV list as a URL query string with
// '+' rewritten to "%20", the escaping bilibili's WBI signature expects.
func encodeQuery(kvs []KV) string {
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = fmt.Sprintf("%s=%s", url.QueryEscape(kv.Key), url.QueryEscape(kv.Value))
	}
	return strings.ReplaceAll(strings.Join(parts, "&"), "+", "%20")
}

// MixinKeyCache holds the process-wide WBI mixin key, refreshed by the
// scheduler's per-cycle housekeeping and read via atomic snapshot
// (spec §4.1, §9 "shared mutable snapshots").
type MixinKeyCache struct {
	mu      sync.Mutex
	current atomic.Pointer[string]
}

// Snapshot returns the current mixin key and whether one has been loaded.
func (c *MixinKeyCache) Snapshot() (string, bool) {
	p := c.current.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// Refresh stores a freshly fetched mixin key, replacing any previous value.
// Callers obtain WbiImg from the nav endpoint and derive it with MixinKey.
func (c *MixinKeyCache) Refresh(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(&key)
}

// Func adapts the cache into a MixinKeyFunc, the shape GetWBI and the
// Submission adapter consume. It errors if Refresh has never been called —
// the scheduler's per-cycle housekeeping (spec §4.8) is expected to run
// before any adapter needs a signed request.
func (c *MixinKeyCache) Func() MixinKeyFunc {
	return func(_ context.Context) (string, error) {
		key, ok := c.Snapshot()
		if !ok {
			return "", fmt.Errorf("bilibili: wbi mixin key not yet loaded")
		}
		return key, nil
	}
}
