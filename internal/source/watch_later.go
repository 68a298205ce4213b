package source

import (
	"context"
	"fmt"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
)

const watchLaterURL = "https://api.bilibili.com/x/v2/history/toview"

// WatchLater streams the account's single "稍后再看" list: one
// non-paginated request. Its VideoSource row is a per-account singleton
// (spec §3).
type WatchLater struct {
	Client     *bilibili.Client
	Credential bilibili.Credential
}

var _ Adapter = (*WatchLater)(nil)

type watchLaterEntry struct {
	Bvid   string `json:"bvid"`
	Title  string `json:"title"`
	Intro  string `json:"desc"`
	Pic    string `json:"pic"`
	Pubtime int64 `json:"pubdate"`
	AddAt  int64  `json:"add_at"`
	Owner  struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
		Face string `json:"face"`
	} `json:"owner"`
}

type watchLaterResponse struct {
	List []watchLaterEntry `json:"list"`
}

func (w *WatchLater) Stream(ctx context.Context, callback VideoCallback) error {
	var resp watchLaterResponse
	if err := w.Client.Get(ctx, watchLaterURL, nil, w.Credential, &resp); err != nil {
		return fmt.Errorf("source: watch later: %w", err)
	}
	if len(resp.List) == 0 {
		return fmt.Errorf("source: watch later: no videos found")
	}
	for _, e := range resp.List {
		addAt := time.Unix(e.AddAt, 0).UTC()
		v := DiscoveredVideo{
			Bvid:              e.Bvid,
			Title:             e.Title,
			Intro:             e.Intro,
			CoverURL:          e.Pic,
			UploaderID:        e.Owner.Mid,
			UploaderName:      e.Owner.Name,
			UploaderAvatarURL: e.Owner.Face,
			Pubtime:           time.Unix(e.Pubtime, 0).UTC(),
			FavTime:           &addAt,
		}
		if err := callback(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *WatchLater) ShouldTake(releaseTime time.Time, watermark *time.Time) bool {
	return watermarkShouldTake(releaseTime, watermark)
}
