package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
)

const favoriteListURL = "https://api.bilibili.com/x/v3/fav/resource/list"

// Favorite streams the videos saved in one bilibili "收藏夹" folder, 20 per
// page ordered by mtime descending.
type Favorite struct {
	Client     *bilibili.Client
	Credential bilibili.Credential
	FolderID   int64
}

var _ Adapter = (*Favorite)(nil)

type favoriteMedia struct {
	Title   string `json:"title"`
	Intro   string `json:"intro"`
	Cover   string `json:"cover"`
	Bvid    string `json:"bvid"`
	FavTime int64  `json:"fav_time"`
	Pubtime int64  `json:"pubtime"`
	Upper   struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
		Face string `json:"face"`
	} `json:"upper"`
}

type favoriteListResponse struct {
	Medias  []favoriteMedia `json:"medias"`
	HasMore bool            `json:"has_more"`
}

func (f *Favorite) Stream(ctx context.Context, callback VideoCallback) error {
	for page := 1; ; page++ {
		var resp favoriteListResponse
		params := []bilibili.KV{
			{Key: "media_id", Value: strconv.FormatInt(f.FolderID, 10)},
			{Key: "pn", Value: strconv.Itoa(page)},
			{Key: "ps", Value: "20"},
			{Key: "order", Value: "mtime"},
			{Key: "type", Value: "0"},
			{Key: "tid", Value: "0"},
		}
		if err := f.Client.Get(ctx, favoriteListURL, params, f.Credential, &resp); err != nil {
			return fmt.Errorf("source: favorite %d page %d: %w", f.FolderID, page, err)
		}
		if len(resp.Medias) == 0 {
			return fmt.Errorf("source: favorite %d page %d: no medias found", f.FolderID, page)
		}
		for _, m := range resp.Medias {
			favTime := time.Unix(m.FavTime, 0).UTC()
			v := DiscoveredVideo{
				Bvid:              m.Bvid,
				Title:             m.Title,
				Intro:             m.Intro,
				CoverURL:          m.Cover,
				UploaderID:        m.Upper.Mid,
				UploaderName:      m.Upper.Name,
				UploaderAvatarURL: m.Upper.Face,
				Pubtime:           time.Unix(m.Pubtime, 0).UTC(),
				FavTime:           &favTime,
			}
			if err := callback(v); err != nil {
				return err
			}
		}
		if !resp.HasMore {
			return nil
		}
	}
}

// ShouldTake compares against fav_time, not pub_time, since a favorite
// folder's natural order and re-add semantics are keyed on mtime (spec §9
// Open Question 1): fav_time is used as-is even though a re-favorited
// video can "rewrite" its own watermark position.
func (f *Favorite) ShouldTake(releaseTime time.Time, watermark *time.Time) bool {
	return watermarkShouldTake(releaseTime, watermark)
}
