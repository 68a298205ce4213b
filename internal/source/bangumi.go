package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
)

const (
	bangumiSeasonByEpURL     = "https://api.bilibili.com/pgc/view/web/season"
	bangumiSeasonBySeasonURL = "https://api.bilibili.com/pgc/view/web/season"
)

// Bangumi streams the episodes of one bangumi season (or, when
// DownloadAllSeasons is set, every season cross-linked from it), resolved
// from a season_id or ep_id.
// ShouldTake always returns true (SPEC_FULL.md Part F Open Question 2):
// platforms sometimes revise or reorder already-aired episodes, so gating
// on a watermark would silently drop a legitimately new ep_id.
type Bangumi struct {
	Client             *bilibili.Client
	Credential         bilibili.Credential
	SeasonID           string
	EpisodeID          string
	DownloadAllSeasons bool
}

var _ Adapter = (*Bangumi)(nil)

type bangumiEpisode struct {
	ID        int64  `json:"id"`
	Aid       int64  `json:"aid"`
	Bvid      string `json:"bvid"`
	Cid       int64  `json:"cid"`
	Title     string `json:"title"`
	PubTime   int64  `json:"pub_time"`
	ShowTitle string `json:"show_title"`
}

type bangumiSeasonSummary struct {
	SeasonID    any    `json:"season_id"`
	MediaID     any    `json:"media_id"`
	SeasonTitle string `json:"season_title"`
}

type bangumiSeasonInfo struct {
	SeasonID string                 `json:"season_id"`
	Cover    string                 `json:"cover"`
	Title    string                 `json:"title"`
	Evaluate string                 `json:"evaluate"`
	Episodes []bangumiEpisode       `json:"episodes"`
	Seasons  []bangumiSeasonSummary `json:"seasons"`
}

func (b *Bangumi) resolveSeasonID(ctx context.Context) (string, error) {
	if b.SeasonID != "" {
		return b.SeasonID, nil
	}
	var wrapper struct {
		SeasonID string `json:"season_id"`
	}
	params := []bilibili.KV{{Key: "ep_id", Value: b.EpisodeID}}
	if err := b.Client.Get(ctx, bangumiSeasonByEpURL, params, b.Credential, &wrapper); err != nil {
		return "", err
	}
	return wrapper.SeasonID, nil
}

func (b *Bangumi) getSeasonInfo(ctx context.Context, seasonID string) (bangumiSeasonInfo, error) {
	var info bangumiSeasonInfo
	params := []bilibili.KV{{Key: "season_id", Value: seasonID}}
	if err := b.Client.Get(ctx, bangumiSeasonBySeasonURL, params, b.Credential, &info); err != nil {
		return bangumiSeasonInfo{}, err
	}
	return info, nil
}

func (b *Bangumi) Stream(ctx context.Context, callback VideoCallback) error {
	seasonID, err := b.resolveSeasonID(ctx)
	if err != nil {
		return fmt.Errorf("source: bangumi resolve season: %w", err)
	}

	if !b.DownloadAllSeasons {
		return b.streamSeason(ctx, seasonID, callback)
	}

	info, err := b.getSeasonInfo(ctx, seasonID)
	if err != nil {
		return fmt.Errorf("source: bangumi %s: %w", seasonID, err)
	}
	for _, s := range info.Seasons {
		sid := stringifyAny(s.SeasonID)
		if sid == "" {
			continue
		}
		if err := b.streamSeason(ctx, sid, callback); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bangumi) streamSeason(ctx context.Context, seasonID string, callback VideoCallback) error {
	info, err := b.getSeasonInfo(ctx, seasonID)
	if err != nil {
		return fmt.Errorf("source: bangumi %s: %w", seasonID, err)
	}
	if len(info.Episodes) == 0 {
		return fmt.Errorf("source: bangumi %s: no episodes found", seasonID)
	}
	for _, ep := range info.Episodes {
		title := ep.ShowTitle
		if title == "" {
			title = fmt.Sprintf("%s - %s", info.Title, ep.Title)
		}
		v := DiscoveredVideo{
			Bvid:      ep.Bvid,
			Title:     title,
			Intro:     info.Evaluate,
			CoverURL:  info.Cover,
			Pubtime:   time.Unix(ep.PubTime, 0).UTC(),
			SeasonID:  seasonID,
			EpisodeID: strconv.FormatInt(ep.ID, 10),
			Cid:       strconv.FormatInt(ep.Cid, 10),
			Aid:       strconv.FormatInt(ep.Aid, 10),
			ShowTitle: ep.ShowTitle,
		}
		if err := callback(v); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bangumi) ShouldTake(time.Time, *time.Time) bool {
	return true
}

func stringifyAny(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	default:
		return ""
	}
}
