package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/models"
)

const (
	seriesArchivesURL = "https://api.bilibili.com/x/series/archives"
	seasonArchivesURL = "https://api.bilibili.com/x/polymer/web-space/seasons_archives_list"
)

// Collection streams the videos of one series or season collection, 30 per
// page ordered by publish date descending, via two distinct endpoints
// depending on sub-kind.
type Collection struct {
	Client     *bilibili.Client
	Credential bilibili.Credential
	SubKind    models.CollectionSubKind
	SeriesID   int64
	CreatorID  int64
}

var _ Adapter = (*Collection)(nil)

type collectionArchive struct {
	Bvid    string `json:"bvid"`
	Title   string `json:"title"`
	Intro   string `json:"description"`
	Pic     string `json:"pic"`
	Pubdate int64  `json:"pubdate"`
	Author  struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
		Face string `json:"face"`
	} `json:"author"`
}

type collectionPage struct {
	Num   int64 `json:"num"`
	Size  int64 `json:"size"`
	Total int64 `json:"total"`
}

type seriesArchivesResponse struct {
	Archives []collectionArchive `json:"archives"`
	Page     struct {
		Num   int64 `json:"num"`
		Size  int64 `json:"size"`
		Total int64 `json:"total"`
	} `json:"page"`
}

type seasonArchivesResponse struct {
	Archives []collectionArchive `json:"archives"`
	Page     struct {
		PageNum  int64 `json:"page_num"`
		PageSize int64 `json:"page_size"`
		Total    int64 `json:"total"`
	} `json:"page"`
}

func (c *Collection) Stream(ctx context.Context, callback VideoCallback) error {
	for page := 1; ; page++ {
		archives, info, err := c.getVideos(ctx, page)
		if err != nil {
			return fmt.Errorf("source: collection %d page %d: %w", c.SeriesID, page, err)
		}
		if len(archives) == 0 {
			return fmt.Errorf("source: collection %d page %d: no videos found", c.SeriesID, page)
		}
		for _, a := range archives {
			v := DiscoveredVideo{
				Bvid:              a.Bvid,
				Title:             a.Title,
				Intro:             a.Intro,
				CoverURL:          a.Pic,
				UploaderID:        a.Author.Mid,
				UploaderName:      a.Author.Name,
				UploaderAvatarURL: a.Author.Face,
				Pubtime:           time.Unix(a.Pubdate, 0).UTC(),
			}
			if err := callback(v); err != nil {
				return err
			}
		}
		if info.num*info.size >= info.total {
			return nil
		}
	}
}

type collectionPageInfo struct {
	num, size, total int64
}

func (c *Collection) getVideos(ctx context.Context, page int) ([]collectionArchive, collectionPageInfo, error) {
	switch c.SubKind {
	case models.CollectionSubKindSeries:
		var resp seriesArchivesResponse
		params := []bilibili.KV{
			{Key: "pn", Value: strconv.Itoa(page)},
			{Key: "mid", Value: strconv.FormatInt(c.CreatorID, 10)},
			{Key: "series_id", Value: strconv.FormatInt(c.SeriesID, 10)},
			{Key: "only_normal", Value: "true"},
			{Key: "sort", Value: "desc"},
			{Key: "ps", Value: "30"},
		}
		if err := c.Client.Get(ctx, seriesArchivesURL, params, c.Credential, &resp); err != nil {
			return nil, collectionPageInfo{}, err
		}
		return resp.Archives, collectionPageInfo{resp.Page.Num, resp.Page.Size, resp.Page.Total}, nil
	default:
		var resp seasonArchivesResponse
		params := []bilibili.KV{
			{Key: "page_num", Value: strconv.Itoa(page)},
			{Key: "mid", Value: strconv.FormatInt(c.CreatorID, 10)},
			{Key: "season_id", Value: strconv.FormatInt(c.SeriesID, 10)},
			{Key: "sort_reverse", Value: "true"},
			{Key: "page_size", Value: "30"},
		}
		if err := c.Client.Get(ctx, seasonArchivesURL, params, c.Credential, &resp); err != nil {
			return nil, collectionPageInfo{}, err
		}
		return resp.Archives, collectionPageInfo{resp.Page.PageNum, resp.Page.PageSize, resp.Page.Total}, nil
	}
}

func (c *Collection) ShouldTake(releaseTime time.Time, watermark *time.Time) bool {
	return watermarkShouldTake(releaseTime, watermark)
}
