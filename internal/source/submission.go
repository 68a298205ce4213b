package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
)

const submissionArcSearchURL = "https://api.bilibili.com/x/space/wbi/arc/search"

// Submission streams one uploader's space feed, WBI-signed and 30 per page
// ordered by publish date descending, stopping once the reported total is
// exhausted.
type Submission struct {
	Client     *bilibili.Client
	Credential bilibili.Credential
	MixinKey   bilibili.MixinKeyFunc
	UploaderID int64
}

var _ Adapter = (*Submission)(nil)

type submissionVlistEntry struct {
	Bvid    string `json:"bvid"`
	Title   string `json:"title"`
	Intro   string `json:"description"`
	Pic     string `json:"pic"`
	Created int64  `json:"created"`
	Author  string `json:"author"`
	Mid     int64  `json:"mid"`
}

type submissionArcSearchResponse struct {
	List struct {
		Vlist []submissionVlistEntry `json:"vlist"`
	} `json:"list"`
	Page struct {
		Count int64 `json:"count"`
	} `json:"page"`
}

func (s *Submission) Stream(ctx context.Context, callback VideoCallback) error {
	for page := 1; ; page++ {
		var resp submissionArcSearchResponse
		params := []bilibili.KV{
			{Key: "mid", Value: strconv.FormatInt(s.UploaderID, 10)},
			{Key: "order", Value: "pubdate"},
			{Key: "order_avoided", Value: "true"},
			{Key: "platform", Value: "web"},
			{Key: "web_location", Value: "1550101"},
			{Key: "pn", Value: strconv.Itoa(page)},
			{Key: "ps", Value: "30"},
		}
		if err := s.Client.GetWBI(ctx, submissionArcSearchURL, params, s.Credential, s.MixinKey, &resp); err != nil {
			return fmt.Errorf("source: submission %d page %d: %w", s.UploaderID, page, err)
		}
		if len(resp.List.Vlist) == 0 {
			return fmt.Errorf("source: submission %d page %d: no medias found", s.UploaderID, page)
		}
		for _, e := range resp.List.Vlist {
			v := DiscoveredVideo{
				Bvid:         e.Bvid,
				Title:        e.Title,
				Intro:        e.Intro,
				CoverURL:     e.Pic,
				UploaderID:   e.Mid,
				UploaderName: e.Author,
				Pubtime:      time.Unix(e.Created, 0).UTC(),
			}
			if err := callback(v); err != nil {
				return err
			}
		}
		if resp.Page.Count > int64(page)*30 {
			continue
		}
		return nil
	}
}

func (s *Submission) ShouldTake(releaseTime time.Time, watermark *time.Time) bool {
	return watermarkShouldTake(releaseTime, watermark)
}
