package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/rule"
)

const (
	viewURL = "https://api.bilibili.com/x/web-interface/view"
	tagsURL = "https://api.bilibili.com/x/web-interface/view/detail/tag"
)

// viewResponse mirrors the subset of the view endpoint's data field the
// enrich stage needs; pages are embedded directly, no separate pagelist
// call needed.
type viewResponse struct {
	Title   string         `json:"title"`
	Bvid    string         `json:"bvid"`
	Intro   string         `json:"desc"`
	Pic     string         `json:"pic"`
	Ctime   int64          `json:"ctime"`
	Pubdate int64          `json:"pubdate"`
	Owner   viewOwner      `json:"owner"`
	Pages   []viewPageInfo `json:"pages"`
}

type viewOwner struct {
	Mid  int64  `json:"mid"`
	Name string `json:"name"`
	Face string `json:"face"`
}

type viewPageInfo struct {
	Cid        int64           `json:"cid"`
	Page       int             `json:"page"`
	Name       string          `json:"part"`
	Duration   int             `json:"duration"`
	FirstFrame *string         `json:"first_frame"`
	Dimension  *viewDimension  `json:"dimension"`
}

type viewDimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Rotate int `json:"rotate"`
}

type tagEntry struct {
	TagName string `json:"tag_name"`
}

// enrichSource selects every unenriched, still-valid video under src and
// fetches its detail and tag endpoints, marking gone videos invalid and
// persisting the Page set and derived Video fields for the rest (spec §4.3
// Stage 2).
func (o *Orchestrator) enrichSource(ctx context.Context, src *models.VideoSource) error {
	limit := o.deps.Pipeline.EnrichBatchSize * 4
	videos, err := o.deps.Videos.GetUnenriched(ctx, src.ID, limit)
	if err != nil {
		return fmt.Errorf("enrich: list unenriched: %w", err)
	}

	pageBatch := make([]*models.Page, 0, o.deps.Pipeline.EnrichBatchSize)
	flushPages := func() error {
		if len(pageBatch) == 0 {
			return nil
		}
		if err := o.deps.Pages.UpsertBatch(ctx, pageBatch); err != nil {
			return fmt.Errorf("enrich: upsert pages: %w", err)
		}
		pageBatch = pageBatch[:0]
		return nil
	}

	for _, v := range videos {
		view, tags, err := o.fetchViewAndTags(ctx, v.Bvid)
		if err != nil {
			if errors.Is(err, bilibili.ErrNotFound) {
				v.Valid = false
				if uErr := o.deps.Videos.Update(ctx, v); uErr != nil {
					return fmt.Errorf("enrich: mark invalid %s: %w", v.Bvid, uErr)
				}
				continue
			}
			if isRiskControl(err) {
				return err
			}
			o.log.Error("enrich: video failed", slog.String("bvid", v.Bvid), slog.Any("error", err))
			continue
		}

		pages := make([]*models.Page, 0, len(view.Pages))
		for _, p := range view.Pages {
			width, height, rotate := 0, 0, 0
			if p.Dimension != nil {
				width, height, rotate = p.Dimension.Width, p.Dimension.Height, p.Dimension.Rotate
			}
			width, height = models.RotationNormalizedDimensions(width, height, rotate)
			firstFrame := ""
			if p.FirstFrame != nil {
				firstFrame = *p.FirstFrame
			}
			pages = append(pages, &models.Page{
				VideoID:         v.ID,
				Cid:             p.Cid,
				Pid:             p.Page,
				Title:           p.Name,
				Width:           width,
				Height:          height,
				DurationSeconds: p.Duration,
				FirstFrameURL:   firstFrame,
			})
		}
		pageBatch = append(pageBatch, pages...)
		if len(pageBatch) >= o.deps.Pipeline.EnrichBatchSize {
			if err := flushPages(); err != nil {
				return err
			}
		}

		tagNames := make([]string, 0, len(tags))
		for _, t := range tags {
			tagNames = append(tagNames, t.TagName)
		}
		tagsJSON, err := json.Marshal(tagNames)
		if err != nil {
			return fmt.Errorf("enrich: marshal tags: %w", err)
		}

		single := len(pages) == 1
		v.Tags = models.RawJSON(tagsJSON)
		v.SinglePage = &single
		v.Intro = view.Intro
		v.CoverURL = view.Pic
		v.CTime = time.Unix(view.Ctime, 0).UTC()
		if v.Pubtime.IsZero() {
			v.Pubtime = time.Unix(view.Pubdate, 0).UTC()
		}

		name, err := o.renderVideoName(v)
		if err != nil {
			o.log.Error("enrich: render video_name failed", slog.String("bvid", v.Bvid), slog.Any("error", err))
			continue
		}
		v.Path = filepath.Join(src.OutputPath, name)

		v.ShouldDownload = o.evaluateShouldDownload(src, v, tagNames, len(pages))

		if err := o.deps.Videos.Update(ctx, v); err != nil {
			return fmt.Errorf("enrich: update video %s: %w", v.Bvid, err)
		}
	}

	return flushPages()
}

// fetchViewAndTags requests the detail and tag endpoints concurrently
// (spec §4.3 Stage 2 "in parallel"), joining both before returning —
// a two-way fan-out implemented directly rather than pulling in
// golang.org/x/sync/errgroup (SPEC_FULL.md Part E.3).
func (o *Orchestrator) fetchViewAndTags(ctx context.Context, bvid string) (*viewResponse, []tagEntry, error) {
	type viewResult struct {
		view *viewResponse
		err  error
	}
	type tagResult struct {
		tags []tagEntry
		err  error
	}
	viewCh := make(chan viewResult, 1)
	tagCh := make(chan tagResult, 1)

	go func() {
		var v viewResponse
		err := o.deps.Client.Get(ctx, viewURL, []bilibili.KV{{Key: "bvid", Value: bvid}}, o.deps.Credential.Snapshot(), &v)
		if err != nil {
			viewCh <- viewResult{err: err}
			return
		}
		viewCh <- viewResult{view: &v}
	}()
	go func() {
		var tags []tagEntry
		err := o.deps.Client.Get(ctx, tagsURL, []bilibili.KV{{Key: "bvid", Value: bvid}}, o.deps.Credential.Snapshot(), &tags)
		tagCh <- tagResult{tags: tags, err: err}
	}()

	vr := <-viewCh
	tr := <-tagCh
	if vr.err != nil {
		return nil, nil, fmt.Errorf("enrich: view %s: %w", bvid, vr.err)
	}
	if tr.err != nil {
		if errors.Is(tr.err, bilibili.ErrNotFound) {
			// A video can 404 on tags alone (e.g. never tagged); treat as
			// an empty tag set rather than failing the whole video.
			return vr.view, nil, nil
		}
		return nil, nil, fmt.Errorf("enrich: tags %s: %w", bvid, tr.err)
	}
	return vr.view, tr.tags, nil
}

func (o *Orchestrator) renderVideoName(v *models.Video) (string, error) {
	ctx := map[string]any{
		"title":         v.Title,
		"bvid":          v.Bvid,
		"uploader_name": v.UploaderName,
		"uploader_id":   strconv.FormatInt(v.UploaderID, 10),
		"pubtime":       v.Pubtime.Format("2006-01-02"),
	}
	return o.deps.Templater.Render("video_name", ctx)
}

// evaluateShouldDownload re-runs the source's DNF rule, if any, against the
// freshly enriched fields (spec §4.2, §4.3 Stage 2); an absent rule
// defaults to true.
func (o *Orchestrator) evaluateShouldDownload(src *models.VideoSource, v *models.Video, tags []string, pageCount int) bool {
	r, err := rule.Parse(src.DownloadRule)
	if err != nil {
		o.log.Error("enrich: parse download rule failed", slog.String("source", src.DisplayName), slog.Any("error", err))
		return true
	}
	if r == nil {
		return true
	}
	favTime := v.Pubtime
	if v.FavTime != nil {
		favTime = *v.FavTime
	}
	return r.Evaluate(rule.Target{
		Title:     v.Title,
		Tags:      tags,
		FavTime:   favTime,
		PubTime:   v.Pubtime,
		PageCount: pageCount,
	})
}
