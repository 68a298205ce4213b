package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/danmaku"
	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/nfo"
	"github.com/shirayuki/bilisync/internal/observability/metrics"
	"github.com/shirayuki/bilisync/internal/status"
	"github.com/shirayuki/bilisync/internal/stream"
)

const (
	playurlURL       = "https://api.bilibili.com/x/player/wbi/playurl"
	subtitleMetaURL  = "https://api.bilibili.com/x/player/wbi/v2"
	segmentURLFormat = "http://api.bilibili.com/x/v2/dm/web/seg.so?type=1&oid=%d&segment_index=%d"
	segmentSeconds   = 360
)

// downloadSource fans out over every enriched, should-download video bounded
// by concurrency.video; a risk-control-classed failure anywhere aborts the
// whole cycle (spec §4.3 Stage 3, §5).
func (o *Orchestrator) downloadSource(ctx context.Context, src *models.VideoSource) error {
	limit := o.deps.Pipeline.PersistBatchSize * 5
	videos, err := o.deps.Videos.GetPendingDownload(ctx, src.ID, limit)
	if err != nil {
		return fmt.Errorf("download: list pending: %w", err)
	}

	sem := make(chan struct{}, o.deps.Pipeline.ConcurrencyVideo)
	var wg sync.WaitGroup
	var abortErr atomic.Pointer[error]

	for _, v := range videos {
		if p := abortErr.Load(); p != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(v *models.Video) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := o.downloadVideo(ctx, src, v); err != nil {
				if isRiskControl(err) {
					abortErr.CompareAndSwap(nil, &err)
					return
				}
				o.log.Error("download: video failed", slog.String("bvid", v.Bvid), slog.Any("error", err))
			}
		}(v)
	}
	wg.Wait()

	if p := abortErr.Load(); p != nil {
		return *p
	}
	return nil
}

// downloadVideo runs the five fixed-order video-level sub-tasks (spec §4.3
// Stage 3): cover, show NFO, uploader avatar, person NFO, page dispatch.
func (o *Orchestrator) downloadVideo(ctx context.Context, src *models.VideoSource, v *models.Video) error {
	var s status.Status = v.DownloadStatus
	shouldRun := s.ShouldRun()
	var results [status.Slots]status.Result
	var fixed [status.Slots]uint32

	tasks := []SubTask{
		{Name: "cover", Run: func(ctx context.Context) error { return o.downloadVideoCover(ctx, v) }},
		{Name: "show_nfo", Run: func(ctx context.Context) error { return o.writeVideoNFO(v) }},
		{Name: "uploader_avatar", Run: func(ctx context.Context) error { return o.downloadUploaderAvatar(ctx, v) }},
		{Name: "person_nfo", Run: func(ctx context.Context) error { return o.writePersonNFO(v) }},
	}

	for i, t := range tasks {
		if !shouldRun[i] {
			results[i] = status.Skipped
			continue
		}
		if err := t.Run(ctx); err != nil {
			o.log.Error("download: video sub-task failed",
				slog.String("bvid", v.Bvid), slog.String("subtask", t.Name), slog.Any("error", err))
			results[i] = status.Failed
			continue
		}
		results[i] = status.Succeeded
	}

	// Page dispatch is slot 4; it owns its own per-page status rows, so the
	// video-level slot only tracks whether the fan-out itself could start.
	pageErr := o.downloadPages(ctx, src, v)
	if pageErr != nil && isRiskControl(pageErr) {
		results[4] = status.Failed
		s.Update(results, fixed)
		v.DownloadStatus = s
		if uErr := o.deps.Videos.UpdateDownloadStatus(ctx, v.ID, uint32(s)); uErr != nil {
			o.log.Error("download: persist status failed", slog.String("bvid", v.Bvid), slog.Any("error", uErr))
		}
		return pageErr
	}
	if pageErr != nil {
		results[4] = status.Failed
		o.log.Error("download: page dispatch failed", slog.String("bvid", v.Bvid), slog.Any("error", pageErr))
	} else {
		results[4] = status.Succeeded
	}

	s.Update(results, fixed)
	v.DownloadStatus = s
	if err := o.deps.Videos.UpdateDownloadStatus(ctx, v.ID, uint32(s)); err != nil {
		return fmt.Errorf("download: persist video status %s: %w", v.Bvid, err)
	}
	if s.Completed() {
		metrics.IncVideoDownloaded(string(src.Kind))
	}
	return nil
}

func (o *Orchestrator) downloadVideoCover(ctx context.Context, v *models.Video) error {
	if v.CoverURL == "" || v.Path == "" {
		return nil
	}
	poster, fanart := videoCoverFiles(v.Path, !v.IsMultiPage())
	data, err := o.fetchBytes(ctx, v.CoverURL)
	if err != nil {
		return err
	}
	if err := writeFile(poster, data); err != nil {
		return err
	}
	return writeFile(fanart, data)
}

func (o *Orchestrator) writeVideoNFO(v *models.Video) error {
	if !v.IsMultiPage() || v.Path == "" {
		// Single-page videos get their movie NFO from the page-level
		// sub-task instead (spec §6: one `<name>.nfo` per single-page
		// video, not a separate tvshow.nfo).
		return nil
	}
	var tags []string
	_ = json.Unmarshal(v.Tags, &tags)
	info := nfo.VideoInfo{
		Bvid:      v.Bvid,
		Name:      v.Title,
		Intro:     v.Intro,
		UpperID:   v.UploaderID,
		UpperName: v.UploaderName,
		Tags:      tags,
		NFOTime:   v.ReferenceTime(o.deps.Pipeline.NFOTimeType),
		PubTime:   v.Pubtime,
	}
	return writeFile(filepath.Join(v.Path, "tvshow.nfo"), []byte(nfo.GenerateTVShow(info)))
}

func (o *Orchestrator) downloadUploaderAvatar(ctx context.Context, v *models.Video) error {
	if v.UploaderAvatarURL == "" || o.uploaderDone(v.UploaderID) {
		return nil
	}
	data, err := o.fetchBytes(ctx, v.UploaderAvatarURL)
	if err != nil {
		return err
	}
	dest := filepath.Join(upperDir(o.deps.UpperBaseDir, v.UploaderID), "folder.jpg")
	return writeFile(dest, data)
}

func (o *Orchestrator) writePersonNFO(v *models.Video) error {
	if o.uploaderDone(v.UploaderID) {
		return nil
	}
	info := nfo.VideoInfo{UpperID: v.UploaderID, UpperName: v.UploaderName, PubTime: v.Pubtime}
	dest := filepath.Join(upperDir(o.deps.UpperBaseDir, v.UploaderID), "person.nfo")
	if err := writeFile(dest, []byte(nfo.GenerateUpper(info))); err != nil {
		return err
	}
	o.markUploaderDone(v.UploaderID)
	return nil
}

// downloadPages fans out over a video's pages bounded by concurrency.page,
// running each page's own fixed-order sub-task group (spec §4.3 Stage 3).
// A page's video-file sub-task failing with a risk-control-classed error
// trips DownloadAbort: the page fan-out's take-while terminates and the
// abort propagates to the caller, which in turn aborts the video fan-out
// and the cycle (spec §4.3 "Risk-control propagation").
func (o *Orchestrator) downloadPages(ctx context.Context, src *models.VideoSource, v *models.Video) error {
	pages, err := o.deps.Pages.GetByVideoID(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	sem := make(chan struct{}, o.deps.Pipeline.ConcurrencyPage)
	var wg sync.WaitGroup
	var abortErr atomic.Pointer[error]

	for _, p := range pages {
		if ab := abortErr.Load(); ab != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(p *models.Page) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := o.downloadPage(ctx, src, v, p); err != nil {
				if isRiskControl(err) {
					abortErr.CompareAndSwap(nil, &err)
					return
				}
				o.log.Error("download: page failed",
					slog.String("bvid", v.Bvid), slog.Int("pid", p.Pid), slog.Any("error", err))
			}
		}(p)
	}
	wg.Wait()

	if p := abortErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (o *Orchestrator) downloadPage(ctx context.Context, src *models.VideoSource, v *models.Video, p *models.Page) error {
	single := !v.IsMultiPage()
	dir := pageDir(v.Path, single)

	rendered, err := o.renderPageName(v, p)
	if err != nil {
		return fmt.Errorf("render page_name: %w", err)
	}
	stem := pageStem(rendered, single, p.Pid)

	var s status.Status = p.DownloadStatus
	shouldRun := s.ShouldRun()
	var results [status.Slots]status.Result
	var fixed [status.Slots]uint32

	var abortSignal error

	subtasks := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"cover", func(ctx context.Context) error { return o.downloadPageCover(ctx, dir, stem, single, p) }},
		{"video", func(ctx context.Context) error {
			err := o.downloadPageVideo(ctx, dir, stem, v, p)
			if err != nil && isRiskControl(err) {
				abortSignal = err
			}
			return err
		}},
		{"nfo", func(ctx context.Context) error { return o.writePageNFO(dir, stem, single, v, p) }},
		{"danmaku", func(ctx context.Context) error { return o.downloadPageDanmaku(ctx, dir, stem, p) }},
		{"subtitles", func(ctx context.Context) error { return o.downloadPageSubtitles(ctx, dir, stem, v, p) }},
	}

	for i, t := range subtasks {
		if !shouldRun[i] {
			results[i] = status.Skipped
			continue
		}
		if abortSignal != nil {
			break
		}
		err := t.run(ctx)
		switch {
		case err == nil:
			results[i] = status.Succeeded
		case errors.Is(err, errIgnoredSubtask):
			results[i] = status.Ignored
		default:
			o.log.Error("download: page sub-task failed",
				slog.String("bvid", v.Bvid), slog.Int("pid", p.Pid), slog.String("subtask", t.name), slog.Any("error", err))
			results[i] = status.Failed
		}
	}

	s.Update(results, fixed)
	p.DownloadStatus = s
	if err := o.deps.Pages.UpdateDownloadStatus(ctx, p.ID, uint32(s)); err != nil {
		o.log.Error("download: persist page status failed",
			slog.String("bvid", v.Bvid), slog.Int("pid", p.Pid), slog.Any("error", err))
	}
	if abortSignal != nil {
		return abortSignal
	}
	return nil
}

// errIgnoredSubtask marks a sub-task outcome as benign noise (spec §7's
// Ignored category): e.g. no subtitle tracks exist for this page.
var errIgnoredSubtask = errors.New("pipeline: ignored sub-task outcome")

func (o *Orchestrator) downloadPageCover(ctx context.Context, dir, stem string, single bool, p *models.Page) error {
	if single || p.FirstFrameURL == "" {
		// Single-page covers come from the video-level poster/fanart pair.
		return errIgnoredSubtask
	}
	data, err := o.fetchBytes(ctx, p.FirstFrameURL)
	if err != nil {
		return err
	}
	return writeFile(pageThumbFile(dir, stem), data)
}

func (o *Orchestrator) writePageNFO(dir, stem string, single bool, v *models.Video, p *models.Page) error {
	dest := pageNFOFile(dir, stem)
	if single {
		var tags []string
		_ = json.Unmarshal(v.Tags, &tags)
		info := nfo.VideoInfo{
			Bvid:      v.Bvid,
			Name:      v.Title,
			Intro:     v.Intro,
			UpperID:   v.UploaderID,
			UpperName: v.UploaderName,
			Tags:      tags,
			NFOTime:   v.ReferenceTime(o.deps.Pipeline.NFOTimeType),
			PubTime:   v.Pubtime,
		}
		return writeFile(dest, []byte(nfo.GenerateMovie(info)))
	}
	return writeFile(dest, []byte(nfo.GenerateEpisode(nfo.PageInfo{Name: p.Title, Pid: p.Pid})))
}

// downloadPageVideo resolves the best stream for p.Cid, fetches its
// video/audio parts (or the single mixed stream), and muxes them into the
// final mp4 (spec §4.3 Stage 3 Page sub-task 2, §4.4, §4.7).
func (o *Orchestrator) downloadPageVideo(ctx context.Context, dir, stem string, v *models.Video, p *models.Page) error {
	aid := strconv.FormatUint(bilibili.BvidToAid(v.Bvid), 10)
	params := []bilibili.KV{
		{Key: "avid", Value: aid},
		{Key: "cid", Value: strconv.FormatInt(p.Cid, 10)},
		{Key: "qn", Value: "127"},
		{Key: "otype", Value: "json"},
		{Key: "fnval", Value: "4048"},
		{Key: "fourk", Value: "1"},
	}
	var raw json.RawMessage
	if err := o.deps.Client.GetWBI(ctx, playurlURL, params, o.deps.Credential.Snapshot(), o.deps.MixinKey, &raw); err != nil {
		return fmt.Errorf("playurl: %w", err)
	}

	analyzer, err := stream.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	best, err := analyzer.BestStream(o.deps.Filter)
	if err != nil {
		return fmt.Errorf("select stream: %w", err)
	}

	finalPath := pageVideoFile(dir, stem)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
	}

	if best.Mixed != nil {
		return o.deps.Downloader.Fetch(ctx, best.Mixed.URL, finalPath)
	}
	if best.Video == nil {
		return stream.ErrNoVideoStream
	}

	if best.Audio == nil {
		return o.deps.Downloader.Fetch(ctx, best.Video.URL, finalPath)
	}

	videoTemp, err := o.deps.Downloader.FetchTemp(ctx, best.Video.URL, fmt.Sprintf("%s-%d-video.m4s", v.Bvid, p.Cid))
	if err != nil {
		return fmt.Errorf("fetch video stream: %w", err)
	}
	audioTemp, err := o.deps.Downloader.FetchTemp(ctx, best.Audio.URL, fmt.Sprintf("%s-%d-audio.m4s", v.Bvid, p.Cid))
	if err != nil {
		return fmt.Errorf("fetch audio stream: %w", err)
	}
	return o.deps.Downloader.Merge(ctx, videoTemp, audioTemp, finalPath)
}

func (o *Orchestrator) downloadPageDanmaku(ctx context.Context, dir, stem string, p *models.Page) error {
	segments := (p.DurationSeconds + segmentSeconds - 1) / segmentSeconds
	if segments < 1 {
		segments = 1
	}

	var all []danmaku.Danmu
	for i := 1; i <= segments; i++ {
		url := fmt.Sprintf(segmentURLFormat, p.Cid, i)
		body, err := o.fetchBytes(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch danmaku segment %d: %w", i, err)
		}
		batch, err := danmaku.DecodeSegment(body)
		if err != nil {
			return fmt.Errorf("decode danmaku segment %d: %w", i, err)
		}
		all = append(all, batch...)
	}
	if len(all) == 0 {
		return errIgnoredSubtask
	}

	dim := danmaku.Dimension{Width: p.Width, Height: p.Height}
	cfg := danmaku.NewCanvasConfig(dim, o.deps.Danmaku)
	canvas := danmaku.NewCanvas(cfg)

	var drawables []*danmaku.Drawable
	for _, d := range all {
		if dr := canvas.Draw(d); dr != nil {
			drawables = append(drawables, dr)
		}
	}

	var buf bytes.Buffer
	if err := danmaku.WriteASS(&buf, p.Title, cfg, drawables); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return writeFile(pageDanmakuFile(dir, stem), buf.Bytes())
}

type subtitleV2Response struct {
	Subtitle struct {
		Subtitles []struct {
			Lan         string `json:"lan"`
			SubtitleURL string `json:"subtitle_url"`
		} `json:"subtitles"`
	} `json:"subtitle"`
}

type subtitleCueWire struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Content string  `json:"content"`
}

type subtitleBodyWire struct {
	Body []subtitleCueWire `json:"body"`
}

// downloadPageSubtitles fetches the player-v2 subtitle track list, then
// each track's body from its CDN URL unauthenticated (spec §4.3 Stage 3
// Page sub-task 5).
func (o *Orchestrator) downloadPageSubtitles(ctx context.Context, dir, stem string, v *models.Video, p *models.Page) error {
	params := []bilibili.KV{
		{Key: "cid", Value: strconv.FormatInt(p.Cid, 10)},
		{Key: "bvid", Value: v.Bvid},
		{Key: "aid", Value: strconv.FormatUint(bilibili.BvidToAid(v.Bvid), 10)},
	}
	var resp subtitleV2Response
	if err := o.deps.Client.GetWBI(ctx, subtitleMetaURL, params, o.deps.Credential.Snapshot(), o.deps.MixinKey, &resp); err != nil {
		return fmt.Errorf("subtitle meta: %w", err)
	}
	if len(resp.Subtitle.Subtitles) == 0 {
		return errIgnoredSubtask
	}

	for _, sub := range resp.Subtitle.Subtitles {
		url := sub.SubtitleURL
		if len(url) >= 2 && url[:2] == "//" {
			url = "https:" + url
		}
		body, err := o.fetchBytes(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch subtitle %s: %w", sub.Lan, err)
		}
		var wire subtitleBodyWire
		if err := json.Unmarshal(body, &wire); err != nil {
			return fmt.Errorf("decode subtitle %s: %w", sub.Lan, err)
		}
		cues := make([]danmaku.SubtitleCue, len(wire.Body))
		for i, c := range wire.Body {
			cues[i] = danmaku.SubtitleCue{From: c.From, To: c.To, Content: c.Content}
		}
		var buf bytes.Buffer
		if err := danmaku.WriteSRT(&buf, cues); err != nil {
			return fmt.Errorf("write srt %s: %w", sub.Lan, err)
		}
		if err := writeFile(pageSubtitleFile(dir, stem, sub.Lan), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) renderPageName(v *models.Video, p *models.Page) (string, error) {
	ctx := map[string]any{
		"title":       v.Title,
		"video_title": v.Title,
		"bvid":        v.Bvid,
	}
	if p != nil {
		ctx["page_title"] = p.Title
		ctx["pid"] = p.Pid
	}
	return o.deps.Templater.Render("page_name", ctx)
}

// fetchBytes retrieves a CDN resource (cover, avatar, danmaku segment,
// subtitle body) without bilibili envelope decoding, mirroring
// downloader.Downloader.Fetch's unauthenticated CDN access pattern.
func (o *Orchestrator) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	rc, err := o.deps.Client.OpenStream(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// writeFile writes data to path, creating any missing parent directories
// (final library output lives under the admin-configured, trusted
// VideoSource.OutputPath tree and is written directly, mirroring
// downloader.Downloader.Fetch's own os.MkdirAll+os.Create pattern; the
// downloader's own scratch files go through a storage.Sandbox instead,
// since those filenames are built from bvid/cid rather than admin input).
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
