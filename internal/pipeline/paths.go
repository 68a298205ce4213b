package pipeline

import (
	"fmt"
	"path/filepath"
)

// videoCoverFiles returns the poster/fanart destinations for a video,
// spec §6: single-page names them `<name>-poster.jpg`/`<name>-fanart.jpg`
// inside the video directory; multi-page names them `poster.jpg`/
// `fanart.jpg` directly.
func videoCoverFiles(videoDir string, single bool) (poster, fanart string) {
	if single {
		stem := filepath.Join(videoDir, filepath.Base(videoDir))
		return stem + "-poster.jpg", stem + "-fanart.jpg"
	}
	return filepath.Join(videoDir, "poster.jpg"), filepath.Join(videoDir, "fanart.jpg")
}

// pageDir returns the directory a page's files live in: the video
// directory itself for single-page videos, `Season 1` under it otherwise.
func pageDir(videoDir string, single bool) string {
	if single {
		return videoDir
	}
	return filepath.Join(videoDir, "Season 1")
}

// pageStem returns the shared filename stem (without extension) for a
// page's video/cover/nfo/danmaku/subtitle files: `render(page_name)` for
// single-page, `render(page_name) - S01E<pid:02>` otherwise (spec §6).
func pageStem(renderedPageName string, single bool, pid int) string {
	if single {
		return renderedPageName
	}
	return fmt.Sprintf("%s - S01E%02d", renderedPageName, pid)
}

// pageThumbFile returns the page cover destination, only meaningful for
// multi-page videos (single-page covers come from the video-level
// poster/fanart pair, spec §6).
func pageThumbFile(dir, stem string) string {
	return filepath.Join(dir, stem+"-thumb.jpg")
}

func pageVideoFile(dir, stem string) string {
	return filepath.Join(dir, stem+".mp4")
}

func pageNFOFile(dir, stem string) string {
	return filepath.Join(dir, stem+".nfo")
}

func pageDanmakuFile(dir, stem string) string {
	return filepath.Join(dir, stem+".zh-CN.default.ass")
}

func pageSubtitleFile(dir, stem, lang string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.srt", stem, lang))
}

// upperDir returns the shared uploader directory, spec §6:
// `<upper_path>/<first-char-of-mid>/<mid>/`.
func upperDir(base string, uploaderID int64) string {
	mid := fmt.Sprintf("%d", uploaderID)
	return filepath.Join(base, mid[:1], mid)
}
