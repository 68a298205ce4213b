// Package downloader implements the two filesystem-writing primitives of
// spec §4.7: fetching a single CDN stream to a local temp file, and muxing a
// separately-fetched video/audio pair into one final container. Merge
// always removes its temp files regardless of outcome, and delegates the
// mux step to internal/ffmpeg instead of a raw os/exec call.
package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/ffmpeg"
	"github.com/shirayuki/bilisync/internal/storage"
)

// Downloader fetches bilibili CDN stream URLs to disk and muxes separate
// video/audio DASH streams into a single output file.
type Downloader struct {
	client     *bilibili.Client
	ffmpegPath string
	temp       *storage.Sandbox
}

// New builds a Downloader. ffmpegPath is passed straight to
// ffmpeg.NewCommandBuilder; an empty string resolves to "ffmpeg" on PATH.
// tempDir roots a storage.Sandbox used to stage video/audio DASH parts
// before Merge muxes them (spec §4.7): every scratch filename is built from
// a bvid/cid pair, so sandboxing it costs nothing and means a future
// filename scheme can't write outside tempDir by accident.
func New(client *bilibili.Client, ffmpegPath, tempDir string) (*Downloader, error) {
	temp, err := storage.NewSandbox(tempDir)
	if err != nil {
		return nil, fmt.Errorf("downloader: init temp sandbox: %w", err)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Downloader{client: client, ffmpegPath: ffmpegPath, temp: temp}, nil
}

// Fetch streams url to path, creating parent directories as needed. An
// error leaves whatever partial bytes were written; callers are responsible
// for removing a failed fetch's temp file (the pipeline always writes to a
// dedicated per-sub-task temp path, so a failed Fetch never corrupts a
// previously-completed file).
func (d *Downloader) Fetch(ctx context.Context, url, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("downloader: create parent dirs for %s: %w", path, err)
		}
	}

	body, err := d.client.OpenStream(ctx, url)
	if err != nil {
		return fmt.Errorf("downloader: fetch %s: %w", url, err)
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("downloader: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("downloader: write %s: %w", path, err)
	}
	return nil
}

// FetchTemp streams url to name inside the downloader's sandboxed temp
// directory and returns the resulting absolute path, for callers (Merge's
// two DASH inputs) that need a scratch file rather than a final output.
func (d *Downloader) FetchTemp(ctx context.Context, url, name string) (string, error) {
	if _, err := d.temp.ResolvePath(name); err != nil {
		return "", fmt.Errorf("downloader: temp name %q: %w", name, err)
	}

	body, err := d.client.OpenStream(ctx, url)
	if err != nil {
		return "", fmt.Errorf("downloader: fetch %s: %w", url, err)
	}
	defer body.Close()

	if err := d.temp.AtomicWriteReader(name, body); err != nil {
		return "", fmt.Errorf("downloader: write temp %s: %w", name, err)
	}
	path, err := d.temp.ResolvePath(name)
	if err != nil {
		return "", fmt.Errorf("downloader: resolve temp %s: %w", name, err)
	}
	return path, nil
}

// Merge muxes videoPath and audioPath (no re-encode, "-c copy") into
// outputPath via ffmpeg, then always removes both temp inputs regardless of
// success.
func (d *Downloader) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	defer os.Remove(videoPath)
	defer os.Remove(audioPath)

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("downloader: create parent dirs for %s: %w", outputPath, err)
		}
	}

	cmd := ffmpeg.NewCommandBuilder(d.ffmpegPath).
		Overwrite().
		InputArgs("-i", videoPath).
		Input(audioPath).
		OutputArgs("-c", "copy").
		Output(outputPath).
		Build()

	if err := cmd.Run(ctx); err != nil {
		stderr := cmd.GetStderrLines()
		if len(stderr) > 0 {
			return fmt.Errorf("downloader: merge %s+%s: ffmpeg: %s", videoPath, audioPath, stderr[len(stderr)-1])
		}
		return fmt.Errorf("downloader: merge %s+%s: %w", videoPath, audioPath, err)
	}
	return nil
}
