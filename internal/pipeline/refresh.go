package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/source"
)

// refreshSource walks the source's adapter newest-first, stopping as soon
// as an item's release time reaches the watermark, upserting discovered
// videos in RefreshBatchSize-sized batches, then advances the watermark if
// anything newer was observed (spec §4.3 Stage 1).
func (o *Orchestrator) refreshSource(ctx context.Context, src *models.VideoSource) error {
	adapter, err := source.NewAdapter(src, o.deps.Client, o.deps.Credential.Snapshot(), o.deps.MixinKey)
	if err != nil {
		return fmt.Errorf("refresh: build adapter: %w", err)
	}

	batchSize := o.deps.Pipeline.RefreshBatchSize
	batch := make([]*models.Video, 0, batchSize)
	var newest *time.Time

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := o.deps.Videos.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("refresh: upsert batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	streamErr := adapter.Stream(ctx, func(dv source.DiscoveredVideo) error {
		releaseTime := dv.Pubtime
		if dv.FavTime != nil {
			releaseTime = *dv.FavTime
		}
		if !adapter.ShouldTake(releaseTime, src.Watermark) {
			return errStopStream
		}

		v := &models.Video{
			Bvid:               dv.Bvid,
			Title:              dv.Title,
			Intro:              dv.Intro,
			CoverURL:           dv.CoverURL,
			Category:           models.CategoryVideo,
			UploaderID:         dv.UploaderID,
			UploaderName:       dv.UploaderName,
			UploaderAvatarURL:  dv.UploaderAvatarURL,
			Pubtime:            dv.Pubtime,
			FavTime:            dv.FavTime,
			VideoSourceID:      src.ID,
		}
		batch = append(batch, v)

		if newest == nil || releaseTime.After(*newest) {
			t := releaseTime
			newest = &t
		}
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})

	if streamErr != nil && !errors.Is(streamErr, errStopStream) {
		// Stream errors abort refresh but must not advance the watermark
		// (spec §4.3 Stage 1); whatever was already batched is still worth
		// persisting since those rows were genuinely observed.
		if fErr := flush(); fErr != nil {
			o.log.Error("refresh: flush after stream error failed",
				slog.String("source", src.DisplayName), slog.Any("error", fErr))
		}
		return fmt.Errorf("refresh: stream: %w", streamErr)
	}

	if err := flush(); err != nil {
		return err
	}
	if newest != nil {
		if err := o.deps.Sources.AdvanceWatermark(ctx, src.ID, *newest); err != nil {
			return fmt.Errorf("refresh: advance watermark: %w", err)
		}
	}
	return nil
}
