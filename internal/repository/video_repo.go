package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/status"
)

// videoRepo implements VideoRepository using GORM, grounded on jobRepo's
// structure (job_repo.go) plus clause.OnConflict for the refresh stage's
// batched upsert (spec §4.3 Stage 1).
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

// UpsertBatch conflicts on bvid, updating only the fields the refresh stage
// owns. Enrichment-owned columns are deliberately absent from DoUpdates so a
// re-discovered video (e.g. re-favorited) never clobbers its own enriched
// state (spec §4.3 Stage 1 "never touches enrichment fields").
func (r *videoRepo) UpsertBatch(ctx context.Context, videos []*models.Video) error {
	if len(videos) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bvid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "intro", "cover_url",
			"uploader_id", "uploader_name", "uploader_avatar_url",
			"pubtime", "fav_time",
			"updated_at",
		}),
	}).Create(&videos).Error
	if err != nil {
		return fmt.Errorf("upserting videos: %w", err)
	}
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

func (r *videoRepo) GetByBvid(ctx context.Context, bvid string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("bvid = ?", bvid).First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by bvid: %w", err)
	}
	return &video, nil
}

// GetUnenriched matches rows with single_page IS NULL (spec §3 "set only
// after enrichment"), scoped to sourceID and still valid (spec §4.3 Stage 2
// skips videos already known gone).
func (r *videoRepo) GetUnenriched(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error) {
	var videos []*models.Video
	q := r.db.WithContext(ctx).
		Where("video_source_id = ? AND single_page IS NULL AND valid = ?", sourceID, true).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting unenriched videos: %w", err)
	}
	return videos, nil
}

// GetPendingDownload matches enriched, valid, should_download videos whose
// packed download_status has not yet reached the Completed bit (spec §4.6
// QueryBuilder, §4.3 Stage 3).
func (r *videoRepo) GetPendingDownload(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error) {
	var videos []*models.Video
	q := r.db.WithContext(ctx).
		Where("video_source_id = ? AND single_page IS NOT NULL AND valid = ? AND should_download = ?", sourceID, true, true).
		Where("download_status < ?", uint32(1)<<31).
		Order("pubtime ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting pending-download videos: %w", err)
	}
	return videos, nil
}

func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	return nil
}

func (r *videoRepo) UpdateDownloadStatus(ctx context.Context, id models.ULID, statusValue uint32) error {
	result := r.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", id).
		UpdateColumn("download_status", statusValue)
	if result.Error != nil {
		return fmt.Errorf("updating video download status: %w", result.Error)
	}
	return nil
}

func (r *videoRepo) CountBySource(ctx context.Context, sourceID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Video{}).Where("video_source_id = ?", sourceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting videos by source: %w", err)
	}
	return count, nil
}

// List applies VideoFilter for the control API's listing endpoint
// (SPEC_FULL.md Part D.4), using status.QueryBuilder for the
// download-status bucket (succeeded/failed/waiting).
func (r *videoRepo) List(ctx context.Context, filter VideoFilter) ([]*models.Video, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Video{})
	if !filter.SourceID.IsZero() {
		q = q.Where("video_source_id = ?", filter.SourceID)
	}

	builder := status.NewQueryBuilder("download_status")
	switch filter.DownloadStatus {
	case DownloadStatusSucceeded:
		q = q.Where(builder.Succeeded())
	case DownloadStatusFailed:
		q = q.Where(builder.Failed())
	case DownloadStatusWaiting:
		q = q.Where(builder.Waiting())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting videos: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var videos []*models.Video
	if err := q.Order("pubtime DESC").Offset(filter.Offset).Limit(limit).Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("listing videos: %w", err)
	}
	return videos, total, nil
}

var _ VideoRepository = (*videoRepo)(nil)
