package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shirayuki/bilisync/internal/models"
)

// videoSourceRepo implements VideoSourceRepository using GORM, grounded on
// jobRepo's structure (job_repo.go).
type videoSourceRepo struct {
	db *gorm.DB
}

// NewVideoSourceRepository creates a new VideoSourceRepository.
func NewVideoSourceRepository(db *gorm.DB) *videoSourceRepo {
	return &videoSourceRepo{db: db}
}

func (r *videoSourceRepo) Create(ctx context.Context, source *models.VideoSource) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating video source: %w", err)
	}
	return nil
}

func (r *videoSourceRepo) GetByID(ctx context.Context, id models.ULID) (*models.VideoSource, error) {
	var source models.VideoSource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video source by ID: %w", err)
	}
	return &source, nil
}

func (r *videoSourceRepo) GetAll(ctx context.Context) ([]*models.VideoSource, error) {
	var sources []*models.VideoSource
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all video sources: %w", err)
	}
	return sources, nil
}

func (r *videoSourceRepo) GetEnabled(ctx context.Context) ([]*models.VideoSource, error) {
	var sources []*models.VideoSource
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled video sources: %w", err)
	}
	return sources, nil
}

func (r *videoSourceRepo) Update(ctx context.Context, source *models.VideoSource) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating video source: %w", err)
	}
	return nil
}

func (r *videoSourceRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.VideoSource{}).Error; err != nil {
		return fmt.Errorf("deleting video source: %w", err)
	}
	return nil
}

// AdvanceWatermark only writes when t is strictly newer than the stored
// watermark (or the stored watermark is NULL), so concurrent cycles can
// never regress it (spec §3 P2).
func (r *videoSourceRepo) AdvanceWatermark(ctx context.Context, id models.ULID, t time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.VideoSource{}).
		Where("id = ? AND (watermark IS NULL OR watermark < ?)", id, t).
		UpdateColumn("watermark", t)
	if result.Error != nil {
		return fmt.Errorf("advancing watermark: %w", result.Error)
	}
	return nil
}

var _ VideoSourceRepository = (*videoSourceRepo)(nil)
