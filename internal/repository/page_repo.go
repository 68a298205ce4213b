package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shirayuki/bilisync/internal/models"
)

// pageRepo implements PageRepository using GORM, grounded on jobRepo's
// structure (job_repo.go).
type pageRepo struct {
	db *gorm.DB
}

// NewPageRepository creates a new PageRepository.
func NewPageRepository(db *gorm.DB) *pageRepo {
	return &pageRepo{db: db}
}

// UpsertBatch replaces the full Page set for the video(s) present in pages:
// every existing page row for each distinct VideoID is deleted, then the
// fresh set is inserted, inside one transaction. A Page's natural key (cid)
// is owned entirely by its parent video's enrichment result, so a diff/merge
// would add complexity with no benefit here.
func (r *pageRepo) UpsertBatch(ctx context.Context, pages []*models.Page) error {
	if len(pages) == 0 {
		return nil
	}
	videoIDs := make(map[models.ULID]struct{})
	for _, p := range pages {
		videoIDs[p.VideoID] = struct{}{}
	}
	ids := make([]models.ULID, 0, len(videoIDs))
	for id := range videoIDs {
		ids = append(ids, id)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id IN ?", ids).Delete(&models.Page{}).Error; err != nil {
			return fmt.Errorf("clearing existing pages: %w", err)
		}
		if err := tx.Create(&pages).Error; err != nil {
			return fmt.Errorf("inserting pages: %w", err)
		}
		return nil
	})
}

func (r *pageRepo) GetByID(ctx context.Context, id models.ULID) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&page).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting page by ID: %w", err)
	}
	return &page, nil
}

func (r *pageRepo) GetByVideoID(ctx context.Context, videoID models.ULID) ([]*models.Page, error) {
	var pages []*models.Page
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Order("pid ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("getting pages by video ID: %w", err)
	}
	return pages, nil
}

func (r *pageRepo) Update(ctx context.Context, page *models.Page) error {
	if err := r.db.WithContext(ctx).Save(page).Error; err != nil {
		return fmt.Errorf("updating page: %w", err)
	}
	return nil
}

func (r *pageRepo) UpdateDownloadStatus(ctx context.Context, id models.ULID, statusValue uint32) error {
	result := r.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", id).
		UpdateColumn("download_status", statusValue)
	if result.Error != nil {
		return fmt.Errorf("updating page download status: %w", result.Error)
	}
	return nil
}

var _ PageRepository = (*pageRepo)(nil)
