// Package repository defines data access interfaces for bilisync entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/shirayuki/bilisync/internal/models"
)

// VideoSourceRepository defines operations for VideoSource persistence (spec
// §3, §4.8). A VideoSource is never soft-deleted — Delete is a hard delete,
// reserved for the supplemented control surface (SPEC_FULL.md Part D.4); the
// scheduler only ever toggles Enabled.
type VideoSourceRepository interface {
	Create(ctx context.Context, source *models.VideoSource) error
	GetByID(ctx context.Context, id models.ULID) (*models.VideoSource, error)
	GetAll(ctx context.Context) ([]*models.VideoSource, error)
	GetEnabled(ctx context.Context) ([]*models.VideoSource, error)
	Update(ctx context.Context, source *models.VideoSource) error
	Delete(ctx context.Context, id models.ULID) error
	// AdvanceWatermark persists a new watermark value iff it is newer than
	// the stored one, preserving P2 monotonicity at the storage layer too.
	AdvanceWatermark(ctx context.Context, id models.ULID, t time.Time) error
}

// VideoRepository defines operations for Video persistence (spec §3, §4.3).
type VideoRepository interface {
	// UpsertBatch inserts videos discovered by the refresh stage, updating
	// the mutable display fields (title, cover, uploader) on conflict by
	// bvid while leaving enrichment-owned fields (tags, single_page, path,
	// valid, download_status) untouched (spec §4.3 Stage 1).
	UpsertBatch(ctx context.Context, videos []*models.Video) error
	GetByID(ctx context.Context, id models.ULID) (*models.Video, error)
	GetByBvid(ctx context.Context, bvid string) (*models.Video, error)
	// GetUnenriched returns up to limit videos belonging to sourceID whose
	// enrich stage (spec §4.3 Stage 2) has not yet run, oldest first.
	GetUnenriched(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error)
	// GetPendingDownload returns up to limit enriched, valid, should_download
	// videos belonging to sourceID whose download status is not yet
	// Completed (spec §4.3 Stage 3, status.QueryBuilder).
	GetPendingDownload(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error)
	Update(ctx context.Context, video *models.Video) error
	UpdateDownloadStatus(ctx context.Context, id models.ULID, status uint32) error
	// CountBySource returns the total number of videos tracked under
	// sourceID.
	CountBySource(ctx context.Context, sourceID models.ULID) (int64, error)
	// List returns a page of videos matching filter, newest pubtime first,
	// plus the total row count matching filter (ignoring pagination) for the
	// control API's listing endpoint (SPEC_FULL.md Part D.4).
	List(ctx context.Context, filter VideoFilter) ([]*models.Video, int64, error)
}

// VideoFilter narrows VideoRepository.List. A zero-value SourceID matches
// every source. DownloadStatus selects which bucket of the packed
// download_status bitfield to match; empty matches all videos regardless of
// status.
type VideoFilter struct {
	SourceID       models.ULID
	DownloadStatus DownloadStatusFilter
	Offset         int
	Limit          int
}

// DownloadStatusFilter names the status.QueryBuilder bucket a video listing
// should be restricted to.
type DownloadStatusFilter string

const (
	DownloadStatusAny       DownloadStatusFilter = ""
	DownloadStatusSucceeded DownloadStatusFilter = "succeeded"
	DownloadStatusFailed    DownloadStatusFilter = "failed"
	DownloadStatusWaiting   DownloadStatusFilter = "waiting"
)

// PageRepository defines operations for Page persistence (spec §3, §4.3).
type PageRepository interface {
	// UpsertBatch replaces the Page set of one video during enrichment: a
	// page belongs to exactly one owning video, so bilisync re-derives the
	// full set each enrich run rather than diffing.
	UpsertBatch(ctx context.Context, pages []*models.Page) error
	GetByID(ctx context.Context, id models.ULID) (*models.Page, error)
	GetByVideoID(ctx context.Context, videoID models.ULID) ([]*models.Page, error)
	Update(ctx context.Context, page *models.Page) error
	UpdateDownloadStatus(ctx context.Context, id models.ULID, status uint32) error
}

// JobRepository defines operations for job persistence.
type JobRepository interface {
	// Create creates a new job.
	Create(ctx context.Context, job *models.Job) error
	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Job, error)
	// GetAll retrieves all jobs.
	GetAll(ctx context.Context) ([]*models.Job, error)
	// GetPending retrieves all pending/scheduled jobs ready for execution.
	GetPending(ctx context.Context) ([]*models.Job, error)
	// GetByStatus retrieves jobs by status.
	GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	// GetByType retrieves jobs by type.
	GetByType(ctx context.Context, jobType models.JobType) ([]*models.Job, error)
	// GetByTargetID retrieves jobs for a specific target.
	GetByTargetID(ctx context.Context, targetID models.ULID) ([]*models.Job, error)
	// GetRunning retrieves all currently running jobs.
	GetRunning(ctx context.Context) ([]*models.Job, error)
	// Update updates an existing job.
	Update(ctx context.Context, job *models.Job) error
	// Delete deletes a job by ID.
	Delete(ctx context.Context, id models.ULID) error
	// DeleteCompleted deletes completed jobs that finished before the given time.
	DeleteCompleted(ctx context.Context, before time.Time) (int64, error)
	// AcquireJob atomically acquires a pending job for execution (sets status to running).
	// Returns nil if no jobs are available or if another worker acquired it first.
	AcquireJob(ctx context.Context, workerID string) (*models.Job, error)
	// ReleaseJob releases a job lock (used when a worker fails unexpectedly).
	ReleaseJob(ctx context.Context, id models.ULID) error
	// FindDuplicatePending finds an existing pending/scheduled job for the same type and target.
	// Used for deduplication of concurrent job requests.
	FindDuplicatePending(ctx context.Context, jobType models.JobType, targetID models.ULID) (*models.Job, error)
	// CreateHistory creates a job history record.
	CreateHistory(ctx context.Context, history *models.JobHistory) error
	// GetHistory retrieves job history with pagination.
	GetHistory(ctx context.Context, jobType *models.JobType, offset, limit int) ([]*models.JobHistory, int64, error)
	// DeleteHistory deletes history records older than the specified time.
	DeleteHistory(ctx context.Context, before time.Time) (int64, error)
}
