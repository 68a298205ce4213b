package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/repository"
)

// mockVideoRepo implements repository.VideoRepository for testing, storing
// rows in insertion order so List's filtering is exercised over a plain
// slice scan rather than a real SQL query.
type mockVideoRepo struct {
	videos []*models.Video
	err    error
}

func (m *mockVideoRepo) UpsertBatch(ctx context.Context, videos []*models.Video) error { return m.err }

func (m *mockVideoRepo) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, v := range m.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, nil
}

func (m *mockVideoRepo) GetByBvid(ctx context.Context, bvid string) (*models.Video, error) {
	return nil, m.err
}

func (m *mockVideoRepo) GetUnenriched(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error) {
	return nil, m.err
}

func (m *mockVideoRepo) GetPendingDownload(ctx context.Context, sourceID models.ULID, limit int) ([]*models.Video, error) {
	return nil, m.err
}

func (m *mockVideoRepo) Update(ctx context.Context, video *models.Video) error { return m.err }

func (m *mockVideoRepo) UpdateDownloadStatus(ctx context.Context, id models.ULID, statusValue uint32) error {
	return m.err
}

func (m *mockVideoRepo) CountBySource(ctx context.Context, sourceID models.ULID) (int64, error) {
	return 0, m.err
}

func (m *mockVideoRepo) List(ctx context.Context, filter repository.VideoFilter) ([]*models.Video, int64, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []*models.Video
	for _, v := range m.videos {
		if !filter.SourceID.IsZero() && v.VideoSourceID != filter.SourceID {
			continue
		}
		matched = append(matched, v)
	}
	total := int64(len(matched))
	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], total, nil
}

var _ repository.VideoRepository = (*mockVideoRepo)(nil)

func TestVideoHandler_List(t *testing.T) {
	sourceID := models.NewULID()
	repo := &mockVideoRepo{videos: []*models.Video{
		{BaseModel: models.BaseModel{ID: models.NewULID()}, Bvid: "BV1", VideoSourceID: sourceID},
		{BaseModel: models.BaseModel{ID: models.NewULID()}, Bvid: "BV2", VideoSourceID: sourceID},
	}}
	h := &VideoHandler{videos: repo}

	out, err := h.List(context.Background(), &ListVideosInput{SourceID: sourceID.String(), Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Body.TotalCount)
	assert.Len(t, out.Body.Videos, 2)
}

func TestVideoHandler_List_BadSourceID(t *testing.T) {
	h := &VideoHandler{videos: &mockVideoRepo{}}
	_, err := h.List(context.Background(), &ListVideosInput{SourceID: "garbage"})
	require.Error(t, err)
}

func TestVideoHandler_Get(t *testing.T) {
	v := &models.Video{BaseModel: models.BaseModel{ID: models.NewULID()}, Bvid: "BV1"}
	repo := &mockVideoRepo{videos: []*models.Video{v}}
	h := &VideoHandler{videos: repo}

	t.Run("found", func(t *testing.T) {
		out, err := h.Get(context.Background(), &GetVideoInput{ID: v.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, "BV1", out.Body.Bvid)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := h.Get(context.Background(), &GetVideoInput{ID: models.NewULID().String()})
		require.Error(t, err)
	})
}
