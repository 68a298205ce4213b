package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/models"
)

// mockSourceRepo implements repository.VideoSourceRepository for testing.
type mockSourceRepo struct {
	sources map[models.ULID]*models.VideoSource
	err     error
}

func newMockSourceRepo() *mockSourceRepo {
	return &mockSourceRepo{sources: make(map[models.ULID]*models.VideoSource)}
}

func (m *mockSourceRepo) Create(ctx context.Context, source *models.VideoSource) error {
	if m.err != nil {
		return m.err
	}
	if err := source.Validate(); err != nil {
		return err
	}
	if source.ID.IsZero() {
		source.ID = models.NewULID()
	}
	m.sources[source.ID] = source
	return nil
}

func (m *mockSourceRepo) GetByID(ctx context.Context, id models.ULID) (*models.VideoSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sources[id], nil
}

func (m *mockSourceRepo) GetAll(ctx context.Context) ([]*models.VideoSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.VideoSource
	for _, s := range m.sources {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSourceRepo) GetEnabled(ctx context.Context) ([]*models.VideoSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.VideoSource
	for _, s := range m.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSourceRepo) Update(ctx context.Context, source *models.VideoSource) error {
	if m.err != nil {
		return m.err
	}
	if err := source.Validate(); err != nil {
		return err
	}
	m.sources[source.ID] = source
	return nil
}

func (m *mockSourceRepo) Delete(ctx context.Context, id models.ULID) error {
	if m.err != nil {
		return m.err
	}
	delete(m.sources, id)
	return nil
}

func (m *mockSourceRepo) AdvanceWatermark(ctx context.Context, id models.ULID, t time.Time) error {
	if m.err != nil {
		return m.err
	}
	s, ok := m.sources[id]
	if !ok {
		return nil
	}
	if s.Watermark == nil || t.After(*s.Watermark) {
		s.Watermark = &t
	}
	return nil
}

func TestSourceHandler_List(t *testing.T) {
	repo := newMockSourceRepo()
	src := &models.VideoSource{Kind: models.SourceKindFavorite, FavoriteID: 1, DisplayName: "Favs", OutputPath: "/out"}
	require.NoError(t, repo.Create(context.Background(), src))

	h := &SourceHandler{sources: repo}
	out, err := h.List(context.Background(), &ListSourcesInput{})
	require.NoError(t, err)
	require.Len(t, out.Body.Sources, 1)
	assert.Equal(t, "Favs", out.Body.Sources[0].DisplayName)
}

func TestSourceHandler_Get(t *testing.T) {
	repo := newMockSourceRepo()
	src := &models.VideoSource{Kind: models.SourceKindFavorite, FavoriteID: 1, DisplayName: "Favs", OutputPath: "/out"}
	require.NoError(t, repo.Create(context.Background(), src))
	h := &SourceHandler{sources: repo}

	t.Run("found", func(t *testing.T) {
		out, err := h.Get(context.Background(), &GetSourceInput{ID: src.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, src.ID.String(), out.Body.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := h.Get(context.Background(), &GetSourceInput{ID: models.NewULID().String()})
		require.Error(t, err)
	})

	t.Run("bad id", func(t *testing.T) {
		_, err := h.Get(context.Background(), &GetSourceInput{ID: "not-a-ulid"})
		require.Error(t, err)
	})
}

func TestSourceHandler_Create(t *testing.T) {
	repo := newMockSourceRepo()
	h := &SourceHandler{sources: repo}

	t.Run("valid favorite", func(t *testing.T) {
		enabled := true
		out, err := h.Create(context.Background(), &CreateSourceInput{Body: CreateSourceRequest{
			Kind:        models.SourceKindFavorite,
			DisplayName: "My Favs",
			OutputPath:  "/media/favs",
			Enabled:     &enabled,
			FavoriteID:  42,
		}})
		require.NoError(t, err)
		assert.Equal(t, "My Favs", out.Body.DisplayName)
		assert.True(t, out.Body.Enabled)
	})

	t.Run("missing natural key rejected", func(t *testing.T) {
		_, err := h.Create(context.Background(), &CreateSourceInput{Body: CreateSourceRequest{
			Kind:        models.SourceKindFavorite,
			DisplayName: "Bad",
			OutputPath:  "/media/bad",
		}})
		require.Error(t, err)
	})
}

func TestSourceHandler_Patch(t *testing.T) {
	repo := newMockSourceRepo()
	src := &models.VideoSource{Kind: models.SourceKindFavorite, FavoriteID: 1, DisplayName: "Old", OutputPath: "/out", Enabled: true}
	require.NoError(t, repo.Create(context.Background(), src))
	h := &SourceHandler{sources: repo}

	newName := "New Name"
	disabled := false
	out, err := h.Patch(context.Background(), &PatchSourceInput{
		ID: src.ID.String(),
		Body: PatchSourceRequest{
			DisplayName: &newName,
			Enabled:     &disabled,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", out.Body.DisplayName)
	assert.False(t, out.Body.Enabled)
	// Natural key untouched by Patch.
	assert.Equal(t, int64(1), repo.sources[src.ID].FavoriteID)
}
