package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/repository"
)

// SourceHandler exposes VideoSource CRUD over HTTP (SPEC_FULL.md Part D.4).
type SourceHandler struct {
	sources repository.VideoSourceRepository
}

// Register registers the source routes.
func (h *SourceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSources",
		Method:      "GET",
		Path:        "/api/v1/sources",
		Summary:     "List video sources",
		Tags:        []string{"Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSource",
		Method:      "GET",
		Path:        "/api/v1/sources/{id}",
		Summary:     "Get a video source",
		Tags:        []string{"Sources"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createSource",
		Method:      "POST",
		Path:        "/api/v1/sources",
		Summary:     "Create a video source",
		Tags:        []string{"Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "patchSource",
		Method:      "PATCH",
		Path:        "/api/v1/sources/{id}",
		Summary:     "Patch a video source",
		Description: "Updates display name, output path, enabled flag, and download rule. Kind-specific natural keys are immutable after creation.",
		Tags:        []string{"Sources"},
	}, h.Patch)
}

// SourceResponse is the wire shape for a VideoSource.
type SourceResponse struct {
	ID           string            `json:"id"`
	Kind         models.SourceKind `json:"kind"`
	DisplayName  string            `json:"display_name"`
	OutputPath   string            `json:"output_path"`
	Enabled      bool              `json:"enabled"`
	Watermark    *models.Time      `json:"watermark,omitempty"`
	DownloadRule string            `json:"download_rule,omitempty"`
}

func sourceFromModel(s *models.VideoSource) SourceResponse {
	return SourceResponse{
		ID:           s.ID.String(),
		Kind:         s.Kind,
		DisplayName:  s.DisplayName,
		OutputPath:   s.OutputPath,
		Enabled:      s.Enabled,
		Watermark:    s.Watermark,
		DownloadRule: string(s.DownloadRule),
	}
}

// ListSourcesInput is the input for listing sources.
type ListSourcesInput struct{}

// ListSourcesOutput is the output for listing sources.
type ListSourcesOutput struct {
	Body struct {
		Sources []SourceResponse `json:"sources"`
	}
}

// List returns every configured source, enabled or not.
func (h *SourceHandler) List(ctx context.Context, input *ListSourcesInput) (*ListSourcesOutput, error) {
	sources, err := h.sources.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sources", err)
	}
	resp := &ListSourcesOutput{}
	resp.Body.Sources = make([]SourceResponse, 0, len(sources))
	for _, s := range sources {
		resp.Body.Sources = append(resp.Body.Sources, sourceFromModel(s))
	}
	return resp, nil
}

// GetSourceInput is the input for getting a source.
type GetSourceInput struct {
	ID string `path:"id" doc:"Source ID (ULID)"`
}

// GetSourceOutput is the output for getting a source.
type GetSourceOutput struct {
	Body SourceResponse
}

// Get returns one source by ID.
func (h *SourceHandler) Get(ctx context.Context, input *GetSourceInput) (*GetSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	source, err := h.sources.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get source", err)
	}
	if source == nil {
		return nil, notFound("source", input.ID)
	}
	return &GetSourceOutput{Body: sourceFromModel(source)}, nil
}

// CreateSourceRequest is the request body for creating a source. Exactly
// one natural-key field group must be populated per Kind (spec §3); the
// model's Validate enforces this on save.
type CreateSourceRequest struct {
	Kind        models.SourceKind `json:"kind"`
	DisplayName string            `json:"display_name"`
	OutputPath  string            `json:"output_path"`
	Enabled     *bool             `json:"enabled,omitempty"`

	FavoriteID int64 `json:"favorite_id,omitempty"`

	CollectionSubKind   models.CollectionSubKind `json:"collection_sub_kind,omitempty"`
	CollectionSeriesID  int64                    `json:"collection_series_id,omitempty"`
	CollectionCreatorID int64                    `json:"collection_creator_id,omitempty"`

	UploaderID int64 `json:"uploader_id,omitempty"`

	BangumiSeasonID    int64 `json:"bangumi_season_id,omitempty"`
	BangumiMediaID     int64 `json:"bangumi_media_id,omitempty"`
	BangumiEpisodeID   int64 `json:"bangumi_episode_id,omitempty"`
	DownloadAllSeasons bool  `json:"download_all_seasons,omitempty"`

	DownloadRule string `json:"download_rule,omitempty"`
}

// CreateSourceInput is the input for creating a source.
type CreateSourceInput struct {
	Body CreateSourceRequest
}

// CreateSourceOutput is the output for creating a source.
type CreateSourceOutput struct {
	Body SourceResponse
}

// Create inserts a new VideoSource. Validation (natural-key presence per
// Kind) happens in models.VideoSource.BeforeCreate.
func (h *SourceHandler) Create(ctx context.Context, input *CreateSourceInput) (*CreateSourceOutput, error) {
	req := input.Body
	source := &models.VideoSource{
		Kind:                req.Kind,
		DisplayName:         req.DisplayName,
		OutputPath:          req.OutputPath,
		Enabled:             models.BoolVal(req.Enabled),
		FavoriteID:          req.FavoriteID,
		CollectionSubKind:   req.CollectionSubKind,
		CollectionSeriesID:  req.CollectionSeriesID,
		CollectionCreatorID: req.CollectionCreatorID,
		UploaderID:          req.UploaderID,
		BangumiSeasonID:     req.BangumiSeasonID,
		BangumiMediaID:      req.BangumiMediaID,
		BangumiEpisodeID:    req.BangumiEpisodeID,
		DownloadAllSeasons:  req.DownloadAllSeasons,
	}
	if req.DownloadRule != "" {
		source.DownloadRule = models.RawJSON(req.DownloadRule)
	}

	if err := h.sources.Create(ctx, source); err != nil {
		return nil, huma.Error400BadRequest("failed to create source", err)
	}
	return &CreateSourceOutput{Body: sourceFromModel(source)}, nil
}

// PatchSourceRequest carries only the mutable fields (spec §3: the
// kind-specific natural key never changes after creation).
type PatchSourceRequest struct {
	DisplayName  *string `json:"display_name,omitempty"`
	OutputPath   *string `json:"output_path,omitempty"`
	Enabled      *bool   `json:"enabled,omitempty"`
	DownloadRule *string `json:"download_rule,omitempty"`
}

// PatchSourceInput is the input for patching a source.
type PatchSourceInput struct {
	ID   string `path:"id" doc:"Source ID (ULID)"`
	Body PatchSourceRequest
}

// PatchSourceOutput is the output for patching a source.
type PatchSourceOutput struct {
	Body SourceResponse
}

// Patch applies a partial update to a source.
func (h *SourceHandler) Patch(ctx context.Context, input *PatchSourceInput) (*PatchSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	source, err := h.sources.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get source", err)
	}
	if source == nil {
		return nil, notFound("source", input.ID)
	}

	body := input.Body
	if body.DisplayName != nil {
		source.DisplayName = *body.DisplayName
	}
	if body.OutputPath != nil {
		source.OutputPath = *body.OutputPath
	}
	if body.Enabled != nil {
		source.Enabled = *body.Enabled
	}
	if body.DownloadRule != nil {
		source.DownloadRule = models.RawJSON(*body.DownloadRule)
	}

	if err := h.sources.Update(ctx, source); err != nil {
		return nil, huma.Error400BadRequest("failed to update source", err)
	}
	return &PatchSourceOutput{Body: sourceFromModel(source)}, nil
}
