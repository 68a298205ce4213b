package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/repository"
)

// VideoHandler exposes read access to Video rows (SPEC_FULL.md Part D.4).
type VideoHandler struct {
	videos repository.VideoRepository
}

// Register registers the video routes.
func (h *VideoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listVideos",
		Method:      "GET",
		Path:        "/api/v1/videos",
		Summary:     "List videos",
		Description: "Filters by source_id and download status bucket (succeeded, failed, waiting).",
		Tags:        []string{"Videos"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getVideo",
		Method:      "GET",
		Path:        "/api/v1/videos/{id}",
		Summary:     "Get a video",
		Tags:        []string{"Videos"},
	}, h.Get)
}

// VideoResponse is the wire shape for a Video.
type VideoResponse struct {
	ID             string       `json:"id"`
	Bvid           string       `json:"bvid"`
	Title          string       `json:"title"`
	CoverURL       string       `json:"cover_url"`
	UploaderID     int64        `json:"uploader_id"`
	UploaderName   string       `json:"uploader_name"`
	Pubtime        models.Time  `json:"pubtime"`
	FavTime        *models.Time `json:"fav_time,omitempty"`
	SinglePage     *bool        `json:"single_page,omitempty"`
	Path           string       `json:"path,omitempty"`
	Valid          bool         `json:"valid"`
	ShouldDownload bool         `json:"should_download"`
	DownloadStatus uint32       `json:"download_status"`
	VideoSourceID  string       `json:"video_source_id"`
}

func videoFromModel(v *models.Video) VideoResponse {
	return VideoResponse{
		ID:             v.ID.String(),
		Bvid:           v.Bvid,
		Title:          v.Title,
		CoverURL:       v.CoverURL,
		UploaderID:     v.UploaderID,
		UploaderName:   v.UploaderName,
		Pubtime:        v.Pubtime,
		FavTime:        v.FavTime,
		SinglePage:     v.SinglePage,
		Path:           v.Path,
		Valid:          v.Valid,
		ShouldDownload: v.ShouldDownload,
		DownloadStatus: uint32(v.DownloadStatus),
		VideoSourceID:  v.VideoSourceID.String(),
	}
}

// ListVideosInput is the input for listing videos.
type ListVideosInput struct {
	SourceID string `query:"source_id" doc:"Restrict to one VideoSource (ULID)"`
	Status   string `query:"status" enum:",succeeded,failed,waiting" doc:"Restrict to a download-status bucket"`
	Offset   int    `query:"offset" default:"0" minimum:"0"`
	Limit    int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

// ListVideosOutput is the output for listing videos.
type ListVideosOutput struct {
	Body struct {
		Videos     []VideoResponse `json:"videos"`
		TotalCount int64           `json:"total_count"`
	}
}

// List returns a filtered, paginated page of videos.
func (h *VideoHandler) List(ctx context.Context, input *ListVideosInput) (*ListVideosOutput, error) {
	filter := repository.VideoFilter{
		DownloadStatus: repository.DownloadStatusFilter(input.Status),
		Offset:         input.Offset,
		Limit:          input.Limit,
	}
	if input.SourceID != "" {
		id, err := models.ParseULID(input.SourceID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid source_id format", err)
		}
		filter.SourceID = id
	}

	videos, total, err := h.videos.List(ctx, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list videos", err)
	}

	resp := &ListVideosOutput{}
	resp.Body.Videos = make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp.Body.Videos = append(resp.Body.Videos, videoFromModel(v))
	}
	resp.Body.TotalCount = total
	return resp, nil
}

// GetVideoInput is the input for getting a video.
type GetVideoInput struct {
	ID string `path:"id" doc:"Video ID (ULID)"`
}

// GetVideoOutput is the output for getting a video.
type GetVideoOutput struct {
	Body VideoResponse
}

// Get returns one video by ID.
func (h *VideoHandler) Get(ctx context.Context, input *GetVideoInput) (*GetVideoOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	video, err := h.videos.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get video", err)
	}
	if video == nil {
		return nil, notFound("video", input.ID)
	}
	return &GetVideoOutput{Body: videoFromModel(video)}, nil
}
