package source

import (
	"fmt"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/models"
)

// NewAdapter builds the concrete Adapter for a VideoSource row, dispatching
// on its Kind via a plain switch rather than inheritance (spec §9 "tagged
// union + method table, not inheritance").
func NewAdapter(vs *models.VideoSource, client *bilibili.Client, cred bilibili.Credential, mixinKey bilibili.MixinKeyFunc) (Adapter, error) {
	switch vs.Kind {
	case models.SourceKindFavorite:
		return &Favorite{Client: client, Credential: cred, FolderID: vs.FavoriteID}, nil
	case models.SourceKindCollection:
		return &Collection{
			Client:     client,
			Credential: cred,
			SubKind:    vs.CollectionSubKind,
			SeriesID:   vs.CollectionSeriesID,
			CreatorID:  vs.CollectionCreatorID,
		}, nil
	case models.SourceKindSubmission:
		return &Submission{Client: client, Credential: cred, MixinKey: mixinKey, UploaderID: vs.UploaderID}, nil
	case models.SourceKindWatchLater:
		return &WatchLater{Client: client, Credential: cred}, nil
	case models.SourceKindBangumi:
		return &Bangumi{
			Client:             client,
			Credential:         cred,
			SeasonID:           idOrEmpty(vs.BangumiSeasonID),
			EpisodeID:          idOrEmpty(vs.BangumiEpisodeID),
			DownloadAllSeasons: vs.DownloadAllSeasons,
		}, nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q", vs.Kind)
	}
}

func idOrEmpty(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
