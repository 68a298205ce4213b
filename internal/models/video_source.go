package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// SourceKind identifies which of the five concrete adapters owns a
// VideoSource row (spec §3 "VideoSource (abstract; five concrete kinds)").
type SourceKind string

const (
	SourceKindFavorite   SourceKind = "favorite"
	SourceKindCollection SourceKind = "collection"
	SourceKindSubmission SourceKind = "submission"
	SourceKindWatchLater SourceKind = "watch_later"
	SourceKindBangumi    SourceKind = "bangumi"
)

// CollectionSubKind distinguishes the two Collection adapter flavors named
// in spec §4.2 ("two sub-kinds (series vs season) using different
// endpoints").
type CollectionSubKind string

const (
	CollectionSubKindSeries CollectionSubKind = "series"
	CollectionSubKindSeason CollectionSubKind = "season"
)

// RawJSON stores an arbitrary JSON document as TEXT/JSONB depending on
// driver, used for the per-source download rule (spec §4.2) and for
// serialized kind-specific options that don't warrant their own columns.
type RawJSON json.RawMessage

// Value implements driver.Valuer.
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *RawJSON) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case string:
		*j = RawJSON(v)
	case []byte:
		*j = RawJSON(append([]byte(nil), v...))
	default:
		return fmt.Errorf("unsupported type for RawJSON: %T", value)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// GormDataType returns the GORM data type for RawJSON.
func (RawJSON) GormDataType() string {
	return "text"
}

// VideoSource is the abstract subscription row described in spec §3. Its
// natural key varies by Kind: FavoriteID for Favorite, (CollectionSeriesID,
// CollectionCreatorID) for Collection, UploaderID for Submission, no
// additional key for the WatchLater singleton, and
// (BangumiSeasonID|BangumiMediaID|BangumiEpisodeID) for Bangumi. Exactly one
// set of kind-specific fields is populated per row, mirroring the "exactly
// one source FK is non-null" invariant spec §3 states for Video.
type VideoSource struct {
	BaseModel

	Kind        SourceKind `gorm:"not null;size:20;index" json:"kind"`
	DisplayName string     `gorm:"not null;size:255" json:"display_name"`
	OutputPath  string     `gorm:"not null;size:1024" json:"output_path"`
	Enabled     bool       `gorm:"not null;default:true;index" json:"enabled"`

	// DownloadRule is the optional per-source DNF filter (spec §4.2),
	// serialized as the rule package's JSON AST.
	DownloadRule RawJSON `gorm:"type:text" json:"download_rule,omitempty"`

	// Watermark is the newest release timestamp seen so far (spec §3, §4.3,
	// P2 monotonicity). Advanced by the refresh stage, never by the enrich
	// or download stages.
	Watermark *Time `json:"watermark,omitempty"`

	// Favorite
	FavoriteID int64 `gorm:"index" json:"favorite_id,omitempty"`

	// Collection
	CollectionSubKind  CollectionSubKind `gorm:"size:10" json:"collection_sub_kind,omitempty"`
	CollectionSeriesID int64             `gorm:"index" json:"collection_series_id,omitempty"`
	CollectionCreatorID int64            `gorm:"index" json:"collection_creator_id,omitempty"`

	// Submission (uploader feed)
	UploaderID int64 `gorm:"index" json:"uploader_id,omitempty"`

	// Bangumi
	BangumiSeasonID    int64 `gorm:"index" json:"bangumi_season_id,omitempty"`
	BangumiMediaID     int64 `gorm:"index" json:"bangumi_media_id,omitempty"`
	BangumiEpisodeID   int64 `gorm:"index" json:"bangumi_episode_id,omitempty"`
	DownloadAllSeasons bool  `gorm:"default:false" json:"download_all_seasons,omitempty"`
}

// TableName returns the table name for VideoSource.
func (VideoSource) TableName() string {
	return "video_sources"
}

// BeforeCreate validates the source and generates its ULID.
func (s *VideoSource) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// BeforeUpdate validates the source before an update.
func (s *VideoSource) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}

// Validate checks the kind-appropriate natural key is present. Disabling a
// source is a flag flip, never a soft-delete (spec §3 "Soft-deleted never"),
// so Validate runs on every save regardless of Enabled.
func (s *VideoSource) Validate() error {
	if s.DisplayName == "" {
		return ErrNameRequired
	}
	if s.OutputPath == "" {
		return ErrOutputPathRequired
	}
	switch s.Kind {
	case SourceKindFavorite:
		if s.FavoriteID == 0 {
			return ErrFavoriteIDRequired
		}
	case SourceKindCollection:
		if s.CollectionSeriesID == 0 || s.CollectionCreatorID == 0 {
			return ErrCollectionKeyRequired
		}
		if s.CollectionSubKind != CollectionSubKindSeries && s.CollectionSubKind != CollectionSubKindSeason {
			return ErrCollectionSubKindInvalid
		}
	case SourceKindSubmission:
		if s.UploaderID == 0 {
			return ErrUploaderIDRequired
		}
	case SourceKindWatchLater:
		// no additional natural key; singleton per spec §3
	case SourceKindBangumi:
		if s.BangumiSeasonID == 0 && s.BangumiMediaID == 0 && s.BangumiEpisodeID == 0 {
			return ErrBangumiKeyRequired
		}
	default:
		return ErrInvalidSourceKind
	}
	return nil
}

// AdvanceWatermark advances the watermark to t if t is strictly newer than
// the current value, preserving P2 monotonicity. A nil current watermark is
// always advanced.
func (s *VideoSource) AdvanceWatermark(t Time) {
	if s.Watermark == nil || t.After(*s.Watermark) {
		wm := t
		s.Watermark = &wm
	}
}
