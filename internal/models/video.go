package models

import (
	"gorm.io/gorm"

	"github.com/shirayuki/bilisync/internal/status"
)

// VideoCategory is the handful of category codes bilibili assigns to a
// Video. The refresh stage stores every item as CategoryVideo; no stage
// filters on it (spec §9 Open Question 3, SPEC_FULL.md Part F.3).
type VideoCategory int

const CategoryVideo VideoCategory = 2

// Video is a remote item as described in spec §3: for single-page items the
// playable unit itself, for multi-page/serialized items a container of
// Pages. Exactly one VideoSource FK is non-null, enforced in Validate.
type Video struct {
	BaseModel

	Bvid     string `gorm:"not null;size:20;uniqueIndex" json:"bvid"`
	Title    string `gorm:"not null;size:1024" json:"title"`
	Intro    string `gorm:"type:text" json:"intro"`
	CoverURL string `gorm:"size:2048" json:"cover_url"`

	Category VideoCategory `json:"category"`

	UploaderID        int64  `gorm:"index" json:"uploader_id"`
	UploaderName       string `gorm:"size:255" json:"uploader_name"`
	UploaderAvatarURL  string `gorm:"size:2048" json:"uploader_avatar_url"`

	CTime   Time  `json:"ctime"`
	Pubtime Time  `json:"pubtime"`
	FavTime *Time `json:"fav_time,omitempty"`

	// Tags is the JSON-encoded tag list populated by the enrich stage.
	Tags RawJSON `gorm:"type:text" json:"tags,omitempty"`

	// SinglePage is nil until enrichment runs (spec §3 "set only after
	// enrichment"), then true/false per P1.
	SinglePage *bool `json:"single_page,omitempty"`

	// Path is the rendered, sanitized output directory for this video (spec
	// §4.10), set during enrichment.
	Path string `gorm:"size:1024" json:"path,omitempty"`

	// Valid is false once enrichment observes code=-404 for this bvid (spec
	// §4.3 Stage 2, §7); such videos are never re-enriched.
	Valid bool `gorm:"not null;default:true;index" json:"valid"`

	DownloadStatus status.Status `gorm:"not null;default:0" json:"download_status"`
	ShouldDownload bool          `gorm:"not null;default:false;index" json:"should_download"`

	VideoSourceID ULID `gorm:"not null;type:varchar(26);index" json:"video_source_id"`

	Pages []Page `gorm:"foreignKey:VideoID" json:"pages,omitempty"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// BeforeCreate validates the video and generates its ULID.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if err := v.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return v.Validate()
}

// BeforeUpdate validates the video before an update.
func (v *Video) BeforeUpdate(tx *gorm.DB) error {
	return v.Validate()
}

// Validate enforces spec §3's Video invariants that aren't expressible as a
// plain column constraint.
func (v *Video) Validate() error {
	if v.Bvid == "" {
		return ErrBvidRequired
	}
	if v.VideoSourceID.IsZero() {
		return ErrVideoSourceIDRequired
	}
	return nil
}

// IsEnriched reports whether the enrich stage has already run for this
// video (P1: len(pages)==1 iff SinglePage==true, both only set together).
func (v *Video) IsEnriched() bool {
	return v.SinglePage != nil
}

// IsMultiPage reports whether this video is a container of more than one
// Page. Meaningless before enrichment.
func (v *Video) IsMultiPage() bool {
	return v.SinglePage != nil && !*v.SinglePage
}

// ReferenceTime returns the timestamp rule evaluation and NFO rendering use
// for this video, per the configured nfo_time_type (spec §6 "year/aired time
// source is either fav_time or pubtime").
func (v *Video) ReferenceTime(nfoTimeType string) Time {
	if nfoTimeType == "fav_time" && v.FavTime != nil {
		return *v.FavTime
	}
	return v.Pubtime
}
