package models

import (
	"gorm.io/gorm"

	"github.com/shirayuki/bilisync/internal/status"
)

// Page is a single playable stream unit inside a Video (spec §3). For
// single-page videos there is exactly one Page per Video (P1).
type Page struct {
	BaseModel

	VideoID ULID `gorm:"not null;type:varchar(26);index:idx_video_pid,priority:1" json:"video_id"`

	Cid   int64 `gorm:"not null" json:"cid"`
	Pid   int   `gorm:"not null;index:idx_video_pid,priority:2" json:"pid"` // 1-based index within the video
	Title string `gorm:"size:1024" json:"title"`

	// Width/Height are rotation-normalized (spec §3).
	Width  int `json:"width"`
	Height int `json:"height"`

	DurationSeconds int    `json:"duration_seconds"`
	FirstFrameURL   string `gorm:"size:2048" json:"first_frame_url"`

	DownloadStatus status.Status `gorm:"not null;default:0" json:"download_status"`

	// Path is the final local file path once the download stage completes.
	Path string `gorm:"size:1024" json:"path,omitempty"`
}

// TableName returns the table name for Page.
func (Page) TableName() string {
	return "pages"
}

// BeforeCreate validates the page and generates its ULID.
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate validates the page before an update.
func (p *Page) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}

// Validate enforces spec §3's Page invariants that aren't expressible as a
// plain column constraint.
func (p *Page) Validate() error {
	if p.VideoID.IsZero() {
		return ErrVideoIDRequired
	}
	if p.Pid < 1 {
		return ErrPageIndexInvalid
	}
	return nil
}

// RotationNormalizedDimensions returns (width, height) with width always the
// longer edge when the source reported a portrait rotation, matching the
// "rotation-normalized" requirement of spec §3. Bilibili reports raw
// dimensions with an implicit 90/270-degree rotation flag upstream; callers
// pass the already-resolved width/height here, so this is a pure swap guard
// for display dimensions rather than a rotation decoder.
func RotationNormalizedDimensions(width, height, rotate int) (int, int) {
	if rotate == 1 {
		return height, width
	}
	return width, height
}
