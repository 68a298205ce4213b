package models

import "errors"

// Validation errors for VideoSource/Video/Page/Job, mirroring spec §3's
// invariants (natural-key presence per source kind, FK presence) and spec
// §4.6's job-type requirement.
var (
	// ErrNameRequired indicates a required display name field is empty.
	ErrNameRequired = errors.New("display_name is required")

	// ErrOutputPathRequired indicates a VideoSource is missing its output
	// root path.
	ErrOutputPathRequired = errors.New("output_path is required")

	// ErrInvalidSourceKind indicates an unrecognized SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrFavoriteIDRequired indicates a Favorite-kind source is missing its
	// natural key.
	ErrFavoriteIDRequired = errors.New("favorite_id is required for favorite sources")

	// ErrCollectionKeyRequired indicates a Collection-kind source is missing
	// its (series, creator) natural key.
	ErrCollectionKeyRequired = errors.New("collection_series_id and collection_creator_id are required for collection sources")

	// ErrCollectionSubKindInvalid indicates a Collection-kind source has an
	// unrecognized sub-kind.
	ErrCollectionSubKindInvalid = errors.New("collection_sub_kind must be one of: series, season")

	// ErrUploaderIDRequired indicates a Submission-kind source is missing
	// its uploader natural key.
	ErrUploaderIDRequired = errors.New("uploader_id is required for submission sources")

	// ErrBangumiKeyRequired indicates a Bangumi-kind source has none of
	// season/media/episode set.
	ErrBangumiKeyRequired = errors.New("one of bangumi_season_id, bangumi_media_id, bangumi_episode_id is required for bangumi sources")

	// ErrBvidRequired indicates a Video is missing its immutable natural
	// key.
	ErrBvidRequired = errors.New("bvid is required")

	// ErrVideoSourceIDRequired indicates a Video is missing its owning
	// VideoSource FK.
	ErrVideoSourceIDRequired = errors.New("video_source_id is required")

	// ErrVideoIDRequired indicates a Page is missing its owning Video FK.
	ErrVideoIDRequired = errors.New("video_id is required")

	// ErrPageIndexInvalid indicates a Page's 1-based index is out of range.
	ErrPageIndexInvalid = errors.New("pid must be >= 1")

	// ErrJobTypeRequired indicates a Job is missing its Type field.
	ErrJobTypeRequired = errors.New("type is required")

	// ErrJobTargetRequired indicates a Job is missing its TargetID field.
	ErrJobTargetRequired = errors.New("target_id is required")
)
