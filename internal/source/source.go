// Package source implements the five VideoSource adapters named in spec §3
// and §4.2: Favorite, Collection, Submission, WatchLater, Bangumi. Each
// adapter streams DiscoveredVideo records from bilibili's REST surface and
// decides, via ShouldTake, which of those records the refresh stage should
// persist as a new Video row.
package source

import (
	"context"
	"time"
)

// DiscoveredVideo is the adapter-agnostic shape the refresh stage consumes:
// one struct with kind-specific fields populated as available.
type DiscoveredVideo struct {
	Bvid     string
	Title    string
	Intro    string
	CoverURL string

	UploaderID        int64
	UploaderName      string
	UploaderAvatarURL string

	Pubtime time.Time
	FavTime *time.Time

	// Bangumi-only: carried through so the enrich stage can resolve cid
	// without a second season-info round trip.
	SeasonID  string
	EpisodeID string
	Cid       string
	Aid       string
	ShowTitle string
}

// VideoCallback is called for each video discovered during Stream.
// Returning an error stops iteration and is propagated from Stream.
type VideoCallback func(DiscoveredVideo) error

// Adapter is the common interface every concrete source kind implements.
type Adapter interface {
	// Stream walks every page of the source's current listing, in the
	// kind's natural order (newest-first for everything except Favorite,
	// which lists by mtime), invoking callback once per video. It stops and
	// returns the first error from either a page fetch/parse or callback.
	Stream(ctx context.Context, callback VideoCallback) error

	// ShouldTake reports whether a discovered video is new enough to take,
	// given the source's current watermark (spec §3 P2: refresh-stage
	// monotonic advance). Bangumi always returns true (SPEC_FULL.md Part F,
	// Open Question 2): episodes can be asynchronously re-ordered/revised
	// after a season airs, so watermark gating would silently miss them.
	ShouldTake(releaseTime time.Time, watermark *time.Time) bool
}

// watermarkShouldTake is the shared P2 rule used by every adapter except
// Bangumi: take iff releaseTime is strictly newer than the current
// watermark, or there is no watermark yet.
func watermarkShouldTake(releaseTime time.Time, watermark *time.Time) bool {
	return watermark == nil || releaseTime.After(*watermark)
}
