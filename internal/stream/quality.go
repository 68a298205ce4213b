// Package stream parses the play-url manifest returned by bilibili's
// player endpoint and selects the best video/audio representation under a
// user-supplied preference (spec §4.4).
package stream

// VideoQuality is bilibili's ordered enum of video resolution/format tiers.
// The numeric values are the platform's own quality ids; ordering by value
// matches the platform's own quality ordering (spec §4.4's enum list).
type VideoQuality int

const (
	VideoQuality360p     VideoQuality = 16
	VideoQuality480p     VideoQuality = 32
	VideoQuality720p     VideoQuality = 64
	VideoQuality1080p    VideoQuality = 80
	VideoQuality1080pPlus VideoQuality = 112
	VideoQuality1080p60  VideoQuality = 116
	VideoQuality4k       VideoQuality = 120
	VideoQualityHDR      VideoQuality = 125
	VideoQualityDolby    VideoQuality = 126
	VideoQuality8k       VideoQuality = 127
)

// videoQualityValues is the set of quality ids the platform may report;
// anything else fails to parse.
var videoQualityValues = map[int]VideoQuality{
	16: VideoQuality360p, 32: VideoQuality480p, 64: VideoQuality720p,
	80: VideoQuality1080p, 112: VideoQuality1080pPlus, 116: VideoQuality1080p60,
	120: VideoQuality4k, 125: VideoQualityHDR, 126: VideoQualityDolby, 127: VideoQuality8k,
}

func parseVideoQuality(id int) (VideoQuality, bool) {
	q, ok := videoQualityValues[id]
	return q, ok
}

// AudioQuality is bilibili's ordered enum of audio bitrate/format tiers.
type AudioQuality int

const (
	AudioQuality64k   AudioQuality = 30216
	AudioQuality132k  AudioQuality = 30232
	AudioQualityDolby AudioQuality = 30250
	AudioQualityHiRES AudioQuality = 30251
	AudioQuality192k  AudioQuality = 30280
)

var audioQualityValues = map[int]AudioQuality{
	30216: AudioQuality64k, 30232: AudioQuality132k, 30250: AudioQualityDolby,
	30251: AudioQualityHiRES, 30280: AudioQuality192k,
}

func parseAudioQuality(id int) (AudioQuality, bool) {
	q, ok := audioQualityValues[id]
	return q, ok
}

// SortKey orders AudioQuality so Dolby and Hi-Res sort after 192k (spec
// §4.4: "Dolby and Hi-Res are sorted after 192k via a +40 offset") while
// preserving their relative order to each other.
func (q AudioQuality) SortKey() int {
	switch q {
	case AudioQualityDolby, AudioQualityHiRES:
		return int(q) + 40
	default:
		return int(q)
	}
}

// VideoCodec is the accepted video codec vocabulary. Matching against the
// manifest's free-form codecs string is substring-based, in the fixed order
// {hev, avc, av01} (spec §4.4 step 2).
type VideoCodec string

const (
	CodecHEV VideoCodec = "hev"
	CodecAVC VideoCodec = "avc"
	CodecAV1 VideoCodec = "av01"
)

// codecMatchOrder is the fixed substring-match order from spec §4.4.
var codecMatchOrder = []VideoCodec{CodecHEV, CodecAVC, CodecAV1}
