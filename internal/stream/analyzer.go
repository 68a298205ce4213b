package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrRiskControl signals that the manifest's dash.video array is missing or
// empty, which spec §4.4 documents as the upstream's way of indicating risk
// control ("the upstream frequently returns an empty list in that case").
// Callers must treat this distinctly from a parse error (spec §9's
// "distinguished error value ... not a string").
var ErrRiskControl = errors.New("stream: risk control (empty video stream list)")

// Kind distinguishes the five possible underlying stream encodings named in
// spec §4.4's algorithm step 1, plus the dash video/audio pair.
type Kind int

const (
	KindFlv Kind = iota
	KindHTML5MP4
	KindEpisodeTryMP4
	KindDashVideo
	KindDashAudio
)

// Stream is a single selectable representation: either a mixed container
// (Flv/HTML5MP4/EpisodeTryMP4) or one dash video/audio track.
type Stream struct {
	Kind  Kind
	URL   string
	VQ    VideoQuality
	AQ    AudioQuality
	Codec VideoCodec
}

// BestStream is the outcome of stream selection (spec §4.4 step 6): either
// a single mixed stream, or a video stream paired with an optional audio
// stream (some items are silent).
type BestStream struct {
	Mixed *Stream
	Video *Stream
	Audio *Stream // nil for silent videos
}

// manifest mirrors the subset of the play-url JSON envelope's `data` field
// the analyzer inspects.
type manifest struct {
	Format  string `json:"format"`
	IsHTML5 *bool  `json:"is_html5"`
	Durl    []struct {
		URL string `json:"url"`
	} `json:"durl"`
	Dash struct {
		Video []dashTrack `json:"video"`
		Audio []dashTrack `json:"audio"`
		Flac  *struct {
			Audio *dashTrack `json:"audio"`
		} `json:"flac"`
		Dolby *struct {
			Audio []dashTrack `json:"audio"`
		} `json:"dolby"`
	} `json:"dash"`
}

type dashTrack struct {
	BaseURL string `json:"baseUrl"`
	ID      int    `json:"id"`
	Codecs  string `json:"codecs"`
}

// Analyzer wraps a decoded play-url manifest (spec §4.4 "PageAnalyzer").
type Analyzer struct {
	m manifest
}

// Parse decodes the `data` field of a `/player/wbi/playurl` envelope.
func Parse(data []byte) (*Analyzer, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("stream: parse manifest: %w", err)
	}
	return &Analyzer{m: m}, nil
}

func (a *Analyzer) isFlv() bool {
	return len(a.m.Durl) > 0 && strings.HasPrefix(a.m.Format, "flv")
}

func (a *Analyzer) isHTML5MP4() bool {
	return len(a.m.Durl) > 0 && strings.HasPrefix(a.m.Format, "mp4") && a.m.IsHTML5 != nil && *a.m.IsHTML5
}

func (a *Analyzer) isEpisodeTryMP4() bool {
	return len(a.m.Durl) > 0 && strings.HasPrefix(a.m.Format, "mp4") && (a.m.IsHTML5 == nil || !*a.m.IsHTML5)
}

func matchCodec(raw string) (VideoCodec, bool) {
	for _, c := range codecMatchOrder {
		if strings.Contains(raw, string(c)) {
			return c, true
		}
	}
	return "", false
}

// videoStreams builds the filtered dash.video candidate list (step 2). A
// missing or empty raw dash.video array is risk control (spec §4.4, §9
// boundary scenario); a non-empty raw array whose entries are all filtered
// out by user preference is a normal "no match" outcome, surfaced by the
// caller as ErrNoVideoStream.
func (a *Analyzer) videoStreams(opt FilterOption) ([]Stream, error) {
	if len(a.m.Dash.Video) == 0 {
		return nil, ErrRiskControl
	}
	var out []Stream
	for _, v := range a.m.Dash.Video {
		if v.BaseURL == "" {
			continue
		}
		q, ok := parseVideoQuality(v.ID)
		if !ok {
			return nil, fmt.Errorf("stream: invalid video quality id %d", v.ID)
		}
		codec, ok := matchCodec(v.Codecs)
		if !ok {
			continue // e.g. dvh1.*, hvc1.* — skip, not an error (spec §4.4)
		}
		if !opt.acceptsCodec(codec) || q < opt.VideoMinQuality || q > opt.VideoMaxQuality {
			continue
		}
		if q == VideoQualityHDR && opt.NoHDR {
			continue
		}
		if q == VideoQualityDolby && opt.NoDolbyVideo {
			continue
		}
		out = append(out, Stream{Kind: KindDashVideo, URL: v.BaseURL, VQ: q, Codec: codec})
	}
	return out, nil
}

// ErrNoVideoStream is returned when the raw manifest carried at least one
// dash.video entry but none survived the user's quality/codec filter. This
// is a configuration mismatch, not risk control.
var ErrNoVideoStream = errors.New("stream: no video stream matches the configured filter")

func (a *Analyzer) audioStreams(opt FilterOption) ([]Stream, error) {
	var out []Stream
	for _, t := range a.m.Dash.Audio {
		if t.BaseURL == "" {
			continue
		}
		q, ok := parseAudioQuality(t.ID)
		if !ok {
			return nil, fmt.Errorf("stream: invalid audio quality id %d", t.ID)
		}
		if q < opt.AudioMinQuality || q > opt.AudioMaxQuality {
			continue
		}
		out = append(out, Stream{Kind: KindDashAudio, URL: t.BaseURL, AQ: q})
	}
	if flac := a.m.Dash.Flac; flac != nil && flac.Audio != nil && !opt.NoHiRes {
		t := *flac.Audio
		if t.BaseURL == "" {
			return nil, fmt.Errorf("stream: invalid flac stream")
		}
		q, ok := parseAudioQuality(t.ID)
		if !ok {
			return nil, fmt.Errorf("stream: invalid flac stream quality %d", t.ID)
		}
		if q >= opt.AudioMinQuality && q <= opt.AudioMaxQuality {
			out = append(out, Stream{Kind: KindDashAudio, URL: t.BaseURL, AQ: q})
		}
	}
	if dolby := a.m.Dash.Dolby; dolby != nil && len(dolby.Audio) > 0 && !opt.NoDolbyAudio {
		t := dolby.Audio[0]
		if t.BaseURL == "" {
			return nil, fmt.Errorf("stream: invalid dolby audio stream")
		}
		q, ok := parseAudioQuality(t.ID)
		if !ok {
			return nil, fmt.Errorf("stream: invalid dolby audio stream quality %d", t.ID)
		}
		if q >= opt.AudioMinQuality && q <= opt.AudioMaxQuality {
			out = append(out, Stream{Kind: KindDashAudio, URL: t.BaseURL, AQ: q})
		}
	}
	return out, nil
}

// BestStream implements spec §4.4's full selection algorithm.
func (a *Analyzer) BestStream(opt FilterOption) (BestStream, error) {
	switch {
	case a.isFlv():
		return BestStream{Mixed: &Stream{Kind: KindFlv, URL: a.m.Durl[0].URL}}, nil
	case a.isHTML5MP4():
		return BestStream{Mixed: &Stream{Kind: KindHTML5MP4, URL: a.m.Durl[0].URL}}, nil
	case a.isEpisodeTryMP4():
		return BestStream{Mixed: &Stream{Kind: KindEpisodeTryMP4, URL: a.m.Durl[0].URL}}, nil
	}

	videos, err := a.videoStreams(opt)
	if err != nil {
		return BestStream{}, err
	}
	audios, err := a.audioStreams(opt)
	if err != nil {
		return BestStream{}, err
	}
	if len(videos) == 0 {
		return BestStream{}, ErrNoVideoStream
	}

	best := videos[0]
	for _, v := range videos[1:] {
		if betterVideo(v, best, opt) {
			best = v
		}
	}

	var bestAudio *Stream
	for i, aud := range audios {
		if bestAudio == nil || aud.AQ.SortKey() > bestAudio.AQ.SortKey() {
			bestAudio = &audios[i]
		}
	}

	return BestStream{Video: &best, Audio: bestAudio}, nil
}

// betterVideo reports whether candidate beats current under "(quality) then
// (negative index in user codec preference)" (spec §4.4 step 6): higher
// quality wins outright; on a quality tie, the codec appearing earlier in
// opt.Codecs wins.
func betterVideo(candidate, current Stream, opt FilterOption) bool {
	if candidate.VQ != current.VQ {
		return candidate.VQ > current.VQ
	}
	// Earlier preference index is better; -1 (unlisted) never wins a tie
	// against a listed codec but both being unlisted keeps the incumbent.
	ci, curi := opt.codecIndex(candidate.Codec), opt.codecIndex(current.Codec)
	if ci < 0 {
		return false
	}
	if curi < 0 {
		return true
	}
	return ci < curi
}
