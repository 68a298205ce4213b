package stream

// FilterOption is the user-configurable stream-selection preference (spec
// §4.4).
type FilterOption struct {
	VideoMaxQuality VideoQuality
	VideoMinQuality VideoQuality
	AudioMaxQuality AudioQuality
	AudioMinQuality AudioQuality
	// Codecs is the ordered list of accepted video codecs, most preferred
	// first; also used to break quality ties in best-stream selection.
	Codecs []VideoCodec

	NoDolbyVideo bool
	NoDolbyAudio bool
	NoHDR        bool
	NoHiRes      bool
}

// DefaultFilterOption returns the stock stream-selection preference used
// when a source has no filter override configured.
func DefaultFilterOption() FilterOption {
	return FilterOption{
		VideoMaxQuality: VideoQuality8k,
		VideoMinQuality: VideoQuality360p,
		AudioMaxQuality: AudioQualityHiRES,
		AudioMinQuality: AudioQuality64k,
		Codecs:          []VideoCodec{CodecAV1, CodecHEV, CodecAVC},
	}
}

func (f FilterOption) codecIndex(c VideoCodec) int {
	for i, want := range f.Codecs {
		if want == c {
			return i
		}
	}
	return -1
}

func (f FilterOption) acceptsCodec(c VideoCodec) bool {
	return f.codecIndex(c) >= 0
}
