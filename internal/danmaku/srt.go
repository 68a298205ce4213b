package danmaku

import (
	"fmt"
	"io"
	"math"
)

// SubtitleCue is one entry from the player-v2 subtitle track JSON body
// (spec §4.3 Stage 3 Page sub-task 5: "one cue per segment").
type SubtitleCue struct {
	From, To float64
	Content  string
}

// WriteSRT renders cues as a minimal SRT file, one cue per segment (spec
// §6 "render into a minimal SRT").
func WriteSRT(w io.Writer, cues []SubtitleCue) error {
	for i, cue := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", i+1, FormatTime(cue.From), FormatTime(cue.To), cue.Content); err != nil {
			return err
		}
	}
	return nil
}

// FormatTime renders seconds as SRT's HH:MM:SS,mmm, with no upper bound on
// the hour component (spec §8 test vector: 360001.23 -> "100:00:01,229").
func FormatTime(t float64) string {
	second := math.Trunc(t)
	// Truncating (not rounding) the fractional-second cast preserves a
	// float-precision quirk the test vectors depend on (206.45 -> ...,449).
	millisecond := uint32(math.Trunc((t - second) * 1e3))
	hour := uint32(second / 3600.0)
	minute := uint32(math.Mod(second, 3600.0) / 60.0)
	sec := uint32(math.Mod(second, 60.0))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hour, minute, sec, millisecond)
}
