package danmaku

import (
	"fmt"
	"io"
	"strings"
)

// WriteASS serializes title and a sequence of Drawables as a single-style
// ("Float") .ass subtitle file (spec §4.5 "Output").
func WriteASS(w io.Writer, title string, cfg CanvasConfig, drawables []*Drawable) error {
	if err := writeASSHeader(w, title, cfg); err != nil {
		return err
	}
	for _, d := range drawables {
		if d == nil {
			continue
		}
		if _, err := io.WriteString(w, assDialogue(d)); err != nil {
			return err
		}
	}
	return nil
}

func writeASSHeader(w io.Writer, title string, cfg CanvasConfig) error {
	opt := cfg.Option
	bold := "0"
	if opt.Bold {
		bold = "-1"
	}
	// ASS alpha is inverted: 0 = opaque, 255 = fully transparent.
	alpha := 255 - int(opt.Opacity)
	_, err := fmt.Fprintf(w, `[Script Info]
Title: %s
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
Collisions: Normal

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Float,%s,%d,&H%02XFFFFFF,&H%02XFFFFFF,&H%02X000000,&H%02X000000,%s,0,0,0,100,100,0,0,1,%g,0,7,0,0,0,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`,
		escapeASS(title), cfg.Width, cfg.Height,
		opt.Font, opt.FontSize, alpha, alpha, alpha, alpha, bold, opt.Outline,
	)
	return err
}

func assDialogue(d *Drawable) string {
	danmu := d.Danmu
	start := formatASSTime(danmu.TimelineS)
	end := formatASSTime(danmu.TimelineS + d.Duration)
	color := fmt.Sprintf("&H%02X%02X%02X&", danmu.B, danmu.G, danmu.R)
	move := fmt.Sprintf(`\move(%d,%d,%d,%d)`, d.Effect.StartX, d.Effect.StartY, d.Effect.EndX, d.Effect.EndY)
	text := fmt.Sprintf(`{%s\c%s}%s`, move, color, escapeASS(danmu.Content))
	return fmt.Sprintf("Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n", start, end, d.StyleName, text)
}

// formatASSTime renders seconds as ASS's H:MM:SS.cc (centiseconds).
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	centis := int((seconds - float64(whole)) * 100)
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, centis)
}

func escapeASS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\N`)
	s = strings.ReplaceAll(s, "{", `\{`)
	s = strings.ReplaceAll(s, "}", `\}`)
	return s
}
