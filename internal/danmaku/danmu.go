// Package danmaku decodes bilibili's protobuf bullet-comment segments and
// compiles them into a time/space-laid-out ASS subtitle track plus an SRT
// subtitle writer for the player-v2 caption endpoint (spec §4.5, §6).
package danmaku

// Type is the on-wire danmaku placement mode. All non-float modes are
// coerced to Float before layout (spec §4.5: "explicit design choice").
type Type int

const (
	TypeFloat Type = iota
	TypeTop
	TypeBottom
	TypeReverse
)

// typeFromMode maps the protobuf `mode` field (spec §4.5, §6) to Type.
// Unknown modes are treated as Float; every non-float mode collapses to
// float one level up, before layout runs.
func typeFromMode(mode int32) Type {
	switch mode {
	case 1:
		return TypeFloat
	case 4:
		return TypeBottom
	case 5:
		return TypeTop
	case 6:
		return TypeReverse
	default:
		return TypeFloat
	}
}

// Danmu is a single bullet comment without position information yet.
type Danmu struct {
	TimelineS float64
	Content   string
	Type      Type
	FontSize  uint32
	R, G, B   uint8
}

// Length computes the danmu's on-canvas pixel length (spec §4.5): ASCII
// runes count 2/3 width, all others count a full unit, scaled by the
// canvas's configured width ratio.
func (d Danmu) Length(cfg CanvasConfig) float64 {
	var units uint32
	for _, r := range d.Content {
		if r <= 0x7F {
			units += 2
		} else {
			units += 3
		}
	}
	pts := cfg.Option.FontSize * units / 3
	return float64(pts) * cfg.Option.WidthRatio
}
