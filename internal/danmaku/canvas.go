package danmaku

// Option is the user-configurable danmaku rendering preference (spec
// §4.5 "CanvasConfig ... plus user DanmakuOption").
type Option struct {
	Duration         float64
	Font             string
	FontSize         uint32
	WidthRatio       float64
	HorizontalGap    float64
	LaneSize         uint32
	FloatPercentage  float64
	BottomPercentage float64
	Opacity          uint8
	Bold             bool
	Outline          float64
	TimeOffset       float64
}

// DefaultOption returns the stock rendering preference used when a source
// has no danmaku override configured.
func DefaultOption() Option {
	return Option{
		Duration:         15.0,
		Font:             "黑体",
		FontSize:         25,
		WidthRatio:       1.2,
		HorizontalGap:    20.0,
		LaneSize:         32,
		FloatPercentage:  0.5,
		BottomPercentage: 0.3,
		Opacity:          uint8(0.3 * 255.0),
		Bold:             true,
		Outline:          0.8,
	}
}

// Dimension is a page's rotation-normalized pixel size, used to derive the
// canvas size (spec §4.5 "derived from the page dimension").
type Dimension struct {
	Width, Height int
	Rotate        int
}

// CanvasConfig is the resolved per-page rendering surface: the rotation-
// normalized page dimension scaled so height=720 (preserving aspect ratio),
// paired with the user's Option (spec §4.5).
type CanvasConfig struct {
	Width, Height int
	Option        Option
}

// NewCanvasConfig derives a CanvasConfig from a page Dimension (zero value
// falls back to a 1280x720 default canvas) and the user's Option.
func NewCanvasConfig(dim Dimension, opt Option) CanvasConfig {
	width, height := dim.Width, dim.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	} else if dim.Rotate != 0 {
		width, height = height, width
	}
	scaledWidth := int(720.0 / float64(height) * float64(width))
	return CanvasConfig{Width: scaledWidth, Height: 720, Option: opt}
}

// Canvas lays float-lane danmu onto a fixed set of horizontal lanes,
// resolving collisions per spec §4.5.
type Canvas struct {
	config     CanvasConfig
	floatLanes []*lane
}

// NewCanvas allocates a Canvas with floor(float_percentage*height/lane_size)
// lanes (spec §4.5).
func NewCanvas(cfg CanvasConfig) *Canvas {
	count := int(cfg.Option.FloatPercentage * float64(cfg.Height) / float64(cfg.Option.LaneSize))
	return &Canvas{config: cfg, floatLanes: make([]*lane, count)}
}

// Draw applies TimeOffset, drops danmu whose adjusted time goes negative,
// coerces all non-float types to float (spec §4.5), and resolves lane
// placement. Returns nil (no error, no drawable) for a dropped danmu.
func (c *Canvas) Draw(d Danmu) *Drawable {
	d.TimelineS += c.config.Option.TimeOffset
	if d.TimelineS < 0 {
		return nil
	}
	d.Type = TypeFloat // every danmu is treated as a float lane occupant
	return c.drawFloat(d)
}

type collisionCandidate struct {
	timeNeeded float64
	laneIdx    int
}

func (c *Canvas) drawFloat(d Danmu) *Drawable {
	var collisions []collisionCandidate
	for idx, l := range c.floatLanes {
		if l == nil {
			return c.drawInLane(d, idx)
		}
		kind, timeNeeded := l.availableFor(d, c.config)
		switch kind {
		case collisionSeparate, collisionNotEnoughTime:
			return c.drawInLane(d, idx)
		case collisionCollide:
			collisions = append(collisions, collisionCandidate{timeNeeded: timeNeeded, laneIdx: idx})
		}
	}
	if len(collisions) == 0 {
		return nil
	}
	best := collisions[0]
	for _, cand := range collisions[1:] {
		if cand.timeNeeded < best.timeNeeded {
			best = cand
		}
	}
	if best.timeNeeded >= 1.0 {
		return nil
	}
	d.TimelineS += best.timeNeeded + 0.01
	return c.drawInLane(d, best.laneIdx)
}

func (c *Canvas) drawInLane(d Danmu, idx int) *Drawable {
	c.floatLanes[idx] = newLane(d, c.config)
	y := idx * int(c.config.Option.LaneSize)
	l := d.Length(c.config)
	return &Drawable{
		Danmu:     d,
		Duration:  c.config.Option.Duration,
		StyleName: "Float",
		Effect: MoveEffect{
			StartX: c.config.Width, StartY: y,
			EndX: -int(l), EndY: y,
		},
	}
}
