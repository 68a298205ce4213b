package danmaku

type collisionKind int

const (
	collisionSeparate collisionKind = iota
	collisionNotEnoughTime
	collisionCollide
)

// lane is one horizontal float-danmu slot, remembering only the last danmu
// it shot (spec §4.5: "Each lane stores its last shoot time and the last
// danmu's length").
type lane struct {
	lastShootTime float64
	lastLength    float64
}

func newLane(d Danmu, cfg CanvasConfig) *lane {
	return &lane{lastShootTime: d.TimelineS, lastLength: d.Length(cfg)}
}

// availableFor implements spec §4.5's collision formula exactly.
func (l *lane) availableFor(other Danmu, cfg CanvasConfig) (collisionKind, float64) {
	T := cfg.Option.Duration
	W := float64(cfg.Width)
	gap := cfg.Option.HorizontalGap

	t1, t2 := l.lastShootTime, other.TimelineS
	l1, l2 := l.lastLength, other.Length(cfg)

	v1 := (W + l1) / T
	v2 := (W + l2) / T

	deltaT := t2 - t1
	deltaX := v1*deltaT - l1

	if deltaX < gap {
		if l2 <= l1 {
			return collisionCollide, (gap - deltaX) / v1
		}
		return collisionCollide, (T - (W-gap)/v2) - deltaT
	}
	if l2 <= l1 {
		return collisionSeparate, 0
	}
	pos := v2 * (T - deltaT)
	if pos < W-gap {
		return collisionNotEnoughTime, 0
	}
	return collisionCollide, (pos - (W - gap)) / v2
}
