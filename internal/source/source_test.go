package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatermarkShouldTakeNilWatermark(t *testing.T) {
	assert.True(t, watermarkShouldTake(time.Now(), nil))
}

func TestWatermarkShouldTakeStrictlyNewer(t *testing.T) {
	wm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := wm.Add(time.Second)
	older := wm.Add(-time.Second)
	assert.True(t, watermarkShouldTake(newer, &wm))
	assert.False(t, watermarkShouldTake(older, &wm))
	assert.False(t, watermarkShouldTake(wm, &wm))
}

func TestBangumiShouldTakeAlwaysTrue(t *testing.T) {
	b := &Bangumi{}
	wm := time.Now()
	assert.True(t, b.ShouldTake(time.Unix(0, 0), &wm))
	assert.True(t, b.ShouldTake(time.Now(), nil))
}

func TestStringifyAny(t *testing.T) {
	assert.Equal(t, "1987140", stringifyAny(float64(1987140)))
	assert.Equal(t, "abc", stringifyAny("abc"))
	assert.Equal(t, "", stringifyAny(nil))
}
