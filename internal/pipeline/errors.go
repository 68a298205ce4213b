// Package pipeline implements spec §4.3: the three-stage per-source cycle
// (refresh, enrich, download) that drives a VideoSource from discovery to
// a fully downloaded local library entry, using a Stage/Result split with
// sentinel pipeline errors and StageError wrapping around each stage.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/stream"
)

// errStopStream is returned by a refresh-stage VideoCallback to terminate
// Adapter.Stream early once an item's release time reaches the watermark
// (spec §4.3 Stage 1 "stop when an item's release datetime is ≤
// watermark"). It is not a failure and is swallowed by the caller.
var errStopStream = errors.New("pipeline: refresh watermark reached")

// StageError wraps an error with the source/stage context it occurred in.
type StageError struct {
	Source string
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: source %q stage %s: %v", e.Source, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(source, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Source: source, Stage: stage, Err: err}
}

// isRiskControl reports whether err is classified as risk control by either
// the remote-client layer (bilibili.ErrRiskControl) or the stream analyzer
// (stream.ErrRiskControl, an empty dash.video[] — spec §4.4).
func isRiskControl(err error) bool {
	return errors.Is(err, bilibili.ErrRiskControl) || errors.Is(err, stream.ErrRiskControl)
}
