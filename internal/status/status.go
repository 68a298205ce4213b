// Package status implements the per-row download-status bitfield shared by
// videos and pages: five 3-bit sub-task counters packed into the low 15 bits
// of a uint32, plus a top-bit completion flag.
package status

import "fmt"

// Slots is the number of sub-task counters packed into a Status. Both the
// video status (cover, tvshow.nfo, uploader avatar, person.nfo, pages) and
// the page status (cover, video file, nfo, danmaku, subtitles) use five.
const Slots = 5

// Sub-task counter values.
const (
	NotStarted = 0b000
	MaxRetry   = 0b100 // terminal-failed once a slot reaches this value
	OK         = 0b111
)

const completedBit = 1 << 31

// Result is the outcome of a single sub-task execution, folded into a Status
// by Update.
type Result int

const (
	// Ignored leaves the slot untouched: a well-known noise condition that
	// should not count against the retry budget. It is the zero value so an
	// unset Result in a partially-built vector is a safe no-op.
	Ignored Result = iota
	// Succeeded marks the sub-task OK.
	Succeeded
	// Skipped means the sub-task was already OK and was not re-run; it is
	// folded identically to Succeeded.
	Skipped
	// Failed increments the slot's retry counter (capped at MaxRetry).
	Failed
	// Fixed forces the slot to an explicit value regardless of its prior
	// state (used e.g. to mark a slot permanently not-applicable).
	Fixed
)

// Status is a 32-bit packed bitfield: five 3-bit sub-task counters in bits
// 0..14, and a completion flag in bit 31.
type Status uint32

// Should run reports, for every slot, whether its retry counter has not yet
// saturated (i.e. the sub-task is still eligible to execute).
func (s Status) ShouldRun() [Slots]bool {
	var out [Slots]bool
	for i := range out {
		out[i] = s.slot(i) < MaxRetry
	}
	return out
}

// Completed reports the top-bit completion flag.
func (s Status) Completed() bool {
	return s&completedBit != 0
}

func (s Status) slot(offset int) uint32 {
	return (uint32(s) >> (offset * 3)) & 0b111
}

func (s *Status) setSlot(offset int, value uint32) {
	*s = Status((uint32(*s) &^ (0b111 << (offset * 3))) | (value << (offset * 3)))
}

func (s *Status) setCompleted(completed bool) {
	if completed {
		*s |= completedBit
	} else {
		*s &^= completedBit
	}
}

func (s *Status) recomputeCompleted() {
	for _, running := range s.ShouldRun() {
		if running {
			s.setCompleted(false)
			return
		}
	}
	s.setCompleted(true)
}

// Set overwrites one slot's raw value directly and recomputes the
// completion flag. value must be < 0b1000.
func (s *Status) Set(offset int, value uint32) {
	if value >= 0b1000 {
		panic(fmt.Sprintf("status: slot value %d out of range", value))
	}
	s.setSlot(offset, value)
	s.recomputeCompleted()
}

// Update folds a vector of per-sub-task Results into the status, one per
// slot, then recomputes the completion flag. len(results) must equal Slots.
// A Fixed result carries its target value via fixedValues[i]; for all other
// result kinds fixedValues[i] is ignored and may be zero.
func (s *Status) Update(results [Slots]Result, fixedValues [Slots]uint32) {
	for i, r := range results {
		s.applyResult(i, r, fixedValues[i])
	}
	s.recomputeCompleted()
}

func (s *Status) applyResult(offset int, result Result, fixedValue uint32) {
	if result == Fixed {
		if fixedValue >= 0b1000 {
			panic(fmt.Sprintf("status: fixed value %d out of range", fixedValue))
		}
		s.setSlot(offset, fixedValue)
		return
	}
	if s.slot(offset) >= MaxRetry {
		return
	}
	switch result {
	case Succeeded, Skipped:
		s.setSlot(offset, OK)
	case Failed:
		s.setSlot(offset, s.slot(offset)+1)
	case Ignored:
		// no-op
	}
}

// ResetFailed zeroes every slot that is neither NotStarted nor OK (i.e.
// every slot mid-retry or terminally failed), clearing the completion flag
// if anything changed. Reports whether the status changed.
func (s *Status) ResetFailed() bool {
	changed := false
	for i := 0; i < Slots; i++ {
		v := s.slot(i)
		if v != NotStarted && v != OK {
			s.setSlot(i, NotStarted)
			changed = true
		}
	}
	if changed {
		s.setCompleted(false)
	}
	return changed
}

// ForceResetFailed behaves like ResetFailed, but additionally corrects a
// stale completion flag: if nothing needed resetting yet the status is
// marked completed while at least one slot is runnable (e.g. because a new
// sub-task slot's meaning was introduced after this row last updated), the
// completion flag is cleared and changed becomes true.
func (s *Status) ForceResetFailed() bool {
	changed := s.ResetFailed()
	if !changed && s.Completed() {
		for _, running := range s.ShouldRun() {
			if running {
				s.setCompleted(false)
				return true
			}
		}
	}
	return changed
}

// Values returns the raw per-slot counter values.
func (s Status) Values() [Slots]uint32 {
	var out [Slots]uint32
	for i := range out {
		out[i] = s.slot(i)
	}
	return out
}

// FromValues builds a Status from raw per-slot counter values, computing the
// completion flag from them. Panics if any value is out of range.
func FromValues(values [Slots]uint32) Status {
	var s Status
	for i, v := range values {
		if v >= 0b1000 {
			panic(fmt.Sprintf("status: slot value %d out of range", v))
		}
		s.setSlot(i, v)
	}
	s.recomputeCompleted()
	return s
}
