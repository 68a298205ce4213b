package scheduler

import "errors"

// ErrCycleInFlight is returned by RunNow when a cycle is already running,
// matching spec §4.8's mutex.try_acquire semantics for manual runs.
var ErrCycleInFlight = errors.New("scheduler: a sync cycle is already running")
