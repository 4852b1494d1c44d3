package replay

import "time"

// State is a step of the replay state machine.
type State string

const (
	StateIdle       State = "idle"
	StateSanitizing State = "sanitizing"
	StateGating     State = "gating"
	StatePulling    State = "pulling"
	StateIsolating  State = "isolating"
	StateCreating   State = "creating"
	StateAttaching  State = "attaching"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateCleaningUp State = "cleaning-up"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a replay attempt.
func (s State) Terminal() bool {
	return s == StateRunning || s == StateFailed
}

const (
	defaultPullTimeout    = 10 * time.Minute
	defaultRuntimeTimeout = 30 * time.Second
	defaultStopTimeout    = 10 * time.Second
	defaultCleanupTimeout = 30 * time.Second
)
