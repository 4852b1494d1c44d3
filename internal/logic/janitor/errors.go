package janitor

import "errors"

var (
	ErrNotReady     = errors.New("janitor is not ready")
	ErrSweepOverdue = errors.New("scheduled sweep is overdue")
)
