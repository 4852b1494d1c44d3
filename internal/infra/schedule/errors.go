package schedule

import "errors"

var ErrEmptySpec = errors.New("empty cron spec")
