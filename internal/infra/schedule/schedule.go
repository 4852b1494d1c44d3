// Package schedule evaluates five-field cron expressions.
package schedule

import (
	"fmt"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

var _parser = cron.MustNewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Cron is a parsed schedule.
type Cron struct {
	spec     string
	schedule cron.Schedule
}

// Parse parses spec. Without a CRON_TZ=/TZ= prefix the spec is evaluated in
// tz, or UTC when tz is empty.
func Parse(spec, tz string) (*Cron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrEmptySpec
	}

	parsed, err := _parser.Parse(withTZ(spec, tz))
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	return &Cron{spec: spec, schedule: parsed}, nil
}

// String returns the spec as given.
func (c *Cron) String() string {
	return c.spec
}

// NextAfter returns the next occurrence strictly after after.
func (c *Cron) NextAfter(after time.Time) time.Time {
	return c.schedule.Next(after)
}

func withTZ(spec, tz string) string {
	if strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") {
		return spec
	}

	if tz == "" {
		tz = "UTC"
	}

	return "CRON_TZ=" + tz + " " + spec
}
