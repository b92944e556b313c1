package scheduler

import (
	"fmt"
	"time"
)

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time

	// String returns a human-readable form for job listings.
	String() string
}

// IntervalSchedule runs a job at a fixed interval, counted from the
// previous run.
type IntervalSchedule struct {
	interval time.Duration
}

// NewIntervalSchedule creates a fixed-interval schedule.
func NewIntervalSchedule(interval time.Duration) IntervalSchedule {
	return IntervalSchedule{interval: interval}
}

// Next implements Schedule.
func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// String implements Schedule.
func (s IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.interval)
}
