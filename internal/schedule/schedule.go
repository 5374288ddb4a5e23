// Package schedule fires a job once per day at a fixed local time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Job is invoked on every firing. It receives the scheduler's context.
type Job func(ctx context.Context)

// Daily triggers a job at hh:mm in a timezone, once per day. The job
// itself decides what "today" means; the trigger only keeps time.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location
	job    Job

	now func() time.Time
}

// NewDaily parses at as HH:MM and returns the trigger.
func NewDaily(at string, loc *time.Location, job Job) (*Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: must be HH:MM", at)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{
		hour:   t.Hour(),
		minute: t.Minute(),
		loc:    loc,
		job:    job,
		now:    time.Now,
	}, nil
}

// Next returns the first firing instant strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, firing the job at each scheduled
// instant.
func (d *Daily) Run(ctx context.Context) {
	for {
		next := d.Next(d.now())
		slog.Info("Next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(d.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.job(ctx)
		}
	}
}
