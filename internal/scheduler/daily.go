package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Daily fires a job once per day at a fixed hour in a fixed time zone. The
// job itself is responsible for refusing overlapping work; the scheduler
// just triggers.
type Daily struct {
	hour   int
	loc    *time.Location
	run    func(context.Context)
	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewDaily(hour int, timezone string, logger *log.Logger, run func(context.Context)) (*Daily, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("scheduler: hour %d out of range", hour)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load time zone %q: %w", timezone, err)
	}
	return &Daily{
		hour:   hour,
		loc:    loc,
		run:    run,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start blocks until ctx is cancelled, firing the job at each daily mark.
// Call it in its own goroutine.
func (d *Daily) Start(ctx context.Context) {
	for {
		next := nextRun(d.now().In(d.loc), d.hour)
		d.logger.Printf("scheduler: next run at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.run(ctx)
		}
	}
}

func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
