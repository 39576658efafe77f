package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
)

// cronParser accepts the standard five fields, an optional leading seconds
// field and descriptors such as "@hourly" or "@every 90s".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCronExpression reports whether expr can be passed to ScheduleCron.
func ValidateCronExpression(expr string) error {
	_, err := parseCron(expr)
	return err
}

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// cronNext follows schedule from the completion time of each run, so a run
// that overlaps later activations simply skips them.
func cronNext(schedule cron.Schedule, location *time.Location) nextFunc {
	return func(_ int64, now time.Time) (time.Time, bool) {
		next := schedule.Next(now.In(location))
		return next, !next.IsZero()
	}
}

// ScheduleCron runs body at every activation of the cron expression expr,
// evaluated in the scheduler's location. Executions never overlap.
//
// Examples:
//
//	"*/15 * * * *"    every 15 minutes
//	"30 */5 * * * *"  second 30 of every 5th minute
//	"@daily"          every day at midnight
//	"@every 1h30m"    every 90 minutes
func (s *Scheduler) ScheduleCron(body decorator.Runnable, expr string) (*ScheduledHandle, error) {
	schedule, err := parseCron(expr)
	if err != nil {
		return nil, err
	}

	next := cronNext(schedule, s.location)
	first, ok := next(0, time.Now())
	if !ok {
		return nil, fmt.Errorf("cron expression %q never activates", expr)
	}
	return s.schedule(body, first, next, "cron")
}
