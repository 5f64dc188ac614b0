// Package schedule runs a job on a standard five-field cron expression
// (minute hour day-of-month month day-of-week), for example "0 16 * * 5".
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates spec with the same parser Start uses.
func Parse(spec string) (cron.Schedule, error) {
	return parser.Parse(strings.TrimSpace(spec))
}

// Start parses spec and runs job at every activation until ctx is done.
// An empty spec disables the job and returns nil.
func Start(ctx context.Context, name, spec string, loc *time.Location, logger *log.Logger, job func(context.Context)) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		logger.Info("schedule disabled", "job", name)
		return nil
	}
	sched, err := Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid %s schedule '%s': %w", name, spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	logger.Info("job scheduled", "job", name, "cron", spec)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			logger.Debug("next run", "job", name, "at", next.Format("Mon Jan 2 15:04"), "in", wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			job(ctx)
		}
	}()
	return nil
}
