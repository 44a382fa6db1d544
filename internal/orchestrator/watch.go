package orchestrator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
)

// Watch runs a full sync immediately and then on schedule until ctx is
// cancelled. A tick that fires while the previous run is still going is
// skipped. Watch waits for an in-flight run before returning.
func (m *Manager) Watch(ctx context.Context, schedule string) error {
	cl := cronLogger{log: m.log.WithComponent("scheduler")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	job := cron.FuncJob(func() {
		if _, err := m.Run(ctx, nil); err != nil {
			m.log.Warnw("Scheduled sync finished with errors", "error", err)
		}
	})
	id, err := c.AddJob(schedule, job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	m.log.Infow("Watching platforms", "schedule", schedule, "platforms", len(m.clients))

	c.Start()
	c.Entry(id).WrappedJob.Run()

	<-ctx.Done()
	<-c.Stop().Done()
	m.log.Infow("Watch stopped")
	return nil
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
