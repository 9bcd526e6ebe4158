// internal/schedule/schedule.go
package schedule

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers sync runs on a cron schedule.
type Scheduler struct {
	*cron.Cron
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

// Info logs routine messages about cron's operation.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error logs an error condition.
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler returns a new Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Cron: cron.New(cron.WithLogger(cronLogger{logger})),
	}
}

// AddFunc adds a job to the Scheduler.
func (s *Scheduler) AddFunc(spec string, fn func()) (int, error) {
	id, err := s.Cron.AddFunc(spec, fn)
	return int(id), err
}

// Remove removes a job from the Scheduler.
func (s *Scheduler) Remove(id int) {
	s.Cron.Remove(cron.EntryID(id))
}

// Shutdown stops the Scheduler and waits for a running job to finish.
func (s *Scheduler) Shutdown() {
	<-s.Cron.Stop().Done()
}
