package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"melange-connection-backend/internal/config"
	"melange-connection-backend/internal/jobs"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		DispatchNotifications:      "*/30 * * * * *",
		ExpireAnonymousConnections: "0 0 2 * * *",
	}}
	s := NewScheduler(jobs.NewJobRunner(nil, &jobs.Services{}, cfg))

	assert.Len(t, s.cron.Entries(), 2)
	assert.True(t, s.IsRunning())
}

func TestNewScheduler_SkipsInvalidSpecs(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		DispatchNotifications:      "every now and then",
		ExpireAnonymousConnections: "0 0 2 * * *",
	}}
	s := NewScheduler(jobs.NewJobRunner(nil, &jobs.Services{}, cfg))

	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		DispatchNotifications:      "0 0 0 1 1 *",
		ExpireAnonymousConnections: "0 0 0 1 1 *",
	}}
	s := NewScheduler(jobs.NewJobRunner(nil, &jobs.Services{}, cfg))

	s.Start()
	s.Stop()
}
