// Package schedule wraps the in-process cron runner that drives the reminder
// dispatcher on its fixed cadences.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a Scheduler whose specs are evaluated in loc.
func New(loc *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// Hourly registers a job that runs at the top of every hour.
func (s *Scheduler) Hourly(job func()) (cron.EntryID, error) {
	return s.cron.AddFunc("0 * * * *", job)
}

// DailyAtHour registers a job that runs once a day at the given local hour.
func (s *Scheduler) DailyAtHour(hour int, job func()) (cron.EntryID, error) {
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour must be in [0, 23], got %d", hour)
	}
	return s.cron.AddFunc(fmt.Sprintf("0 %d * * *", hour), job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
