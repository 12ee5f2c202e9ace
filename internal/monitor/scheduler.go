package monitor

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs monitoring ticks on a cron schedule. Ticks are strictly
// serialized: a tick that overruns the interval delays the next tick
// instead of overlapping it.
type Scheduler struct {
	cron    *cron.Cron
	monitor *Monitor
	log     *slog.Logger
}

// NewScheduler creates a Scheduler firing RunTick on the given cron spec
// (e.g. "*/5 * * * *").
func NewScheduler(mon *Monitor, schedule string, log *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.DelayIfStillRunning(cron.DiscardLogger),
	))

	s := &Scheduler{
		cron:    c,
		monitor: mon,
		log:     log,
	}

	if _, err := c.AddFunc(schedule, s.runTick); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled ticks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for a running tick to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runTick() {
	ctx := context.Background()
	s.log.Info("monitoring tick starting")
	if err := s.monitor.RunTick(ctx); err != nil {
		s.log.Error("monitoring tick failed", "error", err)
	}
}
