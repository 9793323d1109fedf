package service

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// scheduler runs named jobs on cron specs ("@every 30s", "*/5 * * * *").
// A job still running when its next tick fires is skipped.
type scheduler struct {
	cron *cron.Cron
}

func newScheduler() *scheduler {
	return &scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (s *scheduler) add(name, spec string, fn func()) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (s *scheduler) start() { s.cron.Start() }

// stop waits for running jobs to finish.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}
