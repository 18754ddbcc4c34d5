package rebalance

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSchedule runs one cycle per hour.
const DefaultSchedule = "@every 1h"

// Cycler is the part of Agent the scheduler drives.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Scheduler runs cycles on a cron schedule. A tick that fires while the
// previous cycle is still running is skipped. Failed cycles are logged and
// the next tick proceeds normally.
type Scheduler struct {
	agent      Cycler
	spec       string
	schedule   cron.Schedule
	runOnStart bool
}

func NewScheduler(agent Cycler, spec string, runOnStart bool) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{agent: agent, spec: spec, schedule: sched, runOnStart: runOnStart}, nil
}

func (s *Scheduler) Spec() string { return s.spec }

// Run blocks until ctx is done, then waits for a running cycle to return.
func (s *Scheduler) Run(ctx context.Context) error {
	entry := logrus.WithField("prefix", "scheduler")
	logger := cron.PrintfLogger(entry)

	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		res, err := s.agent.RunCycle(ctx)
		if err != nil {
			entry.WithField("cycle", res.ID).Warnf("cycle failed: %v", err)
			return
		}
		entry.WithFields(logrus.Fields{"cycle": res.ID, "outcome": res.Outcome}).Info("cycle done")
	}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(s.schedule, job)
	c.Start()
	entry.Infof("scheduled %q", s.spec)

	var wg sync.WaitGroup
	if s.runOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	return nil
}
