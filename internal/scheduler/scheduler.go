// Package scheduler triggers reconciliation passes on a cron schedule, one at a time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metrics"
)

// Job is one pass. It receives the scheduler's root context.
type Job func(ctx context.Context)

// Scheduler runs Job at the times given by a 5-field cron expression. A trigger that fires
// while a pass is still running is skipped and logged.
type Scheduler struct {
	mu   sync.Mutex
	ctx  context.Context
	job  Job
	cron *cron.Cron
	log  logger.Logger
	spec string
}

// New validates spec and prepares a scheduler; call Start to begin firing.
func New(ctx context.Context, spec string, job Job, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Default
	}
	s := &Scheduler{ctx: ctx, job: job, log: log, spec: spec, cron: cron.New()}
	if _, err := s.cron.AddFunc(spec, func() { s.Trigger("schedule") }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		s.log.Logf("scheduler: %q, next pass at %s", s.spec, next.Format("2006-01-02 15:04:05"))
	}
}

// Stop halts future triggers and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	defer s.mu.Unlock()
}

// Trigger runs the job now on the calling goroutine unless a pass is already running.
// It reports whether the job ran. reason is logged ("schedule", "boot", "signal").
func (s *Scheduler) Trigger(reason string) bool {
	if !s.mu.TryLock() {
		s.log.Warnf("scheduler: %s trigger skipped, a pass is already running", reason)
		metrics.Passes.WithLabelValues("skipped").Inc()
		return false
	}
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.log.Logf("scheduler: starting pass (%s)", reason)
	s.job(s.ctx)
	return true
}

// Next returns when the schedule fires next, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
