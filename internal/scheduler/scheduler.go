// Package scheduler drives the per-second tick. Every tick runs a fixed list of named steps;
// a step that errors or panics is logged and counted, and the remaining steps still run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pcdogyu/trader-clock/internal/metrics"
)

type Step struct {
	Name string
	Run  func(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	interval time.Duration
	steps    []Step
	log      *zap.Logger
	rec      metrics.Recorder
	now      func() time.Time
}

func New(interval time.Duration, log *zap.Logger, rec metrics.Recorder, steps ...Step) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Scheduler{interval: interval, steps: steps, log: log, rec: rec, now: time.Now}
}

// Run ticks immediately and then on every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", s.interval), zap.Int("steps", len(s.steps)))
	for {
		s.Tick(ctx, s.now())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs every step once for now and returns how many failed.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	start := time.Now()
	failed := 0
	for _, st := range s.steps {
		if err := s.runStep(ctx, st, now); err != nil {
			failed++
			s.rec.RecordStepFailure(st.Name)
			s.log.Error("tick step failed", zap.String("step", st.Name), zap.Error(err))
		}
	}
	s.rec.RecordTick(time.Since(start))
	return failed
}

func (s *Scheduler) runStep(ctx context.Context, st Step, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.Run(ctx, now)
}
