package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/config"
	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/memstore"
	"github.com/pcdogyu/trader-clock/internal/notify"
	"github.com/pcdogyu/trader-clock/internal/scheduler"
	"github.com/pcdogyu/trader-clock/internal/store/sqlite"
)

type dispatcher interface {
	Dispatch(ctx context.Context, events []notify.Event) []notify.Event
}

// tickSteps evaluates and publishes the state, turns transitions into notifications and
// fires due alert rules, in that order.
func tickSteps(engine *market.Engine, mem *memstore.Store, watcher *notify.Watcher, svc *alerts.Service, disp dispatcher) []scheduler.Step {
	return []scheduler.Step{
		{Name: "state", Run: func(_ context.Context, now time.Time) error {
			mem.SetState(engine.Evaluate(now))
			return nil
		}},
		{Name: "transitions", Run: func(ctx context.Context, _ time.Time) error {
			st, ok := mem.State()
			if !ok {
				return fmt.Errorf("no state published")
			}
			disp.Dispatch(ctx, watcher.Observe(st))
			return nil
		}},
		{Name: "alerts", Run: func(ctx context.Context, now time.Time) error {
			fired, err := svc.Tick(ctx, now)
			if err != nil {
				return err
			}
			events := make([]notify.Event, 0, len(fired))
			for _, f := range fired {
				events = append(events, notify.FromAlert(f))
			}
			disp.Dispatch(ctx, events)
			return nil
		}},
	}
}

func runCleanupLoop(ctx context.Context, cfg config.Config, db *sql.DB, log *zap.Logger) {
	if cfg.Cleanup.Enabled != nil && !*cfg.Cleanup.Enabled {
		log.Info("cleanup disabled")
		return
	}
	var lastRunDay string

	for {
		now := time.Now().UTC()
		today := now.Format("2006-01-02")
		if lastRunDay != today && now.After(runTimeToday(now, cfg.Cleanup.RunAt)) {
			n, err := sqlite.CleanupOldData(db, now, cfg.RetentionDays)
			if err != nil {
				log.Error("cleanup", zap.Error(err))
			} else {
				log.Info("cleanup ok", zap.Int("retention_days", cfg.RetentionDays), zap.Int64("deleted", n))
			}
			lastRunDay = today
		}

		// Tick at 1-minute granularity; this is a once-per-day job.
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Minute):
		}
	}
}

// runTimeToday resolves runAt ("HH:MM" UTC) on now's date.
func runTimeToday(now time.Time, runAt string) time.Time {
	h, m := 3, 10
	if v, err := time.Parse("15:04", runAt); err == nil {
		h = v.Hour()
		m = v.Minute()
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, time.UTC)
}
