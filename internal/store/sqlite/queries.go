package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/notify"
)

// ListAlerts returns all rules, oldest first.
func (s *Store) ListAlerts(ctx context.Context) ([]alerts.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hhmm, zone, category, priority, sound, message,
			repeats, triggered, created_utc, last_fired_utc
		FROM alerts
		ORDER BY created_utc ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]alerts.Rule, 0)
	for rows.Next() {
		var (
			r             alerts.Rule
			repeats, trig int
			created       string
			lastFired     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Time, &r.Timezone, &r.Category, &r.Priority, &r.Sound, &r.Message,
			&repeats, &trig, &created, &lastFired); err != nil {
			return nil, err
		}
		r.Repeat = repeats != 0
		r.Triggered = trig != 0
		if r.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("alert %s created_utc: %w", r.ID, err)
		}
		if lastFired.Valid {
			t, err := parseTS(lastFired.String)
			if err != nil {
				return nil, fmt.Errorf("alert %s last_fired_utc: %w", r.ID, err)
			}
			r.LastFiredAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryHistory returns up to limit most recent history events, oldest first.
func (s *Store) QueryHistory(ctx context.Context, limit int) ([]notify.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts_utc, kind, title, body, sound, ref
		FROM notify_history
		ORDER BY ts_utc DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notify.Event, 0, limit)
	for rows.Next() {
		var (
			ev   notify.Event
			id   int64
			ts   string
			kind string
		)
		if err := rows.Scan(&id, &ts, &kind, &ev.Title, &ev.Body, &ev.Sound, &ev.Ref); err != nil {
			return nil, err
		}
		ev.Seq = uint64(id)
		ev.Kind = notify.Kind(kind)
		if ev.At, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("history %d ts_utc: %w", id, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
