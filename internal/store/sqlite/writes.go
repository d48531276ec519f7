package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/notify"
)

func (s *Store) GetKV(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) PutKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_utc) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_utc=excluded.updated_utc
	`, key, value, formatTS(time.Now()))
	return err
}

func (s *Store) InsertAlert(ctx context.Context, r alerts.Rule) error {
	var lastFired any
	if r.LastFiredAt != nil {
		lastFired = formatTS(*r.LastFiredAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts(
			id, hhmm, zone, category, priority, sound, message,
			repeats, triggered, created_utc, last_fired_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Time, r.Timezone, r.Category, r.Priority, r.Sound, r.Message,
		boolInt(r.Repeat), boolInt(r.Triggered), formatTS(r.CreatedAt), lastFired)
	return err
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAlertFired(ctx context.Context, id string, at time.Time, triggered bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET last_fired_utc = ?, triggered = ? WHERE id = ?
	`, formatTS(at), boolInt(triggered), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

// RecordEvent appends ev to the notification history.
func (s *Store) RecordEvent(ctx context.Context, ev notify.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notify_history(ts_utc, kind, title, body, sound, ref)
		VALUES (?, ?, ?, ?, ?, ?)
	`, formatTS(at), string(ev.Kind), ev.Title, ev.Body, ev.Sound, ev.Ref)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
