package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// CleanupOldData deletes notification history older than retentionDays.
// ts_utc uses a fixed-width RFC3339Nano format stored as TEXT, so lexicographic compare works.
// Alert rules are user data and are never expired here.
func CleanupOldData(db *sql.DB, nowUTC time.Time, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retentionDays must be >= 1")
	}

	cutoff := formatTS(nowUTC.AddDate(0, 0, -retentionDays))
	res, err := db.Exec(`DELETE FROM notify_history WHERE ts_utc < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
