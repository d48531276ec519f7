// Package export writes alert rules and notification history as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/notify"
)

const (
	SheetAlerts  = "Alerts"
	SheetHistory = "History"
)

var (
	alertColumns   = []string{"ID", "Time", "Timezone", "Category", "Priority", "Sound", "Message", "Repeat", "Created (UTC)", "Last fired (UTC)"}
	historyColumns = []string{"Seq", "At (UTC)", "Kind", "Title", "Body", "Ref"}
)

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) header(cols []string, style int) error {
	if err := w.write(toAny(cols)); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(w.sheet, "A1", end, style)
}

func (w *sheetWriter) write(vals []any) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &vals)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteAlerts writes one sheet of rules and one of history events to w.
func WriteAlerts(w io.Writer, rules []alerts.Rule, history []notify.Event) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAlerts); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetHistory); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetHistory, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	aw := &sheetWriter{f: f, sheet: SheetAlerts}
	if err := aw.header(alertColumns, bold); err != nil {
		return err
	}
	for _, r := range rules {
		last := ""
		if r.LastFiredAt != nil {
			last = ts(*r.LastFiredAt)
		}
		if err := aw.write([]any{r.ID, r.Time, r.Timezone, r.Category, r.Priority, r.Sound, r.Message, r.Repeat, ts(r.CreatedAt), last}); err != nil {
			return fmt.Errorf("alert %s: %w", r.ID, err)
		}
	}

	hw := &sheetWriter{f: f, sheet: SheetHistory}
	if err := hw.header(historyColumns, bold); err != nil {
		return err
	}
	for _, ev := range history {
		if err := hw.write([]any{ev.Seq, ts(ev.At), string(ev.Kind), ev.Title, ev.Body, ev.Ref}); err != nil {
			return fmt.Errorf("history %d: %w", ev.Seq, err)
		}
	}

	return f.Write(w)
}
