// Package calendar publishes the session schedule as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/pcdogyu/trader-clock/internal/market"
)

const (
	ProductID = "-//trader-clock//sessions//EN"
	MaxDays   = 62
)

// Build lists every session window and daily close that ends after from, for days calendar
// days starting at from's UTC date.
func Build(e *market.Engine, from time.Time, days int) *ical.Calendar {
	if days < 1 {
		days = 1
	}
	if days > MaxDays {
		days = MaxDays
	}
	from = from.UTC()
	cfg := e.Config()

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText("X-WR-CALNAME", "Trading sessions")

	day0 := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		day := day0.AddDate(0, 0, d)
		for _, s := range cfg.Sessions {
			if s.Start == s.End {
				continue
			}
			start := day.Add(time.Duration(s.Start) * time.Hour)
			end := day.Add(time.Duration(s.End) * time.Hour)
			if s.End < s.Start {
				end = end.Add(24 * time.Hour)
			}
			if !end.After(from) {
				continue
			}
			cal.Children = append(cal.Children, event(s.Key, s.Name+" session", start, end, from))
		}
	}

	for d := 0; d < days; d++ {
		day := day0.AddDate(0, 0, d)
		// The settlement offset in effect around midday decides that day's close hour.
		off, _ := e.OffsetFor(cfg.Settlement.Zone, day.Add(12*time.Hour))
		closeAt := day.Add(time.Duration(((24-off)%24+24)%24) * time.Hour)
		if !closeAt.After(from) {
			continue
		}
		cal.Children = append(cal.Children, event("daily-close", "Daily candle close", closeAt, closeAt.Add(market.ReopenDelay), from))
	}
	return cal
}

func event(key, summary string, start, end, stamp time.Time) *ical.Component {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@trader-clock", key, start.Format("20060102T150405Z")))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ev.Props.SetDateTime(ical.PropDateTimeStart, start)
	if end.After(start) {
		ev.Props.SetDateTime(ical.PropDateTimeEnd, end)
	}
	ev.Props.SetText(ical.PropSummary, summary)
	ev.Props.SetText(ical.PropTransparency, "TRANSPARENT")
	return ev.Component
}

func Write(w io.Writer, cal *ical.Calendar) error {
	return ical.NewEncoder(w).Encode(cal)
}
