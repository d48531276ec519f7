// Package notify turns engine transitions and fired alerts into events and fans them out
// to the configured sinks.
package notify

import (
	"context"
	"time"

	"github.com/pcdogyu/trader-clock/internal/alerts"
)

type Kind string

const (
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
	KindDailyCandle  Kind = "daily_candle"
	KindCustomAlert  Kind = "custom_alert"
)

type Event struct {
	Seq   uint64    `json:"seq"`
	Kind  Kind      `json:"kind"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Sound string    `json:"sound,omitempty"`
	Ref   string    `json:"ref,omitempty"`
	At    time.Time `json:"at"`
}

// FromAlert converts a fired alert rule into an event.
func FromAlert(f alerts.Fired) Event {
	return Event{
		Kind:  KindCustomAlert,
		Title: f.Title,
		Body:  f.Body,
		Sound: f.Sound,
		Ref:   f.Rule.ID,
		At:    f.At,
	}
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }
