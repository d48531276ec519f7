package notify

import (
	"context"

	"github.com/pcdogyu/trader-clock/internal/metrics"
)

// Policy reports the current user choices for notifications.
type Policy interface {
	Allows(kind Kind) bool
	DefaultSound() string
}

// Dispatcher drops events the policy disallows and forwards the rest.
type Dispatcher struct {
	next   Notifier
	policy func() Policy
	rec    metrics.Recorder
}

func NewDispatcher(next Notifier, policy func() Policy, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Dispatcher{next: next, policy: policy, rec: rec}
}

// Dispatch forwards events in order and returns the ones that were delivered to the sinks.
// Sink errors are reported by the sinks themselves and do not stop the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	p := d.policy()
	var sent []Event
	for _, ev := range events {
		if !p.Allows(ev.Kind) {
			continue
		}
		if ev.Sound == "" {
			ev.Sound = p.DefaultSound()
		}
		_ = d.next.Notify(ctx, ev)
		d.rec.RecordNotification(string(ev.Kind))
		sent = append(sent, ev)
	}
	return sent
}
