package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/pcdogyu/trader-clock/internal/market"
)

// Watcher compares consecutive display states and reports session and daily-candle
// transitions. The first observed state only primes it.
type Watcher struct {
	mu       sync.Mutex
	primed   bool
	sessions map[string]bool
	closeAt  time.Time
}

func NewWatcher() *Watcher {
	return &Watcher{sessions: make(map[string]bool)}
}

func (w *Watcher) Observe(st market.DisplayState) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Event
	for _, s := range st.Sessions {
		was, seen := w.sessions[s.Key]
		w.sessions[s.Key] = s.Active
		if !w.primed || !seen || was == s.Active {
			continue
		}
		if s.Active {
			out = append(out, Event{
				Kind:  KindSessionStart,
				Title: s.Name + " session open",
				Body:  fmt.Sprintf("%s session is now active", s.Name),
				Ref:   s.Key,
				At:    st.At,
			})
		} else {
			out = append(out, Event{
				Kind:  KindSessionEnd,
				Title: s.Name + " session closed",
				Body:  fmt.Sprintf("%s session has closed", s.Name),
				Ref:   s.Key,
				At:    st.At,
			})
		}
	}

	// Only reaching the previous close counts. A DST switch can move the next close
	// without any settlement happening.
	if w.primed && !w.closeAt.IsZero() && !st.At.Before(w.closeAt) {
		out = append(out, Event{
			Kind:  KindDailyCandle,
			Title: "Daily candle closed",
			Body:  fmt.Sprintf("New daily candle opens in %s", st.Daily.OpenIn),
			Ref:   st.Daily.Zone,
			At:    st.At,
		})
	}
	w.closeAt = st.Daily.CloseAt
	w.primed = true
	return out
}
