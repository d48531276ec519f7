package market

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	StatusActive = "Active"
	StatusClosed = "Closed"
)

// Engine evaluates the configured tables against an instant. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	cfg      Config
	rules    map[string]*time.Location
	zones    map[string]Zone
	sessions map[string]Session
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		rules:    make(map[string]*time.Location),
		zones:    make(map[string]Zone, len(cfg.Zones)),
		sessions: make(map[string]Session, len(cfg.Sessions)),
	}
	for _, z := range cfg.Zones {
		e.zones[z.Key] = z
		if z.DSTRule == "" {
			continue
		}
		if _, ok := e.rules[z.DSTRule]; ok {
			continue
		}
		loc, err := time.LoadLocation(z.DSTRule)
		if err != nil {
			return nil, fmt.Errorf("zone %q: dst rule: %w", z.Key, err)
		}
		e.rules[z.DSTRule] = loc
	}
	for _, s := range cfg.Sessions {
		e.sessions[s.Key] = s
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Zone(key string) (Zone, bool) {
	z, ok := e.zones[key]
	return z, ok
}

func (e *Engine) Session(key string) (Session, bool) {
	s, ok := e.sessions[key]
	return s, ok
}

// ResolveOffset returns the zone's hours from UTC at now, following the daylight-saving
// calendar of its DSTRule location.
func (e *Engine) ResolveOffset(z Zone, now time.Time) int {
	if z.DSTRule == "" {
		return z.StandardHours
	}
	loc, ok := e.rules[z.DSTRule]
	if !ok {
		return z.StandardHours
	}
	if now.In(loc).IsDST() {
		return z.DaylightHours
	}
	return z.StandardHours
}

// OffsetFor resolves a zone by key. Unknown keys report ok=false.
func (e *Engine) OffsetFor(key string, now time.Time) (int, bool) {
	z, ok := e.zones[key]
	if !ok {
		return 0, false
	}
	return e.ResolveOffset(z, now), true
}

type ClockSlot struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Time        string `json:"time"`
	OffsetHours int    `json:"offset_hours"`
	DST         bool   `json:"dst"`
}

type SessionSlot struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Active      bool   `json:"active"`
	Countdown   string `json:"countdown"`
	CountdownMS int64  `json:"countdown_ms"`
	ClosesIn    string `json:"closes_in,omitempty"`
}

type OverlapSlot struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

type DailySlot struct {
	Zone    string    `json:"zone"`
	CloseIn string    `json:"close_in"`
	OpenIn  string    `json:"open_in"`
	CloseAt time.Time `json:"close_at"`
	OpenAt  time.Time `json:"open_at"`
}

// DisplayState is everything the dashboard renders for one tick.
type DisplayState struct {
	At       time.Time     `json:"at"`
	Clocks   []ClockSlot   `json:"clocks"`
	Sessions []SessionSlot `json:"sessions"`
	Overlaps []OverlapSlot `json:"overlaps"`
	Daily    DailySlot     `json:"daily"`
}

// Evaluate computes the full display state for now.
func (e *Engine) Evaluate(now time.Time) DisplayState {
	u := now.UTC()
	st := DisplayState{
		At:       u,
		Clocks:   make([]ClockSlot, 0, len(e.cfg.Zones)),
		Sessions: make([]SessionSlot, 0, len(e.cfg.Sessions)),
		Overlaps: make([]OverlapSlot, 0, len(e.cfg.Overlaps)),
	}

	for _, z := range e.cfg.Zones {
		off := e.ResolveOffset(z, u)
		st.Clocks = append(st.Clocks, ClockSlot{
			Key:         z.Key,
			Name:        z.Name,
			Time:        FormatClock(CurrentOffsetTime(u, off)),
			OffsetHours: off,
			DST:         z.DSTRule != "" && off == z.DaylightHours && z.DaylightHours != z.StandardHours,
		})
	}

	h, m := u.Hour(), u.Minute()
	for _, s := range e.cfg.Sessions {
		active := IsSessionActive(s, h, m)
		next := TimeUntilNextSessionBoundary(s, u)
		slot := SessionSlot{
			Key:         s.Key,
			Name:        s.Name,
			Status:      statusLabel(active),
			Active:      active,
			Countdown:   FormatDuration(next),
			CountdownMS: next.Milliseconds(),
		}
		if active {
			slot.ClosesIn = FormatDuration(TimeUntilSessionClose(s, u))
		}
		st.Sessions = append(st.Sessions, slot)
	}

	for _, o := range e.cfg.Overlaps {
		active := OverlapActive(e.sessions[o.A], e.sessions[o.B], h, m)
		st.Overlaps = append(st.Overlaps, OverlapSlot{
			Key:    o.Key,
			Name:   o.Name,
			Status: statusLabel(active),
			Active: active,
		})
	}

	serverHours, _ := e.OffsetFor(e.cfg.Settlement.Zone, u)
	untilClose, untilOpen := TimeUntilDailyBoundary(u, serverHours)
	st.Daily = DailySlot{
		Zone:    e.cfg.Settlement.Zone,
		CloseIn: FormatDuration(untilClose),
		OpenIn:  FormatDuration(untilOpen),
		CloseAt: u.Add(untilClose),
		OpenAt:  u.Add(untilOpen),
	}
	return st
}

func statusLabel(active bool) string {
	if active {
		return StatusActive
	}
	return StatusClosed
}
